package media

import (
	"context"
	"log"

	"craftriver/blobstore"
)

// Cleaner removes blobs whose owning entity is gone or no longer references
// them. Cleanup is best-effort: a blob that refuses to die is logged and
// skipped, never allowed to block the owner's own delete or update.
type Cleaner struct {
	Store blobstore.BlobStore
}

// OnOwnerDeleted deletes every blob an owner held. Individual failures are
// logged and the rest of the list still gets processed.
func (c *Cleaner) OnOwnerDeleted(ctx context.Context, mediaIDs []string) {
	for _, id := range mediaIDs {
		if id == "" {
			continue
		}
		if err := c.Store.Delete(ctx, id); err != nil {
			log.Printf("media: cleanup blob %s: %v", id, err)
		}
	}
}

// OnOwnerMediaReplaced deletes the blobs an owner stopped referencing.
// Callers invoke this only after the new media is stored and the owner record
// durably points at it; ids still present in newIDs are kept.
func (c *Cleaner) OnOwnerMediaReplaced(ctx context.Context, oldIDs, newIDs []string) {
	kept := make(map[string]bool, len(newIDs))
	for _, id := range newIDs {
		kept[id] = true
	}
	var stale []string
	for _, id := range oldIDs {
		if !kept[id] {
			stale = append(stale, id)
		}
	}
	c.OnOwnerDeleted(ctx, stale)
}
