package media

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"craftriver/blobstore"
)

// failOnceStore fails the first delete of a chosen id, then behaves normally.
type failOnceStore struct {
	blobstore.BlobStore
	failID string
	failed bool
}

func (f *failOnceStore) Delete(ctx context.Context, id string) error {
	if id == f.failID && !f.failed {
		f.failed = true
		return errors.New("transient store error")
	}
	return f.BlobStore.Delete(ctx, id)
}

func TestOnOwnerDeletedBestEffort(t *testing.T) {
	mem := blobstore.NewMemory()
	a := mustUpload(t, mem, "a.jpg", nil, []byte("a"))
	b := mustUpload(t, mem, "b.jpg", nil, []byte("b"))
	c := mustUpload(t, mem, "c.jpg", nil, []byte("c"))

	store := &failOnceStore{BlobStore: mem, failID: b}
	cleaner := Cleaner{Store: store}

	// A failing blob must not stop the rest of the list.
	cleaner.OnOwnerDeleted(context.Background(), []string{a, b, c, ""})

	for _, tc := range []struct {
		id   string
		want bool
	}{{a, false}, {b, true}, {c, false}} {
		ok, err := mem.Exists(context.Background(), tc.id)
		if err != nil {
			t.Fatalf("exists %s: %v", tc.id, err)
		}
		if ok != tc.want {
			t.Fatalf("exists(%s) = %v, want %v", tc.id, ok, tc.want)
		}
	}

	// Retrying the failed blob succeeds; running over already-deleted ids is
	// silent.
	cleaner.OnOwnerDeleted(context.Background(), []string{a, b, c})
	if ok, _ := mem.Exists(context.Background(), b); ok {
		t.Fatal("blob survived retry")
	}
}

func TestOnOwnerMediaReplaced(t *testing.T) {
	mem := blobstore.NewMemory()
	cleaner := Cleaner{Store: mem}

	a := mustUpload(t, mem, "a.jpg", nil, []byte("old-a"))
	b := mustUpload(t, mem, "b.jpg", nil, []byte("old-b"))

	// Replacement media is stored before any deletion starts.
	c, err := mem.Upload(context.Background(), "c.jpg", nil, bytes.NewReader([]byte("new-c")))
	if err != nil {
		t.Fatalf("upload replacement: %v", err)
	}
	if ok, _ := mem.Exists(context.Background(), c); !ok {
		t.Fatal("replacement not visible before cleanup")
	}

	cleaner.OnOwnerMediaReplaced(context.Background(), []string{a, b}, []string{c})

	if ok, _ := mem.Exists(context.Background(), a); ok {
		t.Fatal("old blob a survived replace")
	}
	if ok, _ := mem.Exists(context.Background(), b); ok {
		t.Fatal("old blob b survived replace")
	}
	if ok, _ := mem.Exists(context.Background(), c); !ok {
		t.Fatal("new blob c was deleted")
	}
}

func TestOnOwnerMediaReplacedKeepsCarriedOverIDs(t *testing.T) {
	mem := blobstore.NewMemory()
	cleaner := Cleaner{Store: mem}

	a := mustUpload(t, mem, "a.jpg", nil, []byte("keep"))
	b := mustUpload(t, mem, "b.jpg", nil, []byte("drop"))

	cleaner.OnOwnerMediaReplaced(context.Background(), []string{a, b}, []string{a})

	if ok, _ := mem.Exists(context.Background(), a); !ok {
		t.Fatal("carried-over blob was deleted")
	}
	if ok, _ := mem.Exists(context.Background(), b); ok {
		t.Fatal("dropped blob survived")
	}
}
