package blobstore

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrInvalidID marks ids that do not parse as a store-native id. Checked
	// before any lookup so callers never see low-level driver errors for
	// garbage input.
	ErrInvalidID = errors.New("invalid blob id")
	// ErrNotFound marks ids with no stored object.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidRange marks byte ranges that cannot be satisfied.
	ErrInvalidRange = errors.New("invalid byte range")
)

// BlobInfo describes one stored binary object.
type BlobInfo struct {
	ID       string
	Filename string
	Length   int64
	Metadata map[string]string
}

// Download is an open read of a blob, either in full or bounded to a byte
// window. Start and End are inclusive; for a full read Start is 0 and End is
// Length-1. The caller owns Body and must close it.
type Download struct {
	BlobInfo
	Start int64
	End   int64
	Body  io.ReadCloser
}

// BlobStore is the binary-object storage abstraction behind the media
// pipeline. Implementations must support concurrent uploads and downloads
// of unrelated ids, keep partially written uploads invisible, and treat
// Delete of a missing id as success.
type BlobStore interface {
	// Upload streams r into a new blob and returns its generated id. On any
	// failure mid-stream no visible object remains.
	Upload(ctx context.Context, filename string, metadata map[string]string, r io.Reader) (string, error)

	// Open returns the full content of a blob.
	Open(ctx context.Context, id string) (*Download, error)

	// OpenRange returns bytes [start, end] of a blob. A negative end means
	// "through the last byte"; an end beyond the object is clamped to it.
	OpenRange(ctx context.Context, id string, start, end int64) (*Download, error)

	// Stat returns metadata without opening the content.
	Stat(ctx context.Context, id string) (*BlobInfo, error)

	Exists(ctx context.Context, id string) (bool, error)

	// Delete removes a blob. Deleting an id that no longer exists is not an
	// error, so cleanup may safely run twice.
	Delete(ctx context.Context, id string) error
}

// checkRange validates and resolves a requested window against a known
// length. end < 0 selects everything from start.
func checkRange(start, end, length int64) (int64, int64, error) {
	if start < 0 || start > length-1 {
		return 0, 0, ErrInvalidRange
	}
	if end < 0 || end > length-1 {
		end = length - 1
	}
	if start > end {
		return 0, 0, ErrInvalidRange
	}
	return start, end, nil
}
