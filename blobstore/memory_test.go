package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func TestMemoryUploadOpenRoundTrip(t *testing.T) {
	store := NewMemory()
	payload := bytes.Repeat([]byte("abcdefgh"), 1000)

	id, err := store.Upload(context.Background(), "clip.mp4", map[string]string{"type": "video"}, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	dl, err := store.Open(context.Background(), id)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer dl.Body.Close()

	if dl.Length != int64(len(payload)) {
		t.Fatalf("length = %d, want %d", dl.Length, len(payload))
	}
	if dl.Metadata["type"] != "video" {
		t.Fatalf("metadata type = %q, want video", dl.Metadata["type"])
	}
	got, err := io.ReadAll(dl.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("round-trip body mismatch")
	}
}

func TestMemoryOpenRange(t *testing.T) {
	store := NewMemory()
	payload := make([]byte, 5000)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	id, err := store.Upload(context.Background(), "cat.jpg", nil, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	dl, err := store.OpenRange(context.Background(), id, 100, 299)
	if err != nil {
		t.Fatalf("open range: %v", err)
	}
	defer dl.Body.Close()

	if dl.Start != 100 || dl.End != 299 {
		t.Fatalf("window = [%d,%d], want [100,299]", dl.Start, dl.End)
	}
	got, _ := io.ReadAll(dl.Body)
	if len(got) != 200 {
		t.Fatalf("got %d bytes, want 200", len(got))
	}
	if !bytes.Equal(got, payload[100:300]) {
		t.Fatal("range body mismatch")
	}

	// Open-ended range runs through the last byte.
	dl, err = store.OpenRange(context.Background(), id, 4990, -1)
	if err != nil {
		t.Fatalf("open-ended range: %v", err)
	}
	defer dl.Body.Close()
	if dl.End != 4999 {
		t.Fatalf("open-ended End = %d, want 4999", dl.End)
	}

	// End beyond the object clamps rather than failing.
	dl, err = store.OpenRange(context.Background(), id, 0, 999999)
	if err != nil {
		t.Fatalf("clamped range: %v", err)
	}
	defer dl.Body.Close()
	if dl.End != 4999 {
		t.Fatalf("clamped End = %d, want 4999", dl.End)
	}
}

func TestMemoryRangeErrors(t *testing.T) {
	store := NewMemory()
	id, err := store.Upload(context.Background(), "x", nil, bytes.NewReader([]byte("0123456789")))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if _, err := store.OpenRange(context.Background(), id, 10, -1); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("start past end of object: err = %v, want ErrInvalidRange", err)
	}
	if _, err := store.OpenRange(context.Background(), id, 5, 2); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("start > end: err = %v, want ErrInvalidRange", err)
	}
}

func TestMemoryInvalidAndMissingIDs(t *testing.T) {
	store := NewMemory()

	if _, err := store.Open(context.Background(), "not-a-valid-id"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("malformed id: err = %v, want ErrInvalidID", err)
	}
	if _, err := store.Open(context.Background(), "aaaaaaaaaaaaaaaaaaaaaaaa"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown id: err = %v, want ErrNotFound", err)
	}
	ok, err := store.Exists(context.Background(), "aaaaaaaaaaaaaaaaaaaaaaaa")
	if err != nil || ok {
		t.Fatalf("exists = %v, %v; want false, nil", ok, err)
	}
}

func TestMemoryDeleteIdempotent(t *testing.T) {
	store := NewMemory()
	id, err := store.Upload(context.Background(), "x", nil, bytes.NewReader([]byte("data")))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if err := store.Delete(context.Background(), id); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := store.Delete(context.Background(), id); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := store.Open(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("open after delete: err = %v, want ErrNotFound", err)
	}
}
