package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory keeps blobs in process memory. It honors the same contract as the
// GridFS store, including id shape, so tests and Mongo-less development runs
// exercise the exact code paths used in production.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string]memBlob
}

type memBlob struct {
	info BlobInfo
	data []byte
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[string]memBlob)}
}

func (s *Memory) Upload(ctx context.Context, filename string, metadata map[string]string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		// Nothing becomes visible on a failed read.
		return "", fmt.Errorf("upload %q: %w", filename, err)
	}

	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	id := primitive.NewObjectID().Hex()

	s.mu.Lock()
	s.blobs[id] = memBlob{
		info: BlobInfo{ID: id, Filename: filename, Length: int64(len(data)), Metadata: meta},
		data: data,
	}
	s.mu.Unlock()
	return id, nil
}

func (s *Memory) get(id string) (memBlob, error) {
	if _, err := parseID(id); err != nil {
		return memBlob{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[id]
	if !ok {
		return memBlob{}, ErrNotFound
	}
	return b, nil
}

func (s *Memory) Stat(ctx context.Context, id string) (*BlobInfo, error) {
	b, err := s.get(id)
	if err != nil {
		return nil, err
	}
	info := b.info
	return &info, nil
}

func (s *Memory) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.get(id)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Memory) Open(ctx context.Context, id string) (*Download, error) {
	b, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return &Download{
		BlobInfo: b.info,
		Start:    0,
		End:      b.info.Length - 1,
		Body:     io.NopCloser(bytes.NewReader(b.data)),
	}, nil
}

func (s *Memory) OpenRange(ctx context.Context, id string, start, end int64) (*Download, error) {
	b, err := s.get(id)
	if err != nil {
		return nil, err
	}
	start, end, err = checkRange(start, end, b.info.Length)
	if err != nil {
		return nil, err
	}
	return &Download{
		BlobInfo: b.info,
		Start:    start,
		End:      end,
		Body:     io.NopCloser(bytes.NewReader(b.data[start : end+1])),
	}, nil
}

func (s *Memory) Delete(ctx context.Context, id string) error {
	if _, err := parseID(id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.blobs, id)
	s.mu.Unlock()
	return nil
}
