package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const bucketName = "media"

// GridFS stores blobs as chunked objects in a MongoDB GridFS bucket. Uploads
// only become visible once the upload stream closes cleanly; an aborted
// stream removes any chunks already written.
type GridFS struct {
	bucket *gridfs.Bucket
	files  *mongo.Collection
}

func NewGridFS(database *mongo.Database) (*GridFS, error) {
	bucket, err := gridfs.NewBucket(database, options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, err
	}
	return &GridFS{
		bucket: bucket,
		files:  database.Collection(bucketName + ".files"),
	}, nil
}

func (s *GridFS) Upload(ctx context.Context, filename string, metadata map[string]string, r io.Reader) (string, error) {
	meta := bson.M{}
	for k, v := range metadata {
		meta[k] = v
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = s.bucket.SetWriteDeadline(deadline)
	}
	stream, err := s.bucket.OpenUploadStream(filename, options.GridFSUpload().SetMetadata(meta))
	if err != nil {
		return "", fmt.Errorf("open upload stream: %w", err)
	}

	buf := make([]byte, 32*1024)
	if _, err := io.CopyBuffer(stream, r, buf); err != nil {
		_ = stream.Abort()
		return "", fmt.Errorf("upload %q: %w", filename, err)
	}
	if err := stream.Close(); err != nil {
		return "", fmt.Errorf("finish upload %q: %w", filename, err)
	}

	id, ok := stream.FileID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected file id type %T", stream.FileID)
	}
	return id.Hex(), nil
}

// fileDoc mirrors the GridFS files-collection schema.
type fileDoc struct {
	ID       primitive.ObjectID `bson:"_id"`
	Length   int64              `bson:"length"`
	Filename string             `bson:"filename"`
	Metadata map[string]string  `bson:"metadata"`
}

func (s *GridFS) Stat(ctx context.Context, id string) (*BlobInfo, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var doc fileDoc
	if err := s.files.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat blob %s: %w", id, err)
	}

	return &BlobInfo{
		ID:       doc.ID.Hex(),
		Filename: doc.Filename,
		Length:   doc.Length,
		Metadata: doc.Metadata,
	}, nil
}

func (s *GridFS) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.Stat(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *GridFS) Open(ctx context.Context, id string) (*Download, error) {
	info, err := s.Stat(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.openWindow(ctx, info, 0, info.Length-1)
}

func (s *GridFS) OpenRange(ctx context.Context, id string, start, end int64) (*Download, error) {
	info, err := s.Stat(ctx, id)
	if err != nil {
		return nil, err
	}
	start, end, err = checkRange(start, end, info.Length)
	if err != nil {
		return nil, err
	}
	return s.openWindow(ctx, info, start, end)
}

func (s *GridFS) openWindow(ctx context.Context, info *BlobInfo, start, end int64) (*Download, error) {
	oid, err := parseID(info.ID)
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = s.bucket.SetReadDeadline(deadline)
	}
	stream, err := s.bucket.OpenDownloadStream(oid)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open blob %s: %w", info.ID, err)
	}
	if start > 0 {
		if _, err := stream.Skip(start); err != nil {
			_ = stream.Close()
			return nil, fmt.Errorf("seek blob %s to %d: %w", info.ID, start, err)
		}
	}

	return &Download{
		BlobInfo: *info,
		Start:    start,
		End:      end,
		Body:     newBoundedReader(stream, end-start+1),
	}, nil
}

func (s *GridFS) Delete(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.bucket.SetWriteDeadline(deadline)
	}
	if err := s.bucket.Delete(oid); err != nil {
		// Idempotent: a concurrent or repeated delete is fine.
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil
		}
		return fmt.Errorf("delete blob %s: %w", id, err)
	}
	return nil
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return oid, nil
}

// boundedReader limits a download stream to a byte window while keeping the
// underlying stream closable.
type boundedReader struct {
	r io.Reader
	c io.Closer
}

func newBoundedReader(rc io.ReadCloser, n int64) io.ReadCloser {
	return &boundedReader{r: io.LimitReader(rc, n), c: rc}
}

func (b *boundedReader) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b *boundedReader) Close() error               { return b.c.Close() }
