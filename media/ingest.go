package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"strings"

	"craftriver/blobstore"
	"craftriver/utils"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// RefPrefix is how owning entities reference stored blobs.
const RefPrefix = "/api/media/"

// Kind is the declared category of an upload.
type Kind string

const (
	KindImage   Kind = "image"
	KindVideo   Kind = "video"
	KindProfile Kind = "profile"
)

// ErrInvalid marks uploads rejected by validation. Handlers map it to 400.
var ErrInvalid = errors.New("invalid media upload")

// Policy carries the upload limits for one call site. Limits are parameters:
// posts and tutorials cap videos differently.
type Policy struct {
	VideoMaxBytes     int64
	ProfileMaxBytes   int64
	AllowedVideoMIMEs []string
}

var (
	PostPolicy     = Policy{VideoMaxBytes: 15 << 20, AllowedVideoMIMEs: []string{"video/mp4", "video/quicktime"}}
	TutorialPolicy = Policy{VideoMaxBytes: 50 << 20, AllowedVideoMIMEs: []string{"video/mp4", "video/quicktime"}}
	ProfilePolicy  = Policy{ProfileMaxBytes: 5 << 20}
)

// Profile pictures wider than this get downscaled before storage.
const profileMaxWidth = 512

// Ingestor is the gatekeeper between HTTP uploads and the blob store.
type Ingestor struct {
	Store blobstore.BlobStore
}

// Validate checks an upload header against the policy without reading the
// body. Batch callers run this over every file before any upload starts.
func (in *Ingestor) Validate(header *multipart.FileHeader, kind Kind, pol Policy) error {
	if header == nil || header.Size == 0 {
		return fmt.Errorf("%w: empty file", ErrInvalid)
	}
	// The filename extension is never consulted here; only the declared
	// Content-Type counts for validation.
	contentType := header.Header.Get("Content-Type")

	switch kind {
	case KindImage:
		if !strings.HasPrefix(contentType, "image/") {
			return fmt.Errorf("%w: only image files are supported, got %q", ErrInvalid, contentType)
		}
	case KindVideo:
		allowed := false
		for _, m := range pol.AllowedVideoMIMEs {
			if contentType == m {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: invalid video format %q, allowed formats: %s",
				ErrInvalid, contentType, strings.Join(pol.AllowedVideoMIMEs, ", "))
		}
		if header.Size > pol.VideoMaxBytes {
			return fmt.Errorf("%w: video size %d exceeds limit of %d bytes", ErrInvalid, header.Size, pol.VideoMaxBytes)
		}
	case KindProfile:
		if !strings.HasPrefix(contentType, "image/") {
			return fmt.Errorf("%w: profile picture must be an image, got %q", ErrInvalid, contentType)
		}
		if header.Size > pol.ProfileMaxBytes {
			return fmt.Errorf("%w: profile picture size %d exceeds limit of %d bytes", ErrInvalid, header.Size, pol.ProfileMaxBytes)
		}
	default:
		return fmt.Errorf("%w: unknown media kind %q", ErrInvalid, kind)
	}
	return nil
}

// Ingest validates one upload and streams it into the blob store, returning
// the new blob id. A rejected upload writes nothing; a failed stream leaves no
// visible blob (the store aborts partial uploads).
func (in *Ingestor) Ingest(ctx context.Context, file multipart.File, header *multipart.FileHeader, kind Kind, pol Policy) (string, error) {
	if err := in.Validate(header, kind, pol); err != nil {
		return "", err
	}

	contentType := header.Header.Get("Content-Type")
	metadata := map[string]string{
		"type":        string(kind),
		"contentType": contentType,
	}
	filename := utils.SanitizeFilename(header.Filename)
	if filename == "file" {
		filename = "media_" + string(kind)
	}

	var body io.Reader = file
	if kind == KindProfile {
		resized, reencoded, err := downscaleProfile(file, pol.ProfileMaxBytes)
		if err != nil {
			return "", err
		}
		body = resized
		// Only a re-encode changes what the bytes actually are; stored-as-is
		// uploads keep their declared content type.
		if reencoded {
			metadata["contentType"] = "image/jpeg"
		}
	}

	// Declared sizes are not trusted past this point: the guard makes an
	// over-long stream fail mid-copy so the store aborts instead of
	// committing a blob that validation would have rejected.
	if max := maxFor(kind, pol); max > 0 {
		body = &limitGuard{r: body, remaining: max}
	}

	id, err := in.Store.Upload(ctx, filename, metadata, body)
	if err != nil {
		return "", err
	}
	return id, nil
}

// IngestBatch validates every file first and only then uploads, so a batch
// with one bad file is rejected before any bytes reach the store. If an
// upload fails partway through the batch, blobs stored so far are deleted.
func (in *Ingestor) IngestBatch(ctx context.Context, headers []*multipart.FileHeader, kind Kind, pol Policy) ([]string, error) {
	for _, h := range headers {
		if err := in.Validate(h, kind, pol); err != nil {
			return nil, err
		}
	}

	var ids []string
	for _, h := range headers {
		file, err := h.Open()
		if err != nil {
			in.discard(ctx, ids)
			return nil, fmt.Errorf("open %q: %w", h.Filename, err)
		}
		id, err := in.Ingest(ctx, file, h, kind, pol)
		file.Close()
		if err != nil {
			in.discard(ctx, ids)
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (in *Ingestor) discard(ctx context.Context, ids []string) {
	cleaner := Cleaner{Store: in.Store}
	cleaner.OnOwnerDeleted(ctx, ids)
}

func maxFor(kind Kind, pol Policy) int64 {
	switch kind {
	case KindVideo:
		return pol.VideoMaxBytes
	case KindProfile:
		return pol.ProfileMaxBytes
	}
	return 0
}

// downscaleProfile re-encodes wide profile pictures as JPEG capped at
// profileMaxWidth. The bool reports whether a re-encode happened; false means
// the original bytes go to the store unmodified (small enough, or not
// decodable as an image we can re-encode).
func downscaleProfile(file multipart.File, maxBytes int64) (io.Reader, bool, error) {
	raw, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, false, fmt.Errorf("read profile picture: %w", err)
	}
	if int64(len(raw)) > maxBytes {
		return nil, false, fmt.Errorf("%w: profile picture exceeds limit of %d bytes", ErrInvalid, maxBytes)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return bytes.NewReader(raw), false, nil
	}
	if img.Bounds().Dx() <= profileMaxWidth {
		return bytes.NewReader(raw), false, nil
	}

	resized := imaging.Resize(img, profileMaxWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 90}); err != nil {
		return bytes.NewReader(raw), false, nil
	}
	return &buf, true, nil
}

// limitGuard fails the stream once more than remaining bytes pass through.
type limitGuard struct {
	r         io.Reader
	remaining int64
}

func (g *limitGuard) Read(p []byte) (int, error) {
	n, err := g.r.Read(p)
	g.remaining -= int64(n)
	if g.remaining < 0 {
		return n, fmt.Errorf("%w: upload exceeds declared size limit", ErrInvalid)
	}
	return n, err
}

// Ref converts a blob id to the reference string stored in owner records.
func Ref(id string) string {
	return RefPrefix + id
}

// Refs maps blob ids to reference strings, preserving order.
func Refs(ids []string) []string {
	refs := make([]string, len(ids))
	for i, id := range ids {
		refs[i] = Ref(id)
	}
	return refs
}

// IDFromRef recovers the blob id from a stored reference.
func IDFromRef(ref string) string {
	return strings.TrimPrefix(ref, RefPrefix)
}
