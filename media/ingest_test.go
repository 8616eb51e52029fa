package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/textproto"
	"sync/atomic"
	"testing"

	"craftriver/blobstore"
)

// countingStore records how many uploads actually reach the store, so tests
// can assert that rejected uploads never write anything.
type countingStore struct {
	blobstore.BlobStore
	uploads atomic.Int64
}

func (c *countingStore) Upload(ctx context.Context, filename string, metadata map[string]string, r io.Reader) (string, error) {
	c.uploads.Add(1)
	return c.BlobStore.Upload(ctx, filename, metadata, r)
}

func makeUpload(t *testing.T, filename, contentType string, data []byte) (multipart.File, *multipart.FileHeader) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	form, err := multipart.NewReader(&buf, mw.Boundary()).ReadForm(64 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	t.Cleanup(func() { form.RemoveAll() })

	fh := form.File["file"][0]
	file, err := fh.Open()
	if err != nil {
		t.Fatalf("open form file: %v", err)
	}
	t.Cleanup(func() { file.Close() })
	return file, fh
}

func TestIngestImage(t *testing.T) {
	store := blobstore.NewMemory()
	in := &Ingestor{Store: store}

	payload := []byte("fake jpeg bytes")
	file, fh := makeUpload(t, "photo.jpg", "image/jpeg", payload)

	id, err := in.Ingest(context.Background(), file, fh, KindImage, PostPolicy)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if Ref(id) != RefPrefix+id {
		t.Fatalf("reference = %q", Ref(id))
	}

	dl, err := store.Open(context.Background(), id)
	if err != nil {
		t.Fatalf("open stored blob: %v", err)
	}
	defer dl.Body.Close()
	got, _ := io.ReadAll(dl.Body)
	if !bytes.Equal(got, payload) {
		t.Fatal("stored bytes differ from upload")
	}
	if dl.Metadata["type"] != "image" || dl.Metadata["contentType"] != "image/jpeg" {
		t.Fatalf("metadata = %v", dl.Metadata)
	}
}

func TestIngestRejectsBeforeStore(t *testing.T) {
	store := &countingStore{BlobStore: blobstore.NewMemory()}
	in := &Ingestor{Store: store}

	cases := []struct {
		name        string
		filename    string
		contentType string
		size        int
		kind        Kind
	}{
		{"empty file", "empty.jpg", "image/jpeg", 0, KindImage},
		{"non-image as image", "doc.pdf", "application/pdf", 10, KindImage},
		{"video mime off allow-list", "clip.avi", "video/x-msvideo", 10, KindVideo},
		{"video over post limit", "big.mp4", "video/mp4", int(PostPolicy.VideoMaxBytes) + 1, KindVideo},
		{"profile over limit", "huge.png", "image/png", int(ProfilePolicy.ProfileMaxBytes) + 1, KindProfile},
		{"profile not an image", "clip.mp4", "video/mp4", 10, KindProfile},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			file, fh := makeUpload(t, tc.filename, tc.contentType, make([]byte, tc.size))
			pol := PostPolicy
			if tc.kind == KindProfile {
				pol = ProfilePolicy
			}
			_, err := in.Ingest(context.Background(), file, fh, tc.kind, pol)
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
		})
	}

	if n := store.uploads.Load(); n != 0 {
		t.Fatalf("store saw %d uploads for rejected files, want 0", n)
	}
}

func TestIngestVideoLimitIsAPolicyParameter(t *testing.T) {
	store := blobstore.NewMemory()
	in := &Ingestor{Store: store}

	// 20 MiB: over the post cap, under the tutorial cap.
	size := 20 << 20
	file, fh := makeUpload(t, "build.mp4", "video/mp4", make([]byte, size))

	if _, err := in.Ingest(context.Background(), file, fh, KindVideo, PostPolicy); !errors.Is(err, ErrInvalid) {
		t.Fatalf("post policy: err = %v, want ErrInvalid", err)
	}

	file, fh = makeUpload(t, "build.mp4", "video/mp4", make([]byte, size))
	if _, err := in.Ingest(context.Background(), file, fh, KindVideo, TutorialPolicy); err != nil {
		t.Fatalf("tutorial policy: %v", err)
	}
}

func TestIngestBatchRejectsWholeBatch(t *testing.T) {
	store := &countingStore{BlobStore: blobstore.NewMemory()}
	in := &Ingestor{Store: store}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range []struct{ name, ct string }{
		{"a.jpg", "image/jpeg"},
		{"b.png", "image/png"},
		{"evil.exe", "application/octet-stream"},
	} {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="images"; filename="`+f.name+`"`)
		hdr.Set("Content-Type", f.ct)
		part, _ := mw.CreatePart(hdr)
		part.Write([]byte("data"))
	}
	mw.Close()

	form, err := multipart.NewReader(&buf, mw.Boundary()).ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	defer form.RemoveAll()

	_, err = in.IngestBatch(context.Background(), form.File["images"], KindImage, PostPolicy)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
	if n := store.uploads.Load(); n != 0 {
		t.Fatalf("store saw %d uploads from a rejected batch, want 0", n)
	}
}

func TestRefHelpers(t *testing.T) {
	id := "0123456789abcdef01234567"
	if got := IDFromRef(Ref(id)); got != id {
		t.Fatalf("IDFromRef(Ref(id)) = %q", got)
	}
	refs := Refs([]string{"a", "b"})
	if len(refs) != 2 || refs[0] != RefPrefix+"a" || refs[1] != RefPrefix+"b" {
		t.Fatalf("refs = %v", refs)
	}
}

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestIngestProfileStoredAsIsKeepsContentType(t *testing.T) {
	store := blobstore.NewMemory()
	in := &Ingestor{Store: store}

	// Under the width cap: no re-encode, so the declared type must survive.
	payload := encodePNG(t, 100, 100)
	file, fh := makeUpload(t, "avatar.png", "image/png", payload)

	id, err := in.Ingest(context.Background(), file, fh, KindProfile, ProfilePolicy)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	dl, err := store.Open(context.Background(), id)
	if err != nil {
		t.Fatalf("open stored blob: %v", err)
	}
	defer dl.Body.Close()
	got, _ := io.ReadAll(dl.Body)
	if !bytes.Equal(got, payload) {
		t.Fatal("stored bytes differ from upload")
	}
	if ct := dl.Metadata["contentType"]; ct != "image/png" {
		t.Fatalf("stored contentType = %q, want image/png for unmodified bytes", ct)
	}
}

func TestIngestProfileUndecodableKeepsContentType(t *testing.T) {
	store := blobstore.NewMemory()
	in := &Ingestor{Store: store}

	// Declared as an image but not decodable: stored untouched, type kept.
	payload := []byte("not actually pixels")
	file, fh := makeUpload(t, "weird.webp", "image/webp", payload)

	id, err := in.Ingest(context.Background(), file, fh, KindProfile, ProfilePolicy)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	dl, err := store.Open(context.Background(), id)
	if err != nil {
		t.Fatalf("open stored blob: %v", err)
	}
	defer dl.Body.Close()
	got, _ := io.ReadAll(dl.Body)
	if !bytes.Equal(got, payload) {
		t.Fatal("stored bytes differ from upload")
	}
	if ct := dl.Metadata["contentType"]; ct != "image/webp" {
		t.Fatalf("stored contentType = %q, want image/webp for unmodified bytes", ct)
	}
}

func TestIngestProfileDownscalesWideImages(t *testing.T) {
	store := blobstore.NewMemory()
	in := &Ingestor{Store: store}

	payload := encodePNG(t, profileMaxWidth*2, 64)
	file, fh := makeUpload(t, "banner.png", "image/png", payload)

	id, err := in.Ingest(context.Background(), file, fh, KindProfile, ProfilePolicy)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	dl, err := store.Open(context.Background(), id)
	if err != nil {
		t.Fatalf("open stored blob: %v", err)
	}
	defer dl.Body.Close()
	if ct := dl.Metadata["contentType"]; ct != "image/jpeg" {
		t.Fatalf("stored contentType = %q, want image/jpeg after re-encode", ct)
	}
	img, format, err := image.Decode(dl.Body)
	if err != nil {
		t.Fatalf("decode stored blob: %v", err)
	}
	if format != "jpeg" {
		t.Fatalf("stored format = %q, want jpeg", format)
	}
	if w := img.Bounds().Dx(); w != profileMaxWidth {
		t.Fatalf("stored width = %d, want %d", w, profileMaxWidth)
	}
}
