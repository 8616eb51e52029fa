package products

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync/atomic"
	"testing"

	"craftriver/blobstore"
	"craftriver/globals"
	"craftriver/media"
)

// countingStore records uploads so tests can assert rejected requests never
// reach the blob store.
type countingStore struct {
	blobstore.BlobStore
	uploads atomic.Int64
}

func (c *countingStore) Upload(ctx context.Context, filename string, metadata map[string]string, r io.Reader) (string, error) {
	c.uploads.Add(1)
	return c.BlobStore.Upload(ctx, filename, metadata, r)
}

type formFile struct {
	field, name, contentType string
	data                     []byte
}

func newProductRequest(t *testing.T, userID string, fields map[string]string, files []formFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %q: %v", k, err)
		}
	}
	for _, f := range files {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.name+`"`)
		hdr.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(hdr)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		part.Write(f.data)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/products", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if userID != "" {
		req = req.WithContext(context.WithValue(req.Context(), globals.UserIDKey, userID))
	}
	return req
}

func TestCreateProductRequiresAuth(t *testing.T) {
	h := &Handler{}
	rec := httptest.NewRecorder()
	h.CreateProduct(rec, newProductRequest(t, "", nil, nil), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestCreateProductValidation(t *testing.T) {
	h := &Handler{}
	cases := []struct {
		name   string
		fields map[string]string
	}{
		{"missing name", map[string]string{"price": "10", "stock": "1"}},
		{"bad price", map[string]string{"name": "Chair", "price": "free", "stock": "1"}},
		{"negative price", map[string]string{"name": "Chair", "price": "-5", "stock": "1"}},
		{"bad stock", map[string]string{"name": "Chair", "price": "10", "stock": "lots"}},
		{"negative stock", map[string]string{"name": "Chair", "price": "10", "stock": "-1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.CreateProduct(rec, newProductRequest(t, "seller1", tc.fields, nil), nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestCreateProductRejectsNonImageUploads(t *testing.T) {
	store := &countingStore{BlobStore: blobstore.NewMemory()}
	h := &Handler{
		Ingest: &media.Ingestor{Store: store},
		Clean:  &media.Cleaner{Store: store},
	}

	fields := map[string]string{"name": "Chair", "price": "10", "stock": "1"}
	files := []formFile{
		{"images", "photo.jpg", "image/jpeg", []byte("pixels")},
		{"images", "manual.pdf", "application/pdf", []byte("pages")},
	}
	rec := httptest.NewRecorder()
	h.CreateProduct(rec, newProductRequest(t, "seller1", fields, files), nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if n := store.uploads.Load(); n != 0 {
		t.Fatalf("store saw %d uploads from a rejected listing, want 0", n)
	}
}
