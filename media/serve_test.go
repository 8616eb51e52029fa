package media

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"craftriver/blobstore"

	"github.com/julienschmidt/httprouter"
)

func newTestRouter(store blobstore.BlobStore) *httprouter.Router {
	h := &Handler{Srv: &Server{Store: store}}
	router := httprouter.New()
	router.GET("/api/media/:id", h.GetMedia)
	return router
}

func mustUpload(t *testing.T, store blobstore.BlobStore, name string, meta map[string]string, data []byte) string {
	t.Helper()
	id, err := store.Upload(context.Background(), name, meta, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("upload %s: %v", name, err)
	}
	return id
}

func get(t *testing.T, router http.Handler, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestServeRoundTrip(t *testing.T) {
	store := blobstore.NewMemory()
	router := newTestRouter(store)

	payload := bytes.Repeat([]byte{0xAB, 0xCD}, 3000)
	id := mustUpload(t, store, "photo.jpg", map[string]string{"contentType": "image/jpeg"}, payload)

	rec := get(t, router, RefPrefix+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Length"); got != fmt.Sprint(len(payload)) {
		t.Fatalf("Content-Length = %s, want %d", got, len(payload))
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Fatalf("Accept-Ranges = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=3600" {
		t.Fatalf("Cache-Control = %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Fatal("body differs from uploaded payload")
	}
}

func TestServeContentTypePriority(t *testing.T) {
	store := blobstore.NewMemory()
	router := newTestRouter(store)
	data := []byte("not really an image")

	cases := []struct {
		name     string
		filename string
		meta     map[string]string
		want     string
	}{
		// Kind mapping applies when no explicit content type was recorded.
		{"type image maps to jpeg", "cat.jpg", map[string]string{"type": "image"}, "image/jpeg"},
		{"type video maps to mp4", "clip", map[string]string{"type": "video"}, "video/mp4"},
		// Explicit metadata beats both the kind table and the extension.
		{"metadata wins over extension", "clip.mp4", map[string]string{"contentType": "video/quicktime"}, "video/quicktime"},
		// Extension sniffing is the fallback, octet-stream the last resort.
		{"png extension", "pic.png", nil, "image/png"},
		{"webp extension", "pic.webp", nil, "image/webp"},
		{"mov extension", "clip.mov", nil, "video/quicktime"},
		{"unknown extension", "blob.bin", nil, "application/octet-stream"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := mustUpload(t, store, tc.filename, tc.meta, data)
			rec := get(t, router, RefPrefix+id, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if got := rec.Header().Get("Content-Type"); got != tc.want {
				t.Fatalf("Content-Type = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestServeRangeRequests(t *testing.T) {
	store := blobstore.NewMemory()
	router := newTestRouter(store)

	payload := make([]byte, 5000)
	for i := range payload {
		payload[i] = byte(i)
	}
	id := mustUpload(t, store, "clip.mp4", map[string]string{"contentType": "video/mp4"}, payload)

	rec := get(t, router, RefPrefix+id, map[string]string{"Range": "bytes=0-1023"})
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 0-1023/5000" {
		t.Fatalf("Content-Range = %q", got)
	}
	if got := rec.Header().Get("Content-Length"); got != "1024" {
		t.Fatalf("Content-Length = %q, want 1024", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), payload[:1024]) {
		t.Fatal("range body mismatch")
	}

	// Interior window.
	rec = get(t, router, RefPrefix+id, map[string]string{"Range": "bytes=1000-1999"})
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), payload[1000:2000]) {
		t.Fatal("interior range body mismatch")
	}

	// Open-ended range on a small object runs to the last byte.
	rec = get(t, router, RefPrefix+id, map[string]string{"Range": "bytes=4000-"})
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 4000-4999/5000" {
		t.Fatalf("Content-Range = %q", got)
	}

	// End beyond the object clamps to the final byte.
	rec = get(t, router, RefPrefix+id, map[string]string{"Range": "bytes=4500-9999"})
	if got := rec.Header().Get("Content-Range"); got != "bytes 4500-4999/5000" {
		t.Fatalf("Content-Range = %q", got)
	}
}

func TestServeOpenEndedRangeIsChunked(t *testing.T) {
	store := blobstore.NewMemory()
	router := newTestRouter(store)

	payload := make([]byte, DefaultChunkSize+4096)
	id := mustUpload(t, store, "big.mp4", map[string]string{"type": "video"}, payload)

	rec := get(t, router, RefPrefix+id, map[string]string{"Range": "bytes=0-"})
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	want := fmt.Sprintf("bytes 0-%d/%d", DefaultChunkSize-1, len(payload))
	if got := rec.Header().Get("Content-Range"); got != want {
		t.Fatalf("Content-Range = %q, want %q", got, want)
	}
	if int64(rec.Body.Len()) != DefaultChunkSize {
		t.Fatalf("body length = %d, want %d", rec.Body.Len(), DefaultChunkSize)
	}
}

func TestServeMalformedRangeFallsBackToFull(t *testing.T) {
	store := blobstore.NewMemory()
	router := newTestRouter(store)
	payload := []byte("0123456789")
	id := mustUpload(t, store, "x.bin", nil, payload)

	for _, header := range []string{"bytes=abc-def", "items=0-5", "bytes=0-5,7-9", "bytes=-500"} {
		rec := get(t, router, RefPrefix+id, map[string]string{"Range": header})
		if rec.Code != http.StatusOK {
			t.Fatalf("Range %q: status = %d, want 200 full serve", header, rec.Code)
		}
		if !bytes.Equal(rec.Body.Bytes(), payload) {
			t.Fatalf("Range %q: expected full body", header)
		}
	}
}

func TestServeUnsatisfiableRange(t *testing.T) {
	store := blobstore.NewMemory()
	router := newTestRouter(store)
	id := mustUpload(t, store, "x.bin", nil, []byte("0123456789"))

	for _, header := range []string{"bytes=10-", "bytes=500-600", "bytes=7-3"} {
		rec := get(t, router, RefPrefix+id, map[string]string{"Range": header})
		if rec.Code != http.StatusRequestedRangeNotSatisfiable {
			t.Fatalf("Range %q: status = %d, want 416", header, rec.Code)
		}
		if got := rec.Header().Get("Content-Range"); got != "bytes */10" {
			t.Fatalf("Range %q: Content-Range = %q, want bytes */10", header, got)
		}
	}
}

func TestServeMissingAndInvalidIDs(t *testing.T) {
	store := blobstore.NewMemory()
	router := newTestRouter(store)

	rec := get(t, router, RefPrefix+"zz-not-hex", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid id: status = %d, want 400", rec.Code)
	}

	rec = get(t, router, RefPrefix+"aaaaaaaaaaaaaaaaaaaaaaaa", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id: status = %d, want 404", rec.Code)
	}
}

func TestServeAfterDelete(t *testing.T) {
	store := blobstore.NewMemory()
	router := newTestRouter(store)
	id := mustUpload(t, store, "gone.jpg", nil, []byte("bye"))

	if err := store.Delete(context.Background(), id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rec := get(t, router, RefPrefix+id, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 after delete", rec.Code)
	}
	// Cleanup racing with itself must stay silent.
	if err := store.Delete(context.Background(), id); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestResolveContentTypeDirect(t *testing.T) {
	info := &blobstore.BlobInfo{Filename: "clip.mov", Metadata: map[string]string{"contentType": "video/quicktime"}}
	if got := ResolveContentType(info); got != "video/quicktime" {
		t.Fatalf("got %q", got)
	}
	info = &blobstore.BlobInfo{Filename: "CAT.JPEG", Metadata: map[string]string{}}
	if got := ResolveContentType(info); got != "image/jpeg" {
		t.Fatalf("uppercase extension: got %q", got)
	}
}
