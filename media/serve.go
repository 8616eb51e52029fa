package media

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"craftriver/blobstore"
)

// DefaultChunkSize bounds how much an open-ended range request gets per
// response; players issue follow-up requests as they buffer.
const DefaultChunkSize int64 = 1 << 20

// Server resolves media references to HTTP responses with range support.
type Server struct {
	Store blobstore.BlobStore
}

// Serve writes the blob identified by mediaID to w, honoring a Range header
// if present.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, mediaID string) {
	info, err := s.Store.Stat(r.Context(), mediaID)
	switch {
	case errors.Is(err, blobstore.ErrInvalidID):
		http.Error(w, "Invalid media ID", http.StatusBadRequest)
		return
	case errors.Is(err, blobstore.ErrNotFound):
		http.Error(w, "Media not found", http.StatusNotFound)
		return
	case err != nil:
		log.Printf("media: stat %s: %v", mediaID, err)
		http.Error(w, "Error retrieving media", http.StatusInternalServerError)
		return
	}

	contentType := ResolveContentType(info)

	// Malformed range headers are served as full content rather than
	// rejected; video players probe with unusual headers.
	start, end, hasRange := parseRangeHeader(r.Header.Get("Range"))
	if !hasRange {
		s.serveFull(w, r, info, contentType)
		return
	}

	// A parseable but unsatisfiable range is a real client error.
	if start > info.Length-1 || (end >= 0 && start > end) {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", info.Length))
		http.Error(w, "Requested range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return
	}
	if end < 0 {
		end = start + DefaultChunkSize - 1
	}
	if end > info.Length-1 {
		end = info.Length - 1
	}

	dl, err := s.Store.OpenRange(r.Context(), mediaID, start, end)
	if err != nil {
		log.Printf("media: open range %s [%d,%d]: %v", mediaID, start, end, err)
		http.Error(w, "Error retrieving media", http.StatusInternalServerError)
		return
	}
	defer dl.Body.Close()

	setCommonHeaders(w, contentType)
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", dl.Start, dl.End, info.Length))
	w.Header().Set("Content-Length", strconv.FormatInt(dl.End-dl.Start+1, 10))
	w.WriteHeader(http.StatusPartialContent)

	if r.Method == http.MethodHead {
		return
	}
	copyBody(w, dl.Body, mediaID)
}

func (s *Server) serveFull(w http.ResponseWriter, r *http.Request, info *blobstore.BlobInfo, contentType string) {
	dl, err := s.Store.Open(r.Context(), info.ID)
	if err != nil {
		log.Printf("media: open %s: %v", info.ID, err)
		http.Error(w, "Error retrieving media", http.StatusInternalServerError)
		return
	}
	defer dl.Body.Close()

	setCommonHeaders(w, contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Length, 10))
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}
	copyBody(w, dl.Body, info.ID)
}

// copyBody streams with a fixed-size buffer. Errors here arrive after the
// headers are flushed, so the connection just terminates.
func copyBody(w http.ResponseWriter, body io.Reader, id string) {
	buf := make([]byte, 32*1024)
	if _, err := io.CopyBuffer(w, body, buf); err != nil {
		log.Printf("media: stream %s: %v", id, err)
	}
}

func setCommonHeaders(w http.ResponseWriter, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "public, max-age=3600")
}

// ResolveContentType picks the response content type in fixed priority order:
// explicit metadata, declared kind, filename extension, octet-stream.
// Metadata is authoritative; the extension is only ever a fallback hint.
func ResolveContentType(info *blobstore.BlobInfo) string {
	if ct := info.Metadata["contentType"]; ct != "" {
		return ct
	}
	switch info.Metadata["type"] {
	case "image":
		return "image/jpeg"
	case "video":
		return "video/mp4"
	}

	lower := strings.ToLower(info.Filename)
	switch {
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	case strings.HasSuffix(lower, ".mp4"):
		return "video/mp4"
	case strings.HasSuffix(lower, ".mov"):
		return "video/quicktime"
	}
	return "application/octet-stream"
}

// parseRangeHeader reads a single "bytes=start-[end]" range. end is -1 when
// the range is open-ended. Anything else (missing header, other units,
// multiple ranges, junk numbers) reports no range at all.
func parseRangeHeader(header string) (start, end int64, ok bool) {
	if header == "" || !strings.HasPrefix(header, "bytes=") {
		return 0, 0, false
	}
	spec := strings.TrimPrefix(header, "bytes=")
	if strings.Contains(spec, ",") {
		return 0, 0, false
	}
	dash := strings.Index(spec, "-")
	if dash <= 0 {
		// Suffix ranges ("bytes=-500") are not supported; serve full.
		return 0, 0, false
	}

	start, err := strconv.ParseInt(strings.TrimSpace(spec[:dash]), 10, 64)
	if err != nil || start < 0 {
		return 0, 0, false
	}

	rest := strings.TrimSpace(spec[dash+1:])
	if rest == "" {
		return start, -1, true
	}
	end, err = strconv.ParseInt(rest, 10, 64)
	if err != nil || end < 0 {
		return 0, 0, false
	}
	return start, end, true
}
