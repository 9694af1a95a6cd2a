package media

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTestHandler(t *testing.T) (*Handler, *MemoryBlobStore, *MemoryMetadataStore) {
	t.Helper()
	blobs := NewMemoryBlobStore()
	meta := NewMemoryMetadataStore()
	svc := NewService(blobs, meta)
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewHandler(svc, log, nil), blobs, meta
}

func newTestRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/videos", func(r chi.Router) {
		r.Get("/", h.ListVideos)
		r.Post("/view", h.RecordView)
		r.Route("/{video_id}", func(r chi.Router) {
			r.Get("/stream", h.Stream)
			r.Get("/thumbnail", h.Thumbnail)
		})
	})
	return r
}

func seededContent(n int) []byte {
	content := make([]byte, n)
	for i := range content {
		content[i] = byte(i % 251)
	}
	return content
}

func TestStream_fullContent(t *testing.T) {
	h, blobs, _ := newTestHandler(t)
	r := newTestRouter(h)

	content := seededContent(1000)
	blobs.PutVideo("v1", "video/mp4", content)

	req := httptest.NewRequest(http.MethodGet, "/videos/v1/stream", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Length"); got != "1000" {
		t.Errorf("expected Content-Length 1000, got %s", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "video/mp4" {
		t.Errorf("expected video/mp4, got %s", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), content) {
		t.Error("full response body does not match blob content")
	}
}

func TestStream_partialContent(t *testing.T) {
	h, blobs, _ := newTestHandler(t)
	r := newTestRouter(h)

	content := seededContent(1000)
	blobs.PutVideo("v1", "video/mp4", content)

	req := httptest.NewRequest(http.MethodGet, "/videos/v1/stream", nil)
	req.Header.Set("Range", "bytes=200-299")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 200-299/1000" {
		t.Errorf("expected Content-Range bytes 200-299/1000, got %s", got)
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("expected Accept-Ranges bytes, got %s", got)
	}
	if got := rec.Header().Get("Content-Length"); got != "100" {
		t.Errorf("expected Content-Length 100, got %s", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), content[200:300]) {
		t.Error("partial body does not match blob slice [200,299]")
	}
}

func TestStream_openEndedRange(t *testing.T) {
	h, blobs, _ := newTestHandler(t)
	r := newTestRouter(h)

	content := seededContent(1000)
	blobs.PutVideo("v1", "video/mp4", content)

	req := httptest.NewRequest(http.MethodGet, "/videos/v1/stream", nil)
	req.Header.Set("Range", "bytes=998-")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", rec.Code)
	}
	if rec.Body.Len() != 2 {
		t.Errorf("expected body length 2, got %d", rec.Body.Len())
	}
	if !bytes.Equal(rec.Body.Bytes(), content[998:]) {
		t.Error("body does not cover indices 998-999")
	}
}

func TestStream_rangeNotSatisfiable(t *testing.T) {
	h, blobs, _ := newTestHandler(t)
	r := newTestRouter(h)

	blobs.PutVideo("v1", "video/mp4", seededContent(1000))

	req := httptest.NewRequest(http.MethodGet, "/videos/v1/stream", nil)
	req.Header.Set("Range", "bytes=1000-")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("expected 416, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes */1000" {
		t.Errorf("expected Content-Range bytes */1000, got %s", got)
	}
}

func TestStream_invertedRange(t *testing.T) {
	h, blobs, _ := newTestHandler(t)
	r := newTestRouter(h)

	blobs.PutVideo("v1", "video/mp4", seededContent(1000))

	req := httptest.NewRequest(http.MethodGet, "/videos/v1/stream", nil)
	req.Header.Set("Range", "bytes=300-200")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Errorf("expected 416, got %d", rec.Code)
	}
}

func TestStream_malformedRange(t *testing.T) {
	h, blobs, _ := newTestHandler(t)
	r := newTestRouter(h)

	blobs.PutVideo("v1", "video/mp4", seededContent(1000))

	req := httptest.NewRequest(http.MethodGet, "/videos/v1/stream", nil)
	req.Header.Set("Range", "bytes=-500")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("suffix range should be rejected with 400, got %d", rec.Code)
	}
}

func TestStream_notFound(t *testing.T) {
	h, _, _ := newTestHandler(t)
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/videos/missing/stream", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected structured error body, got %q", rec.Body.String())
	}
	if body["error"] == "" {
		t.Error("expected error field in body")
	}
}

func TestThumbnail(t *testing.T) {
	h, blobs, _ := newTestHandler(t)
	r := newTestRouter(h)

	blobs.PutThumbnail("v1", "image/jpeg", []byte("jpegbytes"))

	req := httptest.NewRequest(http.MethodGet, "/videos/v1/thumbnail", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", got)
	}
	if rec.Body.String() != "jpegbytes" {
		t.Errorf("unexpected thumbnail body: %q", rec.Body.String())
	}
}

func TestThumbnail_notFound(t *testing.T) {
	h, _, _ := newTestHandler(t)
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/videos/missing/thumbnail", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestListVideos(t *testing.T) {
	h, _, meta := newTestHandler(t)
	r := newTestRouter(h)

	for i := 0; i < 3; i++ {
		meta.Put(VideoMetadata{ID: VideoID("v" + strconv.Itoa(i)), Title: "t", UserID: "u1"})
	}

	req := httptest.NewRequest(http.MethodGet, "/videos/", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var videos []VideoMetadata
	if err := json.Unmarshal(rec.Body.Bytes(), &videos); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(videos) != 3 {
		t.Errorf("expected 3 videos, got %d", len(videos))
	}
}

func TestRecordView(t *testing.T) {
	h, _, meta := newTestHandler(t)
	r := newTestRouter(h)

	meta.Put(VideoMetadata{ID: "v1", Title: "t"})

	body, _ := json.Marshal(map[string]string{"videoId": "v1"})
	req := httptest.NewRequest(http.MethodPost, "/videos/view", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	videos, _ := meta.List(req.Context())
	if videos[0].Views != 1 {
		t.Errorf("expected view count 1, got %d", videos[0].Views)
	}
}

func TestRecordView_missingBody(t *testing.T) {
	h, _, _ := newTestHandler(t)
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/videos/view", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
