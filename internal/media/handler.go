package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"vidcast/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the media HTTP endpoints using go-chi.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Service, Logger, and optional
// Metrics. Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// writeError emits a structured JSON error body with the given status.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Stream handles GET /videos/{video_id}/stream with optional byte-range semantics.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	id := VideoID(chi.URLParam(r, "video_id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing video id")
		return
	}

	rangeSpec := r.Header.Get("Range")
	resp, err := h.svc.Stream(r.Context(), id, rangeSpec)
	if err != nil {
		h.streamError(w, r, id, rangeSpec, err)
		return
	}
	defer resp.Close()

	w.Header().Set("Content-Type", resp.ContentType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", resp.Length()))

	status := http.StatusOK
	if resp.Partial != nil {
		status = http.StatusPartialContent
		w.Header().Set("Content-Range",
			fmt.Sprintf("bytes %d-%d/%d", resp.Partial.Start, resp.Partial.End, resp.TotalSize))
		if h.metrics != nil {
			h.metrics.IncRangeRequests()
		}
	}
	w.WriteHeader(status)

	n, err := io.Copy(w, resp.Reader)
	if err != nil {
		// Headers are gone; all we can do is log the broken transfer.
		h.log.Debug("stream write aborted",
			slog.String("video_id", string(id)),
			slog.Int64("written", n),
			slog.String("error", err.Error()))
	}
	if h.metrics != nil {
		h.metrics.AddStreamBytes(n)
	}
}

func (h *Handler) streamError(w http.ResponseWriter, r *http.Request, id VideoID, rangeSpec string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "video not found")
	case errors.Is(err, ErrRangeNotSatisfiable):
		// 416 must still declare the total length so clients can retry sanely.
		if size, terr := h.svc.VideoSize(r.Context(), id); terr == nil {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		}
		writeError(w, http.StatusRequestedRangeNotSatisfiable, "requested range not satisfiable")
	case errors.Is(err, ErrMalformedRange):
		h.log.Debug("malformed range", slog.String("range", rangeSpec), slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "malformed range specification")
	default:
		h.log.Error("stream failed", slog.String("video_id", string(id)), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to stream video")
	}
}

// Thumbnail handles GET /videos/{video_id}/thumbnail. No range semantics.
func (h *Handler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	id := VideoID(chi.URLParam(r, "video_id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing video id")
		return
	}

	blob, err := h.svc.Thumbnail(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "thumbnail not found")
			return
		}
		h.log.Error("thumbnail failed", slog.String("video_id", string(id)), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to fetch thumbnail")
		return
	}
	defer blob.Close()

	w.Header().Set("Content-Type", blob.ContentType())
	w.Header().Set("Content-Length", fmt.Sprintf("%d", blob.Size()))
	w.WriteHeader(http.StatusOK)
	io.Copy(w, io.NewSectionReader(blob, 0, blob.Size()))
}

// ListVideos handles GET /videos.
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := h.svc.ListVideos(r.Context())
	if err != nil {
		h.log.Error("list videos failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list videos")
		return
	}
	if videos == nil {
		videos = []VideoMetadata{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(videos)
}

// RecordView handles POST /videos/view with body {"videoId": "..."}.
func (h *Handler) RecordView(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VideoID VideoID `json:"videoId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.VideoID == "" {
		writeError(w, http.StatusBadRequest, "missing videoId")
		return
	}

	if err := h.svc.RecordView(r.Context(), body.VideoID); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "video not found")
			return
		}
		h.log.Error("record view failed", slog.String("video_id", string(body.VideoID)), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to record view")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}
