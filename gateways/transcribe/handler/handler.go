package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/deporecord/backend/gateways/transcribe/cleanup"
	"github.com/deporecord/backend/gateways/transcribe/pipeline"
	"github.com/deporecord/backend/pkg/apperr"
	pkgjson "github.com/deporecord/backend/pkg/json"
	"github.com/deporecord/backend/pkg/logger"
	"github.com/deporecord/backend/pkg/metrics"
)

type Handler struct {
	pipe    *pipeline.Pipeline
	log     *slog.Logger
	timeout time.Duration
}

func New(pipe *pipeline.Pipeline, log *slog.Logger, timeout time.Duration) *Handler {
	return &Handler{
		pipe:    pipe,
		log:     log,
		timeout: timeout,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/transcribe", h.Transcribe)
	r.Get("/api/health", h.Health)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	pkgjson.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type urlRequest struct {
	URL string `json:"url"`
}

// Transcribe accepts either a multipart file upload or a JSON body with a
// video URL. Temp files created along the way are drained before the
// response is written, and again in a defer in case of a panic.
func (h *Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, h.log)

	tracker := cleanup.NewTracker()
	defer tracker.Drain(ctx)

	h.log.Info("transcribe request received",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("content_type", r.Header.Get("Content-Type")))

	source := "upload"
	var result json.RawMessage
	var err error

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "multipart/form-data"):
		result, err = h.fromUpload(ctx, tracker, r)
	case strings.HasPrefix(contentType, "application/json"):
		source = "url"
		result, err = h.fromURL(ctx, tracker, r)
	default:
		err = apperr.New(apperr.KindValidation,
			"Invalid content type. Expected multipart/form-data or application/json")
	}

	// Scratch files must be gone before the caller sees the response.
	tracker.Drain(ctx)

	if err != nil {
		status := apperr.Status(err)
		h.log.Warn("transcribe request failed",
			slog.String("source", source),
			slog.Int("status", status),
			slog.String("kind", apperr.KindOf(err).String()),
			slog.String("error", err.Error()))
		metrics.Default.RecordRequest(source, outcome(status), time.Since(start).Seconds())
		pkgjson.WriteError(w, status, err)
		return
	}

	metrics.Default.RecordRequest(source, "ok", time.Since(start).Seconds())
	h.log.Info("transcribe request completed",
		slog.String("source", source),
		slog.Duration("elapsed", time.Since(start)))
	pkgjson.WriteJSON(w, http.StatusOK, map[string]json.RawMessage{"transcription": result})
}

func (h *Handler) fromUpload(ctx context.Context, tracker *cleanup.Tracker, r *http.Request) (json.RawMessage, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "Invalid multipart request", err)
	}

	part, err := firstFilePart(mr)
	if err != nil {
		return nil, err
	}
	defer part.Close()

	return h.pipe.FromUpload(ctx, tracker, part, part.FileName())
}

func (h *Handler) fromURL(ctx context.Context, tracker *cleanup.Tracker, r *http.Request) (json.RawMessage, error) {
	var req urlRequest
	if err := pkgjson.ParseJSON(r, &req); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "Invalid JSON body", err)
	}

	return h.pipe.FromURL(ctx, tracker, req.URL)
}

// firstFilePart returns the single file field of the upload. Only one file
// per request is accepted.
func firstFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, apperr.New(apperr.KindValidation, "Invalid request. No file provided")
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "Invalid multipart request", err)
		}
		if part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

func outcome(status int) string {
	if status >= 400 && status < 500 {
		return "client_error"
	}
	return "server_error"
}
