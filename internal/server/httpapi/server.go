// Package httpapi exposes the audio pipeline over HTTP: multipart upload
// and streaming download of recordings attached to (user, phrase) slots,
// plus entity lookups, a health probe and Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ekoaw/phraseaudio/internal/common"
	"github.com/ekoaw/phraseaudio/internal/logging"
	"github.com/ekoaw/phraseaudio/internal/server/metrics"
	"github.com/ekoaw/phraseaudio/internal/server/models"
	"github.com/ekoaw/phraseaudio/internal/server/repositories/phrases"
	"github.com/ekoaw/phraseaudio/internal/server/repositories/users"
	"github.com/ekoaw/phraseaudio/internal/server/services"
)

// multipart form field carrying the uploaded recording
const uploadFieldName = "audio_file"

// maxUploadMemory bounds the in-memory part of multipart parsing; larger
// bodies spill to disk.
const maxUploadMemory = 32 << 20

// AudioPipeline is the part of the audio service the HTTP layer depends on.
type AudioPipeline interface {
	Upload(ctx context.Context, req services.AudioRequest, filename string, body io.Reader) (*models.AudioFile, error)
	Download(ctx context.Context, req services.AudioRequest, format string) (*services.Download, error)
}

// Server routes HTTP requests to the audio pipeline and the entity
// repositories.
type Server struct {
	audio   AudioPipeline
	users   users.Repository
	phrases phrases.Repository
	metrics *metrics.Metrics
	logger  logging.Logger
	mux     *http.ServeMux
}

func NewServer(
	audio AudioPipeline,
	usersRepo users.Repository,
	phrasesRepo phrases.Repository,
	m *metrics.Metrics,
	logger logging.Logger,
) *Server {
	s := &Server{
		audio:   audio,
		users:   usersRepo,
		phrases: phrasesRepo,
		metrics: m,
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /audio/user/{userId}/phrase/{phraseId}",
		s.withMetrics("/audio/user/{userId}/phrase/{phraseId}", s.handleUpload))
	s.mux.HandleFunc("GET /audio/user/{userId}/phrase/{phraseId}",
		s.withMetrics("/audio/user/{userId}/phrase/{phraseId}", s.handleDownload))

	s.mux.HandleFunc("GET /audio/user/{id}",
		s.withMetrics("/audio/user/{id}", s.handleGetUser))
	s.mux.HandleFunc("GET /audio/phrase/{id}",
		s.withMetrics("/audio/phrase/{id}", s.handleGetPhrase))

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", s.metrics.Handler())
}

// Handler returns the fully routed handler for use by an http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// withMetrics records a request counter labelled with the route pattern and
// the response status.
func (s *Server) withMetrics(pattern string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		handler(ww, r)
		s.metrics.HTTPRequests.WithLabelValues(r.Method, pattern, strconv.Itoa(ww.status)).Inc()
	}
}

// statusWriter captures the response status code for instrumentation.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// envelope is the uniform JSON body for non-streaming responses.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(context.Background(), "failed to encode response", "error", err)
	}
}

func (s *Server) writeSuccess(w http.ResponseWriter, message string) {
	s.writeJSON(w, http.StatusOK, envelope{Status: "success", Message: message})
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, envelope{Status: "error", Message: message})
}

// writeServiceError maps a pipeline error kind to an HTTP status and writes
// the envelope. Internal failures are not echoed back to the client.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrInvalidFormat),
		errors.Is(err, common.ErrPreconditionFailed):
		s.writeError(w, http.StatusPreconditionFailed, errorMessage(err))
	case errors.Is(err, common.ErrNotFound):
		s.writeError(w, http.StatusNotFound, errorMessage(err))
	case errors.Is(err, common.ErrUnsupportedFormat):
		// a client mistake, but reported the way the service always has
		s.writeError(w, http.StatusInternalServerError, errorMessage(err))
	default:
		s.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// errorMessage strips the sentinel kind prefix so clients see only the
// human-readable part.
func errorMessage(err error) string {
	msg := err.Error()
	for _, kind := range []error{
		common.ErrInvalidFormat,
		common.ErrPreconditionFailed,
		common.ErrNotFound,
		common.ErrUnsupportedFormat,
		common.ErrConversionFailed,
	} {
		msg = strings.TrimPrefix(msg, kind.Error()+": ")
	}
	return msg
}

// pathRequest extracts the (user, phrase) slot from the route's path values.
func pathRequest(r *http.Request) (services.AudioRequest, error) {
	userID, err := strconv.Atoi(r.PathValue("userId"))
	if err != nil {
		return services.AudioRequest{}, fmt.Errorf("invalid user id %q", r.PathValue("userId"))
	}
	phraseID, err := strconv.Atoi(r.PathValue("phraseId"))
	if err != nil {
		return services.AudioRequest{}, fmt.Errorf("invalid phrase id %q", r.PathValue("phraseId"))
	}
	return services.AudioRequest{UserID: userID, PhraseID: phraseID}, nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	req, err := pathRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.writeError(w, http.StatusBadRequest, "expected multipart form data")
		return
	}
	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing form file "+uploadFieldName)
		return
	}
	defer file.Close()

	if _, err := s.audio.Upload(r.Context(), req, header.Filename, file); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeSuccess(w, "audio file saved")
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	req, err := pathRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "m4a"
	}

	dl, err := s.audio.Download(r.Context(), req, format)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer dl.Content.Close()

	w.Header().Set("Content-Type", "audio/"+strings.ToLower(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.Filename))
	if _, err := io.Copy(w, dl.Content); err != nil {
		// headers are already out, nothing to do but log
		s.logger.Warn(r.Context(), "download stream interrupted",
			"user_id", req.UserID, "phrase_id", req.PhraseID, "error", err)
	}
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid user id "+strconv.Quote(r.PathValue("id")))
		return
	}

	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("user %d not found", id))
			return
		}
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleGetPhrase(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid phrase id "+strconv.Quote(r.PathValue("id")))
		return
	}

	phrase, err := s.phrases.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("phrase %d not found", id))
			return
		}
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, phrase)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
