// Package http exposes the practice pipeline over a JSON REST API.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"violin-coach-service/internal/app"
	"violin-coach-service/internal/catalog"
	"violin-coach-service/internal/observability/logging"
	"violin-coach-service/internal/service/pitch"
	"violin-coach-service/internal/service/pose"
	"violin-coach-service/internal/service/posture"
	"violin-coach-service/internal/service/session"
	"violin-coach-service/internal/store"
)

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logging.WithComponent("http")))
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, req *http.Request) {
		if err := application.Ready(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	h := &handlers{app: application}

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.startSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", h.getSession)
				r.Post("/end", h.endSession)
				r.Post("/frames", h.postFrame)
				r.Post("/notes", h.postNote)
			})
		})

		r.Route("/users/{username}", func(r chi.Router) {
			r.Post("/calibration", h.saveCalibration)
			r.Get("/calibration", h.getCalibration)
			r.Get("/sessions", h.listSessions)
		})

		r.Get("/pieces", h.listPieces)
		r.Get("/pieces/{name}", h.getPiece)
	})

	return r
}

// requestLogger logs one line per handled request.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("requestId", middleware.GetReqID(r.Context())).
				Msg("Request handled")
		})
	}
}

type handlers struct {
	app *app.Application
}

type startSessionRequest struct {
	Username  string `json:"username"`
	PieceName string `json:"pieceName"`
}

type frameRequest struct {
	Keypoints []pose.Keypoint `json:"keypoints"`
	// Timestamp is the capture time in Unix milliseconds. Zero means now.
	Timestamp int64 `json:"timestamp,omitempty"`
}

type noteRequest struct {
	NoteName   string  `json:"noteName"`
	Frequency  float64 `json:"frequency,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	DurationMs int64   `json:"durationMs,omitempty"`
}

type calibrationRequest struct {
	Name      string          `json:"name"`
	Keypoints []pose.Keypoint `json:"keypoints"`
}

type calibrationResponse struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Active    bool               `json:"active"`
	CreatedAt time.Time          `json:"createdAt"`
	Reference *posture.Reference `json:"reference"`
}

func (h *handlers) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	row, err := h.app.StartSession(r.Context(), req.Username, req.PieceName)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (h *handlers) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	snap, err := h.app.SessionSnapshot(r.Context(), id)
	if err == nil {
		writeJSON(w, http.StatusOK, snap)
		return
	}
	if !errors.Is(err, session.ErrEnded) {
		writeMappedError(w, err)
		return
	}

	// The session has ended; serve the stored summary row.
	row, err := h.app.Sessions.GetByID(r.Context(), id)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (h *handlers) endSession(w http.ResponseWriter, r *http.Request) {
	summary, err := h.app.EndSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *handlers) postFrame(w http.ResponseWriter, r *http.Request) {
	var req frameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ts := time.Now().UTC()
	if req.Timestamp > 0 {
		ts = time.UnixMilli(req.Timestamp).UTC()
	}
	frame, err := pose.FrameFromKeypoints(req.Keypoints, ts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.app.ProcessFrame(r.Context(), chi.URLParam(r, "sessionID"), &frame)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	if res.Dropped {
		writeJSON(w, http.StatusAccepted, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) postNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.NoteName == "" {
		writeError(w, http.StatusBadRequest, "noteName is required")
		return
	}
	if req.Frequency <= 0 {
		req.Frequency = pitch.Frequency(req.NoteName)
	}

	note := pitch.NoteEvent{
		Timestamp:  time.Now().UTC(),
		NoteName:   req.NoteName,
		Frequency:  req.Frequency,
		Confidence: req.Confidence,
		DurationMs: req.DurationMs,
	}
	stored, err := h.app.ProcessNote(r.Context(), chi.URLParam(r, "sessionID"), note)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (h *handlers) saveCalibration(w http.ResponseWriter, r *http.Request) {
	var req calibrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	frame, err := pose.FrameFromKeypoints(req.Keypoints, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, reference, err := h.app.SaveCalibration(r.Context(), chi.URLParam(r, "username"), req.Name, &frame)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, calibrationResponse{
		ID:        profile.ID,
		Name:      profile.Name,
		Active:    profile.Active,
		CreatedAt: profile.CreatedAt,
		Reference: reference,
	})
}

func (h *handlers) getCalibration(w http.ResponseWriter, r *http.Request) {
	profile, reference, err := h.app.ActiveCalibration(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, calibrationResponse{
		ID:        profile.ID,
		Name:      profile.Name,
		Active:    profile.Active,
		CreatedAt: profile.CreatedAt,
		Reference: reference,
	})
}

func (h *handlers) listSessions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}

	rows, err := h.app.ListUserSessions(r.Context(), chi.URLParam(r, "username"), limit)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *handlers) listPieces(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Catalog.Pieces())
}

func (h *handlers) getPiece(w http.ResponseWriter, r *http.Request) {
	piece, err := h.app.Catalog.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, piece)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeMappedError translates domain errors into HTTP status codes.
func writeMappedError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, catalog.ErrUnknownPiece):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrNotStarted),
		errors.Is(err, session.ErrAlreadyActive),
		errors.Is(err, session.ErrEnded):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
