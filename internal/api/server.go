// Package api exposes audit sessions to a UI over HTTP. The UI only reads snapshots and
// asks for new audits or resets; every state change still goes through the session reducer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ppiankov/factaudit/internal/audit"
	"github.com/ppiankov/factaudit/internal/model"
	"github.com/ppiankov/factaudit/internal/pipeline"
	"go.uber.org/zap"
)

// Auditor runs one audit into a run handle
type Auditor interface {
	Audit(ctx context.Context, run *audit.Run, in pipeline.Input) (*model.Report, error)
}

// Server serves the session API
type Server struct {
	auditor  Auditor
	sessions *registry
	logger   *zap.Logger
	started  time.Time

	// runs outlive the request that started them
	baseCtx context.Context
	stop    context.CancelFunc
}

// NewServer creates a server
func NewServer(auditor Auditor, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		auditor:  auditor,
		sessions: newRegistry(),
		logger:   logger,
		started:  time.Now(),
		baseCtx:  ctx,
		stop:     cancel,
	}
}

// Routes returns the router with all endpoints mounted
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(Logging(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Post("/audits", s.startAudit)
			r.Post("/reset", s.resetSession)
		})
	})

	return r
}

// Close cancels every in-flight audit
func (s *Server) Close() {
	s.sessions.cancelAll()
	s.stop()
}

type sessionResponse struct {
	ID string `json:"id"`
	audit.Snapshot
	Score *model.ScoreBreakdown `json:"score,omitempty"`
	LLM   *model.LLMSummary     `json:"llm,omitempty"`
}

type startAuditRequest struct {
	Source string `json:"source,omitempty"` // File path or URL
	Title  string `json:"title,omitempty"`
	Text   string `json:"text,omitempty"`
}

type startAuditResponse struct {
	SessionID  string `json:"session_id"`
	Generation uint64 `json:"generation"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"sessions":       s.sessions.count(),
		"uptime_seconds": time.Since(s.started).Seconds(),
	})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	e := s.sessions.create()
	s.logger.Info("session created", zap.String("session_id", e.id.String()))
	writeJSON(w, http.StatusCreated, s.describe(e))
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.describe(e))
}

func (s *Server) startAudit(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req startAuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Source = strings.TrimSpace(req.Source)

	switch {
	case req.Source != "" && req.Text != "":
		writeError(w, http.StatusBadRequest, "source and text are mutually exclusive")
		return
	case req.Source == "" && strings.TrimSpace(req.Text) == "":
		writeError(w, http.StatusBadRequest, "source or text is required")
		return
	}

	run, ctx := e.begin(s.baseCtx)
	log := s.logger.With(zap.String("session_id", e.id.String()), zap.Uint64("generation", run.Generation()))

	go func() {
		report, err := s.auditor.Audit(ctx, run, pipeline.Input{Source: req.Source, Title: req.Title, Text: req.Text})
		switch {
		case errors.Is(err, audit.ErrRunAbandoned):
			log.Debug("audit abandoned")
			return
		case err != nil:
			log.Warn("audit failed", zap.Error(err))
		default:
			log.Info("audit complete", zap.Int("trust_score", report.State.TrustScore))
		}
		if report != nil {
			e.finish(run, report)
		}
	}()

	writeJSON(w, http.StatusAccepted, startAuditResponse{
		SessionID:  e.id.String(),
		Generation: run.Generation(),
	})
}

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	e.reset()
	writeJSON(w, http.StatusOK, s.describe(e))
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*entry, bool) {
	e, err := s.sessions.get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return e, true
}

func (s *Server) describe(e *entry) sessionResponse {
	resp := sessionResponse{
		ID:       e.id.String(),
		Snapshot: e.session.Snapshot(),
	}
	// Only a completed run carries a score that matches state.trust_score
	if report := e.lastReport(); report != nil &&
		resp.State.Phase == model.PhaseComplete && report.State.Phase == model.PhaseComplete {
		resp.Score = &report.Score
		resp.LLM = report.LLM
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
