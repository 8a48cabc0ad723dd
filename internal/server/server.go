// Package server exposes the operator control surface over HTTP: a health
// probe, the scheduler status query, and manual job triggering.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"taskping/internal/scheduler"
	"taskping/pkg/logx"
)

// Config controls the HTTP listener.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Scheduler is the slice of the scheduler service the control surface needs.
type Scheduler interface {
	Snapshot() scheduler.Snapshot
	TriggerNow(name string) error
}

type Server struct {
	log logx.Logger
	cfg Config
	sch Scheduler

	srv *http.Server
	ln  net.Listener
}

func New(cfg Config, sch Scheduler, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{log: log, cfg: cfg, sch: sch}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/scheduler/status", s.handleStatus)
	r.Post("/scheduler/jobs/{name}/trigger", s.handleTrigger)

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Start binds the listener and serves in the background. The bind itself is
// synchronous so a busy port fails startup instead of surfacing later.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.log.Info("control server listening", logx.String("addr", ln.Addr().String()))
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("control server terminated", logx.Err(err))
		}
	}()
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"scheduler": s.sch.Snapshot().Running,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sch.Snapshot())
}

// handleTrigger fires a job out of cadence. The run happens asynchronously;
// 202 only acknowledges that it started. Its outcome lands on the status
// endpoint like any scheduled run.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := s.sch.TriggerNow(name)
	switch {
	case err == nil:
		s.log.Info("job triggered manually", logx.String("job", name))
		writeJSON(w, http.StatusAccepted, map[string]string{"job": name, "status": "started"})
	case errors.Is(err, scheduler.ErrUnknownJob):
		writeError(w, http.StatusNotFound, "unknown job "+name)
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, "job "+name+" is already running")
	case errors.Is(err, scheduler.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "scheduler is not running")
	default:
		s.log.Error("manual trigger failed", logx.String("job", name), logx.Err(err))
		writeError(w, http.StatusInternalServerError, "trigger failed")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
