// Package server exposes the webhook endpoint that turns repository events
// into workflow runs, plus read access to recorded runs.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"matrixci/internal/core"
	"matrixci/internal/history"
	"matrixci/internal/security"
)

// maxEventBody bounds webhook payload reads.
const maxEventBody = 1 << 20

// Server dispatches verified events to the runner.
type Server struct {
	store   *WorkflowStore
	runner  *core.Runner
	history *history.History
	secret  []byte
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// New builds a Server. The secret verifies webhook signatures.
func New(store *WorkflowStore, runner *core.Runner, hist *history.History, secret []byte, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		store:   store,
		runner:  runner,
		history: hist,
		secret:  secret,
		logger:  logger,
	}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Post("/events", s.handleEvent)
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{id}", s.handleGetRun)
	return r
}

// Wait blocks until every queued run has finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

type eventPayload struct {
	Branch   string `json:"branch"`
	Revision string `json:"revision"`
}

// handleEvent verifies the payload signature, matches the event against the
// loaded workflows, and queues one run per match.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}
	if !security.Verify(s.secret, body, r.Header.Get("X-Signature-256")) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	kind, err := core.ParseEventKind(r.Header.Get("X-Event-Kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var payload eventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if payload.Branch == "" {
		http.Error(w, "payload branch is required", http.StatusBadRequest)
		return
	}

	ev := core.Event{Kind: kind, Branch: payload.Branch, Revision: payload.Revision}
	queued := make([]string, 0)
	for _, wf := range s.store.Workflows() {
		if !wf.Matches(ev) {
			continue
		}
		queued = append(queued, wf.Name)
		s.wg.Add(1)
		go func(wf *core.Workflow) {
			defer s.wg.Done()
			s.run(wf, ev)
		}(wf)
	}
	s.logger.Info("event received",
		zap.String("kind", string(kind)),
		zap.String("branch", payload.Branch),
		zap.Int("queued", len(queued)))

	writeJSON(w, http.StatusAccepted, map[string]any{"event": ev, "queued": queued})
}

func (s *Server) run(wf *core.Workflow, ev core.Event) {
	res, err := s.runner.RunWorkflow(context.Background(), wf, ev)
	if err != nil {
		s.logger.Error("run workflow", zap.String("workflow", wf.Name), zap.Error(err))
		return
	}
	if err := s.history.Append(history.NewRecord(res)); err != nil {
		s.logger.Error("record run", zap.String("run", res.ID), zap.Error(err))
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.history.Records())
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.history.Find(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
