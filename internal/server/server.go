// Package server wires the HTTP and WebSocket surface of the learning service.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/p-n-ai/pai-learn/internal/attempt"
	"github.com/p-n-ai/pai-learn/internal/platform/metrics"
	"github.com/p-n-ai/pai-learn/internal/quiz"
	"github.com/p-n-ai/pai-learn/internal/scenario"
)

const readyTimeout = 2 * time.Second

// QuestionSource loads the questions of a quiz.
type QuestionSource interface {
	QuizQuestions(ctx context.Context, quizID string) ([]quiz.Question, error)
}

// CheckFunc reports whether a dependency is reachable.
type CheckFunc func(ctx context.Context) error

// Deps holds everything the handlers need. Only Scenarios is required.
type Deps struct {
	Scenarios     scenario.Source
	Questions     QuestionSource
	Submitter     quiz.Submitter
	AnswerCache   quiz.AnswerCache
	Recorder      *attempt.Recorder
	Debriefer     *scenario.Debriefer
	Metrics       *metrics.Metrics
	FeedbackDelay time.Duration
	Checks        map[string]CheckFunc
	// OriginPatterns are passed to the WebSocket handshake; empty means same origin only.
	OriginPatterns []string
}

// Server serves the learning API.
type Server struct {
	deps Deps
	mux  *http.ServeMux

	mu       sync.Mutex
	sessions map[sessionKey]*quiz.Session
}

// New creates a Server and registers its routes.
func New(deps Deps) *Server {
	if deps.AnswerCache == nil {
		deps.AnswerCache = quiz.NewMemoryAnswerCache()
	}
	if deps.Recorder == nil {
		deps.Recorder = attempt.NewRecorder(attempt.NewMemoryStore(), nil)
	}
	if deps.FeedbackDelay == 0 {
		deps.FeedbackDelay = scenario.DefaultFeedbackDelay
	}

	s := &Server{
		deps:     deps,
		mux:      http.NewServeMux(),
		sessions: make(map[sessionKey]*quiz.Session),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)
	if s.deps.Metrics != nil {
		s.mux.Handle("GET /metrics", s.deps.Metrics.Handler())
	}

	s.mux.HandleFunc("GET /quizzes/{quizID}/answers", s.handleGetAnswers)
	s.mux.HandleFunc("PUT /quizzes/{quizID}/answers", s.handlePutAnswers)
	s.mux.HandleFunc("PUT /quizzes/{quizID}/answers/{questionID}", s.handlePutAnswer)
	s.mux.HandleFunc("GET /quizzes/{quizID}/normalized", s.handleNormalized)
	s.mux.HandleFunc("POST /quizzes/{quizID}/submit", s.handleSubmit)

	s.mux.HandleFunc("GET /scenarios/{id}/overview", s.handleOverview)
	s.mux.HandleFunc("GET /scenarios/{id}/overview.xlsx", s.handleOverviewXLSX)
	s.mux.HandleFunc("GET /scenarios/{id}/play", s.handlePlay)
}

// Handler returns the root handler, instrumented when metrics are configured.
func (s *Server) Handler() http.Handler {
	if s.deps.Metrics != nil {
		return s.deps.Metrics.Middleware(s.mux)
	}
	return s.mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.deps.Checks))
	for name := range s.deps.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	var failed []string
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		err := s.deps.Checks[name](ctx)
		cancel()
		if err != nil {
			slog.Warn("readiness check failed", "check", name, "error", err)
			failed = append(failed, name)
		}
	}

	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not ready",
			"failed": failed,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message})
}
