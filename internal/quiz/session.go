package quiz

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Backend error codes that get their own user-facing message.
const (
	CodeNoPendingAttempt  = "NO_PENDING_ATTEMPT"
	CodeNoResponsesFound  = "NO_RESPONSES_FOUND"
	msgNoAnswers          = "Please answer at least one question before submitting."
	msgSubmitInProgress   = "Your answers are already being submitted."
	msgNoPendingAttempt   = "There is no active attempt for this quiz. Please start the quiz again."
	msgNoResponsesFound   = "We could not find any saved responses for this attempt. Please answer the questions and submit again."
	msgGenericSubmitError = "Failed to submit quiz. Please check your connection and try again."
)

var (
	// ErrNoAnswers is returned when a submission would carry zero answers.
	ErrNoAnswers = errors.New("no answers to submit")
	// ErrSubmitInProgress is returned while a previous Submit is still running.
	ErrSubmitInProgress = errors.New("submission already in progress")
)

// SubmitRequest is the payload sent to the quiz backend.
type SubmitRequest struct {
	Answers        []NormalizedAnswer `json:"answers"`
	IdempotencyKey string             `json:"-"`
}

// SubmitResponse is the quiz backend's reply. Score is nil when the backend
// did not return one.
type SubmitResponse struct {
	Score *float64       `json:"score,omitempty"`
	Extra map[string]any `json:"-"`
}

// Submitter sends normalized answers to the quiz backend.
type Submitter interface {
	SubmitQuiz(ctx context.Context, quizID string, req SubmitRequest) (SubmitResponse, error)
}

// SubmitError wraps a failed backend submission.
type SubmitError struct {
	Code string
	Err  error
}

func (e *SubmitError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("submit quiz (%s): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("submit quiz: %v", e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// UserMessage returns the text shown to the learner for a submission error.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoAnswers):
		return msgNoAnswers
	case errors.Is(err, ErrSubmitInProgress):
		return msgSubmitInProgress
	}

	var se *SubmitError
	if errors.As(err, &se) {
		switch se.Code {
		case CodeNoPendingAttempt:
			return msgNoPendingAttempt
		case CodeNoResponsesFound:
			return msgNoResponsesFound
		}
	}
	return msgGenericSubmitError
}

// IdempotencyKey derives a stable key for a submission payload.
func IdempotencyKey(quizID string, answers []NormalizedAnswer) string {
	payload, err := json.Marshal(answers)
	if err != nil {
		payload = nil
	}
	h, _ := blake2b.New256(nil)
	h.Write([]byte(quizID))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// SessionConfig holds dependencies for a quiz-taking session.
type SessionConfig struct {
	QuizID    string
	Questions []Question
	Cache     AnswerCache // defaults to an in-memory cache
	Submitter Submitter
}

// SubmitResult describes a successful submission.
type SubmitResult struct {
	Answers  []NormalizedAnswer
	Response SubmitResponse
}

// Session tracks one learner's answers for one quiz. Every answer change is
// mirrored into the cache; Submit reads the cache back as the source of truth.
type Session struct {
	quizID    string
	questions []Question
	cache     AnswerCache
	submitter Submitter

	// cacheMu orders every cache write and spans a whole Submit, so the
	// cache never receives an older snapshot after a newer one. Taken
	// before mu.
	cacheMu sync.Mutex

	mu         sync.Mutex
	answers    Answers
	submitting bool
}

// NewSession creates a quiz session.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.QuizID == "" {
		return nil, fmt.Errorf("quiz id is required")
	}
	cache := cfg.Cache
	if cache == nil {
		cache = NewMemoryAnswerCache()
	}
	return &Session{
		quizID:    cfg.QuizID,
		questions: cfg.Questions,
		cache:     cache,
		submitter: cfg.Submitter,
		answers:   Answers{},
	}, nil
}

// QuizID returns the quiz this session belongs to.
func (s *Session) QuizID() string { return s.quizID }

// Questions returns the quiz questions.
func (s *Session) Questions() []Question { return s.questions }

// Restore replaces in-memory answers with the cached ones.
func (s *Session) Restore(ctx context.Context) error {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	cached, err := s.cache.Load(ctx, s.quizID)
	if err != nil {
		return fmt.Errorf("restore answers: %w", err)
	}
	if cached == nil {
		cached = Answers{}
	}
	s.mu.Lock()
	s.answers = cached
	s.mu.Unlock()
	return nil
}

// SetAnswer records an answer and mirrors all answers into the cache. It
// returns ErrSubmitInProgress while a submission runs. When the mirror fails
// the answer stays in memory and Submit still sends it.
func (s *Session) SetAnswer(ctx context.Context, questionID string, value RawAnswer) error {
	if questionID == "" {
		return fmt.Errorf("question id is required")
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return ErrSubmitInProgress
	}
	s.answers[questionID] = value
	snapshot := s.answers.Clone()
	s.mu.Unlock()

	if err := s.cache.Save(ctx, s.quizID, snapshot); err != nil {
		return fmt.Errorf("mirror answers: %w", err)
	}
	return nil
}

// Answers returns a copy of the in-memory answers.
func (s *Session) Answers() Answers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers.Clone()
}

// Submitting reports whether a submission is running.
func (s *Session) Submitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting
}

// Submit normalizes the cached answers and sends them to the backend. On
// success the cache slot and in-memory answers are cleared; on failure both
// are left untouched so the learner can retry.
func (s *Session) Submit(ctx context.Context) (SubmitResult, error) {
	if s.submitter == nil {
		return SubmitResult{}, fmt.Errorf("session has no submitter")
	}

	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return SubmitResult{}, ErrSubmitInProgress
	}
	s.submitting = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.submitting = false
		s.mu.Unlock()
	}()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	answers, err := s.cache.Load(ctx, s.quizID)
	if err != nil {
		slog.Warn("answer cache unreadable, submitting in-memory answers",
			"quiz_id", s.quizID,
			"error", err,
		)
		answers = nil
	}
	if answers == nil {
		answers = Answers{}
	}
	s.mergeUnsaved(answers)
	if len(answers) == 0 {
		return SubmitResult{}, ErrNoAnswers
	}

	normalized := Normalize(answers, s.questions)
	if len(normalized) == 0 {
		return SubmitResult{}, ErrNoAnswers
	}

	req := SubmitRequest{
		Answers:        normalized,
		IdempotencyKey: IdempotencyKey(s.quizID, normalized),
	}
	resp, err := s.submitter.SubmitQuiz(ctx, s.quizID, req)
	if err != nil {
		return SubmitResult{}, &SubmitError{Code: errorCode(err), Err: err}
	}

	if resp.Score == nil {
		slog.Warn("quiz submitted without score in response", "quiz_id", s.quizID)
	}

	if err := s.cache.Clear(ctx, s.quizID); err != nil {
		slog.Warn("failed to clear answer cache", "quiz_id", s.quizID, "error", err)
	}
	s.mu.Lock()
	s.answers = Answers{}
	s.mu.Unlock()

	slog.Info("quiz submitted",
		"quiz_id", s.quizID,
		"answers", len(normalized),
	)
	return SubmitResult{Answers: normalized, Response: resp}, nil
}

// mergeUnsaved adds in-memory answers whose mirror never reached the cache.
// Cached values win for questions present in both.
func (s *Session) mergeUnsaved(answers Answers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for qid, v := range s.answers {
		if _, ok := answers[qid]; ok {
			continue
		}
		slog.Warn("submitting answer missing from cache", "quiz_id", s.quizID, "question_id", qid)
		answers[qid] = v
	}
}

func errorCode(err error) string {
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return ""
}
