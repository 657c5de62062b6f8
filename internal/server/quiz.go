package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/p-n-ai/pai-learn/internal/attempt"
	"github.com/p-n-ai/pai-learn/internal/quiz"
)

const maxAnswerBody = 1 << 20

// sessionKey scopes live sessions to one learner on one quiz.
type sessionKey struct {
	learner string
	quizID  string
}

// learnerOf returns the learner named by the request, defaulting to anonymous.
func learnerOf(r *http.Request) string {
	if learner := r.URL.Query().Get("learner"); learner != "" {
		return learner
	}
	return anonymousLearner
}

// session returns the live session of learner on quizID, creating it from the
// question source and the learner's answer cache slot on first use.
func (s *Server) session(ctx context.Context, key sessionKey) (*quiz.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[key]; ok {
		return sess, nil
	}

	questions, err := s.deps.Questions.QuizQuestions(ctx, key.quizID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	sess, err := quiz.NewSession(quiz.SessionConfig{
		QuizID:    key.quizID,
		Questions: questions,
		Cache:     quiz.ForLearner(s.deps.AnswerCache, key.learner),
		Submitter: s.deps.Submitter,
	})
	if err != nil {
		return nil, err
	}
	if err := sess.Restore(ctx); err != nil {
		slog.Warn("starting quiz with empty answers", "quiz_id", key.quizID, "learner_id", key.learner, "error", err)
	}
	s.sessions[key] = sess
	return sess, nil
}

func (s *Server) dropSession(key sessionKey) {
	s.mu.Lock()
	delete(s.sessions, key)
	s.mu.Unlock()
}

// quizSession resolves the session for the request, writing an error reply on failure.
func (s *Server) quizSession(w http.ResponseWriter, r *http.Request) (*quiz.Session, sessionKey, bool) {
	key := sessionKey{learner: learnerOf(r), quizID: r.PathValue("quizID")}
	if s.deps.Questions == nil {
		writeError(w, http.StatusServiceUnavailable, "QUIZZES_UNAVAILABLE", "Quizzes are not configured.")
		return nil, key, false
	}
	sess, err := s.session(r.Context(), key)
	if err != nil {
		if errors.Is(err, quiz.ErrQuizNotFound) {
			writeError(w, http.StatusNotFound, "QUIZ_NOT_FOUND", "Quiz not found.")
			return nil, key, false
		}
		slog.Error("failed to open quiz session", "quiz_id", key.quizID, "error", err)
		writeError(w, http.StatusBadGateway, "QUIZ_UNAVAILABLE", "Failed to load quiz. Please try again.")
		return nil, key, false
	}
	return sess, key, true
}

// answerFailed replies to a SetAnswer error. The answer may still be held in
// memory, but the client must retry until the cache has it.
func answerFailed(w http.ResponseWriter, sess *quiz.Session, qid string, err error) {
	if errors.Is(err, quiz.ErrSubmitInProgress) {
		writeError(w, http.StatusConflict, "SUBMIT_IN_PROGRESS", quiz.UserMessage(err))
		return
	}
	slog.Warn("failed to save answer", "quiz_id", sess.QuizID(), "question_id", qid, "error", err)
	writeError(w, http.StatusServiceUnavailable, "ANSWER_NOT_SAVED", "Your answer could not be saved. Please try again.")
}

func (s *Server) handleGetAnswers(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.quizSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"quizId":     sess.QuizID(),
		"answers":    sess.Answers(),
		"submitting": sess.Submitting(),
	})
}

func (s *Server) handlePutAnswers(w http.ResponseWriter, r *http.Request) {
	var answers quiz.Answers
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAnswerBody)).Decode(&answers); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ANSWERS", "Answers must be a JSON object of question id to answer.")
		return
	}
	sess, _, ok := s.quizSession(w, r)
	if !ok {
		return
	}
	qids := make([]string, 0, len(answers))
	for qid := range answers {
		qids = append(qids, qid)
	}
	sort.Strings(qids)
	for _, qid := range qids {
		if err := sess.SetAnswer(r.Context(), qid, answers[qid]); err != nil {
			answerFailed(w, sess, qid, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"quizId": sess.QuizID(), "answers": sess.Answers()})
}

func (s *Server) handlePutAnswer(w http.ResponseWriter, r *http.Request) {
	var value quiz.RawAnswer
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAnswerBody)).Decode(&value); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ANSWER", "Answer must be a string or a list of strings.")
		return
	}
	sess, _, ok := s.quizSession(w, r)
	if !ok {
		return
	}
	qid := r.PathValue("questionID")
	if err := sess.SetAnswer(r.Context(), qid, value); err != nil {
		answerFailed(w, sess, qid, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questionId": qid, "answer": value})
}

func (s *Server) handleNormalized(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.quizSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"answers": quiz.Normalize(sess.Answers(), sess.Questions()),
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if s.deps.Submitter == nil {
		writeError(w, http.StatusServiceUnavailable, "SUBMIT_UNAVAILABLE", "Quiz submission is not configured.")
		return
	}
	sess, key, ok := s.quizSession(w, r)
	if !ok {
		return
	}
	learner := key.learner

	res, err := sess.Submit(r.Context())
	if err != nil {
		s.submitFailed(r.Context(), w, sess.QuizID(), learner, err)
		return
	}

	s.dropSession(key)
	s.countSubmission("success")
	s.deps.Recorder.LogEvent(r.Context(), attempt.Event{
		LearnerID: learner,
		SubjectID: sess.QuizID(),
		Type:      attempt.EventQuizSubmitted,
		Data: map[string]any{
			"answers": len(res.Answers),
			"score":   res.Response.Score,
		},
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"quizId":  sess.QuizID(),
		"score":   res.Response.Score,
		"answers": res.Answers,
		"result":  res.Response.Extra,
	})
}

func (s *Server) submitFailed(ctx context.Context, w http.ResponseWriter, quizID, learner string, err error) {
	status := http.StatusBadGateway
	code := "SUBMIT_FAILED"
	var se *quiz.SubmitError
	switch {
	case errors.Is(err, quiz.ErrNoAnswers):
		status, code = http.StatusBadRequest, "NO_ANSWERS"
	case errors.Is(err, quiz.ErrSubmitInProgress):
		status, code = http.StatusConflict, "SUBMIT_IN_PROGRESS"
	case errors.As(err, &se):
		if se.Code != "" {
			code = se.Code
		}
	default:
		status = http.StatusInternalServerError
	}

	slog.Warn("quiz submission failed", "quiz_id", quizID, "code", code, "error", err)
	s.countSubmission("failure")
	s.deps.Recorder.LogEvent(ctx, attempt.Event{
		LearnerID: learner,
		SubjectID: quizID,
		Type:      attempt.EventQuizSubmitFailed,
		Data:      map[string]any{"code": code},
	})
	writeError(w, status, code, quiz.UserMessage(err))
}

func (s *Server) countSubmission(result string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.QuizSubmissions.WithLabelValues(result).Inc()
	}
}
