package quiz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrQuizNotFound is returned by QuestionBank for unknown quiz ids.
var ErrQuizNotFound = errors.New("quiz not found")

// DecodeQuestions accepts either a bare question array or an object with a
// "questions" field, as returned by the quiz session endpoint.
func DecodeQuestions(data []byte) ([]Question, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var qs []Question
		if err := json.Unmarshal(data, &qs); err != nil {
			return nil, fmt.Errorf("decode questions: %w", err)
		}
		return qs, nil
	}

	var wrapped struct {
		Questions []Question `json:"questions"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	return wrapped.Questions, nil
}

// LoadQuestions reads questions from a JSON file.
func LoadQuestions(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeQuestions(data)
}

// LoadAnswers reads a JSON object of question id to raw answer.
func LoadAnswers(path string) (Answers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	answers, err := decodeAnswers(data)
	if err != nil {
		return nil, fmt.Errorf("decode answers %s: %w", path, err)
	}
	return answers, nil
}

// QuestionBank serves questions loaded from fixture files, keyed by file name.
type QuestionBank struct {
	mu      sync.RWMutex
	quizzes map[string][]Question
}

// NewQuestionBank creates an empty bank.
func NewQuestionBank() *QuestionBank {
	return &QuestionBank{quizzes: make(map[string][]Question)}
}

// LoadQuestionBank reads every *.json file under dir; the file name without
// extension is the quiz id.
func LoadQuestionBank(dir string) (*QuestionBank, error) {
	bank := NewQuestionBank()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("loading quizzes: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		qs, err := LoadQuestions(path)
		if err != nil {
			slog.Warn("skipping invalid quiz file", "path", path, "error", err)
			continue
		}
		bank.Put(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())), qs)
	}
	slog.Info("quizzes loaded", "dir", dir, "quizzes", len(bank.quizzes))
	return bank, nil
}

// Put adds or replaces a quiz.
func (b *QuestionBank) Put(quizID string, questions []Question) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quizzes[quizID] = questions
}

// QuizQuestions returns the questions of a quiz.
func (b *QuestionBank) QuizQuestions(_ context.Context, quizID string) ([]Question, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	qs, ok := b.quizzes[quizID]
	if !ok {
		return nil, ErrQuizNotFound
	}
	return qs, nil
}
