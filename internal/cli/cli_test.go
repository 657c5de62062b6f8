package cli_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/p-n-ai/pai-learn/internal/cli"
	"github.com/p-n-ai/pai-learn/internal/quiz"
)

const questionsJSON = `[
  {"id": "1", "type": "scq", "question": "Pick a fruit", "options": [{"id": "a", "text": "Apple"}, {"id": "b", "text": "Banana"}]},
  {"id": "2", "question": "___ and ___"}
]`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := cli.NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestQuizNormalize(t *testing.T) {
	questions := writeFile(t, "questions.json", questionsJSON)
	answers := writeFile(t, "answers.json", `{"2": ["salt", "pepper"], "1": "banana"}`)

	out, err := run(t, "quiz", "normalize", "--questions", questions, "--answers", answers)
	if err != nil {
		t.Fatalf("normalize error = %v\n%s", err, out)
	}

	var got []map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(got) != 2 || got[0]["questionId"] != "1" || got[1]["questionId"] != "2" {
		t.Fatalf("normalized = %v, want questions 1 then 2", got)
	}
	if ids, _ := got[0]["selectedOptionId"].([]any); len(ids) != 1 || ids[0] != "b" {
		t.Errorf("selectedOptionId = %v, want [b]", got[0]["selectedOptionId"])
	}
}

func TestQuizNormalize_RequiresFlags(t *testing.T) {
	if _, err := run(t, "quiz", "normalize"); err == nil {
		t.Error("normalize without flags expected error")
	}
}

func TestQuizAnswerAndShow(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "answers.db")

	if out, err := run(t, "--cache", cache, "quiz", "answer", "42", "1", "b"); err != nil {
		t.Fatalf("answer error = %v\n%s", err, out)
	}
	out, err := run(t, "--cache", cache, "quiz", "answer", "42", "2", "salt", "pepper")
	if err != nil {
		t.Fatalf("answer error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "(2 answered)") {
		t.Errorf("answer output = %q, want 2 answered", out)
	}

	out, err = run(t, "--cache", cache, "quiz", "show", "42")
	if err != nil {
		t.Fatalf("show error = %v", err)
	}
	want := "1\t\"b\"\n2\t[\"salt\",\"pepper\"]\n"
	if out != want {
		t.Errorf("show output = %q, want %q", out, want)
	}

	out, err = run(t, "--cache", cache, "quiz", "show", "7")
	if err != nil || !strings.Contains(out, "no cached answers") {
		t.Errorf("show empty quiz = %q, %v", out, err)
	}
}

func TestQuizSubmit(t *testing.T) {
	var (
		mu             sync.Mutex
		submitted      quiz.SubmitRequest
		idempotencyKey string
	)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /quizzes/42/session", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quizSession": {"id": "att-1"}, "questions": ` + questionsJSON + `}`))
	})
	mux.HandleFunc("POST /quizzes/42/submit", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		idempotencyKey = r.Header.Get("Idempotency-Key")
		json.NewDecoder(r.Body).Decode(&submitted)
		w.Write([]byte(`{"score": 0.5}`))
	})
	backend := httptest.NewServer(mux)
	defer backend.Close()

	cache := filepath.Join(t.TempDir(), "answers.db")
	if _, err := run(t, "--cache", cache, "quiz", "answer", "42", "1", "Apple"); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "--cache", cache, "--backend", backend.URL, "quiz", "submit", "42")
	if err != nil {
		t.Fatalf("submit error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "submitted 1 answers") || !strings.Contains(out, "score: 0.5") {
		t.Errorf("submit output = %q", out)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(submitted.Answers) != 1 || submitted.Answers[0].QuestionID != "1" {
		t.Errorf("submitted = %+v", submitted)
	}
	if idempotencyKey == "" {
		t.Error("missing Idempotency-Key header")
	}

	out, _ = run(t, "--cache", cache, "quiz", "show", "42")
	if !strings.Contains(out, "no cached answers") {
		t.Errorf("cache after submit = %q, want cleared", out)
	}
}

func TestQuizSubmit_BackendError(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code": "NO_PENDING_ATTEMPT", "message": "no attempt"}`))
	}))
	defer backend.Close()

	cache := filepath.Join(t.TempDir(), "answers.db")
	questions := writeFile(t, "questions.json", questionsJSON)
	if _, err := run(t, "--cache", cache, "quiz", "answer", "42", "1", "a"); err != nil {
		t.Fatal(err)
	}

	_, err := run(t, "--cache", cache, "--backend", backend.URL, "quiz", "submit", "42", "--questions", questions)
	if err == nil {
		t.Fatal("submit expected error")
	}
	if !strings.Contains(err.Error(), "There is no active attempt for this quiz") {
		t.Errorf("error = %v, want user message", err)
	}

	out, _ := run(t, "--cache", cache, "quiz", "show", "42")
	if !strings.Contains(out, "1\t\"a\"") {
		t.Errorf("cache after failed submit = %q, want kept", out)
	}
}

func TestQuizSubmit_NoBackend(t *testing.T) {
	t.Setenv("LEARN_BACKEND_URL", "")
	_, err := run(t, "--cache", filepath.Join(t.TempDir(), "a.db"), "quiz", "submit", "42")
	if err == nil || !strings.Contains(err.Error(), "no backend configured") {
		t.Errorf("error = %v, want no backend configured", err)
	}
}
