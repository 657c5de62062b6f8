package quiz_test

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/p-n-ai/pai-learn/internal/quiz"
)

func TestCacheKey(t *testing.T) {
	if got := quiz.CacheKey("42"); got != "quiz_42_answers" {
		t.Errorf("CacheKey() = %q, want quiz_42_answers", got)
	}
}

// exerciseCache checks the durable-cache contract shared by all implementations.
func exerciseCache(t *testing.T, cache quiz.AnswerCache) {
	t.Helper()
	ctx := context.Background()

	empty, err := cache.Load(ctx, "q-1")
	if err != nil {
		t.Fatalf("Load(empty) error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Load(empty) = %v, want empty", empty)
	}

	answers := quiz.Answers{
		"1": quiz.RawScalar("a"),
		"2": quiz.RawList("red", "blue"),
	}
	if err := cache.Save(ctx, "q-1", answers); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := cache.Load(ctx, "q-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, answers) {
		t.Errorf("Load() = %+v, want %+v", got, answers)
	}

	other, err := cache.Load(ctx, "q-2")
	if err != nil {
		t.Fatalf("Load(other) error = %v", err)
	}
	if len(other) != 0 {
		t.Errorf("answers leaked across quizzes: %v", other)
	}

	if err := cache.Clear(ctx, "q-1"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	cleared, err := cache.Load(ctx, "q-1")
	if err != nil {
		t.Fatalf("Load(cleared) error = %v", err)
	}
	if len(cleared) != 0 {
		t.Errorf("Load(cleared) = %v, want empty", cleared)
	}
}

func TestMemoryAnswerCache(t *testing.T) {
	exerciseCache(t, quiz.NewMemoryAnswerCache())
}

func TestSQLiteAnswerCache(t *testing.T) {
	cache, err := quiz.OpenSQLiteAnswerCache(filepath.Join(t.TempDir(), "answers.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteAnswerCache() error = %v", err)
	}
	defer cache.Close()

	exerciseCache(t, cache)
}

func TestSQLiteAnswerCache_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "answers.db")

	first, err := quiz.OpenSQLiteAnswerCache(path)
	if err != nil {
		t.Fatalf("OpenSQLiteAnswerCache() error = %v", err)
	}
	if err := first.Save(ctx, "7", quiz.Answers{"1": quiz.RawScalar("x")}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	first.Close()

	second, err := quiz.OpenSQLiteAnswerCache(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer second.Close()

	has, err := second.Has(ctx, "7")
	if err != nil {
		t.Fatalf("Has() error = %v", err)
	}
	if !has {
		t.Fatal("answers did not survive reopen")
	}
	got, _ := second.Load(ctx, "7")
	if got["1"].First() != "x" {
		t.Errorf("Load() = %+v", got)
	}
}

func TestOpenSQLiteAnswerCache_EmptyPath(t *testing.T) {
	if _, err := quiz.OpenSQLiteAnswerCache(""); err == nil {
		t.Fatal("OpenSQLiteAnswerCache(\"\") should fail")
	}
}

func TestForLearner(t *testing.T) {
	ctx := context.Background()
	shared := quiz.NewMemoryAnswerCache()
	ana := quiz.ForLearner(shared, "ana")
	ben := quiz.ForLearner(shared, "ben")

	if err := ana.Save(ctx, "42", quiz.Answers{"1": quiz.RawScalar("a")}); err != nil {
		t.Fatal(err)
	}
	if err := ben.Save(ctx, "42", quiz.Answers{"1": quiz.RawScalar("b")}); err != nil {
		t.Fatal(err)
	}

	got, err := ana.Load(ctx, "42")
	if err != nil {
		t.Fatal(err)
	}
	if got["1"].First() != "a" {
		t.Errorf("ana's answer = %q, want a", got["1"].First())
	}
	if !shared.Has("ana/42") || !shared.Has("ben/42") || shared.Has("42") {
		t.Error("slots should be scoped per learner")
	}

	if err := ana.Clear(ctx, "42"); err != nil {
		t.Fatal(err)
	}
	if shared.Has("ana/42") || !shared.Has("ben/42") {
		t.Error("Clear should only touch the learner's own slot")
	}
	if quiz.ForLearner(shared, "") != quiz.AnswerCache(shared) {
		t.Error("empty learner should leave the cache unscoped")
	}
}
