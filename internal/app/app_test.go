package app_test

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-learn/internal/app"
	"github.com/p-n-ai/pai-learn/internal/platform/config"
)

func TestNew_Fixtures(t *testing.T) {
	quizDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(quizDir, "42.json"), []byte(`{"questions":[{"id":"1","question":"2+2?"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		Scenario: config.ScenarioConfig{
			Source:       config.SourceFixtures,
			FixturesPath: filepath.Join("..", "scenario", "testdata", "scenarios"),
		},
		Quiz: config.QuizConfig{
			CacheBackend: config.QuizCacheMemory,
			FixturesPath: quizDir,
		},
	}

	a, err := app.New(t.Context(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if _, err := a.Scenarios.GetScenario(t.Context(), "difficult-customer"); err != nil {
		t.Errorf("GetScenario(difficult-customer) error = %v", err)
	}
	qs, err := a.Questions.QuizQuestions(t.Context(), "42")
	if err != nil || len(qs) != 1 {
		t.Errorf("QuizQuestions(42) = %v, %v", qs, err)
	}

	deps := a.ServerDeps()
	if deps.Submitter != nil {
		t.Error("Submitter set without a backend")
	}
	if deps.Debriefer != nil {
		t.Error("Debriefer set without an AI provider")
	}
	if len(deps.Checks) != 0 {
		t.Errorf("checks = %v, want none", deps.Checks)
	}
}

func TestNew_SQLiteCache(t *testing.T) {
	cfg := &config.Config{
		Scenario: config.ScenarioConfig{
			Source:       config.SourceFixtures,
			FixturesPath: t.TempDir(),
		},
		Quiz: config.QuizConfig{
			CacheBackend:   config.QuizCacheSQLite,
			LocalCachePath: filepath.Join(t.TempDir(), "answers.db"),
		},
	}

	a, err := app.New(t.Context(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if err := a.AnswerCache.Clear(t.Context(), "42"); err != nil {
		t.Errorf("Clear() error = %v", err)
	}
}

func TestNew_MissingDependency(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"postgres source without database", config.Config{Scenario: config.ScenarioConfig{Source: config.SourcePostgres}}},
		{"backend source without url", config.Config{Scenario: config.ScenarioConfig{Source: config.SourceBackend}}},
		{"redis cache without url", config.Config{
			Scenario: config.ScenarioConfig{Source: config.SourceFixtures, FixturesPath: filepath.Join("..", "scenario", "testdata", "scenarios")},
			Quiz:     config.QuizConfig{CacheBackend: config.QuizCacheRedis},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := app.New(t.Context(), &tt.cfg); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

func TestNewAIRouter(t *testing.T) {
	router, err := app.NewAIRouter(config.AIConfig{})
	if err != nil {
		t.Fatalf("NewAIRouter() error = %v", err)
	}
	if router.HasProvider() {
		t.Error("HasProvider() = true with no keys")
	}

	router, err = app.NewAIRouter(config.AIConfig{
		OpenAI:    config.OpenAIConfig{APIKey: "sk-test"},
		Anthropic: config.AnthropicConfig{APIKey: "sk-ant-test"},
		Ollama:    config.OllamaConfig{Enabled: true, URL: "http://localhost:11434", Model: "llama3.2"},
		Model:     "claude-sonnet-4-5",
	})
	if err != nil {
		t.Fatalf("NewAIRouter() error = %v", err)
	}
	want := []string{"openai", "anthropic", "ollama"}
	if got := router.Providers(); !reflect.DeepEqual(got, want) {
		t.Errorf("Providers() = %v, want %v", got, want)
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.LogConfig
		wantDebug bool
		wantText  bool
	}{
		{"json info", config.LogConfig{Level: "info", Format: "json"}, false, false},
		{"text debug", config.LogConfig{Level: "debug", Format: "text"}, true, true},
		{"bad level falls back to info", config.LogConfig{Level: "loud", Format: "json"}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := app.NewLogger(tt.cfg, &buf)
			logger.Debug("debug line")
			if got := buf.Len() > 0; got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.wantDebug)
			}

			buf.Reset()
			logger.Info("hello", "k", "v")
			out := buf.String()
			if tt.wantText && !strings.Contains(out, "k=v") {
				t.Errorf("text output = %q", out)
			}
			if !tt.wantText && !strings.Contains(out, `"k":"v"`) {
				t.Errorf("json output = %q", out)
			}
		})
	}
}
