// Package app assembles the service dependencies from configuration.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/p-n-ai/pai-learn/internal/ai"
	"github.com/p-n-ai/pai-learn/internal/attempt"
	"github.com/p-n-ai/pai-learn/internal/backend"
	"github.com/p-n-ai/pai-learn/internal/platform/cache"
	"github.com/p-n-ai/pai-learn/internal/platform/config"
	"github.com/p-n-ai/pai-learn/internal/platform/database"
	"github.com/p-n-ai/pai-learn/internal/platform/metrics"
	"github.com/p-n-ai/pai-learn/internal/quiz"
	"github.com/p-n-ai/pai-learn/internal/scenario"
	"github.com/p-n-ai/pai-learn/internal/server"
)

// App holds the live dependencies of the service.
type App struct {
	Config      *config.Config
	DB          *database.DB
	Cache       *cache.Cache
	Backend     *backend.Client
	Metrics     *metrics.Metrics
	AI          *ai.Router
	Scenarios   scenario.Source
	Questions   server.QuestionSource
	AnswerCache quiz.AnswerCache
	Recorder    *attempt.Recorder

	closers []func()
}

// New connects to every configured dependency. On error, anything already
// opened is closed again.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{Config: cfg, Metrics: metrics.New()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.Database.URL != "" {
		a.DB, err = database.New(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.closers = append(a.closers, a.DB.Close)
		if err = a.DB.Migrate(ctx); err != nil {
			return nil, err
		}
	}

	if cfg.Cache.URL != "" {
		a.Cache, err = cache.New(ctx, cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("connecting to cache: %w", err)
		}
		a.closers = append(a.closers, func() { a.Cache.Close() })
	}

	if cfg.Backend.URL != "" {
		a.Backend = backend.NewClient(cfg.Backend.URL,
			backend.WithToken(cfg.Backend.Token),
			backend.WithTimeout(cfg.Backend.Timeout),
		)
	}

	if a.Scenarios, err = a.scenarioSource(); err != nil {
		return nil, err
	}
	if err = a.questionSource(); err != nil {
		return nil, err
	}
	if a.AnswerCache, err = a.answerCache(); err != nil {
		return nil, err
	}
	if a.Recorder, err = a.recorder(); err != nil {
		return nil, err
	}
	a.AI, err = NewAIRouter(cfg.AI, ai.WithAttemptHook(func(provider string, task ai.TaskType, elapsed time.Duration, attemptErr error) {
		a.Metrics.ObserveAI(provider, task.String(), elapsed, attemptErr)
	}))
	if err != nil {
		return nil, err
	}

	slog.Info("dependencies ready",
		"scenario_source", cfg.Scenario.Source,
		"quiz_cache", cfg.Quiz.CacheBackend,
		"database", a.DB != nil,
		"cache", a.Cache != nil,
		"backend", a.Backend != nil,
		"ai_providers", a.AI.Providers(),
	)
	return a, nil
}

func (a *App) scenarioSource() (scenario.Source, error) {
	switch a.Config.Scenario.Source {
	case config.SourcePostgres:
		if a.DB == nil {
			return nil, fmt.Errorf("postgres scenario source needs a database")
		}
		return scenario.NewPostgresStore(a.DB.Pool)
	case config.SourceBackend:
		if a.Backend == nil {
			return nil, fmt.Errorf("backend scenario source needs a backend URL")
		}
		return a.Backend, nil
	default:
		return scenario.LoadDir(a.Config.Scenario.FixturesPath)
	}
}

func (a *App) questionSource() error {
	switch {
	case a.Backend != nil:
		a.Questions = a.Backend
	case a.Config.Quiz.FixturesPath != "":
		bank, err := quiz.LoadQuestionBank(a.Config.Quiz.FixturesPath)
		if err != nil {
			return err
		}
		a.Questions = bank
	}
	return nil
}

func (a *App) answerCache() (quiz.AnswerCache, error) {
	switch a.Config.Quiz.CacheBackend {
	case config.QuizCacheRedis:
		if a.Cache == nil {
			return nil, fmt.Errorf("redis quiz cache needs a cache URL")
		}
		return quiz.NewRedisAnswerCache(a.Cache.Client, a.Config.Quiz.CacheTTL), nil
	case config.QuizCacheSQLite:
		c, err := quiz.OpenSQLiteAnswerCache(a.Config.Quiz.LocalCachePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { c.Close() })
		return c, nil
	default:
		return quiz.NewMemoryAnswerCache(), nil
	}
}

func (a *App) recorder() (*attempt.Recorder, error) {
	if a.DB == nil {
		return attempt.NewRecorder(attempt.NewMemoryStore(), attempt.NopEventLogger{}), nil
	}
	store, err := attempt.NewPostgresStore(a.DB.Pool)
	if err != nil {
		return nil, err
	}
	return attempt.NewRecorder(store, attempt.NewPostgresEventLogger(a.DB.Pool)), nil
}

// ServerDeps returns the handler dependencies backed by this App.
func (a *App) ServerDeps() server.Deps {
	deps := server.Deps{
		Scenarios:     a.Scenarios,
		Questions:     a.Questions,
		AnswerCache:   a.AnswerCache,
		Recorder:      a.Recorder,
		Metrics:       a.Metrics,
		FeedbackDelay: a.Config.Scenario.FeedbackDelay,
		Checks:        map[string]server.CheckFunc{},
	}
	if a.Backend != nil {
		deps.Submitter = a.Backend
	}
	if a.AI.HasProvider() {
		deps.Debriefer = scenario.NewDebriefer(a.AI)
	}
	if a.DB != nil {
		deps.Checks["database"] = a.DB.HealthCheck
	}
	if a.Cache != nil {
		deps.Checks["cache"] = a.Cache.HealthCheck
	}
	return deps
}

// Close releases dependencies in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// NewAIRouter registers every configured provider. Order is the fallback order.
func NewAIRouter(cfg config.AIConfig, opts ...ai.RouterOption) (*ai.Router, error) {
	router := ai.NewRouter(append([]ai.RouterOption{ai.WithAttemptTimeout(cfg.Timeout)}, opts...)...)

	if cfg.OpenAI.APIKey != "" {
		var opts []ai.OpenAIOption
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, ai.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		if cfg.Model != "" && !isClaudeModel(cfg.Model) {
			opts = append(opts, ai.WithModel(cfg.Model))
		}
		router.Register("openai", ai.NewOpenAIProvider(cfg.OpenAI.APIKey, opts...))
	}

	if cfg.Anthropic.APIKey != "" {
		var opts []ai.AnthropicOption
		if isClaudeModel(cfg.Model) {
			opts = append(opts, ai.WithAnthropicModel(cfg.Model))
		}
		p, err := ai.NewAnthropicProvider(cfg.Anthropic.APIKey, opts...)
		if err != nil {
			return nil, err
		}
		router.Register("anthropic", p)
	}

	if cfg.OpenRouter.APIKey != "" {
		router.Register("openrouter", ai.NewOpenRouterProvider(cfg.OpenRouter.APIKey))
	}

	if cfg.Ollama.Enabled {
		router.Register("ollama", ai.NewOllamaProvider(cfg.Ollama.URL, cfg.Ollama.Model))
	}

	if !router.HasProvider() {
		slog.Warn("no AI provider configured, debriefs disabled")
	}
	return router, nil
}

func isClaudeModel(model string) bool {
	return strings.HasPrefix(model, "claude")
}

// NewLogger builds the process logger from the log settings.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
