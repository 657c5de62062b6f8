// Package config loads application configuration from environment variables.
// All variables use the LEARN_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Scenario sources.
const (
	SourceFixtures = "fixtures"
	SourcePostgres = "postgres"
	SourceBackend  = "backend"
)

// Quiz answer cache backends.
const (
	QuizCacheMemory = "memory"
	QuizCacheRedis  = "redis"
	QuizCacheSQLite = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Backend  BackendConfig
	AI       AIConfig
	Scenario ScenarioConfig
	Quiz     QuizConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Dragonfly/Redis connection settings.
type CacheConfig struct {
	URL string
}

// BackendConfig holds the learning platform REST API settings.
type BackendConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// AIConfig holds configuration for all AI providers.
type AIConfig struct {
	OpenAI     OpenAIConfig
	Anthropic  AnthropicConfig
	OpenRouter OpenRouterConfig
	Ollama     OllamaConfig
	Model      string
	Timeout    time.Duration // per provider attempt
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

// AnthropicConfig holds Anthropic provider settings.
type AnthropicConfig struct {
	APIKey string
}

// OpenRouterConfig holds OpenRouter provider settings.
type OpenRouterConfig struct {
	APIKey string
}

// OllamaConfig holds self-hosted Ollama settings.
type OllamaConfig struct {
	Enabled bool
	URL     string
	Model   string
}

// ScenarioConfig selects where scenarios come from and how they play.
type ScenarioConfig struct {
	Source        string
	FixturesPath  string
	FeedbackDelay time.Duration
}

// QuizConfig holds answer cache settings.
type QuizConfig struct {
	CacheBackend   string
	CacheTTL       time.Duration
	LocalCachePath string
	FixturesPath   string // optional directory of <quizID>.json question files
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with LEARN_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("LEARN_SERVER_PORT", 8080),
			Host: envStr("LEARN_SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			URL:      envStr("LEARN_DATABASE_URL", ""),
			MaxConns: envInt("LEARN_DATABASE_MAX_CONNS", 25),
			MinConns: envInt("LEARN_DATABASE_MIN_CONNS", 5),
		},
		Cache: CacheConfig{
			URL: envStr("LEARN_CACHE_URL", ""),
		},
		Backend: BackendConfig{
			URL:     envStr("LEARN_BACKEND_URL", ""),
			Token:   envStr("LEARN_BACKEND_TOKEN", ""),
			Timeout: envDuration("LEARN_BACKEND_TIMEOUT", 15*time.Second),
		},
		AI: AIConfig{
			OpenAI: OpenAIConfig{
				APIKey:  envStr("LEARN_AI_OPENAI_API_KEY", ""),
				BaseURL: envStr("LEARN_AI_OPENAI_BASE_URL", ""),
			},
			Anthropic: AnthropicConfig{
				APIKey: envStr("LEARN_AI_ANTHROPIC_API_KEY", ""),
			},
			OpenRouter: OpenRouterConfig{
				APIKey: envStr("LEARN_AI_OPENROUTER_API_KEY", ""),
			},
			Ollama: OllamaConfig{
				Enabled: envBool("LEARN_AI_OLLAMA_ENABLED", false),
				URL:     envStr("LEARN_AI_OLLAMA_URL", "http://localhost:11434"),
				Model:   envStr("LEARN_AI_OLLAMA_MODEL", "llama3.2"),
			},
			Model:   envStr("LEARN_AI_MODEL", ""),
			Timeout: envDuration("LEARN_AI_TIMEOUT", 30*time.Second),
		},
		Scenario: ScenarioConfig{
			Source:        strings.ToLower(envStr("LEARN_SCENARIO_SOURCE", SourceFixtures)),
			FixturesPath:  envStr("LEARN_SCENARIO_FIXTURES_PATH", "./scenarios"),
			FeedbackDelay: envDuration("LEARN_SCENARIO_FEEDBACK_DELAY", 3*time.Second),
		},
		Quiz: QuizConfig{
			CacheBackend:   strings.ToLower(envStr("LEARN_QUIZ_CACHE", QuizCacheMemory)),
			CacheTTL:       envDuration("LEARN_QUIZ_CACHE_TTL", 7*24*time.Hour),
			LocalCachePath: envStr("LEARN_QUIZ_LOCAL_CACHE_PATH", defaultLocalCachePath()),
			FixturesPath:   envStr("LEARN_QUIZ_FIXTURES_PATH", ""),
		},
		Log: LogConfig{
			Level:  envStr("LEARN_LOG_LEVEL", "info"),
			Format: envStr("LEARN_LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	switch c.Scenario.Source {
	case SourceFixtures:
		if c.Scenario.FixturesPath == "" {
			return fmt.Errorf("LEARN_SCENARIO_FIXTURES_PATH is required for the fixtures source")
		}
	case SourcePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("LEARN_DATABASE_URL is required for the postgres scenario source")
		}
	case SourceBackend:
		if c.Backend.URL == "" {
			return fmt.Errorf("LEARN_BACKEND_URL is required for the backend scenario source")
		}
	default:
		return fmt.Errorf("LEARN_SCENARIO_SOURCE must be fixtures, postgres or backend, got %q", c.Scenario.Source)
	}

	switch c.Quiz.CacheBackend {
	case QuizCacheMemory, QuizCacheSQLite:
	case QuizCacheRedis:
		if c.Cache.URL == "" {
			return fmt.Errorf("LEARN_CACHE_URL is required for the redis quiz cache")
		}
	default:
		return fmt.Errorf("LEARN_QUIZ_CACHE must be memory, redis or sqlite, got %q", c.Quiz.CacheBackend)
	}

	if c.Scenario.FeedbackDelay < 0 {
		return fmt.Errorf("LEARN_SCENARIO_FEEDBACK_DELAY must not be negative")
	}

	if f := strings.ToLower(c.Log.Format); f != "json" && f != "text" {
		return fmt.Errorf("LEARN_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	return nil
}

// HasAIProvider returns true if at least one AI provider is configured.
func (c *Config) HasAIProvider() bool {
	return c.AI.OpenAI.APIKey != "" ||
		c.AI.Anthropic.APIKey != "" ||
		c.AI.OpenRouter.APIKey != "" ||
		c.AI.Ollama.Enabled
}

func defaultLocalCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "pai-learn-answers.db"
	}
	return dir + string(os.PathSeparator) + "pai-learn" + string(os.PathSeparator) + "answers.db"
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

// envDuration accepts Go durations ("3s") or plain milliseconds ("3000").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
