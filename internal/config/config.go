// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port               string
	FrontendURL        string
	LogLevel           slog.Level
	MaxRequestBodySize int64
	HistoryTokenBudget int
	Store              StoreConfig
	Oracle             OracleConfig
	Retrieval          RetrievalConfig
	RateLimit          RateLimitConfig
	ConversationLog    ConversationLogConfig
}

// StoreConfig selects and configures the session store.
type StoreConfig struct {
	Driver        string // sqlite, redis or memory
	DBPath        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
	CleanupAfter  time.Duration // sqlite sessions idle longer than this are removed; 0 disables
}

// OracleConfig addresses the gRPC oracle service.
type OracleConfig struct {
	Address        string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	MaxToolRounds  int
}

// RetrievalConfig configures the knowledge-base and web backends. Empty
// URLs or keys leave the corresponding backend disabled.
type RetrievalConfig struct {
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string
	QdrantMinScore   float64
	TavilyAPIKey     string
	TopK             int
}

// RateLimitConfig bounds chat requests per user.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		FrontendURL:        getEnv("FRONTEND_URL", ""),
		LogLevel:           getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
		HistoryTokenBudget: getEnvInt("HISTORY_TOKEN_BUDGET", 3000),
		Store: StoreConfig{
			Driver:        strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
			DBPath:        getEnv("DB_PATH", "./data/advisor.db"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			RedisTTL:      getEnvDuration("REDIS_TTL", 24*time.Hour),
			CleanupAfter:  getEnvDuration("SESSION_CLEANUP_AFTER", 30*24*time.Hour),
		},
		Oracle: OracleConfig{
			Address:        getEnv("ORACLE_ADDR", "localhost:50051"),
			ConnectTimeout: getEnvDuration("ORACLE_CONNECT_TIMEOUT", 5*time.Second),
			RequestTimeout: getEnvDuration("ORACLE_REQUEST_TIMEOUT", 30*time.Second),
			MaxToolRounds:  getEnvInt("ORACLE_MAX_TOOL_ROUNDS", 4),
		},
		Retrieval: RetrievalConfig{
			QdrantURL:        getEnv("QDRANT_URL", ""),
			QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
			QdrantCollection: getEnv("QDRANT_COLLECTION", "advising"),
			QdrantMinScore:   getEnvFloat("QDRANT_MIN_SCORE", 0),
			TavilyAPIKey:     getEnv("TAVILY_API_KEY", ""),
			TopK:             getEnvInt("RETRIEVAL_TOP_K", 5),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT cannot be empty")
	}
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.DBPath == "" {
			return errors.New("DB_PATH cannot be empty")
		}
	case "redis":
		if c.Store.RedisAddr == "" {
			return errors.New("REDIS_ADDR cannot be empty")
		}
	case "memory":
	default:
		return fmt.Errorf("STORE_DRIVER %q is not one of sqlite, redis, memory", c.Store.Driver)
	}
	if c.Oracle.Address == "" {
		return errors.New("ORACLE_ADDR cannot be empty")
	}
	if c.Oracle.RequestTimeout <= 0 {
		return errors.New("ORACLE_REQUEST_TIMEOUT must be > 0")
	}
	if c.MaxRequestBodySize <= 0 {
		return errors.New("MAX_REQUEST_BODY_SIZE must be > 0")
	}
	if c.HistoryTokenBudget <= 0 {
		return errors.New("HISTORY_TOKEN_BUDGET must be > 0")
	}
	if c.Retrieval.TopK <= 0 {
		return errors.New("RETRIEVAL_TOP_K must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.WindowDuration <= 0 {
		return errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return errors.New("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return errors.New("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return errors.New("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// getEnvDuration accepts Go duration strings ("90s") or bare seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
