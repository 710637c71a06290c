// Package store persists advising sessions.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/advisor/internal/domain"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("session not found")
	// ErrVersionConflict is returned by Save when the session was modified
	// since it was loaded.
	ErrVersionConflict = errors.New("session version conflict")
	// ErrInvalidConfig is returned when a driver is missing required options.
	ErrInvalidConfig = errors.New("invalid store configuration")
	// ErrInvalidStoreType is returned for an unknown driver name.
	ErrInvalidStoreType = errors.New("invalid store type")
	// ErrMessageLogShrunk is returned when a save would drop persisted messages.
	ErrMessageLogShrunk = errors.New("message log cannot shrink")
)

// Repository stores sessions with optimistic locking.
//
// Save succeeds only when the caller's Version matches the stored version,
// and bumps Version on success. A session with Version zero is created.
type Repository interface {
	// GetOrCreate loads the session, creating an empty one if it does not exist.
	GetOrCreate(ctx context.Context, id string) (*domain.Session, error)

	// Get loads the session. It returns nil, nil when the session does not exist.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// Save persists the artifact and appends any new messages.
	Save(ctx context.Context, s *domain.Session) error

	// Delete removes the session and its message log.
	Delete(ctx context.Context, id string) error

	// Ping verifies backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Driver names a Repository implementation.
type Driver string

const (
	DriverSQLite Driver = "sqlite"
	DriverRedis  Driver = "redis"
	DriverMemory Driver = "memory"
)

// Option configures New.
type Option func(*options)

type options struct {
	sqlitePath  string
	redisClient *redis.Client
	redisTTL    time.Duration
	logger      *slog.Logger
}

// WithSQLitePath sets the database file for the sqlite driver.
func WithSQLitePath(path string) Option {
	return func(o *options) { o.sqlitePath = path }
}

// WithRedisClient sets the client for the redis driver.
func WithRedisClient(client *redis.Client) Option {
	return func(o *options) { o.redisClient = client }
}

// WithRedisTTL sets the idle expiry of redis session keys.
func WithRedisTTL(ttl time.Duration) Option {
	return func(o *options) { o.redisTTL = ttl }
}

// WithLogger sets the logger used for retries and cleanup warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New builds the Repository for driver.
func New(driver Driver, opts ...Option) (Repository, error) {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	switch driver {
	case DriverSQLite:
		if o.sqlitePath == "" {
			return nil, fmt.Errorf("%w: sqlite path is required", ErrInvalidConfig)
		}
		s, err := NewSQLite(o.sqlitePath, o.logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverRedis:
		if o.redisClient == nil {
			return nil, fmt.Errorf("%w: redis client is required", ErrInvalidConfig)
		}
		return NewRedis(o.redisClient, o.redisTTL, o.logger), nil
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStoreType, driver)
	}
}

// stamp sets the bookkeeping fields of a session about to be written.
func stamp(s *domain.Session, now time.Time) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	if s.Artifact == nil {
		s.Artifact = domain.NewArtifact()
	}
}
