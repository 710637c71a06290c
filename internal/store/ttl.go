package store

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often the TTL worker looks for idle sessions.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper removes sessions idle for longer than ttl.
type Sweeper interface {
	CleanupExpired(ctx context.Context, ttl time.Duration) (int64, error)
}

// StartTTLWorker periodically sweeps idle sessions until ctx is done. The
// returned channel is closed once the worker has exited.
func StartTTLWorker(ctx context.Context, s Sweeper, ttl, interval time.Duration, logger *slog.Logger) <-chan struct{} {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		logger.Info("TTL worker started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweep(ctx, s, ttl, logger)
			case <-ctx.Done():
				logger.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

func sweep(ctx context.Context, s Sweeper, ttl time.Duration, logger *slog.Logger) {
	n, err := s.CleanupExpired(ctx, ttl)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("TTL worker failed to remove expired sessions", "error", err)
		return
	}
	if n > 0 {
		logger.Info("TTL worker removed expired sessions", "count", n)
	}
}
