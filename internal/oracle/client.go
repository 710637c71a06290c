// Package oracle is the gRPC client for the model-backed classification and
// generation service. Requests and responses travel as google.protobuf.Struct
// documents so the service can evolve its schema without regenerating stubs.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

const serviceName = "advisor.v1.Oracle"

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
	errNotServing               = errors.New("oracle service not serving")
	errToolRounds               = errors.New("response oracle exceeded tool call rounds")
	errEmptyVector              = errors.New("oracle returned an empty embedding")
)

// Config holds configuration for the oracle client.
type Config struct {
	Address          string
	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
	// MaxToolRounds bounds how many times one response may hand back tool
	// calls before it must produce a reply.
	MaxToolRounds int
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Address:          "localhost:50051",
		ConnectTimeout:   5 * time.Second,
		RequestTimeout:   30 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
		MaxToolRounds:    4,
	}
}

// Client implements the advisor oracle interfaces over one gRPC connection.
type Client struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
	cfg    Config
	logger *slog.Logger
}

// Dial connects to the oracle service and waits until the connection is
// ready or cfg.ConnectTimeout elapses.
func Dial(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = withDefaults(cfg)

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}

	// Build client connection (no network I/O yet).
	conn, err := grpc.NewClient(cfg.Address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to oracle at %s: %w", cfg.Address, err)
	}

	// Fail fast on bad oracle endpoints.
	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("oracle at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to oracle service", "address", cfg.Address)
	return NewWithConn(conn, cfg, logger), nil
}

// NewWithConn wraps an existing connection. The client takes ownership of
// conn and closes it in Close.
func NewWithConn(conn *grpc.ClientConn, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		conn:   conn,
		health: healthpb.NewHealthClient(conn),
		cfg:    withDefaults(cfg),
		logger: logger,
	}
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Address == "" {
		cfg.Address = def.Address
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.KeepaliveTime <= 0 {
		cfg.KeepaliveTime = def.KeepaliveTime
	}
	if cfg.KeepaliveTimeout <= 0 {
		cfg.KeepaliveTimeout = def.KeepaliveTimeout
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = def.MaxToolRounds
	}
	return cfg
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Close closes the gRPC connection.
func (c *Client) Close() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}

// Health checks the standard gRPC health service for the oracle.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: serviceName})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: %s", errNotServing, resp.GetStatus())
	}
	return nil
}

// call invokes one unary oracle method. req and resp are JSON-shaped Go
// values carried as Struct documents.
func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	in, err := toStruct(req)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	out := newStruct()
	start := time.Now()
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/"+method, in, out); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	c.logger.Debug("Oracle call completed", "method", method, "duration", time.Since(start))

	if err := fromStruct(out, resp); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	return nil
}
