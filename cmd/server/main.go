// Advisor - academic advising orchestration server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/advisor/internal/advisor"
	"github.com/ashureev/advisor/internal/api"
	"github.com/ashureev/advisor/internal/config"
	"github.com/ashureev/advisor/internal/eventlog"
	"github.com/ashureev/advisor/internal/identity"
	"github.com/ashureev/advisor/internal/middleware"
	"github.com/ashureev/advisor/internal/oracle"
	"github.com/ashureev/advisor/internal/retrieval"
	"github.com/ashureev/advisor/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "store", cfg.Store.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openStore(cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()
	if err := repo.Ping(ctx); err != nil {
		slog.Error("Session store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Session store connected")

	if sweeper, ok := repo.(store.Sweeper); ok && cfg.Store.CleanupAfter > 0 {
		store.StartTTLWorker(ctx, sweeper, cfg.Store.CleanupAfter, store.DefaultSweepInterval, logger)
	}

	oracleCfg := oracle.DefaultConfig()
	oracleCfg.Address = cfg.Oracle.Address
	oracleCfg.ConnectTimeout = cfg.Oracle.ConnectTimeout
	oracleCfg.RequestTimeout = cfg.Oracle.RequestTimeout
	oracleCfg.MaxToolRounds = cfg.Oracle.MaxToolRounds
	oracles, err := oracle.Dial(oracleCfg, logger)
	if err != nil {
		slog.Error("Failed to connect to oracle service", "address", cfg.Oracle.Address, "error", err)
		os.Exit(1)
	}
	defer oracles.Close()

	dispatcher, closeRetrieval := openRetrieval(cfg, oracles, logger)
	defer closeRetrieval()

	conversationLog, err := eventlog.New(eventlog.Config{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conversationLog.Close(); closeErr != nil {
			slog.Warn("Failed to close conversation logger", "error", closeErr)
		}
	}()

	orch, err := advisor.New(repo, advisor.Oracles{
		Intent:    oracles,
		Stage:     oracles,
		Extractor: oracles,
		Retrieval: oracles,
		Query:     oracles,
		Retriever: dispatcher,
		Responder: oracles,
	},
		advisor.WithLogger(logger),
		advisor.WithEventSink(eventlog.NewSink(conversationLog, "advisor")),
		advisor.WithHistoryBudget(cfg.HistoryTokenBudget),
		advisor.WithTopK(cfg.Retrieval.TopK),
	)
	if err != nil {
		slog.Error("Failed to initialize orchestrator", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(orch, repo, oracles, conversationLog, api.Options{
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		RateLimitRequests:  cfg.RateLimit.RequestsPerWindow,
		RateLimitWindow:    cfg.RateLimit.WindowDuration,
		AllowedOrigin:      cfg.FrontendURL,
		IsDev:              cfg.IsDevelopment(),
	}, logger)
	defer handler.Close()

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(allowedOrigins(cfg)))
	r.Use(identity.Middleware(cfg.IsDevelopment()))
	handler.RegisterRoutes(r)

	// No WriteTimeout: websocket sessions are long-lived.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server stopped successfully")
}

func openStore(cfg *config.Config, logger *slog.Logger) (store.Repository, error) {
	driver := store.Driver(cfg.Store.Driver)
	opts := []store.Option{store.WithLogger(logger)}
	switch driver {
	case store.DriverSQLite:
		opts = append(opts, store.WithSQLitePath(cfg.Store.DBPath))
	case store.DriverRedis:
		opts = append(opts,
			store.WithRedisClient(redis.NewClient(&redis.Options{
				Addr:     cfg.Store.RedisAddr,
				Password: cfg.Store.RedisPassword,
				DB:       cfg.Store.RedisDB,
			})),
			store.WithRedisTTL(cfg.Store.RedisTTL),
		)
	}
	return store.New(driver, opts...)
}

// openRetrieval builds the retrieval backends that are configured. A
// missing backend makes that retrieval kind degrade to no snippets.
func openRetrieval(cfg *config.Config, embedder retrieval.Embedder, logger *slog.Logger) (*retrieval.Dispatcher, func()) {
	var internal, web retrieval.Backend
	closeFn := func() {}

	if cfg.Retrieval.QdrantURL != "" {
		kb, err := retrieval.NewKnowledgeBase(retrieval.KnowledgeBaseConfig{
			URL:        cfg.Retrieval.QdrantURL,
			Collection: cfg.Retrieval.QdrantCollection,
			APIKey:     cfg.Retrieval.QdrantAPIKey,
			MinScore:   float32(cfg.Retrieval.QdrantMinScore),
		}, embedder)
		if err != nil {
			logger.Warn("Knowledge base disabled", "error", err)
		} else {
			internal = kb
			closeFn = func() {
				if err := kb.Close(); err != nil {
					logger.Warn("Failed to close knowledge base", "error", err)
				}
			}
			logger.Info("Knowledge base retrieval enabled", "collection", cfg.Retrieval.QdrantCollection)
		}
	}

	if cfg.Retrieval.TavilyAPIKey != "" {
		ws, err := retrieval.NewWebSearch(cfg.Retrieval.TavilyAPIKey)
		if err != nil {
			logger.Warn("Web search disabled", "error", err)
		} else {
			web = ws
			logger.Info("Web retrieval enabled")
		}
	}

	return retrieval.NewDispatcher(internal, web), closeFn
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() || cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
