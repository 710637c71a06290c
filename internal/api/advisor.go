package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/advisor/internal/advisor"
	"github.com/ashureev/advisor/internal/domain"
	"github.com/ashureev/advisor/internal/eventlog"
	"github.com/ashureev/advisor/internal/identity"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// statusClientClosedRequest is reported when the caller went away mid-turn.
const statusClientClosedRequest = 499

// TurnRunner runs one advising turn.
type TurnRunner interface {
	HandleTurn(ctx context.Context, sessionID, input string) (*advisor.TurnResult, error)
}

// SessionRepository is the session access the handlers need.
type SessionRepository interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// HealthChecker reports whether a dependency is serving.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Options tune the handler. Zero values fall back to defaults.
type Options struct {
	MaxRequestBodySize int64
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	HealthTimeout      time.Duration
	AllowedOrigin      string
	IsDev              bool
}

// Handler serves the advisor chat, session and health endpoints.
type Handler struct {
	turns   TurnRunner
	repo    SessionRepository
	oracle  HealthChecker
	log     eventlog.Logger
	limiter *RateLimiter
	conns   *connections
	opts    Options
	logger  *slog.Logger
}

// NewHandler wires the handlers. oracle may be nil, in which case health
// reports it as disabled.
func NewHandler(turns TurnRunner, repo SessionRepository, oracle HealthChecker, conversationLog eventlog.Logger, opts Options, logger *slog.Logger) *Handler {
	if conversationLog == nil {
		conversationLog = eventlog.Nop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxRequestBodySize <= 0 {
		opts.MaxRequestBodySize = defaultMaxRequestBodySize
	}
	if opts.RateLimitRequests <= 0 {
		opts.RateLimitRequests = 20
	}
	if opts.RateLimitWindow <= 0 {
		opts.RateLimitWindow = time.Minute
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = 5 * time.Second
	}
	return &Handler{
		turns:   turns,
		repo:    repo,
		oracle:  oracle,
		log:     conversationLog,
		limiter: NewRateLimiter(opts.RateLimitRequests, opts.RateLimitWindow),
		conns:   newConnections(),
		opts:    opts,
		logger:  logger,
	}
}

// RegisterRoutes registers the advisor routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Route("/api/advisor", func(r chi.Router) {
		r.Post("/chat", h.HandleChat)
		r.Get("/session", h.HandleGetSession)
		r.Delete("/session", h.HandleDeleteSession)
	})
	r.Get("/ws/advisor", h.HandleWebSocket)
}

// Close releases handler resources.
func (h *Handler) Close() {
	h.limiter.Stop()
}

// ChatResponse is the reply to one chat turn.
type ChatResponse struct {
	Reply           string            `json:"reply"`
	Topic           domain.Topic      `json:"topic"`
	Stage           domain.Stage      `json:"stage,omitempty"`
	MissingFields   []string          `json:"missing_fields"`
	PercentComplete int               `json:"percent_complete"`
	Sources         []advisor.Snippet `json:"sources"`
	Fallback        bool              `json:"fallback,omitempty"`
}

func newChatResponse(res *advisor.TurnResult) *ChatResponse {
	resp := &ChatResponse{
		Reply:           res.Reply,
		Topic:           res.Topic,
		Stage:           res.Stage,
		MissingFields:   res.Missing,
		PercentComplete: res.Percent,
		Sources:         res.Sources,
		Fallback:        res.Fallback,
	}
	if resp.MissingFields == nil {
		resp.MissingFields = []string{}
	}
	if resp.Sources == nil {
		resp.Sources = []advisor.Snippet{}
	}
	return resp
}

// turnRequest identifies one chat turn for logging.
type turnRequest struct {
	channel   string
	userID    string
	sessionID string
	requestID string
	message   string
}

// runTurn applies the rate limit, runs the turn and logs both sides of the
// exchange. On failure it returns the HTTP status to report.
func (h *Handler) runTurn(ctx context.Context, tr turnRequest) (*ChatResponse, int, error) {
	if !h.limiter.Allow(tr.userID) {
		return nil, http.StatusTooManyRequests, errors.New("rate limit exceeded")
	}

	h.logger.Info("Advisor chat request",
		"user_id", tr.userID,
		"session_id", tr.sessionID,
		"channel", tr.channel,
		"message_length", len(tr.message),
	)
	h.log.Log(eventlog.Event{
		UserID:     tr.userID,
		SessionID:  tr.sessionID,
		Channel:    tr.channel,
		Direction:  "outbound",
		EventType:  "chat_user_message",
		ContentRaw: tr.message,
		Meta:       map[string]any{"request_id": tr.requestID},
	})

	res, err := h.turns.HandleTurn(ctx, eventlog.SessionKey(tr.userID, tr.sessionID), tr.message)
	if err != nil {
		status, msg := turnErrorStatus(err)
		h.logger.Warn("Advisor turn failed", "user_id", tr.userID, "session_id", tr.sessionID, "error", err)
		return nil, status, errors.New(msg)
	}

	h.log.Log(eventlog.Event{
		UserID:     tr.userID,
		SessionID:  tr.sessionID,
		Channel:    tr.channel,
		Direction:  "inbound",
		EventType:  "chat_assistant_message",
		ContentRaw: res.Reply,
		Meta: map[string]any{
			"request_id": tr.requestID,
			"topic":      res.Topic,
			"stage":      res.Stage,
			"retrieval":  res.Retrieval,
			"sources":    len(res.Sources),
			"tool_calls": len(res.ToolCalls),
			"fallback":   res.Fallback,
		},
	})
	return newChatResponse(res), http.StatusOK, nil
}

func turnErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "request cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"
	case errors.Is(err, advisor.ErrEmptySessionID):
		return http.StatusBadRequest, "session id is required"
	default:
		return http.StatusInternalServerError, "failed to process message"
	}
}

// HandleChat handles POST /api/advisor/chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	req, status, err := decodeChatRequest(w, r, h.opts.MaxRequestBodySize)
	if err != nil {
		Error(w, status, err.Error())
		return
	}

	resp, status, err := h.runTurn(r.Context(), turnRequest{
		channel:   "chat_http",
		userID:    userID,
		sessionID: identity.SessionIDFromContext(r.Context()),
		requestID: chiMiddleware.GetReqID(r.Context()),
		message:   req.Message,
	})
	if err != nil {
		Error(w, status, err.Error())
		return
	}
	JSON(w, http.StatusOK, resp)
}

// SessionView is the inspection payload for a session.
type SessionView struct {
	SessionID string           `json:"session_id"`
	Exists    bool             `json:"exists"`
	Artifact  *domain.Artifact `json:"artifact"`
	advisor.Completeness
	Messages  []domain.Message `json:"messages"`
	Version   int64            `json:"version"`
	UpdatedAt *time.Time       `json:"updated_at,omitempty"`
}

// HandleGetSession handles GET /api/advisor/session. A session that does
// not exist yet is reported as empty without being created.
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sessionID := identity.SessionIDFromContext(r.Context())

	sess, err := h.repo.Get(r.Context(), eventlog.SessionKey(userID, sessionID))
	if err != nil {
		h.logger.Error("Failed to load session", "user_id", userID, "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	view := SessionView{SessionID: sessionID, Messages: []domain.Message{}}
	if sess == nil {
		view.Artifact = domain.NewArtifact()
	} else {
		view.Exists = true
		view.Artifact = sess.Artifact
		view.Version = sess.Version
		updated := sess.UpdatedAt
		view.UpdatedAt = &updated
		if len(sess.Messages) > 0 {
			view.Messages = sess.Messages
		}
	}
	if view.Artifact == nil {
		view.Artifact = domain.NewArtifact()
	}
	view.Completeness = advisor.Evaluate(view.Artifact.Topic, view.Artifact)
	if view.Missing == nil {
		view.Missing = []string{}
	}
	JSON(w, http.StatusOK, view)
}

// HandleDeleteSession handles DELETE /api/advisor/session. It removes the
// stored session and closes any websocket attached to it.
func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	sessionID := identity.SessionIDFromContext(r.Context())
	key := eventlog.SessionKey(userID, sessionID)

	if err := h.repo.Delete(r.Context(), key); err != nil {
		h.logger.Error("Failed to delete session", "user_id", userID, "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	closed := h.conns.closeSession(key)
	h.logger.Info("Advisor session reset", "user_id", userID, "session_id", sessionID, "closed_connections", closed)
	h.log.Log(eventlog.Event{
		UserID:    userID,
		SessionID: sessionID,
		Channel:   "chat_http",
		EventType: "session_reset",
		Meta:      map[string]any{"request_id": chiMiddleware.GetReqID(r.Context())},
	})
	w.WriteHeader(http.StatusNoContent)
}

// Health returns the health status of the API and its dependencies.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.HealthTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]any{"status": "healthy", "checks": checks}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		h.logger.Error("Health check failed", "dependency", "store", "error", err)
		checks["store"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	switch {
	case h.oracle == nil:
		checks["oracle"] = "disabled"
	default:
		if err := h.oracle.Health(ctx); err != nil {
			h.logger.Error("Health check failed", "dependency", "oracle", "error", err)
			checks["oracle"] = "unreachable"
			statusCode = http.StatusServiceUnavailable
		} else {
			checks["oracle"] = "ok"
		}
	}

	if statusCode != http.StatusOK {
		status["status"] = "degraded"
	}
	JSON(w, statusCode, status)
}
