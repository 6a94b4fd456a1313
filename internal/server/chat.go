package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/calchat/calchat/internal/agent"
	"github.com/calchat/calchat/internal/instrumentation"
	"github.com/calchat/calchat/internal/logging"
)

const (
	// accessTokenHeader carries the caller's Google OAuth access token.
	accessTokenHeader = "X-Google-Access-Token"
	// userIDHeader identifies the caller; a demo identity is assumed
	// when the deployment has no auth middleware in front.
	userIDHeader = "X-User-Id"

	defaultUserID = "demo-user"

	// connectAccountReply is returned without invoking the agent when
	// the request carries no Google access token.
	connectAccountReply = "Please connect your Google account first so I can access your calendar."
)

// ChatRequest is the body of POST /ai/message.
type ChatRequest struct {
	Message        string `json:"message"`
	Timezone       string `json:"timezone,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponse is the reply envelope for POST /ai/message.
type ChatResponse struct {
	Reply          string `json:"reply"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ChatHandler answers conversational turns. The seam exists so tests
// can stand in for the full agent pipeline.
type ChatHandler interface {
	HandleMessage(ctx context.Context, req agent.TurnRequest) (agent.TurnResult, error)
}

// ChatServerConfig configures the chat API server.
type ChatServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// Agent handles chat turns. Required.
	Agent ChatHandler
	// Logger for request logging. Defaults to slog.Default().
	Logger *slog.Logger
	// Metrics records HTTP request counts and latency. Optional.
	Metrics *instrumentation.Metrics
	// Health serves the probe endpoints. A fresh checker is created
	// when nil.
	Health *HealthChecker
	// RequestTimeout bounds a single chat turn end to end. Zero means
	// no per-request deadline beyond the client's.
	RequestTimeout time.Duration
}

// ChatServer serves the conversational calendar API over HTTP.
type ChatServer struct {
	agent          ChatHandler
	logger         *slog.Logger
	metrics        *instrumentation.Metrics
	health         *HealthChecker
	requestTimeout time.Duration
	httpServer     *http.Server
}

// NewChatServer creates a ChatServer from the given configuration.
func NewChatServer(cfg ChatServerConfig) (*ChatServer, error) {
	if cfg.Agent == nil {
		return nil, fmt.Errorf("chat server requires an agent")
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("chat server requires a listen address")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}
	health := cfg.Health
	if health == nil {
		health = NewHealthChecker()
	}

	s := &ChatServer{
		agent:          cfg.Agent,
		logger:         logger,
		metrics:        metrics,
		health:         health,
		requestTimeout: cfg.RequestTimeout,
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the complete route table, including health probes.
func (s *ChatServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ai/message", s.instrument("/ai/message", http.HandlerFunc(s.handleMessage)))
	s.health.RegisterHealthEndpoints(mux)
	return mux
}

// Start begins serving. It blocks until the listener fails or Shutdown
// is called, mirroring http.Server.ListenAndServe semantics.
func (s *ChatServer) Start() error {
	s.logger.Info("chat server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("chat server failed: %w", err)
	}
	return nil
}

// Shutdown drains the server. Readiness flips first so probes fail
// while in-flight turns complete.
func (s *ChatServer) Shutdown(ctx context.Context) error {
	s.health.SetShuttingDown()
	s.health.SetReady(false)
	s.logger.Info("chat server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("chat server shutdown failed: %w", err)
	}
	return nil
}

// Addr returns the configured listen address.
func (s *ChatServer) Addr() string {
	return s.httpServer.Addr
}

func (s *ChatServer) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}

	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		userID = defaultUserID
	}

	token := accessToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, ChatResponse{
			Reply:          connectAccountReply,
			ConversationID: req.ConversationID,
		})
		return
	}

	ctx := r.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	result, err := s.agent.HandleMessage(ctx, agent.TurnRequest{
		UserID:         userID,
		ConversationID: req.ConversationID,
		Message:        req.Message,
		Timezone:       req.Timezone,
		AccessToken:    token,
	})
	if err != nil {
		s.logger.Error("chat turn failed",
			logging.UserHash(userID),
			logging.Err(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to process message"})
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Reply:          result.Reply,
		ConversationID: result.ConversationID,
	})
}

// accessToken extracts the Google access token from the dedicated
// header, falling back to a bearer Authorization header.
func accessToken(r *http.Request) string {
	if token := r.Header.Get(accessTokenHeader); token != "" {
		return token
	}
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}

// instrument wraps a handler with request logging and HTTP metrics.
// The path label is the route pattern, never the raw URL, to keep
// metric cardinality bounded.
func (s *ChatServer) instrument(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		duration := time.Since(started)
		s.metrics.RecordHTTPRequest(r.Context(), r.Method, path, rec.status, duration)
		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", path),
			slog.Int("status", rec.status),
			slog.Duration(logging.KeyDuration, duration))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
