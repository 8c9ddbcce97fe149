// Package server exposes the HTTP API: user-facing routes verified against
// Auth0 access tokens, trusted internal routes guarded by service tokens, and
// a streamed chat relay.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"tubechat/internal/app"
	"tubechat/internal/ratelimit"
	"tubechat/internal/servicetoken"
	"tubechat/internal/usertoken"
	"tubechat/internal/util"
	"tubechat/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App             *app.App
	TokenVerifier   *usertoken.Verifier
	ServiceVerifier *servicetoken.Verifier
	RedisAddr       string
	RedisPassword   string

	// AllowedOrigins lists the frontend origins CORS accepts; empty
	// reflects any origin.
	AllowedOrigins []string
	// TrustedProxies controls which peers may set forwarding headers.
	TrustedProxies *util.TrustedProxies

	ChatRateLimitPerMinute       int
	TranscriptRateLimitPerMinute int
}

// Server exposes HTTP endpoints for the backend.
type Server struct {
	app               *app.App
	tokenVerifier     *usertoken.Verifier
	serviceVerifier   *servicetoken.Verifier
	mux               *http.ServeMux
	allowedOrigins    []string
	trustedProxies    *util.TrustedProxies
	chatLimiter       *ratelimit.FixedWindow
	transcriptLimiter *ratelimit.FixedWindow
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, fmt.Errorf("server requires app")
	}
	if cfg.TokenVerifier == nil {
		return nil, fmt.Errorf("server requires token verifier")
	}
	chatLimit := cfg.ChatRateLimitPerMinute
	if chatLimit <= 0 {
		chatLimit = 20
	}
	transcriptLimit := cfg.TranscriptRateLimitPerMinute
	if transcriptLimit <= 0 {
		transcriptLimit = 10
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil, fmt.Errorf("server requires redis addr for rate limiting")
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	rateWindow := time.Minute
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindow, error) {
		limiter, err := ratelimit.NewFixedWindow(redisClient, "tubechat:ratelimit:"+name, limit, rateWindow)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	chatLimiter, err := newLimiter("chat", chatLimit)
	if err != nil {
		return nil, err
	}
	transcriptLimiter, err := newLimiter("transcript", transcriptLimit)
	if err != nil {
		return nil, err
	}
	s := &Server{
		app:               cfg.App,
		tokenVerifier:     cfg.TokenVerifier,
		serviceVerifier:   cfg.ServiceVerifier,
		mux:               http.NewServeMux(),
		allowedOrigins:    cfg.AllowedOrigins,
		trustedProxies:    cfg.TrustedProxies,
		chatLimiter:       chatLimiter,
		transcriptLimiter: transcriptLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(s.allowedOrigins, util.WithRequestID(util.WithRequestLog(s.trustedProxies, s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// chat & conversations
	s.mux.Handle("/api/chat", s.authenticated(s.handleChat))
	s.mux.Handle("/api/conversations", s.authenticated(s.handleConversations))
	s.mux.Handle("/api/conversations/", s.authenticated(s.handleConversationByID))

	// trusted writes from the completion callbacks
	s.mux.Handle("/internal/saveAssistantMessage", s.serviceAuthenticated(s.handleSaveAssistantMessage))
	s.mux.Handle("/internal/generateTitle", s.serviceAuthenticated(s.handleGenerateTitle))

	// videos & transcripts
	s.mux.HandleFunc("/api/checkIfVideoExists", s.handleCheckVideo)
	s.mux.Handle("/api/videos", s.authenticated(s.handleSaveVideo))
	s.mux.Handle("/api/transcript", s.authenticated(s.handleTranscript))

	// account
	s.mux.HandleFunc("/api/users/me", s.handleMe)
	s.mux.HandleFunc("/api/modes", s.handleModes)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type identityHandler func(http.ResponseWriter, *http.Request, domain.Identity)

func (s *Server) authenticated(next identityHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, identity)
	})
}

func (s *Server) serviceAuthenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := servicetoken.BearerToken(r)
		if !ok || s.serviceVerifier == nil {
			s.audit(r, "internal.authorize", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		claims, err := s.serviceVerifier.Verify(token)
		if err != nil {
			s.audit(r, "internal.authorize", "fail", "reason", "invalid_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		s.audit(r, "internal.authorize", "success", "issuer", claims.Issuer)
		next(w, r)
	})
}

func (s *Server) authorize(r *http.Request) (domain.Identity, bool) {
	token, ok := bearerToken(r)
	if !ok {
		s.audit(r, "token.verify", "fail", "reason", "missing_token")
		return domain.Identity{}, false
	}
	identity, err := s.tokenVerifier.VerifyIdentity(token)
	if err != nil {
		s.audit(r, "token.verify", "fail", "reason", "invalid_signature_or_claims")
		return domain.Identity{}, false
	}
	return identity, true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trustedProxies),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindow, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if limiter.Allow(r.Context(), key) {
		return true
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(limiter.Window()/time.Second)))
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}
