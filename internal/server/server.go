package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/GarethPark/story-subscription-sub001/internal/app"
	"github.com/GarethPark/story-subscription-sub001/internal/domain"
	"github.com/GarethPark/story-subscription-sub001/internal/imagefetch"
	"github.com/GarethPark/story-subscription-sub001/internal/metrics"
	"github.com/GarethPark/story-subscription-sub001/internal/ratelimit"
	"github.com/GarethPark/story-subscription-sub001/internal/util"
)

const defaultSessionCookie = "storysub_session"

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App

	// BaseURL is the public frontend URL; logout redirects there and the
	// billing portal returns there.
	BaseURL string

	// ImageOriginURL is the upstream the image relay fetches from.
	ImageOriginURL string
	// ImageClient overrides the relay's HTTP client. Defaults to the
	// SSRF-guarded client.
	ImageClient *http.Client

	SessionCookieName string

	// Limiters are optional; nil disables the corresponding limit.
	LoginLimiter    *ratelimit.FixedWindowLimiter
	GenerateLimiter *ratelimit.FixedWindowLimiter

	Metrics *metrics.Collector

	MaxCoverBytes int64
}

// Server exposes HTTP endpoints for the reading platform.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	baseURL         string
	imageOrigin     string
	imageClient     *http.Client
	cookieName      string
	loginLimiter    *ratelimit.FixedWindowLimiter
	generateLimiter *ratelimit.FixedWindowLimiter
	collector       *metrics.Collector
	maxCoverBytes   int64
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, fmt.Errorf("server requires an app")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("server requires a base URL")
	}
	if strings.TrimSpace(cfg.ImageOriginURL) == "" {
		return nil, fmt.Errorf("server requires an image origin URL")
	}
	cookieName := strings.TrimSpace(cfg.SessionCookieName)
	if cookieName == "" {
		cookieName = defaultSessionCookie
	}
	imageClient := cfg.ImageClient
	if imageClient == nil {
		imageClient = imagefetch.NewClient(10 * time.Second)
	}
	maxCoverBytes := cfg.MaxCoverBytes
	if maxCoverBytes <= 0 {
		maxCoverBytes = 10 * 1024 * 1024
	}
	s := &Server{
		app:             cfg.App,
		mux:             http.NewServeMux(),
		baseURL:         strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		imageOrigin:     strings.TrimRight(strings.TrimSpace(cfg.ImageOriginURL), "/"),
		imageClient:     imageClient,
		cookieName:      cookieName,
		loginLimiter:    cfg.LoginLimiter,
		generateLimiter: cfg.GenerateLimiter,
		collector:       cfg.Metrics,
		maxCoverBytes:   maxCoverBytes,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with middleware applied.
func (s *Server) Router() http.Handler {
	var handler http.Handler = s.mux
	if s.collector != nil {
		handler = s.collector.Middleware(handler)
	}
	handler = util.WithRequestLog(handler)
	handler = util.WithRequestID(handler)
	return util.WithSecurityHeaders(util.WithCORS(handler))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	if s.collector != nil {
		s.mux.Handle("/metrics", s.collector.Handler())
	}

	// auth
	s.mux.HandleFunc("/api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/users/me", s.authenticated(s.handleMe))

	// stories
	s.mux.Handle("/api/stories/generate", s.authenticated(s.handleGenerateStory))
	s.mux.HandleFunc("/api/stories", s.handleListStories)
	s.mux.HandleFunc("/api/stories/", s.handleStoryByID)

	// reader state (auth required)
	s.mux.Handle("/api/reading-history", s.authenticated(s.handleReadingHistory))
	s.mux.Handle("/api/favorites/", s.authenticated(s.handleFavoriteByID))
	s.mux.Handle("/api/feedback", s.authenticated(s.handleSubmitFeedback))
	s.mux.Handle("/api/billing/portal", s.authenticated(s.handleBillingPortal))

	// image relay
	s.mux.HandleFunc("/api/images/", s.handleImage)

	// admin
	s.mux.Handle("/api/admin/users", s.adminOnly(s.handleAdminUsers))
	s.mux.Handle("/api/admin/users/", s.adminOnly(s.handleAdminUserByID))
	s.mux.Handle("/api/admin/stories/", s.adminOnly(s.handleAdminStoryByID))
	s.mux.Handle("/api/admin/feedback", s.adminOnly(s.handleAdminFeedback))
	s.mux.Handle("/api/admin/feedback/", s.adminOnly(s.handleAdminFeedbackByID))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			s.audit(r, "api.authorize", "fail")
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			s.audit(r, "api.admin.authorize", "fail", "reason", "unauthenticated")
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if !user.IsAdmin {
			s.audit(r, "api.admin.authorize", "fail", "user_id", user.ID, "reason", "forbidden")
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := s.sessionToken(r)
	if !ok {
		return domain.User{}, false
	}
	return s.app.UserFromToken(token)
}

// sessionToken resolves the session token from the Authorization header or,
// failing that, the session cookie.
func (s *Server) sessionToken(r *http.Request) (string, bool) {
	if token, ok := bearerToken(r); ok {
		return token, true
	}
	if cookie, err := r.Cookie(s.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
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

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps application errors onto HTTP statuses for the
// user-facing surface.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, app.ErrInsufficientCredits):
		writeError(w, http.StatusPaymentRequired, "insufficient credits")
	case errors.Is(err, app.ErrNoBillingAccount):
		writeError(w, http.StatusBadRequest, "No subscription found")
	case errors.Is(err, app.ErrGenerationUnavailable):
		writeError(w, http.StatusBadGateway, "story generation unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeAdminError maps admin mutation failures. Validation problems come
// back as 400; everything else, missing rows included, is an opaque 500 so
// the admin surface does not leak which IDs exist.
func writeAdminError(w http.ResponseWriter, err error) {
	if errors.Is(err, app.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", clientIP(r),
		"request_id", util.RequestIDFromRequest(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, key, msg string) bool {
	if limiter == nil {
		return true
	}
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func clientIP(r *http.Request) string {
	if xfwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xfwd != "" {
		parts := strings.Split(xfwd, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
