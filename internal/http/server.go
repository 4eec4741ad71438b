// Package http exposes the step group over HTTP: the command endpoint
// used by the chat transport, read-only JSON endpoints for
// leaderboards and stats, and a small embedded dashboard.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"passi/internal/cache"
	"passi/internal/command"
	"passi/internal/core"
	"passi/internal/middleware/ratelimit"
	"passi/internal/middleware/security"
	"passi/internal/middleware/trace"
	"passi/internal/services"
	appweb "passi/web"
)

type Server struct {
	http.Server
	service    *services.StepsService
	dispatcher *command.Dispatcher
	templates  *template.Template

	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware
	headers     *security.HeadersMiddleware

	// Response caches keyed by (window, ref day, ledger version). A
	// mutation bumps the version, so stale boards can never be served
	// and no explicit invalidation is needed.
	boardCache *cache.LRUCache[[]core.RankedEntry]
	statsCache *cache.LRUCache[core.MemberStats]
	cacheMgr   *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run
// server.
func NewServer(addr string, service *services.StepsService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		service:     service,
		dispatcher:  command.NewDispatcher(service),
		rateLimiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		tracer:      trace.NewMiddleware(clientIP),
		headers:     security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		boardCache:  cache.NewLRUCache[[]core.RankedEntry](100, 5*time.Minute),
		statsCache:  cache.NewLRUCache[core.MemberStats](200, 5*time.Minute),
		cacheMgr:    cache.NewManager(),
	}

	s.cacheMgr.Register(s.boardCache)
	s.cacheMgr.Register(s.statsCache)
	s.cacheMgr.StartCleanup(10 * time.Minute)

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/{$}", s.secured(s.handleIndex))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("POST /api/command", s.secured(s.handleCommand))
	mux.HandleFunc("GET /api/leaderboard", s.secured(s.handleLeaderboard))
	mux.HandleFunc("GET /api/members/{id}/stats", s.secured(s.handleMemberStats))

	return s
}

// Shutdown stops the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheMgr.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// clientIP extracts the client address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// secured adds tracing, rate limiting for mutations, and standard
// security headers.
func (s *Server) secured(next http.HandlerFunc) http.HandlerFunc {
	limited := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && !s.rateLimiter.Allow(clientIP(r)) {
			slog.WarnContext(r.Context(), "Rate limit exceeded",
				"client_ip", clientIP(r),
				"path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	})
	return s.tracer.Middleware(s.headers.Middleware(limited)).ServeHTTP
}
