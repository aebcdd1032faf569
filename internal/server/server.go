package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/eramap/internal/inference"
	"github.com/ppiankov/eramap/internal/resolver"
	"github.com/ppiankov/eramap/internal/worker"
)

// Options configures the HTTP API
type Options struct {
	Engine         *inference.Engine
	Resolver       resolver.Resolver // answers /api/region; may be nil
	AllowedOrigins []string
	// RegionTimeout bounds one /api/region resolver call
	RegionTimeout time.Duration
	// Limiter throttles resolver-bound routes per client IP; may be nil
	Limiter *worker.Limiter
}

// Server exposes the inference engine and the AI resolver contract over HTTP
type Server struct {
	engine        *inference.Engine
	resolver      resolver.Resolver
	regionTimeout time.Duration
	limiter       *worker.Limiter
	router        chi.Router
}

// New builds the router
func New(opts Options) *Server {
	timeout := opts.RegionTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s := &Server{
		engine:        opts.Engine,
		resolver:      opts.Resolver,
		regionTimeout: timeout,
		limiter:       opts.Limiter,
	}
	s.router = s.routes(opts.AllowedOrigins)
	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes(origins []string) chi.Router {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.throttle)
			r.Get("/region", s.handleRegion)
			r.Get("/infer", s.handleInfer)
		})
		r.Get("/suggest", s.handleSuggest)

		r.Route("/overrides", func(r chi.Router) {
			r.Get("/", s.handleListOverrides)
			r.Delete("/", s.handleClearOverrides)
			r.Post("/import", s.handleImportOverrides)
			r.Get("/export", s.handleExportOverrides)
			r.Get("/{period}/conflicts", s.handleConflicts)
			r.Put("/{period}", s.handlePutOverride)
			r.Delete("/{period}", s.handleDeleteOverride)
		})

		r.Route("/cache", func(r chi.Router) {
			r.Get("/", s.handleListCache)
			r.Delete("/", s.handleClearCache)
			r.Delete("/{period}", s.handleEvict)
		})
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

// throttle rejects clients that exceed their token bucket with 429
func (s *Server) throttle(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientKey(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "rate-limited")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey is the client IP; RealIP has already applied forwarding headers
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return "client:" + host
	}
	return "client:" + r.RemoteAddr
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
