package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 10 * time.Second
	// The login callback makes several sequential Discord calls.
	writeTimeout = 60 * time.Second
	idleTimeout  = 120 * time.Second
)

type Deps struct {
	Auth     AuthFlow
	Profiles ProfileReader
	Shifts   ShiftLedger
	Logs     ModerationLog
	Stats    StatsSource
	Members  MemberRoster
	Registry *prometheus.Registry
}

type Options struct {
	Addr           string
	AllowedOrigins []string
	AuthRateLimit  rate.Limit
	AuthBurst      int
}

type Server struct {
	http *http.Server
}

func NewServer(deps Deps, opts Options) *Server {
	return &Server{
		http: &http.Server{
			Addr:              opts.Addr,
			Handler:           NewRouter(deps, opts),
			ReadHeaderTimeout: readHeaderTimeout,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
		},
	}
}

func NewRouter(deps Deps, opts Options) http.Handler {
	h := &handlers{
		auth:     deps.Auth,
		profiles: deps.Profiles,
		shifts:   deps.Shifts,
		logs:     deps.Logs,
		stats:    deps.Stats,
		members:  deps.Members,
		now:      time.Now,
	}
	metrics := newHTTPMetrics(deps.Registry)
	limiter := NewIPRateLimiter(opts.AuthRateLimit, opts.AuthBurst)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(metrics.instrument)
	r.Use(middleware.Recoverer)
	r.Use(CORSMiddleware(opts.AllowedOrigins))

	r.Get("/health", h.health)
	r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))

	r.Route("/auth", func(r chi.Router) {
		r.Use(RateLimitMiddleware(limiter))
		r.Post("/discord", h.authorize)
		r.Post("/callback", h.callback)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/me/{userId}", h.me)
		r.Post("/shift/start", h.startShift)
		r.Post("/shift/end", h.endShift)
		r.Get("/shifts/{serverId}/{userId}", h.listShifts)
		r.Post("/moderation/log", h.logAction)
		r.Get("/panel/{serverId}", h.panel)
		r.Post("/members/join", h.memberJoin)
		r.Post("/members/leave", h.memberLeave)
	})
	return r
}

// ListenAndServe blocks until the server stops. A graceful Shutdown is not
// reported as an error.
func (s *Server) ListenAndServe() error {
	slog.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests. The injector calls it on shutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down http server")
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
