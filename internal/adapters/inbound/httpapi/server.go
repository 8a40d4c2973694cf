// Package httpapi exposes the matcher, index diagnostics, and cache
// controls over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/charleschow/market-matcher/internal/core/indexcache"
	"github.com/charleschow/market-matcher/internal/core/matcher"
	"github.com/charleschow/market-matcher/internal/core/teams"
	"github.com/charleschow/market-matcher/internal/events"
	"github.com/charleschow/market-matcher/internal/pool"
	"github.com/charleschow/market-matcher/internal/telemetry"
)

// Matcher is the subset of *matcher.Matcher the API calls.
type Matcher interface {
	Match(ctx context.Context, ev matcher.Event) matcher.Result
	MatchBatch(ctx context.Context, evs []matcher.Event) []matcher.Result
}

// Cache is the subset of *indexcache.Manager the API calls.
type Cache interface {
	Get(ctx context.Context, sport events.Sport) (indexcache.Snapshot, error)
	Invalidate(sport events.Sport, source string)
	Stats() []indexcache.SlotStats
}

// AliasReloader is satisfied by *teams.Reloader.
type AliasReloader interface {
	Reload() (*teams.Table, error)
}

// PoolReporter is satisfied by *marketstore.Store.
type PoolReporter interface {
	PoolStats() pool.Stats
}

type Deps struct {
	Matcher Matcher
	Cache   Cache
	Aliases AliasReloader
	Pool    PoolReporter     // optional
	WS      http.HandlerFunc // optional fanout upgrade handler
	Bus     *events.Bus
}

type Options struct {
	Host           string
	Port           int
	CORSOrigins    []string
	RequestTimeout time.Duration
}

type Server struct {
	deps    Deps
	opts    Options
	started time.Time
	srv     *http.Server
}

func New(deps Deps, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	s := &Server{deps: deps, opts: opts, started: time.Now()}
	s.srv = &http.Server{
		Addr:              net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Handle("/metrics", telemetry.Handler())
	if s.deps.WS != nil {
		r.Get("/ws", s.deps.WS)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(s.opts.RequestTimeout))

		r.Post("/match", s.match)
		r.Post("/match/batch", s.matchBatch)

		r.Get("/index", s.indexStats)
		r.Get("/index/{sport}", s.index)
		r.Post("/index/{sport}/invalidate", s.invalidate)

		r.Post("/aliases/reload", s.reloadAliases)
	})

	return r
}

// ListenAndServe blocks until the server stops. It returns nil after a
// clean Shutdown.
func (s *Server) ListenAndServe() error {
	telemetry.Infof("httpapi: listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("httpapi: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		telemetry.Debugf("httpapi: %s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Microsecond))
	})
}
