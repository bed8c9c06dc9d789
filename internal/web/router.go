// Package web synthesizes the HTTP surface from the model registry:
// one CRUD resource per model, shaped responses, structured errors.
package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/forgecms/forge/internal/lifecycle"
	"github.com/forgecms/forge/internal/model"
	"github.com/forgecms/forge/internal/query"
	"github.com/forgecms/forge/internal/shape"
)

// Server wires the engine, query builder, and shapers into a chi router
type Server struct {
	registry *model.Registry
	engine   *lifecycle.Engine
	builder  *query.Builder
	shapers  map[string]*shape.Shaper
	logger   *zap.Logger

	authSecret string
	limiter    *SlidingWindow
	apiKeyAuth bool
	metrics    bool
}

// Option configures the server
type Option func(*Server)

// WithAuthSecret enables JWT bearer extraction with the given secret
func WithAuthSecret(secret string) Option {
	return func(s *Server) { s.authSecret = secret }
}

// WithRateLimiter enables per-model rate limiting
func WithRateLimiter(limiter *SlidingWindow) Option {
	return func(s *Server) { s.limiter = limiter }
}

// WithMetrics records an ApiMetric row per request
func WithMetrics() Option {
	return func(s *Server) { s.metrics = true }
}

// NewServer builds a server for the registry. Shapers are constructed
// eagerly so configuration errors surface at startup.
func NewServer(registry *model.Registry, engine *lifecycle.Engine, logger *zap.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		registry: registry,
		engine:   engine,
		builder:  query.NewBuilder(),
		shapers:  make(map[string]*shape.Shaper, registry.Count()),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, def := range registry.All() {
		shaper, err := shape.NewShaper(def, logger)
		if err != nil {
			return nil, err
		}
		s.shapers[def.Name] = shaper
	}
	return s, nil
}

// Handler builds the full router: global middleware, then one resource
// subtree per registered model at its route prefix.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)
	if s.authSecret != "" {
		r.Use(s.extractActor)
	}
	if s.apiKeyAuth {
		r.Use(s.requireAPIKey)
	}
	if s.metrics {
		r.Use(s.recordMetrics)
	}

	for _, def := range s.registry.All() {
		s.mountResource(r, def)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

// mountResource mounts the CRUD routes a model's api config enables
func (s *Server) mountResource(r chi.Router, def *model.Definition) {
	res := &resource{server: s, def: def, shaper: s.shapers[def.Name]}
	prefix := def.RoutePrefix()

	r.Route(prefix, func(r chi.Router) {
		if s.limiter != nil && def.API.RateLimit > 0 {
			r.Use(s.rateLimit(def))
		}

		if def.OperationEnabled("create") {
			r.Post("/", res.create)
		}
		if def.OperationEnabled("list") {
			r.Get("/", res.list)
		}
		if def.OperationEnabled("read") {
			r.Get("/{id}", res.show)
		}
		if def.OperationEnabled("update") {
			r.Patch("/{id}", res.update)
		}
		if def.OperationEnabled("delete") {
			r.Delete("/{id}", res.delete)
			if def.SoftDelete {
				r.Post("/{id}/restore", res.restore)
				r.Delete("/{id}/force", res.forceDelete)
			}
		}
	})

	s.logger.Info("mounted resource",
		zap.String("model", def.Name),
		zap.String("prefix", prefix))
}
