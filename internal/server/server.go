// Package server exposes the map datasets, the server-rendered view and the
// index page over HTTP.
package server

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/college-map/internal/cache"
	"github.com/sells-group/college-map/internal/config"
	"github.com/sells-group/college-map/internal/model"
	"github.com/sells-group/college-map/internal/store"
)

// Payload cache keys.
const (
	keyColleges   = "colleges"
	keyBoundaries = "boundaries"
)

// defaultLoadTimeout bounds a shared dataset load when no request timeout
// is configured.
const defaultLoadTimeout = time.Minute

// Server serves the HTTP API.
type Server struct {
	store store.Store
	cache cache.Cache // nil disables payload caching
	cfg   config.ServerConfig
	index *template.Template
	group singleflight.Group
	log   *zap.Logger
}

// New creates a Server. c may be nil.
func New(st store.Store, c cache.Cache, cfg config.ServerConfig) (*Server, error) {
	index, err := template.ParseFS(templates, "templates/index.html")
	if err != nil {
		return nil, eris.Wrap(err, "server: parse index template")
	}
	return &Server{
		store: st,
		cache: c,
		cfg:   cfg,
		index: index,
		log:   zap.L().With(zap.String("component", "server")),
	}, nil
}

// Router builds the chi router with middleware and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(time.Duration(s.cfg.RequestTimeout) * time.Second))
	}

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/get_colleges", s.handleColleges)
	r.Get("/get_boundaries", s.handleBoundaries)
	r.Get("/view", s.handleView)
	r.Get("/export.xlsx", s.handleExport)
	return r
}

// Invalidate drops the cached dataset payloads.
func (s *Server) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, keyColleges, keyBoundaries)
}

// payload returns the JSON encoding of a dataset, from cache when possible.
// Concurrent misses for the same key share one store query. That query runs
// detached from any single request, so a caller that disconnects only stops
// its own wait.
func (s *Server) payload(ctx context.Context, key string, load func(context.Context) (any, error)) ([]byte, error) {
	if s.cache != nil {
		b, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.log.Warn("server: cache get failed", zap.String("key", key), zap.Error(err))
		case ok:
			return b, nil
		}
	}

	ch := s.group.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout())
		defer cancel()

		records, err := load(lctx)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(records)
		if err != nil {
			return nil, eris.Wrapf(err, "server: encode %s", key)
		}
		if s.cache != nil {
			if err := s.cache.Set(lctx, key, b); err != nil {
				s.log.Warn("server: cache set failed", zap.String("key", key), zap.Error(err))
			}
		}
		return b, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, eris.Wrapf(ctx.Err(), "server: wait for %s", key)
	}
}

func (s *Server) loadTimeout() time.Duration {
	if s.cfg.RequestTimeout > 0 {
		return time.Duration(s.cfg.RequestTimeout) * time.Second
	}
	return defaultLoadTimeout
}

func (s *Server) collegesPayload(ctx context.Context) ([]byte, error) {
	return s.payload(ctx, keyColleges, func(ctx context.Context) (any, error) {
		colleges, err := s.store.Colleges(ctx)
		if colleges == nil {
			colleges = []model.College{}
		}
		return colleges, err
	})
}

func (s *Server) boundariesPayload(ctx context.Context) ([]byte, error) {
	return s.payload(ctx, keyBoundaries, func(ctx context.Context) (any, error) {
		boundaries, err := s.store.Boundaries(ctx)
		if boundaries == nil {
			boundaries = []model.Boundary{}
		}
		return boundaries, err
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("server: write response", zap.Error(err))
	}
}

func (s *Server) writeRawJSON(w http.ResponseWriter, b []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.log.Error("server: request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
