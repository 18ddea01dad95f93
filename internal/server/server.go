// Package server exposes the comparison service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hl-compare/hl-compare/internal/compare"
	"github.com/hl-compare/hl-compare/internal/config"
	"github.com/hl-compare/hl-compare/internal/model"
	"github.com/hl-compare/hl-compare/internal/store"
)

// Comparer is the service behind the API.
type Comparer interface {
	Compare(ctx context.Context, req compare.Request) (*model.CompareResponse, error)
	Summarize(ctx context.Context, uploads []model.Upload) (*compare.SummaryResponse, error)
	Get(ctx context.Context, id string) (*model.CompareResponse, error)
	List(ctx context.Context, limit int) ([]store.ComparisonSummary, error)
}

// Option configures a Server.
type Option func(*Server)

// WithFiles serves stored uploads from dir under /files/.
func WithFiles(dir string) Option {
	return func(s *Server) {
		s.filesDir = dir
	}
}

// WithUI mounts the browser UI under /ui/.
func WithUI(h http.Handler) Option {
	return func(s *Server) {
		s.ui = h
	}
}

// Server routes HTTP requests to the comparison service.
type Server struct {
	cfg      config.ServerConfig
	svc      Comparer
	filesDir string
	ui       http.Handler
	limiter  *ipLimiter
	now      func() time.Time
}

// New creates a Server.
func New(cfg config.ServerConfig, svc Comparer, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		svc:     svc,
		limiter: newIPLimiter(cfg.SubmitRatePerMin, cfg.SubmitBurst),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.middleware)
		r.Use(s.maxUpload)
		r.Post("/compare", s.wrap(s.handleCompare))
		r.Post("/compare/", s.wrap(s.handleCompare))
		r.Post("/documents/summary", s.wrap(s.handleSummary))
	})

	r.Route("/results", func(r chi.Router) {
		r.Get("/", s.wrap(s.handleList))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.wrap(s.handleGet))
			r.Get("/table/{category}", s.wrap(s.handleTable))
			r.Get("/accordion", s.wrap(s.handleAccordion))
			r.Get("/evidence/{category}/{entity}/{metric}", s.wrap(s.handleEvidence))
			r.Get("/export", s.wrap(s.handleExport))
			r.Get("/memo", s.wrap(s.handleMemo))
		})
	})

	if s.filesDir != "" {
		r.Handle("/files/*", http.StripPrefix("/files/", fileServer(s.filesDir)))
	}
	if s.ui != nil {
		r.Handle("/ui", http.RedirectHandler("/ui/", http.StatusMovedPermanently))
		r.Handle("/ui/*", http.StripPrefix("/ui", s.ui))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	return r
}

// Run serves on port until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

// maxUpload caps request bodies at the configured size.
func (s *Server) maxUpload(next http.Handler) http.Handler {
	limit := int64(s.cfg.MaxUploadMB) << 20
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limit > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

// fileServer serves stored uploads without directory listings.
func fileServer(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean("/" + r.URL.Path)
		if name == "/" || strings.HasSuffix(r.URL.Path, "/") {
			writeDetail(w, http.StatusNotFound, "Not Found")
			return
		}
		if info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name))); err != nil || info.IsDir() {
			writeDetail(w, http.StatusNotFound, "Not Found")
			return
		}
		fs.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			zap.L().Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote", r.RemoteAddr),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
