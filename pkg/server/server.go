// Package server exposes buckets over HTTP.
//
// Routes:
//
//	GET    /:bucket/*key          payload, metadata as <prefix><name> headers
//	HEAD   /:bucket/*key          headers only
//	PUT    /:bucket/*key          multipart upload, metadata from <prefix><name> headers
//	DELETE /:bucket/*key
//	GET    /search/:bucket/*prefix
//	GET    /healthz
//	GET    /metrics
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/agenthands/amane/pkg/bucket"
	"github.com/agenthands/amane/pkg/cidutil"
	"github.com/agenthands/amane/pkg/core"
	"github.com/agenthands/amane/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	cfg     core.ServerConfig
	store   *bucket.Store
	engine  *gin.Engine
	cids    cidutil.Builder
	log     *zap.Logger
	metrics *metrics.Metrics
	gather  prometheus.Gatherer
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records request metrics into m and serves g at /metrics.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gather = g
	}
}

// New builds the router. Zero fields of cfg take their defaults.
func New(store *bucket.Store, cfg core.ServerConfig, opts ...Option) *Server {
	def := core.DefaultConfig().Server
	if cfg.MetaPrefix == "" {
		cfg.MetaPrefix = def.MetaPrefix
	}
	if cfg.FileField == "" {
		cfg.FileField = def.FileField
	}
	if cfg.Bind == "" {
		cfg.Bind = def.Bind
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	cfg.MetaPrefix = strings.ToLower(cfg.MetaPrefix)

	s := &Server{
		cfg:   cfg,
		store: store,
		cids:  cidutil.NewBuilder(),
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	s.engine.Use(RequestID(), AccessLog(s.log), Metrics(s.metrics), Recovery(s.log))
	s.engine.NoRoute(func(c *gin.Context) { respondStatus(c, http.StatusNotFound) })
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.health)
	if s.gather != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{})))
	}
	s.engine.GET("/search/:bucket/*prefix", s.search)

	s.engine.GET("/:bucket/*key", s.getObject)
	s.engine.HEAD("/:bucket/*key", s.headObject)
	s.engine.PUT("/:bucket/*key", s.putObject)
	s.engine.DELETE("/:bucket/*key", s.deleteObject)
}

// Handler returns the router for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on cfg.Bind until ctx is done, then drains in-flight requests
// for at most cfg.ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Bind,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("bind", s.cfg.Bind))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.log.Info("http server shutting down", zap.Duration("timeout", s.cfg.ShutdownTimeout))
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
