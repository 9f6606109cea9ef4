// Package server exposes the formula engine, the definition store and the
// calculator over HTTP.
//
// Routes:
//
//	POST /api/v1/formulas/evaluate   evaluate a formula against a context
//	POST /api/v1/formulas/validate   check that a formula parses
//	POST /api/v1/formulas/inspect    list the fields and parameters it reads
//	GET  /api/v1/metrics             current definitions (?farm_id=)
//	POST /api/v1/metrics             create a definition
//	GET  /api/v1/metrics/:id         one definition
//	PUT  /api/v1/metrics/:id         update a definition
//	DELETE /api/v1/metrics/:id       deactivate a definition
//	GET  /api/v1/metrics/:id/history every version of a definition
//	POST /api/v1/metrics/calculate   calculate a farm's current definitions
//	GET  /health                     liveness
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics"
	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/metric"
)

// Server serves the HTTP API.
type Server struct {
	store      metric.Store
	engine     *herdmetrics.Engine
	calculator *metric.Calculator
	logger     *slog.Logger

	maxBodyBytes int64
}

// DefaultMaxBodyBytes is the request body limit of the /api/v1 routes.
const DefaultMaxBodyBytes = 8 << 20

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithEngine sets the engine behind the formula routes.
func WithEngine(engine *herdmetrics.Engine) Option {
	return func(s *Server) {
		s.engine = engine
	}
}

// WithCalculator sets the calculator behind /metrics/calculate.
func WithCalculator(calc *metric.Calculator) Option {
	return func(s *Server) {
		s.calculator = calc
	}
}

// WithMaxBodyBytes sets the request body limit of the /api/v1 routes.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// New creates a Server over store.
func New(store metric.Store, opts ...Option) *Server {
	s := &Server{
		store:        store,
		logger:       slog.Default(),
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = herdmetrics.New(herdmetrics.WithLogger(s.logger))
	}
	if s.calculator == nil {
		s.calculator = metric.NewCalculator(metric.WithLogger(s.logger), metric.WithEngine(s.engine))
	}
	return s
}

// Handler returns a gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	s.RegisterRoutes(router)
	return router
}

// RegisterRoutes registers the API routes on r.
func (s *Server) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api/v1", s.limitBody())

	formulas := api.Group("/formulas")
	formulas.POST("/evaluate", s.evaluateFormula)
	formulas.POST("/validate", s.validateFormula)
	formulas.POST("/inspect", s.inspectFormula)

	metrics := api.Group("/metrics")
	metrics.GET("", s.listMetrics)
	metrics.POST("", s.createMetric)
	metrics.POST("/calculate", s.calculateMetrics)
	metrics.GET("/:id", s.getMetric)
	metrics.PUT("/:id", s.updateMetric)
	metrics.DELETE("/:id", s.deactivateMetric)
	metrics.GET("/:id/history", s.metricHistory)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		s.logger.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("ip", c.ClientIP()),
		)
	}
}

// limitBody caps request bodies at maxBodyBytes.
func (s *Server) limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodyBytes)
		}
		c.Next()
	}
}

// bindJSON decodes the request body into obj. It answers 413 when the body
// is over the limit and 400 for anything else, and reports whether the
// handler should go on.
func bindJSON(c *gin.Context, obj any) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		fail(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return false
	}
	fail(c, http.StatusBadRequest, err.Error())
	return false
}

// fail writes an error body.
func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
