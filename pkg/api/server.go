// Package api serves the scheduler over HTTP with gin
package api

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jakechorley/shiftplanner/pkg/core/model"
	"github.com/jakechorley/shiftplanner/pkg/core/scheduler"
	"github.com/jakechorley/shiftplanner/pkg/export"
)

// Default time limits applied to requests
const (
	DefaultTimeLimit = 10 * time.Second
	MaxTimeLimit     = 60 * time.Second
)

// solveFormats are the values of the solve format query parameter
var solveFormats = []string{"json", "text", "html", "csv", "xlsx"}

// Solver runs solves for the HTTP handlers
type Solver interface {
	Solve(req model.Request) (*scheduler.Result, error)
	SolveVariants(ctx context.Context, req model.Request, weights ...model.Weights) ([]*scheduler.Result, error)
}

// Server holds the handler dependencies
type Server struct {
	solver   Solver
	gatherer prometheus.Gatherer
	logger   *zap.Logger

	DefaultTimeLimit time.Duration
	MaxTimeLimit     time.Duration
}

// NewServer creates a Server. A nil gatherer serves the default registry.
func NewServer(solver Solver, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		solver:           solver,
		gatherer:         gatherer,
		logger:           logger,
		DefaultTimeLimit: DefaultTimeLimit,
		MaxTimeLimit:     MaxTimeLimit,
	}
}

// Router builds the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	{
		v1.POST("/solve", s.Solve)
		v1.POST("/compare", s.Compare)
	}

	return r
}

// Run serves the router on addr until ctx is cancelled
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Server shutdown failed", zap.Error(err))
		}
		cancel()
	}()

	s.logger.Info("Server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Solve handles POST /v1/solve. The format query parameter selects json
// (default), text, html, csv or xlsx output.
func (s *Server) Solve(c *gin.Context) {
	format := c.DefaultQuery("format", "json")
	if !slices.Contains(solveFormats, format) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be json, text, html, csv or xlsx"})
		return
	}

	var body SolveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := body.toModel(s.DefaultTimeLimit, s.MaxTimeLimit)
	if err != nil {
		s.writeError(c, err)
		return
	}

	res, err := s.solver.Solve(req)
	if err != nil {
		s.writeError(c, err)
		return
	}

	switch format {
	case "text":
		c.String(http.StatusOK, export.Text(res.Schedule, "Weekly Roster"))
	case "csv":
		c.Header("Content-Type", "text/csv")
		if err := export.WriteCSV(c.Writer, res.Schedule); err != nil {
			s.logger.Error("Failed to write csv", zap.Error(err))
		}
	case "html":
		c.Data(http.StatusOK, "text/html; charset=utf-8", export.HTML(res.Schedule, "Weekly Roster"))
	case "xlsx":
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", `attachment; filename="roster.xlsx"`)
		if err := export.WriteXLSX(c.Writer, res.Schedule, res.Scorecard); err != nil {
			s.logger.Error("Failed to write xlsx", zap.Error(err))
		}
	default:
		c.JSON(http.StatusOK, newSolveResponse(res))
	}
}

// Compare handles POST /v1/compare, solving one request with several
// weight configurations concurrently
func (s *Server) Compare(c *gin.Context) {
	var body CompareRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := body.Request.toModel(s.DefaultTimeLimit, s.MaxTimeLimit)
	if err != nil {
		s.writeError(c, err)
		return
	}

	weights := make([]model.Weights, len(body.Variants))
	for i, v := range body.Variants {
		weights[i] = v.Weights
	}

	results, err := s.solver.SolveVariants(c.Request.Context(), req, weights...)
	if err != nil {
		s.writeError(c, err)
		return
	}

	out := make([]SolveResponse, len(results))
	for i, res := range results {
		out[i] = newSolveResponse(res)
		out[i].Name = body.Variants[i].Name
	}
	c.JSON(http.StatusOK, gin.H{"variants": out})
}

// writeError maps input errors to 400 and everything else to 500
func (s *Server) writeError(c *gin.Context, err error) {
	var inputErr *model.InputValidationError
	if errors.As(err, &inputErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": inputErr.Reason, "field": inputErr.Field})
		return
	}

	s.logger.Error("Solve failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// requestLogger logs each request once it has been handled
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
