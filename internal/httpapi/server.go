// Package httpapi exposes the process engine over a JSON REST surface for
// the surrounding UI: template/process execution, lineage operations, QP
// decisions, audit export, health and metrics.
package httpapi

import (
	"errors"
	"expvar"
	"net/http"

	"culturecore/internal/blob"
	"culturecore/internal/core"
	"culturecore/pkg/domain"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wires the engine service into a gin router.
type Server struct {
	svc     *core.Service
	bundles blob.Store
	logger  core.Logger
}

// Option customizes the server.
type Option func(*Server)

// WithBundleStore sets the blob store backing audit exports. Without it the
// export endpoint responds 503.
func WithBundleStore(store blob.Store) Option {
	return func(s *Server) { s.bundles = store }
}

// WithLogger sets the request logger.
func WithLogger(logger core.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a Server around the engine service.
func New(svc *core.Service, opts ...Option) *Server {
	s := &Server{svc: svc, logger: core.NewSlogLogger(nil)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/debug/vars", gin.WrapH(expvar.Handler()))

	api := r.Group("/api")
	{
		api.POST("/cultures", s.createCulture)
		api.GET("/cultures", s.listCultures)
		api.GET("/cultures/:id", s.getCulture)
		api.GET("/cultures/:id/containers", s.listCultureContainers)
		api.GET("/cultures/:id/history", s.listCultureHistory)
		api.POST("/cultures/:id/passage", s.passage)
		api.POST("/cultures/:id/bank", s.bank)
		api.POST("/cultures/:id/thaw", s.thaw)
		api.POST("/cultures/:id/export", s.exportBundle)

		api.POST("/containers", s.createContainer)

		api.POST("/templates", s.createTemplate)
		api.GET("/templates", s.listTemplates)

		api.POST("/processes", s.startProcess)
		api.GET("/processes", s.listProcesses)
		api.GET("/processes/:id", s.getProcess)
		api.GET("/processes/:id/current-step", s.currentStep)
		api.POST("/processes/:id/steps/:stepID/start", s.startStep)
		api.POST("/processes/:id/steps/:stepID/complete", s.completeStep)

		api.GET("/deviations", s.listDeviations)
		api.POST("/deviations/:id/decision", s.resolveDeviation)
		api.GET("/tasks", s.listTasks)
	}
	return r
}

// Run serves the API on addr, blocking until the listener fails.
func (s *Server) Run(addr string) error {
	return s.Router().Run(addr)
}

// renderError maps engine errors onto HTTP statuses.
func (s *Server) renderError(c *gin.Context, err error) {
	var (
		verr core.ValidationError
		cerr core.ConflictError
		nerr core.ErrNotFound
		rerr domain.RuleViolationError
		perr core.RepositoryError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.As(err, &cerr):
		c.JSON(http.StatusConflict, gin.H{"error": cerr.Error()})
	case errors.As(err, &nerr):
		c.JSON(http.StatusNotFound, gin.H{"error": nerr.Error()})
	case errors.As(err, &rerr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": rerr.Error(), "violations": rerr.Result.Violations})
	case errors.As(err, &perr):
		s.logger.Error("storage failure", "path", c.FullPath(), "error", perr)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
	default:
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
