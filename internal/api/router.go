// Package api exposes the clone service over HTTP.
package api

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gotrs-io/eventclone/internal/clonequeue"
	"github.com/gotrs-io/eventclone/internal/service"
	"github.com/gotrs-io/eventclone/internal/version"
)

// CloneService is the subset of service.CloneService the handlers call.
type CloneService interface {
	Submit(ctx context.Context, req service.CloneRequest) (string, error)
	SubmitImport(ctx context.Context, req service.ImportRequest) (string, error)
	Status(ctx context.Context, jobID string) (*service.JobStatus, error)
	Cancel(ctx context.Context, jobID string) (clonequeue.CancelOutcome, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Router wires the HTTP routes onto a gin engine.
type Router struct {
	engine      *gin.Engine
	clones      CloneService
	health      map[string]HealthCheck
	metricsPath string
	logger      *log.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithHealthCheck adds a named dependency check to /health.
func WithHealthCheck(name string, check HealthCheck) RouterOption {
	return func(r *Router) {
		r.health[name] = check
	}
}

// WithMetricsPath serves prometheus metrics at path. An empty path disables it.
func WithMetricsPath(path string) RouterOption {
	return func(r *Router) {
		r.metricsPath = path
	}
}

// WithRouterLogger overrides the request error logger.
func WithRouterLogger(l *log.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRouter creates a router. A nil engine gets gin.New with recovery.
func NewRouter(engine *gin.Engine, clones CloneService, opts ...RouterOption) *Router {
	if engine == nil {
		engine = gin.New()
		engine.Use(gin.Recovery())
	}
	r := &Router{
		engine:      engine,
		clones:      clones,
		health:      make(map[string]HealthCheck),
		metricsPath: "/metrics",
		logger:      log.New(os.Stdout, "[API] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetupRoutes registers every route.
func (r *Router) SetupRoutes() {
	r.engine.GET("/health", r.healthCheck)
	if r.metricsPath != "" {
		r.engine.GET(r.metricsPath, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.engine.Group("/api/v1")
	v1.GET("/version", r.versionInfo)
	v1.POST("/clone", r.submitClone)
	v1.GET("/clone/:id", r.getCloneStatus)
	v1.DELETE("/clone/:id", r.cancelClone)
	v1.POST("/import", r.submitImport)
}

// GetEngine returns the underlying gin engine.
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

func (r *Router) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string, len(r.health))
	healthy := true
	for name, check := range r.health {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":    state,
		"checks":    checks,
		"timestamp": time.Now().Unix(),
	})
}

func (r *Router) versionInfo(c *gin.Context) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: version.GetInfo()})
}
