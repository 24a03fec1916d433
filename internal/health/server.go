package health

import (
	"context"
	"net/http"
	"time"

	commonmw "sandgate/internal/common/http/middleware"
	appErr "sandgate/pkg/errors"
	"sandgate/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// Config holds the health listener settings. The gateway fills an empty
// Addr with its loopback default.
type Config struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	CheckTimeout time.Duration `yaml:"checkTimeout"`
}

// Check is one readiness check, e.g. container backend or redis.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// NewRouter builds the gin engine serving /healthz, /readyz and /usage.
func NewRouter(cfg Config, metrics *UsageMetrics, checks ...Check) *gin.Engine {
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 5 * time.Second
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.RequestID())
	router.Use(commonmw.RequestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})

	router.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.CheckTimeout)
		defer cancel()
		failed := map[string]string{}
		for _, check := range checks {
			if err := check.Fn(ctx); err != nil {
				failed[check.Name] = err.Error()
			}
		}
		if len(failed) > 0 {
			response.ErrorWithDetails(c, appErr.New(appErr.ServiceUnavailable), failed)
			return
		}
		response.Success(c, gin.H{"status": "ready"})
	})

	router.GET("/usage", func(c *gin.Context) {
		response.Success(c, metrics.Snapshot())
	})

	return router
}

// NewServer wraps the router in an http.Server.
func NewServer(cfg Config, metrics *UsageMetrics, checks ...Check) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      NewRouter(cfg, metrics, checks...),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}
