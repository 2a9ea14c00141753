// Package apigateway builds the gin engines served by the binaries.
package apigateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"speech-assessment-platform/backend/internal/auth"
	"speech-assessment-platform/backend/internal/exercisemanagement"
)

// HealthFunc reports whether the process can do its job.
type HealthFunc func(ctx context.Context) error

// SetupExerciseRouter mounts the exercise API. Everything under /api requires
// the API key when one is configured.
func SetupExerciseRouter(h *exercisemanagement.Handlers, apiKey string, gatherer prometheus.Gatherer, health HealthFunc, logger *zap.Logger) *gin.Engine {
	router := newEngine(logger)
	router.GET("/healthz", healthHandler(health))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	api.Use(auth.APIKeyMiddleware(apiKey))
	{
		exerciseRoutes := api.Group("/exercise")
		{
			exerciseRoutes.POST("/start", h.StartExerciseHandler)
			exerciseRoutes.POST("/upload", h.UploadExerciseHandler)
		}
	}
	return router
}

// SetupStatusRouter serves /healthz and /metrics for the background
// processes.
func SetupStatusRouter(gatherer prometheus.Gatherer, health HealthFunc, logger *zap.Logger) *gin.Engine {
	router := newEngine(logger)
	router.GET("/healthz", healthHandler(health))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	return router
}

func newEngine(logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	return router
}

func healthHandler(health HealthFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if health != nil {
			if err := health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// requestLogger replaces gin's default access log with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case c.Request.URL.Path == "/healthz" || c.Request.URL.Path == "/metrics":
			logger.Debug("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}
