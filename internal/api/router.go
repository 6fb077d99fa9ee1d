package api

import (
	"github.com/gin-gonic/gin"

	"github.com/germanilia/presentation-maker/internal/infra/limiter"
	"github.com/germanilia/presentation-maker/internal/infra/logger"
	"github.com/germanilia/presentation-maker/internal/service/orchestrator"
	"github.com/germanilia/presentation-maker/internal/service/storage"
)

// NewRouter builds the HTTP surface. runs admission-controls the generate
// endpoint so a busy pipeline answers fast instead of queueing requests.
func NewRouter(orch *orchestrator.Orchestrator, store *storage.Service, runs *limiter.Limiter, log *logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))

	handler := NewHandler(orch, store, runs, log)

	r.GET("/health", handler.Health)

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/generate", handler.Generate)
		apiGroup.POST("/save-config", handler.SaveConfig)
		apiGroup.GET("/load-config", handler.LoadConfig)
		apiGroup.GET("/download/:filename", handler.Download)
		apiGroup.GET("/check-file/:folder/:filename", handler.CheckFile)
	}

	return r
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log.Info("request started",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		c.Next()
		log.Info("request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	}
}
