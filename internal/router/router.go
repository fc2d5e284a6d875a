package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"invoiceocr/internal/handler"
	"invoiceocr/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	logger *zap.Logger,
	allowedOrigins []string,
	maxUploadBytes int64,
	docH *handler.DocumentHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(allowedOrigins))

	// Multipart parts beyond this are spooled to disk by net/http.
	if maxUploadBytes > 0 {
		r.MaxMultipartMemory = maxUploadBytes
	}

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")

	docs := v1.Group("/documents")
	docs.POST("/upload", docH.Upload)
	docs.GET("", docH.List)
	docs.GET("/export", docH.Export)
	docs.GET("/:id", docH.GetByID)
	docs.GET("/:id/original", docH.Original)
	docs.DELETE("/:id", docH.Delete)

	return r
}
