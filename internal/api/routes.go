package api

import (
	"net/http"

	"alcyxob/media-service/internal/metrics"
	"alcyxob/media-service/internal/ratelimit"
	"alcyxob/media-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouteDeps is everything the router needs from the process.
type RouteDeps struct {
	JWTSecret      string
	UploadDir      string
	Limiter        *ratelimit.Limiter
	UploadService  service.UploadService
	PrivateService service.PrivateMediaService
	Metrics        *metrics.Recorder
	Gatherer       prometheus.Gatherer
	Log            *zap.SugaredLogger
}

func SetupRoutes(router *gin.Engine, deps RouteDeps) {
	uploadHandler := NewUploadHandler(deps.UploadService, deps.PrivateService, deps.Metrics, deps.Log)
	mediaHandler := NewMediaHandler(deps.PrivateService, deps.UploadDir, deps.Metrics, deps.Log)

	authMiddleware := AuthMiddleware(deps.JWTSecret)
	limit := func(class ratelimit.Class) gin.HandlerFunc {
		return RateLimitMiddleware(deps.Limiter, class, deps.Metrics, deps.Log)
	}

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	uploads := router.Group("/api/uploads")
	{
		// Public files are served without auth; keys are unguessable.
		uploads.GET("/:key", mediaHandler.ServePublic)

		protected := uploads.Group("")
		protected.Use(authMiddleware)
		{
			protected.POST("/", limit(ratelimit.ClassBase64), uploadHandler.UploadDataURL)
			protected.POST("/media", limit(ratelimit.ClassMedia), uploadHandler.UploadMedia)

			// --- Private uploads ---
			protected.POST("/private/media", limit(ratelimit.ClassPrivate), uploadHandler.UploadPrivateMedia)
			protected.GET("/private/:id", mediaHandler.GetPrivate)
		}
	}
}
