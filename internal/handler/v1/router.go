package v1

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/neurotrace/neurotrace-api/internal/domain"
	"github.com/neurotrace/neurotrace-api/internal/handler/middleware"
	"github.com/neurotrace/neurotrace-api/pkg/auth"
	"github.com/neurotrace/neurotrace-api/pkg/metrics"
)

// Handlers bundles everything the router needs.
type Handlers struct {
	Auth      *AuthHandler
	Patient   *PatientHandler
	Visit     *VisitHandler
	Analytics *AnalyticsHandler
	Export    *ExportHandler
}

// NewRouter assembles the gin engine with the full middleware chain and
// every v1 route.
func NewRouter(h Handlers, jwtManager *auth.JWTManager, collector *metrics.Collector, log *zap.Logger, allowedOrigins []string) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger(log))
	engine.Use(middleware.Metrics(collector))
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	corsConfig := cors.DefaultConfig()
	if len(allowedOrigins) > 0 {
		corsConfig.AllowOrigins = allowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", "X-Request-ID")
	engine.Use(cors.New(corsConfig))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	api := engine.Group("/api/v1")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
	}

	protected := api.Group("")
	protected.Use(middleware.Authenticate(jwtManager))
	{
		protected.GET("/auth/profile", h.Auth.Profile)
		protected.POST("/auth/change-password", h.Auth.ChangePassword)

		patients := protected.Group("/patients")
		{
			patients.POST("", h.Patient.Create)
			patients.GET("", h.Patient.List)
			patients.GET("/:id", h.Patient.Get)
			patients.PUT("/:id", h.Patient.Update)
			// Deletion cascades to the full visit history, so it is
			// reserved for administrators.
			patients.DELETE("/:id", middleware.RequireRole(string(domain.RoleAdmin)), h.Patient.Delete)

			patients.POST("/:id/visits", h.Visit.Ingest)
			patients.GET("/:id/visits", h.Visit.ListForPatient)
			patients.GET("/:id/analytics", h.Analytics.PatientAnalytics)
			patients.GET("/:id/export", h.Export.Patient)
		}

		visits := protected.Group("/visits")
		{
			visits.GET("/:id", h.Visit.Get)
			visits.GET("/:id/export", h.Export.Visit)
		}

		protected.GET("/analytics/overview", h.Analytics.Overview)
	}

	return engine
}
