package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/timmy/grievo/internal/api/handler"
	"github.com/timmy/grievo/internal/api/middleware"
	"github.com/timmy/grievo/internal/logger"
	"github.com/timmy/grievo/internal/service"
)

// Services are the application services the router exposes.
type Services struct {
	Complaints  *service.ComplaintService
	Attachments *service.AttachmentService // nil when storage is disabled
	Dashboard   *service.DashboardService
	Auth        *service.AuthService
	Classifier  handler.ReadinessChecker
}

// RouterConfig configures the HTTP surface.
type RouterConfig struct {
	Mode      string
	CORS      middleware.CORSConfig
	Logger    *logger.Logger
	StartedAt time.Time
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(svc Services, cfg RouterConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now()
	}

	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		middleware.GetLogger(c).WithField("panic", recovered).Error("Recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
	}))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler(svc.Classifier, cfg.StartedAt)
	authHandler := handler.NewAuthHandler(svc.Auth)
	complaintHandler := handler.NewComplaintHandler(svc.Complaints, svc.Attachments)
	dashboardHandler := handler.NewDashboardHandler(svc.Dashboard)

	requireAuth := middleware.RequireAuth(svc.Auth)
	requireAdmin := middleware.RequireAdmin()

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")
	{
		api.GET("/health", healthHandler.Health)

		auth := api.Group("/auth")
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)

		complaints := api.Group("/complaints")
		complaints.POST("/classify", complaintHandler.Classify)
		complaints.POST("", requireAuth, complaintHandler.Create)
		complaints.POST("/:id/attachments", requireAuth, complaintHandler.AddAttachment)
		complaints.GET("/mine", requireAuth, complaintHandler.Mine)
		complaints.GET("", requireAuth, requireAdmin, complaintHandler.List)
		complaints.GET("/:id", requireAuth, requireAdmin, complaintHandler.Get)
		complaints.PATCH("/:id/status", requireAuth, requireAdmin, complaintHandler.UpdateStatus)

		dashboard := api.Group("/dashboard", requireAuth, requireAdmin)
		dashboard.GET("/stats", dashboardHandler.Stats)
		dashboard.GET("/priority-distribution", dashboardHandler.PriorityDistribution)
		dashboard.GET("/category-distribution", dashboardHandler.CategoryDistribution)
		dashboard.GET("/aging", dashboardHandler.Aging)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Route not found"})
	})

	return r
}
