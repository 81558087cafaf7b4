package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/progression-backend/internal/http/handlers"
	httpMW "github.com/yungbote/progression-backend/internal/http/middleware"
	"github.com/yungbote/progression-backend/internal/observability"
	"github.com/yungbote/progression-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	AllowedOrigins []string

	AuthMiddleware *httpMW.AuthMiddleware

	ProgressionHandler *httpH.ProgressionHandler
	StreakHandler      *httpH.StreakHandler
	SkillHandler       *httpH.SkillHandler
	BadgeHandler       *httpH.BadgeHandler
	MissionHandler     *httpH.MissionHandler
	MarketplaceHandler *httpH.MarketplaceHandler
	RealtimeHandler    *httpH.RealtimeHandler
	AdminHandler       *httpH.AdminHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.CORS(cfg.AllowedOrigins...))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	protected := r.Group("/api")
	{
		// Middleware
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Progression
		if cfg.ProgressionHandler != nil {
			protected.GET("/me/progression", cfg.ProgressionHandler.GetMine)
			protected.POST("/activity", cfg.ProgressionHandler.LogActivity)
			protected.POST("/games/complete", cfg.ProgressionHandler.CompleteGame)
			protected.POST("/rewards/preview", cfg.ProgressionHandler.PreviewReward)
		}

		// Streak
		if cfg.StreakHandler != nil {
			protected.GET("/streak", cfg.StreakHandler.Get)
			protected.POST("/streak/claim", cfg.StreakHandler.Claim)
		}

		// Skills
		if cfg.SkillHandler != nil {
			protected.GET("/skills", cfg.SkillHandler.List)
			protected.POST("/skills/:id/xp", cfg.SkillHandler.AddXP)
			protected.POST("/skills/:id/unlock", cfg.SkillHandler.Unlock)
		}

		// Badges, insignias, titles
		if cfg.BadgeHandler != nil {
			protected.GET("/badges/progress", cfg.BadgeHandler.Progress)
			protected.POST("/badges/evaluate", cfg.BadgeHandler.Evaluate)
			protected.POST("/insignias/check", cfg.BadgeHandler.CheckInsignias)
			protected.GET("/me/badges", cfg.BadgeHandler.ListMine)
			protected.GET("/me/titles", cfg.BadgeHandler.Titles)
		}

		// Missions
		if cfg.MissionHandler != nil {
			protected.GET("/missions", cfg.MissionHandler.List)
			protected.POST("/missions/daily/generate", cfg.MissionHandler.GenerateDaily)
			protected.POST("/missions/monthly/generate", cfg.MissionHandler.GenerateMonthly)
		}

		// Marketplace
		if cfg.MarketplaceHandler != nil {
			protected.GET("/marketplace/items", cfg.MarketplaceHandler.ListItems)
			protected.POST("/marketplace/items/:id/purchase", cfg.MarketplaceHandler.Purchase)
			protected.GET("/me/inventory", cfg.MarketplaceHandler.Inventory)
			protected.POST("/inventory/:id/activate", cfg.MarketplaceHandler.Activate)
			protected.POST("/inventory/:id/equip", cfg.MarketplaceHandler.Equip)
		}

		// Realtime
		if cfg.RealtimeHandler != nil {
			protected.GET("/realtime/stream", cfg.RealtimeHandler.SSEStream)
			protected.GET("/realtime/ws", cfg.RealtimeHandler.WebSocket)
			protected.POST("/logout", cfg.RealtimeHandler.Logout)
		}

		// Admin
		if cfg.AdminHandler != nil {
			admin := protected.Group("/admin")
			if cfg.AuthMiddleware != nil {
				admin.Use(cfg.AuthMiddleware.RequireAdmin())
			}
			admin.GET("/inventory/pending", cfg.AdminHandler.Pending)
			admin.POST("/inventory/:id/approve", cfg.AdminHandler.Approve)
			admin.POST("/inventory/:id/reject", cfg.AdminHandler.Reject)
			admin.POST("/actors/:id/adjust", cfg.AdminHandler.Adjust)
			admin.POST("/catalog/reload", cfg.AdminHandler.ReloadCatalog)
		}
	}

	return r
}
