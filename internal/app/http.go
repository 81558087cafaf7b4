package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/progression-backend/internal/http"
	httpH "github.com/yungbote/progression-backend/internal/http/handlers"
	httpMW "github.com/yungbote/progression-backend/internal/http/middleware"
	"github.com/yungbote/progression-backend/internal/observability"
	"github.com/yungbote/progression-backend/internal/platform/logger"
	"github.com/yungbote/progression-backend/internal/session"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health      *httpH.HealthHandler
	Progression *httpH.ProgressionHandler
	Streak      *httpH.StreakHandler
	Skill       *httpH.SkillHandler
	Badge       *httpH.BadgeHandler
	Mission     *httpH.MissionHandler
	Marketplace *httpH.MarketplaceHandler
	Realtime    *httpH.RealtimeHandler
	Admin       *httpH.AdminHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, cfg Config, services Services, sessions *session.Manager) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:      httpH.NewHealthHandler(db),
		Progression: httpH.NewProgressionHandler(services.Progression, services.Gameplay, services.Rewards, sessions),
		Streak:      httpH.NewStreakHandler(services.Streaks),
		Skill:       httpH.NewSkillHandler(services.Unlocks, services.Ledger, services.Dispatcher, services.Notifier),
		Badge:       httpH.NewBadgeHandler(services.Unlocks, services.Notifier),
		Mission:     httpH.NewMissionHandler(services.Missions),
		Marketplace: httpH.NewMarketplaceHandler(services.Marketplace),
		Realtime:    httpH.NewRealtimeHandler(log, sessions, cfg.AllowedOrigins),
		Admin:       httpH.NewAdminHandler(services.Admin),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		ServiceName:    cfg.ServiceName,
		AllowedOrigins: cfg.AllowedOrigins,

		AuthMiddleware: middleware.Auth,

		ProgressionHandler: handlers.Progression,
		StreakHandler:      handlers.Streak,
		SkillHandler:       handlers.Skill,
		BadgeHandler:       handlers.Badge,
		MissionHandler:     handlers.Mission,
		MarketplaceHandler: handlers.Marketplace,
		RealtimeHandler:    handlers.Realtime,
		AdminHandler:       handlers.Admin,

		HealthHandler: handlers.Health,
	})
}
