package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/progression-backend/internal/catalog"
	"github.com/yungbote/progression-backend/internal/certificates"
	"github.com/yungbote/progression-backend/internal/data/repos"
	"github.com/yungbote/progression-backend/internal/platform/logger"
	"github.com/yungbote/progression-backend/internal/realtime"
	"github.com/yungbote/progression-backend/internal/services"
	"github.com/yungbote/progression-backend/internal/temporalx/temporalworker"
	"github.com/yungbote/progression-backend/internal/temporalx/unlockflow"
)

type Services struct {
	Auth     services.AuthService
	Notifier services.Notifier

	// Progression core
	Ledger   services.LedgerService
	Events   services.EventService
	Missions services.MissionService
	Streaks  services.StreakService
	Rewards  services.RewardService

	// Unlocks
	Unlocks    services.UnlockService
	Dispatcher services.UnlockDispatcher

	// Flows
	Gameplay    services.GameplayService
	Marketplace services.MarketplaceService
	Admin       services.AdminService
	Progression services.ProgressionService

	// Nil unless UNLOCK_MODE=temporal.
	TemporalWorker *temporalworker.Runner
}

func wireServices(
	db *gorm.DB,
	log *logger.Logger,
	cfg Config,
	rs *repos.Set,
	reg *catalog.Registry,
	hub *realtime.Hub,
	clients Clients,
) (Services, error) {
	log.Info("Wiring services...")

	clock, err := services.NewClock(cfg.StreakTimezone)
	if err != nil {
		return Services{}, fmt.Errorf("init clock: %w", err)
	}

	renderer, err := certificates.NewRenderer()
	if err != nil {
		return Services{}, fmt.Errorf("init certificate renderer: %w", err)
	}
	issuer := certificates.NewIssuer(log, renderer, clients.CertStore)

	auth := services.NewAuthService(log, cfg.JWTSecretKey, cfg.AccessTokenTTL())
	notifier := services.NewNotifier(log, hub, clients.Bus)

	ledger := services.NewLedgerService(db, log, rs.Profiles, rs.Ledger, rs.SkillProgress, rs.Streaks, reg)
	missions := services.NewMissionService(db, log, rs.Missions, rs.Events, ledger, reg, clock, cfg.DailyMissionCount)
	events := services.NewEventService(db, log, rs.Events, missions)
	streaks := services.NewStreakService(db, log, rs.Streaks, ledger, events, reg, clock, notifier)
	rewards := services.NewRewardService(reg, streaks)
	unlocks := services.NewUnlockService(db, log, rs, ledger, events, reg, clock, issuer)

	var (
		dispatcher services.UnlockDispatcher = services.NewInlineUnlockDispatcher(log, unlocks, notifier)
		worker     *temporalworker.Runner
	)
	if cfg.UnlockMode == services.UnlockModeTemporal {
		if clients.Temporal == nil {
			return Services{}, fmt.Errorf("unlock mode %q requires a Temporal client", cfg.UnlockMode)
		}
		worker, err = temporalworker.NewRunner(log, cfg.Temporal, clients.Temporal, unlocks, notifier)
		if err != nil {
			return Services{}, fmt.Errorf("init temporal worker: %w", err)
		}
		dispatcher = unlockflow.NewDispatcher(log, clients.Temporal, cfg.Temporal.TaskQueue, dispatcher)
	}

	gameplay := services.NewGameplayService(db, log, ledger, events, streaks, missions, rs.Inventory, reg, dispatcher, notifier, clock)
	market := services.NewMarketplaceService(db, log, rs.Inventory, rs.Catalog, ledger, events, reg, clock, notifier)
	admin := services.NewAdminService(db, log, rs.Inventory, rs.Catalog, ledger, events, reg, notifier, services.CatalogFiles{
		Path: cfg.CatalogPath,
		Dir:  cfg.CatalogDir,
	})
	progression := services.NewProgressionService(log, ledger, streaks, unlocks, reg)

	return Services{
		Auth:           auth,
		Notifier:       notifier,
		Ledger:         ledger,
		Events:         events,
		Missions:       missions,
		Streaks:        streaks,
		Rewards:        rewards,
		Unlocks:        unlocks,
		Dispatcher:     dispatcher,
		Gameplay:       gameplay,
		Marketplace:    market,
		Admin:          admin,
		Progression:    progression,
		TemporalWorker: worker,
	}, nil
}
