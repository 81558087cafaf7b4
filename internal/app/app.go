package app

import (
	"context"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/yungbote/progression-backend/internal/catalog"
	"github.com/yungbote/progression-backend/internal/data/db"
	"github.com/yungbote/progression-backend/internal/data/repos"
	"github.com/yungbote/progression-backend/internal/http"
	"github.com/yungbote/progression-backend/internal/observability"
	"github.com/yungbote/progression-backend/internal/platform/logger"
	"github.com/yungbote/progression-backend/internal/realtime"
	"github.com/yungbote/progression-backend/internal/session"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Catalog  *catalog.Registry
	Repos    *repos.Set
	Services Services
	Sessions *session.Manager
	Hub      *realtime.Hub
	Server   *http.Server
	Metrics  *observability.Metrics

	clients      Clients
	dbService    *db.Service
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

// NewLogger reads LOG_MODE before the rest of the config so config loading
// itself can log.
func NewLogger() (*logger.Logger, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}

// OpenDatabase connects and runs migrations.
func OpenDatabase(cfg Config, log *logger.Logger) (*db.Service, error) {
	svc, err := db.NewService(cfg.DB.toDB(), log)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := svc.AutoMigrateAll(); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("database automigrate: %w", err)
	}
	return svc, nil
}

func New(ctx context.Context) (*App, error) {
	log, err := NewLogger()
	if err != nil {
		return nil, err
	}

	log.Info("Loading configuration...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.ServiceVersion,
	})
	metrics := observability.Init(log)

	dbService, err := OpenDatabase(cfg, log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	theDB := dbService.DB()

	reposet := wireRepos(theDB, log)
	reg := catalog.NewRegistry(reposet.Catalog, log)
	if err := reg.Bootstrap(ctx, cfg.CatalogPath); err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, err
	}

	hub := realtime.NewHub(log)
	serviceset, err := wireServices(theDB, log, cfg, reposet, reg, hub, clients)
	if err != nil {
		clients.Close()
		_ = dbService.Close()
		log.Sync()
		return nil, err
	}

	sessions, err := session.NewManager(log, hub, serviceset.Progression, cfg.SessionViewCacheSize)
	if err != nil {
		clients.Close()
		_ = dbService.Close()
		log.Sync()
		return nil, fmt.Errorf("init sessions: %w", err)
	}

	handlerset := wireHandlers(log, theDB, cfg, serviceset, sessions)
	middleware := wireMiddleware(log, serviceset)
	server := wireServer(log, cfg, metrics, handlerset, middleware)

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Catalog:      reg,
		Repos:        reposet,
		Services:     serviceset,
		Sessions:     sessions,
		Hub:          hub,
		Server:       server,
		Metrics:      metrics,
		clients:      clients,
		dbService:    dbService,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background pieces: metrics, the cross-instance bus
// forwarder and the Temporal worker.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.Metrics != nil {
		a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
		a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB)
		a.Metrics.StartRedisCollector(ctx, a.Log, a.Cfg.RedisAddr)
	}

	if a.clients.Bus != nil {
		if err := a.clients.Bus.StartForwarder(ctx, a.Hub.Broadcast); err != nil {
			return fmt.Errorf("start realtime forwarder: %w", err)
		}
		a.Log.Info("Realtime bus forwarder started", "channel", a.Cfg.RedisChannel)
	}

	if a.Services.TemporalWorker != nil {
		if err := a.Services.TemporalWorker.Start(ctx); err != nil {
			return fmt.Errorf("start temporal worker: %w", err)
		}
	}
	return nil
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Serving HTTP", "addr", a.Cfg.Addr(), "unlock_mode", a.Cfg.UnlockMode)
	// Streams only end when their sessions close, so close them before the
	// server drains.
	go func() {
		<-ctx.Done()
		a.Sessions.Shutdown()
	}()
	return a.Server.Run(ctx, a.Cfg.Addr())
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Sessions != nil {
		a.Sessions.Shutdown()
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.clients.Close()
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.dbService != nil {
		_ = a.dbService.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
