package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"

	"github.com/yungbote/politicas-backend/internal/data/db"
	"github.com/yungbote/politicas-backend/internal/http"
	"github.com/yungbote/politicas-backend/internal/observability"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Clients  Clients
	Services Services
	Metrics  *observability.Metrics

	pg           *db.PostgresService
	server       *http.Server
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	LoadDotEnv()
	log, err := NewLogger()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)
	if err := cfg.Validate(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	pg, err := db.NewPostgresService(log, cfg.DB)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("database automigrate: %w", err)
	}

	clients, err := wireClients(context.Background(), log, cfg)
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	otelShutdown := observability.InitOTel(context.Background(), log, cfg.Otel)
	metrics := observability.Init(log)

	router, serviceset := BuildRouter(pg.DB(), log, cfg, clients, clockwork.NewRealClock(), metrics)
	if serviceset.Billing.SimulationMode() && cfg.Production {
		clients.Close()
		_ = pg.Close()
		log.Sync()
		return nil, errors.New("payment simulation cannot run in production")
	}

	return &App{
		Log:          log,
		DB:           pg.DB(),
		Router:       router,
		Cfg:          cfg,
		Clients:      clients,
		Services:     serviceset,
		Metrics:      metrics,
		pg:           pg,
		server:       http.NewServer(router),
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background collectors and the metrics endpoint.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Metrics != nil {
		a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
		a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB)
		if a.Clients.Redis != nil {
			a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.Redis)
		}
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Server listening", "addr", addr, "env", a.Cfg.Env, "simulation", a.Services.Billing.SimulationMode())
	return a.server.Run(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (a *App) Shutdown(ctx context.Context) error {
	if a == nil || a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("OTel shutdown failed", "error", err)
		}
		cancel()
	}
	a.Clients.Close()
	if a.pg != nil {
		if err := a.pg.Close(); err != nil {
			a.Log.Warn("Database close failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
