package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/planloom/planloom-backend/internal/access"
	"github.com/planloom/planloom-backend/internal/data/redisdb"
	"github.com/planloom/planloom-backend/internal/data/syncstate"
	"github.com/planloom/planloom-backend/internal/handlers"
	"github.com/planloom/planloom-backend/internal/middleware"
	"github.com/planloom/planloom-backend/internal/observability"
	"github.com/planloom/planloom-backend/internal/platform/logger"
	"github.com/planloom/planloom-backend/internal/platform/neo4jdb"
	"github.com/planloom/planloom-backend/internal/reconcile"
	"github.com/planloom/planloom-backend/internal/server"
)

type App struct {
	Log    *logger.Logger
	Cfg    Config
	Graph  *neo4jdb.Client
	Cache  *redisdb.Cache
	Sync   *syncstate.Service
	Router *gin.Engine

	otelShutdown func(context.Context) error
}

// New wires the whole service: logger, config, tracing, graph client,
// auxiliary stores, handlers, router. The graph store is required;
// redis and postgres are optional and warn-and-continue when absent.
func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		log.Sync()
		return nil, err
	}

	if observability.Enabled() {
		observability.Init()
	}
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: envOrDefault("APP_ENV", "development"),
	})

	graphClient, err := neo4jdb.Connect(ctx, cfg.Neo4j, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("connect graph store: %w", err)
	}

	cache, err := redisdb.NewFromEnv(log)
	if err != nil {
		log.Warn("redis unavailable, continuing without cache", "error", err)
		cache = nil
	}

	syncSvc, err := syncstate.NewService(log)
	if err != nil {
		log.Warn("postgres unavailable, continuing without run history", "error", err)
		syncSvc = nil
	}
	var syncRepo syncstate.Repo
	if syncSvc != nil {
		if err := syncSvc.AutoMigrate(); err != nil {
			log.Warn("sync-state migration failed, continuing without run history", "error", err)
		} else {
			syncRepo = syncstate.NewRepo(syncSvc.DB(), log)
		}
	}

	checker, err := access.NewTokenChecker(cfg.JWTSecretKey, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init access checker: %w", err)
	}

	var aux []reconcile.AuxStore
	if cache != nil {
		aux = append(aux, cache)
	}
	if syncRepo != nil {
		aux = append(aux, syncstate.NewAuxStore(syncRepo))
	}

	maintenanceHandler := handlers.NewMaintenanceHandler(
		graphClient, checker, log, cache, syncRepo, aux, cfg.StaleScopeThreshold)
	healthHandler := handlers.NewHealthHandler(graphClient)
	authMiddleware := middleware.NewAuthMiddleware(log)

	router := server.NewRouter(server.RouterConfig{
		ServiceName:        cfg.ServiceName,
		CORSOrigins:        cfg.CORSOrigins,
		HealthHandler:      healthHandler,
		MaintenanceHandler: maintenanceHandler,
		AuthMiddleware:     authMiddleware,
	})

	return &App{
		Log:          log,
		Cfg:          cfg,
		Graph:        graphClient,
		Cache:        cache,
		Sync:         syncSvc,
		Router:       router,
		otelShutdown: otelShutdown,
	}, nil
}

func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Log.Warn("redis close failed", "error", err)
		}
	}
	if a.Graph != nil {
		if err := a.Graph.Close(ctx); err != nil {
			a.Log.Warn("graph client close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("tracer shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

func envOrDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
