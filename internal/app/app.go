package app

import (
	"context"
	"database/sql"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/denzueee/gonsters-backend-assessment/internal/cache"
	"github.com/denzueee/gonsters-backend-assessment/internal/config"
	"github.com/denzueee/gonsters-backend-assessment/internal/db"
	httpserver "github.com/denzueee/gonsters-backend-assessment/internal/http"
	"github.com/denzueee/gonsters-backend-assessment/internal/http/handlers"
	"github.com/denzueee/gonsters-backend-assessment/internal/models"
	"github.com/denzueee/gonsters-backend-assessment/internal/mqtt"
	"github.com/denzueee/gonsters-backend-assessment/internal/redis"
	"github.com/denzueee/gonsters-backend-assessment/internal/registry"
	"github.com/denzueee/gonsters-backend-assessment/internal/repository"
	"github.com/denzueee/gonsters-backend-assessment/internal/service"
	"github.com/denzueee/gonsters-backend-assessment/internal/timeseries"
	"github.com/denzueee/gonsters-backend-assessment/internal/ws"
)

// App wires the ingestion pipeline: both entry points, the registry resolver,
// the time-series writer, the threshold evaluator and the broadcaster.
type App struct {
	server     *httpserver.Server
	subscriber *mqtt.Subscriber
	evaluator  *service.ThresholdEvaluator
	hub        *ws.Hub
	pool       *sql.DB
	redis      *goredis.Client
	influx     *timeseries.InfluxStore
	logger     *zap.Logger
}

// New constructs application components.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	pool, err := db.NewPostgres(cfg.Postgres.DSN)
	if err != nil {
		return nil, err
	}

	redisClient, err := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		// Cache outages degrade to the store; startup proceeds without redis.
		logger.Warn("redis unavailable, running without cache", zap.Error(err))
		redisClient = nil
	}

	influx := timeseries.NewInfluxStore(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket, cfg.InfluxWriteTimeout())

	machineRepo := repository.NewMachineRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)

	var machineCache registry.MetadataCache = noopCache{}
	var responseCache *cache.ResponseCache
	if redisClient != nil {
		machineCache = cache.NewMachineCache(redisClient, cfg.MachineCacheTTL())
		responseCache = cache.NewResponseCache(redisClient, cfg.ResponseCacheTTL())
	}

	resolver := registry.NewResolver(machineCache, machineRepo, logger)
	hub := ws.NewHub(logger)
	evaluator := service.NewThresholdEvaluator(settingsRepo, cfg.RefreshInterval(), cfg.SweepInterval(), logger)
	processor := service.NewBatchProcessor(resolver, influx, evaluator, hub, logger)
	subscriber := mqtt.NewSubscriber(cfg, resolver, influx, evaluator, hub, logger)

	routes := httpserver.Routes{
		Ingest:         handlers.NewIngestHandler(processor, cfg.IngestTimeout(), logger),
		MachineHistory: handlers.NewMachineHistoryHandler(resolver, influx, logger),
		MachineList:    handlers.NewMachineListHandler(machineRepo, responseCache, logger),
		Realtime:       handlers.NewRealtimeHandler(hub, logger),
		Health:         handlers.NewHealthHandler(),
	}
	server := httpserver.NewServer(cfg.HTTPAddress(), httpserver.NewRouter(routes), logger)

	return &App{
		server:     server,
		subscriber: subscriber,
		evaluator:  evaluator,
		hub:        hub,
		pool:       pool,
		redis:      redisClient,
		influx:     influx,
		logger:     logger,
	}, nil
}

// Run starts the background loops and serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	go a.evaluator.RunRefresh(ctx)
	go a.evaluator.RunSweep(ctx, a.hub)

	if err := a.subscriber.Start(ctx); err != nil {
		return err
	}
	defer a.subscriber.Stop()

	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.influx != nil {
		a.influx.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.pool != nil {
		if err := a.pool.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
}

// noopCache stands in when redis is down; every lookup is a miss.
type noopCache struct{}

func (noopCache) Get(context.Context, string) (*models.Machine, error) {
	return nil, cache.ErrCacheMiss
}

func (noopCache) Set(context.Context, *models.Machine) error { return nil }
