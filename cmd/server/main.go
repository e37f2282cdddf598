// Command server runs the relay: HTTP poll endpoints, websocket and SSE push
// channels, the registry reaper and the scheduled-dispatch sweeper.
//
//	export JWT_SECRET=$(openssl rand -base64 32)
//	export DB_DRIVER=sqlite DATABASE_URL=relay.db REDIS_ENABLED=false
//	./server
package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/noteduco342/om-relay/internal/cache"
	"github.com/noteduco342/om-relay/internal/config"
	"github.com/noteduco342/om-relay/internal/logging"
	"github.com/noteduco342/om-relay/internal/realtime"
	"github.com/noteduco342/om-relay/internal/repository"
	"github.com/noteduco342/om-relay/internal/server"
	"github.com/noteduco342/om-relay/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if cfg.Auth.JWTSecret == "" {
		logging.Fatal().Msg("JWT_SECRET is required")
	}

	db, err := repository.InitDB(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to connect to database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis is optional. Without it presence is process-local and member
	// lists are read from the database on every group fan-out.
	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		redisCache = cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := redisCache.Ping(ctx); err != nil {
			logging.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, running without cache")
			redisCache.Close()
			redisCache = nil
		} else {
			logging.Info().Str("addr", cfg.Redis.Addr).Msg("redis cache connected")
			defer redisCache.Close()
		}
	}

	var observer realtime.PresenceObserver
	presence := cache.NewPresenceCache(redisCache)
	if redisCache != nil {
		observer = presence
	}

	registry := realtime.NewRegistry(cfg.Delivery.RegistryShards, observer)
	router := realtime.NewRouter(registry)
	svc := server.NewServices(db, cfg, registry, router, cache.NewMemberCache(redisCache))
	app := server.NewApp(cfg, registry, svc)

	tree := supervisor.NewTree(logging.NewSlogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddDeliveryService(realtime.NewReaper(registry, cfg.Delivery.ReapInterval))
	if svc.Sweeper != nil {
		tree.AddDeliveryService(svc.Sweeper)
	} else {
		logging.Info().Msg("scheduled sweeper disabled, relying on /api/scheduled/check")
	}
	if redisCache != nil {
		tree.AddDeliveryService(cache.NewPresenceRefresher(presence, registry))
	}
	tree.AddAPIService(server.NewHTTPService(app, cfg.Server.Port, cfg.Server.ShutdownTimeout))

	logging.Info().Int("port", cfg.Server.Port).Str("db", cfg.Database.Driver).Bool("redis", redisCache != nil).Msg("relay starting")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor stopped with error")
	}

	registry.CloseAll()
	registry.WaitPresence()
	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, u := range unstopped {
			logging.Warn().Str("service", u.Name).Msg("service did not stop in time")
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	logging.Info().Msg("relay stopped")
}
