package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatrelay/internal/app/registry"
	"chatrelay/internal/app/server"
	"chatrelay/internal/config"
	"chatrelay/internal/core/domain"
	"chatrelay/internal/core/services"
	"chatrelay/internal/platform/logger"
	"chatrelay/internal/platform/telemetry"
	mongoPlugin "chatrelay/internal/plugins/mongo"
	"chatrelay/internal/plugins/postgres"
	redisPlugin "chatrelay/internal/plugins/redis"
)

func main() {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg := config.Load()

	// Logger
	log := logger.NewLogger(*cfg)
	log.Info("starting application")

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
	}
	defer func() {
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Persistence gateway
	var gateway domain.Gateway
	switch cfg.Store.Backend {
	case "postgres":
		pdb, err := postgres.New(ctx, *cfg.Postgres)
		if err != nil {
			log.Error("postgres connection failed", "DSN", cfg.Postgres.DSN, "err", err)
			return
		}
		defer pdb.Close()
		log.Info("postgres connected")
		gateway = postgres.NewGateway(pdb)
	default:
		mdb, err := mongoPlugin.New(ctx, *cfg.Mongo)
		if err != nil {
			log.Error("mongo connection failed", "uri", cfg.Mongo.URI, "err", err)
			return
		}
		defer mdb.Disconnect(context.Background())
		log.Info("mongo connected")
		gateway = mongoPlugin.NewGateway(mdb, cfg.Mongo.Database)
	}

	rdb, err := redisPlugin.NewRedisClient(ctx, *cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "url", cfg.Redis.URL, "err", err)
		return
	}
	defer rdb.Close()
	log.Info("redis connected")
	unread := redisPlugin.NewUnreadCounters(rdb)

	// Core services
	reg := registry.NewRegistry()
	tokenSvc := services.NewTokenService(cfg.SecretToken)
	lifecycleSvc := services.NewLifecycleService(log, reg, gateway)
	routerSvc := services.NewRouterService(log, reg, gateway, unread)

	// Server
	authEnabled := cfg.SecretToken != ""
	srv := server.NewServer(log, cfg.Service, tokenSvc, lifecycleSvc, routerSvc, authEnabled)
	if err := srv.Start(ctx); err != nil {
		log.Error("server stopped", "err", err)
	}
}
