package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shilo-maker/solupresenter-sub012/internal/cache"
	"github.com/shilo-maker/solupresenter-sub012/internal/config"
	"github.com/shilo-maker/solupresenter-sub012/internal/dispatch"
	"github.com/shilo-maker/solupresenter-sub012/internal/domain"
	"github.com/shilo-maker/solupresenter-sub012/internal/generator"
	"github.com/shilo-maker/solupresenter-sub012/internal/handler"
	"github.com/shilo-maker/solupresenter-sub012/internal/hub"
	"github.com/shilo-maker/solupresenter-sub012/internal/lifecycle"
	"github.com/shilo-maker/solupresenter-sub012/internal/presence"
	"github.com/shilo-maker/solupresenter-sub012/internal/repository"
	"github.com/shilo-maker/solupresenter-sub012/internal/service"
	"github.com/shilo-maker/solupresenter-sub012/internal/task"
	"github.com/shilo-maker/solupresenter-sub012/pkg/database"
	pkglog "github.com/shilo-maker/solupresenter-sub012/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "sync-service",
	})
	logger := pkglog.L()

	// Database
	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.AutoMigrate(db, &domain.RoomModel{}, &domain.ThemeModel{}); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	roomRepo := repository.NewGormRoomRepository(db)
	themeRepo := repository.NewGormThemeRepository(db)

	// Presence ledger
	var ledger presence.Ledger
	switch cfg.Room.PresenceDriver {
	case "memory":
		ledger = presence.NewMemoryLedger()
		logger.Info().Msg("using in-memory presence ledger")
	default:
		redisLedger, err := presence.NewRedisLedger(cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		ledger = redisLedger
		logger.Info().Str("addr", cfg.Redis.Address).Msg("connected to redis")
	}
	defer ledger.Close()

	// Core engine pieces
	wsHub := hub.NewHub()
	stateCache := cache.NewStateCache()

	pool := task.NewPool(4, 256)
	pool.Start()
	defer pool.Stop()

	dispatcher := dispatch.NewDispatcher(wsHub, pool)

	pins, err := generator.NewPINAllocator(cfg.Room.PINLength, roomRepo.PINInUse)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create pin allocator")
	}

	guard := lifecycle.NewGuard(
		roomRepo, stateCache, ledger, dispatcher, wsHub, pool,
		cfg.Room.TTLWindow, cfg.Room.ExpirySweep, cfg.Room.OrphanSweep,
	)

	syncSvc := service.NewSyncService(
		roomRepo, themeRepo, wsHub, stateCache, ledger, dispatcher, pool,
		guard, pins, cfg.Room.MaxViewers, cfg.Room.TTLWindow,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go guard.Run(ctx)

	// HTTP and WebSocket transport
	wsHandler := handler.NewWSHandler(syncSvc, cfg.WebSocket)
	httpHandler := handler.NewHTTPHandler(syncSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(*logger))
	httpHandler.RegisterRoutes(r)
	wsHandler.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Str("driver", cfg.Database.Driver).Int("max_viewers", cfg.Room.MaxViewers).Msg("sync-service starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down sync-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("sync-service stopped")
}
