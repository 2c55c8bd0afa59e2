package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/mvabs/api/rest"
	"github.com/kasuganosora/mvabs/api/sse"
	"github.com/kasuganosora/mvabs/audit"
	"github.com/kasuganosora/mvabs/cache"
	"github.com/kasuganosora/mvabs/config"
	dbadapter "github.com/kasuganosora/mvabs/db"
	"github.com/kasuganosora/mvabs/game/battle"
	"github.com/kasuganosora/mvabs/game/memory"
	"github.com/kasuganosora/mvabs/game/reward"
	"github.com/kasuganosora/mvabs/game/world"
	mw "github.com/kasuganosora/mvabs/middleware"
	"github.com/kasuganosora/mvabs/model"
	"github.com/kasuganosora/mvabs/plugin/hook"
	"github.com/kasuganosora/mvabs/resource"
	"github.com/kasuganosora/mvabs/scheduler"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if errors.Is(err, fs.ErrNotExist) && len(os.Args) <= 1 {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; the command surface is disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	if err := model.AutoMigrate(db); err != nil {
		logger.Fatal("db migrate failed", zap.Error(err))
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	kv, err := cache.NewCache(cacheConfig)
	if err != nil {
		logger.Fatal("cache init failed", zap.Error(err))
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		logger.Fatal("pubsub init failed", zap.Error(err))
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	// ---- Attribute tables ----
	res := resource.NewLoader(cfg.Data.Path)
	if err := res.Load(); err != nil {
		logger.Fatal("data load failed", zap.String("path", cfg.Data.Path), zap.Error(err))
	}
	skills, states, units := res.Counts()
	logger.Info("data loaded", zap.Int("skills", skills), zap.Int("states", states), zap.Int("units", units))
	if cfg.Data.Watch {
		watcher, err := resource.NewWatcher(res, logger)
		if err != nil {
			logger.Warn("data watcher disabled", zap.Error(err))
		} else {
			defer watcher.Close()
		}
	}

	// ---- AI core ----
	store, err := memory.Open(cfg.ABS.AI.MemoryPersistence, kv, db, cfg.ABS.AI.MemoryTTL)
	if err != nil {
		logger.Fatal("memory store init failed", zap.Error(err))
	}
	rewards := reward.New(reward.NewDBSink(db), res, logger)
	hooks := hook.NewHookCenter()

	wm := world.NewWorldManager(world.Options{
		Catalog: res,
		Tuning:  tuning(cfg.ABS),
		Aggro:   cfg.ABS.Aggro,
		Mode:    cfg.ABS.AI.DefaultMode,
		Party:   cfg.ABS.Party,
		Frame:   time.Duration(cfg.ABS.FrameMs) * time.Millisecond,
		Memory:  store,
		Rewards: rewards,
		Hooks:   hooks,
		PubSub:  pubsub,
		Logger:  logger,
	})

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	if cfg.ABS.AI.MemoryFlushInterval > 0 {
		sched.AddTicker("memory_flush", cfg.ABS.AI.MemoryFlushInterval, 0, func(ctx context.Context) error {
			n, err := wm.FlushMemory(ctx)
			logger.Debug("battle memory flushed", zap.Int("controllers", n))
			return err
		})
	}

	// ---- Audit ----
	auditSvc := audit.New(db, audit.Options{}, logger)

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := mw.NewRateLimiter(ctx, rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst, time.Minute)

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger), limiter.Handler())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": wm.ActiveRoomCount()})
	})

	sseH := sse.NewHandler(pubsub, cfg.Security.AllowedOrigins, logger)
	r.GET("/api/maps/:map/telegraph", sseH.Telegraph)

	api := r.Group("/api")
	networks, err := mw.AdminNetworks(cfg.Security.AdminNetworks)
	if err != nil {
		logger.Fatal("security.admin_networks", zap.Error(err))
	}
	api.Use(networks, mw.AdminKey(cfg.Server.AdminKey))
	rest.NewMapHandler(wm, auditSvc, logger).Register(api)
	rest.NewAdminHandler(wm, res, sched, logger).Register(api)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	sched.Stop()
	wm.StopAll(shutdownCtx)
	auditSvc.Stop(shutdownCtx)
}

// tuning maps the configuration onto the AI core constants.
func tuning(cfg config.ABSConfig) battle.Tuning {
	return battle.Tuning{
		HealThreshold:     cfg.AI.HealThreshold,
		BuffRefreshFrames: cfg.AI.BuffRefreshFrames,
		IdleWait:          cfg.AI.IdleWait,
		DoNothingWait:     cfg.AI.DoNothingWait,
		MinCastWait:       cfg.AI.MinCastWait,
		PrimaryHitFrames:  cfg.Engage.PrimaryHitFrames,
		LeashRadius:       cfg.Engage.LeashRadius,
		RecoverRadius:     cfg.Engage.RecoverRadius,
		CloseRatio:        cfg.Move.CloseRatio,
		HostileSpacing:    cfg.Move.HostileSpacing,
		AllySpacing:       cfg.Move.AllySpacing,
	}
}
