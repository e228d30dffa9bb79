package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"groupwire/internal/config"
	"groupwire/internal/db"
	"groupwire/internal/gateway"
	apihttp "groupwire/internal/http"
	"groupwire/internal/pipeline"
	"groupwire/internal/repository"
	"groupwire/internal/service"
	"groupwire/internal/source"
	"groupwire/internal/telemetry"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	telemetry.Init()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	userRepo := repository.NewPgUserRepository(pool)
	groupRepo := repository.NewPgGroupRepository(pool)
	messageRepo := repository.NewPgMessageRepository(pool)

	var seenStore pipeline.SeenStore
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			seenStore = pipeline.NewRedisSeenStore(redisClient)
		}
		cancel()
	}

	jwtSvc := service.NewJWTService(cfg.JWTSecret, time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}
	userSvc := service.NewUserService(logger, userRepo)

	channelRouter := gateway.NewChannelRouter(logger)
	authGate := gateway.NewAuthGate(jwtSvc, userRepo)
	wsServer := gateway.NewServer(logger, authGate, channelRouter, messageRepo, cfg.MessagePageSize)

	adapter := source.NewWebAdapter(source.Config{
		URL:              cfg.SourceURL,
		Headless:         cfg.SourceHeadless,
		BrowserBin:       cfg.SourceBrowserBin,
		UserDataDir:      cfg.SourceUserDataDir,
		PollInterval:     time.Duration(cfg.SourcePollMs) * time.Millisecond,
		HandshakeTimeout: time.Duration(cfg.SourceHandshakeTimeoutMinutes) * time.Minute,
	}, logger)
	defer adapter.Cleanup()

	syncer := pipeline.NewSync(logger, groupRepo, messageRepo, channelRouter, seenStore)
	syncer.Attach(adapter)
	if err := syncer.RefreshIndex(ctx); err != nil {
		logger.Warn("initial group index load failed", zap.Error(err))
	}

	go func() {
		if err := adapter.Initialize(ctx); err != nil {
			logger.Error("source adapter init failed", zap.Error(err))
			return
		}
		for _, name := range cfg.SourceGroups {
			if err := adapter.Monitor(ctx, name); err != nil {
				logger.Error("monitor group failed", zap.String("group", name), zap.Error(err))
			}
		}
	}()

	authHandler := apihttp.NewAuthHandler(logger, userSvc, jwtSvc)
	groupHandler := apihttp.NewGroupHandler(logger, groupRepo, messageRepo, cfg.MessagePageSize)
	router := apihttp.NewRouter(logger, authHandler, groupHandler, jwtSvc, wsServer)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
