package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"storyconnect-backend/config"
	"storyconnect-backend/internal/database"
	"storyconnect-backend/internal/handlers"
	"storyconnect-backend/internal/middleware"
	"storyconnect-backend/internal/moderation"
	"storyconnect-backend/internal/queue"
	"storyconnect-backend/internal/routes"
	"storyconnect-backend/internal/services"
	"storyconnect-backend/internal/store"
)

func main() {
	// 1. Load Configuration
	cfg := config.LoadConfig()

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	if cfg.AppEnv != "development" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	}
	log := slog.New(handler)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database
	db, err := database.ConnectDB(cfg)
	if err != nil {
		log.Error("database unavailable", "err", err)
		os.Exit(1)
	}

	// 3. Connect to Redis
	rdb, err := database.ConnectRedis(cfg)
	if err != nil {
		log.Error("redis unavailable", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// 4. Connect to S3/R2. Stories still work without it; raw media refs are
	// passed to the classifier as-is.
	var (
		signer      handlers.UploadSigner
		resolver    services.MediaResolver
		storagePing handlers.PingFunc
	)
	if media, err := database.ConnectS3(cfg); err != nil {
		log.Warn("media storage unavailable", "err", err)
	} else {
		signer, resolver, storagePing = media, media, media.Ping
	}

	// 5. Moderation
	stories := store.NewStories(db)
	users := store.NewUsers(db)
	engine := moderation.NewEngine(cfg.Moderation(), nil, stories, log)
	broker := queue.NewBroker(rdb)
	storyService := services.NewStoryService(stories, engine, broker, broker, resolver, cfg.StoryTTL, log)
	log.Info("moderation engine ready", "enabled", engine.Enabled(), "deep_workers", cfg.DeepWorkers)

	var wg sync.WaitGroup
	for i := 1; i <= cfg.DeepWorkers; i++ {
		worker := services.NewDeepWorker(i, broker, stories, engine, broker, resolver, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(ctx)
		}()
	}

	// 6. Notifications for decisions that change after publish
	notifier := services.NewNotificationService(users, cfg.OneSignalAppID, cfg.OneSignalAPIKey, cfg.FirebaseServerKey, log)
	subscriber := services.NewModerationSubscriber(broker, notifier, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		subscriber.Run(ctx)
	}()

	// 7. Initialize Fiber App
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: "StoryConnect",
	})

	app.Use(logger.New())  // Request logging
	app.Use(recover.New()) // Panic recovery
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, HEAD, PUT, DELETE, PATCH",
	}))

	// 8. Routes
	health := handlers.NewHealthHandler(map[string]handlers.PingFunc{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis":   func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		"storage": storagePing,
	})
	routes.SetupRoutes(app, routes.Deps{
		JWTSecret:       cfg.AuthJWTSecret,
		StoryDailyLimit: cfg.StoryDailyLimit,
		Health:          health,
		Stories:         handlers.NewStoryHandler(storyService, stories),
		Moderation:      handlers.NewModerationHandler(storyService),
		Admin:           handlers.NewAdminHandler(stories, storyService, engine, broker),
		Media:           handlers.NewMediaHandler(signer),
		Live:            handlers.NewLiveHandler(broker),
		Profile:         handlers.NewUserHandler(users),
		Users:           users,
		RateCounter:     middleware.NewRedisCounter(rdb),
	})

	// 9. Start Server
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "err", err)
		}
	}()

	log.Info("server starting", "port", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Error("server failed to start", "err", err)
		stop()
	}

	wg.Wait()
	log.Info("server stopped")
}
