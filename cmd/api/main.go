package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"messenger-api/internal/config"
	"messenger-api/internal/data"
	"messenger-api/internal/db"
	"messenger-api/internal/events"
	"messenger-api/internal/logger"
	"messenger-api/internal/middleware"
	"messenger-api/internal/session"
	"messenger-api/internal/storage"

	"messenger-api/internal/auth"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zlog, err := logger.New(cfg.App.Env == "development")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx := context.Background()

	// Mongo
	dbClient, err := db.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		zlog.Fatalf("connect to MongoDB: %v", err)
	}
	defer func() { _ = dbClient.Close(context.Background()) }()

	if err := dbClient.CreateIndexes(ctx); err != nil {
		zlog.Fatalf("create indexes: %v", err)
	}

	usersStore := data.NewUsersStore(dbClient.UsersCollection())
	convsStore := data.NewConversationsStore(
		dbClient.UserConversationsCollection(),
		dbClient.ConversationMessagesCollection(),
	)

	// Redis sessions
	rdb, err := session.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		zlog.Fatalf("connect to Redis: %v", err)
	}
	defer func() { _ = rdb.Close() }()
	sessions := session.New(rdb, cfg.TokenTTL)

	// S3 media
	media, err := storage.NewS3Store(ctx, cfg.AWS.Region, cfg.AWS.Bucket, cfg.AWS.Endpoint, cfg.PresignTTL)
	if err != nil {
		zlog.Fatalf("init S3: %v", err)
	}

	// JWT
	keys, activeKid := cfg.SigningKeys()
	jwtMgr := auth.NewJWTManagerFromKeys(keys, activeKid, cfg.TokenTTL)

	// Kafka events are optional; without brokers the publisher stays nil
	// and publishing is a no-op.
	var pub *events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		pub = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, zlog)
		defer func() { _ = pub.Close() }()
	}

	limiter := middleware.NewLimiterStore(cfg.JWT.RateLimitRPM, 3, time.Minute)
	defer limiter.Stop()

	srv := newServer(usersStore, convsStore, sessions, media, jwtMgr, pub, zlog)

	app := fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	registerRoutes(app, srv, limiter)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		zlog.Infof("starting messenger api on %s", addr)
		if err := app.Listen(addr); err != nil {
			zlog.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("shutting down")

	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		zlog.Errorf("shutdown: %v", err)
	}
}
