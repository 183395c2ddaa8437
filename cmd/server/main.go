package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/socialhub/internal/config"
	"github.com/socialhub/internal/events"
	"github.com/socialhub/internal/handler"
	"github.com/socialhub/internal/mail"
	"github.com/socialhub/internal/middleware"
	"github.com/socialhub/internal/models"
	"github.com/socialhub/internal/repository"
	"github.com/socialhub/internal/service"
	"github.com/socialhub/internal/storage"
	"github.com/socialhub/internal/worker"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Build info (injected at build time via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := middleware.InitLogger(cfg.Log.Dir); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	gin.SetMode(cfg.Server.Mode)
	ctx := context.Background()

	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	rdb := initRedis(cfg)
	if err := rdb.Ping(ctx).Err(); err != nil {
		middleware.LogError("Redis unavailable, mail throttling degrades to allow-all: %v", err)
	}

	mailer, err := mail.New(cfg.Mail)
	if err != nil {
		log.Fatalf("Failed to initialize mail sender: %v", err)
	}

	images, err := storage.New(ctx, cfg.Uploads)
	if err != nil {
		log.Fatalf("Failed to initialize image store: %v", err)
	}

	publisher := initPublisher(cfg)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	contentRepo := repository.NewContentRepository(db)

	// Initialize services
	tokenService := service.NewTokenService(cfg.JWT)
	userService := service.NewUserService(
		userRepo,
		contentRepo,
		tokenService,
		mailer,
		images,
		publisher,
		service.NewMailThrottle(rdb, cfg.RateLimit.MailPerHour, time.Hour),
		cfg.Server.BaseURL,
	)

	// Initialize handlers
	userHandler := handler.NewUserHandler(userService, cfg.Uploads.MaxSizeMB)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLoggerMiddleware())
	router.MaxMultipartMemory = int64(cfg.Uploads.MaxSizeMB) << 20

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
			"time":       time.Now().Unix(),
			"database":   pingDatabase(c.Request.Context(), db),
		})
	})

	if local, ok := images.(*storage.LocalStore); ok {
		router.Static("/uploads", local.Dir())
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	api := router.Group("", limiter.Middleware())
	userHandler.RegisterRoutes(api, middleware.AuthMiddleware(userService))

	var sweeper *worker.ImageSweeper
	if interval := cfg.Sweeper.SweepInterval(); interval > 0 {
		sweeper = worker.NewImageSweeper(images, userRepo, interval)
		go sweeper.Start()
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:         86400,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           corsHandler.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		middleware.LogInfo("Starting server on %s (version %s)", addr, Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	middleware.LogInfo("Shutting down server...")

	if sweeper != nil {
		sweeper.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	publisher.Close()

	if err := rdb.Close(); err != nil {
		middleware.LogError("Error closing Redis connection: %v", err)
	}

	middleware.LogInfo("Server exited properly")
}

func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.Server.Mode == "release" {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// initPublisher connects to NATS when configured; account events are dropped otherwise
func initPublisher(cfg *config.Config) events.Publisher {
	if cfg.NATS.URL == "" {
		middleware.LogInfo("NATS not configured, account events are not published")
		return events.NopPublisher{}
	}

	publisher, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
	if err != nil {
		middleware.LogError("Account events disabled: %v", err)
		return events.NopPublisher{}
	}
	return publisher
}

func pingDatabase(ctx context.Context, db *gorm.DB) string {
	sqlDB, err := db.DB()
	if err != nil {
		return "error"
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return "unreachable"
	}
	return "ok"
}
