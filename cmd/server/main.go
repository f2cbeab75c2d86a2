// Package main runs the deal marketplace HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/redeemlocal/backend/config"
	"github.com/redeemlocal/backend/internal/auth"
	"github.com/redeemlocal/backend/internal/deals"
	"github.com/redeemlocal/backend/internal/favorites"
	"github.com/redeemlocal/backend/internal/middleware"
	"github.com/redeemlocal/backend/internal/notifications"
	"github.com/redeemlocal/backend/internal/redemptions"
	"github.com/redeemlocal/backend/internal/vendors"
	"github.com/redeemlocal/backend/pkg/database"
	"github.com/redeemlocal/backend/pkg/queue"
	"github.com/redeemlocal/backend/pkg/redis"
	"github.com/redeemlocal/backend/pkg/response"
	"github.com/redeemlocal/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			PhotosBucket:         cfg.AWS.PhotosBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Vendors
	vendorRepo := vendors.NewRepository(pool)
	vendorHandler := vendors.NewHandler(vendorRepo, s3Client, logger)

	// Deals
	dealRepo := deals.NewRepository(pool)
	dealHandler := deals.NewHandler(dealRepo, vendorRepo, s3Client, logger)

	// Redemptions (code issuance, verification, one-tap)
	redemptionRepo := redemptions.NewRepository(pool)
	redemptionService := redemptions.NewService(dealRepo, redemptionRepo, cfg.Redemption, logger)
	redemptionHandler := redemptions.NewHandler(redemptionService, redemptionRepo, dealRepo, vendorRepo, authRepo, jobQueue, logger)

	// Favorites
	favoriteRepo := favorites.NewRepository(pool)
	favoriteHandler := favorites.NewHandler(favoriteRepo)

	// Email logs
	emailLogRepo := notifications.NewRepository(pool)
	emailLogHandler := notifications.NewHandler(emailLogRepo, dealRepo, vendorRepo)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Public browsing
	router.GET("/vendors", vendorHandler.List)
	router.GET("/vendors/:id", vendorHandler.GetByID)
	router.GET("/deals", dealHandler.List)
	router.GET("/deals/:id", dealHandler.GetByID)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Users (admin only)
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Vendors
		api.POST("/vendors", middleware.RequireRole("vendor", "admin"), vendorHandler.Create)
		api.GET("/me/vendor", vendorHandler.GetMine)
		api.PATCH("/vendors/:id", vendorHandler.Update)
		api.DELETE("/vendors/:id", vendorHandler.Delete)
		api.POST("/vendors/:id/logo/generate-upload-url", vendorHandler.GenerateLogoUploadURL)

		// Deals (vendor side)
		api.GET("/me/deals", middleware.RequireRole("vendor", "admin"), dealHandler.ListMine)
		api.POST("/deals", middleware.RequireRole("vendor", "admin"), dealHandler.Create)
		api.PATCH("/deals/:id", dealHandler.Update)
		api.POST("/deals/:id/publish", dealHandler.Publish)
		api.POST("/deals/:id/archive", dealHandler.Archive)
		api.DELETE("/deals/:id", dealHandler.Delete)
		api.POST("/deals/:id/photo/generate-upload-url", dealHandler.GeneratePhotoUploadURL)

		// Redemptions (user side)
		api.POST("/deals/:id/code", redemptionHandler.IssueCode)
		api.GET("/deals/:id/my-code", redemptionHandler.ActiveCode)
		api.POST("/deals/:id/redeem", redemptionHandler.Redeem)
		api.GET("/me/redemptions", redemptionHandler.ListMine)

		// Redemptions (vendor side)
		api.POST("/redemptions/verify", middleware.RequireRole("vendor", "admin"), redemptionHandler.Verify)
		api.POST("/redemptions/:id/void", middleware.RequireRole("vendor", "admin"), redemptionHandler.Void)
		api.GET("/deals/:id/redemptions", middleware.RequireRole("vendor", "admin"), redemptionHandler.ListByDeal)
		api.GET("/deals/:id/emails", middleware.RequireRole("vendor", "admin"), emailLogHandler.ListByDeal)

		// Favorites
		api.POST("/deals/:id/favorite", favoriteHandler.Add)
		api.DELETE("/deals/:id/favorite", favoriteHandler.Remove)
		api.GET("/me/favorites", favoriteHandler.ListMine)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
