package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"videorelay/config"
	"videorelay/internal/backend"
	"videorelay/internal/handler"
	"videorelay/internal/metrics"
	"videorelay/internal/progress"
	"videorelay/internal/service"
	"videorelay/internal/storage"
	"videorelay/pkg/logger"
	"videorelay/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	if err := logger.Init(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting video relay server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("temp_root", cfg.Storage.TempRoot),
	)

	// Temp root must exist before any request is accepted
	storageManager := storage.NewManager(&cfg.Storage)
	if err := storageManager.EnsureRoot(); err != nil {
		logger.Logger.Fatal("Failed to prepare temp root", zap.Error(err))
	}
	storageManager.Start()
	defer storageManager.Stop()

	// Progress bars go to stderr so they never mix with JSON logs
	var tracker progress.Tracker = progress.Nop
	if cfg.Progress.Enabled {
		tracker = progress.NewBarTracker(os.Stderr, cfg.Progress.Refresh)
	}

	// Initialize services
	ytdlp := backend.NewYTDLP(&cfg.Backend)
	videoService := service.NewVideoService(ytdlp, &cfg.Backend, nil)
	downloadService := service.NewDownloadService(ytdlp, nil)

	rateLimitService := service.NewRateLimitService(&cfg.RateLimit)
	defer rateLimitService.Stop()

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinLogger())
	router.Use(func(c *gin.Context) {
		c.Next()
		metrics.RecordHTTPRequest(c.Request.Method, c.FullPath(), fmt.Sprintf("%d", c.Writer.Status()))
	})

	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimitMiddleware(rateLimitService))
		logger.Logger.Info("Rate limiting enabled",
			zap.Int("requests_per_minute", cfg.RateLimit.RequestsPerMinute),
			zap.Int("burst", cfg.RateLimit.BurstSize))
	}

	videoHandler := handler.NewVideoHandler(videoService, storageManager, cfg)
	downloadHandler := handler.NewDownloadHandler(videoService, downloadService, storageManager, tracker, cfg)

	// Routes
	router.GET("/metadata", videoHandler.GetMetadata)
	router.GET("/alt-metadata", videoHandler.GetAltMetadata)
	router.GET("/download", downloadHandler.Download)
	router.POST("/download", downloadHandler.Download)
	router.GET("/health", videoHandler.HealthCheck)
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// Downloads stream for as long as they take, so no write timeout by default
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.Timeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.Timeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Logger.Info("Server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Logger.Info("Server stopped")
}
