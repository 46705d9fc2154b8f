package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/seo-audit/backend/auditor"
	"github.com/seo-audit/backend/config"
	"github.com/seo-audit/backend/logging"
	"github.com/seo-audit/backend/middleware"
	"github.com/seo-audit/backend/ratelimit"
	"github.com/seo-audit/backend/stats"
)

func main() {
	config.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		// Misconfiguration is fatal; there is no sensible fallback.
		panic(err)
	}

	logger, err := logging.New(os.Getenv(stats.EnvDevMode) == "true")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	gin.SetMode(cfg.GinMode)

	storage, err := stats.NewStorage(cfg.DataDir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize stats storage", zap.Error(err))
	}

	statistics, err := stats.NewStatistics(cfg.DataDir)
	if err != nil {
		logger.Fatal("Failed to initialize statistics", zap.Error(err))
	}

	limiter, err := ratelimit.New(ratelimit.Config{
		MaxRequests: cfg.RateLimitMax,
		Window:      cfg.RateLimitWindow,
		BlockFor:    cfg.RateLimitBlock,
	})
	if err != nil {
		logger.Fatal("Failed to initialize rate limiter", zap.Error(err))
	}

	seoAuditor, err := auditor.New(auditor.Options{
		AuditCacheSize: cfg.AuditCacheSize,
		AuditCacheTTL:  cfg.AuditCacheTTL,
		LinkCacheSize:  cfg.LinkCacheSize,
		LinkCacheTTL:   cfg.LinkCacheTTL,
		LinkProbeRPS:   cfg.LinkProbeRPS,
	}, storage, logger)
	if err != nil {
		logger.Fatal("Failed to initialize auditor", zap.Error(err))
	}

	// Drop idle limiter state in the background; correctness only needs
	// the lazy checks, this just bounds memory.
	purgeDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				limiter.Purge(time.Now())
			case <-purgeDone:
				return
			}
		}
	}()

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(middleware.ErrorHandler(logger))
	r.Use(middleware.CORS())
	r.Use(middleware.RateLimit(limiter, storage))
	r.Use(middleware.Tracking(statistics))
	registerRoutes(r, seoAuditor, statistics, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	close(purgeDone)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := seoAuditor.Shutdown(); err != nil {
		logger.Error("Failed to shutdown auditor", zap.Error(err))
	}
	if err := statistics.Save(); err != nil {
		logger.Error("Failed to save statistics", zap.Error(err))
	}

	logger.Info("Server exited")
}

func registerRoutes(r *gin.Engine, seoAuditor *auditor.Auditor, statistics *stats.Statistics, logger *zap.Logger) {
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})

		api.POST("/audit", auditHandler(seoAuditor, logger))

		api.GET("/statistics", func(c *gin.Context) {
			snapshot := statistics.Snapshot()
			snapshot["cache"] = seoAuditor.GetCacheStats()
			c.JSON(http.StatusOK, snapshot)
		})
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func auditHandler(seoAuditor *auditor.Auditor, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			URL string `json:"url" binding:"required,url"`
		}

		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid URL provided",
			})
			return
		}

		// Tracking attributes this request to the page being audited.
		c.Set(middleware.AuditTargetKey, request.URL)

		report, err := seoAuditor.AuditWithContext(c.Request.Context(), request.URL)
		if err != nil {
			logger.Warn("Audit failed",
				zap.String("url", request.URL),
				zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{
				"error": "Failed to audit URL: " + err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, report)
	}
}
