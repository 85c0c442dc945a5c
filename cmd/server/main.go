// Command server runs the trust graph scoring and sybil detection API.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/sybilwatch/trustgraph/internal/adapters"
	"github.com/sybilwatch/trustgraph/internal/cache"
	"github.com/sybilwatch/trustgraph/internal/config"
	"github.com/sybilwatch/trustgraph/internal/database"
	"github.com/sybilwatch/trustgraph/internal/errors"
	"github.com/sybilwatch/trustgraph/internal/monitoring"
	"github.com/sybilwatch/trustgraph/internal/rankings"
	"github.com/sybilwatch/trustgraph/internal/ratelimit"
	"github.com/sybilwatch/trustgraph/internal/security"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment with defaults
	port := getEnvOrDefault("PORT", "8080")
	dataDir := getEnvOrDefault("DATA_DIR", "./data")
	profilePath := os.Getenv("ENGINE_PROFILE")
	redisAddr := os.Getenv("REDIS_ADDR")
	redisPassword := os.Getenv("REDIS_PASSWORD")
	memgraphURI := os.Getenv("MEMGRAPH_URI")
	retentionDays := getEnvIntOrDefault("RETENTION_DAYS", 90)
	cacheTTL := time.Duration(getEnvIntOrDefault("CACHE_TTL_MINUTES", 15)) * time.Minute

	profile, err := config.ReadOrCreate(profilePath)
	if err != nil {
		slog.Error("failed to load engine profile", "error", err)
		os.Exit(1)
	}

	db, err := database.NewDB(dataDir)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer errors.SafeClose(db, "database")

	repo := database.NewRepository(db)
	rankingsService := rankings.NewService(repo)

	retention := database.NewRetentionService(repo, retentionDays)
	retention.Start()
	defer retention.Stop()

	appMetrics := monitoring.NewMetrics()
	appLogger := monitoring.NewLogger()

	memoryMonitor := monitoring.NewMemoryMonitor(30*time.Second, 512*1024*1024, appLogger)
	memoryMonitor.Start()
	defer memoryMonitor.Stop()

	// Redis is optional; the limiter falls back to in-memory buckets.
	redisClient, err := ratelimit.NewRedisClient(redisAddr, redisPassword, 0)
	if err != nil {
		slog.Warn("redis unavailable, rate limiting falls back to in-memory", "error", err)
	}
	limiterConfig := ratelimit.DefaultConfig()
	limiterConfig.IPPerMinute = getEnvIntOrDefault("RATE_LIMIT_PER_MINUTE", limiterConfig.IPPerMinute)
	limiterConfig.AuditPerHour = getEnvIntOrDefault("AUDIT_LIMIT_PER_HOUR", limiterConfig.AuditPerHour)
	limiter := ratelimit.NewRateLimiter(redisClient, limiterConfig, appMetrics)

	// Memgraph is optional; without it graphs arrive in request bodies.
	var memgraph *adapters.MemgraphAdapter
	if memgraphURI != "" {
		memgraph, err = adapters.NewMemgraphAdapter(memgraphURI,
			os.Getenv("MEMGRAPH_USER"), os.Getenv("MEMGRAPH_PASSWORD"))
		if err != nil {
			slog.Error("failed to connect to memgraph", "error", err)
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = memgraph.Close(ctx)
		}()
	}

	securityMiddleware := security.NewMiddleware(security.DefaultConfig())
	responseCache := cache.New(cacheTTL)

	srv := &server{
		profile:  profile,
		repo:     repo,
		rankings: rankingsService,
		metrics:  appMetrics,
		logger:   appLogger,
	}
	if memgraph != nil {
		srv.source = memgraph
	}

	r := gin.New()
	r.Use(errors.RecoveryHandler())
	r.Use(errors.ErrorHandler())
	r.Use(security.SecurityHeadersMiddleware())
	r.Use(securityMiddleware.RequestTimeout)
	r.Use(securityMiddleware.LimitBodySize)
	r.Use(securityMiddleware.ValidateContentType)
	r.Use(corsMiddleware())
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(monitoring.Middleware(appMetrics, appLogger))
	r.Use(limiter.IPRateLimitMiddleware())
	r.Use(responseCache.Middleware(appMetrics,
		"/v1/score", "/v1/cluster", "/v1/similarity"))

	r.GET("/health", func(c *gin.Context) {
		health := gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"database":  db.GetPoolStats(),
			"ratelimit": limiter.GetStats(),
			"cache":     gin.H{"entries": responseCache.Size()},
			"memory":    memoryMonitor.GetStats(),
		}
		if memgraph != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := memgraph.HealthCheck(ctx); err != nil {
				health["status"] = "degraded"
				health["memgraph"] = err.Error()
				c.JSON(http.StatusServiceUnavailable, health)
				return
			}
			health["memgraph"] = "ok"
		}
		c.JSON(http.StatusOK, health)
	})

	r.GET("/metrics", gin.WrapH(appMetrics.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/ratelimit/status", limiter.HandleStatus())

	v1 := r.Group("/v1")
	{
		v1.POST("/score", srv.handleScore)
		v1.POST("/cluster", srv.handleCluster)
		v1.POST("/similarity", srv.handleSimilarity)
		v1.POST("/audit", limiter.AuditRateLimitMiddleware(), srv.handleAudit)
		v1.POST("/tune", securityMiddleware.AdminAuth, srv.handleTune)

		v1.GET("/runs", srv.handleListRuns)
		v1.GET("/runs/:id", srv.handleGetRun)
		v1.DELETE("/runs/:id", securityMiddleware.AdminAuth, srv.handleDeleteRun)

		v1.GET("/rankings/scores", srv.handleTopScores)
		v1.GET("/rankings/clusters", srv.handleRiskyClusters)

		v1.GET("/profile", srv.handleProfile)
	}

	admin := r.Group("/admin", securityMiddleware.AdminAuth)
	{
		admin.GET("/ratelimit/stats", limiter.HandleAdminStats())
		admin.POST("/ratelimit/invalidate/:ip", limiter.HandleAdminInvalidateIP())
	}

	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		slog.Info("starting server", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server exited")
}

func corsMiddleware() gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowOrigins = strings.Split(origins, ",")
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	return cors.New(cfg)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		slog.Warn("invalid integer in environment, using default", "key", key, "value", value)
	}
	return defaultValue
}
