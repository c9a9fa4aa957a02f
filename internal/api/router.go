// Package api wires together all HTTP routes for the household context backend.
//
// Route grouping philosophy:
//   - /health and /version are public: load balancers and deployment tooling
//     probe them without credentials.
//   - /api/v1/auth/register and /api/v1/auth/login are public but carry a
//     stricter rate limit than the rest of the API.
//   - Everything else requires a bearer JWT. The authenticated group resolves
//     the caller's user row once, and every handler downstream reads it from
//     the request context.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/hearthhub/hearthhub/internal/activectx"
	"github.com/hearthhub/hearthhub/internal/activity"
	"github.com/hearthhub/hearthhub/internal/api/accounts"
	"github.com/hearthhub/hearthhub/internal/api/contexts"
	"github.com/hearthhub/hearthhub/internal/api/groups"
	"github.com/hearthhub/hearthhub/internal/cache"
	"github.com/hearthhub/hearthhub/internal/config"
	"github.com/hearthhub/hearthhub/internal/db/repositories"
	"github.com/hearthhub/hearthhub/internal/jobs"
	"github.com/hearthhub/hearthhub/internal/middleware"
	"github.com/hearthhub/hearthhub/internal/safego"
	"github.com/hearthhub/hearthhub/internal/telemetry"
)

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	pruner       *jobs.PreferencePruner
	rateLimiters []*middleware.RateLimiter
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.pruner != nil {
		bg.pruner.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("all background services stopped")
}

// instrumentedInvalidator wraps an Invalidator so every fan-out is counted,
// labelled by backend and outcome.
type instrumentedInvalidator struct {
	inner activectx.Invalidator
}

func (i instrumentedInvalidator) Name() string { return i.inner.Name() }

func (i instrumentedInvalidator) InvalidateGroup(ctx context.Context, groupID string) error {
	err := i.inner.InvalidateGroup(ctx, groupID)
	result := "ok"
	if err != nil {
		result = "error"
	}
	telemetry.CacheInvalidationsTotal.WithLabelValues(i.inner.Name(), result).Inc()
	return err
}

// NewRouter creates and configures the Gin router. rdb may be nil when redis is
// not configured; preference storage, rate limiting, and cache invalidation all
// degrade to their in-process variants.
func NewRouter(cfg *config.Config, db *sql.DB, rdb *redis.Client) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	groupRepo := repositories.NewGroupRepository(db)
	activityRepo := repositories.NewActivityRepository(db)

	// Wrap *sql.DB with sqlx for the membership repository
	sqlxDB := sqlx.NewDb(db, "postgres")
	membershipRepo := repositories.NewMembershipRepository(sqlxDB)

	// In-process group cache. A sizing error falls back to uncached reads
	// rather than refusing to start.
	groupCache, err := cache.New(cfg.Context.CacheSize)
	if err != nil {
		log.Printf("Failed to initialize group cache, running uncached: %v", err)
		groupCache = nil
	}

	// Invalidation fan-out: the in-process cache always participates; the
	// redis invalidator joins when redis is configured.
	invalidations := activectx.NewInvalidatorRegistry()
	if groupCache != nil {
		invalidations.Register(instrumentedInvalidator{inner: groupCache})
	}
	if rdb != nil {
		invalidations.Register(instrumentedInvalidator{inner: activectx.NewRedisInvalidator(rdb)})
	}

	recorder := activity.NewRecorder(activityRepo)
	registry := contexts.NewManagerRegistry(membershipRepo, rdb, invalidations)

	// Start the stale-preference sweep. It returns immediately when redis is
	// not configured.
	pruner := jobs.NewPreferencePruner(rdb, groupRepo, cfg.Context.PreferencePruneIntervalHours)
	safego.Go(func() { pruner.Start(context.Background()) })

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// API version
	router.GET("/version", versionHandler())

	// Rate limiting: redis-backed when available so replicas share budgets,
	// in-process otherwise. Disabled entirely via security.rate_limiting.enabled.
	bg := &BackgroundServices{pruner: pruner}
	limitWith := func(rlCfg middleware.RateLimitConfig) gin.HandlerFunc {
		if !cfg.Security.RateLimiting.Enabled {
			return func(c *gin.Context) { c.Next() }
		}
		if rdb != nil {
			return middleware.RedisRateLimitMiddleware(rdb, rlCfg)
		}
		rl := middleware.NewRateLimiter(rlCfg)
		bg.rateLimiters = append(bg.rateLimiters, rl)
		return middleware.RateLimitMiddleware(rl)
	}

	accountHandlers := accounts.NewAccountHandlers(cfg, db, registry)
	contextHandlers := contexts.NewContextHandlers(registry, membershipRepo, recorder)
	groupHandlers := groups.NewGroupHandlers(db, sqlxDB, recorder, registry, groupCache)

	apiV1 := router.Group("/api/v1")
	{
		// Public authentication endpoints (no auth required, but rate limited)
		authGroup := apiV1.Group("/auth")
		authGroup.Use(limitWith(middleware.AuthRateLimitConfig()))
		{
			authGroup.POST("/register", accountHandlers.RegisterHandler())
			authGroup.POST("/login", accountHandlers.LoginHandler())
		}

		// Authenticated-only endpoints
		authenticated := apiV1.Group("")
		authenticated.Use(middleware.AuthMiddleware(userRepo))
		authenticated.Use(limitWith(middleware.DefaultRateLimitConfig()))
		{
			authenticated.GET("/auth/me", accountHandlers.MeHandler())
			authenticated.POST("/auth/logout", accountHandlers.LogoutHandler())

			// Active context
			authenticated.GET("/user/memberships", contextHandlers.ListMembershipsHandler())
			authenticated.GET("/context", contextHandlers.GetContextHandler())
			authenticated.POST("/context/switch", contextHandlers.SwitchContextHandler())
			authenticated.POST("/context/refetch", contextHandlers.RefetchContextHandler())
			authenticated.POST("/context/refresh", contextHandlers.ForceRefreshHandler())

			// Groups and membership management
			authenticated.POST("/groups", groupHandlers.CreateGroupHandler())
			authenticated.GET("/groups/:id", groupHandlers.GetGroupHandler())
			authenticated.PUT("/groups/:id", groupHandlers.UpdateGroupHandler())
			authenticated.DELETE("/groups/:id", groupHandlers.DeleteGroupHandler())
			authenticated.GET("/groups/:id/members", groupHandlers.ListMembersHandler())
			authenticated.POST("/groups/:id/members", groupHandlers.AddMemberHandler())
			authenticated.PUT("/groups/:id/members/:user_id", groupHandlers.UpdateMemberRoleHandler())
			authenticated.DELETE("/groups/:id/members/:user_id", groupHandlers.RemoveMemberHandler())
			authenticated.GET("/groups/:id/activities", groupHandlers.ListActivitiesHandler())
		}
	}

	return router, bg
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the current API version.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		// Log the request
		if cfg.Logging.Format == "json" {
			logJSON(c, latency, path, query)
		} else {
			logText(c, latency, path, query)
		}
	}
}

// logJSON logs a request as a JSON-structured slog record.
func logJSON(c *gin.Context, latency time.Duration, path, query string) {
	requestID, _ := c.Get(middleware.RequestIDKey)
	slog.LogAttrs(
		c.Request.Context(),
		slog.LevelInfo,
		"http request",
		slog.String("method", c.Request.Method),
		slog.String("path", path),
		slog.String("query", query),
		slog.Int("status", c.Writer.Status()),
		slog.Int("size", c.Writer.Size()),
		slog.Duration("latency", latency),
		slog.String("ip", c.ClientIP()),
		slog.String("request_id", fmt.Sprintf("%v", requestID)),
		slog.String("user_agent", c.Request.UserAgent()),
	)
}

// logText logs a request as a human-readable slog text record.
func logText(c *gin.Context, latency time.Duration, path, query string) {
	// reuse the same structured output; slog will emit text format when the global
	// handler is a TextHandler (configured in telemetry.SetupLogger).
	logJSON(c, latency, path, query)
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
