package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/backofficehq/backoffice/internal/cache"
	"github.com/backofficehq/backoffice/internal/dbpool"
	"github.com/backofficehq/backoffice/internal/entity"
	"github.com/backofficehq/backoffice/internal/middleware"
	"github.com/backofficehq/backoffice/internal/ws"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log         *logrus.Logger
	Pool        *dbpool.Pool
	Hub         *ws.Hub
	Registry    *entity.Registry
	Generic     GenericService
	Audit       AuditService
	Principals  cache.PrincipalLookup
	CORSOrigins []string
	Version     string
}

// Router-level limits.
const (
	maxBodySize = 10 << 20 // 10 MB
	rateLimit   = 100      // requests per second per IP
	rateBurst   = 200      // token bucket burst size
)

// setupMiddleware configures all middleware on the Gin engine.
func setupMiddleware(ctx context.Context, r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MaxBodySize(maxBodySize))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.NewRateLimiter(ctx, rateLimit, rateBurst).Handler())
	r.Use(middleware.Prometheus())

	// Metrics endpoint (unauthenticated, like health).
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// registerRoutes sets up all API route handlers on the given router group.
func registerRoutes(ctx context.Context, api *gin.RouterGroup, deps *RouterDeps) {
	log := deps.Log

	health := NewHealthHandler(deps.Pool, deps.Hub, log, deps.Version)
	generic := NewGenericHandler(deps.Generic, log)
	audit := NewAuditHandler(deps.Audit, log)

	// Health and readiness are unauthenticated.
	api.GET("/health", health.Liveness)
	api.GET("/ready", health.Readiness)

	// All other API routes require authentication.
	api.Use(middleware.Auth(deps.Principals, log))

	// Every registered entity gets the same CRUD surface.
	for _, cfg := range deps.Registry.All() {
		g := api.Group("/" + cfg.Route)
		g.GET("", generic.List(cfg))
		g.POST("", generic.Create(cfg))
		g.POST("/upsert", generic.Upsert(cfg))
		g.GET("/:id", generic.Get(cfg))
		g.PUT("/:id", generic.Update(cfg))
		g.PATCH("/active/:id", generic.ChangeStatus(cfg, true))
		g.PATCH("/inactive/:id", generic.ChangeStatus(cfg, false))
		g.DELETE("/:id", generic.Delete(cfg))
	}

	// Audit trail.
	api.GET("/audit", audit.Query)
	api.DELETE("/audit", audit.Purge)

	// WebSocket endpoint.
	api.GET("/ws", wsHandler(ctx, log, deps.Hub, deps.CORSOrigins))
}

// NewRouter creates and configures the Gin engine with all middleware and routes.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(ctx, r, deps)
	registerRoutes(ctx, r.Group("/api/v1"), deps)

	return r
}
