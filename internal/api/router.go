package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"assetdesk-backend/config"
	"assetdesk-backend/internal/access"
	"assetdesk-backend/internal/mw"
	"assetdesk-backend/internal/store"
)

const defaultCacheTTL = 30 * time.Second

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, cfg config.ServerConfig, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestLog(opts.Logger))
	if cfg.RequestIPHeader != "" {
		r.TrustedPlatform = cfg.RequestIPHeader
	}

	handler := NewHandler(s, opts)

	// Per-IP limit with a burst of twice the rate.
	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), int(2*cfg.RateLimitPerSec))

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl, mw.ActorKey)

	manageAssets := mw.Require(access.Actor.CanManageAssets)
	administerUsers := mw.Require(access.Actor.CanAdministerUsers)

	r.GET("/health", handler.Health)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/auth/login", handler.Login)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		authed := api.Group("")
		authed.Use(mw.Auth(handler.tokens, s))

		authed.GET("/auth/me", handler.Me)

		assets := authed.Group("/assets")
		assets.GET("", handler.ListAssets)
		assets.POST("", manageAssets, handler.CreateAsset)
		assets.GET("/:id", handler.GetAsset)
		assets.PATCH("/:id", manageAssets, handler.UpdateAsset)
		assets.POST("/:id/assign", manageAssets, handler.AssignAsset)
		assets.GET("/:id/history", handler.AssetHistory)
		assets.GET("/:id/maintenance", handler.ListMaintenance)
		assets.POST("/:id/maintenance", manageAssets, handler.LogMaintenance)

		schedules := authed.Group("/schedules")
		schedules.GET("", handler.ListSchedules)
		schedules.POST("", manageAssets, handler.CreateSchedule)
		schedules.POST("/:id/complete", manageAssets, handler.CompleteSchedule)
		schedules.POST("/:id/toggle", manageAssets, handler.ToggleSchedule)

		tickets := authed.Group("/tickets")
		tickets.GET("", handler.ListTickets)
		tickets.POST("", handler.CreateTicket)
		tickets.GET("/history", handler.TicketHistoryView)
		tickets.GET("/:id", handler.GetTicket)
		tickets.PATCH("/:id/status", handler.ChangeTicketStatus)
		tickets.POST("/:id/approve", handler.ApproveTicket)
		tickets.POST("/:id/reject", handler.RejectTicket)
		tickets.POST("/:id/assign", handler.AssignTicket)
		tickets.GET("/:id/history", handler.TicketHistory)

		users := authed.Group("/users")
		users.GET("", administerUsers, handler.ListUsers)
		users.POST("", administerUsers, handler.CreateUser)
		users.GET("/:id", handler.GetUser)
		users.PATCH("/:id", administerUsers, handler.UpdateUser)
		users.DELETE("/:id", administerUsers, handler.DeleteUser)
		users.POST("/:id/restore", administerUsers, handler.RestoreUser)

		authed.GET("/dashboard", caching, handler.Dashboard)

		authed.GET("/subscriptions", handler.GetSubscription)
		authed.PUT("/subscriptions", handler.PutSubscription)
		authed.DELETE("/subscriptions", handler.DeleteSubscription)
	}

	return r
}
