package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"laundry-kiosk/config"
	"laundry-kiosk/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg config.ServerConfig, d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestLogger(d.Logger))

	handler := NewHandler(d)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, cfg.RequestIPHeader)

	// Guide and branding only change through uploads, which flush the cache.
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)

	r.GET("/healthz", handler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(rateLimiter, mw.Invalidate(cacheStore))
	{
		api.GET("/machines", handler.GetMachines)
		api.POST("/machines/:id/book", handler.BookMachine)
		api.PUT("/machines/:id/icon", handler.PutIcon)

		api.GET("/booking", handler.GetBooking)
		api.POST("/booking/cancel", handler.CancelBooking)

		api.GET("/status", handler.GetStatus)
		api.POST("/status/ack", handler.AckStatus)

		api.GET("/icons", caching, handler.GetIcons)
		api.GET("/branding", caching, handler.GetBranding)
		api.PUT("/branding/:slot", handler.PutBranding)
		api.GET("/guide", caching, handler.GetGuide)

		api.GET("/history", handler.GetHistory)
		api.GET("/history/export", handler.ExportHistory)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}

// Health reports whether the profile store answers.
func (h *Handler) Health(c *gin.Context) {
	sqlDB, err := h.store.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "identity": h.engine.Identity()})
}
