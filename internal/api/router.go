package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"wind-speed-service/config"
	"wind-speed-service/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg config.ServerConfig, lookups Lookuper) *gin.Engine {
	registerValidators()

	r := gin.Default()
	r.Use(mw.RequestID())
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	handler := NewHandler(lookups)

	r.GET("/health", handler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API group
	api := r.Group("/api")
	if cfg.RateLimitPerSec > 0 {
		api.Use(mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst))
	}

	lookup := []gin.HandlerFunc{handler.PostWindSpeed}
	if cfg.CacheTTL > 0 {
		cacheStore := cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
		lookup = append([]gin.HandlerFunc{mw.Cache(cacheStore, cfg.CacheTTL)}, lookup...)
	}
	api.POST("/wind-speed", lookup...)

	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", mw.RequestIDHeader},
		ExposeHeaders: []string{mw.RequestIDHeader, mw.CacheHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			return c
		}
	}
	c.AllowOrigins = origins
	return c
}
