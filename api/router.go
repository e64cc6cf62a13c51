package api

import (
	"github.com/gin-gonic/gin"
	"github.com/use-agent/rednote/api/handler"
	"github.com/use-agent/rednote/api/middleware"
	"github.com/use-agent/rednote/cache"
	"github.com/use-agent/rednote/config"
	"github.com/use-agent/rednote/login"
	"github.com/use-agent/rednote/scraper"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(sc *scraper.Scraper, lo *login.Orchestrator, cfg *config.Config, cc *cache.Cache) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(sc.StartTime(), sc.CookieCount, func() string {
		return lo.State().String()
	}))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Scrape
	protected.POST("/scrape", handler.Scrape(sc, cc))

	// QR login flow
	protected.GET("/login/qr", handler.LoginQR(lo))
	protected.GET("/login/wait", handler.LoginWait(lo))
	protected.POST("/login/close", handler.LoginClose(lo))

	return r
}
