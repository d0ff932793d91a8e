package handlers

import (
	"net/http"

	"stocks-simulator/auth"
	"stocks-simulator/ledger"
	"stocks-simulator/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Handler serves the JSON API over the ledger engine and auth service.
type Handler struct {
	engine *ledger.Engine
	auth   *auth.Service
	log    zerolog.Logger
}

func New(engine *ledger.Engine, authService *auth.Service, log zerolog.Logger) *Handler {
	return &Handler{
		engine: engine,
		auth:   authService,
		log:    log.With().Str("component", "http").Logger(),
	}
}

type RouterOptions struct {
	AuthRateLimit float64
	AuthRateBurst int
	SecureCookies bool
}

// NewRouter wires every route of the simulator.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(h.log), middleware.NoCache())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public routes
	limited := router.Group("/", middleware.RateLimit(opts.AuthRateLimit, opts.AuthRateBurst))
	{
		limited.POST("/register", h.Register(opts.SecureCookies))
		limited.POST("/login", h.Login(opts.SecureCookies))
	}
	router.GET("/logout", h.Logout(opts.SecureCookies))

	// Protected routes
	protected := router.Group("/")
	protected.Use(middleware.Auth(h.auth))
	{
		protected.GET("/", h.Index)
		protected.GET("/history", h.History)
		protected.GET("/audit", h.Audit)
		protected.GET("/buy", h.BuyForm)
		protected.POST("/buy", h.Buy)
		protected.GET("/sell", h.SellForm)
		protected.POST("/sell", h.Sell)
		protected.GET("/quote", h.Quote)
		protected.POST("/quote", h.Quote)
	}

	return router
}

// userID returns the caller set by middleware.Auth.
func userID(c *gin.Context) uint {
	id, _ := middleware.CurrentIdentity(c)
	return id.UserID
}
