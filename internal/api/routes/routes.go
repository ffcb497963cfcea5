package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NEDA-LABS/nedapay-service/internal/api/handlers"
	"github.com/NEDA-LABS/nedapay-service/internal/api/middleware"
	"github.com/NEDA-LABS/nedapay-service/internal/infrastructure/config"
	"github.com/NEDA-LABS/nedapay-service/pkg/logger"
)

// Handlers bundles every handler the router mounts.
type Handlers struct {
	Health       *handlers.HealthHandler
	OffRamp      *handlers.OffRampHandler
	Wallet       *handlers.WalletHandler
	Settings     *handlers.SettingsHandler
	SessionFlags *handlers.SessionFlagHandler
	APIKeys      middleware.APIKeyValidator
}

// SetupRoutes configures the application routes.
func SetupRoutes(cfg *config.Config, log *logger.Logger, h Handlers) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.RateLimit(cfg.Server.RateLimitPerMin))
	router.Use(middleware.SecurityHeaders())

	router.GET("/health", h.Health.Health)
	router.GET("/ready", h.Health.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")

	// Dashboard endpoints authenticate with the merchant's JWT.
	authed := v1.Group("")
	authed.Use(middleware.Authentication(cfg, log))
	{
		offramp := authed.Group("/offramp")
		{
			offramp.POST("/session", h.OffRamp.OpenSession)
			offramp.GET("/session", h.OffRamp.GetSession)
			offramp.PATCH("/session", h.OffRamp.UpdateSession)
			offramp.GET("/currencies", h.OffRamp.Currencies)
			offramp.GET("/institutions", h.OffRamp.Institutions)
			offramp.POST("/rate", h.OffRamp.FetchRate)
			offramp.POST("/verify-account", h.OffRamp.VerifyAccount)
			offramp.GET("/balance", h.OffRamp.Balance)
			offramp.GET("/gas-status", h.OffRamp.GasStatus)
			offramp.POST("/submit", h.OffRamp.Submit)
			offramp.GET("/withdrawals", h.OffRamp.Withdrawals)
		}

		wallets := authed.Group("/wallets")
		{
			wallets.GET("/active", h.Wallet.ActiveWallet)
			wallets.GET("/linked-accounts", h.Wallet.LinkedAccounts)
		}

		settings := authed.Group("/settings")
		{
			settings.GET("", h.Settings.Get)
			settings.PUT("", h.Settings.Update)
			settings.POST("/2fa/setup", h.Settings.BeginTwoFactor)
			settings.POST("/2fa/enable", h.Settings.EnableTwoFactor)
			settings.POST("/2fa/disable", h.Settings.DisableTwoFactor)
			settings.POST("/api-keys", h.Settings.IssueAPIKey)
			settings.GET("/api-keys", h.Settings.ListAPIKeys)
			settings.DELETE("/api-keys/:id", h.Settings.RevokeAPIKey)
		}

		session := authed.Group("/session-flags")
		{
			session.GET("/:flag", h.SessionFlags.GetFlag)
			session.PUT("/:flag", h.SessionFlags.SetFlag)
			session.DELETE("", h.SessionFlags.ClearSession)
		}
	}

	// Machine endpoints authenticate with merchant API keys.
	machine := v1.Group("/machine")
	machine.Use(middleware.ValidateAPIKey(h.APIKeys))
	{
		machine.GET("/withdrawals", h.OffRamp.Withdrawals)
	}

	return router
}
