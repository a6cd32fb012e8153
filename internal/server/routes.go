package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	e.HTTPErrorHandler = NotFoundJSON()

	e.Use(SetJSONContentType)
	e.Use(SetNoCacheHeaders)

	// Optional API key authentication
	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key",
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
		}))
	}

	v1 := e.Group("/api/v1")
	v1.GET("/health", h.Health)

	sessionGroup := v1.Group("/session")
	sessionGroup.POST("/signin", h.SignIn)
	sessionGroup.GET("/:wallet", h.SessionStatus)
	sessionGroup.DELETE("/:wallet", h.SignOut)

	v1.GET("/balances/:wallet", h.Balances)
	v1.GET("/quote", h.QuotePreview)
	v1.GET("/swaps/recent", h.RecentSwaps)

	pointsGroup := v1.Group("/points")
	pointsGroup.POST("/award", h.PointsAward)
	pointsGroup.GET("/leaderboard", h.Leaderboard)
	pointsGroup.GET("/:wallet", h.PointsGet)

	v1.GET("/volume/stats", h.VolumeStats)

	v1.POST("/pool/withdraw", h.PoolWithdraw)

	recoveryGroup := v1.Group("/recovery")
	recoveryGroup.POST("/check", h.RecoveryCheck)
	recoveryGroup.POST("/recover", h.Recover)

	// Insights endpoints with rate limiting
	insightsGroup := v1.Group("/insights")
	insightsGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(0.2), // 1 request every 5 seconds
		Burst:     2,
		ExpiresIn: 2 * time.Minute,
	})))
	insightsGroup.POST("/ask", h.InsightsAsk)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
