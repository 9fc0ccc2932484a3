package app

import (
	"github.com/gin-gonic/gin"
)

// Router builds the HTTP surface.
func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger())

	router.GET("/healthz", a.HealthHandler)
	// OAuth2 callback (must be before auth middleware)
	router.GET("/oauth2callback", a.GoogleOAuth2CallbackHandler)

	api := router.Group("/api")
	api.Use(AuthMiddleware(a.Config.StaticTokens, a.Config.JWTSecret))
	{
		limiter := NewRateLimiter(a.Config.RateLimitPerMinute, a.Config.RateLimitBurst)
		api.POST("/chat", limiter.Middleware(), a.ChatHandler)
		api.POST("/tools/:name", a.ToolHandler)

		bookings := api.Group("/bookings")
		{
			bookings.GET("", a.ListBookingsHandler)
			bookings.GET("/:id/invite.ics", a.InviteHandler)
		}

		// Google Calendar integration routes
		calendar := api.Group("/calendar")
		{
			calendar.GET("/auth", a.GoogleAuthHandler)
			calendar.GET("/events", a.CalendarEventsHandler)
		}
	}

	return router
}
