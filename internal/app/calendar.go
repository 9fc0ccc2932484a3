package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"meeting-agent/internal/calendar"
)

const (
	oauthStateSubject = "calendar-oauth"
	oauthStateTTL     = 10 * time.Minute
)

// GoogleAuthHandler starts the operator consent flow that yields the
// refresh token used by the calendar backend.
// GET /api/calendar/auth
func (a *App) GoogleAuthHandler(c *gin.Context) {
	if a.OAuth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar OAuth not configured"})
		return
	}

	state, err := a.signState(time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create state"})
		return
	}

	url := a.OAuth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	c.JSON(http.StatusOK, gin.H{
		"auth_url": url,
		"state":    state,
	})
}

// GoogleOAuth2CallbackHandler exchanges the authorization code and shows
// the refresh token to the operator once. It is not persisted.
// GET /oauth2callback
func (a *App) GoogleOAuth2CallbackHandler(c *gin.Context) {
	if a.OAuth == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar OAuth not configured"})
		return
	}

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization code required"})
		return
	}
	if err := a.verifyState(c.Query("state")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired state"})
		return
	}

	token, err := a.OAuth.Exchange(c.Request.Context(), code)
	if err != nil {
		slog.Warn("oauth code exchange failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to exchange code for token"})
		return
	}
	if token.RefreshToken == "" {
		c.JSON(http.StatusOK, gin.H{
			"message": "Authorization successful, but Google returned no refresh token. Revoke the app access and try again.",
		})
		return
	}

	slog.Info("calendar authorization completed")
	c.JSON(http.StatusOK, gin.H{
		"message":       "Authorization successful. Set GOOGLE_REFRESH_TOKEN to the value below and restart the service.",
		"refresh_token": token.RefreshToken,
	})
}

// CalendarEventsHandler lists the backend events of the operating calendar.
// GET /api/calendar/events?from=ISO&to=ISO
func (a *App) CalendarEventsHandler(c *gin.Context) {
	if a.Provider == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": calendar.ErrNotConfigured.Error()})
		return
	}

	from, to, ok := parseRangeQuery(c)
	if !ok {
		return
	}

	events, err := a.Provider.ListEvents(c.Request.Context(), a.Config.CalendarID, from, to)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if events == nil {
		events = []calendar.Event{}
	}
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}

func (a *App) signState(now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   oauthStateSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(oauthStateTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.stateKey)
}

func (a *App) verifyState(state string) error {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(state, &claims, func(token *jwt.Token) (interface{}, error) {
		return a.stateKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithSubject(oauthStateSubject))
	return err
}
