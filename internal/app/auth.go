package app

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const jwtLeeway = 5 * time.Second

// AuthMiddleware accepts bearer static tokens or HS256 JWTs. With neither
// configured the API is open.
func AuthMiddleware(staticTokens []string, jwtSecret string) gin.HandlerFunc {
	if len(staticTokens) == 0 && jwtSecret == "" {
		slog.Warn("API authentication disabled: no static tokens or JWT secret configured")
		return func(c *gin.Context) { c.Next() }
	}

	tokens := make([][]byte, len(staticTokens))
	for i, t := range staticTokens {
		tokens[i] = []byte(t)
	}
	key := []byte(jwtSecret)

	return func(c *gin.Context) {
		bearer, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed bearer token"})
			return
		}

		if len(key) > 0 && validJWT(bearer, key) {
			c.Next()
			return
		}
		if matchesStatic(bearer, tokens) {
			c.Next()
			return
		}

		slog.Info("rejected API request", "path", c.FullPath(), "client_ip", c.ClientIP())
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func validJWT(token string, key []byte) bool {
	_, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(jwtLeeway))
	return err == nil
}

// matchesStatic compares in constant time and checks every token.
func matchesStatic(token string, tokens [][]byte) bool {
	candidate := []byte(token)
	match := 0
	for _, t := range tokens {
		match |= subtle.ConstantTimeCompare(candidate, t)
	}
	return match == 1
}
