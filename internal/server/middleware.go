package server

import (
	"net/http"
	"strings"
	"time"

	"auction-marketplace/internal/auth"
	"auction-marketplace/internal/biddingerrors"
	"auction-marketplace/services/helpers"
	usershandler "auction-marketplace/services/users/handler"
	"auction-marketplace/utils"

	"github.com/gin-gonic/gin"
)

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	utils.Info("HTTP Request", map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	})
}

// AuthMiddleware validates the session token from the Authorization header
// or the jwt cookie and stores the caller's ID on the gin context
func AuthMiddleware(tokens *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			utils.JSONError(c, http.StatusUnauthorized, biddingerrors.ErrUnauthorized, "not authorized, no token")
			return
		}

		claims, err := tokens.ValidateToken(raw)
		if err != nil {
			utils.JSONError(c, http.StatusUnauthorized, auth.ErrInvalidToken, "not authorized, token failed")
			utils.Warn("AuthMiddleware: rejected token", map[string]any{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			return
		}

		c.Set(helpers.UserIDKey, claims.UserID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := c.Cookie(usershandler.CookieName); err == nil {
		return cookie
	}
	return ""
}

// CORSMiddleware allows a browser frontend on origin to call the API with credentials
func CORSMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed := origin
		if allowed == "*" {
			// credentials cannot be combined with a wildcard, so echo the caller
			if reqOrigin := c.GetHeader("Origin"); reqOrigin != "" {
				allowed = reqOrigin
			}
		}

		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", allowed)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		h.Add("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
