package middleware

import (
	"errors"
	"strings"

	apperrors "github.com/NomadCrew/timer-sync-backend/errors"
	"github.com/NomadCrew/timer-sync-backend/logger"
	"github.com/gin-gonic/gin"
)

// tokenQueryParam carries the token for WebSocket upgrades, where browsers
// cannot set an Authorization header.
const tokenQueryParam = "token"

// AuthMiddleware authenticates the request and stores the caller's user id
// under UserIDKey.
func AuthMiddleware(validator Validator) gin.HandlerFunc {
	log := logger.GetLogger().Named("auth")

	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			_ = c.Error(apperrors.AuthenticationFailed("Authorization token required"))
			c.Abort()
			return
		}

		userID, err := validator.Validate(token)
		if err != nil {
			log.Debugw("Token validation failed",
				"path", c.Request.URL.Path,
				"token", logger.MaskJWT(token),
				"error", err)

			msg := "Invalid token"
			if errors.Is(err, ErrTokenExpired) {
				msg = "Your session has expired"
			}
			_ = c.Error(apperrors.AuthenticationFailed(msg))
			c.Abort()
			return
		}

		c.Set(string(UserIDKey), userID)
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Query(tokenQueryParam)
}
