package middleware

import (
	"crypto/subtle"

	"github.com/NomadCrew/timer-sync-backend/errors"
	"github.com/NomadCrew/timer-sync-backend/logger"
	"github.com/gin-gonic/gin"
)

// IntegrationSecretHeader is injected by the API Gateway integration on every
// request it forwards.
const IntegrationSecretHeader = "X-Integration-Secret"

// IntegrationSecret admits only requests carrying the configured shared
// secret. An empty secret rejects everything.
func IntegrationSecret(secret string) gin.HandlerFunc {
	log := logger.GetLogger().Named("integration_secret")
	expected := []byte(secret)

	return func(c *gin.Context) {
		got := []byte(c.GetHeader(IntegrationSecretHeader))
		if len(expected) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
			log.Warnw("Rejected integration request",
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP(),
				"header_present", len(got) > 0)
			_ = c.Error(errors.AuthenticationFailed("Invalid integration credentials"))
			c.Abort()
			return
		}
		c.Next()
	}
}
