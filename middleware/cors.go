package middleware

import (
	"strings"
	"time"

	"github.com/NomadCrew/timer-sync-backend/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// AllowedMethods is advertised on every response, preflight or not.
var AllowedMethods = []string{"OPTIONS", "GET", "POST", "PUT", "PATCH", "DELETE"}

var allowedHeaders = []string{
	"Origin",
	"Content-Length",
	"Content-Type",
	"Authorization",
	"Accept",
	"X-Requested-With",
	"X-Request-ID",
	"X-Device-ID",
}

// CORSMiddleware answers preflight requests through gin-contrib/cors and stamps
// the configured origin and method list onto every response.
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:  AllowedMethods,
		AllowHeaders:  allowedHeaders,
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}

	if config.ContainsWildcard(cfg.Server.AllowedOrigins) || len(cfg.Server.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
		corsConfig.AllowCredentials = true
	}

	preflight := cors.New(corsConfig)
	methods := strings.Join(AllowedMethods, ",")
	origin := cfg.AllowedOrigin()

	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", methods)
		preflight(c)
	}
}
