package handlers

import (
	"net/http"

	apperrors "github.com/NomadCrew/timer-sync-backend/errors"
	"github.com/NomadCrew/timer-sync-backend/middleware"
	"github.com/gin-gonic/gin"
)

// Handler-level failures keep HTTP 200 and report in the body; clients branch
// on the presence of "error".

func respondError(c *gin.Context, err error) {
	c.JSON(http.StatusOK, gin.H{"error": errorMessage(err)})
}

func respondMessage(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"error": msg})
}

func errorMessage(err error) string {
	appErr, ok := apperrors.As(err)
	if !ok {
		return "Internal server error"
	}
	if appErr.Type == apperrors.ValidationError && appErr.Detail != "" {
		return appErr.Message + ": " + appErr.Detail
	}
	return appErr.Message
}

// currentUser returns the authenticated caller. Routes are mounted behind
// AuthMiddleware, so a missing id is a wiring bug and answered with 401.
func currentUser(c *gin.Context) (string, bool) {
	userID := c.GetString(string(middleware.UserIDKey))
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", false
	}
	return userID, true
}
