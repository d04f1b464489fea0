package middleware

import (
	"net/http"
	"strconv"

	"github.com/NomadCrew/timer-sync-backend/errors"
	"github.com/NomadCrew/timer-sync-backend/logger"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is written for errors raised by middleware (auth, rate
// limiting, binding). Handlers report their own failures in the body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// ErrorHandler renders the last error attached to the context.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		last := c.Errors.Last()

		if appErr, ok := errors.As(last.Err); ok {
			status := appErr.HTTPStatus
			if status == 0 {
				status = http.StatusInternalServerError
			}

			resp := ErrorResponse{
				Error: appErr.Message,
				Type:  string(appErr.Type),
				Code:  strconv.Itoa(status),
			}
			if appErr.Detail != "" && (gin.IsDebugging() || appErr.Type == errors.ValidationError) {
				resp.Details = appErr.Detail
			}

			logger.LogHTTPError(c, appErr, status, string(appErr.Type)+" error")
			c.JSON(status, resp)
			return
		}

		if last.Type == gin.ErrorTypeBind {
			logger.LogHTTPError(c, last.Err, http.StatusBadRequest, "Request binding error")
			resp := ErrorResponse{
				Error: "Failed to bind request",
				Type:  string(errors.ValidationError),
				Code:  "400",
			}
			if gin.IsDebugging() {
				resp.Details = last.Err.Error()
			}
			c.JSON(http.StatusBadRequest, resp)
			return
		}

		logger.LogHTTPError(c, last.Err, http.StatusInternalServerError, "Unhandled error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Internal server error",
			Type:  string(errors.ServerError),
			Code:  "500",
		})
	}
}
