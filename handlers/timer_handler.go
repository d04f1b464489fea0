package handlers

import (
	"net/http"

	"github.com/NomadCrew/timer-sync-backend/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TimerHandler serves timer reads and writes plus the shared-timer list.
type TimerHandler struct {
	timers TimerServiceInterface
	sharer TimerSharer
	logger *zap.Logger
}

func NewTimerHandler(timers TimerServiceInterface, sharer TimerSharer, logger *zap.Logger) *TimerHandler {
	return &TimerHandler{
		timers: timers,
		sharer: sharer,
		logger: logger.Named("TimerHandler"),
	}
}

// GetTimer handles GET /v1/timers/:timerId.
func (h *TimerHandler) GetTimer(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	timer, err := h.timers.GetTimer(c.Request.Context(), c.Param("timerId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, timer)
}

// SaveTimer handles POST /v1/timers/:timerId. The caller always becomes the owner.
func (h *TimerHandler) SaveTimer(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req types.SaveTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Invalid save timer request", zap.String("userID", userID), zap.Error(err))
		respondMessage(c, "Invalid request body")
		return
	}

	saved, err := h.timers.SaveTimer(c.Request.Context(), c.Param("timerId"), userID, req.Timer)
	if err != nil {
		h.logger.Warn("Failed to save timer",
			zap.String("userID", userID),
			zap.String("timerID", c.Param("timerId")),
			zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": "saved", "timer": saved})
}

// ListSharedTimers handles GET /v1/timers/shared.
func (h *TimerHandler) ListSharedTimers(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.timers.ListSharedTimers(c.Request.Context(), userID))
}

// ShareTimer handles POST /v1/timers/shared.
func (h *TimerHandler) ShareTimer(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req types.ShareTimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, "Invalid request body")
		return
	}

	result, err := h.sharer.ShareTimerWithUsers(c.Request.Context(), req.TimerID, userID, req.UserIDs, req.Timer)
	if err != nil {
		h.logger.Warn("Failed to share timer",
			zap.String("userID", userID),
			zap.String("timerID", req.TimerID),
			zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":  "shared",
		"success": result.Success,
		"failed":  result.Failed,
	})
}

// RejectSharedTimer handles DELETE /v1/timers/shared.
func (h *TimerHandler) RejectSharedTimer(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req types.RejectShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, "Invalid request body")
		return
	}

	if err := h.timers.RejectShare(c.Request.Context(), req.TimerID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "rejected"})
}
