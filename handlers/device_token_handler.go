package handlers

import (
	"net/http"

	"github.com/NomadCrew/timer-sync-backend/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DeviceTokenHandler handles push registration for the caller's devices.
type DeviceTokenHandler struct {
	devices DeviceServiceInterface
	logger  *zap.Logger
}

func NewDeviceTokenHandler(devices DeviceServiceInterface, logger *zap.Logger) *DeviceTokenHandler {
	return &DeviceTokenHandler{
		devices: devices,
		logger:  logger.Named("DeviceTokenHandler"),
	}
}

// RegisterDeviceToken handles POST /v1/device-tokens.
func (h *DeviceTokenHandler) RegisterDeviceToken(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req types.RegisterDeviceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Invalid device token request", zap.String("userID", userID), zap.Error(err))
		respondMessage(c, "deviceId and fcmToken are required")
		return
	}

	if err := h.devices.RegisterDevice(c.Request.Context(), userID, req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "registered"})
}

// RemoveDeviceToken handles DELETE /v1/device-tokens/:deviceId.
func (h *DeviceTokenHandler) RemoveDeviceToken(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.devices.UnregisterDevice(c.Request.Context(), userID, c.Param("deviceId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "removed"})
}

// UpdatePreferences handles PUT /v1/device-tokens/:deviceId/preferences.
func (h *DeviceTokenHandler) UpdatePreferences(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req types.UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, "Invalid request body")
		return
	}

	if err := h.devices.UpdatePreferences(c.Request.Context(), userID, c.Param("deviceId"), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "updated"})
}
