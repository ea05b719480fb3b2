package notification

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DeviceHandler handles push-notification device registration
type DeviceHandler struct {
	deviceRepo DeviceTokenRepository
}

func NewDeviceHandler(deviceRepo DeviceTokenRepository) *DeviceHandler {
	return &DeviceHandler{deviceRepo: deviceRepo}
}

// RegisterDeviceRequest is the body for registering a device token
type RegisterDeviceRequest struct {
	Token      string `json:"token" binding:"required"`
	DeviceInfo string `json:"device_info"`
}

// RegisterDevice registers or refreshes a device token
// POST /api/devices
func (h *DeviceHandler) RegisterDevice(c *gin.Context) {
	userID := c.GetString("userID")

	var req RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.deviceRepo.SaveToken(userID, req.Token, req.DeviceInfo); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "device registered"})
}

// UnregisterDevice removes a device token
// DELETE /api/devices/:token
func (h *DeviceHandler) UnregisterDevice(c *gin.Context) {
	if err := h.deviceRepo.DeleteToken(c.Param("token")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "device unregistered"})
}
