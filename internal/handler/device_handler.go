// internal/handler/device_handler.go
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fleetpulse/internal/model"
	"fleetpulse/internal/repository"
	"fleetpulse/internal/service"
	"fleetpulse/internal/utils"
)

// DeviceHandler handles device-related HTTP requests
type DeviceHandler struct {
	deviceService *service.DeviceService
	logger        *utils.ServiceLogger
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(deviceService *service.DeviceService, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{
		deviceService: deviceService,
		logger:        utils.NewServiceLogger(logger, "device-handler"),
	}
}

// RegisterRoutes registers device-related routes
func (h *DeviceHandler) RegisterRoutes(router *gin.RouterGroup) {
	devices := router.Group("/devices")
	{
		devices.POST("", h.RegisterDevice)
		devices.GET("", h.ListDevices)

		deviceRoutes := devices.Group("/:id")
		{
			deviceRoutes.GET("", h.GetDevice)
			deviceRoutes.PUT("", h.UpdateDevice)
			deviceRoutes.DELETE("", h.DeleteDevice)
		}
	}
}

// RegisterDevice registers a new device
// @Summary Register a new device
// @Description Register a new device in the fleet
// @Tags Devices
// @Accept json
// @Produce json
// @Param request body service.RegisterDeviceRequest true "Device registration request"
// @Success 201 {object} utils.APIResponse{data=model.Device} "Device registered successfully"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 409 {object} utils.APIResponse "Device already exists"
// @Failure 500 {object} utils.APIResponse "Internal server error"
// @Router /devices [post]
func (h *DeviceHandler) RegisterDevice(c *gin.Context) {
	var req service.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	device, err := h.deviceService.RegisterDevice(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrDeviceExists) {
			utils.ErrorResponse(c, http.StatusConflict, "Device already exists", err)
			return
		}
		h.logger.Error("Failed to register device", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to register device", err)
		return
	}

	h.logger.Info("Device registered successfully", zap.String("device_id", device.ID))
	utils.SuccessResponse(c, http.StatusCreated, "Device registered successfully", device)
}

// ListDevices lists devices with filtering and pagination
// @Summary List devices
// @Description Get list of devices with filtering and pagination support
// @Tags Devices
// @Accept json
// @Produce json
// @Param skip query int false "Number of devices to skip" default(0)
// @Param limit query int false "Maximum devices to return" default(100)
// @Param city query string false "Filter by city"
// @Param status query string false "Filter by status" Enums(online, offline, degraded)
// @Success 200 {object} utils.APIResponse{data=[]model.Device} "Devices retrieved successfully"
// @Failure 500 {object} utils.APIResponse "Internal server error"
// @Router /devices [get]
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	filter := &repository.DeviceFilter{
		Skip:  0,
		Limit: 100,
	}

	if skip := c.Query("skip"); skip != "" {
		if s, err := strconv.Atoi(skip); err == nil && s >= 0 {
			filter.Skip = s
		}
	}
	if limit := c.Query("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 && l <= 1000 {
			filter.Limit = l
		}
	}
	if city := c.Query("city"); city != "" {
		filter.City = &city
	}
	if status := c.Query("status"); status != "" {
		st := model.DeviceStatus(status)
		filter.Status = &st
	}

	devices, err := h.deviceService.ListDevices(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list devices", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list devices", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Devices retrieved successfully", devices)
}

// GetDevice gets a device by ID
// @Summary Get device by ID
// @Description Get detailed information about a specific device
// @Tags Devices
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=model.Device} "Device retrieved successfully"
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Failure 500 {object} utils.APIResponse "Internal server error"
// @Router /devices/{id} [get]
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	deviceID := c.Param("id")

	device, err := h.deviceService.GetDevice(c.Request.Context(), deviceID)
	if err != nil {
		if errors.Is(err, service.ErrDeviceNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "Device not found", err)
			return
		}
		h.logger.Error("Failed to get device", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get device", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Device retrieved successfully", device)
}

// UpdateDevice updates device information
// @Summary Update device
// @Description Update mutable fields of an existing device
// @Tags Devices
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param request body service.UpdateDeviceRequest true "Device update request"
// @Success 200 {object} utils.APIResponse{data=model.Device} "Device updated successfully"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Failure 500 {object} utils.APIResponse "Internal server error"
// @Router /devices/{id} [put]
func (h *DeviceHandler) UpdateDevice(c *gin.Context) {
	deviceID := c.Param("id")

	var req service.UpdateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	device, err := h.deviceService.UpdateDevice(c.Request.Context(), deviceID, &req)
	if err != nil {
		if errors.Is(err, service.ErrDeviceNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "Device not found", err)
			return
		}
		h.logger.Error("Failed to update device", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to update device", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Device updated successfully", device)
}

// DeleteDevice removes a device from the fleet
// @Summary Delete device
// @Description Delete a device and its telemetry history
// @Tags Devices
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} utils.APIResponse "Device deleted successfully"
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Failure 500 {object} utils.APIResponse "Internal server error"
// @Router /devices/{id} [delete]
func (h *DeviceHandler) DeleteDevice(c *gin.Context) {
	deviceID := c.Param("id")

	if err := h.deviceService.DeleteDevice(c.Request.Context(), deviceID); err != nil {
		if errors.Is(err, service.ErrDeviceNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "Device not found", err)
			return
		}
		h.logger.Error("Failed to delete device", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to delete device", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Device deleted successfully", nil)
}
