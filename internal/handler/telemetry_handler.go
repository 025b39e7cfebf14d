// internal/handler/telemetry_handler.go
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fleetpulse/internal/service"
	"fleetpulse/internal/utils"
)

// TelemetryHandler handles telemetry ingest and query requests
type TelemetryHandler struct {
	telemetryService *service.TelemetryService
	logger           *utils.ServiceLogger
}

// NewTelemetryHandler creates a new telemetry handler
func NewTelemetryHandler(telemetryService *service.TelemetryService, logger *zap.Logger) *TelemetryHandler {
	return &TelemetryHandler{
		telemetryService: telemetryService,
		logger:           utils.NewServiceLogger(logger, "telemetry-handler"),
	}
}

// RegisterRoutes registers telemetry-related routes
func (h *TelemetryHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/telemetry", h.IngestTelemetry)

	devices := router.Group("/devices/:id")
	{
		devices.GET("/telemetry", h.GetDeviceTelemetry)
		devices.GET("/telemetry/latest", h.GetLatestReading)
	}
}

// IngestTelemetry accepts a telemetry reading from a device
// @Summary Ingest telemetry
// @Description Accept a single telemetry reading and record it for the device
// @Tags Telemetry
// @Accept json
// @Produce json
// @Param request body service.IngestRequest true "Telemetry reading"
// @Success 201 {object} utils.APIResponse{data=model.TelemetryReading} "Telemetry recorded successfully"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Failure 500 {object} utils.APIResponse "Internal server error"
// @Router /telemetry [post]
func (h *TelemetryHandler) IngestTelemetry(c *gin.Context) {
	var req service.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	reading, err := h.telemetryService.Ingest(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrDeviceNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "Device not found", err)
			return
		}
		h.logger.Error("Failed to ingest telemetry", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to ingest telemetry", err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Telemetry recorded successfully", reading)
}

// GetDeviceTelemetry lists telemetry readings for a device
// @Summary Get device telemetry
// @Description Get telemetry readings for a device within an optional time window
// @Tags Telemetry
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Param from query string false "Window start (RFC3339)"
// @Param to query string false "Window end (RFC3339)"
// @Param limit query int false "Maximum readings to return" default(1000)
// @Success 200 {object} utils.APIResponse{data=[]model.TelemetryReading} "Telemetry retrieved successfully"
// @Failure 400 {object} utils.APIResponse "Invalid time parameter"
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Failure 500 {object} utils.APIResponse "Internal server error"
// @Router /devices/{id}/telemetry [get]
func (h *TelemetryHandler) GetDeviceTelemetry(c *gin.Context) {
	deviceID := c.Param("id")

	var from, to *time.Time
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid from parameter", err)
			return
		}
		from = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid to parameter", err)
			return
		}
		to = &t
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if l, err := strconv.Atoi(raw); err == nil && l > 0 {
			limit = l
		}
	}

	readings, err := h.telemetryService.GetDeviceTelemetry(c.Request.Context(), deviceID, from, to, limit)
	if err != nil {
		if errors.Is(err, service.ErrDeviceNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "Device not found", err)
			return
		}
		h.logger.Error("Failed to get telemetry", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get telemetry", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Telemetry retrieved successfully", readings)
}

// GetLatestReading gets the most recent reading for a device
// @Summary Get latest telemetry reading
// @Description Get the most recent telemetry reading for a device
// @Tags Telemetry
// @Accept json
// @Produce json
// @Param id path string true "Device ID"
// @Success 200 {object} utils.APIResponse{data=model.TelemetryReading} "Latest reading retrieved successfully"
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Failure 500 {object} utils.APIResponse "Internal server error"
// @Router /devices/{id}/telemetry/latest [get]
func (h *TelemetryHandler) GetLatestReading(c *gin.Context) {
	deviceID := c.Param("id")

	reading, err := h.telemetryService.GetLatestReading(c.Request.Context(), deviceID)
	if err != nil {
		if errors.Is(err, service.ErrDeviceNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "Device not found", err)
			return
		}
		h.logger.Error("Failed to get latest reading", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get latest reading", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Latest reading retrieved successfully", reading)
}
