// internal/handler/event_handler.go
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fleetpulse/internal/model"
	"fleetpulse/internal/repository"
	"fleetpulse/internal/service"
	"fleetpulse/internal/utils"
)

// EventHandler handles incident event HTTP requests
type EventHandler struct {
	eventService *service.EventService
	logger       *utils.ServiceLogger
}

// NewEventHandler creates a new event handler
func NewEventHandler(eventService *service.EventService, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		eventService: eventService,
		logger:       utils.NewServiceLogger(logger, "event-handler"),
	}
}

// RegisterRoutes registers event-related routes
func (h *EventHandler) RegisterRoutes(router *gin.RouterGroup) {
	events := router.Group("/events")
	{
		events.GET("", h.ListEvents)
		events.GET("/:id", h.GetEvent)
		events.POST("/:id/ack", h.AcknowledgeEvent)
	}
}

// ListEvents lists incident events with filtering and pagination
// @Summary List events
// @Description Get list of incident events with filtering and pagination support
// @Tags Events
// @Accept json
// @Produce json
// @Param skip query int false "Number of events to skip" default(0)
// @Param limit query int false "Maximum events to return" default(100)
// @Param device_id query string false "Filter by device ID"
// @Param severity query string false "Filter by severity" Enums(info, warning, critical)
// @Param type query string false "Filter by event type"
// @Param acknowledged query bool false "Filter by acknowledgement state"
// @Success 200 {object} utils.APIResponse{data=[]model.Event} "Events retrieved successfully"
// @Failure 500 {object} utils.APIResponse "Internal server error"
// @Router /events [get]
func (h *EventHandler) ListEvents(c *gin.Context) {
	filter := &repository.EventFilter{
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
	if deviceID := c.Query("device_id"); deviceID != "" {
		filter.DeviceID = &deviceID
	}
	if severity := c.Query("severity"); severity != "" {
		sev := model.EventSeverity(severity)
		filter.Severity = &sev
	}
	if eventType := c.Query("type"); eventType != "" {
		et := model.EventType(eventType)
		filter.Type = &et
	}
	if acknowledged := c.Query("acknowledged"); acknowledged != "" {
		if ack, err := strconv.ParseBool(acknowledged); err == nil {
			filter.Acknowledged = &ack
		}
	}

	events, err := h.eventService.ListEvents(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list events", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list events", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Events retrieved successfully", events)
}

// GetEvent gets an event by ID
// @Summary Get event by ID
// @Description Get detailed information about a specific incident event
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} utils.APIResponse{data=model.Event} "Event retrieved successfully"
// @Failure 400 {object} utils.APIResponse "Invalid event ID"
// @Failure 404 {object} utils.APIResponse "Event not found"
// @Failure 500 {object} utils.APIResponse "Internal server error"
// @Router /events/{id} [get]
func (h *EventHandler) GetEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid event ID", err)
		return
	}

	event, err := h.eventService.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "Event not found", err)
			return
		}
		h.logger.Error("Failed to get event", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get event", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Event retrieved successfully", event)
}

// AcknowledgeEvent acknowledges an incident event
// @Summary Acknowledge event
// @Description Mark an incident event as acknowledged by an operator
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param request body service.AcknowledgeRequest true "Acknowledgement request"
// @Success 200 {object} utils.APIResponse{data=model.Event} "Event acknowledged successfully"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 404 {object} utils.APIResponse "Event not found"
// @Failure 500 {object} utils.APIResponse "Internal server error"
// @Router /events/{id}/ack [post]
func (h *EventHandler) AcknowledgeEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid event ID", err)
		return
	}

	var req service.AcknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	event, err := h.eventService.AcknowledgeEvent(c.Request.Context(), eventID, req.AcknowledgedBy)
	if err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "Event not found", err)
			return
		}
		h.logger.Error("Failed to acknowledge event", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to acknowledge event", err)
		return
	}

	h.logger.Info("Event acknowledged", zap.String("event_id", event.ID.String()))
	utils.SuccessResponse(c, http.StatusOK, "Event acknowledged successfully", event)
}
