package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"climate_hub/internal/models"
)

type commandInput struct {
	Field       string  `json:"field" binding:"required"`
	Temperature float64 `json:"temperature"`
	Mode        string  `json:"mode"`
	Preset      string  `json:"preset"`
	Power       bool    `json:"power"`
}

// postCommand dispatches a user intent. The optimistic write makes the
// change visible to reads immediately, so the handler answers 202 with
// the correlation ID rather than blocking on confirmation.
func (h *Handler) postCommand(c *gin.Context) {
	var input commandInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	cmd := models.Command{
		DeviceID:    c.Param("id"),
		Field:       models.CommandField(input.Field),
		Temperature: input.Temperature,
		Mode:        models.Mode(input.Mode),
		Preset:      models.Preset(input.Preset),
		Power:       input.Power,
	}

	receipt, err := h.services.Dispatch(c.Request.Context(), cmd)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrDeviceNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, models.ErrInvalidCommand):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		case errors.Is(err, models.ErrUpstreamUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"correlation_id": receipt.Command.CorrelationID,
		"status":         receipt.Status(),
	})
}

// getCommand reports a dispatched command's lifecycle state.
func (h *Handler) getCommand(c *gin.Context) {
	status, ok := h.services.Status(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown correlation id"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"correlation_id": c.Param("id"),
		"status":         status,
	})
}
