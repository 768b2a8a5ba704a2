package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"climate_hub/internal/models"
)

// listDevices returns every known device record.
func (h *Handler) listDevices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"devices": h.services.ListDevices()})
}

// getDevice returns one raw canonical record.
func (h *Handler) getDevice(c *gin.Context) {
	dev, err := h.services.GetDevice(c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrDeviceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dev)
}

// getDisplayState returns the derived view: schedule-resolved target,
// heating action and availability, computed against the current clock.
func (h *Handler) getDisplayState(c *gin.Context) {
	st, err := h.services.DisplayState(c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrDeviceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}
