package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// getEvents lists audit log entries. Filters: ?from=RFC3339&to=RFC3339&type=COMMAND.
func (h *Handler) getEvents(c *gin.Context) {
	var from, to time.Time

	if s := c.Query("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'from' timestamp"})
			return
		}
		from = t
	}
	if s := c.Query("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'to' timestamp"})
			return
		}
		to = t
	}

	events, err := h.services.List(c.Request.Context(), from, to, c.Query("type"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
