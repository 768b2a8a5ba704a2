package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"climate_hub/internal/logger"
	"climate_hub/internal/service"
)

// Handler wires the HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", h.health)

	auth := router.Group("/auth")
	{
		auth.POST("/sign-in", h.signIn)
	}

	api := router.Group("/api/v1", h.authMiddleware)
	{
		devices := api.Group("/devices")
		{
			devices.GET("/", h.listDevices)
			devices.GET("/:id", h.getDevice)
			devices.GET("/:id/display", h.getDisplayState)
			devices.POST("/:id/command", h.postCommand)
		}
		api.GET("/commands/:id", h.getCommand)
		api.GET("/events", h.getEvents)
	}

	// WebSocket feed of accepted merges, same port.
	router.GET("/ws", h.wsUpdates)

	return router
}

// health reports liveness plus the push channel state so operators see
// at a glance whether the realtime feed is up.
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"push_state": h.services.ConnectionState(),
		"devices":    len(h.services.ListDevices()),
	})
}
