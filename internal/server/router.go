package server

import "github.com/gin-gonic/gin"

// NewRouter wires the HTTP routes. The routing layer carries no decision
// logic; everything interesting happens in the services.
func NewRouter(h *Handlers, verifier TokenVerifier) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	api := router.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", h.RegisterUser)
		auth.POST("/login", h.Login)
	}

	devices := api.Group("/devices", AuthRequired(verifier))
	{
		devices.GET("", h.GetDevices)
		devices.GET("/errors", h.GetDevicesWithFailures)
		devices.GET("/by-device-id/:deviceId", h.GetDeviceByDeviceID)
		devices.POST("", h.RegisterDevice)
		devices.PUT("/:id", h.UpdateDevice)
	}

	sync := api.Group("/sync", AuthRequired(verifier))
	{
		sync.POST("/trigger/:deviceId", h.TriggerSync)
		sync.GET("/logs/:deviceId", h.GetSyncLogs)
		sync.GET("/errors", h.GetErrorLogs)
	}

	return router
}
