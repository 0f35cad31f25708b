package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"safety-telemetry-service/internal/config"
	"safety-telemetry-service/internal/logging"
	"safety-telemetry-service/internal/services"
)

func NewRouter(engine *services.Engine, hub *Hub, logger *logging.Logger, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	h := NewHandler(engine, logger)
	api := r.Group(cfg.API.BasePath)
	{
		// Devices
		api.GET("/devices", h.GetDevices)
		api.GET("/devices/:id", h.GetDevice)
		api.POST("/devices/:id/safe", h.MarkSafe)
		api.POST("/devices/:id/nudge", h.SendNudge)

		// Alerts
		api.GET("/alerts", h.GetAlerts)
		api.GET("/alerts/history", h.GetAlertHistory)
		api.POST("/alerts/refresh", h.Refresh)
		api.POST("/alerts/:id/acknowledge", h.AcknowledgeAlert)
		api.POST("/alerts/:id/resolve", h.ResolveAlert)
		api.POST("/alerts/:id/escalate", h.EscalateAlert)

		// Selection for batch acknowledge
		api.POST("/alerts/selection/pending", h.SelectAllPending)
		api.POST("/alerts/selection/acknowledge", h.AcknowledgeSelection)
		api.POST("/alerts/selection/:id", h.ToggleSelection)
		api.DELETE("/alerts/selection", h.ClearSelection)
	}

	r.GET("/ws", hub.Serve)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })

	return r
}
