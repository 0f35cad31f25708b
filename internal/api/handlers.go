package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"safety-telemetry-service/internal/alerts"
	"safety-telemetry-service/internal/logging"
	"safety-telemetry-service/internal/services"
)

type Handler struct {
	engine *services.Engine
	logger *logging.Logger
}

func NewHandler(engine *services.Engine, logger *logging.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// transitionStatus maps engine errors to HTTP statuses. Anything that is not
// a recognized engine rejection is treated as a failed backend commit.
func transitionStatus(err error) int {
	switch {
	case errors.Is(err, alerts.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, alerts.ErrInvalidTransition), errors.Is(err, alerts.ErrTransitionInFlight):
		return http.StatusConflict
	case errors.Is(err, alerts.ErrEmptySelection):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func (h *Handler) GetDevices(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.DeviceStates())
}

func (h *Handler) GetDevice(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.DeviceState(c.Param("id")))
}

func (h *Handler) MarkSafe(c *gin.Context) {
	var req struct {
		Operator string `json:"operator" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ev := h.engine.MarkSafe(c.Param("id"), req.Operator)
	c.JSON(http.StatusOK, ev)
}

func (h *Handler) SendNudge(c *gin.Context) {
	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	id := c.Param("id")
	if err := h.engine.SendNudge(c.Request.Context(), id, req.Message); err != nil {
		h.logger.Errorf("Failed to send nudge to device %s: %v", id, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send nudge"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

func (h *Handler) GetAlerts(c *gin.Context) {
	sort := alerts.Sort(c.DefaultQuery("sort", string(alerts.SortNewest)))
	filter := alerts.Filter(c.DefaultQuery("filter", string(alerts.FilterAll)))
	c.JSON(http.StatusOK, gin.H{
		"alerts":   h.engine.Alerts(sort, filter),
		"selected": h.engine.Selected(),
	})
}

func (h *Handler) GetAlertHistory(c *gin.Context) {
	history, err := h.engine.AlertHistory(c.Request.Context())
	if err != nil {
		h.logger.Errorf("Failed to fetch alert history: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch alert history"})
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *Handler) AcknowledgeAlert(c *gin.Context) {
	var req struct {
		Actor string `json:"actor" binding:"required"`
		Note  string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	id := c.Param("id")
	a, err := h.engine.Acknowledge(c.Request.Context(), id, req.Actor, req.Note)
	if err != nil {
		h.logger.Errorf("Failed to acknowledge alert %s: %v", id, err)
		c.JSON(transitionStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) ResolveAlert(c *gin.Context) {
	var req struct {
		Notes string `json:"notes"`
	}
	// notes are optional; an empty or absent body is fine
	_ = c.ShouldBindJSON(&req)

	id := c.Param("id")
	a, err := h.engine.Resolve(c.Request.Context(), id, req.Notes)
	if err != nil {
		h.logger.Errorf("Failed to resolve alert %s: %v", id, err)
		c.JSON(transitionStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) EscalateAlert(c *gin.Context) {
	var req struct {
		WorkerName  string `json:"workerName"`
		Location    string `json:"location"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	id := c.Param("id")
	inc, err := h.engine.Escalate(c.Request.Context(), id, req.WorkerName, req.Location, req.Description)
	if err != nil {
		h.logger.Errorf("Failed to escalate alert %s: %v", id, err)
		c.JSON(transitionStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, inc)
}

func (h *Handler) ToggleSelection(c *gin.Context) {
	h.engine.ToggleSelect(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"selected": h.engine.Selected()})
}

func (h *Handler) SelectAllPending(c *gin.Context) {
	h.engine.SelectAllPending()
	c.JSON(http.StatusOK, gin.H{"selected": h.engine.Selected()})
}

func (h *Handler) ClearSelection(c *gin.Context) {
	h.engine.ClearSelection()
	c.JSON(http.StatusOK, gin.H{"selected": []string{}})
}

func (h *Handler) AcknowledgeSelection(c *gin.Context) {
	var req struct {
		Actor string `json:"actor" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ids, err := h.engine.AcknowledgeSelected(c.Request.Context(), req.Actor)
	if err != nil {
		h.logger.Errorf("Failed to acknowledge selection: %v", err)
		c.JSON(transitionStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": ids})
}

func (h *Handler) Refresh(c *gin.Context) {
	if err := h.engine.LoadSnapshots(c.Request.Context()); err != nil {
		h.logger.Errorf("Failed to reload snapshots: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to reload snapshots"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reloaded"})
}
