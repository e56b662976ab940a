package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"widget-chat-service/internal/middleware"
	"widget-chat-service/internal/models"
	"widget-chat-service/internal/repositories"
	"widget-chat-service/internal/telemetry"
)

// WidgetHandler serves widget branding to the embed script and the dashboard.
type WidgetHandler struct {
	widgets repositories.WidgetRepository
	audit   *telemetry.AuditEmitter
}

// NewWidgetHandler builds a WidgetHandler.
func NewWidgetHandler(widgets repositories.WidgetRepository, audit *telemetry.AuditEmitter) *WidgetHandler {
	return &WidgetHandler{widgets: widgets, audit: audit}
}

// GetPublicWidget returns the public configuration of a widget.
func (h *WidgetHandler) GetPublicWidget(c *gin.Context) {
	widget, err := h.widgets.GetWidget(c.Request.Context(), c.Param("widget_id"))
	if err != nil {
		writeError(c, err, "failed to load widget")
		return
	}
	c.JSON(http.StatusOK, widget.Public())
}

// GetDashboardWidget returns the account's widget, creating it with defaults.
func (h *WidgetHandler) GetDashboardWidget(c *gin.Context) {
	widget, err := h.widgets.GetOrCreateForAccount(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		writeError(c, err, "failed to load widget")
		return
	}
	c.JSON(http.StatusOK, widget)
}

// UpdateDashboardWidget replaces the widget branding.
func (h *WidgetHandler) UpdateDashboardWidget(c *gin.Context) {
	var req models.WidgetSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	accountID := middleware.AccountID(c)
	if _, err := h.widgets.GetOrCreateForAccount(c.Request.Context(), accountID); err != nil {
		writeError(c, err, "failed to load widget")
		return
	}
	widget, err := h.widgets.UpdateSettings(c.Request.Context(), accountID, req)
	if err != nil {
		writeError(c, err, "failed to update widget")
		return
	}

	h.audit.Emit(c.Request.Context(), telemetry.AuditRecord{
		Level:     "INFO",
		Text:      "widget settings updated",
		RequestID: requestIDFromContext(c),
		AccountID: accountIDFromContext(c),
		WidgetID:  widget.ID,
	})
	c.JSON(http.StatusOK, widget)
}
