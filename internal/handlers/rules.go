package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"widget-chat-service/internal/autoreply"
	"widget-chat-service/internal/middleware"
	"widget-chat-service/internal/models"
	"widget-chat-service/internal/repositories"
)

// RuleHandler manages the owner's auto-reply rules.
type RuleHandler struct {
	widgets repositories.WidgetRepository
	rules   *autoreply.RuleService
}

// NewRuleHandler builds a RuleHandler.
func NewRuleHandler(widgets repositories.WidgetRepository, rules *autoreply.RuleService) *RuleHandler {
	return &RuleHandler{widgets: widgets, rules: rules}
}

// ListRules returns the widget's rules ordered by id.
func (h *RuleHandler) ListRules(c *gin.Context) {
	widget, err := h.widgets.GetOrCreateForAccount(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		writeError(c, err, "failed to load widget")
		return
	}
	rules, err := h.rules.ListRules(c.Request.Context(), widget.ID)
	if err != nil {
		writeError(c, err, "failed to load rules")
		return
	}
	if rules == nil {
		rules = []models.AutoReplyRule{}
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// CreateRule adds a keyword rule.
func (h *RuleHandler) CreateRule(c *gin.Context) {
	var req struct {
		Keyword  string `json:"keyword" binding:"required"`
		Response string `json:"response" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	widget, err := h.widgets.GetOrCreateForAccount(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		writeError(c, err, "failed to load widget")
		return
	}
	rule, err := h.rules.CreateRule(c.Request.Context(), widget, req.Keyword, req.Response)
	if err != nil {
		writeError(c, err, "failed to create rule")
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// DeleteRule removes one rule owned by the account.
func (h *RuleHandler) DeleteRule(c *gin.Context) {
	ruleID, err := strconv.ParseInt(c.Param("rule_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule id"})
		return
	}
	if err := h.rules.DeleteRule(c.Request.Context(), middleware.AccountID(c), ruleID); err != nil {
		writeError(c, err, "failed to delete rule")
		return
	}
	c.Status(http.StatusNoContent)
}

// PreviewRule shows which rule, if any, a sample message would trigger. Fuzzy
// suggestions are advisory; live replies only use exact containment.
func (h *RuleHandler) PreviewRule(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	widget, err := h.widgets.GetOrCreateForAccount(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		writeError(c, err, "failed to load widget")
		return
	}
	result, ok, err := h.rules.Preview(c.Request.Context(), widget.ID, req.Text)
	if err != nil {
		writeError(c, err, "failed to preview rules")
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"matched": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"matched": true,
		"exact":   result.Exact,
		"score":   result.Score,
		"rule":    result.Rule,
	})
}
