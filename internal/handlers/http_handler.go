package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/grigta/sentinel/internal/models"
	"github.com/grigta/sentinel/internal/repository"
	"github.com/grigta/sentinel/internal/service"
	"github.com/grigta/sentinel/pkg/cache"
	"github.com/grigta/sentinel/pkg/logger"
)

const (
	summaryCacheKey = "monitor:alerts:summary"
	summaryCacheTTL = 30 * time.Second
)

// MonitorHandler exposes the operational HTTP API of the monitoring engine.
type MonitorHandler struct {
	scheduler  *service.RuleScheduler
	dispatcher *service.AlertDispatcher
	history    *service.ExecutionHistory
	alerts     *repository.AlertRepository
	cache      *cache.RedisCache
	log        *logger.Logger
}

func NewMonitorHandler(
	scheduler *service.RuleScheduler,
	dispatcher *service.AlertDispatcher,
	history *service.ExecutionHistory,
	alerts *repository.AlertRepository,
	redisCache *cache.RedisCache,
	log *logger.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		scheduler:  scheduler,
		dispatcher: dispatcher,
		history:    history,
		alerts:     alerts,
		cache:      redisCache,
		log:        log,
	}
}

func (h *MonitorHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.GET("/alerts", h.listAlerts)
		api.GET("/alerts/summary", h.alertSummary)
		api.POST("/alerts/:id/acknowledge", h.acknowledgeAlert)
		api.POST("/alerts/:id/resolve", h.resolveAlert)

		api.GET("/rules", h.listRules)
		api.GET("/rules/:id", h.getRule)
		api.POST("/rules/:id/enable", h.enableRule)
		api.POST("/rules/:id/disable", h.disableRule)
		api.POST("/rules/:id/run", h.runRule)

		api.GET("/executions", h.listExecutions)
		api.GET("/executions/stats", h.executionStats)
	}
}

func (h *MonitorHandler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "monitor-service",
		"time":    time.Now().UTC(),
	})
}

func (h *MonitorHandler) listAlerts(c *gin.Context) {
	filter := models.AlertFilter{
		Type:     c.Query("type"),
		Severity: models.Severity(c.Query("severity")),
	}
	if c.Query("unacknowledged") == "true" {
		filter.UnacknowledgedOnly = true
	}
	if hours, err := strconv.Atoi(c.DefaultQuery("since_hours", "0")); err == nil && hours > 0 {
		filter.Since = time.Now().Add(-time.Duration(hours) * time.Hour)
	}

	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	offset, _ := strconv.ParseInt(c.DefaultQuery("offset", "0"), 10, 64)

	page, err := h.alerts.List(c.Request.Context(), filter, models.Pagination{Limit: limit, Offset: offset})
	if err != nil {
		h.log.WithError(err).Error("Failed to list alerts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list alerts"})
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *MonitorHandler) alertSummary(c *gin.Context) {
	ctx := c.Request.Context()

	if h.cache != nil {
		var cached models.AlertSummary
		if err := h.cache.GetJSON(ctx, summaryCacheKey, &cached); err == nil {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	summary, err := h.alerts.Summary(ctx)
	if err != nil {
		h.log.WithError(err).Error("Failed to build alert summary")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build alert summary"})
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, summaryCacheKey, summary, summaryCacheTTL); err != nil {
			h.log.WithError(err).Warn("Failed to cache alert summary")
		}
	}

	c.JSON(http.StatusOK, summary)
}

type actorRequest struct {
	Actor string `json:"actor"`
}

func (h *MonitorHandler) acknowledgeAlert(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return
	}

	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Actor == "" {
		req.Actor = "operator"
	}

	if err := h.dispatcher.Acknowledge(c.Request.Context(), id, req.Actor); err != nil {
		h.log.WithError(err).WithField("alert_id", id.Hex()).Error("Failed to acknowledge alert")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to acknowledge alert"})
		return
	}

	h.invalidateSummary(c)
	c.JSON(http.StatusOK, gin.H{"status": "acknowledged", "alert_id": id.Hex()})
}

func (h *MonitorHandler) resolveAlert(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return
	}

	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Actor == "" {
		req.Actor = "operator"
	}

	if err := h.dispatcher.Resolve(c.Request.Context(), id, req.Actor); err != nil {
		h.log.WithError(err).WithField("alert_id", id.Hex()).Error("Failed to resolve alert")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve alert"})
		return
	}

	h.invalidateSummary(c)
	c.JSON(http.StatusOK, gin.H{"status": "resolved", "alert_id": id.Hex()})
}

func (h *MonitorHandler) invalidateSummary(c *gin.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Delete(c.Request.Context(), summaryCacheKey); err != nil {
		h.log.WithError(err).Warn("Failed to invalidate summary cache")
	}
}

func (h *MonitorHandler) listRules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rules": h.scheduler.Rules()})
}

func (h *MonitorHandler) getRule(c *gin.Context) {
	rule, err := h.scheduler.GetRule(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *MonitorHandler) enableRule(c *gin.Context) {
	h.setRuleEnabled(c, true)
}

func (h *MonitorHandler) disableRule(c *gin.Context) {
	h.setRuleEnabled(c, false)
}

func (h *MonitorHandler) setRuleEnabled(c *gin.Context, enabled bool) {
	ruleID := c.Param("id")
	if err := h.scheduler.SetEnabled(ruleID, enabled); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rule_id": ruleID, "enabled": enabled})
}

func (h *MonitorHandler) runRule(c *gin.Context) {
	exec, err := h.scheduler.RunRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, exec)
}

func (h *MonitorHandler) listExecutions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	executions := h.history.List(c.Query("rule_id"), limit)
	c.JSON(http.StatusOK, gin.H{
		"executions": executions,
		"count":      len(executions),
	})
}

func (h *MonitorHandler) executionStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stats": h.history.Stats()})
}
