package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/warungtech/restopos/internal/metrics"
	"github.com/warungtech/restopos/internal/middleware"
	"github.com/warungtech/restopos/internal/models"
	"github.com/warungtech/restopos/internal/services/liveupdate"
)

type StreamHandler struct {
	broker       *liveupdate.Broker
	pingInterval time.Duration
	logger       *zap.Logger
}

func NewStreamHandler(broker *liveupdate.Broker, pingInterval time.Duration, logger *zap.Logger) *StreamHandler {
	if pingInterval <= 0 {
		pingInterval = 25 * time.Second
	}
	return &StreamHandler{
		broker:       broker,
		pingInterval: pingInterval,
		logger:       logger,
	}
}

// Stream godoc
// @Summary Live update stream
// @Description Long-lived server-sent-events stream of the tenant's order changes, with a periodic liveness ping
// @Tags live
// @Produce text/event-stream
// @Param X-Restaurant-ID header string true "Tenant identifier"
// @Success 200 {string} string "event stream"
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /live [get]
func (h *StreamHandler) Stream(c *gin.Context) {
	tenant, ok := middleware.TenantFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "tenant context missing"})
		return
	}
	tenantID := strconv.FormatInt(tenant.RestaurantID, 10)

	sub := h.broker.Subscribe(tenantID, tenant.UseRedis)
	defer sub.Unsubscribe()

	metrics.StreamOpened()
	defer metrics.StreamClosed()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	// Initial liveness payload so the client knows the stream is open.
	h.writePayload(c, pingPayload(tenantID))

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	h.logger.Debug("Live update stream opened", zap.String("tenant_id", tenantID))

	for {
		select {
		case <-c.Request.Context().Done():
			h.logger.Debug("Live update stream closed", zap.String("tenant_id", tenantID))
			return
		case payload, open := <-sub.C:
			if !open {
				return
			}
			h.writePayload(c, payload)
		case <-ticker.C:
			// Connection testing only, not delivery.
			h.writePayload(c, pingPayload(tenantID))
		}
	}
}

func (h *StreamHandler) writePayload(c *gin.Context, payload models.LiveUpdatePayload) {
	payload.Origin = ""

	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to encode stream payload", zap.Error(err))
		return
	}

	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	c.Writer.Flush()
}

func pingPayload(tenantID string) models.LiveUpdatePayload {
	return models.LiveUpdatePayload{
		TenantID:  tenantID,
		Event:     models.EventPing,
		Timestamp: time.Now(),
	}
}

// PublishEvent godoc
// @Summary Publish an order change event
// @Description Fan an order change out to every live listener of the tenant, locally and across processes
// @Tags live
// @Accept json
// @Produce json
// @Param event body models.PublishEventRequest true "Event to publish"
// @Success 202 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Router /orders/events [post]
func (h *StreamHandler) PublishEvent(c *gin.Context) {
	tenant, ok := middleware.TenantFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "tenant context missing"})
		return
	}

	var req models.PublishEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if !req.Event.Valid() || req.Event == models.EventPing {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown event kind"})
		return
	}

	tenantID := strconv.FormatInt(tenant.RestaurantID, 10)
	h.broker.Publish(c.Request.Context(), tenantID, req.Event, req.Data, middleware.UseRedisFromContext(c))

	c.JSON(http.StatusAccepted, gin.H{"status": "published"})
}
