package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lgu-assessor/faas-api/internal/service"
	"github.com/lgu-assessor/faas-api/pkg/response"
)

// EventHandler exposes the lifecycle event stream over SSE.
type EventHandler struct {
	events    *service.EventService
	heartbeat time.Duration
	logger    *zap.Logger
}

// NewEventHandler constructs EventHandler.
func NewEventHandler(events *service.EventService, heartbeat time.Duration, logger *zap.Logger) *EventHandler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHandler{events: events, heartbeat: heartbeat, logger: logger}
}

// Stream godoc
// @Summary Subscribe to record lifecycle events
// @Description Server-sent event stream. Emits a "record_update" event for every lifecycle transition and a periodic "heartbeat".
// @Tags Events
// @Produce text/event-stream
// @Success 200
// @Router /events [get]
func (h *EventHandler) Stream(c *gin.Context) {
	actor, err := currentActor(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	sub := h.events.Subscribe(actor.ID)
	defer h.events.Unsubscribe(sub)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	h.logger.Debug("event stream opened", zap.String("user_id", actor.ID), zap.String("subscriber_id", sub.ID))

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case event, ok := <-sub.Events:
			if !ok {
				return false
			}
			c.SSEvent("record_update", event)
			return true
		case <-ticker.C:
			c.SSEvent("heartbeat", time.Now().UTC().Format(time.RFC3339))
			return true
		}
	})

	h.logger.Debug("event stream closed", zap.String("user_id", actor.ID), zap.String("subscriber_id", sub.ID))
}
