package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/shoruichecker/internal/event"
)

const keepAliveInterval = 15 * time.Second

type EventsHandler struct {
	bus *event.Bus
}

func NewEventsHandler(bus *event.Bus) *EventsHandler {
	return &EventsHandler{bus: bus}
}

// Stream relays bus events as Server-Sent Events until the client goes away.
func (h *EventsHandler) Stream(c *gin.Context) {
	events, cancel := h.bus.Subscribe()
	defer cancel()
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, ev.Payload)
			return true
		case <-ticker.C:
			_, _ = io.WriteString(w, ": keep-alive\n\n")
			return true
		}
	})
}
