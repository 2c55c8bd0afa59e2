// Package sse streams decided-action cues to the execution layer.
package sse

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/mvabs/cache"
	"github.com/kasuganosora/mvabs/game/world"
	"go.uber.org/zap"
)

// Handler serves the telegraph stream of a map.
type Handler struct {
	pubsub    cache.PubSub
	origins   map[string]bool
	keepalive time.Duration
	logger    *zap.Logger
}

// NewHandler creates a Handler. An empty origins list allows every origin.
func NewHandler(pubsub cache.PubSub, origins []string, logger *zap.Logger) *Handler {
	h := &Handler{
		pubsub:    pubsub,
		origins:   make(map[string]bool, len(origins)),
		keepalive: 30 * time.Second,
		logger:    logger,
	}
	for _, o := range origins {
		h.origins[o] = true
	}
	return h
}

func (h *Handler) originAllowed(origin string) bool {
	return len(h.origins) == 0 || origin == "" || h.origins[origin]
}

// Telegraph handles GET /api/maps/:map/telegraph. Every cue committed on the
// map is sent as a "cue" event carrying the cue JSON.
func (h *Handler) Telegraph(c *gin.Context) {
	mapID, err := strconv.Atoi(c.Param("map"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid map id"})
		return
	}
	if !h.originAllowed(c.GetHeader("Origin")) {
		c.JSON(http.StatusForbidden, gin.H{"error": "origin not allowed"})
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	msgCh, unsub, err := h.pubsub.Subscribe(ctx, world.TelegraphChannel(mapID))
	if err != nil {
		h.logger.Error("telegraph subscribe failed", zap.Int("map_id", mapID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "subscribe failed"})
		return
	}
	defer unsub()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent("connected", fmt.Sprintf(`{"map_id":%d}`, mapID))
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			c.SSEvent("cue", msg.Payload)
			c.Writer.Flush()
		case <-ticker.C:
			fmt.Fprint(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()
		case <-ctx.Done():
			return
		}
	}
}
