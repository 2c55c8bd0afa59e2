package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/mvabs/game/world"
	"github.com/kasuganosora/mvabs/resource"
	"github.com/kasuganosora/mvabs/scheduler"
	"go.uber.org/zap"
)

// AdminHandler handles operational endpoints.
// Routes should be protected by the AdminKey middleware.
type AdminHandler struct {
	wm     *world.WorldManager
	loader *resource.Loader
	sched  *scheduler.Scheduler
	logger *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(
	wm *world.WorldManager,
	loader *resource.Loader,
	sched *scheduler.Scheduler,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{wm: wm, loader: loader, sched: sched, logger: logger}
}

// Register mounts the admin routes on g.
func (h *AdminHandler) Register(g *gin.RouterGroup) {
	g.GET("/admin/metrics", h.Metrics)
	g.POST("/admin/reload", h.Reload)
	g.POST("/admin/memory/flush", h.FlushMemory)
}

// Metrics returns server health metrics.
// GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	skills, states, units := h.loader.Counts()
	c.JSON(http.StatusOK, gin.H{
		"active_rooms":    h.wm.ActiveRoomCount(),
		"maps":            h.wm.MapIDs(),
		"scheduler_tasks": h.sched.Stats(),
		"catalog": gin.H{
			"skills": skills,
			"states": states,
			"units":  units,
		},
	})
}

// Reload re-reads the data tables. Running rooms see the new tables from
// their next lookup.
// POST /api/admin/reload
func (h *AdminHandler) Reload(c *gin.Context) {
	if err := h.loader.Reload(); err != nil {
		h.logger.Error("data reload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	skills, states, units := h.loader.Counts()
	h.logger.Info("data reloaded", zap.Int("skills", skills), zap.Int("states", states), zap.Int("units", units))
	c.JSON(http.StatusOK, gin.H{"skills": skills, "states": states, "units": units})
}

// FlushMemory saves the battle memory of every room now.
// POST /api/admin/memory/flush
func (h *AdminHandler) FlushMemory(c *gin.Context) {
	start := time.Now()
	n, err := h.wm.FlushMemory(c.Request.Context())
	if err != nil {
		h.logger.Warn("memory flush incomplete", zap.Int("saved", n), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "saved": n})
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": n, "took_ms": time.Since(start).Milliseconds()})
}
