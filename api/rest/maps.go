package rest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/mvabs/audit"
	"github.com/kasuganosora/mvabs/game/battle"
	"github.com/kasuganosora/mvabs/game/world"
	"github.com/kasuganosora/mvabs/middleware"
	"go.uber.org/zap"
)

// MapHandler exposes the command surface of the map rooms.
// Routes should be protected by the AdminKey middleware.
type MapHandler struct {
	wm      *world.WorldManager
	audit   *audit.Service
	timeout time.Duration
	logger  *zap.Logger
}

// NewMapHandler creates a MapHandler. audit may be nil.
func NewMapHandler(wm *world.WorldManager, auditSvc *audit.Service, logger *zap.Logger) *MapHandler {
	return &MapHandler{wm: wm, audit: auditSvc, timeout: 2 * time.Second, logger: logger}
}

// Register mounts every map route on g.
func (h *MapHandler) Register(g *gin.RouterGroup) {
	g.GET("/maps", h.ListMaps)
	g.DELETE("/maps/:map", h.DestroyMap)
	g.POST("/maps/:map/step", h.Step)
	g.GET("/maps/:map/posture", h.GetPosture)
	g.PUT("/maps/:map/posture", h.SetPosture)
	g.POST("/maps/:map/units", h.Spawn)
	g.GET("/maps/:map/units", h.ListUnits)
	g.GET("/maps/:map/units/:id", h.GetUnit)
	g.DELETE("/maps/:map/units/:id", h.Despawn)
	g.PUT("/maps/:map/units/:id/mode", h.SetMode)
	g.PUT("/maps/:map/units/:id/slots/:slot", h.AssignSlot)
	g.DELETE("/maps/:map/units/:id/slots/:slot", h.UnassignSlot)
	g.PUT("/maps/:map/units/:id/slots/:slot/lock", h.LockSlot)
	g.PUT("/maps/:map/units/:id/position", h.SetPosition)
	g.POST("/maps/:map/events", h.SubmitEvents)
}

func (h *MapHandler) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

func mapID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("map"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid map id"})
		return 0, false
	}
	return id, true
}

func unitID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid unit id"})
		return 0, false
	}
	return id, true
}

// room resolves an existing room, writing 404 when the map is not active.
func (h *MapHandler) room(c *gin.Context) (*world.MapRoom, int, bool) {
	id, ok := mapID(c)
	if !ok {
		return nil, 0, false
	}
	room := h.wm.Get(id)
	if room == nil {
		writeError(c, fmt.Errorf("%w: %d", ErrUnknownMap, id))
		return nil, 0, false
	}
	return room, id, true
}

// unitRoom resolves the room and unit id of a /units/:id route.
func (h *MapHandler) unitRoom(c *gin.Context) (*world.MapRoom, int, int64, bool) {
	room, mid, ok := h.room(c)
	if !ok {
		return nil, 0, 0, false
	}
	uid, ok := unitID(c)
	if !ok {
		return nil, 0, 0, false
	}
	return room, mid, uid, true
}

func (h *MapHandler) record(c *gin.Context, start time.Time, mid int, uid int64, action string, req, resp interface{}, err error) {
	if err != nil {
		h.logger.Debug("map command rejected",
			zap.String("action", action), zap.Int("map_id", mid), zap.Error(err))
	}
	if h.audit == nil {
		return
	}
	e := audit.Entry{
		TraceID:  middleware.GetTraceID(c),
		MapID:    mid,
		Action:   action,
		Request:  req,
		Response: resp,
		Err:      err,
		IP:       c.ClientIP(),
		Duration: time.Since(start),
	}
	if uid > 0 {
		e.UnitID = &uid
	}
	h.audit.Log(e)
}

// ListMaps returns the active map IDs.
// GET /api/maps
func (h *MapHandler) ListMaps(c *gin.Context) {
	ids := h.wm.MapIDs()
	c.JSON(http.StatusOK, gin.H{"maps": ids, "count": len(ids)})
}

// DestroyMap flushes and stops a map room.
// DELETE /api/maps/:map
func (h *MapHandler) DestroyMap(c *gin.Context) {
	start := time.Now()
	mid, ok := mapID(c)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	var err error
	if !h.wm.Destroy(ctx, mid) {
		err = fmt.Errorf("%w: %d", ErrUnknownMap, mid)
	}
	h.record(c, start, mid, 0, "destroy_map", nil, nil, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "map destroyed"})
}

// Step advances a room by one frame.
// POST /api/maps/:map/step
func (h *MapHandler) Step(c *gin.Context) {
	room, _, ok := h.room(c)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := room.Step(ctx); err != nil {
		writeError(c, err)
		return
	}
	frame, err := room.Frame(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"frame": frame})
}

// GetPosture returns the team posture of a map.
// GET /api/maps/:map/posture
func (h *MapHandler) GetPosture(c *gin.Context) {
	room, _, ok := h.room(c)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	p, err := room.Posture(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posture": p.String()})
}

type postureRequest struct {
	Posture string `json:"posture" binding:"required"`
}

// SetPosture switches the ally posture of a map, creating its room.
// PUT /api/maps/:map/posture
func (h *MapHandler) SetPosture(c *gin.Context) {
	start := time.Now()
	mid, ok := mapID(c)
	if !ok {
		return
	}
	var req postureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	err := h.wm.GetOrCreate(mid).SetPosture(ctx, req.Posture)
	h.record(c, start, mid, 0, "set_posture", req, nil, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posture": req.Posture})
}

// Spawn places a unit template on a map, creating its room.
// POST /api/maps/:map/units
func (h *MapHandler) Spawn(c *gin.Context) {
	start := time.Now()
	mid, ok := mapID(c)
	if !ok {
		return
	}
	var req world.SpawnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ID < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid unit id"})
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	snap, err := h.wm.GetOrCreate(mid).Spawn(ctx, req)
	h.record(c, start, mid, snap.ID, "spawn", req, gin.H{"id": snap.ID}, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

// ListUnits returns every unit on a map.
// GET /api/maps/:map/units
func (h *MapHandler) ListUnits(c *gin.Context) {
	room, _, ok := h.room(c)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	units, err := room.Units(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"units": units, "count": len(units)})
}

// GetUnit returns one unit.
// GET /api/maps/:map/units/:id
func (h *MapHandler) GetUnit(c *gin.Context) {
	room, _, uid, ok := h.unitRoom(c)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	snap, err := room.Unit(ctx, uid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Despawn removes a unit without rewards.
// DELETE /api/maps/:map/units/:id
func (h *MapHandler) Despawn(c *gin.Context) {
	start := time.Now()
	room, mid, uid, ok := h.unitRoom(c)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	err := room.Despawn(ctx, uid)
	h.record(c, start, mid, uid, "despawn", nil, nil, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "unit removed"})
}

type modeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// SetMode hot-swaps the AI mode of a unit.
// PUT /api/maps/:map/units/:id/mode
func (h *MapHandler) SetMode(c *gin.Context) {
	start := time.Now()
	room, mid, uid, ok := h.unitRoom(c)
	if !ok {
		return
	}
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	err := room.SetMode(ctx, uid, req.Mode)
	h.record(c, start, mid, uid, "set_mode", req, nil, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": req.Mode})
}

type slotRequest struct {
	SkillID int `json:"skill_id" binding:"required"`
}

// AssignSlot binds a skill to a slot.
// PUT /api/maps/:map/units/:id/slots/:slot
func (h *MapHandler) AssignSlot(c *gin.Context) {
	start := time.Now()
	room, mid, uid, ok := h.unitRoom(c)
	if !ok {
		return
	}
	var req slotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	key := battle.SlotKey(c.Param("slot"))
	ctx, cancel := h.ctx(c)
	defer cancel()
	err := room.AssignSlot(ctx, uid, key, req.SkillID)
	h.record(c, start, mid, uid, "assign_slot", gin.H{"slot": key, "skill_id": req.SkillID}, nil, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slot": key, "skill_id": req.SkillID})
}

// UnassignSlot empties a slot.
// DELETE /api/maps/:map/units/:id/slots/:slot
func (h *MapHandler) UnassignSlot(c *gin.Context) {
	start := time.Now()
	room, mid, uid, ok := h.unitRoom(c)
	if !ok {
		return
	}
	key := battle.SlotKey(c.Param("slot"))
	ctx, cancel := h.ctx(c)
	defer cancel()
	err := room.UnassignSlot(ctx, uid, key)
	h.record(c, start, mid, uid, "unassign_slot", gin.H{"slot": key}, nil, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slot": key})
}

type lockRequest struct {
	Locked *bool `json:"locked" binding:"required"`
}

// LockSlot sets or clears the lock flag of a slot.
// PUT /api/maps/:map/units/:id/slots/:slot/lock
func (h *MapHandler) LockSlot(c *gin.Context) {
	start := time.Now()
	room, mid, uid, ok := h.unitRoom(c)
	if !ok {
		return
	}
	var req lockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	key := battle.SlotKey(c.Param("slot"))
	ctx, cancel := h.ctx(c)
	defer cancel()
	err := room.LockSlot(ctx, uid, key, *req.Locked)
	h.record(c, start, mid, uid, "lock_slot", gin.H{"slot": key, "locked": *req.Locked}, nil, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slot": key, "locked": *req.Locked})
}

type positionRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// SetPosition records where the execution layer moved a unit.
// PUT /api/maps/:map/units/:id/position
func (h *MapHandler) SetPosition(c *gin.Context) {
	start := time.Now()
	room, mid, uid, ok := h.unitRoom(c)
	if !ok {
		return
	}
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	err := room.SetPosition(ctx, uid, req.X, req.Y)
	h.record(c, start, mid, uid, "set_position", req, nil, err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"x": req.X, "y": req.Y})
}

// SubmitEvents queues resolution events for the next frame. Events are
// accepted in order until the queue is full.
// POST /api/maps/:map/events
func (h *MapHandler) SubmitEvents(c *gin.Context) {
	start := time.Now()
	room, mid, ok := h.room(c)
	if !ok {
		return
	}
	var evs []battle.ResolutionEvent
	if err := c.ShouldBindJSON(&evs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, ev := range evs {
		if ev.TargetID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "target_id is required"})
			return
		}
	}
	accepted := 0
	var err error
	for _, ev := range evs {
		if err = room.Submit(ev); err != nil {
			break
		}
		accepted++
	}
	h.record(c, start, mid, 0, "submit_events", gin.H{"count": len(evs)}, gin.H{"accepted": accepted}, err)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error(), "accepted": accepted})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": accepted})
}
