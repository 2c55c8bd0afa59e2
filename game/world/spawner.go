package world

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/kasuganosora/mvabs/game/battle"
	"github.com/kasuganosora/mvabs/game/memory"
	"github.com/kasuganosora/mvabs/resource"
	"go.uber.org/zap"
)

// instIDCounter generates combatant instance IDs. Allocation starts high so
// IDs chosen by callers below it never collide with allocated ones.
var instIDCounter int64 = 1 << 20

func nextInstID() int64 {
	return atomic.AddInt64(&instIDCounter, 1)
}

// SpawnRequest places a unit template on the map.
type SpawnRequest struct {
	// ID is the instance ID; zero allocates one.
	ID         int64 `json:"id"`
	TemplateID int   `json:"unit_id" binding:"required"`
	X          int   `json:"x"`
	Y          int   `json:"y"`
	Primary    bool  `json:"primary"`
}

// Spawner builds combatants from unit templates. Each AI controller gets its
// own battle memory, restored from the store under the unit's instance ID.
type Spawner struct {
	cat    battle.Catalog
	store  memory.Store
	mode   string
	logger *zap.Logger
}

// NewSpawner creates a Spawner. mode is used for templates that name none.
func NewSpawner(cat battle.Catalog, store memory.Store, mode string, logger *zap.Logger) *Spawner {
	return &Spawner{cat: cat, store: store, mode: mode, logger: logger}
}

// Build creates the combatant for req without registering it anywhere.
func (sp *Spawner) Build(ctx context.Context, req SpawnRequest) (battle.Combatant, error) {
	attr := sp.cat.Unit(req.TemplateID)
	if attr == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTemplate, req.TemplateID)
	}
	id := req.ID
	if id == 0 {
		id = nextInstID()
	}
	u := battle.NewUnit(id, attr, battle.Point{X: req.X, Y: req.Y}, sp.cat)

	var c battle.Combatant
	switch attr.Kind {
	case resource.KindHostile:
		if req.Primary {
			return nil, ErrInvalidPrimary
		}
		c = &battle.Hostile{Unit: u}
	case resource.KindAlly:
		c = &battle.Ally{Unit: u, Primary: req.Primary}
	default:
		return nil, fmt.Errorf("%w: template %d has kind %q", ErrUnknownTemplate, attr.ID, attr.Kind)
	}

	// The primary unit is player-driven and has no AI.
	if !req.Primary {
		u.Controller = sp.controller(ctx, id, attr)
	}
	return c, nil
}

func (sp *Spawner) controller(ctx context.Context, id int64, attr *resource.UnitAttr) *battle.Controller {
	mode := attr.Mode
	if mode == "" {
		mode = sp.mode
	}
	ctrl, err := battle.NewController(id, mode)
	if err != nil {
		sp.logger.Warn("ai mode rejected",
			zap.Int64("unit_id", id),
			zap.Int("template_id", attr.ID),
			zap.String("mode", mode),
			zap.String("using", string(ctrl.Mode())))
	}
	recs, err := sp.store.Load(ctx, id)
	if err != nil {
		sp.logger.Warn("load battle memory failed", zap.Int64("controller", id), zap.Error(err))
	}
	ctrl.Memory.Restore(recs)
	return ctrl
}
