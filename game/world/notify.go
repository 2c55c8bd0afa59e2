package world

import (
	"context"

	"github.com/kasuganosora/mvabs/game/battle"
	"github.com/kasuganosora/mvabs/plugin/hook"
	"go.uber.org/zap"
)

// roomNotifier forwards scheduler notifications to the hook center and the
// telegraph stream. It runs on the loop goroutine.
type roomNotifier struct {
	room *MapRoom
}

func (n *roomNotifier) TargetIndicator(unitID int64) {
	n.room.fire(hook.OnTargetIndicator, unitID)
}

func (n *roomNotifier) Decided(cue battle.Cue) {
	n.room.fire(hook.OnActionDecided, cue)
	n.room.telegraph(cue)
}

func (n *roomNotifier) Engaged(unitID, targetID int64) {
	n.room.fire(hook.OnEngage, [2]int64{unitID, targetID})
}

// fire triggers event when anything listens for it. Handler errors are
// logged and never reach the simulation.
func (room *MapRoom) fire(event string, data interface{}) {
	hc := room.opts.Hooks
	if !hc.Has(event) {
		return
	}
	if _, err := hc.Trigger(context.Background(), event, data); err != nil {
		room.logger.Warn("hook failed", zap.String("event", event), zap.Error(err))
	}
}
