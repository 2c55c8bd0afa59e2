package world

import (
	"context"
	"fmt"

	"github.com/kasuganosora/mvabs/game/battle"
	"github.com/kasuganosora/mvabs/plugin/hook"
	"go.uber.org/zap"
)

// ---- Command surface ----
//
// Every command runs on the loop goroutine between frames.

// SetPosture switches the team-wide ally posture.
func (room *MapRoom) SetPosture(ctx context.Context, name string) error {
	p, err := battle.ParsePosture(name)
	if err != nil {
		return fmt.Errorf("%w: %q", err, name)
	}
	return room.Do(ctx, func() error {
		room.sim.Posture = p
		room.fire(hook.OnPostureChanged, p.String())
		return nil
	})
}

// Posture returns the current team posture.
func (room *MapRoom) Posture(ctx context.Context) (battle.Posture, error) {
	var p battle.Posture
	err := room.Do(ctx, func() error {
		p = room.sim.Posture
		return nil
	})
	return p, err
}

// Spawn builds a unit from its template and places it on the map. Spawning
// a primary ally demotes the previous primary unit.
func (room *MapRoom) Spawn(ctx context.Context, req SpawnRequest) (battle.UnitSnapshot, error) {
	c, err := room.spawner.Build(ctx, req)
	if err != nil {
		return battle.UnitSnapshot{}, err
	}
	var snap battle.UnitSnapshot
	err = room.Do(ctx, func() error {
		sim := room.sim
		if old := sim.Units.Get(c.Base().ID); old != nil {
			room.remove(old.Base().ID)
		}
		if a, ok := c.(*battle.Ally); ok && a.Primary {
			if prev := sim.Primary(); prev != nil {
				prev.Primary = false
			}
			sim.PrimaryID = a.ID
		}
		sim.Units.Add(c)
		snap = battle.Snapshot(c)
		return nil
	})
	if err == nil {
		room.logger.Info("unit spawned",
			zap.Int64("unit_id", snap.ID),
			zap.Int("template_id", snap.TemplateID),
			zap.Bool("primary", snap.Primary))
	}
	return snap, err
}

// Despawn takes a unit off the map without granting rewards.
func (room *MapRoom) Despawn(ctx context.Context, id int64) error {
	return room.Do(ctx, func() error {
		if !room.remove(id) {
			return fmt.Errorf("%w: %d", ErrUnknownUnit, id)
		}
		return nil
	})
}

// Units returns a snapshot of every unit in spawn order.
func (room *MapRoom) Units(ctx context.Context) ([]battle.UnitSnapshot, error) {
	var out []battle.UnitSnapshot
	err := room.Do(ctx, func() error {
		out = make([]battle.UnitSnapshot, 0, room.sim.Units.Len())
		for _, c := range room.sim.Units.All() {
			out = append(out, battle.Snapshot(c))
		}
		return nil
	})
	return out, err
}

// Unit returns the snapshot of one unit.
func (room *MapRoom) Unit(ctx context.Context, id int64) (battle.UnitSnapshot, error) {
	var snap battle.UnitSnapshot
	err := room.withUnit(ctx, id, func(c battle.Combatant) error {
		snap = battle.Snapshot(c)
		return nil
	})
	return snap, err
}

// SetMode hot-swaps the AI mode of a unit. Slot cooldowns, combo windows and
// memory are untouched. An invalid name keeps the current mode.
func (room *MapRoom) SetMode(ctx context.Context, id int64, mode string) error {
	return room.withUnit(ctx, id, func(c battle.Combatant) error {
		ctrl := c.Base().Controller
		if ctrl == nil {
			return fmt.Errorf("%w: %d", ErrNoController, id)
		}
		if err := ctrl.SetMode(mode); err != nil {
			room.logger.Warn("ai mode rejected",
				zap.Int64("unit_id", id),
				zap.String("mode", mode),
				zap.String("kept", string(ctrl.Mode())))
			return err
		}
		room.fire(hook.OnModeChanged, battle.Snapshot(c))
		return nil
	})
}

// AssignSlot binds skillID to a slot of the unit.
func (room *MapRoom) AssignSlot(ctx context.Context, id int64, key battle.SlotKey, skillID int) error {
	if room.sim.Skill(skillID) == nil {
		return fmt.Errorf("%w: %d", ErrUnknownSkill, skillID)
	}
	return room.withUnit(ctx, id, func(c battle.Combatant) error {
		return c.Base().Slots.Assign(key, skillID)
	})
}

// UnassignSlot empties a slot of the unit.
func (room *MapRoom) UnassignSlot(ctx context.Context, id int64, key battle.SlotKey) error {
	return room.withUnit(ctx, id, func(c battle.Combatant) error {
		return c.Base().Slots.Unassign(key)
	})
}

// LockSlot sets or clears the lock flag of a slot.
func (room *MapRoom) LockSlot(ctx context.Context, id int64, key battle.SlotKey, locked bool) error {
	return room.withUnit(ctx, id, func(c battle.Combatant) error {
		return c.Base().Slots.SetLocked(key, locked)
	})
}

// SetPosition records where the execution layer moved a unit.
func (room *MapRoom) SetPosition(ctx context.Context, id int64, x, y int) error {
	return room.withUnit(ctx, id, func(c battle.Combatant) error {
		u := c.Base()
		p := battle.Point{X: x, Y: y}
		if p != u.Pos {
			u.Facing = battle.Facing(u.Pos, p)
		}
		u.Pos = p
		return nil
	})
}

func (room *MapRoom) withUnit(ctx context.Context, id int64, fn func(battle.Combatant) error) error {
	return room.Do(ctx, func() error {
		c := room.sim.Units.Get(id)
		if c == nil {
			return fmt.Errorf("%w: %d", ErrUnknownUnit, id)
		}
		return fn(c)
	})
}
