// Package combo tracks skill-chain overrides on skill slots.
//
// A slot's base skill carries a cooldown. When a skill with a combo attribute
// connects (or is committed, for free-combo skills) the slot offers the combo
// follow-up for LinkTime frames and the base cooldown is extended by the same
// amount. The slot reverts to its base skill when the cooldown reaches zero.
package combo

import (
	"errors"
	"fmt"

	"github.com/kasuganosora/mvabs/game/battle"
)

var (
	ErrNotEquipped = errors.New("combo: skill not offered by any slot")
	ErrNotReady    = errors.New("combo: slot is cooling down")
)

// Tracker applies combo rules to slot sets. It holds no per-unit state.
type Tracker struct {
	cat battle.Catalog
}

func New(cat battle.Catalog) *Tracker {
	return &Tracker{cat: cat}
}

// Commit starts the cooldown for skillID on the slot offering it and returns
// that slot. Using an open combo follow-up consumes its window; the extended
// base cooldown keeps running.
func (t *Tracker) Commit(ss *battle.SlotSet, skillID int) (*battle.Slot, error) {
	slot := ss.Owning(skillID)
	if slot == nil {
		return nil, fmt.Errorf("%w: %d", ErrNotEquipped, skillID)
	}
	if !slot.Ready() {
		return slot, fmt.Errorf("%w: %s", ErrNotReady, slot.Key)
	}
	sk := t.cat.Skill(skillID)
	cooldown := 0
	if sk != nil {
		cooldown = sk.Cooldown
	}

	if slot.Combo != nil && slot.Combo.LinkFrames > 0 {
		slot.Combo.LinkFrames = 0
		if cooldown > slot.Cooldown {
			slot.Cooldown = cooldown
		}
	} else {
		slot.Cooldown = cooldown
	}
	slot.LastSkillID = skillID

	if sk != nil && sk.FreeCombo {
		t.advance(slot, skillID)
	}
	return slot, nil
}

// Resolve reports the outcome of skillID. A connecting hit of a combo skill
// that is not free-combo advances the chain. Returns true when it advanced.
func (t *Tracker) Resolve(ss *battle.SlotSet, skillID int, connected bool) bool {
	if !connected {
		return false
	}
	sk := t.cat.Skill(skillID)
	if sk == nil || sk.FreeCombo {
		return false
	}
	slot := ss.Committed(skillID)
	if slot == nil {
		return false
	}
	return t.advance(slot, skillID)
}

func (t *Tracker) advance(slot *battle.Slot, skillID int) bool {
	sk := t.cat.Skill(skillID)
	if sk == nil || sk.Combo == nil || sk.Combo.LinkTime <= 0 {
		return false
	}
	link := sk.Combo.LinkTime
	slot.Combo = &battle.ComboState{
		BaseSkillID: slot.SkillID,
		SkillID:     sk.Combo.SkillID,
		LinkFrames:  link,
	}
	slot.Cooldown += link
	return true
}

// Tick advances every slot by one frame.
func (t *Tracker) Tick(ss *battle.SlotSet) {
	for _, s := range ss.All() {
		TickSlot(s)
	}
}

// TickSlot advances one slot by one frame.
func TickSlot(s *battle.Slot) {
	if s.Combo != nil && s.Combo.LinkFrames > 0 {
		s.Combo.LinkFrames--
	}
	if s.Cooldown > 0 {
		s.Cooldown--
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 0
		s.Combo = nil
	}
}
