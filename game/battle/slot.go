package battle

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownSlot = errors.New("battle: unknown slot")
	ErrSlotLocked  = errors.New("battle: slot is locked")
)

// SlotKey is the role tag of a skill slot.
type SlotKey string

const (
	SlotPrimary   SlotKey = "primary"
	SlotSecondary SlotKey = "secondary"
	SlotUtility   SlotKey = "utility"
	SlotMovement  SlotKey = "movement"
	SlotCombat1   SlotKey = "combat1"
	SlotCombat2   SlotKey = "combat2"
	SlotCombat3   SlotKey = "combat3"
	SlotCombat4   SlotKey = "combat4"
)

// SlotOrder is the stable order slots are iterated in.
var SlotOrder = []SlotKey{
	SlotPrimary, SlotSecondary, SlotUtility, SlotMovement,
	SlotCombat1, SlotCombat2, SlotCombat3, SlotCombat4,
}

// ComboState is an active combo override on a slot.
type ComboState struct {
	BaseSkillID int `json:"base_skill_id"`
	SkillID     int `json:"skill_id"`    // the chained follow-up currently offered
	LinkFrames  int `json:"link_frames"` // frames left to use SkillID
}

// Slot is one equipped skill slot.
type Slot struct {
	Key      SlotKey     `json:"key"`
	SkillID  int         `json:"skill_id"` // 0 = empty
	Cooldown int         `json:"cooldown"` // frames, never negative
	Locked   bool        `json:"locked"`
	Combo    *ComboState `json:"combo,omitempty"`
	// LastSkillID is the skill most recently committed from this slot; hits
	// reported for it are credited here even after the combo window moved on.
	LastSkillID int `json:"last_skill_id,omitempty"`
}

// Effective returns the skill the slot currently offers: the combo follow-up
// while its link window is open, otherwise the base skill.
func (s *Slot) Effective() int {
	if s.Combo != nil && s.Combo.LinkFrames > 0 {
		return s.Combo.SkillID
	}
	return s.SkillID
}

// Ready reports whether the effective skill can be used now.
// A combo follow-up is usable during its link window even while the base
// skill is still cooling down.
func (s *Slot) Ready() bool {
	if s.SkillID == 0 {
		return false
	}
	if s.Combo != nil && s.Combo.LinkFrames > 0 {
		return true
	}
	return s.Cooldown == 0
}

// SlotSet holds a combatant's slots.
type SlotSet struct {
	slots map[SlotKey]*Slot
}

// NewSlotSet creates an empty set with every known slot key.
func NewSlotSet() *SlotSet {
	ss := &SlotSet{slots: make(map[SlotKey]*Slot, len(SlotOrder))}
	for _, k := range SlotOrder {
		ss.slots[k] = &Slot{Key: k}
	}
	return ss
}

// Get returns the slot for key, or nil.
func (ss *SlotSet) Get(key SlotKey) *Slot {
	return ss.slots[key]
}

func (ss *SlotSet) lookup(key SlotKey) (*Slot, error) {
	s, ok := ss.slots[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSlot, key)
	}
	return s, nil
}

// Assign binds skillID to the slot. Rebinding a slot drops its cooldown and
// any combo in progress.
func (ss *SlotSet) Assign(key SlotKey, skillID int) error {
	s, err := ss.lookup(key)
	if err != nil {
		return err
	}
	if s.Locked {
		return fmt.Errorf("%w: %q", ErrSlotLocked, key)
	}
	if s.SkillID == skillID {
		return nil
	}
	s.SkillID = skillID
	s.Cooldown = 0
	s.Combo = nil
	s.LastSkillID = 0
	return nil
}

// Unassign empties the slot.
func (ss *SlotSet) Unassign(key SlotKey) error {
	return ss.Assign(key, 0)
}

// SetLocked toggles the slot's lock flag.
func (ss *SlotSet) SetLocked(key SlotKey, locked bool) error {
	s, err := ss.lookup(key)
	if err != nil {
		return err
	}
	s.Locked = locked
	return nil
}

// All returns the slots in SlotOrder.
func (ss *SlotSet) All() []*Slot {
	out := make([]*Slot, 0, len(SlotOrder))
	for _, k := range SlotOrder {
		out = append(out, ss.slots[k])
	}
	return out
}

// Equipped returns the effective skill of every non-empty slot, in slot order.
func (ss *SlotSet) Equipped() []int {
	var out []int
	for _, s := range ss.All() {
		if s.SkillID != 0 {
			out = append(out, s.Effective())
		}
	}
	return out
}

// Ready returns the effective skill of every slot that is usable now.
func (ss *SlotSet) Ready() []int {
	var out []int
	for _, s := range ss.All() {
		if s.Ready() {
			out = append(out, s.Effective())
		}
	}
	return out
}

// Owning returns the slot currently offering skillID, or nil.
func (ss *SlotSet) Owning(skillID int) *Slot {
	for _, s := range ss.All() {
		if s.SkillID != 0 && s.Effective() == skillID {
			return s
		}
	}
	return nil
}

// Committed returns the slot skillID was last committed from, falling back
// to the slot currently offering it.
func (ss *SlotSet) Committed(skillID int) *Slot {
	for _, s := range ss.All() {
		if s.SkillID != 0 && s.LastSkillID == skillID {
			return s
		}
	}
	return ss.Owning(skillID)
}
