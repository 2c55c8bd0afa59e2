package battle

import (
	"github.com/kasuganosora/mvabs/game/aggro"
	"github.com/kasuganosora/mvabs/resource"
)

// Point is a tile coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Direction uses the RMMV numpad convention.
type Direction int

const (
	DirDown  Direction = 2
	DirLeft  Direction = 4
	DirRight Direction = 6
	DirUp    Direction = 8
)

// Facing returns the direction from p toward q, preferring the longer axis.
func Facing(p, q Point) Direction {
	dx, dy := q.X-p.X, q.Y-p.Y
	if abs(dx) >= abs(dy) && dx != 0 {
		if dx > 0 {
			return DirRight
		}
		return DirLeft
	}
	if dy < 0 {
		return DirUp
	}
	return DirDown
}

// Phase is the scheduler phase a combatant is in.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseMove
	PhaseDecide
	PhaseCommit // waiting out the cast of a decided skill
)

func (p Phase) String() string {
	switch p {
	case PhaseMove:
		return "move"
	case PhaseDecide:
		return "decide"
	case PhaseCommit:
		return "commit"
	}
	return "idle"
}

// IntentKind is what the movement layer should do with a combatant this frame.
type IntentKind int

const (
	IntentNone IntentKind = iota
	IntentToward
	IntentAway
	IntentReturn // walk back to the anchor; used by leashed allies
)

// Intent is the movement intent produced by the scheduler. Movement itself is
// performed by the execution layer.
type Intent struct {
	Kind   IntentKind `json:"kind"`
	Dest   Point      `json:"dest"`
	Facing Direction  `json:"facing"`
}

// Unit is the state every combatant carries regardless of its side.
type Unit struct {
	ID         int64
	Attr       *resource.UnitAttr
	Team       string
	Pos        Point
	Facing     Direction
	Stats      Stats
	Engagement Engagement
	TargetID   int64 // 0 = no target
	Slots      *SlotSet
	Controller *Controller // nil for the externally driven primary unit
	Aggro      *aggro.Table

	Phase  Phase
	Wait   int // frames until the next decision
	Intent Intent
	// Pending is the skill committed this decision, cleared when the cast ends.
	Pending *Decision
	Dead    bool

	catalog Catalog
}

// Decision is the output of action selection.
type Decision struct {
	SkillID  int   `json:"skill_id"`
	TargetID int64 `json:"target_id"`
}

// NewUnit builds a unit from its attribute row. cat resolves the state
// attributes the unit's aggro table consults.
func NewUnit(id int64, attr *resource.UnitAttr, pos Point, cat Catalog) *Unit {
	u := &Unit{
		ID:      id,
		Attr:    attr,
		Team:    attr.Team,
		Pos:     pos,
		Facing:  DirDown,
		Slots:   NewSlotSet(),
		catalog: cat,
	}
	u.Stats = Stats{
		HP: attr.MaxHP, MaxHP: attr.MaxHP,
		MP: attr.MaxMP, MaxMP: attr.MaxMP,
		MaxTP:     attr.MaxTP,
		Level:     attr.Level,
		Params:    attr.Params,
		CritRate:  attr.CritRate,
		AggroRate: attr.Attractiveness(),
	}
	u.Aggro = aggro.NewTable(id, u.AggroLocked)
	for key, skillID := range attr.Slots {
		_ = u.Slots.Assign(SlotKey(key), skillID)
	}
	for _, key := range attr.LockedSlots {
		_ = u.Slots.SetLocked(SlotKey(key), true)
	}
	return u
}

// Alive reports whether the unit can still act.
func (u *Unit) Alive() bool { return !u.Dead && u.Stats.HP > 0 }

// TemplateID returns the ID of the unit's attribute row.
func (u *Unit) TemplateID() int {
	if u.Attr == nil {
		return 0
	}
	return u.Attr.ID
}

// Inanimate reports whether the unit can never be engaged (chests, props).
func (u *Unit) Inanimate() bool { return u.Attr != nil && u.Attr.Inanimate }

// AggroLocked reports whether any active state freezes the unit's aggro table.
func (u *Unit) AggroLocked() bool {
	for _, attr := range u.StateAttrs() {
		if attr.AggroLock {
			return true
		}
	}
	return false
}

// StateAttrs returns the attributes of every active state, in application order.
// States missing from the catalog are skipped.
func (u *Unit) StateAttrs() []*resource.StateAttr {
	if u.catalog == nil {
		return nil
	}
	var out []*resource.StateAttr
	for _, e := range u.Stats.states {
		if attr := u.catalog.State(e.StateID); attr != nil {
			out = append(out, attr)
		}
	}
	return out
}

// ClearAction drops any decided action and target.
func (u *Unit) ClearAction() {
	u.TargetID = 0
	u.Pending = nil
	u.Wait = 0
	u.Phase = PhaseIdle
	u.Intent = Intent{Facing: u.Facing}
}

// Combatant is the closed set of unit variants: *Hostile and *Ally.
type Combatant interface {
	Base() *Unit
	Kind() resource.UnitKind
}

// Hostile is a unit on an opposing team, driven by its own controller.
type Hostile struct {
	*Unit
}

func (h *Hostile) Base() *Unit             { return h.Unit }
func (h *Hostile) Kind() resource.UnitKind { return resource.KindHostile }

// Ally is a party member. The primary ally is the player-driven leader and
// has no controller.
type Ally struct {
	*Unit
	Primary bool
}

func (a *Ally) Base() *Unit             { return a.Unit }
func (a *Ally) Kind() resource.UnitKind { return resource.KindAlly }

// Opposed reports whether two combatants are on different teams.
func Opposed(a, b Combatant) bool {
	return a.Base().Team != b.Base().Team
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
