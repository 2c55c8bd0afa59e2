package battle

// ResolutionEvent reports the outcome of an executed skill. It is the only
// channel through which the AI core learns about combat results.
// Deltas are amounts removed from the target; negative values are recovery.
type ResolutionEvent struct {
	AttackerID    int64   `json:"attacker_id"`
	TargetID      int64   `json:"target_id"`
	SkillID       int     `json:"skill_id"`
	HPDelta       int     `json:"hp_delta"`
	MPDelta       int     `json:"mp_delta"`
	TPDelta       int     `json:"tp_delta"`
	WasDrain      bool    `json:"was_drain"`
	WasParried    bool    `json:"was_parried"`
	Missed        bool    `json:"missed"`
	Effectiveness float64 `json:"effectiveness"`
}

// Connected reports whether the skill landed on its target.
func (e ResolutionEvent) Connected() bool {
	return !e.Missed && !e.WasParried
}

// CueKind separates offensive from supportive decisions.
type CueKind string

const (
	CueOffensive  CueKind = "offensive"
	CueSupportive CueKind = "supportive"
)

// Cue is the decided-action telegraph emitted when a combatant commits a skill.
type Cue struct {
	UnitID   int64   `json:"unit_id"`
	TargetID int64   `json:"target_id"`
	SkillID  int     `json:"skill_id"`
	Kind     CueKind `json:"kind"`
	Frame    uint64  `json:"frame"`
}

// UnitSnapshot is the externally visible state of a combatant.
type UnitSnapshot struct {
	ID         int64        `json:"id"`
	TemplateID int          `json:"template_id"`
	Name       string       `json:"name"`
	Kind       string       `json:"kind"`
	Team       string       `json:"team"`
	Primary    bool         `json:"primary,omitempty"`
	Pos        Point        `json:"pos"`
	Facing     Direction    `json:"facing"`
	HP         int          `json:"hp"`
	MaxHP      int          `json:"max_hp"`
	MP         int          `json:"mp"`
	MaxMP      int          `json:"max_mp"`
	TP         int          `json:"tp"`
	States     []StateEntry `json:"states"`
	Engagement string       `json:"engagement"`
	Phase      string       `json:"phase"`
	TargetID   int64        `json:"target_id,omitempty"`
	Mode       Mode         `json:"mode,omitempty"`
	Intent     Intent       `json:"intent"`
	Slots      []*Slot      `json:"slots"`
}

// Snapshot copies the visible state of c.
func Snapshot(c Combatant) UnitSnapshot {
	u := c.Base()
	s := UnitSnapshot{
		ID:         u.ID,
		TemplateID: u.TemplateID(),
		Kind:       string(c.Kind()),
		Team:       u.Team,
		Pos:        u.Pos,
		Facing:     u.Facing,
		HP:         u.Stats.HP,
		MaxHP:      u.Stats.MaxHP,
		MP:         u.Stats.MP,
		MaxMP:      u.Stats.MaxMP,
		TP:         u.Stats.TP,
		States:     u.Stats.States(),
		Engagement: u.Engagement.State.String(),
		Phase:      u.Phase.String(),
		TargetID:   u.TargetID,
		Intent:     u.Intent,
	}
	if u.Attr != nil {
		s.Name = u.Attr.Name
	}
	if u.Controller != nil {
		s.Mode = u.Controller.Mode()
	}
	if a, ok := c.(*Ally); ok {
		s.Primary = a.Primary
	}
	for _, sl := range u.Slots.All() {
		cp := *sl
		if sl.Combo != nil {
			combo := *sl.Combo
			cp.Combo = &combo
		}
		s.Slots = append(s.Slots, &cp)
	}
	return s
}
