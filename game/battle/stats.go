package battle

// Param indices into Stats.Params.
const (
	ParamAtk = iota
	ParamDef
	ParamMat
	ParamMdf
	ParamAgi
	ParamLuk
)

// StateEntry tracks an active state on a combatant.
type StateEntry struct {
	StateID    int `json:"state_id"`
	FramesLeft int `json:"frames_left"` // -1 = no auto-removal
}

// Stats is the stat source of a combatant: resources, params and active states.
type Stats struct {
	HP, MaxHP int
	MP, MaxMP int
	TP, MaxTP int
	Level     int
	Params    [6]int
	CritRate  float64
	// AggroRate is the general aggro attractiveness of this unit.
	AggroRate float64
	states    []StateEntry
}

// HPRate returns HP / MaxHP in 0.0-1.0.
func (s *Stats) HPRate() float64 {
	if s.MaxHP <= 0 {
		return 0
	}
	return float64(s.HP) / float64(s.MaxHP)
}

func (s *Stats) SetHP(v int) { s.HP = clamp(v, 0, s.MaxHP) }
func (s *Stats) SetMP(v int) { s.MP = clamp(v, 0, s.MaxMP) }
func (s *Stats) SetTP(v int) { s.TP = clamp(v, 0, s.MaxTP) }

// CanPay reports whether the unit can afford the given costs.
func (s *Stats) CanPay(mp, tp int) bool {
	return s.MP >= mp && s.TP >= tp
}

// Pay deducts costs. Callers check CanPay first.
func (s *Stats) Pay(mp, tp int) {
	s.SetMP(s.MP - mp)
	s.SetTP(s.TP - tp)
}

// FormulaStats returns the view used by damage and reward formulas.
func (s *Stats) FormulaStats() *FormulaStats {
	return &FormulaStats{
		HP: s.HP, MP: s.MP, TP: s.TP,
		MaxHP: s.MaxHP, MaxMP: s.MaxMP,
		Atk: s.Params[ParamAtk], Def: s.Params[ParamDef],
		Mat: s.Params[ParamMat], Mdf: s.Params[ParamMdf],
		Agi: s.Params[ParamAgi], Luk: s.Params[ParamLuk],
		Level: s.Level,
	}
}

// --- State management ---

// AddState applies a state; re-applying keeps the longer remaining duration.
func (s *Stats) AddState(stateID, frames int) {
	if frames <= 0 {
		frames = -1
	}
	for i := range s.states {
		if s.states[i].StateID != stateID {
			continue
		}
		if frames == -1 || (s.states[i].FramesLeft != -1 && frames > s.states[i].FramesLeft) {
			s.states[i].FramesLeft = frames
		}
		return
	}
	s.states = append(s.states, StateEntry{StateID: stateID, FramesLeft: frames})
}

func (s *Stats) RemoveState(stateID int) {
	for i, e := range s.states {
		if e.StateID == stateID {
			s.states = append(s.states[:i], s.states[i+1:]...)
			return
		}
	}
}

func (s *Stats) HasState(stateID int) bool {
	_, ok := s.State(stateID)
	return ok
}

// State returns the entry for stateID.
func (s *Stats) State(stateID int) (StateEntry, bool) {
	for _, e := range s.states {
		if e.StateID == stateID {
			return e, true
		}
	}
	return StateEntry{}, false
}

// States returns a snapshot of the active states in application order.
func (s *Stats) States() []StateEntry {
	out := make([]StateEntry, len(s.states))
	copy(out, s.states)
	return out
}

// TickStates decrements timed states and returns the IDs that expired.
func (s *Stats) TickStates() []int {
	var expired []int
	kept := s.states[:0]
	for _, e := range s.states {
		if e.FramesLeft > 0 {
			e.FramesLeft--
			if e.FramesLeft == 0 {
				expired = append(expired, e.StateID)
				continue
			}
		}
		kept = append(kept, e)
	}
	s.states = kept
	return expired
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
