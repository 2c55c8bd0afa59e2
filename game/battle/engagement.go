package battle

// EngagementState is the engagement state machine of a combatant.
type EngagementState int

const (
	EngageIdle EngagementState = iota
	EngageAlerted
	EngageEngaged
	EngageLocked
)

func (s EngagementState) String() string {
	switch s {
	case EngageAlerted:
		return "alerted"
	case EngageEngaged:
		return "engaged"
	case EngageLocked:
		return "locked"
	}
	return "idle"
}

// Engagement holds the state plus the alert countdown. Alert is tracked
// separately from State so an engaged unit keeps its boosted radii.
type Engagement struct {
	State       EngagementState `json:"state"`
	AlertFrames int             `json:"alert_frames"`
	AlertSource Point           `json:"alert_source"`
	HasSource   bool            `json:"-"`
}

// IsAlerted reports whether the alert boost is active.
func (e *Engagement) IsAlerted() bool { return e.AlertFrames > 0 }

// Alert starts (or restarts) the alert countdown toward source.
// An idle unit becomes Alerted; Engaged and Locked units keep their state.
func (e *Engagement) Alert(source Point, frames int) {
	if frames <= 0 {
		return
	}
	e.AlertFrames = frames
	e.AlertSource = source
	e.HasSource = true
	if e.State == EngageIdle {
		e.State = EngageAlerted
	}
}

// Tick decrements the alert countdown. Alerted decays to Idle when it runs out.
func (e *Engagement) Tick() {
	if e.AlertFrames > 0 {
		e.AlertFrames--
	}
	if e.AlertFrames == 0 {
		e.HasSource = false
		if e.State == EngageAlerted {
			e.State = EngageIdle
		}
	}
}

// Engage moves an Idle or Alerted unit to Engaged. Locked units stay locked.
func (e *Engagement) Engage() bool {
	if e.State == EngageLocked {
		return false
	}
	e.State = EngageEngaged
	return true
}

// Disengage drops back to Alerted or Idle depending on the alert countdown.
func (e *Engagement) Disengage() {
	if e.State != EngageEngaged {
		return
	}
	e.settle()
}

// Lock suppresses engagement until Unlock.
func (e *Engagement) Lock() { e.State = EngageLocked }

// Unlock releases a lock.
func (e *Engagement) Unlock() {
	if e.State != EngageLocked {
		return
	}
	e.settle()
}

func (e *Engagement) settle() {
	if e.IsAlerted() {
		e.State = EngageAlerted
		return
	}
	e.State = EngageIdle
}
