// Package engage decides when combatants start and stop fighting.
package engage

import (
	"sort"

	"github.com/kasuganosora/mvabs/game/battle"
)

// SightRadius returns u's current sight, boosted while alerted.
func SightRadius(u *battle.Unit) float64 {
	if u.Attr == nil {
		return 0
	}
	r := u.Attr.SightRadius
	if u.Engagement.IsAlerted() {
		r += u.Attr.AlertSightBoost
	}
	return r
}

// PursuitRadius returns how far u chases an engaged target, boosted while alerted.
func PursuitRadius(u *battle.Unit) float64 {
	if u.Attr == nil {
		return 0
	}
	r := u.Attr.PursuitRadius
	if u.Engagement.IsAlerted() {
		r += u.Attr.AlertPursuitBoost
	}
	return r
}

func engageable(self, candidate *battle.Unit, distance float64) bool {
	return candidate.Alive() && !candidate.Inanimate() && distance <= SightRadius(self)
}

// ShouldEngage reports whether self should engage candidate at distance.
// Evaluating it for an ally requests a target indicator refresh.
func ShouldEngage(sim *battle.Sim, self, candidate battle.Combatant, distance float64) bool {
	u, c := self.Base(), candidate.Base()
	switch self.(type) {
	case *battle.Hostile:
		return engageable(u, c, distance)
	case *battle.Ally:
		sim.Notify.TargetIndicator(u.ID)
		if sim.Posture == battle.PostureAggressive {
			return engageable(u, c, distance)
		}
		provoked := u.Engagement.IsAlerted() || sim.PrimaryHitFrames > 0
		return provoked && engageable(u, c, distance)
	default:
		sim.WarnUnknown("should_engage", self)
		return false
	}
}

// ShouldDisengage reports whether self should drop target at distance.
func ShouldDisengage(sim *battle.Sim, self, target battle.Combatant, distance float64) bool {
	u, t := self.Base(), target.Base()
	switch self.(type) {
	case *battle.Hostile, *battle.Ally:
		return !t.Alive() || t.Inanimate() || distance > PursuitRadius(u)
	default:
		sim.WarnUnknown("should_disengage", self)
		return false
	}
}

// OnHit alerts target when it is hit from outside its detection range.
// Returns true when the alert started.
func OnHit(target, attacker *battle.Unit, distance float64) bool {
	if target.Attr == nil || distance <= SightRadius(target) {
		return false
	}
	target.Engagement.Alert(attacker.Pos, target.Attr.AlertFrames)
	return target.Engagement.IsAlerted()
}

// SelectTarget picks, among the opposing combatants self would engage, the
// one self holds the most aggro toward. Candidates are ranked by distance
// first so that ties go to the nearest.
func SelectTarget(sim *battle.Sim, self battle.Combatant) battle.Combatant {
	u := self.Base()
	type cand struct {
		c battle.Combatant
		d float64
	}
	var cands []cand
	for _, c := range sim.Units.All() {
		if c.Base().ID == u.ID || !battle.Opposed(self, c) {
			continue
		}
		d := sim.Distance(u, c.Base())
		if ShouldEngage(sim, self, c, d) {
			cands = append(cands, cand{c, d})
		}
	}
	if len(cands) == 0 {
		return nil
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].d < cands[j].d })
	ids := make([]int64, len(cands))
	for i, c := range cands {
		ids[i] = c.c.Base().ID
	}
	id, _ := u.Aggro.Select(ids)
	return sim.Units.Get(id)
}

// UpdateLeash locks an ally that strayed beyond the leash radius from the
// primary unit and unlocks it once it is back within the recover radius.
// A locked ally loses its target and decision and is sent back toward the
// primary unit. Without an anchor (no primary unit, or leashing disabled)
// a locked ally settles where it is. Returns whether the ally is locked
// after the update.
func UpdateLeash(sim *battle.Sim, a *battle.Ally) bool {
	if a.Primary {
		return a.Engagement.State == battle.EngageLocked
	}
	p := sim.Primary()
	if p == nil || sim.Tuning.LeashRadius <= 0 {
		if a.Engagement.State == battle.EngageLocked {
			a.Engagement.Unlock()
			a.Intent = battle.Intent{Facing: a.Facing}
		}
		return false
	}
	d := sim.Distance(a.Unit, p.Unit)
	switch {
	case a.Engagement.State != battle.EngageLocked && d > sim.Tuning.LeashRadius:
		a.Engagement.Lock()
		a.ClearAction()
	case a.Engagement.State == battle.EngageLocked && d <= sim.Tuning.RecoverRadius:
		a.Engagement.Unlock()
		a.Intent = battle.Intent{Facing: a.Facing}
		return false
	}
	if a.Engagement.State != battle.EngageLocked {
		return false
	}
	a.Intent = battle.Intent{
		Kind:   battle.IntentReturn,
		Dest:   p.Pos,
		Facing: battle.Facing(a.Pos, p.Pos),
	}
	return true
}
