package world

import (
	"math"

	"github.com/kasuganosora/mvabs/game/ai"
	"github.com/kasuganosora/mvabs/game/battle"
	"github.com/kasuganosora/mvabs/game/combo"
	"github.com/kasuganosora/mvabs/game/engage"
	"go.uber.org/zap"
)

// Scheduler runs the per-frame phases of every combatant in a Sim:
// idle, movement intent, action decision and commit. It is not safe for
// concurrent use; the owning MapRoom calls it from its loop goroutine.
type Scheduler struct {
	sim   *battle.Sim
	combo *combo.Tracker
}

func NewScheduler(sim *battle.Sim) *Scheduler {
	return &Scheduler{sim: sim, combo: combo.New(sim.Catalog)}
}

// Combo returns the tracker shared with event application.
func (s *Scheduler) Combo() *combo.Tracker { return s.combo }

// Step advances the simulation by one frame.
func (s *Scheduler) Step() {
	sim := s.sim
	sim.Frame++
	if sim.PrimaryHitFrames > 0 {
		sim.PrimaryHitFrames--
	}

	units := append([]battle.Combatant(nil), sim.Units.All()...)
	for _, c := range units {
		u := c.Base()
		if !u.Alive() {
			continue
		}
		u.Stats.TickStates()
		u.Engagement.Tick()
		s.combo.Tick(u.Slots)

		if a, ok := c.(*battle.Ally); ok && engage.UpdateLeash(sim, a) {
			continue
		}
		// Player-driven units only keep their timers running.
		if u.Controller == nil {
			continue
		}
		s.runPhases(c)
	}
}

func (s *Scheduler) runPhases(c battle.Combatant) {
	u := c.Base()
	if u.Wait > 0 {
		u.Wait--
		if u.Wait > 0 {
			return
		}
	}
	if u.Phase == battle.PhaseCommit {
		u.Pending = nil
		u.Phase = battle.PhaseIdle
	}

	target := s.retarget(c)
	if target == nil {
		u.Phase = battle.PhaseIdle
		s.idle(u)
	} else {
		u.Phase = battle.PhaseMove
		s.move(c, target)
	}

	u.Phase = battle.PhaseDecide
	s.decide(c, target)
}

// retarget drops a target that should be disengaged and switches to the
// sighted opponent with the highest aggro.
func (s *Scheduler) retarget(c battle.Combatant) battle.Combatant {
	sim := s.sim
	u := c.Base()

	var current battle.Combatant
	if u.TargetID != 0 {
		current = sim.Units.Get(u.TargetID)
		if current == nil || engage.ShouldDisengage(sim, c, current, sim.Distance(u, current.Base())) {
			u.TargetID = 0
			u.Engagement.Disengage()
			current = nil
		}
	}

	best := engage.SelectTarget(sim, c)
	if best == nil || (current != nil && best.Base().ID == u.TargetID) {
		return current
	}
	if !u.Engagement.Engage() {
		return nil
	}
	u.TargetID = best.Base().ID
	sim.Notify.Engaged(u.ID, u.TargetID)
	return best
}

// idle walks an alerted unit without a target toward where the hit came
// from. A unit still carrying a move from its last target stops first and
// turns toward the source once stationary.
func (s *Scheduler) idle(u *battle.Unit) {
	e := &u.Engagement
	if !e.IsAlerted() || !e.HasSource || e.AlertSource == u.Pos {
		u.Intent = battle.Intent{Facing: u.Facing}
		return
	}
	walking := u.Intent.Kind == battle.IntentToward && u.Intent.Dest == e.AlertSource
	if u.Intent.Kind != battle.IntentNone && !walking {
		u.Intent = battle.Intent{Facing: u.Facing}
		return
	}
	u.Facing = battle.Facing(u.Pos, e.AlertSource)
	u.Intent = battle.Intent{Kind: battle.IntentToward, Dest: e.AlertSource, Facing: u.Facing}
}

// move keeps the unit within reach of its primary skill, backing off when
// too close and closing in when too far. It always faces the target.
// An offensive skill must stay usable, so the spacing never pushes the unit
// beyond the skill's proximity; other skills hold at the larger of the two.
func (s *Scheduler) move(c battle.Combatant, target battle.Combatant) {
	u, t := c.Base(), target.Base()
	d := s.sim.Distance(u, t)
	reach, offensive := s.proximity(u)
	spacing := s.spacing(c)
	keep := math.Min(spacing, reach)
	if !offensive {
		reach = math.Max(reach, spacing)
		keep = reach
	}

	u.Facing = battle.Facing(u.Pos, t.Pos)
	intent := battle.Intent{Dest: t.Pos, Facing: u.Facing}
	switch {
	case d > reach:
		intent.Kind = battle.IntentToward
	case d < keep*s.sim.Tuning.CloseRatio:
		intent.Kind = battle.IntentAway
	default:
		intent.Dest = u.Pos
	}
	u.Intent = intent
}

// proximity returns the ideal distance of the pending or primary skill and
// whether that skill is aimed at an opponent.
func (s *Scheduler) proximity(u *battle.Unit) (float64, bool) {
	id := 0
	if u.Pending != nil {
		id = u.Pending.SkillID
	} else if slot := u.Slots.Get(battle.SlotPrimary); slot != nil {
		id = slot.Effective()
	}
	sk := s.sim.Skill(id)
	if sk == nil {
		return 1, true
	}
	if sk.Proximity > 0 {
		return sk.Proximity, sk.TargetsOpponent()
	}
	return 1, sk.TargetsOpponent()
}

func (s *Scheduler) spacing(c battle.Combatant) float64 {
	switch c.(type) {
	case *battle.Hostile:
		return s.sim.Tuning.HostileSpacing
	case *battle.Ally:
		return s.sim.Tuning.AllySpacing
	default:
		s.sim.WarnUnknown("spacing", c)
		return 0
	}
}

// usable returns the ready, affordable skills; skills aimed at an opponent
// must also be within their proximity of the target.
func (s *Scheduler) usable(u *battle.Unit, target battle.Combatant) []int {
	ids := s.sim.Usable(u, u.Slots.Ready())
	if target == nil {
		return ids
	}
	d := s.sim.Distance(u, target.Base())
	out := ids[:0]
	for _, id := range ids {
		sk := s.sim.Skill(id)
		if sk.TargetsOpponent() && sk.Proximity > 0 && d > sk.Proximity {
			continue
		}
		out = append(out, id)
	}
	return out
}

func (s *Scheduler) decide(c battle.Combatant, target battle.Combatant) {
	sim := s.sim
	u := c.Base()

	res := ai.Decide(sim, c, target, s.usable(u, target))
	if !res.OK {
		s.rest(u, res.Wait)
		return
	}
	sk := sim.Skill(res.Decision.SkillID)
	if sk == nil || !u.Stats.CanPay(sk.MPCost, sk.TPCost) {
		s.rest(u, sim.Tuning.IdleWait)
		return
	}
	if _, err := s.combo.Commit(u.Slots, sk.ID); err != nil {
		sim.Logger.Debug("decision discarded", zap.Int64("unit_id", u.ID), zap.Error(err))
		s.rest(u, sim.Tuning.IdleWait)
		return
	}
	u.Stats.Pay(sk.MPCost, sk.TPCost)

	d := res.Decision
	u.Pending = &d
	u.Phase = battle.PhaseCommit
	u.Wait = sk.CastTime
	if u.Wait < sim.Tuning.MinCastWait {
		u.Wait = sim.Tuning.MinCastWait
	}
	sim.Notify.Decided(battle.Cue{
		UnitID:   u.ID,
		TargetID: d.TargetID,
		SkillID:  d.SkillID,
		Kind:     res.Cue,
		Frame:    sim.Frame,
	})
}

func (s *Scheduler) rest(u *battle.Unit, wait int) {
	u.Phase = battle.PhaseIdle
	u.Pending = nil
	u.Wait = wait
}
