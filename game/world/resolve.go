package world

import (
	"context"
	"errors"

	"github.com/kasuganosora/mvabs/game/aggro"
	"github.com/kasuganosora/mvabs/game/battle"
	"github.com/kasuganosora/mvabs/game/engage"
	"github.com/kasuganosora/mvabs/game/reward"
	"github.com/kasuganosora/mvabs/plugin/hook"
	"go.uber.org/zap"
)

// apply feeds one resolution event into the simulation. Events are applied
// one at a time in arrival order.
func (room *MapRoom) apply(ev battle.ResolutionEvent) {
	hc := room.opts.Hooks
	if hc.Has(hook.BeforeResolution) {
		if _, err := hc.Trigger(context.Background(), hook.BeforeResolution, &ev); errors.Is(err, hook.ErrInterrupt) {
			return
		}
	}

	sim := room.sim
	target := sim.Units.Get(ev.TargetID)
	if target == nil {
		room.logger.Warn("resolution event for unknown unit",
			zap.Int64("target_id", ev.TargetID), zap.Int("skill_id", ev.SkillID))
		return
	}
	t := target.Base()
	t.Stats.SetHP(t.Stats.HP - ev.HPDelta)
	t.Stats.SetMP(t.Stats.MP - ev.MPDelta)
	t.Stats.SetTP(t.Stats.TP - ev.TPDelta)

	attacker := sim.Units.Get(ev.AttackerID)
	if attacker != nil {
		room.applyAttacker(attacker, target, ev)
	}
	if t.Alive() && ev.Connected() {
		room.applyStates(t, ev.SkillID)
	}

	if !t.Alive() && !t.Dead {
		room.defeat(target, attacker)
	}
	room.fire(hook.AfterResolution, ev)
}

func (room *MapRoom) applyAttacker(attacker, target battle.Combatant, ev battle.ResolutionEvent) {
	sim := room.sim
	a, t := attacker.Base(), target.Base()
	opposed := battle.Opposed(attacker, target)

	if opposed {
		aggro.Accumulate(room.opts.Aggro, t.Aggro, a.Aggro, room.hit(a, t, ev))
		if !ev.Missed && engage.OnHit(t, a, sim.Distance(a, t)) {
			room.fire(hook.OnAlerted, t.ID)
		}
		if ctrl := a.Controller; ctrl != nil && ctrl.Memory != nil && ev.SkillID != 0 {
			ctrl.Memory.Record(t.ID, ev.SkillID, ev.Effectiveness, ev.HPDelta)
		}
		if a.ID == sim.PrimaryID && ev.Connected() {
			sim.PrimaryHitFrames = sim.Tuning.PrimaryHitFrames
		}
	}
	room.sched.Combo().Resolve(a.Slots, ev.SkillID, ev.Connected())
}

// applyStates lands the state effects of a connecting skill on t. Each
// removal succeeds with its rate; applied states last the effect's frames,
// else the state's own duration.
func (room *MapRoom) applyStates(t *battle.Unit, skillID int) {
	sim := room.sim
	sk := sim.Skill(skillID)
	if sk == nil {
		return
	}
	for _, r := range sk.RemoveStates {
		if t.Stats.HasState(r.StateID) && sim.Rand.Float64() < r.Rate {
			t.Stats.RemoveState(r.StateID)
		}
	}
	for _, a := range sk.AddStates {
		st := sim.Catalog.State(a.StateID)
		if st == nil {
			room.logger.Warn("skill applies unknown state",
				zap.Int("skill_id", sk.ID), zap.Int("state_id", a.StateID))
			continue
		}
		frames := a.Frames
		if frames <= 0 {
			frames = st.Frames
		}
		t.Stats.AddState(a.StateID, frames)
	}
}

// hit collects the aggro inputs of ev from the two units and the skill.
func (room *MapRoom) hit(a, t *battle.Unit, ev battle.ResolutionEvent) aggro.Hit {
	h := aggro.NewHit()
	h.HPDamage = positive(ev.HPDelta)
	h.MPDamage = positive(ev.MPDelta)
	h.TPDamage = positive(ev.TPDelta)
	h.Drain = ev.WasDrain
	h.Parried = ev.WasParried
	if sk := room.sim.Skill(ev.SkillID); sk != nil {
		h.SkillBonus = sk.AggroBonus
		h.SkillRate = sk.Rate()
	}
	for _, st := range a.StateAttrs() {
		h.AttackerOut = append(h.AttackerOut, st.OutRate())
	}
	for _, st := range t.StateAttrs() {
		h.DefenderIn = append(h.DefenderIn, st.InRate())
	}
	h.AttackerAggro = a.Stats.AggroRate
	h.AttackerIsPrimary = a.ID == room.sim.PrimaryID
	return h
}

func positive(v int) float64 {
	if v < 0 {
		return 0
	}
	return float64(v)
}

// defeat grants the rewards of a defeated hostile and takes the unit off the map.
func (room *MapRoom) defeat(target, attacker battle.Combatant) {
	t := target.Base()
	t.Dead = true
	t.ClearAction()

	if _, ok := target.(*battle.Hostile); ok && room.opts.Rewards != nil && t.Attr != nil && len(t.Attr.Rewards) > 0 {
		grants, n := room.opts.Rewards.Prepare(reward.Target{
			Party:     room.opts.Party,
			Recipient: room.recipient(attacker),
			Defeated:  t,
		}, reward.FromAttrs(t.Attr.Rewards))
		room.logger.Debug("rewards granted",
			zap.Int64("unit_id", t.ID), zap.Int("applied", n), zap.Int("pending", len(grants)))
		room.commitRewards(t.ID, grants)
	}
	room.remove(t.ID)
	room.fire(hook.OnUnitDefeated, t.ID)
}

// recipient is the ally that landed the final blow, else the primary unit.
func (room *MapRoom) recipient(attacker battle.Combatant) *battle.Unit {
	if a, ok := attacker.(*battle.Ally); ok {
		return a.Unit
	}
	if p := room.sim.Primary(); p != nil {
		return p.Unit
	}
	return nil
}

// remove unregisters a unit, saves its memory and clears every reference
// other units hold to it.
func (room *MapRoom) remove(id int64) bool {
	sim := room.sim
	c := sim.Units.Remove(id)
	if c == nil {
		return false
	}
	if ctrl := c.Base().Controller; ctrl != nil && ctrl.Memory != nil && ctrl.Memory.Len() > 0 {
		room.saveMemory(ctrl.Key, ctrl.Memory.Records())
	}
	for _, o := range sim.Units.All() {
		u := o.Base()
		u.Aggro.Forget(id)
		if u.TargetID == id {
			u.TargetID = 0
			u.Engagement.Disengage()
		}
		if u.Pending != nil && u.Pending.TargetID == id {
			u.Pending = nil
		}
	}
	if sim.PrimaryID == id {
		sim.PrimaryID = 0
	}
	return true
}
