package ai

import (
	"math"

	"github.com/kasuganosora/mvabs/game/battle"
	"github.com/kasuganosora/mvabs/resource"
)

// ---- supportive cascade ----

// cleanse targets the first ally carrying a negative state that some usable
// skill can remove, using the skill with the best removal rate for it.
func cleanse(ctx *Context) *Choice {
	removers := ctx.supportive(func(sk *resource.SkillAttr) bool { return len(sk.RemoveStates) > 0 })
	if len(removers) == 0 {
		return nil
	}
	for _, f := range ctx.friends() {
		for _, e := range f.Base().Stats.States() {
			st := ctx.Sim.Catalog.State(e.StateID)
			if st == nil || !st.Negative {
				continue
			}
			var best *resource.SkillAttr
			bestRate := 0.0
			for _, sk := range removers {
				if r := sk.RemovalRate(e.StateID); r > bestRate && ctx.canReach(sk, f) {
					best, bestRate = sk, r
				}
			}
			if best != nil {
				return &Choice{SkillID: best.ID, Target: f, Supportive: true}
			}
		}
	}
	return nil
}

func heal(ctx *Context) *Choice {
	healers := ctx.supportive(func(sk *resource.SkillAttr) bool { return sk.HealsHP() })
	if len(healers) == 0 {
		return nil
	}
	var needy []battle.Combatant
	for _, f := range ctx.friends() {
		if ctx.needsHealing(f) {
			needy = append(needy, f)
		}
	}
	switch {
	case len(needy) == 0:
		return nil
	case len(needy) >= 2:
		var area []*resource.SkillAttr
		for _, sk := range healers {
			if sk.IsArea() {
				area = append(area, sk)
			}
		}
		if len(area) > 0 {
			if c := ctx.leastOverheal(area, []battle.Combatant{lowestHP(needy)}); c != nil {
				return c
			}
		}
	}
	return ctx.leastOverheal(healers, needy)
}

// leastOverheal picks the (ally, skill) pair whose projected HP lands closest
// to max HP. Earlier allies win ties, then earlier skills.
func (ctx *Context) leastOverheal(skills []*resource.SkillAttr, allies []battle.Combatant) *Choice {
	var best *Choice
	bestGap := math.Inf(1)
	for _, a := range allies {
		u := a.Base()
		for _, sk := range skills {
			if !ctx.canReach(sk, a) {
				continue
			}
			amount := ctx.Sim.Estimator.Estimate(ctx.unit(), u, sk.ID, false)
			gap := math.Abs(float64(u.Stats.HP) + amount - float64(u.Stats.MaxHP))
			if gap < bestGap {
				best = &Choice{SkillID: sk.ID, Target: a, Supportive: true}
				bestGap = gap
			}
		}
	}
	return best
}

func lowestHP(allies []battle.Combatant) battle.Combatant {
	low := allies[0]
	for _, a := range allies[1:] {
		if a.Base().Stats.HPRate() < low.Base().Stats.HPRate() {
			low = a
		}
	}
	return low
}

// buff keeps applied states up: the first (skill, ally) pair where one of the
// skill's states is missing or about to expire wins. Permanent states never
// need refreshing.
func buff(ctx *Context) *Choice {
	buffs := ctx.supportive(func(sk *resource.SkillAttr) bool { return len(sk.AddStates) > 0 })
	if len(buffs) == 0 {
		return nil
	}
	friends := ctx.friends()
	for _, sk := range buffs {
		for _, f := range friends {
			if !ctx.canReach(sk, f) {
				continue
			}
			for _, add := range sk.AddStates {
				if ctx.needsRefresh(f.Base(), add.StateID) {
					return &Choice{SkillID: sk.ID, Target: f, Supportive: true}
				}
			}
		}
	}
	return nil
}

func (ctx *Context) needsRefresh(u *battle.Unit, stateID int) bool {
	e, ok := u.Stats.State(stateID)
	if !ok {
		return true
	}
	return e.FramesLeft >= 0 && e.FramesLeft <= ctx.Sim.Tuning.BuffRefreshFrames
}
