package ai

import (
	"github.com/kasuganosora/mvabs/game/battle"
	"github.com/kasuganosora/mvabs/resource"
)

// Context is passed to every behavior tree node during a decision.
type Context struct {
	Sim    *battle.Sim
	Self   battle.Combatant
	Target battle.Combatant // current target, may be nil
	// Skills holds the equipped skills that are usable right now, in slot order.
	Skills []int

	Choice *Choice
	Wait   int
}

// Choice is a selected skill and the combatant it is aimed at.
type Choice struct {
	SkillID    int
	Target     battle.Combatant
	Supportive bool
}

func (ctx *Context) unit() *battle.Unit { return ctx.Self.Base() }

func (ctx *Context) skill(id int) *resource.SkillAttr { return ctx.Sim.Skill(id) }

// coin flips a fair coin.
func (ctx *Context) coin() bool { return ctx.Sim.Rand.Intn(2) == 0 }

// pick returns a uniformly random element of ids.
func (ctx *Context) pick(ids []int) int {
	return ids[ctx.Sim.Rand.Intn(len(ids))]
}

// offensive returns the usable skills that can be aimed at the current target.
func (ctx *Context) offensive() []int {
	var out []int
	for _, id := range ctx.Skills {
		if sk := ctx.skill(id); sk != nil && sk.TargetsOpponent() {
			out = append(out, id)
		}
	}
	return out
}

// supportive returns the usable skills that land on allies and pass keep.
func (ctx *Context) supportive(keep func(*resource.SkillAttr) bool) []*resource.SkillAttr {
	var out []*resource.SkillAttr
	for _, id := range ctx.Skills {
		sk := ctx.skill(id)
		if sk != nil && sk.TargetsAlly() && keep(sk) {
			out = append(out, sk)
		}
	}
	return out
}

// friends returns living allies within sensing range, self included, in
// registry order.
func (ctx *Context) friends() []battle.Combatant {
	return ctx.Sim.Friends(ctx.Self, battle.SenseRadius(ctx.unit()))
}

// canReach reports whether sk may be aimed at ally (self-scoped skills only
// land on the caster).
func (ctx *Context) canReach(sk *resource.SkillAttr, ally battle.Combatant) bool {
	if sk.Scope == resource.ScopeSelf {
		return ally.Base().ID == ctx.unit().ID
	}
	return true
}

// needsHealing reports whether ally is alive and below the heal threshold.
func (ctx *Context) needsHealing(ally battle.Combatant) bool {
	u := ally.Base()
	return u.Alive() && u.Stats.HPRate() < ctx.Sim.Tuning.HealThreshold
}
