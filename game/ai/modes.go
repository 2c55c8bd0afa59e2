package ai

import (
	"github.com/kasuganosora/mvabs/game/battle"
	"go.uber.org/zap"
)

// Result is the outcome of one action decision.
type Result struct {
	Decision battle.Decision
	Cue      battle.CueKind
	// OK is false when no skill was chosen; Wait then holds the forced wait.
	OK   bool
	Wait int
}

var (
	doNothing = &WaitNode{Frames: func(ctx *Context) int { return ctx.Sim.Tuning.DoNothingWait }}

	support = &Selector{Children: []Node{
		&ActionNode{Fn: cleanse},
		&ActionNode{Fn: heal},
		&ActionNode{Fn: buff},
		doNothing,
	}}

	varietyRoot = &Selector{Children: []Node{
		&Sequence{Children: []Node{&ConditionNode{Fn: allyInDanger}, support}},
		&ActionNode{Fn: variety},
	}}

	trees = map[battle.Mode]*BehaviorTree{
		battle.ModeDoNothing:   {Root: doNothing},
		battle.ModeBasicAttack: {Root: &ActionNode{Fn: basicAttack}},
		battle.ModeVariety:     {Root: varietyRoot},
		battle.ModeFullForce:   {Root: &ActionNode{Fn: fullForce}},
		battle.ModeSupport:     {Root: support},
	}
)

// Decide runs the controller's mode for self against target with the given
// usable skills.
func Decide(sim *battle.Sim, self battle.Combatant, target battle.Combatant, skills []int) Result {
	mode := battle.DefaultMode
	if ctrl := self.Base().Controller; ctrl != nil {
		mode = ctrl.Mode()
	}
	bt, ok := trees[mode]
	if !ok {
		sim.Logger.Warn("ai mode rejected", zap.String("mode", string(mode)), zap.Int64("unit_id", self.Base().ID))
		bt = trees[battle.DefaultMode]
	}

	ctx := &Context{Sim: sim, Self: self, Target: target, Skills: skills}
	if bt.Tick(ctx) != StatusSuccess || ctx.Choice == nil {
		wait := ctx.Wait
		if wait <= 0 {
			wait = sim.Tuning.IdleWait
		}
		return Result{Wait: wait}
	}
	res := Result{
		OK:       true,
		Decision: battle.Decision{SkillID: ctx.Choice.SkillID},
		Cue:      battle.CueOffensive,
	}
	if ctx.Choice.Target != nil {
		res.Decision.TargetID = ctx.Choice.Target.Base().ID
	}
	if ctx.Choice.Supportive {
		res.Cue = battle.CueSupportive
	}
	return res
}

// ---- offensive modes ----

func basicAttack(ctx *Context) *Choice {
	if ctx.Target == nil {
		return nil
	}
	slot := ctx.unit().Slots.Get(battle.SlotPrimary)
	if slot == nil || slot.SkillID == 0 {
		return nil
	}
	id := slot.Effective()
	for _, s := range ctx.Skills {
		if s == id {
			return &Choice{SkillID: id, Target: ctx.Target}
		}
	}
	return nil
}

// allyInDanger is true when an ally in range is below the heal threshold and
// a fair coin comes up heads.
func allyInDanger(ctx *Context) bool {
	for _, f := range ctx.friends() {
		if ctx.needsHealing(f) {
			return ctx.coin()
		}
	}
	return false
}

// remembered returns the offensive skills memory marks effective against the
// current target.
func (ctx *Context) remembered(offense []int) []int {
	ctrl := ctx.unit().Controller
	if ctrl == nil || ctrl.Memory == nil {
		return nil
	}
	return ctrl.Memory.Effective(ctx.Target.Base().ID, offense)
}

func variety(ctx *Context) *Choice {
	if ctx.Target == nil {
		return nil
	}
	offense := ctx.offensive()
	if len(offense) == 0 {
		return nil
	}
	eff := ctx.remembered(offense)
	var id int
	switch {
	case len(eff) == 0:
		id = ctx.pick(offense)
	case len(eff) == 1:
		if ctx.coin() {
			id = eff[0]
		} else {
			id = ctx.pick(offense)
		}
	default:
		id = ctx.pick(eff)
	}
	return &Choice{SkillID: id, Target: ctx.Target}
}

func fullForce(ctx *Context) *Choice {
	if ctx.Target == nil {
		return nil
	}
	offense := ctx.offensive()
	if len(offense) == 0 {
		return nil
	}
	eff := ctx.remembered(offense)
	if len(eff) >= 2 {
		return &Choice{SkillID: ctx.pick(eff), Target: ctx.Target}
	}

	var preferred int
	if len(eff) == 1 {
		preferred = eff[0]
	} else {
		preferred = ctx.pick(offense)
	}
	id := preferred
	if strongest := ctx.strongest(offense); strongest != preferred && ctx.coin() {
		id = strongest
	}
	return &Choice{SkillID: id, Target: ctx.Target}
}

// strongest returns the skill with the highest expected damage against the
// current target; ties go to the earlier skill.
func (ctx *Context) strongest(offense []int) int {
	self, target := ctx.unit(), ctx.Target.Base()
	best, bestV := offense[0], -1.0
	for _, id := range offense {
		if v := battle.ExpectedDamage(ctx.Sim.Estimator, self, target, id); v > bestV {
			best, bestV = id, v
		}
	}
	return best
}
