package world

import (
	"math/rand"
	"testing"

	"github.com/kasuganosora/mvabs/game/battle"
	"github.com/kasuganosora/mvabs/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	skSlash = 1 // chains into skCross
	skCross = 2
	skBolt  = 3
	skHeal  = 4
	skCure  = 5
	skSeal  = 6

	stPoison = 1
	stCalm   = 2 // freezes aggro
)

var (
	testSkills = []*resource.SkillAttr{
		{ID: skSlash, Name: "Slash", Scope: resource.ScopeEnemy, Proximity: 1, Cooldown: 30, CastTime: 10,
			Damage: resource.SkillDamage{Type: resource.DamageHP, Formula: "a.atk * 2 - b.def"},
			Combo:  &resource.ComboAttr{SkillID: skCross, LinkTime: 15}},
		{ID: skCross, Name: "Cross", Scope: resource.ScopeEnemy, Proximity: 1, Cooldown: 5},
		{ID: skBolt, Name: "Bolt", Scope: resource.ScopeEnemy, Proximity: 5, MPCost: 10, Cooldown: 20, AggroBonus: 10},
		{ID: skHeal, Name: "Heal", Scope: resource.ScopeAlly, Cooldown: 40, CastTime: 20,
			Damage: resource.SkillDamage{Type: resource.RecoverHP, Formula: "50"}},
		{ID: skCure, Name: "Cure", Scope: resource.ScopeAlly,
			RemoveStates: []resource.StateRemoval{{StateID: stPoison, Rate: 1}}},
		{ID: skSeal, Name: "Seal", Scope: resource.ScopeEnemy, Proximity: 3,
			AddStates: []resource.StateApply{{StateID: stCalm}, {StateID: stPoison, Frames: 5}}},
	}
	testStates = []*resource.StateAttr{
		{ID: stPoison, Name: "Poison", Negative: true},
		{ID: stCalm, Name: "Calm", AggroLock: true, Frames: 30},
	}
	orcAttr = &resource.UnitAttr{ID: 100, Name: "Orc", Kind: resource.KindHostile, Team: "monsters",
		MaxHP: 60, Params: [6]int{12, 4, 0, 0, 5, 5}, SightRadius: 4, PursuitRadius: 6, AlertFrames: 120,
		Mode: "basic_attack", Slots: map[string]int{"primary": skSlash},
		Rewards: []resource.RewardAttr{{Kind: "grant_gold", Amount: "b.level * 10"}}, Level: 2}
	heroAttr = &resource.UnitAttr{ID: 1, Name: "Hero", Kind: resource.KindAlly, Team: "party",
		MaxHP: 100, MaxMP: 30, Params: [6]int{15, 6, 8, 4, 7, 5}, SightRadius: 4, PursuitRadius: 6, Level: 5,
		Slots: map[string]int{"primary": skSlash, "combat1": skBolt}}
	clericAttr = &resource.UnitAttr{ID: 2, Name: "Cleric", Kind: resource.KindAlly, Team: "party",
		MaxHP: 70, MaxMP: 40, SightRadius: 4, PursuitRadius: 6, SenseRadius: 5,
		Mode: "support", Slots: map[string]int{"primary": skHeal}}
)

func testCatalog() *resource.Loader {
	return resource.NewStatic(testSkills, testStates, []*resource.UnitAttr{orcAttr, heroAttr, clericAttr})
}

type recorder struct {
	cues    []battle.Cue
	engaged [][2]int64
}

func (r *recorder) TargetIndicator(int64)       {}
func (r *recorder) Decided(c battle.Cue)        { r.cues = append(r.cues, c) }
func (r *recorder) Engaged(unit, target int64) { r.engaged = append(r.engaged, [2]int64{unit, target}) }

type phaseFixture struct {
	sim   *battle.Sim
	sched *Scheduler
	rec   *recorder
}

func newPhaseFixture(t *testing.T) *phaseFixture {
	t.Helper()
	sim := battle.NewSim(testCatalog(), rand.New(rand.NewSource(7)), zap.NewNop())
	rec := &recorder{}
	sim.Notify = rec
	return &phaseFixture{sim: sim, sched: NewScheduler(sim), rec: rec}
}

func (f *phaseFixture) orc(t *testing.T, id int64, x, y int) *battle.Hostile {
	t.Helper()
	h := &battle.Hostile{Unit: battle.NewUnit(id, orcAttr, battle.Point{X: x, Y: y}, f.sim.Catalog)}
	ctrl, err := battle.NewController(id, orcAttr.Mode)
	require.NoError(t, err)
	h.Controller = ctrl
	f.sim.Units.Add(h)
	return h
}

func (f *phaseFixture) hero(id int64, x, y int) *battle.Ally {
	a := &battle.Ally{Unit: battle.NewUnit(id, heroAttr, battle.Point{X: x, Y: y}, f.sim.Catalog), Primary: true}
	f.sim.Units.Add(a)
	f.sim.PrimaryID = id
	return a
}

func (f *phaseFixture) ally(t *testing.T, id int64, attr *resource.UnitAttr, mode string, x, y int) *battle.Ally {
	t.Helper()
	a := &battle.Ally{Unit: battle.NewUnit(id, attr, battle.Point{X: x, Y: y}, f.sim.Catalog)}
	ctrl, err := battle.NewController(id, mode)
	require.NoError(t, err)
	a.Controller = ctrl
	f.sim.Units.Add(a)
	return a
}

func (f *phaseFixture) step(n int) {
	for i := 0; i < n; i++ {
		f.sched.Step()
	}
}

func TestStep_EngageDecideCommit(t *testing.T) {
	f := newPhaseFixture(t)
	orc := f.orc(t, 10, 0, 0)
	hero := f.hero(1, 1, 0)

	f.step(1)
	assert.Equal(t, hero.ID, orc.TargetID)
	assert.Equal(t, battle.EngageEngaged, orc.Engagement.State)
	assert.Equal(t, [][2]int64{{orc.ID, hero.ID}}, f.rec.engaged)
	assert.Equal(t, battle.DirRight, orc.Facing)

	require.Len(t, f.rec.cues, 1)
	cue := f.rec.cues[0]
	assert.Equal(t, battle.Cue{UnitID: orc.ID, TargetID: hero.ID, SkillID: skSlash, Kind: battle.CueOffensive, Frame: 1}, cue)
	assert.Equal(t, battle.PhaseCommit, orc.Phase)
	require.NotNil(t, orc.Pending)
	assert.Equal(t, 10, orc.Wait, "cast time")
	assert.Equal(t, 30, orc.Slots.Get(battle.SlotPrimary).Cooldown)

	// Cast finishes, the slot is still cooling down: nothing to do.
	f.step(10)
	assert.Nil(t, orc.Pending)
	assert.Equal(t, battle.PhaseIdle, orc.Phase)
	assert.Equal(t, f.sim.Tuning.IdleWait, orc.Wait)
	assert.Len(t, f.rec.cues, 1)
	assert.Equal(t, 20, orc.Slots.Get(battle.SlotPrimary).Cooldown)
}

func TestStep_PrimaryUnitIsNotDriven(t *testing.T) {
	f := newPhaseFixture(t)
	hero := f.hero(1, 0, 0)
	f.orc(t, 10, 1, 0).Controller = nil
	hero.Slots.Get(battle.SlotPrimary).Cooldown = 3

	f.step(1)
	assert.Empty(t, f.rec.cues)
	assert.Zero(t, hero.TargetID)
	assert.Equal(t, 2, hero.Slots.Get(battle.SlotPrimary).Cooldown, "timers still run")
}

func TestStep_OutOfSightStaysIdle(t *testing.T) {
	f := newPhaseFixture(t)
	orc := f.orc(t, 10, 0, 0)
	f.hero(1, 5, 0)

	f.step(1)
	assert.Zero(t, orc.TargetID)
	assert.Equal(t, battle.EngageIdle, orc.Engagement.State)
	assert.Equal(t, battle.IntentNone, orc.Intent.Kind)
	assert.Empty(t, f.rec.cues)
	assert.Equal(t, f.sim.Tuning.IdleWait, orc.Wait)
}

func TestStep_AlertedWalksTowardSource(t *testing.T) {
	f := newPhaseFixture(t)
	orc := f.orc(t, 10, 0, 0)
	f.hero(1, 8, 0)
	orc.Engagement.Alert(battle.Point{X: 8}, 50)

	f.step(1)
	assert.Equal(t, battle.EngageAlerted, orc.Engagement.State)
	assert.Equal(t, battle.Intent{Kind: battle.IntentToward, Dest: battle.Point{X: 8}, Facing: battle.DirRight}, orc.Intent)
}

func TestStep_ClosesDistanceBeforeAttacking(t *testing.T) {
	f := newPhaseFixture(t)
	orc := f.orc(t, 10, 0, 0)
	hero := f.hero(1, 0, 3)

	f.step(1)
	assert.Equal(t, hero.ID, orc.TargetID)
	assert.Equal(t, battle.IntentToward, orc.Intent.Kind)
	assert.Equal(t, battle.DirDown, orc.Intent.Facing)
	assert.Empty(t, f.rec.cues, "slash needs proximity 1")
}

func TestStep_AllyKeepsSpacing(t *testing.T) {
	f := newPhaseFixture(t)
	f.sim.Posture = battle.PostureAggressive
	f.hero(1, 0, 0)
	fighter := f.ally(t, 2, heroAttr, "basic_attack", 3, 0)
	f.orc(t, 10, 3, 0).Controller = nil

	f.step(1)
	assert.Equal(t, int64(10), fighter.TargetID)
	assert.Equal(t, battle.IntentAway, fighter.Intent.Kind, "ally spacing 2 and distance 0")
}

func TestStep_MeleeAllyClosesToReach(t *testing.T) {
	f := newPhaseFixture(t)
	f.sim.Posture = battle.PostureAggressive
	f.hero(1, 0, 0)
	fighter := f.ally(t, 2, heroAttr, "basic_attack", 1, 0)
	orc := f.orc(t, 10, 3, 0)
	orc.Controller = nil

	f.step(1)
	require.Equal(t, orc.ID, fighter.TargetID)
	assert.Equal(t, battle.IntentToward, fighter.Intent.Kind, "ally spacing 2 is beyond slash reach")
	assert.Empty(t, f.rec.cues)

	// The execution layer carries out the move.
	fighter.Pos = battle.Point{X: 2}
	f.step(f.sim.Tuning.IdleWait)
	require.Len(t, f.rec.cues, 1)
	assert.Equal(t, battle.Cue{UnitID: fighter.ID, TargetID: orc.ID, SkillID: skSlash, Kind: battle.CueOffensive, Frame: 16}, f.rec.cues[0])
	assert.Equal(t, fighter.Pos, fighter.Intent.Dest, "holds position within reach")
}

func TestStep_AlertedUnitStopsBeforeTurning(t *testing.T) {
	f := newPhaseFixture(t)
	orc := f.orc(t, 10, 0, 0)
	f.hero(1, 9, 0)
	orc.Engagement.Alert(battle.Point{Y: 8}, 50)
	orc.Intent = battle.Intent{Kind: battle.IntentAway, Dest: battle.Point{X: 1}, Facing: battle.DirRight}

	f.step(1)
	assert.Equal(t, battle.IntentNone, orc.Intent.Kind, "a moving unit stops first")

	orc.Wait = 0
	f.step(1)
	assert.Equal(t, battle.Intent{Kind: battle.IntentToward, Dest: battle.Point{Y: 8}, Facing: battle.DirDown}, orc.Intent)

	orc.Wait = 0
	f.step(1)
	assert.Equal(t, battle.IntentToward, orc.Intent.Kind, "keeps walking toward the source")
}

func TestStep_DisengagesBeyondPursuit(t *testing.T) {
	f := newPhaseFixture(t)
	orc := f.orc(t, 10, 0, 0)
	hero := f.hero(1, 1, 0)
	f.step(1)
	require.Equal(t, hero.ID, orc.TargetID)

	hero.Pos = battle.Point{X: 7}
	orc.Wait = 0
	f.step(1)
	assert.Zero(t, orc.TargetID)
	assert.Equal(t, battle.EngageIdle, orc.Engagement.State)
}

func TestStep_SupportHealsWithoutTarget(t *testing.T) {
	f := newPhaseFixture(t)
	hero := f.hero(1, 0, 0)
	hero.Stats.SetHP(30)
	cleric := f.ally(t, 2, clericAttr, "support", 2, 0)

	f.step(1)
	require.Len(t, f.rec.cues, 1)
	cue := f.rec.cues[0]
	assert.Equal(t, battle.CueSupportive, cue.Kind)
	assert.Equal(t, skHeal, cue.SkillID)
	assert.Equal(t, hero.ID, cue.TargetID)
	assert.Equal(t, 20, cleric.Wait)
}

func TestStep_LeashLocksStrayAlly(t *testing.T) {
	f := newPhaseFixture(t)
	f.sim.Posture = battle.PostureAggressive
	hero := f.hero(1, 0, 0)
	fighter := f.ally(t, 2, heroAttr, "basic_attack", 11, 0)
	f.orc(t, 10, 12, 0).Controller = nil

	f.step(1)
	assert.Equal(t, battle.EngageLocked, fighter.Engagement.State)
	assert.Zero(t, fighter.TargetID)
	assert.Equal(t, battle.IntentReturn, fighter.Intent.Kind)
	assert.Equal(t, hero.Pos, fighter.Intent.Dest)
	assert.Empty(t, f.rec.cues)

	fighter.Pos = battle.Point{X: 2}
	f.step(1)
	assert.NotEqual(t, battle.EngageLocked, fighter.Engagement.State)
}

func TestStep_ProximityFiltersSkills(t *testing.T) {
	f := newPhaseFixture(t)
	f.sim.Posture = battle.PostureAggressive
	f.hero(1, 0, 0)
	caster := f.ally(t, 2, heroAttr, "variety", 0, 1)
	orc := f.orc(t, 10, 3, 1)
	orc.Controller = nil

	f.step(1)
	require.Len(t, f.rec.cues, 1)
	assert.Equal(t, skBolt, f.rec.cues[0].SkillID, "slash is out of reach at distance 3")
	assert.Equal(t, heroAttr.MaxMP-10, caster.Stats.MP, "committing pays the cost")
}
