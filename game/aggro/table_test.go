package aggro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmount_ConcreteExample(t *testing.T) {
	cfg := Config{Base: 100, HPCoef: 1, PlayerRate: 1}
	h := NewHit()
	h.HPDamage = 40
	assert.Equal(t, 140.0, Amount(cfg, h))
}

func TestAmount_Order(t *testing.T) {
	cfg := Config{Base: 10, HPCoef: 1, MPCoef: 2, TPCoef: 3, DrainBonus: 0.5, PlayerRate: 0.5}
	h := Hit{
		HPDamage: 20, MPDamage: 5, TPDamage: 1, Drain: true,
		SkillBonus:        4,
		SkillRate:         2,
		AttackerOut:       []float64{1.5, 2},
		DefenderIn:        []float64{0.5},
		AttackerAggro:     3,
		AttackerIsPrimary: true,
	}
	// ((10 + 20 + 10 + 3 + 10) + 4) * 2 * 1.5 * 2 * 0.5 * 3 * 0.5
	assert.InDelta(t, 57*2*1.5*2*0.5*3*0.5, Amount(cfg, h), 1e-9)
}

func TestAmount_DrainOnlyCountsHP(t *testing.T) {
	cfg := Config{Base: 0, MPCoef: 1, DrainBonus: 10}
	h := NewHit()
	h.MPDamage = 7
	h.Drain = true
	assert.Equal(t, 7.0, Amount(cfg, h), "MP drain earns no drain bonus")
}

func TestAccumulate_Parry(t *testing.T) {
	cfg := DefaultConfig()
	def := NewTable(1, nil)
	att := NewTable(2, nil)

	h := NewHit()
	h.HPDamage = 999 // ignored on a parry
	h.Parried = true
	h.SkillBonus = 5
	Accumulate(cfg, def, att, h)

	assert.Equal(t, cfg.ParryDefender+5, def.Get(2))
	assert.Equal(t, cfg.ParryAttacker, att.Get(1))
}

func TestAccumulate_LockedTableUnchanged(t *testing.T) {
	locked := false
	def := NewTable(1, func() bool { return locked })
	att := NewTable(2, nil)
	cfg := DefaultConfig()

	h := NewHit()
	h.HPDamage = 10
	Accumulate(cfg, def, att, h)
	before := def.Entries()

	locked = true
	for i := 0; i < 5; i++ {
		h.Parried = i%2 == 0
		Accumulate(cfg, def, att, h)
	}
	def.Forget(2)
	def.Clear()
	assert.Equal(t, before, def.Entries())
}

func TestSelect_HighestWithClamp(t *testing.T) {
	tbl := NewTable(1, nil)
	tbl.Add(10, -30)
	tbl.Add(11, -5)
	tbl.Add(12, 40)

	id, ok := tbl.Select([]int64{10, 11, 12})
	require.True(t, ok)
	assert.Equal(t, int64(12), id)

	id, ok = tbl.Select([]int64{10, 11})
	require.True(t, ok)
	assert.Equal(t, int64(10), id, "negatives clamp to zero; first candidate wins the tie")

	_, ok = tbl.Select(nil)
	assert.False(t, ok)
}

func TestEntries_Sorted(t *testing.T) {
	tbl := NewTable(1, nil)
	tbl.Add(3, 5)
	tbl.Add(2, 9)
	tbl.Add(4, 5)
	assert.Equal(t, []Entry{{2, 9}, {3, 5}, {4, 5}}, tbl.Entries())
}
