// Package aggro implements per-observer threat tables.
package aggro

import "sort"

// Config holds the accumulation constants.
type Config struct {
	Base       float64 `mapstructure:"base"`
	HPCoef     float64 `mapstructure:"hp_coef"`
	MPCoef     float64 `mapstructure:"mp_coef"`
	TPCoef     float64 `mapstructure:"tp_coef"`
	DrainBonus float64 `mapstructure:"drain_bonus"` // per HP point drained
	// ParryDefender is added to the defender's aggro toward the attacker on a parry.
	ParryDefender float64 `mapstructure:"parry_defender"`
	// ParryAttacker is added to the attacker's aggro toward the defender on a parry.
	ParryAttacker float64 `mapstructure:"parry_attacker"`
	// PlayerRate scales aggro caused by the party's primary unit.
	PlayerRate float64 `mapstructure:"player_rate"`
}

// DefaultConfig returns the stock constants.
func DefaultConfig() Config {
	return Config{
		Base:          100,
		HPCoef:        1,
		MPCoef:        1,
		TPCoef:        1,
		DrainBonus:    1,
		ParryDefender: -50,
		ParryAttacker: 50,
		PlayerRate:    0.5,
	}
}

// Table maps target IDs to the aggro its owner holds toward them.
type Table struct {
	owner  int64
	locked func() bool
	values map[int64]float64
}

// NewTable creates an empty table for owner. locked is consulted on every
// mutation; while it returns true the table accepts no changes.
func NewTable(owner int64, locked func() bool) *Table {
	if locked == nil {
		locked = func() bool { return false }
	}
	return &Table{owner: owner, locked: locked, values: make(map[int64]float64)}
}

func (t *Table) Owner() int64 { return t.owner }

// Locked reports whether the owner currently refuses aggro changes.
func (t *Table) Locked() bool { return t.locked() }

// Get returns the aggro toward target, 0 when unknown.
func (t *Table) Get(target int64) float64 { return t.values[target] }

// Add adds delta toward target. Returns false when the table is locked.
func (t *Table) Add(target int64, delta float64) bool {
	if t.locked() {
		return false
	}
	t.values[target] += delta
	return true
}

// Forget drops the entry for target (defeated or left the map).
func (t *Table) Forget(target int64) {
	if t.locked() {
		return
	}
	delete(t.values, target)
}

// Clear empties the table.
func (t *Table) Clear() {
	if t.locked() {
		return
	}
	t.values = make(map[int64]float64)
}

func (t *Table) Len() int { return len(t.values) }

// Entry is one (target, value) pair.
type Entry struct {
	TargetID int64   `json:"target_id"`
	Value    float64 `json:"value"`
}

// Entries returns the table sorted by value, highest first.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.values))
	for id, v := range t.values {
		out = append(out, Entry{TargetID: id, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].TargetID < out[j].TargetID
	})
	return out
}

// Select returns the candidate with the highest aggro. Negative values count
// as zero, so a candidate is always returned when any is given; ties go to
// the earliest candidate.
func (t *Table) Select(candidates []int64) (int64, bool) {
	if len(candidates) == 0 {
		return 0, false
	}
	best, bestV := candidates[0], clampZero(t.values[candidates[0]])
	for _, id := range candidates[1:] {
		if v := clampZero(t.values[id]); v > bestV {
			best, bestV = id, v
		}
	}
	return best, true
}

func clampZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
