package battle

import "math"

// CriticalMultiplier matches the RMMV critical hit rule.
const CriticalMultiplier = 3.0

// Estimator predicts the outcome of a skill without executing it.
type Estimator interface {
	// Estimate returns the amount skillID would deal (or restore) to target.
	Estimate(attacker, target *Unit, skillID int, critical bool) float64
}

// FormulaEstimator evaluates the skill's damage formula against the two units'
// current stats. Variance and element rates are ignored.
type FormulaEstimator struct {
	Catalog Catalog
}

func (fe *FormulaEstimator) Estimate(attacker, target *Unit, skillID int, critical bool) float64 {
	if fe.Catalog == nil {
		return 0
	}
	sk := fe.Catalog.Skill(skillID)
	if sk == nil || sk.Damage.Formula == "" {
		return 0
	}
	v, err := EvalFormula(sk.Damage.Formula, attacker.Stats.FormulaStats(), target.Stats.FormulaStats())
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if critical {
		v *= CriticalMultiplier
	}
	return math.Max(0, math.Floor(v))
}

// ExpectedDamage blends the normal and critical estimates by the attacker's
// critical rate.
func ExpectedDamage(est Estimator, attacker, target *Unit, skillID int) float64 {
	cr := math.Min(1, math.Max(0, attacker.Stats.CritRate))
	normal := est.Estimate(attacker, target, skillID, false)
	crit := est.Estimate(attacker, target, skillID, true)
	return normal*(1-cr) + crit*cr
}
