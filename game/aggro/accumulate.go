package aggro

// Hit is the aggro-relevant part of a resolved skill. Use NewHit for a hit
// with neutral multipliers.
type Hit struct {
	HPDamage, MPDamage, TPDamage float64
	Drain                        bool // HP drain; MP and TP drains earn no bonus
	Parried                      bool

	SkillBonus float64
	SkillRate  float64

	// AttackerOut holds the outgoing aggro rate of every active attacker state.
	AttackerOut []float64
	// DefenderIn holds the incoming aggro rate of every active defender state.
	DefenderIn []float64
	// AttackerAggro is the attacker's general attractiveness.
	AttackerAggro     float64
	AttackerIsPrimary bool
}

// NewHit returns a hit with every multiplier at 1.
func NewHit() Hit {
	return Hit{SkillRate: 1, AttackerAggro: 1}
}

// Amount computes the aggro the defender gains toward the attacker.
// The order of terms matters: everything after the additive part is a
// multiplier.
func Amount(cfg Config, h Hit) float64 {
	var v float64
	if h.Parried {
		v = cfg.ParryDefender
	} else {
		v = cfg.Base
		v += h.HPDamage * cfg.HPCoef
		v += h.MPDamage * cfg.MPCoef
		v += h.TPDamage * cfg.TPCoef
		if h.Drain && h.HPDamage > 0 {
			v += h.HPDamage * cfg.DrainBonus
		}
	}
	v += h.SkillBonus
	v *= h.SkillRate
	for _, r := range h.AttackerOut {
		v *= r
	}
	for _, r := range h.DefenderIn {
		v *= r
	}
	v *= h.AttackerAggro
	if h.AttackerIsPrimary {
		v *= cfg.PlayerRate
	}
	return v
}

// Accumulate applies h: the defender's table gains Amount toward attacker, and
// on a parry the attacker's table gains the flat parry amount toward the
// defender. Locked tables are left untouched.
func Accumulate(cfg Config, defender, attacker *Table, h Hit) {
	defender.Add(attacker.owner, Amount(cfg, h))
	if h.Parried {
		attacker.Add(defender.owner, cfg.ParryAttacker)
	}
}
