package battle

import (
	"errors"
	"math/rand"
	"strings"

	"github.com/kasuganosora/mvabs/resource"
	"go.uber.org/zap"
)

// Posture is the team-wide engagement posture of allies.
type Posture int

const (
	PosturePassive Posture = iota
	PostureAggressive
)

var ErrInvalidPosture = errors.New("battle: invalid posture")

// ParsePosture accepts "passive" or "aggressive".
func ParsePosture(s string) (Posture, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "passive":
		return PosturePassive, nil
	case "aggressive":
		return PostureAggressive, nil
	}
	return PosturePassive, ErrInvalidPosture
}

func (p Posture) String() string {
	if p == PostureAggressive {
		return "aggressive"
	}
	return "passive"
}

// Catalog resolves attribute rows. *resource.Loader implements it.
type Catalog interface {
	Skill(id int) *resource.SkillAttr
	State(id int) *resource.StateAttr
	Unit(id int) *resource.UnitAttr
}

// Geometry measures distance between tiles.
type Geometry interface {
	Distance(a, b Point) float64
}

// TileGeometry measures Manhattan distance on the tile grid.
type TileGeometry struct{}

func (TileGeometry) Distance(a, b Point) float64 {
	return float64(abs(a.X-b.X) + abs(a.Y-b.Y))
}

// Notifier receives fire-and-forget notifications produced during a frame.
type Notifier interface {
	TargetIndicator(unitID int64)
	Decided(cue Cue)
	Engaged(unitID, targetID int64)
}

type nopNotifier struct{}

func (nopNotifier) TargetIndicator(int64) {}
func (nopNotifier) Decided(Cue)           {}
func (nopNotifier) Engaged(int64, int64)  {}

// Registry holds the active combatants of a map in spawn order.
type Registry struct {
	order []Combatant
	byID  map[int64]Combatant
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[int64]Combatant)}
}

// Add appends c; re-adding an existing ID replaces it in place.
func (r *Registry) Add(c Combatant) {
	id := c.Base().ID
	if _, ok := r.byID[id]; ok {
		for i, e := range r.order {
			if e.Base().ID == id {
				r.order[i] = c
			}
		}
	} else {
		r.order = append(r.order, c)
	}
	r.byID[id] = c
}

// Remove deletes the combatant and returns it.
func (r *Registry) Remove(id int64) Combatant {
	c, ok := r.byID[id]
	if !ok {
		return nil
	}
	delete(r.byID, id)
	for i, e := range r.order {
		if e.Base().ID == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return c
}

func (r *Registry) Get(id int64) Combatant { return r.byID[id] }

// All returns the combatants in spawn order. The slice must not be modified.
func (r *Registry) All() []Combatant { return r.order }

func (r *Registry) Len() int { return len(r.order) }

// Tuning holds the numeric constants the AI core reads.
type Tuning struct {
	HealThreshold     float64 // HP rate below which an ally needs healing
	BuffRefreshFrames int     // a state with this many frames left is refreshed
	IdleWait          int     // wait after an empty decision
	DoNothingWait     int
	MinCastWait       int
	PrimaryHitFrames  int // frames "the primary unit just landed a hit" stays true
	LeashRadius       float64
	RecoverRadius     float64
	CloseRatio        float64 // distance below proximity*CloseRatio is "close"
	HostileSpacing    float64
	AllySpacing       float64
}

// DefaultTuning returns the values used when configuration is silent.
func DefaultTuning() Tuning {
	return Tuning{
		HealThreshold:     0.6,
		BuffRefreshFrames: 60,
		IdleWait:          15,
		DoNothingWait:     30,
		MinCastWait:       1,
		PrimaryHitFrames:  60,
		LeashRadius:       10,
		RecoverRadius:     3,
		CloseRatio:        0.5,
		HostileSpacing:    1,
		AllySpacing:       2,
	}
}

// Sim is the simulation context of one map. It is owned by the scheduler and
// passed by reference to every policy and selector; nothing reads it
// concurrently.
type Sim struct {
	Frame   uint64
	Posture Posture
	// PrimaryID is the party's player-driven unit, 0 when absent.
	PrimaryID int64
	// PrimaryHitFrames counts down after the primary unit lands a hit.
	PrimaryHitFrames int

	Units     *Registry
	Catalog   Catalog
	Geometry  Geometry
	Estimator Estimator
	Tuning    Tuning
	Rand      *rand.Rand
	Logger    *zap.Logger
	Notify    Notifier
}

// NewSim creates a context with tile geometry, a formula estimator and
// no-op notifications.
func NewSim(cat Catalog, rng *rand.Rand, logger *zap.Logger) *Sim {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sim{
		Units:     NewRegistry(),
		Catalog:   cat,
		Geometry:  TileGeometry{},
		Estimator: &FormulaEstimator{Catalog: cat},
		Tuning:    DefaultTuning(),
		Rand:      rng,
		Logger:    logger,
		Notify:    nopNotifier{},
	}
}

// Primary returns the party's primary unit, or nil.
func (s *Sim) Primary() *Ally {
	if s.PrimaryID == 0 {
		return nil
	}
	a, _ := s.Units.Get(s.PrimaryID).(*Ally)
	return a
}

// Distance is shorthand for the geometry distance between two units.
func (s *Sim) Distance(a, b *Unit) float64 {
	return s.Geometry.Distance(a.Pos, b.Pos)
}

// Friends returns every living combatant on self's team within radius of
// self, self included, in registry order.
func (s *Sim) Friends(self Combatant, radius float64) []Combatant {
	u := self.Base()
	var out []Combatant
	for _, c := range s.Units.All() {
		b := c.Base()
		if b.Team != u.Team || !b.Alive() {
			continue
		}
		if b.ID != u.ID && s.Distance(u, b) > radius {
			continue
		}
		out = append(out, c)
	}
	return out
}

// SenseRadius returns how far a unit scans for allies to support.
func SenseRadius(u *Unit) float64 {
	if u.Attr == nil {
		return 0
	}
	return u.Attr.Sense()
}

// Skill looks up a skill through the catalog.
func (s *Sim) Skill(id int) *resource.SkillAttr {
	if s.Catalog == nil || id == 0 {
		return nil
	}
	return s.Catalog.Skill(id)
}

// Usable filters skills to those the unit can afford and that are not
// excluded from AI use.
func (s *Sim) Usable(u *Unit, skills []int) []int {
	var out []int
	for _, id := range skills {
		sk := s.Skill(id)
		if sk == nil || sk.AIExclude {
			continue
		}
		if !u.Stats.CanPay(sk.MPCost, sk.TPCost) {
			continue
		}
		out = append(out, id)
	}
	return out
}

// WarnUnknown logs an unrecognized combatant variant reaching shared logic.
func (s *Sim) WarnUnknown(where string, c Combatant) {
	s.Logger.Warn("unknown combatant kind",
		zap.String("where", where),
		zap.Int64("unit_id", c.Base().ID),
		zap.String("kind", string(c.Kind())))
}
