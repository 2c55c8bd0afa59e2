// Package reward runs the enumerated effects granted when a hostile is
// defeated. Effects never execute arbitrary code: amounts are damage-style
// formulas over the recipient (a) and the defeated unit (b).
package reward

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/kasuganosora/mvabs/game/battle"
	"github.com/kasuganosora/mvabs/resource"
	"go.uber.org/zap"
)

// Kind names a reward effect.
type Kind string

const (
	GrantSkill Kind = "grant_skill"
	GrantGold  Kind = "grant_gold"
	GrantExp   Kind = "grant_exp"
	AddState   Kind = "add_state"
)

var (
	ErrUnknownKind  = errors.New("reward: unknown effect kind")
	ErrNoRecipient  = errors.New("reward: no recipient")
	ErrUnknownSkill = errors.New("reward: unknown skill")
	ErrUnknownState = errors.New("reward: unknown state")
)

// Effect is one parameterized reward command.
type Effect struct {
	Kind    Kind
	SkillID int
	StateID int
	Amount  string
}

// FromAttrs converts configured reward rows into effects.
func FromAttrs(rows []resource.RewardAttr) []Effect {
	out := make([]Effect, 0, len(rows))
	for _, r := range rows {
		out = append(out, Effect{Kind: Kind(r.Kind), SkillID: r.SkillID, StateID: r.StateID, Amount: r.Amount})
	}
	return out
}

// Sink stores the durable part of a reward.
type Sink interface {
	LearnSkill(ctx context.Context, templateID, skillID int) error
	AddGold(ctx context.Context, party string, amount int64) error
	AddExp(ctx context.Context, party string, amount int64) error
}

// Target describes who receives a reward and what was defeated.
type Target struct {
	Party     string
	Recipient *battle.Unit
	Defeated  *battle.Unit
}

// Interpreter dispatches effects to a Sink.
type Interpreter struct {
	sink   Sink
	cat    battle.Catalog
	logger *zap.Logger
}

func New(sink Sink, cat battle.Catalog, logger *zap.Logger) *Interpreter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interpreter{sink: sink, cat: cat, logger: logger}
}

// Grant is the durable part of an effect with its amount already resolved.
// It holds no unit references, so it can be committed from any goroutine.
type Grant struct {
	Index      int
	Kind       Kind
	Party      string
	TemplateID int
	SkillID    int
	Amount     int64
}

// Run prepares and commits every effect in order. A failing effect is logged
// and skipped; the rest still run. Returns the number of effects applied.
func (in *Interpreter) Run(ctx context.Context, t Target, effects []Effect) int {
	grants, n := in.Prepare(t, effects)
	return n + in.Commit(ctx, grants)
}

// Prepare validates effects against t, applies the ones acting on the
// recipient unit and resolves the rest into grants for Commit. It touches the
// units in t, so call it from the goroutine that owns them. The second result
// counts the effects applied in place.
func (in *Interpreter) Prepare(t Target, effects []Effect) ([]Grant, int) {
	var grants []Grant
	applied := 0
	for i, e := range effects {
		g, err := in.safePrepare(t, e)
		if err != nil {
			in.fail(i, e.Kind, err)
			continue
		}
		if g == nil {
			applied++
			continue
		}
		g.Index = i
		grants = append(grants, *g)
	}
	return grants, applied
}

// Commit writes grants to the sink. Returns the number written.
func (in *Interpreter) Commit(ctx context.Context, grants []Grant) int {
	applied := 0
	for _, g := range grants {
		if err := in.safeCommit(ctx, g); err != nil {
			in.fail(g.Index, g.Kind, err)
			continue
		}
		applied++
	}
	return applied
}

func (in *Interpreter) fail(index int, kind Kind, err error) {
	in.logger.Warn("reward effect failed",
		zap.Int("index", index),
		zap.String("kind", string(kind)),
		zap.Error(err))
}

func (in *Interpreter) safePrepare(t Target, e Effect) (g *Grant, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reward: panic: %v", r)
		}
	}()
	return in.prepare(t, e)
}

func (in *Interpreter) safeCommit(ctx context.Context, g Grant) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reward: panic: %v", r)
		}
	}()
	switch g.Kind {
	case GrantSkill:
		return in.sink.LearnSkill(ctx, g.TemplateID, g.SkillID)
	case GrantGold:
		return in.sink.AddGold(ctx, g.Party, g.Amount)
	case GrantExp:
		return in.sink.AddExp(ctx, g.Party, g.Amount)
	}
	return fmt.Errorf("%w: %q", ErrUnknownKind, g.Kind)
}

// prepare returns a nil Grant for effects fully applied in place.
func (in *Interpreter) prepare(t Target, e Effect) (*Grant, error) {
	switch e.Kind {
	case GrantSkill:
		if t.Recipient == nil || t.Recipient.Attr == nil {
			return nil, ErrNoRecipient
		}
		if in.cat.Skill(e.SkillID) == nil {
			return nil, fmt.Errorf("%w: %d", ErrUnknownSkill, e.SkillID)
		}
		return &Grant{Kind: e.Kind, TemplateID: t.Recipient.Attr.ID, SkillID: e.SkillID}, nil
	case GrantGold, GrantExp:
		n, err := in.amount(t, e.Amount)
		if err != nil {
			return nil, err
		}
		return &Grant{Kind: e.Kind, Party: t.Party, Amount: n}, nil
	case AddState:
		if t.Recipient == nil {
			return nil, ErrNoRecipient
		}
		st := in.cat.State(e.StateID)
		if st == nil {
			return nil, fmt.Errorf("%w: %d", ErrUnknownState, e.StateID)
		}
		frames := st.Frames
		if frames <= 0 {
			frames = -1
		}
		t.Recipient.Stats.AddState(e.StateID, frames)
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
}

func (in *Interpreter) amount(t Target, formula string) (int64, error) {
	a, b := &battle.FormulaStats{}, &battle.FormulaStats{}
	if t.Recipient != nil {
		a = t.Recipient.Stats.FormulaStats()
	}
	if t.Defeated != nil {
		b = t.Defeated.Stats.FormulaStats()
	}
	v, err := battle.EvalFormula(formula, a, b)
	if err != nil {
		return 0, fmt.Errorf("reward: amount %q: %w", formula, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("reward: amount %q is not finite", formula)
	}
	v = math.Floor(v)
	switch {
	case v <= 0:
		return 0, nil
	case v >= math.MaxInt64:
		return math.MaxInt64, nil
	}
	return int64(v), nil
}
