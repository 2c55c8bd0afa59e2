package ai

// Status is the result of a behavior tree node tick.
type Status int

const (
	// StatusSuccess means a decision was written to the context.
	StatusSuccess Status = iota
	// StatusFailure means the node had nothing to offer; selectors move on.
	StatusFailure
	// StatusRunning means the unit deliberately waits this tick; selectors stop.
	StatusRunning
)

// Node is a single node in a behavior tree.
type Node interface {
	Tick(ctx *Context) Status
}

// ---- Composite nodes ----

// Selector succeeds as soon as one child succeeds (logical OR).
type Selector struct {
	Children []Node
}

func (s *Selector) Tick(ctx *Context) Status {
	for _, c := range s.Children {
		switch c.Tick(ctx) {
		case StatusSuccess:
			return StatusSuccess
		case StatusRunning:
			return StatusRunning
		}
	}
	return StatusFailure
}

// Sequence succeeds only when all children succeed (logical AND).
type Sequence struct {
	Children []Node
}

func (s *Sequence) Tick(ctx *Context) Status {
	for _, c := range s.Children {
		switch c.Tick(ctx) {
		case StatusFailure:
			return StatusFailure
		case StatusRunning:
			return StatusRunning
		}
	}
	return StatusSuccess
}

// ---- Leaf nodes ----

// ConditionNode evaluates a boolean predicate.
type ConditionNode struct {
	Fn func(*Context) bool
}

func (cn *ConditionNode) Tick(ctx *Context) Status {
	if cn.Fn(ctx) {
		return StatusSuccess
	}
	return StatusFailure
}

// ActionNode runs a choice function; a non-nil decision is written to the
// context and reported as success.
type ActionNode struct {
	Fn func(*Context) *Choice
}

func (an *ActionNode) Tick(ctx *Context) Status {
	c := an.Fn(ctx)
	if c == nil {
		return StatusFailure
	}
	ctx.Choice = c
	return StatusSuccess
}

// WaitNode imposes a wait and stops the tree without a decision.
type WaitNode struct {
	Frames func(*Context) int
}

func (wn *WaitNode) Tick(ctx *Context) Status {
	ctx.Wait = wn.Frames(ctx)
	return StatusRunning
}

// ---- BehaviorTree root ----

// BehaviorTree wraps the root node.
type BehaviorTree struct {
	Root Node
}

// Tick runs one decision of the behavior tree.
func (bt *BehaviorTree) Tick(ctx *Context) Status {
	if bt.Root == nil {
		return StatusFailure
	}
	return bt.Root.Tick(ctx)
}
