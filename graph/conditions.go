package graph

// StateCompletedNode reports true once its source state's normalized time
// has advanced far enough that a transition of the configured duration,
// started now, finishes exactly as the state's content ends.
type StateCompletedNode struct {
	base

	SourceState        Ref
	TransitionDuration float32
	DurationNode       Ref
}

// NewStateCompletedNode creates a completion guard for the state at
// sourceState with a fixed transition duration in seconds.
func NewStateCompletedNode(ref Ref, sourceState Ref, transitionDuration float32) *StateCompletedNode {
	return &StateCompletedNode{
		base:               base{ref: ref},
		SourceState:        sourceState,
		TransitionDuration: transitionDuration,
		DurationNode:       InvalidRef,
	}
}

func (n *StateCompletedNode) Initialize(ctx *Context, initialSyncTime SyncTime) {}
func (n *StateCompletedNode) Shutdown(ctx *Context)                            {}

func (n *StateCompletedNode) GetValueBool(ctx *Context) bool {
	src := ctx.Instance.StateByRef(n.SourceState)
	stateDuration := src.Duration(ctx)
	if stateDuration <= 0 {
		return false
	}
	transitionDuration := n.TransitionDuration
	if n.DurationNode != InvalidRef {
		transitionDuration = ctx.Instance.EvalFloatOr(ctx, n.DurationNode, transitionDuration)
	}
	return src.CurrentTimePercentage(ctx) >= 1-transitionDuration/stateDuration
}

// TimeMetric selects which timing quantity a TimeConditionNode compares.
type TimeMetric int

const (
	// MetricPercentageThroughState is the state's normalized [0,1) time.
	MetricPercentageThroughState TimeMetric = iota
	// MetricPercentageThroughSyncEvent is the normalized position within the
	// state's current sync event.
	MetricPercentageThroughSyncEvent
	// MetricLoopCount is the number of times the state's content wrapped.
	MetricLoopCount
	// MetricElapsedTime is wall-clock seconds since the state was entered.
	MetricElapsedTime
)

// CompareOp is the comparison a TimeConditionNode applies.
type CompareOp int

const (
	OpLess CompareOp = iota
	OpLessEqual
	OpGreater
	OpGreaterEqual
)

// Apply evaluates x OP comparand.
func (op CompareOp) Apply(x, comparand float32) bool {
	switch op {
	case OpLess:
		return x < comparand
	case OpLessEqual:
		return x <= comparand
	case OpGreaterEqual:
		return x >= comparand
	default:
		return x > comparand
	}
}

// TimeConditionNode compares a timing metric of its source state against a
// comparand, either a compiled-in constant or a float value node.
type TimeConditionNode struct {
	base

	SourceState   Ref
	Metric        TimeMetric
	Op            CompareOp
	Comparand     float32
	ComparandNode Ref
}

// NewTimeConditionNode creates a timing guard over the state at
// sourceState.
func NewTimeConditionNode(ref Ref, sourceState Ref, metric TimeMetric, op CompareOp, comparand float32) *TimeConditionNode {
	return &TimeConditionNode{
		base:          base{ref: ref},
		SourceState:   sourceState,
		Metric:        metric,
		Op:            op,
		Comparand:     comparand,
		ComparandNode: InvalidRef,
	}
}

func (n *TimeConditionNode) Initialize(ctx *Context, initialSyncTime SyncTime) {}
func (n *TimeConditionNode) Shutdown(ctx *Context)                            {}

func (n *TimeConditionNode) GetValueBool(ctx *Context) bool {
	src := ctx.Instance.StateByRef(n.SourceState)

	var x float32
	switch n.Metric {
	case MetricPercentageThroughSyncEvent:
		_, x = src.SyncEventPercentage(ctx)
	case MetricLoopCount:
		x = float32(src.LoopCount(ctx))
	case MetricElapsedTime:
		x = src.ElapsedTime()
	default:
		x = src.CurrentTimePercentage(ctx)
	}

	comparand := n.Comparand
	if n.ComparandNode != InvalidRef {
		comparand = ctx.Instance.EvalFloatOr(ctx, n.ComparandNode, comparand)
	}
	return n.Op.Apply(x, comparand)
}
