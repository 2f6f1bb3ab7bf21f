package attach

// Request describes a value to attach.
type Request struct {
	// Value is a detached value.
	Value any

	// Into is an instance to copy state into, nil to let strategy resolve or create one.
	Into any

	// Owner is a managed instance that references Value.
	Owner any

	// OwnerField is a field of Owner that holds Value.
	OwnerField string

	// Hint is strategy specific.
	Hint any

	// Explicit is true for values passed to Attach or AttachAll, false for values reached by cascade.
	Explicit bool
}

// Strategy copies state of a detached value onto its managed counterpart and returns the managed one.
//
// Strategy attaches referenced values with Walker.AttachValue and should record the managed
// counterpart with Walker.SetAttachedCopy before doing so, to let cycles resolve to it.
// Strategy reports stale state with *OptimisticError and callback failures with *CallbackError.
type Strategy interface {
	Attach(w *Walker, req Request) (any, error)
}

// StrategyFunc implements Strategy.
type StrategyFunc func(w *Walker, req Request) (any, error)

// Attach implements Strategy.
func (f StrategyFunc) Attach(w *Walker, req Request) (any, error) {
	return f(w, req)
}

// Attachable is implemented by values that carry own attach strategy.
type Attachable interface {
	AttachStrategy() Strategy
}

// Referrer is implemented by values that expose references for cascading.
type Referrer interface {
	References() []any
}

// Op is a lifecycle operation.
type Op int

// OpAttach is an attach operation.
const OpAttach Op = 1

// Action is a bitmask of steps to perform for a value.
type Action int

// Actions.
const (
	// ActionNone leaves value as is.
	ActionNone Action = 0
	// ActionRun attaches value with a strategy.
	ActionRun Action = 1 << iota
	// ActionCascade attaches references of value.
	ActionCascade
)

// Behavior decides what to do with a value for an operation.
type Behavior func(op Op, value any) Action
