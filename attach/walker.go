package attach

import (
	"context"
	"reflect"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
	"github.com/jmgilman/go/errors"
)

const (
	// MetricAttached is a name of a metric to count values attached with a strategy.
	MetricAttached = "attach_node"

	// MetricAttachFailed is a name of a metric to count failed attach attempts.
	MetricAttachFailed = "attach_failed"
)

// Config controls Walker.
type Config struct {
	// Strategy attaches values that do not implement Attachable, required.
	Strategy Strategy

	// Behavior decides actions per value, ActionRun for every value by default.
	Behavior Behavior

	// FailFast makes callback failures propagate, they are logged and swallowed otherwise.
	FailFast bool

	// CopyNew tells strategies to attach copies of new values instead of values themselves.
	CopyNew bool

	// Identity maps a value to its identity in visited set. By default pointers, maps and channels
	// are tracked by reference and other values are not tracked, so equal values are never merged.
	// Untracked values (false result) are attached every time they are met.
	Identity func(value any) (any, bool)

	// BeforeAttach is called by FireBeforeAttach.
	BeforeAttach func(value any)

	// AfterAttach is called once per successful Attach or AttachAll with attached values.
	AfterAttach func(batch []any)

	// Name is added to logs and stats.
	Name string

	// Logger collects messages with context.
	Logger ctxd.Logger

	// Stats tracks stats.
	Stats stats.Tracker
}

// Walker attaches detached object graphs, each value is attached at most once per walker.
//
// Walker is intended for a single top-level operation and is not safe for concurrent use.
type Walker struct {
	config   Config
	visited  map[any]struct{}
	attached map[any]any
	journal  []any // Identities marked visited during current top-level call.
	log      ctxd.Logger
	stat     stats.Tracker
}

// New creates a Walker.
func New(config Config) (*Walker, error) {
	if config.Strategy == nil {
		return nil, errors.Wrap(ErrNilArgument, errors.CodeInvalidInput, "attach strategy is required")
	}

	if config.Identity == nil {
		config.Identity = referenceIdentity
	}

	w := &Walker{
		config:   config,
		visited:  make(map[any]struct{}),
		attached: make(map[any]any),
	}

	w.log = config.Logger
	if w.log == nil {
		w.log = ctxd.NoOpLogger{}
	}

	w.stat = config.Stats
	if w.stat == nil {
		w.stat = stats.NoOp{}
	}

	return w, nil
}

// FailFast tells if callback failures propagate.
func (w *Walker) FailFast() bool {
	return w.config.FailFast
}

// CopyNew tells if new values should be copied.
func (w *Walker) CopyNew() bool {
	return w.config.CopyNew
}

// Behavior returns configured behavior, it runs every value if not configured.
func (w *Walker) Behavior() Behavior {
	if w.config.Behavior == nil {
		return func(Op, any) Action { return ActionRun }
	}

	return w.config.Behavior
}

// Strategy returns default strategy.
func (w *Walker) Strategy() Strategy {
	return w.config.Strategy
}

// FireBeforeAttach notifies BeforeAttach callback.
func (w *Walker) FireBeforeAttach(value any) {
	if w.config.BeforeAttach != nil {
		w.config.BeforeAttach(value)
	}
}

// AttachedCopy returns recorded managed counterpart of a value.
func (w *Walker) AttachedCopy(value any) (any, bool) {
	id, tracked := w.config.Identity(value)
	if !tracked {
		return nil, false
	}

	cp, found := w.attached[id]

	return cp, found
}

// SetAttachedCopy records managed counterpart of a value.
//
// The record is discarded if the value fails to attach.
func (w *Walker) SetAttachedCopy(value, attached any) {
	if id, tracked := w.config.Identity(value); tracked {
		w.mark(id)
		w.attached[id] = attached
	}
}

// Visited tells if value was met by walker.
func (w *Walker) Visited(value any) bool {
	id, tracked := w.config.Identity(value)
	if !tracked {
		return false
	}

	_, found := w.visited[id]

	return found
}

// Visit marks value as met, an unattached visited value resolves to itself.
func (w *Walker) Visit(value any) {
	if id, tracked := w.config.Identity(value); tracked {
		w.mark(id)
	}
}

// Reset forgets visited values and attached copies.
func (w *Walker) Reset() {
	clear(w.visited)
	clear(w.attached)
	w.journal = w.journal[:0]
}

// mark adds id to visited set and journal.
func (w *Walker) mark(id any) {
	if _, found := w.visited[id]; found {
		return
	}

	w.visited[id] = struct{}{}
	w.journal = append(w.journal, id)
}

// rollback forgets values visited since journal position, so that failed values are attached again next time.
func (w *Walker) rollback(pos int) {
	for _, id := range w.journal[pos:] {
		delete(w.visited, id)
		delete(w.attached, id)
	}

	w.journal = w.journal[:pos]
}

// Attach attaches root value, slices, arrays and maps are attached element-wise.
//
// Callback failure is returned with FailFast, otherwise result is nil without error.
func (w *Walker) Attach(root any) (any, error) {
	if root == nil {
		return nil, ErrNilArgument
	}

	w.journal = w.journal[:0]

	res, err := w.attachRoot(root)
	if err != nil {
		return nil, w.callbackFailure(err)
	}

	w.afterAttach([]any{res})

	return res, nil
}

// AttachAll attaches each instance and returns attached values in the same order.
//
// Optimistic failures are collected over the whole batch and reported together with an aggregate
// *OptimisticError, other failures stop the batch. Callback failure is returned with FailFast,
// otherwise result is nil without error.
func (w *Walker) AttachAll(instances []any) ([]any, error) {
	if instances == nil {
		return nil, ErrNilArgument
	}

	var (
		result   = make([]any, len(instances))
		failures []error
	)

	w.journal = w.journal[:0]

	for i, inst := range instances {
		res, err := w.attachRoot(inst)
		if err == nil {
			result[i] = res

			continue
		}

		var (
			cbErr  *CallbackError
			optErr *OptimisticError
		)

		switch {
		case errors.As(err, &cbErr):
			return nil, w.callbackFailure(err)
		case errors.As(err, &optErr):
			failures = append(failures, err)
		default:
			return nil, err
		}
	}

	if len(failures) > 0 {
		w.log.Debug(context.Background(), "optimistic failures in attached batch",
			"name", w.config.Name,
			"failed", len(failures),
			"total", len(instances))

		return nil, errors.WrapWithContext(&OptimisticError{Nested: failures}, errors.CodeConflict,
			"failed to attach instances", map[string]interface{}{
				"failed": len(failures),
				"total":  len(instances),
			})
	}

	w.afterAttach(result)

	return result, nil
}

// AttachValue attaches a single value.
//
// Nil value (including typed nil) resolves to nil, a value with recorded copy resolves to the copy,
// a visited value without copy (cycle in progress) resolves to itself.
//
// On failure the value and values visited while attaching it are forgotten.
func (w *Walker) AttachValue(req Request) (res any, err error) {
	if isNil(req.Value) {
		return nil, nil
	}

	id, tracked := w.config.Identity(req.Value)
	if tracked {
		if cp, found := w.attached[id]; found {
			return cp, nil
		}

		if _, found := w.visited[id]; found {
			return req.Value, nil
		}
	}

	pos := len(w.journal)

	defer func() {
		if err != nil {
			w.rollback(pos)
		}
	}()

	action := w.Behavior()(OpAttach, req.Value)

	if action&ActionRun == 0 {
		if action&ActionCascade != 0 {
			if tracked {
				w.mark(id)
			}

			if err := w.cascade(req); err != nil {
				return nil, err
			}
		}

		return req.Value, nil
	}

	if tracked {
		w.mark(id)
	}

	strategy := w.config.Strategy
	if a, ok := req.Value.(Attachable); ok {
		if s := a.AttachStrategy(); s != nil {
			strategy = s
		}
	}

	ctx := context.Background()

	res, err = strategy.Attach(w, req)
	if err != nil {
		w.stat.Add(ctx, MetricAttachFailed, 1, "name", w.config.Name)

		return nil, err
	}

	if tracked {
		if _, found := w.attached[id]; !found {
			w.attached[id] = res
		}
	}

	w.stat.Add(ctx, MetricAttached, 1, "name", w.config.Name)

	return res, nil
}

func (w *Walker) cascade(req Request) error {
	r, ok := req.Value.(Referrer)
	if !ok {
		return nil
	}

	for _, ref := range r.References() {
		if _, err := w.AttachValue(Request{Value: ref, Owner: req.Value}); err != nil {
			return err
		}
	}

	return nil
}

func (w *Walker) attachRoot(root any) (any, error) {
	v := reflect.ValueOf(root)

	switch v.Kind() { //nolint:exhaustive
	case reflect.Slice, reflect.Array:
		return w.attachSequence(v)
	case reflect.Map:
		return w.attachMap(v)
	default:
		return w.AttachValue(Request{Value: root, Explicit: true})
	}
}

// attachSequence returns a slice of the same element type if attached values allow.
func (w *Walker) attachSequence(v reflect.Value) (any, error) {
	var (
		elemType = v.Type().Elem()
		typed    = reflect.MakeSlice(reflect.SliceOf(elemType), v.Len(), v.Len())
		generic  = make([]any, v.Len())
		isTyped  = true
	)

	for i := 0; i < v.Len(); i++ {
		res, err := w.AttachValue(Request{Value: v.Index(i).Interface(), Explicit: true})
		if err != nil {
			return nil, err
		}

		generic[i] = res
		isTyped = isTyped && assign(typed.Index(i), res)
	}

	if isTyped {
		return typed.Interface(), nil
	}

	return generic, nil
}

// attachMap attaches map values and keeps keys.
func (w *Walker) attachMap(v reflect.Value) (any, error) {
	var (
		elemType = v.Type().Elem()
		typed    = reflect.MakeMapWithSize(v.Type(), v.Len())
		generic  = make(map[any]any, v.Len())
		isTyped  = true
	)

	iter := v.MapRange()
	for iter.Next() {
		res, err := w.AttachValue(Request{Value: iter.Value().Interface(), Explicit: true})
		if err != nil {
			return nil, err
		}

		generic[iter.Key().Interface()] = res

		if isTyped {
			elem := reflect.New(elemType).Elem()
			if isTyped = assign(elem, res); isTyped {
				typed.SetMapIndex(iter.Key(), elem)
			}
		}
	}

	if isTyped {
		return typed.Interface(), nil
	}

	return generic, nil
}

func assign(dst reflect.Value, value any) bool {
	if value == nil {
		dst.Set(reflect.Zero(dst.Type()))

		return true
	}

	rv := reflect.ValueOf(value)
	if !rv.Type().AssignableTo(dst.Type()) {
		return false
	}

	dst.Set(rv)

	return true
}

func (w *Walker) callbackFailure(err error) error {
	var cbErr *CallbackError

	if !errors.As(err, &cbErr) {
		return err
	}

	if w.config.FailFast {
		return errors.Wrap(err, CodeAttachAborted, "attach aborted by callback")
	}

	w.log.Warn(context.Background(), "attach callback failed",
		"name", w.config.Name,
		"error", err)

	return nil
}

func (w *Walker) afterAttach(batch []any) {
	if w.config.AfterAttach != nil {
		w.config.AfterAttach(batch)
	}
}

func isNil(value any) bool {
	if value == nil {
		return true
	}

	v := reflect.ValueOf(value)

	switch v.Kind() { //nolint:exhaustive
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.Slice, reflect.Interface, reflect.UnsafePointer:
		return v.IsNil()
	default:
		return false
	}
}

type mapIdentity struct {
	t reflect.Type
	p uintptr
}

// referenceIdentity tracks pointers, maps and channels by reference, other values are not tracked.
func referenceIdentity(value any) (any, bool) {
	v := reflect.ValueOf(value)

	switch v.Kind() { //nolint:exhaustive
	case reflect.Map:
		if v.IsNil() {
			return nil, false
		}

		return mapIdentity{t: v.Type(), p: v.Pointer()}, true
	case reflect.Ptr, reflect.Chan, reflect.UnsafePointer:
		if v.IsNil() {
			return nil, false
		}

		return value, true
	default:
		return nil, false
	}
}
