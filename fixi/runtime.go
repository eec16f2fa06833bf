package fixi

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Runtime binds an engine to one document. Every invocation inside a runtime
// takes the turn, so script code never runs concurrently with itself; async
// bodies and waits hand the turn back while they are parked.
type Runtime struct {
	engine    *Engine
	doc       Document
	globals   *Globals
	variables map[string]Value
	host      *Object
	turn      *turn
	log       zerolog.Logger

	mu      sync.Mutex
	subs    []Subscription
	pending []error
	tasks   sync.WaitGroup
}

// NewRuntime creates a runtime over doc. The engine registry is sealed from
// this point on.
func (e *Engine) NewRuntime(doc Document) *Runtime {
	e.sealed.Store(true)
	rt := &Runtime{
		engine:    e,
		doc:       doc,
		globals:   NewGlobals(),
		variables: make(map[string]Value),
		turn:      &turn{},
		log:       e.log,
	}
	rt.host = newHostObject()
	return rt
}

func (rt *Runtime) Engine() *Engine     { return rt.engine }
func (rt *Runtime) Document() Document  { return rt.doc }
func (rt *Runtime) Globals() *Globals   { return rt.globals }
func (rt *Runtime) HostObject() *Object { return rt.host }

// SetVariable binds a legacy variable consulted after locals and before
// globals. Call it before scripts run.
func (rt *Runtime) SetVariable(name string, val Value) {
	rt.turn.acquire()
	rt.variables[name] = val
	rt.turn.release()
}

// newFrame creates the top-level frame of an invocation.
func (rt *Runtime) newFrame(me Value) *Frame {
	frame := NewFrame(rt.globals, me)
	frame.variables = rt.variables
	frame.host = rt.host
	return frame
}

func (rt *Runtime) newExecution(ctx context.Context, entry string) *Execution {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Execution{
		engine:  rt.engine,
		runtime: rt,
		ctx:     ctx,
		log:     rt.log.With().Str("entry", entry).Logger(),
		quota:   rt.engine.config.StepQuota,
		entry:   entry,
	}
}

// Run executes cmds with me bound and returns the value of the last command,
// or the returned value.
func (rt *Runtime) Run(ctx context.Context, me Element, cmds []Command) (Value, error) {
	if err := rt.engine.CheckCommands(cmds); err != nil {
		return Undefined(), err
	}
	rt.turn.acquire()
	defer rt.turn.release()
	exec := rt.newExecution(ctx, "<run>")
	return exec.invoke(rt.newFrame(NewElement(me)), cmds)
}

// Eval evaluates a single expression with me bound.
func (rt *Runtime) Eval(ctx context.Context, expr Expression, me Element) (Value, error) {
	if err := rt.engine.CheckExpression(expr); err != nil {
		return Undefined(), err
	}
	rt.turn.acquire()
	defer rt.turn.release()
	exec := rt.newExecution(ctx, "<eval>")
	return exec.Evaluate(expr, rt.newFrame(NewElement(me)))
}

// Execute calls fn with a fresh execution and top-level frame while holding
// the turn. It is the entry point for hosts driving the command engine
// directly. fn must raise events through the commands it runs rather than
// Document.Dispatch, which would wait for the turn fn holds.
func (rt *Runtime) Execute(ctx context.Context, me Element, fn func(exec *Execution, frame *Frame) error) error {
	rt.turn.acquire()
	defer rt.turn.release()
	exec := rt.newExecution(ctx, "<execute>")
	frame := rt.newFrame(NewElement(me))
	if err := fn(exec, frame); err != nil {
		if sig, ok := asSignal(err); ok {
			markSignal(frame, sig)
			return nil
		}
		return err
	}
	return nil
}

// Install checks prog and attaches it to el: functions are bound in the
// globals, handlers are subscribed and init blocks run in order.
func (rt *Runtime) Install(ctx context.Context, el Element, prog *Program) error {
	if err := rt.engine.Check(prog); err != nil {
		return err
	}
	if rt.doc == nil && needsDocument(prog) {
		return newFault(ErrNoDocument, Position{}, "handlers need a document")
	}

	rt.turn.acquire()
	defer rt.turn.release()

	var inits []*InitFeature
	for _, feat := range prog.Features {
		switch f := feat.(type) {
		case *DefFeature:
			rt.globals.Set(f.Name, NewFunction(&Function{Name: f.Name, def: f}))
		case *InitFeature:
			inits = append(inits, f)
		}
	}
	for _, feat := range prog.Features {
		f, ok := feat.(*OnFeature)
		if !ok {
			continue
		}
		sub, err := rt.doc.Subscribe(el, f.Event, rt.listener(el, f))
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", f.Event, err)
		}
		rt.mu.Lock()
		rt.subs = append(rt.subs, sub)
		rt.mu.Unlock()
		rt.log.Debug().Str("event", f.Event).Str("element", describeElement(el)).Msg("handler installed")
	}

	var errs []error
	for _, init := range inits {
		exec := rt.newExecution(ctx, "init")
		if _, err := exec.invoke(rt.newFrame(NewElement(el)), init.Commands); err != nil {
			errs = append(errs, err)
		}
	}
	return combineErrors(errs)
}

func needsDocument(prog *Program) bool {
	for _, feat := range prog.Features {
		if _, ok := feat.(*OnFeature); ok {
			return true
		}
	}
	return false
}

// listener adapts a handler feature to the document. Events raised by this
// runtime's own scripts run the handler inline on the turn the sender holds.
// Any other dispatch takes the turn first, so a host must not call
// Document.Dispatch from inside Execute.
func (rt *Runtime) listener(el Element, feat *OnFeature) EventHandler {
	entry := "on " + feat.Event
	return func(ev *Event) {
		ctx := context.Background()
		depth := 1
		if ev.origin == rt {
			if ev.ctx != nil {
				ctx = ev.ctx
			}
			depth = ev.depth + 1
		} else {
			rt.turn.acquire()
			defer rt.turn.release()
		}

		exec := rt.newExecution(ctx, entry)
		exec.depth = depth
		if limit := rt.engine.config.RecursionLimit; depth > limit {
			rt.recordFault(exec, exec.faultAt(ErrRecursionLimit, feat.Pos(), "event %s nested more than %d handlers deep", feat.Event, limit))
			return
		}
		frame := rt.newFrame(NewElement(el))
		frame.SetEvent(ev)
		if feat.Filter != nil {
			ok, err := exec.evaluate(feat.Filter, frame)
			if err != nil {
				rt.recordFault(exec, err)
				return
			}
			if !ok.Truthy() {
				return
			}
		}
		if _, err := exec.invoke(frame, feat.Commands); err != nil {
			rt.recordFault(exec, err)
		}
	}
}

func (rt *Runtime) recordFault(exec *Execution, err error) {
	if _, ok := asSignal(err); ok {
		return
	}
	exec.log.Error().Err(err).Msg("script error")
	rt.mu.Lock()
	rt.pending = append(rt.pending, err)
	rt.mu.Unlock()
}

func (rt *Runtime) drainFaults() []error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	out := rt.pending
	rt.pending = nil
	return out
}

// Trigger dispatches name on el and returns the faults raised by handlers
// that ran.
func (rt *Runtime) Trigger(ctx context.Context, el Element, name string, detail Value) error {
	if rt.doc == nil {
		return newFault(ErrNoDocument, Position{}, "trigger %s: no document", name)
	}
	ev := NewEvent(name, el, detail)
	ev.origin = rt
	ev.ctx = ctx
	rt.turn.acquire()
	err := rt.doc.Dispatch(el, ev)
	rt.turn.release()
	return errors.Join(append([]error{err}, rt.drainFaults()...)...)
}

// spawn runs body on its own goroutine once it can take the turn.
func (rt *Runtime) spawn(ctx context.Context, entry string, frame *Frame, body []Command) {
	rt.tasks.Add(1)
	go func() {
		defer rt.tasks.Done()
		rt.turn.acquire()
		defer rt.turn.release()
		exec := rt.newExecution(ctx, entry)
		if _, err := exec.invoke(frame, body); err != nil {
			rt.recordFault(exec, err)
		}
	}()
}

// Wait blocks until every async task has finished and returns the faults
// recorded since the last Trigger or Wait.
func (rt *Runtime) Wait() error {
	rt.tasks.Wait()
	return combineErrors(rt.drainFaults())
}

// Close detaches every installed handler.
func (rt *Runtime) Close() {
	rt.mu.Lock()
	subs := rt.subs
	rt.subs = nil
	rt.mu.Unlock()
	if rt.doc == nil {
		return
	}
	for _, sub := range subs {
		rt.doc.Unsubscribe(sub)
	}
}

func describeElement(el Element) string {
	if el == nil {
		return "<nil>"
	}
	if s, ok := el.(fmt.Stringer); ok {
		return s.String()
	}
	return el.TagName()
}
