package fixi

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// turn serializes script execution inside a runtime. It is held for the
// length of an invocation and released only at suspension points.
type turn struct {
	mu sync.Mutex
}

func (t *turn) acquire() { t.mu.Lock() }
func (t *turn) release() { t.mu.Unlock() }

// Execution is the state of one invocation: a handler run, an init block, a
// direct Run call or an async task.
type Execution struct {
	engine    *Engine
	runtime   *Runtime
	ctx       context.Context
	log       zerolog.Logger
	quota     int
	steps     int
	callStack []StackFrame
	entry     string
	// depth counts the handlers this invocation is nested in.
	depth int
}

func (exec *Execution) registry() *Registry { return exec.engine.registry }

// newEvent creates an event dispatched from inside this invocation. Its
// handlers run inline on the turn already held and inherit the context.
func (exec *Execution) newEvent(name string, target Element, detail Value) *Event {
	ev := NewEvent(name, target, detail)
	ev.origin = exec.runtime
	ev.ctx = exec.ctx
	ev.depth = exec.depth
	return ev
}

// Context returns the context the invocation runs under.
func (exec *Execution) Context() context.Context { return exec.ctx }

// Runtime returns the runtime the invocation belongs to.
func (exec *Execution) Runtime() *Runtime { return exec.runtime }

// Logger returns the invocation logger.
func (exec *Execution) Logger() *zerolog.Logger { return &exec.log }

func (exec *Execution) document() (Document, error) {
	if exec.runtime == nil || exec.runtime.doc == nil {
		return nil, newFault(ErrNoDocument, Position{}, "no document attached to runtime")
	}
	return exec.runtime.doc, nil
}

func (exec *Execution) step() error {
	exec.steps++
	if exec.quota > 0 && exec.steps > exec.quota {
		return exec.faultAt(ErrStepQuotaExceeded, Position{}, "step quota exceeded (%d)", exec.quota)
	}
	if exec.ctx != nil {
		select {
		case <-exec.ctx.Done():
			return exec.ctx.Err()
		default:
		}
	}
	return nil
}

// suspend runs fn with the turn released so other invocations can proceed.
func (exec *Execution) suspend(fn func() error) error {
	if exec.runtime == nil {
		return fn()
	}
	t := exec.runtime.turn
	t.release()
	defer t.acquire()
	return fn()
}

// yield gives other invocations a chance to run between loop iterations.
func (exec *Execution) yield() error {
	tick := exec.engine.config.Tick
	if err := exec.suspend(func() error { return tick(exec.ctx) }); err != nil {
		return err
	}
	if exec.ctx != nil {
		return exec.ctx.Err()
	}
	return nil
}

func (exec *Execution) pushFrame(name string, pos Position) error {
	if len(exec.callStack) >= exec.engine.config.RecursionLimit {
		return exec.faultAt(ErrRecursionLimit, pos, "recursion depth exceeded (limit %d)", exec.engine.config.RecursionLimit)
	}
	exec.callStack = append(exec.callStack, StackFrame{Function: name, Pos: pos})
	return nil
}

func (exec *Execution) popFrame() {
	if len(exec.callStack) == 0 {
		return
	}
	exec.callStack = exec.callStack[:len(exec.callStack)-1]
}

// invoke runs cmds at an invocation boundary. Return and exit yield their
// value; break, continue and halt end the invocation quietly.
func (exec *Execution) invoke(frame *Frame, cmds []Command) (Value, error) {
	val, sig, err := exec.RunCommands(cmds, frame)
	if err != nil {
		return Undefined(), err
	}
	switch sig.Kind {
	case SignalNone:
		return val, nil
	case SignalReturn, SignalExit:
		return sig.Value, nil
	default:
		exec.log.Debug().Str("signal", sig.Kind.String()).Str("entry", exec.entry).Msg("signal absorbed at invocation boundary")
		return val, nil
	}
}

func isHostControlError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
