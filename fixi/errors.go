package fixi

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownOperator   = errors.New("unknown operator")
	ErrUnboundFunction   = errors.New("unbound function")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrMissingCommand    = errors.New("missing command")
	ErrUnknownNode       = errors.New("unknown node")
	ErrNotIterable       = errors.New("value is not iterable")
	ErrNotAssignable     = errors.New("invalid assignment target")
	ErrNotConstructor    = errors.New("not a constructor")
	ErrStepQuotaExceeded = errors.New("step quota exceeded")
	ErrRecursionLimit    = errors.New("recursion limit exceeded")
	ErrRegistrySealed    = errors.New("expression registry is sealed")
	ErrNoDocument        = errors.New("no document")
)

type StackFrame struct {
	Function string
	Pos      Position
}

// Fault is an application error raised while checking or evaluating. Err is
// one of the exported sentinels so callers can use errors.Is.
type Fault struct {
	Err     error
	Message string
	Pos     Position
	Frames  []StackFrame
}

const (
	faultFrameHead = 8
	faultFrameTail = 8
)

func (f *Fault) Error() string {
	var b strings.Builder
	b.WriteString(f.Message)
	if f.Pos.Line > 0 {
		fmt.Fprintf(&b, " at %d:%d", f.Pos.Line, f.Pos.Column)
	}
	renderFrame := func(frame StackFrame) {
		if frame.Pos.Line > 0 {
			fmt.Fprintf(&b, "\n  at %s (%d:%d)", frame.Function, frame.Pos.Line, frame.Pos.Column)
		} else {
			fmt.Fprintf(&b, "\n  at %s", frame.Function)
		}
	}

	if len(f.Frames) <= faultFrameHead+faultFrameTail {
		for _, frame := range f.Frames {
			renderFrame(frame)
		}
		return b.String()
	}

	for _, frame := range f.Frames[:faultFrameHead] {
		renderFrame(frame)
	}
	omitted := len(f.Frames) - (faultFrameHead + faultFrameTail)
	fmt.Fprintf(&b, "\n  ... %d frames omitted ...", omitted)
	for _, frame := range f.Frames[len(f.Frames)-faultFrameTail:] {
		renderFrame(frame)
	}
	return b.String()
}

func (f *Fault) Unwrap() error { return f.Err }

// ThrownError is raised by the throw command and carries the thrown value.
type ThrownError struct {
	Value Value
	Pos   Position
}

func (e *ThrownError) Error() string {
	if obj := e.Value.Object(); obj != nil {
		if msg, ok := obj.Get("message"); ok {
			return fmt.Sprintf("uncaught %s: %s", obj.class, msg.String())
		}
	}
	return "uncaught " + e.Value.String()
}

func newFault(sentinel error, pos Position, format string, args ...any) *Fault {
	return &Fault{Err: sentinel, Message: fmt.Sprintf(format, args...), Pos: pos}
}

func (exec *Execution) faultAt(sentinel error, pos Position, format string, args ...any) error {
	fault := newFault(sentinel, pos, format, args...)
	fault.Frames = exec.stackFrames(pos)
	return fault
}

// wrapError attaches position and frames to plain errors returned by host
// functions and registry entries. Faults, thrown values, interrupts and
// context errors pass through untouched.
func (exec *Execution) wrapError(err error, pos Position) error {
	if err == nil {
		return nil
	}
	var fault *Fault
	var thrown *ThrownError
	var intr *interrupt
	if errors.As(err, &fault) || errors.As(err, &thrown) || errors.As(err, &intr) || isHostControlError(err) {
		return err
	}
	wrapped := &Fault{Err: err, Message: err.Error(), Pos: pos}
	wrapped.Frames = exec.stackFrames(pos)
	return wrapped
}

func (exec *Execution) stackFrames(pos Position) []StackFrame {
	if exec == nil {
		return nil
	}
	frames := make([]StackFrame, 0, len(exec.callStack)+1)
	if len(exec.callStack) == 0 {
		return append(frames, StackFrame{Function: exec.entry, Pos: pos})
	}
	current := exec.callStack[len(exec.callStack)-1]
	frames = append(frames, StackFrame{Function: current.Function, Pos: pos})
	for i := len(exec.callStack) - 1; i >= 0; i-- {
		frames = append(frames, exec.callStack[i])
	}
	return frames
}

func combineErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return errors.Join(errs...)
}
