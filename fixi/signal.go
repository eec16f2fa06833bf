package fixi

import "errors"

// SignalKind enumerates the non-local exits a command can produce.
type SignalKind int

const (
	SignalNone SignalKind = iota
	SignalBreak
	SignalContinue
	SignalReturn
	SignalHalt
	SignalExit
)

func (k SignalKind) String() string {
	switch k {
	case SignalNone:
		return "none"
	case SignalBreak:
		return "break"
	case SignalContinue:
		return "continue"
	case SignalReturn:
		return "return"
	case SignalHalt:
		return "halt"
	case SignalExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Signal is an expected control-flow exit. It travels beside errors, never
// through them.
type Signal struct {
	Kind  SignalKind
	Value Value
}

var noSignal = Signal{}

func (s Signal) Active() bool { return s.Kind != SignalNone }

// loopSignal reports whether the nearest loop consumes s.
func (s Signal) loopSignal() bool {
	return s.Kind == SignalBreak || s.Kind == SignalContinue
}

// interrupt carries a Halt out of an expression (a function called from an
// expression halted). The command engine turns it back into a Signal at the
// next command boundary, so it never reaches a caller as an error.
type interrupt struct {
	signal Signal
}

func (i *interrupt) Error() string { return "signal " + i.signal.Kind.String() }

// asSignal unwraps the signal carried by an interrupt.
func asSignal(err error) (Signal, bool) {
	var intr *interrupt
	if errors.As(err, &intr) {
		return intr.signal, true
	}
	return noSignal, false
}
