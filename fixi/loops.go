package fixi

import (
	"math"
	"sync/atomic"
)

// LoopStatus tells whether a loop ran to its end (including break) or ended
// because a signal it does not consume passed through it.
type LoopStatus int

const (
	LoopCompleted LoopStatus = iota
	LoopPropagated
)

func (s LoopStatus) String() string {
	if s == LoopPropagated {
		return "propagated"
	}
	return "completed"
}

// LoopResult describes a finished loop. Skipped lists the iterations ended
// by continue. Bounded is set when the safety bound stopped the loop.
type LoopResult struct {
	Status     LoopStatus
	Iterations int
	Skipped    []int
	Bounded    bool
	Signal     Signal
	Value      Value
}

// loopRun drives the iterations of one loop.
type loopRun struct {
	exec   *Execution
	frame  *Frame
	body   []Command
	index  string
	result LoopResult
}

// iterate runs one pass of the body in a fresh child frame and reports
// whether the loop must stop.
func (r *loopRun) iterate(i int, bind func(child *Frame)) (bool, error) {
	child := r.frame.Child(Undefined())
	if r.index != "" {
		child.locals[r.index] = NewInt(i)
	}
	if bind != nil {
		bind(child)
	}
	r.result.Iterations++
	val, sig, err := r.exec.RunCommands(r.body, child)
	if err != nil {
		return true, err
	}
	switch sig.Kind {
	case SignalNone:
		r.result.Value = val
		return false, nil
	case SignalContinue:
		r.result.Skipped = append(r.result.Skipped, i)
		return false, nil
	case SignalBreak:
		r.result.Value = val
		return true, nil
	default:
		r.result.Status = LoopPropagated
		r.result.Signal = sig
		r.result.Value = val
		return true, nil
	}
}

func (r *loopRun) bound(kind string) {
	r.result.Bounded = true
	r.exec.log.Warn().Str("loop", kind).Int("limit", r.exec.engine.config.LoopLimit).Msg("loop stopped at safety bound")
}

// RunLoop executes a loop command in frame. Each iteration gets a child
// frame; break and continue are consumed here, any other signal is
// reported with LoopPropagated, including a halt raised while evaluating a
// loop expression.
func (exec *Execution) RunLoop(cmd Command, frame *Frame) (LoopResult, error) {
	res, err := exec.runLoop(cmd, frame)
	if sig, ok := asSignal(err); ok {
		markSignal(frame, sig)
		res.Status = LoopPropagated
		res.Signal = sig
		res.Value = Undefined()
		return res, nil
	}
	return res, err
}

func (exec *Execution) runLoop(cmd Command, frame *Frame) (LoopResult, error) {
	switch c := cmd.(type) {
	case *ForCommand:
		return exec.runFor(c, frame)
	case *RepeatTimes:
		return exec.runTimes(c, frame)
	case *RepeatWhile:
		return exec.runWhile(c, frame)
	case *RepeatUntilEvent:
		return exec.runUntilEvent(c, frame)
	case *RepeatForever:
		return exec.runForever(c, frame)
	default:
		return LoopResult{}, exec.faultAt(ErrInvalidArgument, nodePos(cmd), "%T is not a loop", cmd)
	}
}

func (exec *Execution) runFor(c *ForCommand, frame *Frame) (LoopResult, error) {
	source, err := exec.evaluate(c.Source, frame)
	if err != nil {
		return LoopResult{}, err
	}
	items, err := exec.iterate(source, c.Pos())
	if err != nil {
		return LoopResult{}, err
	}
	run := &loopRun{exec: exec, frame: frame, body: c.Body, index: c.Index}
	for i, item := range items {
		stop, err := run.iterate(i, func(child *Frame) {
			if c.Variable == "" {
				child.it = item
				return
			}
			child.locals[c.Variable] = item
		})
		if err != nil {
			return run.result, err
		}
		if stop {
			break
		}
	}
	return run.result, nil
}

func (exec *Execution) runTimes(c *RepeatTimes, frame *Frame) (LoopResult, error) {
	count, err := exec.evaluate(c.Count, frame)
	if err != nil {
		return LoopResult{}, err
	}
	n := math.Floor(toNumber(count))
	run := &loopRun{exec: exec, frame: frame, body: c.Body, index: c.Index}
	if math.IsNaN(n) || n <= 0 {
		return run.result, nil
	}
	for i := 0; float64(i) < n; i++ {
		stop, err := run.iterate(i, nil)
		if err != nil {
			return run.result, err
		}
		if stop {
			break
		}
	}
	return run.result, nil
}

func (exec *Execution) runWhile(c *RepeatWhile, frame *Frame) (LoopResult, error) {
	kind := "while"
	if c.Until {
		kind = "until"
	}
	limit := exec.engine.config.LoopLimit
	run := &loopRun{exec: exec, frame: frame, body: c.Body, index: c.Index}
	for i := 0; ; i++ {
		cond, err := exec.evaluate(c.Condition, frame)
		if err != nil {
			return run.result, err
		}
		if cond.Truthy() == c.Until {
			break
		}
		if i >= limit {
			run.bound(kind)
			break
		}
		stop, err := run.iterate(i, nil)
		if err != nil {
			return run.result, err
		}
		if stop {
			break
		}
	}
	return run.result, nil
}

// runUntilEvent repeats the body until the event fires on the target (me by
// default). The turn is yielded after every iteration so the event can be
// delivered; the subscription is removed on every exit path.
func (exec *Execution) runUntilEvent(c *RepeatUntilEvent, frame *Frame) (LoopResult, error) {
	doc, err := exec.document()
	if err != nil {
		return LoopResult{}, err
	}
	var target Element
	if c.Target == nil {
		target = firstElement(frame.me)
	} else {
		val, err := exec.evaluate(c.Target, frame)
		if err != nil {
			return LoopResult{}, err
		}
		target = firstElement(val)
	}
	if target == nil {
		return LoopResult{}, exec.faultAt(ErrInvalidArgument, c.Pos(), "repeat until %s: no target element", c.Event)
	}

	var fired atomic.Bool
	sub, err := doc.Subscribe(target, c.Event, func(*Event) { fired.Store(true) })
	if err != nil {
		return LoopResult{}, exec.wrapError(err, c.Pos())
	}
	defer doc.Unsubscribe(sub)

	limit := exec.engine.config.LoopLimit
	run := &loopRun{exec: exec, frame: frame, body: c.Body, index: c.Index}
	for i := 0; ; i++ {
		if fired.Load() {
			break
		}
		if i >= limit {
			run.bound("until " + c.Event)
			break
		}
		stop, err := run.iterate(i, nil)
		if err != nil {
			return run.result, err
		}
		if stop {
			break
		}
		if err := exec.yield(); err != nil {
			return run.result, err
		}
	}
	return run.result, nil
}

func (exec *Execution) runForever(c *RepeatForever, frame *Frame) (LoopResult, error) {
	limit := exec.engine.config.LoopLimit
	run := &loopRun{exec: exec, frame: frame, body: c.Body, index: c.Index}
	for i := 0; ; i++ {
		if i >= limit {
			run.bound("forever")
			break
		}
		stop, err := run.iterate(i, nil)
		if err != nil {
			return run.result, err
		}
		if stop {
			break
		}
	}
	return run.result, nil
}
