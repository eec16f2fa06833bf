package fixi

import "strings"

// RunCommands executes cmds in order in frame. It stops at the first active
// signal, marks the frame's flags and hands the signal to the caller along
// with the value of the last command that completed.
func (exec *Execution) RunCommands(cmds []Command, frame *Frame) (Value, Signal, error) {
	result := Undefined()
	for _, cmd := range cmds {
		if err := exec.step(); err != nil {
			return Undefined(), noSignal, err
		}
		val, sig, err := exec.runCommand(cmd, frame)
		if err != nil {
			if sig, ok := asSignal(err); ok {
				markSignal(frame, sig)
				return result, sig, nil
			}
			return Undefined(), noSignal, err
		}
		result = val
		if sig.Active() {
			markSignal(frame, sig)
			return result, sig, nil
		}
	}
	return result, noSignal, nil
}

// optionalValue evaluates e, or yields undefined when e is nil.
func (exec *Execution) optionalValue(e Expression, frame *Frame) (Value, error) {
	if e == nil {
		return Undefined(), nil
	}
	return exec.evaluate(e, frame)
}

func markSignal(frame *Frame, sig Signal) {
	switch sig.Kind {
	case SignalBreak:
		frame.flags.Breaking = true
	case SignalContinue:
		frame.flags.Continuing = true
	case SignalReturn, SignalExit:
		frame.flags.Returning = true
	case SignalHalt:
		frame.flags.Halted = true
	}
}

func (exec *Execution) runCommand(cmd Command, frame *Frame) (Value, Signal, error) {
	switch c := cmd.(type) {
	case nil:
		return Undefined(), noSignal, exec.faultAt(ErrMissingCommand, Position{}, "missing command")
	case *ExprCommand:
		val, err := exec.evaluate(c.Expr, frame)
		if err != nil {
			return Undefined(), noSignal, err
		}
		frame.it = val
		return val, noSignal, nil
	case *SetCommand:
		val, err := exec.evaluate(c.Value, frame)
		if err != nil {
			return Undefined(), noSignal, err
		}
		return val, noSignal, exec.assign(c.Target, val, frame)
	case *CallCommand:
		val, err := exec.evaluate(c.Expr, frame)
		if err != nil {
			return Undefined(), noSignal, err
		}
		frame.it = val
		return val, noSignal, nil
	case *LogCommand:
		vals, err := exec.evalArgs(c.Values, frame)
		if err != nil {
			return Undefined(), noSignal, err
		}
		exec.logValues(vals)
		if len(vals) == 0 {
			return Undefined(), noSignal, nil
		}
		return vals[len(vals)-1], noSignal, nil
	case *ReturnCommand:
		val, err := exec.optionalValue(c.Value, frame)
		if err != nil {
			return Undefined(), noSignal, err
		}
		return val, Signal{Kind: SignalReturn, Value: val}, nil
	case *ExitCommand:
		val, err := exec.optionalValue(c.Value, frame)
		if err != nil {
			return Undefined(), noSignal, err
		}
		return val, Signal{Kind: SignalExit, Value: val}, nil
	case *HaltCommand:
		if frame.event != nil {
			frame.event.StopPropagation()
			frame.event.PreventDefault()
		}
		if c.TheEvent {
			return Undefined(), noSignal, nil
		}
		return Undefined(), Signal{Kind: SignalHalt}, nil
	case *BreakCommand:
		return Undefined(), Signal{Kind: SignalBreak}, nil
	case *ContinueCommand:
		return Undefined(), Signal{Kind: SignalContinue}, nil
	case *ThrowCommand:
		val, err := exec.evaluate(c.Value, frame)
		if err != nil {
			return Undefined(), noSignal, err
		}
		return Undefined(), noSignal, &ThrownError{Value: val, Pos: c.Pos()}
	case *IfCommand:
		res, err := exec.RunIf(c, frame)
		return res.Value, res.Signal, err
	case *UnlessCommand:
		res, err := exec.RunUnless(c, frame)
		return res.Value, res.Signal, err
	case *ForCommand, *RepeatTimes, *RepeatWhile, *RepeatUntilEvent, *RepeatForever:
		res, err := exec.RunLoop(c, frame)
		if err != nil {
			return Undefined(), noSignal, err
		}
		return res.Value, res.Signal, nil
	case *TellCommand:
		return exec.runTell(c, frame)
	case *AsyncCommand:
		exec.runAsync(c, frame)
		return Undefined(), noSignal, nil
	case *WaitCommand:
		return exec.runWait(c, frame)
	case *SendCommand:
		return Undefined(), noSignal, exec.runSend(c, frame)
	case *PutCommand:
		return exec.runPut(c, frame)
	case *AddCommand:
		return Undefined(), noSignal, exec.runAdd(c, frame)
	case *RemoveCommand:
		return Undefined(), noSignal, exec.runRemove(c, frame)
	case *ToggleCommand:
		return Undefined(), noSignal, exec.runToggle(c, frame)
	case *ShowCommand:
		return Undefined(), noSignal, exec.eachTarget(c.Target, frame, c.Pos(), func(doc Document, el Element) error {
			return setStyle(doc, el, "display", c.Display)
		})
	case *HideCommand:
		return Undefined(), noSignal, exec.eachTarget(c.Target, frame, c.Pos(), func(doc Document, el Element) error {
			return setStyle(doc, el, "display", "none")
		})
	case *IncrementCommand:
		val, err := exec.runStep(c.Target, c.By, 1, frame, c.Pos())
		return val, noSignal, err
	case *DecrementCommand:
		val, err := exec.runStep(c.Target, c.By, -1, frame, c.Pos())
		return val, noSignal, err
	default:
		return Undefined(), noSignal, exec.faultAt(ErrUnknownNode, cmd.Pos(), "unsupported command %T", cmd)
	}
}

// targets resolves a command target to elements. A nil target means you when
// it is bound to an element, else me.
func (exec *Execution) targets(target Expression, frame *Frame) ([]Element, error) {
	var val Value
	if target == nil {
		val = frame.me
		if frame.you.kind == KindElement {
			val = frame.you
		}
	} else {
		var err error
		if val, err = exec.evaluate(target, frame); err != nil {
			return nil, err
		}
	}
	return exec.elementsOf(val, nodePos(target))
}

func nodePos(n Node) Position {
	if n == nil {
		return Position{}
	}
	return n.Pos()
}

func (exec *Execution) elementsOf(val Value, pos Position) ([]Element, error) {
	switch val.kind {
	case KindElement:
		return []Element{val.Element()}, nil
	case KindArray:
		out := make([]Element, 0, len(val.Items()))
		for _, item := range val.Items() {
			if el := item.Element(); el != nil {
				out = append(out, el)
			}
		}
		return out, nil
	case KindString:
		doc, err := exec.document()
		if err != nil {
			return nil, err
		}
		elems, err := doc.QueryAll(val.String())
		return elems, exec.wrapError(err, pos)
	case KindUndefined, KindNull:
		return nil, nil
	default:
		return nil, exec.faultAt(ErrInvalidArgument, pos, "%s is not an element", val.kind)
	}
}

func (exec *Execution) eachTarget(target Expression, frame *Frame, pos Position, fn func(doc Document, el Element) error) error {
	doc, err := exec.document()
	if err != nil {
		return err
	}
	elems, err := exec.targets(target, frame)
	if err != nil {
		return err
	}
	for _, el := range elems {
		if err := fn(doc, el); err != nil {
			return exec.wrapError(err, pos)
		}
	}
	return nil
}

// runStep backs increment and decrement. A missing or non-numeric current
// value counts as zero.
func (exec *Execution) runStep(target, by Expression, sign float64, frame *Frame, pos Position) (Value, error) {
	cur, err := exec.evaluate(target, frame)
	if err != nil {
		return Undefined(), err
	}
	amount := 1.0
	if by != nil {
		v, err := exec.evaluate(by, frame)
		if err != nil {
			return Undefined(), err
		}
		amount = toNumber(v)
	}
	n := toNumber(cur)
	if cur.IsNil() || (cur.kind == KindString && strings.TrimSpace(cur.String()) == "") {
		n = 0
	}
	next := NewNumber(n + sign*amount)
	if err := exec.assign(target, next, frame); err != nil {
		return Undefined(), err
	}
	return next, nil
}
