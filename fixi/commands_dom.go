package fixi

import (
	"context"
	"math"
	"strings"
	"time"
)

// runPut places content. Into a variable or property it assigns; into an
// element it goes through the document placement.
func (exec *Execution) runPut(c *PutCommand, frame *Frame) (Value, Signal, error) {
	content, err := exec.evaluate(c.Value, frame)
	if err != nil {
		return Undefined(), noSignal, err
	}
	if c.Placement.Kind == PlaceInner {
		switch t := c.Target.(type) {
		case *MemberAccess, *Possessive, *PropertyOf:
			return content, noSignal, exec.assign(t, content, frame)
		case *Identifier:
			cur, _, err := exec.resolveIdentifier(t, frame)
			if err != nil {
				return Undefined(), noSignal, err
			}
			if cur.kind != KindElement && !cur.IsCollection() {
				return content, noSignal, exec.assign(t, content, frame)
			}
		}
	}
	doc, err := exec.document()
	if err != nil {
		return Undefined(), noSignal, err
	}
	elems, err := exec.targets(c.Target, frame)
	if err != nil {
		return Undefined(), noSignal, err
	}
	for _, el := range elems {
		if c.Placement.Kind == PlaceCustom {
			if c.Placement.Apply == nil {
				return Undefined(), noSignal, exec.faultAt(ErrInvalidArgument, c.Pos(), "custom placement has no routine")
			}
			err = c.Placement.Apply(doc, el, content)
		} else {
			err = doc.Mutate(el, c.Placement.Kind, content)
		}
		if err != nil {
			return Undefined(), noSignal, exec.wrapError(err, c.Pos())
		}
	}
	return content, noSignal, nil
}

func (exec *Execution) attributeValue(ref *AttributeRef, frame *Frame) (string, error) {
	if ref.Value == nil {
		return "", nil
	}
	val, err := exec.evaluate(ref.Value, frame)
	if err != nil {
		return "", err
	}
	return val.String(), nil
}

func (exec *Execution) runAdd(c *AddCommand, frame *Frame) error {
	var attr string
	if c.Attribute != nil {
		var err error
		if attr, err = exec.attributeValue(c.Attribute, frame); err != nil {
			return err
		}
	}
	return exec.eachTarget(c.Target, frame, c.Pos(), func(doc Document, el Element) error {
		for _, cls := range c.Classes {
			if err := addClass(doc, el, cls); err != nil {
				return err
			}
		}
		if c.Attribute != nil {
			return doc.SetAttribute(el, c.Attribute.Name, attr)
		}
		return nil
	})
}

func (exec *Execution) runRemove(c *RemoveCommand, frame *Frame) error {
	return exec.eachTarget(c.Target, frame, c.Pos(), func(doc Document, el Element) error {
		if len(c.Classes) == 0 && c.Attribute == nil {
			return doc.Remove(el)
		}
		for _, cls := range c.Classes {
			if err := removeClass(doc, el, cls); err != nil {
				return err
			}
		}
		if c.Attribute != nil {
			return doc.RemoveAttribute(el, c.Attribute.Name)
		}
		return nil
	})
}

func (exec *Execution) runToggle(c *ToggleCommand, frame *Frame) error {
	var attr string
	if c.Attribute != nil {
		var err error
		if attr, err = exec.attributeValue(c.Attribute, frame); err != nil {
			return err
		}
	}
	return exec.eachTarget(c.Target, frame, c.Pos(), func(doc Document, el Element) error {
		for _, cls := range c.Classes {
			if err := toggleClass(doc, el, cls); err != nil {
				return err
			}
		}
		if c.Attribute == nil {
			return nil
		}
		if doc.HasAttribute(el, c.Attribute.Name) {
			return doc.RemoveAttribute(el, c.Attribute.Name)
		}
		return doc.SetAttribute(el, c.Attribute.Name, attr)
	})
}

// runSend dispatches the event on each target. Handlers run before send
// returns.
func (exec *Execution) runSend(c *SendCommand, frame *Frame) error {
	detail := Undefined()
	if c.Detail != nil {
		var err error
		if detail, err = exec.evaluate(c.Detail, frame); err != nil {
			return err
		}
	}
	return exec.eachTarget(c.Target, frame, c.Pos(), func(doc Document, el Element) error {
		return doc.Dispatch(el, exec.newEvent(c.Event, el, detail))
	})
}

// runWait suspends the invocation for a duration or until an event fires.
// The received event becomes it.
func (exec *Execution) runWait(c *WaitCommand, frame *Frame) (Value, Signal, error) {
	if c.Event == "" {
		d, err := exec.waitDuration(c.Duration, frame)
		if err != nil {
			return Undefined(), noSignal, err
		}
		err = exec.suspend(func() error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
				return nil
			case <-exec.ctx.Done():
				return exec.ctx.Err()
			}
		})
		return Undefined(), noSignal, err
	}

	doc, err := exec.document()
	if err != nil {
		return Undefined(), noSignal, err
	}
	elems, err := exec.targets(c.Target, frame)
	if err != nil {
		return Undefined(), noSignal, err
	}
	if len(elems) == 0 {
		return Undefined(), noSignal, exec.faultAt(ErrInvalidArgument, c.Pos(), "wait for %s: no target element", c.Event)
	}
	received := make(chan *Event, 1)
	sub, err := doc.Subscribe(elems[0], c.Event, func(ev *Event) {
		select {
		case received <- ev:
		default:
		}
	})
	if err != nil {
		return Undefined(), noSignal, exec.wrapError(err, c.Pos())
	}
	defer doc.Unsubscribe(sub)

	var got *Event
	err = exec.suspend(func() error {
		ctx := exec.ctx
		if c.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.Timeout)
			defer cancel()
		}
		select {
		case got = <-received:
			return nil
		case <-ctx.Done():
			if exec.ctx.Err() != nil {
				return exec.ctx.Err()
			}
			return nil
		}
	})
	if err != nil || got == nil {
		return Undefined(), noSignal, err
	}
	frame.it = eventValue(got)
	return frame.it, noSignal, nil
}

// waitDuration reads a duration: numbers are milliseconds, strings accept
// Go duration syntax with a bare number meaning milliseconds.
func (exec *Execution) waitDuration(expr Expression, frame *Frame) (time.Duration, error) {
	val, err := exec.evaluate(expr, frame)
	if err != nil {
		return 0, err
	}
	var d time.Duration
	switch val.kind {
	case KindNumber:
		d = time.Duration(val.Number() * float64(time.Millisecond))
	case KindString:
		text := strings.TrimSpace(val.String())
		if n := parseNumber(text); !math.IsNaN(n) {
			d = time.Duration(n * float64(time.Millisecond))
			break
		}
		if d, err = time.ParseDuration(text); err != nil {
			return 0, exec.faultAt(ErrInvalidArgument, nodePos(expr), "invalid duration %q", text)
		}
	default:
		return 0, exec.faultAt(ErrInvalidArgument, nodePos(expr), "invalid duration %s", val.kind)
	}
	if d < 0 {
		d = 0
	}
	return d, nil
}
