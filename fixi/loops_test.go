package fixi

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func letters(names ...string) *ArrayLiteral {
	elems := make([]Expression, len(names))
	for i, n := range names {
		elems[i] = str(n)
	}
	return &ArrayLiteral{Elements: elems}
}

func push(list string, val Expression) Command {
	return expr(call(member(id(list), "push"), val))
}

func itemStrings(t *testing.T, frame *Frame, name string) []string {
	t.Helper()
	val, ok := frame.Get(name, ScopeLocal)
	if !ok {
		t.Fatalf("%s not bound", name)
	}
	out := make([]string, 0, len(val.Items()))
	for _, item := range val.Items() {
		out = append(out, item.String())
	}
	return out
}

func runLoop(t *testing.T, rt *Runtime, me Element, setup func(frame *Frame), loop Command, check func(res LoopResult, frame *Frame)) {
	t.Helper()
	execute(t, rt, me, func(exec *Execution, frame *Frame) error {
		if setup != nil {
			setup(frame)
		}
		res, err := exec.RunLoop(loop, frame)
		if err != nil {
			return err
		}
		check(res, frame)
		return nil
	})
}

func withList(name string) func(frame *Frame) {
	return func(frame *Frame) { frame.SetLocal(name, NewArray(nil)) }
}

func TestForInBreakStopsAfterMatch(t *testing.T) {
	rt, _ := newTestRuntime(t)
	loop := &ForCommand{
		Variable: "x",
		Source:   letters("a", "b", "c", "d", "e"),
		Body: []Command{
			push("seen", id("x")),
			&IfCommand{Condition: bin("is", id("x"), str("c")), Then: []Command{&BreakCommand{}}},
		},
	}
	runLoop(t, rt, nil, withList("seen"), loop, func(res LoopResult, frame *Frame) {
		if res.Status != LoopCompleted {
			t.Fatalf("expected completed, got %s", res.Status)
		}
		if res.Iterations != 3 {
			t.Fatalf("expected 3 iterations, got %d", res.Iterations)
		}
		if diff := cmp.Diff([]string{"a", "b", "c"}, itemStrings(t, frame, "seen")); diff != "" {
			t.Fatalf("history mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestForInContinueRecordsSkippedIterations(t *testing.T) {
	rt, _ := newTestRuntime(t)
	loop := &ForCommand{
		Variable: "x",
		Index:    "i",
		Source:   letters("a", "b", "c", "d", "e"),
		Body: []Command{
			push("ran", id("x")),
			&IfCommand{
				Condition: bin("==", bin("%", id("i"), num(2)), num(0)),
				Then:      []Command{&ContinueCommand{}},
			},
			push("after", id("x")),
		},
	}
	runLoop(t, rt, nil, func(frame *Frame) {
		frame.SetLocal("ran", NewArray(nil))
		frame.SetLocal("after", NewArray(nil))
	}, loop, func(res LoopResult, frame *Frame) {
		if res.Status != LoopCompleted || res.Iterations != 5 {
			t.Fatalf("unexpected result %+v", res)
		}
		if diff := cmp.Diff([]int{0, 2, 4}, res.Skipped); diff != "" {
			t.Fatalf("skipped mismatch (-want +got):\n%s", diff)
		}
		if got := itemStrings(t, frame, "ran"); len(got) != 5 {
			t.Fatalf("every body should start, got %v", got)
		}
		if diff := cmp.Diff([]string{"b", "d"}, itemStrings(t, frame, "after")); diff != "" {
			t.Fatalf("commands after continue mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestForInWithoutVariableBindsIt(t *testing.T) {
	rt, _ := newTestRuntime(t)
	loop := &ForCommand{
		Source: letters("x", "y"),
		Body:   []Command{push("seen", &ContextReference{Kind: ContextIt})},
	}
	runLoop(t, rt, nil, withList("seen"), loop, func(res LoopResult, frame *Frame) {
		if diff := cmp.Diff([]string{"x", "y"}, itemStrings(t, frame, "seen")); diff != "" {
			t.Fatalf("it binding mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestForInOverObjectKeys(t *testing.T) {
	rt, _ := newTestRuntime(t)
	obj := &ObjectLiteral{Properties: []ObjectProperty{{Key: "b", Value: num(1)}, {Key: "a", Value: num(2)}}}
	loop := &ForCommand{Variable: "k", Source: obj, Body: []Command{push("keys", id("k"))}}
	runLoop(t, rt, nil, withList("keys"), loop, func(res LoopResult, frame *Frame) {
		if diff := cmp.Diff([]string{"b", "a"}, itemStrings(t, frame, "keys")); diff != "" {
			t.Fatalf("key order mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestForInLoopVariableStaysInLoopScope(t *testing.T) {
	rt, _ := newTestRuntime(t)
	loop := &ForCommand{Variable: "x", Source: letters("a"), Body: []Command{expr(id("x"))}}
	runLoop(t, rt, nil, nil, loop, func(res LoopResult, frame *Frame) {
		if _, ok := frame.Get("x", ScopeLocal); ok {
			t.Fatalf("loop variable leaked into the enclosing frame")
		}
	})
}

func TestReturnInsideLoopPropagates(t *testing.T) {
	rt, _ := newTestRuntime(t)
	loop := &ForCommand{
		Variable: "x",
		Source:   letters("a", "b"),
		Body:     []Command{&ReturnCommand{Value: num(7)}},
	}
	runLoop(t, rt, nil, nil, loop, func(res LoopResult, frame *Frame) {
		if res.Status != LoopPropagated {
			t.Fatalf("expected propagated, got %s", res.Status)
		}
		if res.Signal.Kind != SignalReturn || res.Signal.Value.Number() != 7 {
			t.Fatalf("unexpected signal %+v", res.Signal)
		}
		if res.Iterations != 1 {
			t.Fatalf("expected 1 iteration, got %d", res.Iterations)
		}
	})
}

func TestRepeatTimes(t *testing.T) {
	rt, _ := newTestRuntime(t)

	loop := &RepeatTimes{Count: num(5), Index: "i", Body: []Command{push("seen", id("i"))}}
	runLoop(t, rt, nil, withList("seen"), loop, func(res LoopResult, frame *Frame) {
		if res.Iterations != 5 {
			t.Fatalf("expected 5 iterations, got %d", res.Iterations)
		}
		if diff := cmp.Diff([]string{"0", "1", "2", "3", "4"}, itemStrings(t, frame, "seen")); diff != "" {
			t.Fatalf("indices mismatch (-want +got):\n%s", diff)
		}
	})

	for _, count := range []float64{0, -3} {
		loop := &RepeatTimes{Count: num(count), Body: []Command{&ThrowCommand{Value: str("ran")}}}
		runLoop(t, rt, nil, nil, loop, func(res LoopResult, frame *Frame) {
			if res.Iterations != 0 || res.Status != LoopCompleted {
				t.Fatalf("count %v: unexpected result %+v", count, res)
			}
		})
	}

	frac := &RepeatTimes{Count: str("2.9"), Body: []Command{expr(num(1))}}
	runLoop(t, rt, nil, nil, frac, func(res LoopResult, frame *Frame) {
		if res.Iterations != 2 {
			t.Fatalf("expected floor of the count, got %d", res.Iterations)
		}
	})
}

func TestRepeatWhileAndUntil(t *testing.T) {
	rt, _ := newTestRuntime(t)
	counter := func(frame *Frame) { frame.SetLocal("n", NewInt(0)) }

	while := &RepeatWhile{
		Condition: bin("<", id("n"), num(3)),
		Body:      []Command{&IncrementCommand{Target: id("n")}},
	}
	runLoop(t, rt, nil, counter, while, func(res LoopResult, frame *Frame) {
		if res.Iterations != 3 || res.Bounded {
			t.Fatalf("unexpected result %+v", res)
		}
		if n, _ := frame.Get("n", ScopeLocal); n.Number() != 3 {
			t.Fatalf("expected n=3, got %v", n)
		}
	})

	until := &RepeatWhile{
		Condition: bin(">=", id("n"), num(2)),
		Until:     true,
		Body:      []Command{&IncrementCommand{Target: id("n")}},
	}
	runLoop(t, rt, nil, counter, until, func(res LoopResult, frame *Frame) {
		if res.Iterations != 2 {
			t.Fatalf("expected 2 iterations, got %d", res.Iterations)
		}
	})
}

func TestUnboundedLoopsStopAtConfiguredLimit(t *testing.T) {
	engine := newTestEngine(t, Config{LoopLimit: 5})
	rt := engine.NewRuntime(newFakeDocument())

	loops := map[string]Command{
		"while":   &RepeatWhile{Condition: lit(NewBool(true)), Body: []Command{expr(num(1))}},
		"until":   &RepeatWhile{Condition: lit(NewBool(false)), Until: true},
		"forever": &RepeatForever{Body: []Command{expr(num(1))}},
	}
	for name, loop := range loops {
		t.Run(name, func(t *testing.T) {
			runLoop(t, rt, nil, nil, loop, func(res LoopResult, frame *Frame) {
				if res.Iterations != 5 || !res.Bounded {
					t.Fatalf("unexpected result %+v", res)
				}
			})
		})
	}
}

func TestUntilEventNeverFiredStopsAtBound(t *testing.T) {
	rt, doc := newTestRuntime(t)
	btn := doc.add(doc.body, "button", "go")
	loop := &RepeatUntilEvent{Event: "done"}

	runLoop(t, rt, btn, nil, loop, func(res LoopResult, frame *Frame) {
		if res.Iterations != DefaultLoopLimit {
			t.Fatalf("expected %d iterations, got %d", DefaultLoopLimit, res.Iterations)
		}
		if !res.Bounded || res.Status != LoopCompleted {
			t.Fatalf("unexpected result %+v", res)
		}
	})
	if n := doc.listenerCount(); n != 0 {
		t.Fatalf("expected no subscriptions left, got %d", n)
	}
}

func TestUntilEventStopsWhenEventFires(t *testing.T) {
	rt, doc := newTestRuntime(t)
	btn := doc.add(doc.body, "button", "go")
	loop := &RepeatUntilEvent{
		Event: "done",
		Index: "i",
		Body: []Command{
			&IfCommand{
				Condition: bin("==", id("i"), num(2)),
				Then:      []Command{&SendCommand{Event: "done", Target: &ContextReference{Kind: ContextMe}}},
			},
		},
	}
	runLoop(t, rt, btn, nil, loop, func(res LoopResult, frame *Frame) {
		if res.Iterations != 3 || res.Bounded {
			t.Fatalf("unexpected result %+v", res)
		}
	})
	if n := doc.listenerCount(); n != 0 {
		t.Fatalf("expected no subscriptions left, got %d", n)
	}
}

func TestUntilEventReleasesSubscriptionOnFault(t *testing.T) {
	rt, doc := newTestRuntime(t)
	btn := doc.add(doc.body, "button", "go")
	loop := &RepeatUntilEvent{Event: "done", Body: []Command{&ThrowCommand{Value: str("boom")}}}

	err := rt.Execute(context.Background(), btn, func(exec *Execution, frame *Frame) error {
		_, err := exec.RunLoop(loop, frame)
		return err
	})
	var thrown *ThrownError
	if !errors.As(err, &thrown) {
		t.Fatalf("expected thrown error, got %v", err)
	}
	if n := doc.listenerCount(); n != 0 {
		t.Fatalf("expected no subscriptions left, got %d", n)
	}
}

func TestRunLoopRejectsNonLoops(t *testing.T) {
	rt, _ := newTestRuntime(t)
	err := rt.Execute(context.Background(), nil, func(exec *Execution, frame *Frame) error {
		_, err := exec.RunLoop(&BreakCommand{}, frame)
		return err
	})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestUntilEventReleasesSubscriptionOnBreak(t *testing.T) {
	rt, doc := newTestRuntime(t)
	btn := doc.add(doc.body, "button", "go")
	loop := &RepeatUntilEvent{Event: "done", Body: []Command{&BreakCommand{}}}

	runLoop(t, rt, btn, nil, loop, func(res LoopResult, frame *Frame) {
		if res.Status != LoopCompleted || res.Iterations != 1 || res.Bounded {
			t.Fatalf("unexpected result %+v", res)
		}
	})
	if n := doc.listenerCount(); n != 0 {
		t.Fatalf("expected no subscriptions left, got %d", n)
	}
}

func TestUntilEventReleasesSubscriptionOnPropagatedSignal(t *testing.T) {
	cases := []struct {
		name string
		body Command
	}{
		{"halt", &HaltCommand{}},
		{"return", &ReturnCommand{Value: num(7)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rt, doc := newTestRuntime(t)
			btn := doc.add(doc.body, "button", "go")
			loop := &RepeatUntilEvent{Event: "done", Body: []Command{tc.body}}

			runLoop(t, rt, btn, nil, loop, func(res LoopResult, frame *Frame) {
				if res.Status != LoopPropagated || res.Iterations != 1 {
					t.Fatalf("unexpected result %+v", res)
				}
			})
			if n := doc.listenerCount(); n != 0 {
				t.Fatalf("expected no subscriptions left, got %d", n)
			}
		})
	}
}

func TestRunLoopReportsHaltFromLoopExpression(t *testing.T) {
	rt, _ := newTestRuntime(t)
	install(t, rt, nil, def("stop", nil, &HaltCommand{}))
	loop := &ForCommand{Variable: "x", Source: call(id("stop")), Body: []Command{expr(num(1))}}

	runLoop(t, rt, nil, nil, loop, func(res LoopResult, frame *Frame) {
		if res.Status != LoopPropagated || res.Signal.Kind != SignalHalt || res.Iterations != 0 {
			t.Fatalf("unexpected result %+v", res)
		}
		if !frame.IsHalted() {
			t.Fatalf("frame should be marked halted")
		}
	})
}
