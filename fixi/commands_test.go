package fixi

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func run(t *testing.T, rt *Runtime, me Element, cmds ...Command) Value {
	t.Helper()
	val, err := rt.Run(context.Background(), me, cmds)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return val
}

func TestRunReturnsLastValueOrReturnedValue(t *testing.T) {
	rt, _ := newTestRuntime(t)

	requireNumber(t, run(t, rt, nil, expr(num(1)), expr(num(2))), 2)
	requireString(t, run(t, rt, nil, &ReturnCommand{Value: str("early")}, expr(str("late"))), "early")
	if got := run(t, rt, nil, &ExitCommand{}, expr(num(9))); !got.IsUndefined() {
		t.Fatalf("exit should yield undefined, got %v", got)
	}
	requireString(t, run(t, rt, nil, &ExitCommand{Value: str("done")}, expr(num(9))), "done")
	install(t, rt, nil, def("bail", nil, &ExitCommand{Value: num(3)}, expr(num(4))))
	requireNumber(t, evalIn(t, rt, call(id("bail"))), 3)
	requireNumber(t, run(t, rt, nil, expr(num(4)), &HaltCommand{}, expr(num(5))), 4)
}

func TestCallCommandSetsIt(t *testing.T) {
	rt, _ := newTestRuntime(t)
	got := run(t, rt, nil,
		&CallCommand{Expr: bin("+", num(20), num(1))},
		expr(bin("*", &ContextReference{Kind: ContextIt}, num(2))),
		expr(bin("+", id("result"), num(0))),
	)
	requireNumber(t, got, 42)
}

func TestStrayBreakEndsInvocationQuietly(t *testing.T) {
	rt, _ := newTestRuntime(t)
	got := run(t, rt, nil, expr(num(1)), &BreakCommand{}, expr(num(2)))
	requireNumber(t, got, 1)
}

func TestThrowRaisesThrownError(t *testing.T) {
	rt, _ := newTestRuntime(t)
	_, err := rt.Run(context.Background(), nil, []Command{
		&ThrowCommand{Value: &Call{Callee: id("Error"), Args: []Expression{str("nope")}, IsConstructor: true}},
	})
	var thrown *ThrownError
	if !errors.As(err, &thrown) {
		t.Fatalf("expected thrown error, got %v", err)
	}
	if !strings.Contains(err.Error(), "uncaught Error: nope") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestSetAndIncrement(t *testing.T) {
	rt, doc := newTestRuntime(t)
	box := doc.add(doc.body, "div", "box")
	me := &ContextReference{Kind: ContextMe}

	got := run(t, rt, box,
		set(id("n"), num(1)),
		&IncrementCommand{Target: id("n")},
		&IncrementCommand{Target: id("n"), By: num(10)},
		&DecrementCommand{Target: id("n"), By: str("2")},
		&IncrementCommand{Target: id("fresh")},
		set(&Possessive{Object: me, Property: "@data-count"}, id("n")),
		&IncrementCommand{Target: &Possessive{Object: me, Property: "@data-count"}},
		set(&PropertyOf{Property: "textContent", Target: me}, bin("+", str("n="), id("n"))),
		expr(id("fresh")),
	)
	requireNumber(t, got, 1)
	if box.attrs["data-count"] != "11" {
		t.Fatalf("unexpected attribute %q", box.attrs["data-count"])
	}
	if box.text != "n=10" {
		t.Fatalf("unexpected text %q", box.text)
	}
}

func TestSetRejectsUnassignableTargets(t *testing.T) {
	rt, _ := newTestRuntime(t)
	_, err := rt.Run(context.Background(), nil, []Command{set(num(1), num(2))})
	if !errors.Is(err, ErrNotAssignable) {
		t.Fatalf("expected not assignable, got %v", err)
	}

	_, err = rt.Run(context.Background(), nil, []Command{set(member(lit(Null()), "x"), num(2))})
	if !errors.Is(err, ErrNotAssignable) {
		t.Fatalf("expected not assignable for null owner, got %v", err)
	}
}

func TestClassAndAttributeCommands(t *testing.T) {
	rt, doc := newTestRuntime(t)
	box := doc.add(doc.body, "div", "box", "a")
	other := doc.add(doc.body, "div", "other", "a")

	run(t, rt, box,
		&AddCommand{Classes: []string{"b", ".c"}},
		&RemoveCommand{Classes: []string{"a"}},
		&ToggleCommand{Classes: []string{"b", "d"}},
		&AddCommand{Attribute: &AttributeRef{Name: "data-x", Value: bin("+", num(1), num(1))}},
		&ToggleCommand{Attribute: &AttributeRef{Name: "hidden"}},
		&AddCommand{Classes: []string{"seen"}, Target: &CSSSelector{Kind: SelectorID, Selector: "other"}},
	)
	if got := box.attrs["class"]; got != "c d" {
		t.Fatalf("unexpected classes %q", got)
	}
	if box.attrs["data-x"] != "2" {
		t.Fatalf("unexpected data-x %q", box.attrs["data-x"])
	}
	if _, ok := box.attrs["hidden"]; !ok {
		t.Fatalf("hidden should be toggled on")
	}
	if other.attrs["class"] != "a seen" {
		t.Fatalf("explicit target not used: %q", other.attrs["class"])
	}

	run(t, rt, box,
		&ToggleCommand{Attribute: &AttributeRef{Name: "hidden"}},
		&RemoveCommand{Attribute: &AttributeRef{Name: "data-x"}},
	)
	if _, ok := box.attrs["hidden"]; ok {
		t.Fatalf("hidden should be toggled off")
	}
	if _, ok := box.attrs["data-x"]; ok {
		t.Fatalf("data-x should be removed")
	}
}

func TestRemoveWithoutClassesRemovesElement(t *testing.T) {
	rt, doc := newTestRuntime(t)
	doc.add(doc.body, "div", "gone")

	run(t, rt, nil, &RemoveCommand{Target: &CSSSelector{Kind: SelectorID, Selector: "gone"}})
	if el, _ := doc.QueryOne("#gone"); el != nil {
		t.Fatalf("element still attached")
	}
}

func TestShowAndHide(t *testing.T) {
	rt, doc := newTestRuntime(t)
	box := doc.add(doc.body, "div", "box")
	box.attrs["style"] = "color: red"

	run(t, rt, box, &HideCommand{})
	if got := box.attrs["style"]; got != "color: red; display: none" {
		t.Fatalf("unexpected style after hide %q", got)
	}
	run(t, rt, box, &ShowCommand{Display: "flex"})
	if got := box.attrs["style"]; got != "color: red; display: flex" {
		t.Fatalf("unexpected style after show %q", got)
	}
	run(t, rt, box, &ShowCommand{})
	if got := box.attrs["style"]; got != "color: red" {
		t.Fatalf("unexpected style after plain show %q", got)
	}
}

func TestPutPlacements(t *testing.T) {
	rt, doc := newTestRuntime(t)
	box := doc.add(doc.body, "div", "box")
	me := &ContextReference{Kind: ContextMe}

	run(t, rt, box, &PutCommand{Value: str("mid"), Target: me})
	run(t, rt, box, &PutCommand{Value: str("<"), Target: me, Placement: Placement{Kind: PlaceStart}})
	run(t, rt, box, &PutCommand{Value: str(">"), Target: me, Placement: Placement{Kind: PlaceEnd}})
	if box.text != "<mid>" {
		t.Fatalf("unexpected text %q", box.text)
	}

	var applied []string
	custom := Placement{Kind: PlaceCustom, Apply: func(doc Document, target Element, content Value) error {
		applied = append(applied, target.TagName()+":"+content.String())
		return nil
	}}
	run(t, rt, box, &PutCommand{Value: str("x"), Target: me, Placement: custom})
	if len(applied) != 1 || applied[0] != "DIV:x" {
		t.Fatalf("custom placement not applied: %v", applied)
	}
}

func TestPutIntoVariableAssigns(t *testing.T) {
	rt, doc := newTestRuntime(t)
	box := doc.add(doc.body, "div", "box")

	got := run(t, rt, box,
		&PutCommand{Value: num(5), Target: id("slot")},
		&PutCommand{Value: str("title"), Target: &Possessive{Object: &ContextReference{Kind: ContextMe}, Property: "@title"}},
		expr(id("slot")),
	)
	requireNumber(t, got, 5)
	if box.attrs["title"] != "title" {
		t.Fatalf("put into attribute should assign, got %v", box.attrs)
	}
	if box.text != "" {
		t.Fatalf("element content should be untouched, got %q", box.text)
	}
}

func TestSendDispatchesEventWithDetail(t *testing.T) {
	rt, doc := newTestRuntime(t)
	box := doc.add(doc.body, "div", "box")

	var got *Event
	sub, err := doc.Subscribe(doc.body, "ping", func(ev *Event) { got = ev })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer doc.Unsubscribe(sub)

	run(t, rt, box, &SendCommand{Event: "ping", Detail: &ObjectLiteral{Properties: []ObjectProperty{{Key: "n", Value: num(1)}}}})
	if got == nil {
		t.Fatalf("event did not bubble to body")
	}
	if got.Target != box {
		t.Fatalf("unexpected target %v", got.Target)
	}
	if n, _ := got.Detail.Object().Get("n"); n.Number() != 1 {
		t.Fatalf("unexpected detail %v", got.Detail)
	}
}

func TestLogCommandWritesStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	engine := newTestEngine(t, Config{Logger: &logger})
	rt := engine.NewRuntime(newFakeDocument())

	got, err := rt.Run(context.Background(), nil, []Command{&LogCommand{Values: []Expression{str("count"), num(3)}}})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	requireNumber(t, got, 3)
	out := buf.String()
	if !strings.Contains(out, `"values":["count","3"]`) || !strings.Contains(out, `"message":"count 3"`) {
		t.Fatalf("unexpected log output %s", out)
	}
	if !strings.Contains(out, `"level":"info"`) {
		t.Fatalf("log command should log at info, got %s", out)
	}
}

func TestWaitForDuration(t *testing.T) {
	rt, _ := newTestRuntime(t)
	start := time.Now()
	run(t, rt, nil, &WaitCommand{Duration: str("20ms")})
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("wait returned after %s", elapsed)
	}
}

func TestWaitHonoursCancellation(t *testing.T) {
	rt, _ := newTestRuntime(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := rt.Run(ctx, nil, []Command{&WaitCommand{Duration: num(5000)}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestWaitForEventReleasesTheTurn(t *testing.T) {
	rt, doc := newTestRuntime(t)
	box := doc.add(doc.body, "div", "box")

	done := make(chan Value, 1)
	go func() {
		val, err := rt.Run(context.Background(), box, []Command{
			&WaitCommand{Event: "go"},
			expr(member(&ContextReference{Kind: ContextIt}, "detail")),
		})
		if err != nil {
			t.Errorf("run failed: %v", err)
		}
		done <- val
	}()

	deadline := time.After(2 * time.Second)
	for doc.listenerCount() == 0 {
		select {
		case <-deadline:
			t.Fatalf("wait never subscribed")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if err := rt.Trigger(context.Background(), box, "go", NewString("payload")); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}

	select {
	case val := <-done:
		requireString(t, val, "payload")
	case <-time.After(2 * time.Second):
		t.Fatalf("wait did not resume")
	}
	if n := doc.listenerCount(); n != 0 {
		t.Fatalf("wait left %d subscriptions", n)
	}
}

func TestWaitForEventTimeout(t *testing.T) {
	rt, doc := newTestRuntime(t)
	box := doc.add(doc.body, "div", "box")

	got := run(t, rt, box, &WaitCommand{Event: "never", Timeout: 10 * time.Millisecond}, expr(str("after")))
	requireString(t, got, "after")
	if n := doc.listenerCount(); n != 0 {
		t.Fatalf("wait left %d subscriptions", n)
	}
}
