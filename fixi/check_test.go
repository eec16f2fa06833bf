package fixi

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCheckCollectsEveryProblem(t *testing.T) {
	engine := newTestEngine(t, Config{})
	prog := &Program{Features: []Feature{
		on("click",
			expr(bin("<=>", num(1), num(2))),
			set(str("x"), num(1)),
			&AddCommand{},
			&IfCommand{Condition: num(1)},
		),
		def("f", nil, &ForCommand{Variable: "i", Index: "i", Source: letters("a")}),
		def("f", nil),
	}}

	err := engine.Check(prog)
	if err == nil {
		t.Fatalf("expected check to fail")
	}
	for _, want := range []error{ErrUnknownOperator, ErrNotAssignable, ErrInvalidArgument, ErrMissingCommand} {
		if !errors.Is(err, want) {
			t.Fatalf("expected %v among %v", want, err)
		}
	}
	msg := err.Error()
	for _, want := range []string{`unknown operator "<=>"`, "add needs a class or attribute", "loop variable and index are both i", "function f already defined"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("missing %q in %s", want, msg)
		}
	}
}

func TestRunChecksBeforeExecuting(t *testing.T) {
	rt, _ := newTestRuntime(t)
	_, err := rt.Run(context.Background(), nil, []Command{
		set(globalID("ran"), num(1)),
		expr(&UnaryOp{Operator: "sqrt", Argument: num(4)}),
	})
	if !errors.Is(err, ErrUnknownOperator) {
		t.Fatalf("expected unknown operator, got %v", err)
	}
	if _, ok := rt.Globals().Get("ran"); ok {
		t.Fatalf("invalid tree should not run at all")
	}
}

func TestCheckAcceptsValidTrees(t *testing.T) {
	engine := newTestEngine(t, Config{})
	cmds := []Command{
		set(id("n"), num(0)),
		&RepeatTimes{Count: num(3), Body: []Command{&IncrementCommand{Target: id("n")}}},
		&IfCommand{Condition: bin("is greater than", id("n"), num(2)), Then: []Command{&LogCommand{Values: []Expression{id("n")}}}},
		&PutCommand{Value: str("x"), Target: &CSSSelector{Kind: SelectorID, Selector: "out"}},
		&WaitCommand{Duration: num(1)},
	}
	if err := engine.CheckCommands(cmds); err != nil {
		t.Fatalf("unexpected check failure: %v", err)
	}
	if err := engine.CheckExpression(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("nil expression should fail, got %v", err)
	}
	if err := engine.Check(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("nil program should fail, got %v", err)
	}
}
