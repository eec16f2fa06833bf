package fixi

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestArithmeticAndConcatenation(t *testing.T) {
	rt, _ := newTestRuntime(t)

	requireNumber(t, evalIn(t, rt, bin("+", num(2), num(3))), 5)
	requireString(t, evalIn(t, rt, bin("+", str("a"), num(3))), "a3")
	requireString(t, evalIn(t, rt, bin("plus", num(1), str("px"))), "1px")
	requireNumber(t, evalIn(t, rt, bin("-", str("10"), num(4))), 6)
	requireNumber(t, evalIn(t, rt, bin("*", num(6), num(7))), 42)
	requireNumber(t, evalIn(t, rt, bin("mod", num(7), num(3))), 1)

	got := evalIn(t, rt, bin("/", num(1), str("x")))
	if !math.IsNaN(got.Number()) {
		t.Fatalf("expected NaN, got %v", got)
	}
}

func TestEqualityOperators(t *testing.T) {
	rt, _ := newTestRuntime(t)
	obj := &ObjectLiteral{Properties: []ObjectProperty{{Key: "a", Value: num(1)}}}
	twin := &ObjectLiteral{Properties: []ObjectProperty{{Key: "a", Value: num(1)}}}

	cases := []struct {
		name string
		expr Expression
		want bool
	}{
		{"distinct objects are not identical", bin("is", obj, twin), false},
		{"distinct objects are not loosely equal", bin("==", obj, twin), false},
		{"zero loosely equals false", bin("==", num(0), lit(NewBool(false))), true},
		{"zero is not strictly false", bin("===", num(0), lit(NewBool(false))), false},
		{"number equals numeric string", bin("is equal to", num(1), str("1")), true},
		{"null equals undefined", bin("==", lit(Null()), lit(Undefined())), true},
		{"null is not undefined", bin("is", lit(Null()), lit(Undefined())), false},
		{"strings compare by value", bin("is", str("x"), str("x")), true},
		{"is not", bin("is not", num(1), num(2)), true},
		{"less than", bin("is less than", num(1), num(2)), true},
		{"string ordering", bin(">", str("b"), str("a")), true},
		{"NaN never compares", bin("<", num(math.NaN()), num(1)), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			requireBool(t, evalIn(t, rt, tc.expr), tc.want)
		})
	}
}

func TestChainedAssignmentBindsRightToLeft(t *testing.T) {
	rt, _ := newTestRuntime(t)
	chain := bin("=", id("a"), bin("=", id("b"), bin("=", id("c"), num(10))))

	execute(t, rt, nil, func(exec *Execution, frame *Frame) error {
		val, err := exec.Evaluate(chain, frame)
		if err != nil {
			return err
		}
		requireNumber(t, val, 10)
		for _, name := range []string{"a", "b", "c"} {
			got, ok := frame.Get(name, ScopeLocal)
			if !ok {
				t.Fatalf("%s not bound", name)
			}
			requireNumber(t, got, 10)
		}
		return nil
	})
}

func TestAssignmentPrefersExistingGlobal(t *testing.T) {
	rt, _ := newTestRuntime(t)
	rt.Globals().Set("total", NewInt(1))

	execute(t, rt, nil, func(exec *Execution, frame *Frame) error {
		if _, err := exec.Evaluate(bin("=", id("total"), num(5)), frame); err != nil {
			return err
		}
		if _, ok := frame.Get("total", ScopeLocal); ok {
			t.Fatalf("assignment created a local instead of updating the global")
		}
		if _, err := exec.Evaluate(bin("=", globalID("made"), num(2)), frame); err != nil {
			return err
		}
		return nil
	})
	if v, _ := rt.Globals().Get("total"); v.Number() != 5 {
		t.Fatalf("global not updated: %v", v)
	}
	if v, ok := rt.Globals().Get("made"); !ok || v.Number() != 2 {
		t.Fatalf("scoped global not created: %v", v)
	}
}

func TestLogicalOperatorsShortCircuit(t *testing.T) {
	rt, _ := newTestRuntime(t)
	boom := call(id("explode"))

	requireString(t, evalIn(t, rt, bin("or", str("left"), boom)), "left")
	requireNumber(t, evalIn(t, rt, bin("and", num(0), boom)), 0)
	requireString(t, evalIn(t, rt, bin("||", lit(Null()), str("fallback"))), "fallback")

	_, err := rt.Eval(context.Background(), bin("and", num(1), boom), nil)
	if !errors.Is(err, ErrUnboundFunction) {
		t.Fatalf("expected unbound function error, got %v", err)
	}
}

func TestUnaryOperators(t *testing.T) {
	rt, _ := newTestRuntime(t)
	empty := &ArrayLiteral{}

	requireBool(t, evalIn(t, rt, &UnaryOp{Operator: "not", Argument: num(0)}), true)
	requireBool(t, evalIn(t, rt, &UnaryOp{Operator: "!", Argument: str("x")}), false)
	requireNumber(t, evalIn(t, rt, &UnaryOp{Operator: "-", Argument: str("4")}), -4)
	requireBool(t, evalIn(t, rt, &UnaryOp{Operator: "no", Argument: empty}), true)
	requireBool(t, evalIn(t, rt, &UnaryOp{Operator: "exists", Argument: str("x")}), true)
	requireString(t, evalIn(t, rt, &UnaryOp{Operator: "typeof", Argument: lit(Null())}), "object")
}

func TestUnknownOperatorFails(t *testing.T) {
	rt, _ := newTestRuntime(t)

	_, err := rt.Eval(context.Background(), bin("<=>", num(1), num(2)), nil)
	if !errors.Is(err, ErrUnknownOperator) {
		t.Fatalf("expected unknown operator, got %v", err)
	}
	execute(t, rt, nil, func(exec *Execution, frame *Frame) error {
		_, err := exec.Evaluate(&UnaryOp{Operator: "???", Argument: num(1)}, frame)
		if !errors.Is(err, ErrUnknownOperator) {
			t.Fatalf("expected unknown unary operator, got %v", err)
		}
		return nil
	})
}

func TestContainsMatchesAndIn(t *testing.T) {
	rt, doc := newTestRuntime(t)
	list := doc.add(doc.body, "ul", "list")
	item := doc.add(list, "li", "", "item", "active")
	doc.add(list, "li", "", "item")
	arr := &ArrayLiteral{Elements: []Expression{num(1), str("two")}}
	listRef := &CSSSelector{Kind: SelectorID, Selector: "list"}

	requireBool(t, evalIn(t, rt, bin("contains", arr, str("two"))), true)
	requireBool(t, evalIn(t, rt, bin("does not contain", arr, num(3))), true)
	requireBool(t, evalIn(t, rt, bin("includes", str("hello"), str("ell"))), true)
	requireBool(t, evalIn(t, rt, bin("contains", listRef, lit(NewElement(item)))), true)
	requireBool(t, evalIn(t, rt, bin("matches", str("abc123"), str(`^[a-z]+\d+$`))), true)
	requireBool(t, evalIn(t, rt, bin("matches", lit(NewElement(item)), str(".active"))), true)
	requireBool(t, evalIn(t, rt, bin("in", num(1), arr)), true)

	found := evalIn(t, rt, bin("in", str("li"), listRef))
	if !found.IsCollection() || len(found.Items()) != 2 {
		t.Fatalf("expected a collection of 2, got %v", found)
	}

	_, err := rt.Eval(context.Background(), bin("matches", str("x"), str("(")), nil)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid pattern error, got %v", err)
	}
}

func TestTypeChecksAndConversions(t *testing.T) {
	rt, _ := newTestRuntime(t)

	requireBool(t, evalIn(t, rt, bin("is a", num(3), id("Number"))), true)
	requireBool(t, evalIn(t, rt, bin("is a", num(3), id("number"))), true)
	requireBool(t, evalIn(t, rt, bin("is an", &ArrayLiteral{}, str("array"))), true)
	requireBool(t, evalIn(t, rt, bin("is a", num(1.5), id("int"))), false)
	requireBool(t, evalIn(t, rt, bin("is not a", str("s"), id("number"))), true)
	requireBool(t, evalIn(t, rt, bin("is a", &ObjectLiteral{}, id("Object"))), true)

	requireNumber(t, evalIn(t, rt, bin("as", str("42"), id("Int"))), 42)
	requireString(t, evalIn(t, rt, bin("as", num(3.14159), str("Fixed:2"))), "3.14")
	requireString(t, evalIn(t, rt, bin("as", &ObjectLiteral{Properties: []ObjectProperty{{Key: "b", Value: num(1)}, {Key: "a", Value: num(2)}}}, id("JSON"))), `{"b":1,"a":2}`)

	obj := evalIn(t, rt, bin("as", str(`{"x":1}`), id("Object")))
	if x, _ := obj.Object().Get("x"); x.Number() != 1 {
		t.Fatalf("unexpected object %v", obj)
	}

	_, err := rt.Eval(context.Background(), bin("as", num(1), id("Widget")), nil)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected unknown conversion error, got %v", err)
	}
}

func TestIdentifierResolution(t *testing.T) {
	rt, doc := newTestRuntime(t)
	btn := doc.add(doc.body, "button", "go")
	rt.Globals().Set("greeting", NewString("hi"))

	execute(t, rt, btn, func(exec *Execution, frame *Frame) error {
		for _, name := range []string{"me", "my", "I"} {
			val, err := exec.Evaluate(id(name), frame)
			if err != nil {
				return err
			}
			if val.Element() != btn {
				t.Fatalf("%s should resolve to the element", name)
			}
		}
		val, err := exec.Evaluate(id("greeting"), frame)
		if err != nil {
			return err
		}
		requireString(t, val, "hi")

		val, err = exec.Evaluate(id("body"), frame)
		if err != nil {
			return err
		}
		if val.Element() != doc.body {
			t.Fatalf("body should resolve through the registry, got %v", val)
		}

		val, err = exec.Evaluate(id("nowhere"), frame)
		if err != nil {
			return err
		}
		if !val.IsUndefined() {
			t.Fatalf("unbound identifier should be undefined, got %v", val)
		}

		frame.SetLocal("greeting", NewString("local"))
		val, err = exec.Evaluate(globalID("greeting"), frame)
		if err != nil {
			return err
		}
		requireString(t, val, "hi")
		val, err = exec.Evaluate(localID("greeting"), frame)
		if err != nil {
			return err
		}
		requireString(t, val, "local")
		return nil
	})
}

func TestMemberAccessIsNullSafe(t *testing.T) {
	rt, _ := newTestRuntime(t)

	got := evalIn(t, rt, member(member(id("missing"), "a"), "b"))
	if got.Kind() != KindNull {
		t.Fatalf("expected null, got %v", got)
	}

	_, err := rt.Eval(context.Background(), call(member(lit(Null()), "run")), nil)
	if !errors.Is(err, ErrUnboundFunction) {
		t.Fatalf("expected call on null to fail, got %v", err)
	}
}

func TestCollectionMemberAccess(t *testing.T) {
	rt, doc := newTestRuntime(t)
	first := doc.add(doc.body, "p", "one", "note")
	second := doc.add(doc.body, "p", "two", "note")
	notes := &CSSSelector{Kind: SelectorClass, Selector: "note"}

	requireNumber(t, evalIn(t, rt, member(notes, "length")), 2)
	requireString(t, evalIn(t, rt, member(notes, "id")), "one")
	if got := evalIn(t, rt, member(notes, "last")); got.Element() != second {
		t.Fatalf("expected last element, got %v", got)
	}

	execute(t, rt, nil, func(exec *Execution, frame *Frame) error {
		return exec.assign(&Possessive{Object: notes, Property: "@title"}, NewString("t"), frame)
	})
	for _, el := range []*fakeElement{first, second} {
		if el.attrs["title"] != "t" {
			t.Fatalf("attribute not applied to every element: %v", el.attrs)
		}
	}

	empty := evalIn(t, rt, member(&Selector{Raw: ".none"}, "id"))
	if empty.Kind() != KindNull {
		t.Fatalf("member of empty collection should be null, got %v", empty)
	}
}

func TestArrayAndStringMethods(t *testing.T) {
	rt, _ := newTestRuntime(t)

	execute(t, rt, nil, func(exec *Execution, frame *Frame) error {
		frame.SetLocal("xs", NewArray([]Value{NewInt(1), NewInt(2)}))
		if _, err := exec.Evaluate(call(member(id("xs"), "push"), num(3)), frame); err != nil {
			return err
		}
		joined, err := exec.Evaluate(call(member(id("xs"), "join"), str("-")), frame)
		if err != nil {
			return err
		}
		requireString(t, joined, "1-2-3")

		sliced, err := exec.Evaluate(call(member(id("xs"), "slice"), num(-2)), frame)
		if err != nil {
			return err
		}
		if sliced.String() != "2,3" {
			t.Fatalf("unexpected slice %v", sliced)
		}

		upper, err := exec.Evaluate(call(member(str("abc"), "toUpperCase")), frame)
		if err != nil {
			return err
		}
		requireString(t, upper, "ABC")

		idx, err := exec.Evaluate(&MemberAccess{Object: str("héllo"), Property: num(1), Computed: true}, frame)
		if err != nil {
			return err
		}
		requireString(t, idx, "é")
		return nil
	})
}

func TestTemplateAndConditionalExpressions(t *testing.T) {
	rt, _ := newTestRuntime(t)
	tpl := &TemplateLiteral{Segments: []TemplateSegment{
		{Text: "n="},
		{Expr: bin("+", num(1), num(1))},
		{Text: "!"},
	}}
	requireString(t, evalIn(t, rt, tpl), "n=2!")

	cond := &Conditional{Test: num(0), Then: str("yes"), Else: str("no")}
	requireString(t, evalIn(t, rt, cond), "no")
}

func TestLiteralsYieldFreshReferences(t *testing.T) {
	rt, _ := newTestRuntime(t)
	shared := lit(NewArray([]Value{NewInt(1)}))
	requireBool(t, evalIn(t, rt, bin("is", shared, shared)), false)
}

func TestHostObjectFunctions(t *testing.T) {
	rt, _ := newTestRuntime(t)

	requireNumber(t, evalIn(t, rt, call(id("parseInt"), str("42px"))), 42)
	requireNumber(t, evalIn(t, rt, call(id("parseInt"), str("ff"), num(16))), 255)
	requireNumber(t, evalIn(t, rt, call(member(id("Math"), "max"), num(3), num(9), num(4))), 9)
	requireString(t, evalIn(t, rt, call(member(id("JSON"), "stringify"), &ArrayLiteral{Elements: []Expression{num(1), str("a")}})), `[1,"a"]`)

	parsed := evalIn(t, rt, call(member(id("JSON"), "parse"), str(`{"z":1,"a":[true]}`)))
	if keys := parsed.Object().Keys(); len(keys) != 2 || keys[0] != "z" {
		t.Fatalf("JSON.parse should keep key order, got %v", keys)
	}

	_, err := rt.Eval(context.Background(), call(member(id("JSON"), "parse"), str("{")), nil)
	var thrown *ThrownError
	if !errors.As(err, &thrown) {
		t.Fatalf("expected thrown SyntaxError, got %v", err)
	}
	if thrown.Value.Object().Class() != "SyntaxError" {
		t.Fatalf("unexpected error class %q", thrown.Value.Object().Class())
	}
}

func TestConstructorCalls(t *testing.T) {
	rt, _ := newTestRuntime(t)

	errVal := evalIn(t, rt, &Call{Callee: id("Error"), Args: []Expression{str("bad")}, IsConstructor: true})
	if msg, _ := errVal.Object().Get("message"); msg.String() != "bad" {
		t.Fatalf("unexpected error object %v", errVal)
	}

	_, err := rt.Eval(context.Background(), &Call{Callee: id("parseInt"), IsConstructor: true}, nil)
	if !errors.Is(err, ErrNotConstructor) {
		t.Fatalf("expected not a constructor, got %v", err)
	}
}

func TestIterateRejectsScalars(t *testing.T) {
	rt, _ := newTestRuntime(t)
	execute(t, rt, nil, func(exec *Execution, frame *Frame) error {
		_, err := exec.iterate(NewInt(3), Position{})
		if !errors.Is(err, ErrNotIterable) {
			t.Fatalf("expected not iterable, got %v", err)
		}
		items, err := exec.iterate(Null(), Position{})
		if err != nil || len(items) != 0 {
			t.Fatalf("null should iterate as empty, got %v %v", items, err)
		}
		return nil
	})
}

func TestStepQuotaStopsEvaluation(t *testing.T) {
	engine := newTestEngine(t, Config{StepQuota: 5})
	rt := engine.NewRuntime(newFakeDocument())
	deep := Expression(num(1))
	for i := 0; i < 10; i++ {
		deep = bin("+", deep, num(1))
	}
	_, err := rt.Eval(context.Background(), deep, nil)
	if !errors.Is(err, ErrStepQuotaExceeded) {
		t.Fatalf("expected step quota error, got %v", err)
	}
}

func TestEvalWithoutDocumentFailsOnQueries(t *testing.T) {
	rt := newTestEngine(t, Config{}).NewRuntime(nil)
	requireNumber(t, evalIn(t, rt, bin("+", num(1), num(1))), 2)

	_, err := rt.Eval(context.Background(), &Selector{Raw: "p"}, nil)
	if !errors.Is(err, ErrNoDocument) {
		t.Fatalf("expected no document error, got %v", err)
	}
}

func TestEvaluateMarksFrameHaltedInsteadOfFailing(t *testing.T) {
	rt, _ := newTestRuntime(t)
	install(t, rt, nil, def("stop", nil, &HaltCommand{}))

	execute(t, rt, nil, func(exec *Execution, frame *Frame) error {
		val, err := exec.Evaluate(bin("+", num(1), call(id("stop"))), frame)
		if err != nil {
			t.Fatalf("halt should not surface as an error, got %v", err)
		}
		if !val.IsUndefined() || !frame.IsHalted() {
			t.Fatalf("expected undefined with a halted frame, got %v halted=%v", val, frame.IsHalted())
		}
		return nil
	})
}
