package fixi

import (
	"fmt"
	"math"
	"strings"
)

type builtinDef struct {
	op    Op
	entry Entry
}

func binaryEntry(op Op, name string, prec int, assoc Associativity, eval EvaluateFunc, aliases ...string) builtinDef {
	return builtinDef{op: op, entry: Entry{
		Name:          name,
		Category:      CategoryOperator,
		ResultType:    "any",
		Aliases:       aliases,
		Precedence:    prec,
		Associativity: assoc,
		MinArgs:       2,
		MaxArgs:       2,
		Evaluate:      eval,
	}}
}

func unaryEntry(op Op, name string, result string, aliases ...string) builtinDef {
	return builtinDef{op: op, entry: Entry{
		Name:          name,
		Category:      CategoryUnary,
		ResultType:    result,
		Aliases:       aliases,
		Precedence:    14,
		Associativity: AssocRight,
		MinArgs:       1,
		MaxArgs:       1,
	}}
}

func namedEntry(op Op, cat Category, name, result string, minArgs, maxArgs int, eval EvaluateFunc) builtinDef {
	return builtinDef{op: op, entry: Entry{
		Name:       name,
		Category:   cat,
		ResultType: result,
		MinArgs:    minArgs,
		MaxArgs:    maxArgs,
		Evaluate:   eval,
	}}
}

func comparison(cmp func(int) bool) EvaluateFunc {
	return func(exec *Execution, frame *Frame, args []Value) (Value, error) {
		return NewBool(compareValues(args[0], args[1], cmp)), nil
	}
}

func builtinTable() []builtinDef {
	return []builtinDef{
		// Assignment, logic, type tests and conversion are evaluated inline
		// because they need the operand nodes.
		binaryEntry(OpAssign, "=", 1, AssocRight, nil),
		binaryEntry(OpOr, "or", 2, AssocLeft, nil, "||"),
		binaryEntry(OpAnd, "and", 3, AssocLeft, nil, "&&"),
		binaryEntry(OpIdentity, "is", 5, AssocLeft, func(exec *Execution, frame *Frame, args []Value) (Value, error) {
			return NewBool(strictEquals(args[0], args[1])), nil
		}, "am"),
		binaryEntry(OpNotIdentity, "is not", 5, AssocLeft, func(exec *Execution, frame *Frame, args []Value) (Value, error) {
			return NewBool(!strictEquals(args[0], args[1])), nil
		}, "am not"),
		binaryEntry(OpLooseEq, "==", 5, AssocLeft, func(exec *Execution, frame *Frame, args []Value) (Value, error) {
			return NewBool(looseEquals(args[0], args[1])), nil
		}, "is equal to", "equals"),
		binaryEntry(OpLooseNe, "!=", 5, AssocLeft, func(exec *Execution, frame *Frame, args []Value) (Value, error) {
			return NewBool(!looseEquals(args[0], args[1])), nil
		}, "is not equal to"),
		binaryEntry(OpStrictEq, "===", 5, AssocLeft, func(exec *Execution, frame *Frame, args []Value) (Value, error) {
			return NewBool(strictEquals(args[0], args[1])), nil
		}, "is really equal to"),
		binaryEntry(OpStrictNe, "!==", 5, AssocLeft, func(exec *Execution, frame *Frame, args []Value) (Value, error) {
			return NewBool(!strictEquals(args[0], args[1])), nil
		}, "is not really equal to"),
		binaryEntry(OpLess, "<", 6, AssocLeft, comparison(func(c int) bool { return c < 0 }), "is less than"),
		binaryEntry(OpLessEq, "<=", 6, AssocLeft, comparison(func(c int) bool { return c <= 0 }), "is less than or equal to"),
		binaryEntry(OpGreater, ">", 6, AssocLeft, comparison(func(c int) bool { return c > 0 }), "is greater than"),
		binaryEntry(OpGreaterEq, ">=", 6, AssocLeft, comparison(func(c int) bool { return c >= 0 }), "is greater than or equal to"),
		binaryEntry(OpContains, "contains", 6, AssocLeft, func(exec *Execution, frame *Frame, args []Value) (Value, error) {
			ok, err := exec.containsValue(args[0], args[1])
			return NewBool(ok), err
		}, "contain", "includes", "include"),
		binaryEntry(OpNotContains, "does not contain", 6, AssocLeft, func(exec *Execution, frame *Frame, args []Value) (Value, error) {
			ok, err := exec.containsValue(args[0], args[1])
			return NewBool(!ok), err
		}, "does not include"),
		binaryEntry(OpMatches, "matches", 6, AssocLeft, func(exec *Execution, frame *Frame, args []Value) (Value, error) {
			ok, err := exec.matchesValue(args[0], args[1])
			return NewBool(ok), err
		}, "match"),
		binaryEntry(OpNotMatches, "does not match", 6, AssocLeft, func(exec *Execution, frame *Frame, args []Value) (Value, error) {
			ok, err := exec.matchesValue(args[0], args[1])
			return NewBool(!ok), err
		}),
		binaryEntry(OpIn, "in", 6, AssocLeft, func(exec *Execution, frame *Frame, args []Value) (Value, error) {
			return exec.inValue(args[0], args[1])
		}),
		binaryEntry(OpIsA, "is a", 6, AssocLeft, nil, "is an"),
		binaryEntry(OpIsNotA, "is not a", 6, AssocLeft, nil, "is not an"),
		binaryEntry(OpAs, "as", 7, AssocLeft, nil),
		binaryEntry(OpAdd, "+", 10, AssocLeft, func(exec *Execution, frame *Frame, args []Value) (Value, error) {
			return addValues(args[0], args[1]), nil
		}, "plus"),
		binaryEntry(OpSubtract, "-", 10, AssocLeft, func(exec *Execution, frame *Frame, args []Value) (Value, error) {
			return NewNumber(toNumber(args[0]) - toNumber(args[1])), nil
		}, "minus"),
		binaryEntry(OpMultiply, "*", 11, AssocLeft, func(exec *Execution, frame *Frame, args []Value) (Value, error) {
			return NewNumber(toNumber(args[0]) * toNumber(args[1])), nil
		}),
		binaryEntry(OpDivide, "/", 11, AssocLeft, func(exec *Execution, frame *Frame, args []Value) (Value, error) {
			return NewNumber(toNumber(args[0]) / toNumber(args[1])), nil
		}),
		binaryEntry(OpModulo, "%", 11, AssocLeft, func(exec *Execution, frame *Frame, args []Value) (Value, error) {
			return NewNumber(math.Mod(toNumber(args[0]), toNumber(args[1]))), nil
		}, "mod"),

		unaryEntry(OpNot, "not", "boolean", "!"),
		unaryEntry(OpNegate, "-", "number"),
		unaryEntry(OpPlus, "+", "number"),
		unaryEntry(OpNo, "no", "boolean", "empty", "is empty"),
		unaryEntry(OpExists, "exists", "boolean", "some", "is not empty"),
		unaryEntry(OpTypeof, "typeof", "string"),

		namedEntry(OpDocument, CategoryReference, "document", "element", 0, 0, builtinDocument),
		namedEntry(OpBody, CategoryReference, "body", "element", 0, 0, builtinBody),
		namedEntry(OpWindow, CategoryReference, "window", "object", 0, 0, builtinWindow),
		namedEntry(OpNow, CategoryReference, "now", "number", 0, 0, builtinNow),
		namedEntry(OpFirst, CategoryPositional, "first", "any", 1, 1, builtinFirst),
		namedEntry(OpLast, CategoryPositional, "last", "any", 1, 1, builtinLast),
		namedEntry(OpClosest, CategoryPositional, "closest", "element", 1, 2, builtinClosest),
		namedEntry(OpNext, CategoryPositional, "next", "element", 0, 2, builtinSibling("nextElementSibling")),
		namedEntry(OpPrevious, CategoryPositional, "previous", "element", 0, 2, builtinSibling("previousElementSibling")),
		namedEntry(OpParent, CategoryPositional, "parent", "element", 0, 1, builtinParent),
	}
}

func registerBuiltins(r *Registry) error {
	for _, def := range builtinTable() {
		entry := def.entry
		if err := r.register(&entry, def.op); err != nil {
			return err
		}
	}
	return nil
}

// addValues is the dual-mode +: text when either side is a string, numeric
// addition otherwise.
func addValues(left, right Value) Value {
	if left.kind == KindString || right.kind == KindString {
		return NewString(left.String() + right.String())
	}
	return NewNumber(toNumber(left) + toNumber(right))
}

func compareValues(left, right Value, cmp func(int) bool) bool {
	if left.kind == KindString && right.kind == KindString {
		return cmp(strings.Compare(left.String(), right.String()))
	}
	l, r := toNumber(left), toNumber(right)
	if math.IsNaN(l) || math.IsNaN(r) {
		return false
	}
	switch {
	case l < r:
		return cmp(-1)
	case l > r:
		return cmp(1)
	default:
		return cmp(0)
	}
}

func builtinDocument(exec *Execution, frame *Frame, args []Value) (Value, error) {
	doc, err := exec.document()
	if err != nil {
		return Null(), err
	}
	return NewElement(doc.Root()), nil
}

func builtinBody(exec *Execution, frame *Frame, args []Value) (Value, error) {
	doc, err := exec.document()
	if err != nil {
		return Null(), err
	}
	el, err := doc.QueryOne("body")
	if err != nil {
		return Null(), err
	}
	return NewElement(el), nil
}

func builtinWindow(exec *Execution, frame *Frame, args []Value) (Value, error) {
	if frame.host == nil {
		return Undefined(), nil
	}
	return Value{kind: KindObject, data: frame.host}, nil
}

func builtinNow(exec *Execution, frame *Frame, args []Value) (Value, error) {
	return NewNumber(float64(exec.engine.config.Clock().UnixMilli())), nil
}

func builtinFirst(exec *Execution, frame *Frame, args []Value) (Value, error) {
	switch v := args[0]; v.kind {
	case KindArray:
		if items := v.Items(); len(items) > 0 {
			return items[0], nil
		}
		return Null(), nil
	case KindString:
		if r := []rune(v.String()); len(r) > 0 {
			return NewString(string(r[0])), nil
		}
		return Null(), nil
	default:
		return v, nil
	}
}

func builtinLast(exec *Execution, frame *Frame, args []Value) (Value, error) {
	switch v := args[0]; v.kind {
	case KindArray:
		if items := v.Items(); len(items) > 0 {
			return items[len(items)-1], nil
		}
		return Null(), nil
	case KindString:
		if r := []rune(v.String()); len(r) > 0 {
			return NewString(string(r[len(r)-1])), nil
		}
		return Null(), nil
	default:
		return v, nil
	}
}

// startElement picks the element a positional expression starts from: the
// optional argument at idx, else me.
func startElement(frame *Frame, args []Value, idx int) Element {
	if idx < len(args) {
		return firstElement(args[idx])
	}
	return firstElement(frame.me)
}

func builtinClosest(exec *Execution, frame *Frame, args []Value) (Value, error) {
	doc, err := exec.document()
	if err != nil {
		return Null(), err
	}
	selector := args[0].String()
	for cur := startElement(frame, args, 1); cur != nil; cur = doc.Parent(cur) {
		ok, err := doc.Matches(cur, selector)
		if err != nil {
			return Null(), err
		}
		if ok {
			return NewElement(cur), nil
		}
	}
	return Null(), nil
}

func builtinSibling(property string) EvaluateFunc {
	return func(exec *Execution, frame *Frame, args []Value) (Value, error) {
		doc, err := exec.document()
		if err != nil {
			return Null(), err
		}
		selector := ""
		if len(args) > 0 && !args[0].IsNil() {
			selector = args[0].String()
		}
		cur := startElement(frame, args, 1)
		for cur != nil {
			next, ok := doc.Property(cur, property)
			if !ok {
				return Null(), nil
			}
			cur = next.Element()
			if cur == nil {
				return Null(), nil
			}
			if selector == "" {
				return NewElement(cur), nil
			}
			ok, err := doc.Matches(cur, selector)
			if err != nil {
				return Null(), err
			}
			if ok {
				return NewElement(cur), nil
			}
		}
		return Null(), nil
	}
}

func builtinParent(exec *Execution, frame *Frame, args []Value) (Value, error) {
	doc, err := exec.document()
	if err != nil {
		return Null(), err
	}
	start := startElement(frame, args, 0)
	if start == nil {
		return Null(), nil
	}
	return NewElement(doc.Parent(start)), nil
}

// firstElement unwraps an element or the first element of a collection.
func firstElement(v Value) Element {
	switch v.kind {
	case KindElement:
		return v.Element()
	case KindArray:
		for _, item := range v.Items() {
			if el := item.Element(); el != nil {
				return el
			}
		}
	}
	return nil
}

func describeArgs(args []Value) string {
	kinds := make([]string, len(args))
	for i, a := range args {
		kinds[i] = a.kind.String()
	}
	return fmt.Sprintf("(%s)", strings.Join(kinds, ", "))
}
