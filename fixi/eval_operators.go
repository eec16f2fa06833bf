package fixi

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

func (exec *Execution) evalBinary(e *BinaryOp, frame *Frame) (Value, error) {
	entry, ok := exec.registry().Binary(e.Operator)
	if !ok {
		return Undefined(), exec.faultAt(ErrUnknownOperator, e.Pos(), "unknown operator %q", e.Operator)
	}

	switch entry.op {
	case OpAssign:
		val, err := exec.evaluate(e.Right, frame)
		if err != nil {
			return Undefined(), err
		}
		if err := exec.assign(e.Left, val, frame); err != nil {
			return Undefined(), err
		}
		return val, nil
	case OpAnd, OpOr:
		left, err := exec.evaluate(e.Left, frame)
		if err != nil {
			return Undefined(), err
		}
		if left.Truthy() == (entry.op == OpOr) {
			return left, nil
		}
		return exec.evaluate(e.Right, frame)
	case OpIsA, OpIsNotA, OpAs:
		left, err := exec.evaluate(e.Left, frame)
		if err != nil {
			return Undefined(), err
		}
		name, err := exec.typeName(e.Right, frame)
		if err != nil {
			return Undefined(), err
		}
		switch entry.op {
		case OpIsA:
			return NewBool(isType(left, name)), nil
		case OpIsNotA:
			return NewBool(!isType(left, name)), nil
		default:
			return exec.convert(left, name, e.Pos())
		}
	}

	left, err := exec.evaluate(e.Left, frame)
	if err != nil {
		return Undefined(), err
	}
	right, err := exec.evaluate(e.Right, frame)
	if err != nil {
		return Undefined(), err
	}
	return exec.invokeEntry(entry, frame, []Value{left, right}, e.Pos())
}

// typeName reads the type operand of `is a` and `as`: a bare identifier or
// string names the type directly; anything else is evaluated.
func (exec *Execution) typeName(expr Expression, frame *Frame) (string, error) {
	switch t := expr.(type) {
	case *Identifier:
		return t.Name, nil
	case *Literal:
		if t.Value.kind == KindString {
			return t.Value.String(), nil
		}
	}
	val, err := exec.evaluate(expr, frame)
	if err != nil {
		return "", err
	}
	return val.String(), nil
}

func (exec *Execution) evalUnary(e *UnaryOp, frame *Frame) (Value, error) {
	entry, ok := exec.registry().Unary(e.Operator)
	if !ok {
		return Undefined(), exec.faultAt(ErrUnknownOperator, e.Pos(), "unknown unary operator %q", e.Operator)
	}
	val, err := exec.evaluate(e.Argument, frame)
	if err != nil {
		return Undefined(), err
	}
	switch entry.op {
	case OpNot:
		return NewBool(!val.Truthy()), nil
	case OpNegate:
		return NewNumber(-toNumber(val)), nil
	case OpPlus:
		return NewNumber(toNumber(val)), nil
	case OpNo:
		return NewBool(isEmpty(val)), nil
	case OpExists:
		return NewBool(!isEmpty(val)), nil
	case OpTypeof:
		return NewString(typeOf(val)), nil
	}
	return exec.invokeEntry(entry, frame, []Value{val}, e.Pos())
}

// containsValue backs `contains`: membership for arrays, substring for
// strings, selector match or descendant test for elements and key presence
// for objects.
func (exec *Execution) containsValue(container, item Value) (bool, error) {
	switch container.kind {
	case KindArray:
		for _, v := range container.Items() {
			if sameValueZero(v, item) {
				return true, nil
			}
		}
		return false, nil
	case KindString:
		return strings.Contains(container.String(), item.String()), nil
	case KindElement:
		doc, err := exec.document()
		if err != nil {
			return false, err
		}
		if el := item.Element(); el != nil {
			return isAncestor(doc, container.Element(), el), nil
		}
		if item.kind == KindString {
			return doc.Matches(container.Element(), item.String())
		}
		return false, nil
	case KindObject:
		_, ok := container.Object().Get(item.String())
		return ok, nil
	}
	return false, nil
}

func sameValueZero(a, b Value) bool {
	if a.kind == KindNumber && b.kind == KindNumber && math.IsNaN(a.Number()) && math.IsNaN(b.Number()) {
		return true
	}
	return strictEquals(a, b)
}

// matchesValue backs `matches`: CSS selector match for elements, regular
// expression match for text.
func (exec *Execution) matchesValue(subject, pattern Value) (bool, error) {
	if subject.IsCollection() {
		subject = unwrapCollection(subject, "")
	}
	switch subject.kind {
	case KindElement:
		doc, err := exec.document()
		if err != nil {
			return false, err
		}
		return doc.Matches(subject.Element(), pattern.String())
	case KindUndefined, KindNull:
		return false, nil
	}
	re, err := regexp.Compile(pattern.String())
	if err != nil {
		return false, newFault(ErrInvalidArgument, Position{}, "invalid pattern %q: %v", pattern.String(), err)
	}
	return re.MatchString(subject.String()), nil
}

// inValue backs `in`. A selector string in an element (or collection) yields
// the matching descendants; otherwise it is a membership test.
func (exec *Execution) inValue(item, container Value) (Value, error) {
	if item.kind == KindString && (container.kind == KindElement || container.IsCollection()) {
		doc, err := exec.document()
		if err != nil {
			return Undefined(), err
		}
		var roots []Element
		if el := container.Element(); el != nil {
			roots = []Element{el}
		} else {
			for _, v := range container.Items() {
				if el := v.Element(); el != nil {
					roots = append(roots, el)
				}
			}
		}
		var found []Element
		for _, root := range roots {
			matches, err := doc.QueryWithin(root, item.String())
			if err != nil {
				return Undefined(), err
			}
			found = append(found, matches...)
		}
		return NewCollection(found), nil
	}
	switch container.kind {
	case KindArray:
		return NewBool(indexOf(container.Items(), item) >= 0), nil
	case KindObject:
		_, ok := container.Object().Get(item.String())
		return NewBool(ok), nil
	case KindString:
		return NewBool(strings.Contains(container.String(), item.String())), nil
	}
	return NewBool(false), nil
}

// isType tests v against a type name. Known names use the fixed vocabulary;
// other names compare against the constructor name.
func isType(v Value, name string) bool {
	switch strings.ToLower(name) {
	case "string":
		return v.kind == KindString
	case "number":
		return v.kind == KindNumber
	case "int", "integer":
		n := v.Number()
		return v.kind == KindNumber && n == math.Trunc(n) && !math.IsInf(n, 0)
	case "boolean", "bool":
		return v.kind == KindBool
	case "array":
		return v.kind == KindArray
	case "object":
		return v.kind == KindObject
	case "function":
		return v.kind == KindFunction
	case "element":
		return v.kind == KindElement
	case "null":
		return v.kind == KindNull
	case "undefined":
		return v.kind == KindUndefined
	}
	return name != "" && constructorName(v) == name
}

// convert backs `as`.
func (exec *Execution) convert(v Value, name string, pos Position) (Value, error) {
	base, arg, _ := strings.Cut(name, ":")
	switch strings.ToLower(base) {
	case "string":
		return NewString(v.String()), nil
	case "number", "float":
		return NewNumber(toNumber(v)), nil
	case "int", "integer":
		return NewNumber(math.Trunc(toNumber(v))), nil
	case "boolean", "bool":
		return NewBool(v.Truthy()), nil
	case "fixed":
		digits := 0
		if arg != "" {
			d, err := strconv.Atoi(arg)
			if err != nil || d < 0 || d > 100 {
				return Undefined(), exec.faultAt(ErrInvalidArgument, pos, "invalid precision %q", arg)
			}
			digits = d
		}
		return NewString(strconv.FormatFloat(toNumber(v), 'f', digits, 64)), nil
	case "array":
		switch v.kind {
		case KindArray:
			return NewArray(append([]Value(nil), v.Items()...)), nil
		case KindUndefined, KindNull:
			return NewArray(nil), nil
		case KindObject:
			obj := v.Object()
			items := make([]Value, 0, obj.Len())
			for _, k := range obj.keys {
				items = append(items, obj.fields[k])
			}
			return NewArray(items), nil
		default:
			return NewArray([]Value{v}), nil
		}
	case "json":
		text, err := stringifyJSON(v, "")
		if err != nil {
			return Undefined(), exec.faultAt(ErrInvalidArgument, pos, "%v", err)
		}
		return NewString(text), nil
	case "object":
		if v.kind == KindString {
			val, err := parseJSON(v.String())
			if err != nil {
				return Undefined(), exec.faultAt(ErrInvalidArgument, pos, "cannot convert to Object: %v", err)
			}
			return val, nil
		}
		return v, nil
	}
	return Undefined(), exec.faultAt(ErrInvalidArgument, pos, "unknown conversion %q", name)
}
