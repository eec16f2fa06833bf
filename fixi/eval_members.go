package fixi

import (
	"math"
	"strconv"
	"strings"
)

// arrayMembers are resolved on a collection itself instead of its first
// element.
var arrayMembers = map[string]bool{
	"length": true, "first": true, "last": true,
	"at": true, "concat": true, "includes": true, "indexOf": true,
	"join": true, "pop": true, "push": true, "reverse": true,
	"shift": true, "slice": true, "unshift": true,
}

func (exec *Execution) evalMemberAccess(e *MemberAccess, frame *Frame) (Value, error) {
	obj, err := exec.evaluate(e.Object, frame)
	if err != nil {
		return Undefined(), err
	}
	if e.Computed {
		key, err := exec.evaluate(e.Property, frame)
		if err != nil {
			return Undefined(), err
		}
		return exec.index(obj, key, e.Pos())
	}
	name, err := exec.propertyName(e)
	if err != nil {
		return Undefined(), err
	}
	return exec.property(obj, name, e.Pos())
}

func (exec *Execution) propertyName(e *MemberAccess) (string, error) {
	switch p := e.Property.(type) {
	case *Identifier:
		return p.Name, nil
	case *Literal:
		if p.Value.kind == KindString {
			return p.Value.String(), nil
		}
	}
	return "", exec.faultAt(ErrInvalidArgument, e.Pos(), "member name must be an identifier or string")
}

// unwrapCollection applies the first-element rule: a collection stands for
// its first element unless name is a collection member.
func unwrapCollection(obj Value, name string) Value {
	if !obj.IsCollection() || arrayMembers[name] {
		return obj
	}
	items := obj.Items()
	if len(items) == 0 {
		return Null()
	}
	return items[0]
}

// property reads name from obj. Member access on null or undefined yields
// null rather than failing.
func (exec *Execution) property(obj Value, name string, pos Position) (Value, error) {
	obj = unwrapCollection(obj, name)
	switch obj.kind {
	case KindUndefined, KindNull:
		return Null(), nil
	case KindObject:
		if val, ok := obj.Object().Get(name); ok {
			return val, nil
		}
		return Undefined(), nil
	case KindArray:
		return arrayProperty(obj, name), nil
	case KindString:
		return stringProperty(obj, name), nil
	case KindElement:
		return exec.elementProperty(obj.Element(), name, pos)
	case KindFunction:
		if name == "name" {
			return NewString(obj.Function().Name), nil
		}
	}
	return Undefined(), nil
}

func (exec *Execution) index(obj Value, key Value, pos Position) (Value, error) {
	if key.kind != KindNumber {
		return exec.property(obj, key.String(), pos)
	}
	n := key.Number()
	i := int(n)
	if float64(i) != n {
		return exec.property(obj, key.String(), pos)
	}
	switch obj.kind {
	case KindUndefined, KindNull:
		return Null(), nil
	case KindArray:
		items := obj.Items()
		if i < 0 || i >= len(items) {
			return Undefined(), nil
		}
		return items[i], nil
	case KindString:
		runes := []rune(obj.String())
		if i < 0 || i >= len(runes) {
			return Undefined(), nil
		}
		return NewString(string(runes[i])), nil
	}
	return exec.property(obj, key.String(), pos)
}

func bound(name string, this Value, fn func(exec *Execution, this Value, args []Value) (Value, error)) Value {
	return NewNativeFunction(name, func(exec *Execution, frame *Frame, _ Value, args []Value) (Value, error) {
		return fn(exec, this, args)
	})
}

func arrayProperty(v Value, name string) Value {
	arr := v.Array()
	switch name {
	case "length":
		return NewInt(len(arr.Items))
	case "first":
		if len(arr.Items) == 0 {
			return Null()
		}
		return arr.Items[0]
	case "last":
		if len(arr.Items) == 0 {
			return Null()
		}
		return arr.Items[len(arr.Items)-1]
	case "at":
		return bound(name, v, func(exec *Execution, this Value, args []Value) (Value, error) {
			i := int(toNumber(arg(args, 0)))
			if i < 0 {
				i += len(arr.Items)
			}
			if i < 0 || i >= len(arr.Items) {
				return Undefined(), nil
			}
			return arr.Items[i], nil
		})
	case "includes":
		return bound(name, v, func(exec *Execution, this Value, args []Value) (Value, error) {
			return NewBool(indexOf(arr.Items, arg(args, 0)) >= 0), nil
		})
	case "indexOf":
		return bound(name, v, func(exec *Execution, this Value, args []Value) (Value, error) {
			return NewInt(indexOf(arr.Items, arg(args, 0))), nil
		})
	case "join":
		return bound(name, v, func(exec *Execution, this Value, args []Value) (Value, error) {
			sep := ","
			if s := arg(args, 0); s.kind != KindUndefined {
				sep = s.String()
			}
			parts := make([]string, len(arr.Items))
			for i, item := range arr.Items {
				if !item.IsNil() {
					parts[i] = item.String()
				}
			}
			return NewString(strings.Join(parts, sep)), nil
		})
	case "push":
		return bound(name, v, func(exec *Execution, this Value, args []Value) (Value, error) {
			arr.Items = append(arr.Items, args...)
			return NewInt(len(arr.Items)), nil
		})
	case "pop":
		return bound(name, v, func(exec *Execution, this Value, args []Value) (Value, error) {
			if len(arr.Items) == 0 {
				return Undefined(), nil
			}
			last := arr.Items[len(arr.Items)-1]
			arr.Items = arr.Items[:len(arr.Items)-1]
			return last, nil
		})
	case "shift":
		return bound(name, v, func(exec *Execution, this Value, args []Value) (Value, error) {
			if len(arr.Items) == 0 {
				return Undefined(), nil
			}
			first := arr.Items[0]
			arr.Items = arr.Items[1:]
			return first, nil
		})
	case "unshift":
		return bound(name, v, func(exec *Execution, this Value, args []Value) (Value, error) {
			arr.Items = append(append([]Value(nil), args...), arr.Items...)
			return NewInt(len(arr.Items)), nil
		})
	case "reverse":
		return bound(name, v, func(exec *Execution, this Value, args []Value) (Value, error) {
			for i, j := 0, len(arr.Items)-1; i < j; i, j = i+1, j-1 {
				arr.Items[i], arr.Items[j] = arr.Items[j], arr.Items[i]
			}
			return this, nil
		})
	case "slice":
		return bound(name, v, func(exec *Execution, this Value, args []Value) (Value, error) {
			start, end := sliceBounds(len(arr.Items), args)
			return NewArray(append([]Value(nil), arr.Items[start:end]...)), nil
		})
	case "concat":
		return bound(name, v, func(exec *Execution, this Value, args []Value) (Value, error) {
			items := append([]Value(nil), arr.Items...)
			for _, a := range args {
				if a.kind == KindArray {
					items = append(items, a.Items()...)
				} else {
					items = append(items, a)
				}
			}
			return NewArray(items), nil
		})
	}
	return Undefined()
}

func indexOf(items []Value, needle Value) int {
	for i, item := range items {
		if strictEquals(item, needle) {
			return i
		}
	}
	return -1
}

func sliceBounds(n int, args []Value) (int, int) {
	clamp := func(v Value, def int) int {
		if v.kind == KindUndefined {
			return def
		}
		f := toNumber(v)
		if math.IsNaN(f) {
			return 0
		}
		i := int(f)
		if i < 0 {
			i += n
		}
		return max(0, min(n, i))
	}
	start := clamp(arg(args, 0), 0)
	end := clamp(arg(args, 1), n)
	if end < start {
		end = start
	}
	return start, end
}

func stringProperty(v Value, name string) Value {
	s := v.String()
	switch name {
	case "length":
		return NewInt(len([]rune(s)))
	case "toUpperCase":
		return bound(name, v, func(exec *Execution, this Value, args []Value) (Value, error) {
			return NewString(strings.ToUpper(s)), nil
		})
	case "toLowerCase":
		return bound(name, v, func(exec *Execution, this Value, args []Value) (Value, error) {
			return NewString(strings.ToLower(s)), nil
		})
	case "trim":
		return bound(name, v, func(exec *Execution, this Value, args []Value) (Value, error) {
			return NewString(strings.TrimSpace(s)), nil
		})
	case "includes":
		return bound(name, v, func(exec *Execution, this Value, args []Value) (Value, error) {
			return NewBool(strings.Contains(s, arg(args, 0).String())), nil
		})
	case "startsWith":
		return bound(name, v, func(exec *Execution, this Value, args []Value) (Value, error) {
			return NewBool(strings.HasPrefix(s, arg(args, 0).String())), nil
		})
	case "endsWith":
		return bound(name, v, func(exec *Execution, this Value, args []Value) (Value, error) {
			return NewBool(strings.HasSuffix(s, arg(args, 0).String())), nil
		})
	case "indexOf":
		return bound(name, v, func(exec *Execution, this Value, args []Value) (Value, error) {
			i := strings.Index(s, arg(args, 0).String())
			if i > 0 {
				i = len([]rune(s[:i]))
			}
			return NewInt(i), nil
		})
	case "split":
		return bound(name, v, func(exec *Execution, this Value, args []Value) (Value, error) {
			var parts []string
			if sep := arg(args, 0); sep.kind == KindUndefined {
				parts = []string{s}
			} else {
				parts = strings.Split(s, sep.String())
			}
			items := make([]Value, len(parts))
			for i, p := range parts {
				items[i] = NewString(p)
			}
			return NewArray(items), nil
		})
	case "slice", "substring":
		return bound(name, v, func(exec *Execution, this Value, args []Value) (Value, error) {
			runes := []rune(s)
			start, end := sliceBounds(len(runes), args)
			return NewString(string(runes[start:end])), nil
		})
	case "replace":
		return bound(name, v, func(exec *Execution, this Value, args []Value) (Value, error) {
			return NewString(strings.Replace(s, arg(args, 0).String(), arg(args, 1).String(), 1)), nil
		})
	case "toString":
		return bound(name, v, func(exec *Execution, this Value, args []Value) (Value, error) {
			return this, nil
		})
	}
	return Undefined()
}

// elementProperty reads `@name` as an attribute and everything else through
// the document, with a handful of DOM methods bound to the element.
func (exec *Execution) elementProperty(el Element, name string, pos Position) (Value, error) {
	doc, err := exec.document()
	if err != nil {
		return Undefined(), err
	}
	if attr, ok := strings.CutPrefix(name, "@"); ok {
		if val, ok := doc.Attribute(el, attr); ok {
			return NewString(val), nil
		}
		return Null(), nil
	}
	if val, ok := doc.Property(el, name); ok {
		return val, nil
	}
	this := NewElement(el)
	switch name {
	case "getAttribute":
		return bound(name, this, func(exec *Execution, this Value, args []Value) (Value, error) {
			if val, ok := doc.Attribute(el, arg(args, 0).String()); ok {
				return NewString(val), nil
			}
			return Null(), nil
		}), nil
	case "hasAttribute":
		return bound(name, this, func(exec *Execution, this Value, args []Value) (Value, error) {
			return NewBool(doc.HasAttribute(el, arg(args, 0).String())), nil
		}), nil
	case "setAttribute":
		return bound(name, this, func(exec *Execution, this Value, args []Value) (Value, error) {
			return Undefined(), doc.SetAttribute(el, arg(args, 0).String(), arg(args, 1).String())
		}), nil
	case "removeAttribute":
		return bound(name, this, func(exec *Execution, this Value, args []Value) (Value, error) {
			return Undefined(), doc.RemoveAttribute(el, arg(args, 0).String())
		}), nil
	case "querySelector":
		return bound(name, this, func(exec *Execution, this Value, args []Value) (Value, error) {
			found, err := doc.QueryWithin(el, arg(args, 0).String())
			if err != nil || len(found) == 0 {
				return Null(), err
			}
			return NewElement(found[0]), nil
		}), nil
	case "querySelectorAll":
		return bound(name, this, func(exec *Execution, this Value, args []Value) (Value, error) {
			found, err := doc.QueryWithin(el, arg(args, 0).String())
			if err != nil {
				return Undefined(), err
			}
			return NewCollection(found), nil
		}), nil
	case "matches":
		return bound(name, this, func(exec *Execution, this Value, args []Value) (Value, error) {
			ok, err := doc.Matches(el, arg(args, 0).String())
			return NewBool(ok), err
		}), nil
	case "closest":
		return bound(name, this, func(exec *Execution, this Value, args []Value) (Value, error) {
			return builtinClosest(exec, &Frame{me: this}, []Value{arg(args, 0)})
		}), nil
	case "contains":
		return bound(name, this, func(exec *Execution, this Value, args []Value) (Value, error) {
			return NewBool(isAncestor(doc, el, arg(args, 0).Element())), nil
		}), nil
	case "remove":
		return bound(name, this, func(exec *Execution, this Value, args []Value) (Value, error) {
			return Undefined(), doc.Remove(el)
		}), nil
	case "click", "focus", "blur":
		return bound(name, this, func(exec *Execution, this Value, args []Value) (Value, error) {
			return Undefined(), doc.Dispatch(el, exec.newEvent(name, el, Undefined()))
		}), nil
	}
	return Undefined(), nil
}

// isAncestor reports whether el is node or one of its ancestors.
func isAncestor(doc Document, el, node Element) bool {
	if el == nil || node == nil {
		return false
	}
	for cur := node; cur != nil; cur = doc.Parent(cur) {
		if cur == el {
			return true
		}
	}
	return false
}

// setProperty writes name on obj. Writes to a collection apply to every
// element in it.
func (exec *Execution) setProperty(obj Value, name string, val Value, pos Position) error {
	if obj.IsCollection() {
		for _, item := range obj.Items() {
			if err := exec.setProperty(item, name, val, pos); err != nil {
				return err
			}
		}
		return nil
	}
	switch obj.kind {
	case KindObject:
		obj.Object().Set(name, val)
		return nil
	case KindArray:
		i, err := strconv.Atoi(name)
		arr := obj.Array()
		if err != nil || i < 0 || i > len(arr.Items) {
			return exec.faultAt(ErrNotAssignable, pos, "cannot set %q on array", name)
		}
		if i == len(arr.Items) {
			arr.Items = append(arr.Items, val)
		} else {
			arr.Items[i] = val
		}
		return nil
	case KindElement:
		doc, err := exec.document()
		if err != nil {
			return err
		}
		el := obj.Element()
		if attr, ok := strings.CutPrefix(name, "@"); ok {
			if val.IsNil() {
				return exec.wrapError(doc.RemoveAttribute(el, attr), pos)
			}
			return exec.wrapError(doc.SetAttribute(el, attr, val.String()), pos)
		}
		return exec.wrapError(doc.SetProperty(el, name, val), pos)
	case KindUndefined, KindNull:
		return exec.faultAt(ErrNotAssignable, pos, "cannot set property %q of %s", name, obj.kind)
	default:
		return exec.faultAt(ErrNotAssignable, pos, "cannot set property %q on %s", name, obj.kind)
	}
}

// assign stores val into the place target names.
func (exec *Execution) assign(target Expression, val Value, frame *Frame) error {
	switch t := target.(type) {
	case *Identifier:
		exec.assignIdentifier(t, val, frame)
		return nil
	case *ContextReference:
		switch t.Kind {
		case ContextIt, ContextResult:
			frame.it = val
		case ContextYou:
			frame.you = val
		case ContextMe:
			frame.me = val
		default:
			return exec.faultAt(ErrNotAssignable, t.Pos(), "cannot assign to %s", t.Kind)
		}
		return nil
	case *MemberAccess:
		obj, err := exec.evaluate(t.Object, frame)
		if err != nil {
			return err
		}
		var name string
		if t.Computed {
			key, err := exec.evaluate(t.Property, frame)
			if err != nil {
				return err
			}
			name = key.String()
		} else if name, err = exec.propertyName(t); err != nil {
			return err
		}
		return exec.setProperty(obj, name, val, t.Pos())
	case *Possessive:
		obj, err := exec.evaluate(t.Object, frame)
		if err != nil {
			return err
		}
		return exec.setProperty(obj, t.Property, val, t.Pos())
	case *PropertyOf:
		obj, err := exec.evaluate(t.Target, frame)
		if err != nil {
			return err
		}
		return exec.setProperty(obj, t.Property, val, t.Pos())
	case nil:
		return exec.faultAt(ErrNotAssignable, Position{}, "missing assignment target")
	default:
		return exec.faultAt(ErrNotAssignable, target.Pos(), "cannot assign to %T", target)
	}
}

// assignIdentifier writes to the nearest store already binding the name:
// special bindings, locals, legacy variables, globals, else a new local.
func (exec *Execution) assignIdentifier(id *Identifier, val Value, frame *Frame) {
	switch id.Scope {
	case ScopeGlobal:
		frame.Set(id.Name, val, true)
		return
	case ScopeLocal:
		frame.Set(id.Name, val, false)
		return
	}
	switch id.Name {
	case "it", "result":
		frame.it = val
		return
	case "you":
		frame.you = val
		return
	case "me":
		frame.me = val
		return
	}
	if frame.localOwner(id.Name) != nil {
		frame.Set(id.Name, val, false)
		return
	}
	if frame.variables != nil {
		if _, ok := frame.variables[id.Name]; ok {
			frame.variables[id.Name] = val
			return
		}
	}
	if _, ok := frame.globals.Get(id.Name); ok {
		frame.globals.Set(id.Name, val)
		return
	}
	frame.SetLocal(id.Name, val)
}

// assignable reports whether expr can be the target of an assignment.
func assignable(expr Expression) bool {
	switch t := expr.(type) {
	case *Identifier, *MemberAccess, *Possessive, *PropertyOf:
		return true
	case *ContextReference:
		switch t.Kind {
		case ContextIt, ContextResult, ContextYou, ContextMe:
			return true
		}
	}
	return false
}
