package fixi

import (
	"strings"
)

// Evaluate computes the value of expr in frame. A halt raised by a function
// called from expr is not an error: it marks frame halted and yields
// undefined.
func (exec *Execution) Evaluate(expr Expression, frame *Frame) (Value, error) {
	val, err := exec.evaluate(expr, frame)
	if sig, ok := asSignal(err); ok {
		markSignal(frame, sig)
		return Undefined(), nil
	}
	return val, err
}

func (exec *Execution) evaluate(expr Expression, frame *Frame) (Value, error) {
	if err := exec.step(); err != nil {
		return Undefined(), err
	}
	switch e := expr.(type) {
	case nil:
		return Undefined(), exec.faultAt(ErrUnknownNode, Position{}, "missing expression")
	case *Literal:
		return cloneLiteral(e.Value), nil
	case *Identifier:
		val, _, err := exec.resolveIdentifier(e, frame)
		return val, err
	case *ContextReference:
		return exec.evalContextReference(e, frame)
	case *MemberAccess:
		return exec.evalMemberAccess(e, frame)
	case *Possessive:
		obj, err := exec.evaluate(e.Object, frame)
		if err != nil {
			return Undefined(), err
		}
		return exec.property(obj, e.Property, e.Pos())
	case *PropertyOf:
		target, err := exec.evaluate(e.Target, frame)
		if err != nil {
			return Undefined(), err
		}
		return exec.property(target, e.Property, e.Pos())
	case *BinaryOp:
		return exec.evalBinary(e, frame)
	case *UnaryOp:
		return exec.evalUnary(e, frame)
	case *Call:
		return exec.evalCall(e, frame)
	case *Selector:
		return exec.queryAll(e.Raw, e.Pos())
	case *CSSSelector:
		return exec.evalCSSSelector(e)
	case *TemplateLiteral:
		return exec.evalTemplate(e, frame)
	case *ArrayLiteral:
		items := make([]Value, len(e.Elements))
		for i, el := range e.Elements {
			val, err := exec.evaluate(el, frame)
			if err != nil {
				return Undefined(), err
			}
			items[i] = val
		}
		return NewArray(items), nil
	case *ObjectLiteral:
		obj := newObject("Object")
		for _, prop := range e.Properties {
			val, err := exec.evaluate(prop.Value, frame)
			if err != nil {
				return Undefined(), err
			}
			obj.Set(prop.Key, val)
		}
		return Value{kind: KindObject, data: obj}, nil
	case *Conditional:
		test, err := exec.evaluate(e.Test, frame)
		if err != nil {
			return Undefined(), err
		}
		if test.Truthy() {
			return exec.evaluate(e.Then, frame)
		}
		if e.Else == nil {
			return Undefined(), nil
		}
		return exec.evaluate(e.Else, frame)
	default:
		return Undefined(), exec.faultAt(ErrUnknownNode, expr.Pos(), "unsupported expression %T", expr)
	}
}

// cloneLiteral copies array and object literal values one level deep so
// evaluating the same node twice yields distinct references.
func cloneLiteral(v Value) Value {
	switch v.kind {
	case KindArray:
		arr := v.Array()
		items := append([]Value(nil), arr.Items...)
		return Value{kind: KindArray, data: &Array{Items: items, collection: arr.collection}}
	case KindObject:
		src := v.Object()
		obj := newObject(src.class)
		for _, k := range src.keys {
			obj.Set(k, src.fields[k])
		}
		return Value{kind: KindObject, data: obj}
	}
	return v
}

// contextValue resolves the special context names.
func contextValue(frame *Frame, name string) (Value, bool) {
	switch name {
	case "me", "my", "I":
		return frame.me, true
	case "you", "your", "yourself":
		return frame.you, true
	case "it", "its", "result":
		return frame.it, true
	case "event":
		return frame.evtVal, true
	}
	return Undefined(), false
}

// resolveIdentifier reports whether the name was bound anywhere. Special
// names come first, then zero-argument registry entries, then the frame.
func (exec *Execution) resolveIdentifier(id *Identifier, frame *Frame) (Value, bool, error) {
	if id.Scope == ScopeAny {
		if val, ok := contextValue(frame, id.Name); ok {
			return val, true, nil
		}
		if entry, ok := exec.registry().Lookup(id.Name); ok && entry.ZeroArg() {
			val, err := exec.invokeEntry(entry, frame, nil, id.Pos())
			return val, true, err
		}
	}
	val, ok := frame.Get(id.Name, id.Scope)
	return val, ok, nil
}

func (exec *Execution) evalContextReference(ref *ContextReference, frame *Frame) (Value, error) {
	switch ref.Kind {
	case ContextMe:
		return frame.me, nil
	case ContextYou:
		return frame.you, nil
	case ContextIt, ContextResult:
		return frame.it, nil
	case ContextEvent:
		return frame.evtVal, nil
	case ContextTarget:
		if frame.event == nil {
			return Null(), nil
		}
		return NewElement(frame.event.Target), nil
	case ContextDetail:
		if frame.event == nil {
			return Undefined(), nil
		}
		return frame.event.Detail, nil
	default:
		return Undefined(), exec.faultAt(ErrUnknownNode, ref.Pos(), "unknown context reference %q", ref.Kind)
	}
}

func (exec *Execution) queryAll(selector string, pos Position) (Value, error) {
	doc, err := exec.document()
	if err != nil {
		return Undefined(), err
	}
	elems, err := doc.QueryAll(selector)
	if err != nil {
		return Undefined(), exec.wrapError(err, pos)
	}
	return NewCollection(elems), nil
}

func (exec *Execution) evalCSSSelector(sel *CSSSelector) (Value, error) {
	switch sel.Kind {
	case SelectorID:
		doc, err := exec.document()
		if err != nil {
			return Undefined(), err
		}
		query := sel.Selector
		if !strings.HasPrefix(query, "#") {
			query = "#" + query
		}
		el, err := doc.QueryOne(query)
		if err != nil {
			return Undefined(), exec.wrapError(err, sel.Pos())
		}
		return NewElement(el), nil
	case SelectorClass:
		query := sel.Selector
		if !strings.HasPrefix(query, ".") {
			query = "." + query
		}
		return exec.queryAll(query, sel.Pos())
	default:
		return exec.queryAll(sel.Selector, sel.Pos())
	}
}

func (exec *Execution) evalTemplate(tpl *TemplateLiteral, frame *Frame) (Value, error) {
	var b strings.Builder
	for _, seg := range tpl.Segments {
		if seg.Expr == nil {
			b.WriteString(seg.Text)
			continue
		}
		val, err := exec.evaluate(seg.Expr, frame)
		if err != nil {
			return Undefined(), err
		}
		b.WriteString(val.String())
	}
	return NewString(b.String()), nil
}

// iterate materializes v for a for-in loop.
func (exec *Execution) iterate(v Value, pos Position) ([]Value, error) {
	switch v.kind {
	case KindUndefined, KindNull:
		return nil, nil
	case KindArray:
		return append([]Value(nil), v.Items()...), nil
	case KindObject:
		keys := v.Object().Keys()
		items := make([]Value, len(keys))
		for i, k := range keys {
			items[i] = NewString(k)
		}
		return items, nil
	case KindString:
		runes := []rune(v.String())
		items := make([]Value, len(runes))
		for i, r := range runes {
			items[i] = NewString(string(r))
		}
		return items, nil
	case KindElement:
		return []Value{v}, nil
	default:
		return nil, exec.faultAt(ErrNotIterable, pos, "cannot iterate over %s", v.kind)
	}
}

func (exec *Execution) logValues(vals []Value) {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	exec.log.Info().Strs("values", parts).Msg(strings.Join(parts, " "))
}
