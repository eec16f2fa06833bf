package fixi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

type fakeElement struct {
	tag      string
	attrs    map[string]string
	props    map[string]Value
	text     string
	parent   *fakeElement
	children []*fakeElement
}

func (e *fakeElement) TagName() string { return strings.ToUpper(e.tag) }

func (e *fakeElement) String() string {
	s := e.tag
	if id := e.attrs["id"]; id != "" {
		s += "#" + id
	}
	return s
}

type fakeSubscription struct {
	el      *fakeElement
	event   string
	handler EventHandler
}

func (s *fakeSubscription) Event() string { return s.event }

// fakeDocument is a small in-memory tree. Selectors are single compounds of
// an optional tag, #id and .class parts.
type fakeDocument struct {
	mu   sync.Mutex
	root *fakeElement
	body *fakeElement
	subs []*fakeSubscription
}

func newFakeDocument() *fakeDocument {
	root := &fakeElement{tag: "html", attrs: map[string]string{}, props: map[string]Value{}}
	doc := &fakeDocument{root: root}
	doc.body = doc.add(root, "body", "")
	return doc
}

// add appends a child element; classes are space separated in cls.
func (d *fakeDocument) add(parent *fakeElement, tag, id string, cls ...string) *fakeElement {
	el := &fakeElement{tag: tag, attrs: map[string]string{}, props: map[string]Value{}, parent: parent}
	if id != "" {
		el.attrs["id"] = id
	}
	if len(cls) > 0 {
		el.attrs["class"] = strings.Join(cls, " ")
	}
	parent.children = append(parent.children, el)
	return el
}

func (d *fakeDocument) listenerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

func asFake(el Element) (*fakeElement, error) {
	fe, ok := el.(*fakeElement)
	if !ok || fe == nil {
		return nil, fmt.Errorf("not a fake element: %T", el)
	}
	return fe, nil
}

func (d *fakeDocument) walk(from *fakeElement, fn func(*fakeElement)) {
	for _, c := range from.children {
		fn(c)
		d.walk(c, fn)
	}
}

func matchCompound(el *fakeElement, selector string) (bool, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" || strings.ContainsAny(selector, " >+~[],") {
		return false, fmt.Errorf("unsupported selector %q", selector)
	}
	rest := selector
	tag := rest
	if i := strings.IndexAny(rest, "#."); i >= 0 {
		tag, rest = rest[:i], rest[i:]
	} else {
		rest = ""
	}
	if tag != "" && tag != "*" && !strings.EqualFold(tag, el.tag) {
		return false, nil
	}
	for rest != "" {
		kind := rest[0]
		rest = rest[1:]
		end := strings.IndexAny(rest, "#.")
		if end < 0 {
			end = len(rest)
		}
		part := rest[:end]
		rest = rest[end:]
		switch kind {
		case '#':
			if el.attrs["id"] != part {
				return false, nil
			}
		case '.':
			if !strings.Contains(" "+el.attrs["class"]+" ", " "+part+" ") {
				return false, nil
			}
		}
	}
	return true, nil
}

func (d *fakeDocument) Root() Element { return d.root }

func (d *fakeDocument) QueryOne(selector string) (Element, error) {
	found, err := d.QueryAll(selector)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

func (d *fakeDocument) QueryAll(selector string) ([]Element, error) {
	return d.QueryWithin(d.root, selector)
}

func (d *fakeDocument) QueryWithin(root Element, selector string) ([]Element, error) {
	fr, err := asFake(root)
	if err != nil {
		return nil, err
	}
	var out []Element
	var firstErr error
	d.walk(fr, func(el *fakeElement) {
		ok, err := matchCompound(el, selector)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if ok {
			out = append(out, el)
		}
	})
	return out, firstErr
}

func (d *fakeDocument) Matches(el Element, selector string) (bool, error) {
	fe, err := asFake(el)
	if err != nil {
		return false, err
	}
	return matchCompound(fe, selector)
}

func (d *fakeDocument) Parent(el Element) Element {
	fe, err := asFake(el)
	if err != nil || fe.parent == nil {
		return nil
	}
	return fe.parent
}

func (d *fakeDocument) Attribute(el Element, name string) (string, bool) {
	fe, err := asFake(el)
	if err != nil {
		return "", false
	}
	v, ok := fe.attrs[name]
	return v, ok
}

func (d *fakeDocument) HasAttribute(el Element, name string) bool {
	_, ok := d.Attribute(el, name)
	return ok
}

func (d *fakeDocument) SetAttribute(el Element, name, value string) error {
	fe, err := asFake(el)
	if err != nil {
		return err
	}
	fe.attrs[name] = value
	return nil
}

func (d *fakeDocument) RemoveAttribute(el Element, name string) error {
	fe, err := asFake(el)
	if err != nil {
		return err
	}
	delete(fe.attrs, name)
	return nil
}

func (d *fakeDocument) Property(el Element, name string) (Value, bool) {
	fe, err := asFake(el)
	if err != nil {
		return Undefined(), false
	}
	switch name {
	case "id":
		return NewString(fe.attrs["id"]), true
	case "textContent":
		return NewString(fe.text), true
	case "parentElement":
		return NewElement(d.Parent(fe)), true
	case "nextElementSibling", "previousElementSibling":
		if fe.parent == nil {
			return Null(), true
		}
		sibs := fe.parent.children
		for i, c := range sibs {
			if c != fe {
				continue
			}
			if name == "nextElementSibling" && i+1 < len(sibs) {
				return NewElement(sibs[i+1]), true
			}
			if name == "previousElementSibling" && i > 0 {
				return NewElement(sibs[i-1]), true
			}
		}
		return Null(), true
	}
	v, ok := fe.props[name]
	return v, ok
}

func (d *fakeDocument) SetProperty(el Element, name string, val Value) error {
	fe, err := asFake(el)
	if err != nil {
		return err
	}
	switch name {
	case "id":
		fe.attrs["id"] = val.String()
	case "textContent":
		fe.text = val.String()
		fe.children = nil
	default:
		fe.props[name] = val
	}
	return nil
}

func (d *fakeDocument) Subscribe(el Element, event string, handler EventHandler) (Subscription, error) {
	fe, err := asFake(el)
	if err != nil {
		return nil, err
	}
	sub := &fakeSubscription{el: fe, event: event, handler: handler}
	d.mu.Lock()
	d.subs = append(d.subs, sub)
	d.mu.Unlock()
	return sub, nil
}

func (d *fakeDocument) Unsubscribe(sub Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, s := range d.subs {
		if s == sub {
			d.subs = append(d.subs[:i], d.subs[i+1:]...)
			return
		}
	}
}

// Dispatch delivers ev to el and then to its ancestors until propagation is
// stopped.
func (d *fakeDocument) Dispatch(el Element, ev *Event) error {
	fe, err := asFake(el)
	if err != nil {
		return err
	}
	for cur := fe; cur != nil; cur = cur.parent {
		d.mu.Lock()
		var handlers []EventHandler
		for _, s := range d.subs {
			if s.el == cur && s.event == ev.Name {
				handlers = append(handlers, s.handler)
			}
		}
		d.mu.Unlock()
		for _, h := range handlers {
			h(ev)
		}
		if ev.PropagationStopped() {
			break
		}
	}
	return nil
}

func (d *fakeDocument) Mutate(el Element, kind PlacementKind, content Value) error {
	fe, err := asFake(el)
	if err != nil {
		return err
	}
	child, _ := asFake(content.Element())
	switch kind {
	case PlaceInner:
		fe.children = nil
		fe.text = ""
		if child != nil {
			d.detach(child)
			child.parent = fe
			fe.children = []*fakeElement{child}
			return nil
		}
		fe.text = content.String()
	case PlaceEnd:
		if child != nil {
			d.detach(child)
			child.parent = fe
			fe.children = append(fe.children, child)
			return nil
		}
		fe.text += content.String()
	case PlaceStart:
		if child != nil {
			d.detach(child)
			child.parent = fe
			fe.children = append([]*fakeElement{child}, fe.children...)
			return nil
		}
		fe.text = content.String() + fe.text
	case PlaceOuter:
		if child == nil {
			return errors.New("fake document replaces with elements only")
		}
		parent := fe.parent
		if parent == nil {
			return errors.New("cannot replace the root")
		}
		d.detach(child)
		for i, c := range parent.children {
			if c == fe {
				parent.children[i] = child
				child.parent = parent
				fe.parent = nil
				break
			}
		}
	default:
		return fmt.Errorf("unsupported placement %v", kind)
	}
	return nil
}

func (d *fakeDocument) detach(el *fakeElement) {
	parent := el.parent
	if parent == nil {
		return
	}
	for i, c := range parent.children {
		if c == el {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			break
		}
	}
	el.parent = nil
}

func (d *fakeDocument) Remove(el Element) error {
	fe, err := asFake(el)
	if err != nil {
		return err
	}
	d.detach(fe)
	return nil
}

func id(name string) *Identifier { return &Identifier{Name: name} }

func localID(name string) *Identifier { return &Identifier{Name: name, Scope: ScopeLocal} }

func globalID(name string) *Identifier { return &Identifier{Name: name, Scope: ScopeGlobal} }

func lit(v Value) *Literal { return &Literal{Value: v} }

func num(n float64) *Literal { return lit(NewNumber(n)) }

func str(s string) *Literal { return lit(NewString(s)) }

func bin(op string, left, right Expression) *BinaryOp {
	return &BinaryOp{Operator: op, Left: left, Right: right}
}

func member(obj Expression, name string) *MemberAccess {
	return &MemberAccess{Object: obj, Property: id(name)}
}

func call(callee Expression, args ...Expression) *Call {
	return &Call{Callee: callee, Args: args}
}

func set(target Expression, val Expression) *SetCommand {
	return &SetCommand{Target: target, Value: val}
}

func expr(e Expression) *ExprCommand { return &ExprCommand{Expr: e} }

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func newTestRuntime(t *testing.T) (*Runtime, *fakeDocument) {
	t.Helper()
	doc := newFakeDocument()
	return newTestEngine(t, Config{}).NewRuntime(doc), doc
}

// evalIn evaluates e with me bound to the document root.
func evalIn(t *testing.T, rt *Runtime, e Expression) Value {
	t.Helper()
	var me Element
	if doc := rt.Document(); doc != nil {
		me = doc.Root()
	}
	val, err := rt.Eval(context.Background(), e, me)
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	return val
}

// execute runs fn against a fresh top-level frame with me bound to el.
func execute(t *testing.T, rt *Runtime, el Element, fn func(exec *Execution, frame *Frame) error) {
	t.Helper()
	if err := rt.Execute(context.Background(), el, fn); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
}

func requireNumber(t *testing.T, got Value, want float64) {
	t.Helper()
	if got.Kind() != KindNumber || got.Number() != want {
		t.Fatalf("expected number %v, got %s %v", want, got.Kind(), got)
	}
}

func requireString(t *testing.T, got Value, want string) {
	t.Helper()
	if got.Kind() != KindString || got.String() != want {
		t.Fatalf("expected string %q, got %s %v", want, got.Kind(), got)
	}
}

func requireBool(t *testing.T, got Value, want bool) {
	t.Helper()
	if got.Kind() != KindBool || got.Bool() != want {
		t.Fatalf("expected %v, got %s %v", want, got.Kind(), got)
	}
}
