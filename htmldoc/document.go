// Package htmldoc implements the fixi document interface over an HTML tree
// parsed with golang.org/x/net/html. Element handles are interned so the same
// node always yields the same handle.
package htmldoc

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"github.com/golang/groupcache/lru"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/mgomes/hyperfixi/fixi"
)

// DefaultSelectorCacheSize bounds the compiled selector cache.
const DefaultSelectorCacheSize = 256

// Element is a handle to an element node.
type Element struct {
	node *html.Node
}

func (e *Element) TagName() string { return strings.ToUpper(e.node.Data) }

// Node exposes the underlying HTML node.
func (e *Element) Node() *html.Node { return e.node }

func (e *Element) String() string {
	var b strings.Builder
	b.WriteString(e.node.Data)
	for _, a := range e.node.Attr {
		switch a.Key {
		case "id":
			b.WriteString("#" + a.Val)
		case "class":
			for _, cls := range strings.Fields(a.Val) {
				b.WriteString("." + cls)
			}
		}
	}
	return b.String()
}

type subscription struct {
	id      uint64
	node    *html.Node
	event   string
	handler fixi.EventHandler
}

func (s *subscription) Event() string { return s.event }

// Document is a mutable HTML tree with event listeners. The tree is guarded
// by a mutex; handlers run with it released so they can call back in.
type Document struct {
	mu        sync.Mutex
	root      *html.Node
	elements  map[*html.Node]*Element
	listeners map[*html.Node][]*subscription
	props     map[*html.Node]map[string]fixi.Value
	selectors *lru.Cache
	nextID    uint64
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: parse: %w", err)
	}
	return New(root), nil
}

func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// MustParseString parses s or panics; it is meant for tests and examples.
func MustParseString(s string) *Document {
	doc, err := ParseString(s)
	if err != nil {
		panic(err)
	}
	return doc
}

// New wraps an existing tree.
func New(root *html.Node) *Document {
	return &Document{
		root:      root,
		elements:  make(map[*html.Node]*Element),
		listeners: make(map[*html.Node][]*subscription),
		props:     make(map[*html.Node]map[string]fixi.Value),
		selectors: lru.New(DefaultSelectorCacheSize),
	}
}

// intern returns the handle for n. Callers hold d.mu.
func (d *Document) intern(n *html.Node) *Element {
	if el, ok := d.elements[n]; ok {
		return el
	}
	el := &Element{node: n}
	d.elements[n] = el
	return el
}

// element converts n to a fixi.Element, keeping nil untyped.
func (d *Document) element(n *html.Node) fixi.Element {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	return d.intern(n)
}

func (d *Document) elementList(nodes []*html.Node) []fixi.Element {
	out := make([]fixi.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.intern(n))
	}
	return out
}

func nodeOf(el fixi.Element) (*html.Node, error) {
	e, ok := el.(*Element)
	if !ok || e == nil {
		return nil, fmt.Errorf("htmldoc: foreign element %T", el)
	}
	return e.node, nil
}

// compile returns a cached compiled selector. Callers hold d.mu.
func (d *Document) compile(selector string) (cascadia.Selector, error) {
	if cached, ok := d.selectors.Get(selector); ok {
		return cached.(cascadia.Selector), nil
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: invalid selector %q: %w", selector, err)
	}
	d.selectors.Add(selector, sel)
	return sel, nil
}

func (d *Document) documentElement() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

func (d *Document) Root() fixi.Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.element(d.documentElement())
}

func (d *Document) QueryOne(selector string) (fixi.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel, err := d.compile(selector)
	if err != nil {
		return nil, err
	}
	return d.element(cascadia.Query(d.root, sel)), nil
}

func (d *Document) QueryAll(selector string) ([]fixi.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel, err := d.compile(selector)
	if err != nil {
		return nil, err
	}
	return d.elementList(cascadia.QueryAll(d.root, sel)), nil
}

func (d *Document) QueryWithin(root fixi.Element, selector string) ([]fixi.Element, error) {
	n, err := nodeOf(root)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	sel, err := d.compile(selector)
	if err != nil {
		return nil, err
	}
	return d.elementList(cascadia.QueryAll(n, sel)), nil
}

func (d *Document) Matches(el fixi.Element, selector string) (bool, error) {
	n, err := nodeOf(el)
	if err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	sel, err := d.compile(selector)
	if err != nil {
		return false, err
	}
	return sel.Match(n), nil
}

func (d *Document) Parent(el fixi.Element) fixi.Element {
	n, err := nodeOf(el)
	if err != nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.element(n.Parent)
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// ListenerCount returns the number of live subscriptions.
func (d *Document) ListenerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	total := 0
	for _, subs := range d.listeners {
		total += len(subs)
	}
	return total
}

func (d *Document) Subscribe(el fixi.Element, event string, handler fixi.EventHandler) (fixi.Subscription, error) {
	n, err := nodeOf(el)
	if err != nil {
		return nil, err
	}
	if event == "" {
		return nil, fmt.Errorf("htmldoc: empty event name")
	}
	if handler == nil {
		return nil, fmt.Errorf("htmldoc: nil handler for %s", event)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	sub := &subscription{id: d.nextID, node: n, event: event, handler: handler}
	d.listeners[n] = append(d.listeners[n], sub)
	return sub, nil
}

func (d *Document) Unsubscribe(s fixi.Subscription) {
	sub, ok := s.(*subscription)
	if !ok || sub == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	subs := d.listeners[sub.node]
	for i, cur := range subs {
		if cur.id == sub.id {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(d.listeners, sub.node)
		return
	}
	d.listeners[sub.node] = subs
}

// Dispatch delivers ev to the target and then to each ancestor until a
// handler stops propagation. Listeners are snapshotted per node before any
// handler runs on it.
func (d *Document) Dispatch(el fixi.Element, ev *fixi.Event) error {
	n, err := nodeOf(el)
	if err != nil {
		return err
	}
	if ev.Target == nil {
		ev.Target = el
	}
	d.mu.Lock()
	var path []*html.Node
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode {
			path = append(path, cur)
		}
	}
	d.mu.Unlock()

	for _, node := range path {
		d.mu.Lock()
		var handlers []fixi.EventHandler
		for _, sub := range d.listeners[node] {
			if sub.event == ev.Name {
				handlers = append(handlers, sub.handler)
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

func (d *Document) Remove(el fixi.Element) error {
	n, err := nodeOf(el)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	return nil
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// contentNodes turns a placement value into nodes. Elements are moved;
// anything else is parsed as HTML in the context of ctx.
func (d *Document) contentNodes(ctx *html.Node, content fixi.Value) ([]*html.Node, error) {
	switch content.Kind() {
	case fixi.KindElement:
		n, err := nodeOf(content.Element())
		if err != nil {
			return nil, err
		}
		return []*html.Node{n}, nil
	case fixi.KindArray:
		if content.IsCollection() {
			var out []*html.Node
			for _, item := range content.Items() {
				nodes, err := d.contentNodes(ctx, item)
				if err != nil {
					return nil, err
				}
				out = append(out, nodes...)
			}
			return out, nil
		}
	case fixi.KindUndefined, fixi.KindNull:
		return nil, nil
	}
	if ctx == nil || ctx.Type != html.ElementNode {
		ctx = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	}
	nodes, err := html.ParseFragment(strings.NewReader(content.String()), ctx)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: parse fragment: %w", err)
	}
	return nodes, nil
}

func (d *Document) Mutate(el fixi.Element, kind fixi.PlacementKind, content fixi.Value) error {
	n, err := nodeOf(el)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx := n
	if kind == fixi.PlaceOuter {
		ctx = n.Parent
	}
	nodes, err := d.contentNodes(ctx, content)
	if err != nil {
		return err
	}
	switch kind {
	case fixi.PlaceInner:
		for c := n.FirstChild; c != nil; c = n.FirstChild {
			n.RemoveChild(c)
		}
		for _, c := range nodes {
			detach(c)
			n.AppendChild(c)
		}
	case fixi.PlaceEnd:
		for _, c := range nodes {
			detach(c)
			n.AppendChild(c)
		}
	case fixi.PlaceStart:
		first := n.FirstChild
		for _, c := range nodes {
			detach(c)
			if first == nil {
				n.AppendChild(c)
			} else {
				n.InsertBefore(c, first)
			}
		}
	case fixi.PlaceOuter:
		parent := n.Parent
		if parent == nil {
			return fmt.Errorf("htmldoc: cannot replace a detached element")
		}
		for _, c := range nodes {
			if c == n {
				continue
			}
			detach(c)
			parent.InsertBefore(c, n)
		}
		if contains(nodes, n) {
			return nil
		}
		parent.RemoveChild(n)
	default:
		return fmt.Errorf("htmldoc: unsupported placement %s", kind)
	}
	return nil
}

func contains(nodes []*html.Node, n *html.Node) bool {
	for _, c := range nodes {
		if c == n {
			return true
		}
	}
	return false
}
