package htmldoc

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"

	"github.com/mgomes/hyperfixi/fixi"
)

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func removeAttr(n *html.Node, name string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func (d *Document) Attribute(el fixi.Element, name string) (string, bool) {
	n, err := nodeOf(el)
	if err != nil {
		return "", false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return attr(n, strings.ToLower(name))
}

func (d *Document) HasAttribute(el fixi.Element, name string) bool {
	_, ok := d.Attribute(el, name)
	return ok
}

func (d *Document) SetAttribute(el fixi.Element, name, value string) error {
	n, err := nodeOf(el)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	setAttr(n, strings.ToLower(name), value)
	return nil
}

func (d *Document) RemoveAttribute(el fixi.Element, name string) error {
	n, err := nodeOf(el)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	removeAttr(n, strings.ToLower(name))
	return nil
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}

func innerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

func outerHTML(n *html.Node) string {
	var buf bytes.Buffer
	_ = html.Render(&buf, n)
	return buf.String()
}

func sibling(n *html.Node, next bool) *html.Node {
	step := func(c *html.Node) *html.Node {
		if next {
			return c.NextSibling
		}
		return c.PrevSibling
	}
	for c := step(n); c != nil; c = step(c) {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

func elementChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// Property reads DOM-style properties. Unknown names fall back to values
// stored with SetProperty.
func (d *Document) Property(el fixi.Element, name string) (fixi.Value, bool) {
	n, err := nodeOf(el)
	if err != nil {
		return fixi.Undefined(), false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	switch name {
	case "id":
		v, _ := attr(n, "id")
		return fixi.NewString(v), true
	case "className":
		v, _ := attr(n, "class")
		return fixi.NewString(v), true
	case "tagName", "nodeName":
		return fixi.NewString(strings.ToUpper(n.Data)), true
	case "textContent", "innerText":
		return fixi.NewString(textContent(n)), true
	case "innerHTML":
		return fixi.NewString(innerHTML(n)), true
	case "outerHTML":
		return fixi.NewString(outerHTML(n)), true
	case "value":
		if v, ok := d.props[n]["value"]; ok {
			return v, true
		}
		v, _ := attr(n, "value")
		return fixi.NewString(v), true
	case "children":
		return fixi.NewCollection(d.elementList(elementChildren(n))), true
	case "childElementCount":
		return fixi.NewInt(len(elementChildren(n))), true
	case "parentElement":
		return fixi.NewElement(d.element(n.Parent)), true
	case "firstElementChild":
		kids := elementChildren(n)
		if len(kids) == 0 {
			return fixi.Null(), true
		}
		return fixi.NewElement(d.intern(kids[0])), true
	case "lastElementChild":
		kids := elementChildren(n)
		if len(kids) == 0 {
			return fixi.Null(), true
		}
		return fixi.NewElement(d.intern(kids[len(kids)-1])), true
	case "nextElementSibling":
		return fixi.NewElement(d.element(sibling(n, true))), true
	case "previousElementSibling":
		return fixi.NewElement(d.element(sibling(n, false))), true
	case "hidden":
		_, ok := attr(n, "hidden")
		return fixi.NewBool(ok), true
	case "disabled", "checked":
		if v, ok := d.props[n][name]; ok {
			return v, true
		}
		_, ok := attr(n, name)
		return fixi.NewBool(ok), true
	}
	if v, ok := d.props[n][name]; ok {
		return v, true
	}
	return fixi.Undefined(), false
}

// SetProperty writes DOM-style properties; reflected ones update attributes
// or content, others are stored on the element.
func (d *Document) SetProperty(el fixi.Element, name string, val fixi.Value) error {
	n, err := nodeOf(el)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	switch name {
	case "id":
		setAttr(n, "id", val.String())
		return nil
	case "className":
		setAttr(n, "class", val.String())
		return nil
	case "textContent", "innerText":
		for c := n.FirstChild; c != nil; c = n.FirstChild {
			n.RemoveChild(c)
		}
		text := ""
		if !val.IsNil() {
			text = val.String()
		}
		if text != "" {
			n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
		}
		return nil
	case "innerHTML":
		nodes, err := d.contentNodes(n, val)
		if err != nil {
			return err
		}
		for c := n.FirstChild; c != nil; c = n.FirstChild {
			n.RemoveChild(c)
		}
		for _, c := range nodes {
			detach(c)
			n.AppendChild(c)
		}
		return nil
	case "hidden":
		if val.Truthy() {
			setAttr(n, "hidden", "")
		} else {
			removeAttr(n, "hidden")
		}
		return nil
	case "tagName", "nodeName", "outerHTML", "children", "childElementCount",
		"parentElement", "firstElementChild", "lastElementChild",
		"nextElementSibling", "previousElementSibling":
		return &readOnlyError{name: name}
	}
	props := d.props[n]
	if props == nil {
		props = make(map[string]fixi.Value)
		d.props[n] = props
	}
	props[name] = val
	return nil
}

type readOnlyError struct{ name string }

func (e *readOnlyError) Error() string { return "htmldoc: property " + e.name + " is read-only" }
