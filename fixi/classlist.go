package fixi

import "strings"

func classList(doc Document, el Element) []string {
	raw, _ := doc.Attribute(el, "class")
	return strings.Fields(raw)
}

func writeClasses(doc Document, el Element, classes []string) error {
	if len(classes) == 0 {
		return doc.RemoveAttribute(el, "class")
	}
	return doc.SetAttribute(el, "class", strings.Join(classes, " "))
}

func hasClass(doc Document, el Element, cls string) bool {
	for _, c := range classList(doc, el) {
		if c == cls {
			return true
		}
	}
	return false
}

func addClass(doc Document, el Element, cls string) error {
	cls = strings.TrimPrefix(cls, ".")
	if hasClass(doc, el, cls) {
		return nil
	}
	return writeClasses(doc, el, append(classList(doc, el), cls))
}

func removeClass(doc Document, el Element, cls string) error {
	cls = strings.TrimPrefix(cls, ".")
	if !hasClass(doc, el, cls) {
		return nil
	}
	current := classList(doc, el)
	kept := current[:0]
	for _, c := range current {
		if c != cls {
			kept = append(kept, c)
		}
	}
	return writeClasses(doc, el, kept)
}

func toggleClass(doc Document, el Element, cls string) error {
	if hasClass(doc, el, strings.TrimPrefix(cls, ".")) {
		return removeClass(doc, el, cls)
	}
	return addClass(doc, el, cls)
}

type styleDecl struct {
	name  string
	value string
}

func parseStyle(raw string) []styleDecl {
	var decls []styleDecl
	for _, part := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(part, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		decls = append(decls, styleDecl{name: strings.ToLower(name), value: strings.TrimSpace(value)})
	}
	return decls
}

func formatStyle(decls []styleDecl) string {
	parts := make([]string, len(decls))
	for i, d := range decls {
		parts[i] = d.name + ": " + d.value
	}
	return strings.Join(parts, "; ")
}

// setStyle sets one inline style declaration. An empty value removes it.
func setStyle(doc Document, el Element, name, value string) error {
	raw, _ := doc.Attribute(el, "style")
	decls := parseStyle(raw)
	out := decls[:0]
	replaced := false
	for _, d := range decls {
		if d.name != name {
			out = append(out, d)
			continue
		}
		if value != "" && !replaced {
			out = append(out, styleDecl{name: name, value: value})
			replaced = true
		}
	}
	if value != "" && !replaced {
		out = append(out, styleDecl{name: name, value: value})
	}
	if len(out) == 0 {
		if doc.HasAttribute(el, "style") {
			return doc.RemoveAttribute(el, "style")
		}
		return nil
	}
	return doc.SetAttribute(el, "style", formatStyle(out))
}
