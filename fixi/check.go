package fixi

import (
	"strings"
)

// checker validates trees before they run. It collects every problem
// instead of stopping at the first.
type checker struct {
	registry *Registry
	errs     []error
}

func (c *checker) fail(sentinel error, pos Position, format string, args ...any) {
	c.errs = append(c.errs, newFault(sentinel, pos, format, args...))
}

// Check validates every feature of prog.
func (e *Engine) Check(prog *Program) error {
	if prog == nil {
		return newFault(ErrInvalidArgument, Position{}, "nil program")
	}
	c := &checker{registry: e.registry}
	defs := make(map[string]Position)
	for _, feat := range prog.Features {
		switch f := feat.(type) {
		case nil:
			c.fail(ErrUnknownNode, Position{}, "missing feature")
		case *OnFeature:
			if strings.TrimSpace(f.Event) == "" {
				c.fail(ErrInvalidArgument, f.Pos(), "handler needs an event name")
			}
			if f.Filter != nil {
				c.expression(f.Filter)
			}
			c.commands(f.Commands)
		case *DefFeature:
			c.def(f, defs)
		case *InitFeature:
			c.commands(f.Commands)
		default:
			c.fail(ErrUnknownNode, feat.Pos(), "unsupported feature %T", feat)
		}
	}
	return combineErrors(c.errs)
}

// CheckCommands validates a bare command sequence.
func (e *Engine) CheckCommands(cmds []Command) error {
	c := &checker{registry: e.registry}
	c.commands(cmds)
	return combineErrors(c.errs)
}

// CheckExpression validates a single expression tree.
func (e *Engine) CheckExpression(expr Expression) error {
	c := &checker{registry: e.registry}
	c.required(expr, Position{}, "expression")
	return combineErrors(c.errs)
}

func (c *checker) def(f *DefFeature, defs map[string]Position) {
	if strings.TrimSpace(f.Name) == "" {
		c.fail(ErrInvalidArgument, f.Pos(), "function needs a name")
	} else if prev, ok := defs[f.Name]; ok {
		c.fail(ErrInvalidArgument, f.Pos(), "function %s already defined at %d:%d", f.Name, prev.Line, prev.Column)
	} else {
		defs[f.Name] = f.Pos()
	}
	seen := make(map[string]bool, len(f.Params))
	for _, p := range f.Params {
		if p == "" {
			c.fail(ErrInvalidArgument, f.Pos(), "function %s has an empty parameter name", f.Name)
			continue
		}
		if seen[p] {
			c.fail(ErrInvalidArgument, f.Pos(), "function %s repeats parameter %s", f.Name, p)
		}
		seen[p] = true
	}
	c.commands(f.Body)
}

func (c *checker) required(expr Expression, pos Position, what string) {
	if expr == nil {
		c.fail(ErrInvalidArgument, pos, "missing %s", what)
		return
	}
	c.expression(expr)
}

func (c *checker) optional(expr Expression) {
	if expr != nil {
		c.expression(expr)
	}
}

func (c *checker) target(expr Expression, pos Position, what string) {
	if expr == nil {
		c.fail(ErrNotAssignable, pos, "missing %s target", what)
		return
	}
	if !assignable(expr) {
		c.fail(ErrNotAssignable, expr.Pos(), "cannot assign to %T in %s", expr, what)
	}
	c.expression(expr)
}

func (c *checker) commands(cmds []Command) {
	for _, cmd := range cmds {
		c.command(cmd)
	}
}

func (c *checker) classes(classes []string, attr *AttributeRef, pos Position, what string, allowEmpty bool) {
	if len(classes) == 0 && attr == nil && !allowEmpty {
		c.fail(ErrInvalidArgument, pos, "%s needs a class or attribute", what)
	}
	for _, cls := range classes {
		name := strings.TrimPrefix(cls, ".")
		if name == "" || strings.ContainsAny(name, " \t\n") {
			c.fail(ErrInvalidArgument, pos, "%s: invalid class name %q", what, cls)
		}
	}
	if attr != nil {
		if strings.TrimSpace(attr.Name) == "" {
			c.fail(ErrInvalidArgument, pos, "%s: empty attribute name", what)
		}
		c.optional(attr.Value)
	}
}

func (c *checker) command(cmd Command) {
	switch n := cmd.(type) {
	case nil:
		c.fail(ErrMissingCommand, Position{}, "missing command")
	case *ExprCommand:
		c.required(n.Expr, n.Pos(), "expression")
	case *SetCommand:
		c.target(n.Target, n.Pos(), "set")
		c.required(n.Value, n.Pos(), "value to set")
	case *PutCommand:
		c.required(n.Value, n.Pos(), "content to put")
		c.required(n.Target, n.Pos(), "put target")
		if n.Placement.Kind == PlaceCustom && n.Placement.Apply == nil {
			c.fail(ErrInvalidArgument, n.Pos(), "custom placement has no routine")
		}
	case *AddCommand:
		c.classes(n.Classes, n.Attribute, n.Pos(), "add", false)
		c.optional(n.Target)
	case *RemoveCommand:
		c.classes(n.Classes, n.Attribute, n.Pos(), "remove", true)
		c.optional(n.Target)
	case *ToggleCommand:
		c.classes(n.Classes, n.Attribute, n.Pos(), "toggle", false)
		c.optional(n.Target)
	case *ShowCommand:
		c.optional(n.Target)
	case *HideCommand:
		c.optional(n.Target)
	case *IncrementCommand:
		c.target(n.Target, n.Pos(), "increment")
		c.optional(n.By)
	case *DecrementCommand:
		c.target(n.Target, n.Pos(), "decrement")
		c.optional(n.By)
	case *LogCommand:
		for _, v := range n.Values {
			c.required(v, n.Pos(), "log value")
		}
	case *SendCommand:
		if strings.TrimSpace(n.Event) == "" {
			c.fail(ErrInvalidArgument, n.Pos(), "send needs an event name")
		}
		c.optional(n.Detail)
		c.optional(n.Target)
	case *WaitCommand:
		if n.Event == "" && n.Duration == nil {
			c.fail(ErrInvalidArgument, n.Pos(), "wait needs a duration or an event")
		}
		if n.Timeout < 0 {
			c.fail(ErrInvalidArgument, n.Pos(), "wait timeout must not be negative")
		}
		c.optional(n.Duration)
		c.optional(n.Target)
	case *CallCommand:
		c.required(n.Expr, n.Pos(), "expression to call")
	case *ReturnCommand:
		c.optional(n.Value)
	case *ExitCommand:
		c.optional(n.Value)
	case *ThrowCommand:
		c.required(n.Value, n.Pos(), "value to throw")
	case *HaltCommand, *BreakCommand, *ContinueCommand:
	case *IfCommand:
		c.required(n.Condition, n.Pos(), "if condition")
		if len(n.Then) == 0 {
			c.fail(ErrMissingCommand, n.Pos(), "if requires at least one command")
		}
		c.commands(n.Then)
		c.commands(n.Else)
	case *UnlessCommand:
		c.required(n.Condition, n.Pos(), "unless condition")
		if len(n.Body) == 0 {
			c.fail(ErrMissingCommand, n.Pos(), "unless requires at least one command")
		}
		c.commands(n.Body)
	case *ForCommand:
		c.required(n.Source, n.Pos(), "loop source")
		if n.Variable != "" && n.Variable == n.Index {
			c.fail(ErrInvalidArgument, n.Pos(), "loop variable and index are both %s", n.Variable)
		}
		c.commands(n.Body)
	case *RepeatTimes:
		c.required(n.Count, n.Pos(), "repeat count")
		c.commands(n.Body)
	case *RepeatWhile:
		c.required(n.Condition, n.Pos(), "loop condition")
		c.commands(n.Body)
	case *RepeatUntilEvent:
		if strings.TrimSpace(n.Event) == "" {
			c.fail(ErrInvalidArgument, n.Pos(), "repeat until needs an event name")
		}
		c.optional(n.Target)
		c.commands(n.Body)
	case *RepeatForever:
		c.commands(n.Body)
	case *TellCommand:
		c.required(n.Target, n.Pos(), "tell target")
		c.commands(n.Body)
	case *AsyncCommand:
		c.commands(n.Body)
	default:
		c.fail(ErrUnknownNode, cmd.Pos(), "unsupported command %T", cmd)
	}
}

func (c *checker) expression(expr Expression) {
	switch e := expr.(type) {
	case *Identifier:
		if e.Name == "" {
			c.fail(ErrInvalidArgument, e.Pos(), "empty identifier")
		}
	case *Literal, *ContextReference:
	case *MemberAccess:
		c.required(e.Object, e.Pos(), "member object")
		if e.Property == nil {
			c.fail(ErrInvalidArgument, e.Pos(), "missing member name")
			return
		}
		if e.Computed {
			c.expression(e.Property)
			return
		}
		switch p := e.Property.(type) {
		case *Identifier:
		case *Literal:
			if p.Value.kind != KindString {
				c.fail(ErrInvalidArgument, e.Pos(), "member name must be an identifier or string")
			}
		default:
			c.fail(ErrInvalidArgument, e.Pos(), "member name must be an identifier or string")
		}
	case *Possessive:
		c.required(e.Object, e.Pos(), "possessive owner")
		if e.Property == "" {
			c.fail(ErrInvalidArgument, e.Pos(), "missing property name")
		}
	case *PropertyOf:
		c.required(e.Target, e.Pos(), "property target")
		if e.Property == "" {
			c.fail(ErrInvalidArgument, e.Pos(), "missing property name")
		}
	case *BinaryOp:
		entry, ok := c.registry.Binary(e.Operator)
		if !ok {
			c.fail(ErrUnknownOperator, e.Pos(), "unknown operator %q", e.Operator)
		} else if entry.op == OpAssign && e.Left != nil && !assignable(e.Left) {
			c.fail(ErrNotAssignable, e.Pos(), "cannot assign to %T", e.Left)
		}
		c.required(e.Left, e.Pos(), "left operand")
		c.required(e.Right, e.Pos(), "right operand")
	case *UnaryOp:
		if _, ok := c.registry.Unary(e.Operator); !ok {
			c.fail(ErrUnknownOperator, e.Pos(), "unknown unary operator %q", e.Operator)
		}
		c.required(e.Argument, e.Pos(), "operand")
	case *Call:
		if e.Callee == nil {
			c.fail(ErrInvalidArgument, e.Pos(), "missing callee")
		} else {
			c.expression(e.Callee)
		}
		if id, ok := e.Callee.(*Identifier); ok && id.Scope == ScopeAny && !e.IsConstructor {
			if entry, ok := c.registry.Lookup(id.Name); ok {
				if err := entry.checkArity(len(e.Args), e.Pos()); err != nil {
					c.errs = append(c.errs, err)
				}
			}
		}
		for _, a := range e.Args {
			c.required(a, e.Pos(), "argument")
		}
	case *Selector:
		if strings.TrimSpace(e.Raw) == "" {
			c.fail(ErrInvalidArgument, e.Pos(), "empty selector")
		}
	case *CSSSelector:
		if strings.Trim(e.Selector, "#. ") == "" {
			c.fail(ErrInvalidArgument, e.Pos(), "empty selector")
		}
		switch e.Kind {
		case SelectorID, SelectorClass, SelectorQuery, "":
		default:
			c.fail(ErrInvalidArgument, e.Pos(), "unknown selector kind %q", e.Kind)
		}
	case *TemplateLiteral:
		for _, seg := range e.Segments {
			c.optional(seg.Expr)
		}
	case *ArrayLiteral:
		for _, el := range e.Elements {
			c.required(el, e.Pos(), "array element")
		}
	case *ObjectLiteral:
		for _, p := range e.Properties {
			c.required(p.Value, e.Pos(), "value for "+p.Key)
		}
	case *Conditional:
		c.required(e.Test, e.Pos(), "condition")
		c.required(e.Then, e.Pos(), "then value")
		c.optional(e.Else)
	default:
		c.fail(ErrUnknownNode, expr.Pos(), "unsupported expression %T", expr)
	}
}
