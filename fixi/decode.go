package fixi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrMissingNodeType = errors.New("node has no type")
	ErrUnknownNodeType = errors.New("unknown node type")
)

// DecodeError reports a malformed tree document.
type DecodeError struct {
	Err     error
	Message string
	Pos     Position
}

func (e *DecodeError) Error() string {
	if e.Pos.Line > 0 {
		return fmt.Sprintf("decode %d:%d: %s", e.Pos.Line, e.Pos.Column, e.Message)
	}
	return "decode: " + e.Message
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeFail(n *yaml.Node, sentinel error, format string, args ...any) error {
	return &DecodeError{Err: sentinel, Message: fmt.Sprintf(format, args...), Pos: nodePosition(n)}
}

func nodePosition(n *yaml.Node) Position {
	if n == nil {
		return Position{}
	}
	return Position{Line: n.Line, Column: n.Column}
}

func parseDocument(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &DecodeError{Err: ErrInvalidArgument, Message: "empty document"}
		}
		return nil, &DecodeError{Err: ErrInvalidArgument, Message: err.Error()}
	}
	if err := acyclic(&doc); err != nil {
		return nil, err
	}
	return resolve(&doc), nil
}

// acyclic rejects a node graph in which an alias refers to one of its own
// enclosing nodes. Shared anchors that do not loop are accepted.
func acyclic(root *yaml.Node) error {
	onPath := make(map[*yaml.Node]bool)
	done := make(map[*yaml.Node]bool)
	var walk func(n *yaml.Node) error
	walk = func(n *yaml.Node) error {
		if n == nil || done[n] {
			return nil
		}
		if onPath[n] {
			return decodeFail(n, ErrInvalidArgument, "alias cycle through anchor %q", n.Anchor)
		}
		onPath[n] = true
		if n.Kind == yaml.AliasNode {
			if err := walk(n.Alias); err != nil {
				return err
			}
		}
		for _, child := range n.Content {
			if err := walk(child); err != nil {
				return err
			}
		}
		delete(onPath, n)
		done[n] = true
		return nil
	}
	return walk(root)
}

// resolve steps through document and alias wrappers.
func resolve(n *yaml.Node) *yaml.Node {
	for n != nil {
		switch n.Kind {
		case yaml.DocumentNode:
			if len(n.Content) == 0 {
				return nil
			}
			n = n.Content[0]
		case yaml.AliasNode:
			n = n.Alias
		default:
			return n
		}
	}
	return nil
}

// DecodeProgram reads a program: a sequence of features or a mapping with a
// features key.
func DecodeProgram(data []byte) (*Program, error) {
	root, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	return ProgramFromNode(root)
}

// ProgramFromNode decodes an already parsed YAML node.
func ProgramFromNode(n *yaml.Node) (*Program, error) {
	if err := acyclic(n); err != nil {
		return nil, err
	}
	n = resolve(n)
	if n != nil && n.Kind == yaml.MappingNode {
		if feats := field(n, "features"); feats != nil {
			n = feats
		}
	}
	feats, err := decodeFeatures(n)
	if err != nil {
		return nil, err
	}
	return &Program{Features: feats}, nil
}

// DecodeCommands reads a sequence of commands, or a single command mapping.
func DecodeCommands(data []byte) ([]Command, error) {
	root, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	if root != nil && root.Kind == yaml.MappingNode {
		cmd, err := decodeCommand(root)
		if err != nil {
			return nil, err
		}
		return []Command{cmd}, nil
	}
	return decodeCommandList(root)
}

// DecodeExpression reads one expression node.
func DecodeExpression(data []byte) (Expression, error) {
	root, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	return decodeExpr(root)
}

// DecodeNode reads a single node that may be an expression or a command.
// Exactly one of the results is non-nil on success.
func DecodeNode(data []byte) (Expression, Command, error) {
	root, err := parseDocument(data)
	if err != nil {
		return nil, nil, err
	}
	if root != nil && root.Kind == yaml.MappingNode {
		if typ := field(root, "type"); typ != nil && isCommandType(typ.Value) {
			cmd, err := decodeCommand(root)
			return nil, cmd, err
		}
	}
	expr, err := decodeExpr(root)
	return expr, nil, err
}

func field(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return resolve(n.Content[i+1])
		}
	}
	return nil
}

func stringField(n *yaml.Node, key string) string {
	if f := field(n, key); f != nil && f.Kind == yaml.ScalarNode {
		return f.Value
	}
	return ""
}

func boolField(n *yaml.Node, key string) (bool, error) {
	f := field(n, key)
	if f == nil {
		return false, nil
	}
	var b bool
	if err := f.Decode(&b); err != nil {
		return false, decodeFail(f, ErrInvalidArgument, "%s must be a boolean", key)
	}
	return b, nil
}

func stringList(n *yaml.Node, key string) ([]string, error) {
	f := field(n, key)
	if f == nil {
		return nil, nil
	}
	if f.Kind == yaml.ScalarNode {
		return strings.Fields(f.Value), nil
	}
	var out []string
	if err := f.Decode(&out); err != nil {
		return nil, decodeFail(f, ErrInvalidArgument, "%s must be a list of strings", key)
	}
	return out, nil
}

func nodeType(n *yaml.Node) (string, error) {
	if n == nil {
		return "", &DecodeError{Err: ErrMissingNodeType, Message: "missing node"}
	}
	if n.Kind != yaml.MappingNode {
		return "", decodeFail(n, ErrMissingNodeType, "expected a mapping with a type")
	}
	typ := stringField(n, "type")
	if typ == "" {
		return "", decodeFail(n, ErrMissingNodeType, "node has no type")
	}
	return typ, nil
}

func optionalExpr(n *yaml.Node, key string) (Expression, error) {
	f := field(n, key)
	if f == nil {
		return nil, nil
	}
	return decodeExpr(f)
}

func decodeExprList(n *yaml.Node) ([]Expression, error) {
	if n == nil {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		expr, err := decodeExpr(n)
		if err != nil {
			return nil, err
		}
		return []Expression{expr}, nil
	}
	out := make([]Expression, 0, len(n.Content))
	for _, item := range n.Content {
		expr, err := decodeExpr(resolve(item))
		if err != nil {
			return nil, err
		}
		out = append(out, expr)
	}
	return out, nil
}

// literalValue converts a YAML node to a Value keeping mapping order.
func literalValue(n *yaml.Node) (Value, error) {
	n = resolve(n)
	if n == nil {
		return Null(), nil
	}
	switch n.Kind {
	case yaml.SequenceNode:
		items := make([]Value, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := literalValue(item)
			if err != nil {
				return Undefined(), err
			}
			items = append(items, v)
		}
		return NewArray(items), nil
	case yaml.MappingNode:
		obj := newObject("Object")
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := literalValue(n.Content[i+1])
			if err != nil {
				return Undefined(), err
			}
			obj.Set(n.Content[i].Value, v)
		}
		return Value{kind: KindObject, data: obj}, nil
	default:
		quoted := n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0
		if !quoted && n.Value == "undefined" {
			return Undefined(), nil
		}
		if quoted || n.ShortTag() == "!!str" {
			return NewString(n.Value), nil
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return Undefined(), decodeFail(n, ErrInvalidArgument, "bad literal: %v", err)
		}
		return FromGo(v), nil
	}
}

var contextTypes = map[string]ContextKind{
	"me": ContextMe, "you": ContextYou, "it": ContextIt, "result": ContextResult,
	"event": ContextEvent, "target": ContextTarget, "detail": ContextDetail,
}

func parseScope(n *yaml.Node) (Scope, error) {
	switch s := stringField(n, "scope"); s {
	case "":
		return ScopeAny, nil
	case "local":
		return ScopeLocal, nil
	case "global":
		return ScopeGlobal, nil
	default:
		return ScopeAny, decodeFail(n, ErrInvalidArgument, "unknown scope %q", s)
	}
}

// decodeExpr reads an expression. Bare scalars and sequences are literals.
func decodeExpr(n *yaml.Node) (Expression, error) {
	n = resolve(n)
	if n == nil {
		return nil, &DecodeError{Err: ErrMissingNodeType, Message: "missing expression"}
	}
	if n.Kind != yaml.MappingNode {
		val, err := literalValue(n)
		if err != nil {
			return nil, err
		}
		lit := &Literal{Value: val}
		lit.SetPos(nodePosition(n))
		return lit, nil
	}
	typ, err := nodeType(n)
	if err != nil {
		return nil, err
	}
	expr, err := decodeExprOf(typ, n)
	if err != nil {
		return nil, err
	}
	type positioned interface{ SetPos(Position) }
	if p, ok := expr.(positioned); ok {
		p.SetPos(nodePosition(n))
	}
	return expr, nil
}

func decodeExprOf(typ string, n *yaml.Node) (Expression, error) {
	if kind, ok := contextTypes[typ]; ok {
		return &ContextReference{Kind: kind}, nil
	}
	switch typ {
	case "identifier":
		name := stringField(n, "name")
		if name == "" {
			return nil, decodeFail(n, ErrInvalidArgument, "identifier needs a name")
		}
		scope, err := parseScope(n)
		if err != nil {
			return nil, err
		}
		return &Identifier{Name: name, Scope: scope}, nil
	case "literal":
		val, err := literalValue(field(n, "value"))
		if err != nil {
			return nil, err
		}
		return &Literal{Value: val}, nil
	case "context":
		kind, ok := contextTypes[stringField(n, "kind")]
		if !ok {
			return nil, decodeFail(n, ErrInvalidArgument, "unknown context kind %q", stringField(n, "kind"))
		}
		return &ContextReference{Kind: kind}, nil
	case "member":
		obj, err := decodeExpr(field(n, "object"))
		if err != nil {
			return nil, err
		}
		computed, err := boolField(n, "computed")
		if err != nil {
			return nil, err
		}
		propNode := field(n, "property")
		if propNode == nil {
			return nil, decodeFail(n, ErrInvalidArgument, "member needs a property")
		}
		var prop Expression
		if !computed && propNode.Kind == yaml.ScalarNode {
			id := &Identifier{Name: propNode.Value}
			id.SetPos(nodePosition(propNode))
			prop = id
		} else if prop, err = decodeExpr(propNode); err != nil {
			return nil, err
		}
		return &MemberAccess{Object: obj, Property: prop, Computed: computed}, nil
	case "binary":
		left, err := decodeExpr(field(n, "left"))
		if err != nil {
			return nil, err
		}
		right, err := decodeExpr(field(n, "right"))
		if err != nil {
			return nil, err
		}
		return &BinaryOp{Operator: stringField(n, "operator"), Left: left, Right: right}, nil
	case "unary":
		argument, err := decodeExpr(field(n, "argument"))
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Operator: stringField(n, "operator"), Argument: argument}, nil
	case "call", "new":
		callee, err := decodeExpr(field(n, "callee"))
		if err != nil {
			return nil, err
		}
		args, err := decodeExprList(field(n, "args"))
		if err != nil {
			return nil, err
		}
		construct, err := boolField(n, "new")
		if err != nil {
			return nil, err
		}
		return &Call{Callee: callee, Args: args, IsConstructor: construct || typ == "new"}, nil
	case "selector":
		return &Selector{Raw: stringField(n, "raw")}, nil
	case "css":
		kind := SelectorKind(stringField(n, "kind"))
		if kind == "" {
			kind = SelectorQuery
		}
		return &CSSSelector{Kind: kind, Selector: stringField(n, "selector")}, nil
	case "template":
		segs := field(n, "segments")
		tpl := &TemplateLiteral{}
		if segs == nil {
			return tpl, nil
		}
		for _, item := range segs.Content {
			item = resolve(item)
			if item.Kind == yaml.ScalarNode {
				tpl.Segments = append(tpl.Segments, TemplateSegment{Text: item.Value})
				continue
			}
			expr, err := decodeExpr(item)
			if err != nil {
				return nil, err
			}
			tpl.Segments = append(tpl.Segments, TemplateSegment{Expr: expr})
		}
		return tpl, nil
	case "array":
		elems, err := decodeExprList(field(n, "elements"))
		if err != nil {
			return nil, err
		}
		return &ArrayLiteral{Elements: elems}, nil
	case "object":
		obj := &ObjectLiteral{}
		props := field(n, "properties")
		if props == nil {
			return obj, nil
		}
		if props.Kind != yaml.MappingNode {
			return nil, decodeFail(props, ErrInvalidArgument, "object properties must be a mapping")
		}
		for i := 0; i+1 < len(props.Content); i += 2 {
			val, err := decodeExpr(props.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj.Properties = append(obj.Properties, ObjectProperty{Key: props.Content[i].Value, Value: val})
		}
		return obj, nil
	case "conditional":
		test, err := decodeExpr(field(n, "test"))
		if err != nil {
			return nil, err
		}
		then, err := decodeExpr(field(n, "then"))
		if err != nil {
			return nil, err
		}
		otherwise, err := optionalExpr(n, "else")
		if err != nil {
			return nil, err
		}
		return &Conditional{Test: test, Then: then, Else: otherwise}, nil
	case "possessive":
		obj, err := decodeExpr(field(n, "object"))
		if err != nil {
			return nil, err
		}
		return &Possessive{Object: obj, Property: stringField(n, "property")}, nil
	case "propertyOf":
		target, err := decodeExpr(field(n, "target"))
		if err != nil {
			return nil, err
		}
		return &PropertyOf{Property: stringField(n, "property"), Target: target}, nil
	default:
		return nil, decodeFail(n, ErrUnknownNodeType, "unknown expression type %q", typ)
	}
}

var commandTypes = map[string]bool{
	"expr": true, "set": true, "put": true, "add": true, "remove": true,
	"toggle": true, "show": true, "hide": true, "increment": true,
	"decrement": true, "log": true, "send": true, "trigger": true,
	"wait": true, "get": true, "return": true, "exit": true,
	"halt": true, "break": true, "continue": true, "throw": true, "if": true,
	"unless": true, "for": true, "repeat": true, "tell": true, "async": true,
}

// isCommandType reports whether a node type names a command. `call` is both
// an expression and a command; as a top-level node it is the expression.
func isCommandType(typ string) bool {
	return commandTypes[typ]
}

func decodeCommandList(n *yaml.Node) ([]Command, error) {
	n = resolve(n)
	if n == nil {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, decodeFail(n, ErrInvalidArgument, "expected a list of commands")
	}
	out := make([]Command, 0, len(n.Content))
	for _, item := range n.Content {
		cmd, err := decodeCommand(resolve(item))
		if err != nil {
			return nil, err
		}
		out = append(out, cmd)
	}
	return out, nil
}

func decodeCommand(n *yaml.Node) (Command, error) {
	typ, err := nodeType(n)
	if err != nil {
		return nil, err
	}
	cmd, err := decodeCommandOf(typ, n)
	if err != nil {
		return nil, err
	}
	type positioned interface{ SetPos(Position) }
	if p, ok := cmd.(positioned); ok {
		p.SetPos(nodePosition(n))
	}
	return cmd, nil
}

func parsePlacement(n *yaml.Node) (Placement, error) {
	switch p := stringField(n, "placement"); p {
	case "", "inner", "into":
		return Placement{Kind: PlaceInner}, nil
	case "outer", "replace":
		return Placement{Kind: PlaceOuter}, nil
	case "end", "append", "beforeend":
		return Placement{Kind: PlaceEnd}, nil
	case "start", "prepend", "afterbegin":
		return Placement{Kind: PlaceStart}, nil
	default:
		return Placement{}, decodeFail(n, ErrInvalidArgument, "unknown placement %q", p)
	}
}

func decodeAttribute(n *yaml.Node) (*AttributeRef, error) {
	f := field(n, "attribute")
	if f == nil {
		return nil, nil
	}
	if f.Kind == yaml.ScalarNode {
		return &AttributeRef{Name: strings.TrimPrefix(f.Value, "@")}, nil
	}
	value, err := optionalExpr(f, "value")
	if err != nil {
		return nil, err
	}
	return &AttributeRef{Name: strings.TrimPrefix(stringField(f, "name"), "@"), Value: value}, nil
}

func decodeClassCommand(n *yaml.Node) ([]string, *AttributeRef, Expression, error) {
	classes, err := stringList(n, "classes")
	if err != nil {
		return nil, nil, nil, err
	}
	if one := stringField(n, "class"); one != "" {
		classes = append(classes, one)
	}
	for i, cls := range classes {
		classes[i] = strings.TrimPrefix(cls, ".")
	}
	attr, err := decodeAttribute(n)
	if err != nil {
		return nil, nil, nil, err
	}
	target, err := optionalExpr(n, "target")
	if err != nil {
		return nil, nil, nil, err
	}
	return classes, attr, target, nil
}

func decodeCommandOf(typ string, n *yaml.Node) (Command, error) {
	switch typ {
	case "expr", "call", "get":
		var expr Expression
		var err error
		switch {
		case field(n, "expr") != nil:
			expr, err = decodeExpr(field(n, "expr"))
		case field(n, "value") != nil:
			expr, err = decodeExpr(field(n, "value"))
		case typ == "call":
			expr, err = decodeExpr(n)
		default:
			return nil, decodeFail(n, ErrInvalidArgument, "%s needs an expr", typ)
		}
		if err != nil {
			return nil, err
		}
		if typ == "expr" {
			return &ExprCommand{Expr: expr}, nil
		}
		return &CallCommand{Expr: expr}, nil
	case "set":
		target, err := decodeExpr(field(n, "target"))
		if err != nil {
			return nil, err
		}
		value, err := decodeExpr(field(n, "value"))
		if err != nil {
			return nil, err
		}
		return &SetCommand{Target: target, Value: value}, nil
	case "put":
		value, err := decodeExpr(field(n, "value"))
		if err != nil {
			return nil, err
		}
		target, err := decodeExpr(field(n, "target"))
		if err != nil {
			return nil, err
		}
		placement, err := parsePlacement(n)
		if err != nil {
			return nil, err
		}
		return &PutCommand{Value: value, Placement: placement, Target: target}, nil
	case "add":
		classes, attr, target, err := decodeClassCommand(n)
		if err != nil {
			return nil, err
		}
		return &AddCommand{Classes: classes, Attribute: attr, Target: target}, nil
	case "remove":
		classes, attr, target, err := decodeClassCommand(n)
		if err != nil {
			return nil, err
		}
		return &RemoveCommand{Classes: classes, Attribute: attr, Target: target}, nil
	case "toggle":
		classes, attr, target, err := decodeClassCommand(n)
		if err != nil {
			return nil, err
		}
		return &ToggleCommand{Classes: classes, Attribute: attr, Target: target}, nil
	case "show":
		target, err := optionalExpr(n, "target")
		if err != nil {
			return nil, err
		}
		return &ShowCommand{Target: target, Display: stringField(n, "display")}, nil
	case "hide":
		target, err := optionalExpr(n, "target")
		if err != nil {
			return nil, err
		}
		return &HideCommand{Target: target}, nil
	case "increment", "decrement":
		target, err := decodeExpr(field(n, "target"))
		if err != nil {
			return nil, err
		}
		by, err := optionalExpr(n, "by")
		if err != nil {
			return nil, err
		}
		if typ == "increment" {
			return &IncrementCommand{Target: target, By: by}, nil
		}
		return &DecrementCommand{Target: target, By: by}, nil
	case "log":
		values, err := decodeExprList(field(n, "values"))
		if err != nil {
			return nil, err
		}
		if v := field(n, "value"); v != nil {
			expr, err := decodeExpr(v)
			if err != nil {
				return nil, err
			}
			values = append(values, expr)
		}
		return &LogCommand{Values: values}, nil
	case "send", "trigger":
		detail, err := optionalExpr(n, "detail")
		if err != nil {
			return nil, err
		}
		target, err := optionalExpr(n, "target")
		if err != nil {
			return nil, err
		}
		return &SendCommand{Event: stringField(n, "event"), Detail: detail, Target: target}, nil
	case "wait":
		duration, err := optionalExpr(n, "duration")
		if err != nil {
			return nil, err
		}
		target, err := optionalExpr(n, "target")
		if err != nil {
			return nil, err
		}
		var timeout time.Duration
		if raw := stringField(n, "timeout"); raw != "" {
			if timeout, err = time.ParseDuration(raw); err != nil {
				return nil, decodeFail(n, ErrInvalidArgument, "invalid timeout %q", raw)
			}
		}
		return &WaitCommand{Duration: duration, Event: stringField(n, "event"), Target: target, Timeout: timeout}, nil
	case "return":
		value, err := optionalExpr(n, "value")
		if err != nil {
			return nil, err
		}
		return &ReturnCommand{Value: value}, nil
	case "exit":
		value, err := optionalExpr(n, "value")
		if err != nil {
			return nil, err
		}
		return &ExitCommand{Value: value}, nil
	case "halt":
		theEvent, err := boolField(n, "event")
		if err != nil {
			return nil, err
		}
		return &HaltCommand{TheEvent: theEvent}, nil
	case "break":
		return &BreakCommand{}, nil
	case "continue":
		return &ContinueCommand{}, nil
	case "throw":
		value, err := decodeExpr(field(n, "value"))
		if err != nil {
			return nil, err
		}
		return &ThrowCommand{Value: value}, nil
	case "if":
		cond, err := decodeExpr(field(n, "condition"))
		if err != nil {
			return nil, err
		}
		then, err := decodeCommandList(field(n, "then"))
		if err != nil {
			return nil, err
		}
		otherwise, err := decodeCommandList(field(n, "else"))
		if err != nil {
			return nil, err
		}
		return &IfCommand{Condition: cond, Then: then, Else: otherwise}, nil
	case "unless":
		cond, err := decodeExpr(field(n, "condition"))
		if err != nil {
			return nil, err
		}
		body, err := decodeCommandList(field(n, "body"))
		if err != nil {
			return nil, err
		}
		return &UnlessCommand{Condition: cond, Body: body}, nil
	case "for":
		source, err := decodeExpr(field(n, "source"))
		if err != nil {
			return nil, err
		}
		body, err := decodeCommandList(field(n, "body"))
		if err != nil {
			return nil, err
		}
		return &ForCommand{Variable: stringField(n, "variable"), Index: stringField(n, "index"), Source: source, Body: body}, nil
	case "repeat":
		return decodeRepeat(n)
	case "tell":
		target, err := decodeExpr(field(n, "target"))
		if err != nil {
			return nil, err
		}
		body, err := decodeCommandList(field(n, "body"))
		if err != nil {
			return nil, err
		}
		return &TellCommand{Target: target, Body: body}, nil
	case "async":
		body, err := decodeCommandList(field(n, "body"))
		if err != nil {
			return nil, err
		}
		return &AsyncCommand{Body: body}, nil
	default:
		return nil, decodeFail(n, ErrUnknownNodeType, "unknown command type %q", typ)
	}
}

// decodeRepeat picks the loop variant from whichever of times, while, until,
// event or forever is present.
func decodeRepeat(n *yaml.Node) (Command, error) {
	body, err := decodeCommandList(field(n, "body"))
	if err != nil {
		return nil, err
	}
	index := stringField(n, "index")
	switch {
	case field(n, "times") != nil:
		count, err := decodeExpr(field(n, "times"))
		if err != nil {
			return nil, err
		}
		return &RepeatTimes{Count: count, Index: index, Body: body}, nil
	case field(n, "while") != nil, field(n, "until") != nil:
		key, until := "while", false
		if field(n, "until") != nil {
			key, until = "until", true
		}
		cond, err := decodeExpr(field(n, key))
		if err != nil {
			return nil, err
		}
		return &RepeatWhile{Condition: cond, Until: until, Index: index, Body: body}, nil
	case field(n, "event") != nil:
		target, err := optionalExpr(n, "target")
		if err != nil {
			return nil, err
		}
		return &RepeatUntilEvent{Event: stringField(n, "event"), Target: target, Index: index, Body: body}, nil
	default:
		return &RepeatForever{Index: index, Body: body}, nil
	}
}

func decodeFeatures(n *yaml.Node) ([]Feature, error) {
	n = resolve(n)
	if n == nil {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, decodeFail(n, ErrInvalidArgument, "expected a list of features")
	}
	out := make([]Feature, 0, len(n.Content))
	for _, item := range n.Content {
		item = resolve(item)
		typ, err := nodeType(item)
		if err != nil {
			return nil, err
		}
		var feat Feature
		switch typ {
		case "on":
			filter, err := optionalExpr(item, "filter")
			if err != nil {
				return nil, err
			}
			cmds, err := decodeCommandList(field(item, "commands"))
			if err != nil {
				return nil, err
			}
			on := &OnFeature{Event: stringField(item, "event"), Filter: filter, Commands: cmds}
			on.SetPos(nodePosition(item))
			feat = on
		case "def":
			params, err := stringList(item, "params")
			if err != nil {
				return nil, err
			}
			body, err := decodeCommandList(field(item, "body"))
			if err != nil {
				return nil, err
			}
			def := &DefFeature{Name: stringField(item, "name"), Params: params, Body: body}
			def.SetPos(nodePosition(item))
			feat = def
		case "init":
			cmds, err := decodeCommandList(field(item, "commands"))
			if err != nil {
				return nil, err
			}
			init := &InitFeature{Commands: cmds}
			init.SetPos(nodePosition(item))
			feat = init
		default:
			return nil, decodeFail(item, ErrUnknownNodeType, "unknown feature type %q", typ)
		}
		out = append(out, feat)
	}
	return out, nil
}
