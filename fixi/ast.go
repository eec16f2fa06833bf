package fixi

// Position locates a node in the source the front end parsed.
type Position struct {
	Line   int
	Column int
}

type Node interface {
	Pos() Position
}

type Expression interface {
	Node
	exprNode()
}

type node struct {
	position Position
}

func (n node) Pos() Position { return n.position }

// SetPos records where a front end found the node.
func (n *node) SetPos(pos Position) { n.position = pos }

// Scope restricts identifier lookup to a single store.
type Scope int

const (
	ScopeAny Scope = iota
	ScopeLocal
	ScopeGlobal
)

func (s Scope) String() string {
	switch s {
	case ScopeLocal:
		return "local"
	case ScopeGlobal:
		return "global"
	default:
		return ""
	}
}

type Identifier struct {
	node
	Name  string
	Scope Scope
}

type Literal struct {
	node
	Value Value
}

// MemberAccess is `object.property` or, when Computed, `object[property]`.
// A non-computed Property is an *Identifier or a string *Literal.
type MemberAccess struct {
	node
	Object   Expression
	Property Expression
	Computed bool
}

type BinaryOp struct {
	node
	Operator string
	Left     Expression
	Right    Expression
}

type UnaryOp struct {
	node
	Operator string
	Argument Expression
}

type Call struct {
	node
	Callee        Expression
	Args          []Expression
	IsConstructor bool
}

// Selector is a raw query literal; it always yields a collection.
type Selector struct {
	node
	Raw string
}

type SelectorKind string

const (
	SelectorID    SelectorKind = "id"
	SelectorClass SelectorKind = "class"
	SelectorQuery SelectorKind = "query"
)

type CSSSelector struct {
	node
	Kind     SelectorKind
	Selector string
}

// TemplateSegment is literal text when Expr is nil.
type TemplateSegment struct {
	Text string
	Expr Expression
}

type TemplateLiteral struct {
	node
	Segments []TemplateSegment
}

type ArrayLiteral struct {
	node
	Elements []Expression
}

type ObjectProperty struct {
	Key   string
	Value Expression
}

type ObjectLiteral struct {
	node
	Properties []ObjectProperty
}

type Conditional struct {
	node
	Test Expression
	Then Expression
	Else Expression
}

// Possessive is `owner's property`; a property starting with @ names an
// attribute.
type Possessive struct {
	node
	Object   Expression
	Property string
}

// PropertyOf is `the property of target`.
type PropertyOf struct {
	node
	Property string
	Target   Expression
}

type ContextKind string

const (
	ContextMe     ContextKind = "me"
	ContextYou    ContextKind = "you"
	ContextIt     ContextKind = "it"
	ContextResult ContextKind = "result"
	ContextEvent  ContextKind = "event"
	ContextTarget ContextKind = "target"
	ContextDetail ContextKind = "detail"
)

type ContextReference struct {
	node
	Kind ContextKind
}

func (*Identifier) exprNode()       {}
func (*Literal) exprNode()          {}
func (*MemberAccess) exprNode()     {}
func (*BinaryOp) exprNode()         {}
func (*UnaryOp) exprNode()          {}
func (*Call) exprNode()             {}
func (*Selector) exprNode()         {}
func (*CSSSelector) exprNode()      {}
func (*TemplateLiteral) exprNode()  {}
func (*ArrayLiteral) exprNode()     {}
func (*ObjectLiteral) exprNode()    {}
func (*Conditional) exprNode()      {}
func (*Possessive) exprNode()       {}
func (*PropertyOf) exprNode()       {}
func (*ContextReference) exprNode() {}
