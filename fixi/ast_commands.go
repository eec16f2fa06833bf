package fixi

import "time"

type Command interface {
	Node
	commandNode()
}

type Feature interface {
	Node
	featureNode()
}

// Program is the unit installed on an element.
type Program struct {
	Features []Feature
}

// OnFeature runs Commands each time Event fires on the element it is
// installed on. A non-nil Filter must be truthy for the handler to run.
type OnFeature struct {
	node
	Event    string
	Filter   Expression
	Commands []Command
}

// DefFeature defines a callable function bound in the runtime globals.
type DefFeature struct {
	node
	Name   string
	Params []string
	Body   []Command
}

type InitFeature struct {
	node
	Commands []Command
}

func (*OnFeature) featureNode()   {}
func (*DefFeature) featureNode()  {}
func (*InitFeature) featureNode() {}

// ExprCommand evaluates an expression for its effects; the value becomes it.
type ExprCommand struct {
	node
	Expr Expression
}

type SetCommand struct {
	node
	Target Expression
	Value  Expression
}

// PlacementKind is the fixed vocabulary of content placement strategies.
type PlacementKind int

const (
	PlaceInner PlacementKind = iota
	PlaceOuter
	PlaceEnd
	PlaceStart
	PlaceCustom
)

func (k PlacementKind) String() string {
	switch k {
	case PlaceInner:
		return "inner"
	case PlaceOuter:
		return "outer"
	case PlaceEnd:
		return "end"
	case PlaceStart:
		return "start"
	case PlaceCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// PlacementFunc is a caller-supplied placement routine.
type PlacementFunc func(doc Document, target Element, content Value) error

type Placement struct {
	Kind  PlacementKind
	Apply PlacementFunc
}

type PutCommand struct {
	node
	Value     Expression
	Placement Placement
	Target    Expression
}

// AttributeRef is `@name` or `@name=value` in add/remove/toggle.
type AttributeRef struct {
	Name  string
	Value Expression
}

type AddCommand struct {
	node
	Classes   []string
	Attribute *AttributeRef
	Target    Expression
}

// RemoveCommand removes classes or an attribute, or the target element
// itself when neither is given.
type RemoveCommand struct {
	node
	Classes   []string
	Attribute *AttributeRef
	Target    Expression
}

type ToggleCommand struct {
	node
	Classes   []string
	Attribute *AttributeRef
	Target    Expression
}

type ShowCommand struct {
	node
	Target  Expression
	Display string
}

type HideCommand struct {
	node
	Target Expression
}

type IncrementCommand struct {
	node
	Target Expression
	By     Expression
}

type DecrementCommand struct {
	node
	Target Expression
	By     Expression
}

type LogCommand struct {
	node
	Values []Expression
}

type SendCommand struct {
	node
	Event  string
	Detail Expression
	Target Expression
}

// WaitCommand waits for Duration, or for Event on Target when Event is set.
// Timeout bounds an event wait when non-zero.
type WaitCommand struct {
	node
	Duration Expression
	Event    string
	Target   Expression
	Timeout  time.Duration
}

// CallCommand evaluates Expr and stores the result in it. `get` decodes to the
// same command.
type CallCommand struct {
	node
	Expr Expression
}

type ReturnCommand struct {
	node
	Value Expression
}

// ExitCommand leaves the current handler or function with Value, or
// undefined when Value is nil.
type ExitCommand struct {
	node
	Value Expression
}

// HaltCommand stops the current event. Unless TheEvent is set it also halts
// the command sequence.
type HaltCommand struct {
	node
	TheEvent bool
}

type BreakCommand struct {
	node
}

type ContinueCommand struct {
	node
}

type ThrowCommand struct {
	node
	Value Expression
}

type IfCommand struct {
	node
	Condition Expression
	Then      []Command
	Else      []Command
}

type UnlessCommand struct {
	node
	Condition Expression
	Body      []Command
}

type ForCommand struct {
	node
	Variable string
	Index    string
	Source   Expression
	Body     []Command
}

type RepeatTimes struct {
	node
	Count Expression
	Index string
	Body  []Command
}

// RepeatWhile loops while Condition is truthy, or until it is truthy when
// Until is set.
type RepeatWhile struct {
	node
	Condition Expression
	Until     bool
	Index     string
	Body      []Command
}

type RepeatUntilEvent struct {
	node
	Event  string
	Target Expression
	Index  string
	Body   []Command
}

type RepeatForever struct {
	node
	Index string
	Body  []Command
}

type TellCommand struct {
	node
	Target Expression
	Body   []Command
}

type AsyncCommand struct {
	node
	Body []Command
}

func (*ExprCommand) commandNode()      {}
func (*SetCommand) commandNode()       {}
func (*PutCommand) commandNode()       {}
func (*AddCommand) commandNode()       {}
func (*RemoveCommand) commandNode()    {}
func (*ToggleCommand) commandNode()    {}
func (*ShowCommand) commandNode()      {}
func (*HideCommand) commandNode()      {}
func (*IncrementCommand) commandNode() {}
func (*DecrementCommand) commandNode() {}
func (*LogCommand) commandNode()       {}
func (*SendCommand) commandNode()      {}
func (*WaitCommand) commandNode()      {}
func (*CallCommand) commandNode()      {}
func (*ReturnCommand) commandNode()    {}
func (*ExitCommand) commandNode()      {}
func (*HaltCommand) commandNode()      {}
func (*BreakCommand) commandNode()     {}
func (*ContinueCommand) commandNode()  {}
func (*ThrowCommand) commandNode()     {}
func (*IfCommand) commandNode()        {}
func (*UnlessCommand) commandNode()    {}
func (*ForCommand) commandNode()       {}
func (*RepeatTimes) commandNode()      {}
func (*RepeatWhile) commandNode()      {}
func (*RepeatUntilEvent) commandNode() {}
func (*RepeatForever) commandNode()    {}
func (*TellCommand) commandNode()      {}
func (*AsyncCommand) commandNode()     {}
