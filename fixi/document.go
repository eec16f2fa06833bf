package fixi

import "context"

// Element is an opaque handle to a node in the host document. Handles must be
// comparable: the same node always yields the same handle.
type Element interface {
	TagName() string
}

// Subscription identifies a listener registered with Document.Subscribe.
type Subscription interface {
	Event() string
}

type EventHandler func(ev *Event)

// Event is an occurrence dispatched through the document.
type Event struct {
	Name   string
	Target Element
	Detail Value

	stopped   bool
	prevented bool

	// Set for events raised by a runtime while it holds the turn.
	origin *Runtime
	ctx    context.Context
	depth  int
}

func NewEvent(name string, target Element, detail Value) *Event {
	return &Event{Name: name, Target: target, Detail: detail}
}

func (e *Event) StopPropagation()         { e.stopped = true }
func (e *Event) PreventDefault()          { e.prevented = true }
func (e *Event) PropagationStopped() bool { return e.stopped }
func (e *Event) DefaultPrevented() bool   { return e.prevented }

// Document is the narrow interface the evaluator uses to reach the host tree.
//
// QueryOne returns nil when nothing matches. QueryAll and QueryWithin return
// elements in document order; QueryWithin only considers descendants of
// root. Property exposes host properties such as id, textContent or
// children; ok is false when the name is not a known property.
type Document interface {
	Root() Element
	QueryOne(selector string) (Element, error)
	QueryAll(selector string) ([]Element, error)
	QueryWithin(root Element, selector string) ([]Element, error)
	Matches(el Element, selector string) (bool, error)
	Parent(el Element) Element

	Attribute(el Element, name string) (string, bool)
	HasAttribute(el Element, name string) bool
	SetAttribute(el Element, name, value string) error
	RemoveAttribute(el Element, name string) error

	Property(el Element, name string) (Value, bool)
	SetProperty(el Element, name string, val Value) error

	Subscribe(el Element, event string, handler EventHandler) (Subscription, error)
	Unsubscribe(sub Subscription)
	Dispatch(el Element, ev *Event) error

	// Mutate places content relative to el. Kind is never PlaceCustom;
	// custom placements run their own routine.
	Mutate(el Element, kind PlacementKind, content Value) error
	Remove(el Element) error
}
