package fixi

import "maps"

// Flags describe control state in flight for a frame.
type Flags struct {
	Halted     bool
	Breaking   bool
	Continuing bool
	Returning  bool
	Async      bool
}

// Frame is one lexical scope of command execution.
type Frame struct {
	me     Value
	you    Value
	it     Value
	event  *Event
	evtVal Value

	locals    map[string]Value
	globals   *Globals
	variables map[string]Value
	host      *Object
	parent    *Frame
	flags     Flags
}

// NewFrame creates a top-level frame. A nil globals store gets a fresh one.
func NewFrame(globals *Globals, me Value) *Frame {
	if globals == nil {
		globals = NewGlobals()
	}
	return &Frame{
		me:      me,
		locals:  make(map[string]Value),
		globals: globals,
	}
}

// Child creates a nested frame with fresh locals sharing the parent's
// globals. An undefined me inherits the parent's binding.
func (f *Frame) Child(me Value) *Frame {
	if me.IsUndefined() {
		me = f.me
	}
	return &Frame{
		me:        me,
		you:       f.you,
		it:        f.it,
		event:     f.event,
		evtVal:    f.evtVal,
		locals:    make(map[string]Value),
		globals:   f.globals,
		variables: f.variables,
		host:      f.host,
		parent:    f,
		flags:     Flags{Async: f.flags.Async},
	}
}

// Clone returns an isolated working copy: locals are copied by value, the
// globals store is shared and flags are preserved.
func (f *Frame) Clone() *Frame {
	clone := *f
	clone.locals = maps.Clone(f.locals)
	if clone.locals == nil {
		clone.locals = make(map[string]Value)
	}
	return &clone
}

func (f *Frame) Me() Value          { return f.me }
func (f *Frame) You() Value         { return f.you }
func (f *Frame) It() Value          { return f.it }
func (f *Frame) Result() Value      { return f.it }
func (f *Frame) Event() *Event      { return f.event }
func (f *Frame) Parent() *Frame     { return f.parent }
func (f *Frame) Globals() *Globals  { return f.globals }
func (f *Frame) Flags() Flags       { return f.flags }
func (f *Frame) SetMe(v Value)      { f.me = v }
func (f *Frame) SetYou(v Value)     { f.you = v }
func (f *Frame) SetIt(v Value)      { f.it = v }
func (f *Frame) SetResult(v Value)  { f.it = v }
func (f *Frame) SetFlags(fl Flags)  { f.flags = fl }
func (f *Frame) IsHalted() bool     { return f.flags.Halted }
func (f *Frame) IsAsync() bool      { return f.flags.Async }

// SetEvent binds the triggering occurrence.
func (f *Frame) SetEvent(ev *Event) {
	f.event = ev
	f.evtVal = eventValue(ev)
}

// eventValue exposes ev to scripts as an Event object.
func eventValue(ev *Event) Value {
	if ev == nil {
		return Undefined()
	}
	obj := newObject("Event")
	obj.Set("type", NewString(ev.Name))
	obj.Set("target", NewElement(ev.Target))
	obj.Set("detail", ev.Detail)
	return Value{kind: KindObject, data: obj}
}

// SetVariables installs the legacy variable map consulted after locals.
// The map is shared by reference.
func (f *Frame) SetVariables(vars map[string]Value) { f.variables = vars }

// SetHost installs the host global object consulted last.
func (f *Frame) SetHost(host *Object) { f.host = host }

// Get resolves name. ScopeLocal consults only the locals of this frame and
// its ancestors; ScopeGlobal only the globals store. Unscoped lookups walk
// locals, ancestor locals, legacy variables, globals and the host object.
func (f *Frame) Get(name string, scope Scope) (Value, bool) {
	switch scope {
	case ScopeLocal:
		return f.lookupLocal(name)
	case ScopeGlobal:
		return f.globals.Get(name)
	}
	if val, ok := f.lookupLocal(name); ok {
		return val, true
	}
	if f.variables != nil {
		if val, ok := f.variables[name]; ok {
			return val, true
		}
	}
	if val, ok := f.globals.Get(name); ok {
		return val, true
	}
	if f.host != nil {
		if val, ok := f.host.Get(name); ok {
			return val, true
		}
	}
	return Undefined(), false
}

func (f *Frame) lookupLocal(name string) (Value, bool) {
	for fr := f; fr != nil; fr = fr.parent {
		if val, ok := fr.locals[name]; ok {
			return val, true
		}
	}
	return Undefined(), false
}

// Set writes name. Global writes go to the shared store; local writes update
// the nearest frame already binding name, or this frame.
func (f *Frame) Set(name string, val Value, global bool) {
	if global {
		f.globals.Set(name, val)
		return
	}
	if owner := f.localOwner(name); owner != nil {
		owner.locals[name] = val
		return
	}
	f.locals[name] = val
}

// SetLocal binds name in this frame only.
func (f *Frame) SetLocal(name string, val Value) {
	f.locals[name] = val
}

func (f *Frame) localOwner(name string) *Frame {
	for fr := f; fr != nil; fr = fr.parent {
		if _, ok := fr.locals[name]; ok {
			return fr
		}
	}
	return nil
}

func (f *Frame) DeleteLocal(name string) {
	delete(f.locals, name)
}

func (f *Frame) ClearLocals() {
	clear(f.locals)
}

// Locals returns a copy of this frame's own locals.
func (f *Frame) Locals() map[string]Value {
	return maps.Clone(f.locals)
}

// Snapshot captures the restorable state of a frame.
type Snapshot struct {
	me      Value
	you     Value
	it      Value
	locals  map[string]Value
	globals map[string]Value
	flags   Flags
}

func (f *Frame) Snapshot() Snapshot {
	return Snapshot{
		me:      f.me,
		you:     f.you,
		it:      f.it,
		locals:  maps.Clone(f.locals),
		globals: f.globals.copyValues(),
		flags:   f.flags,
	}
}

// Restore overwrites the frame with s. The globals store is reconciled in
// place rather than replaced.
func (f *Frame) Restore(s Snapshot) {
	f.me = s.me
	f.you = s.you
	f.it = s.it
	f.flags = s.flags
	f.locals = maps.Clone(s.locals)
	if f.locals == nil {
		f.locals = make(map[string]Value)
	}
	f.globals.reconcile(s.globals)
}

// visibleLocals flattens the locals of this frame and its ancestors, nearest
// binding first.
func (f *Frame) visibleLocals() map[string]Value {
	out := make(map[string]Value)
	for fr := f; fr != nil; fr = fr.parent {
		for k, v := range fr.locals {
			if _, ok := out[k]; !ok {
				out[k] = v
			}
		}
	}
	return out
}
