package fixi

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFrameLocalNamesAreInvisibleToGlobalScope(t *testing.T) {
	frame := NewFrame(nil, Undefined())
	names := []string{"count", "it", "x", "me"}
	for _, name := range names {
		frame.Set(name, NewInt(1), false)
	}
	child := frame.Child(Undefined())
	child.Set("inner", NewInt(2), false)

	for _, name := range append(names, "inner") {
		if _, ok := child.Get(name, ScopeGlobal); ok {
			t.Fatalf("local %q visible through global scope", name)
		}
	}
	if v, ok := child.Get("count", ScopeLocal); !ok || v.Number() != 1 {
		t.Fatalf("expected parent local through local scope, got %v %v", v, ok)
	}
}

func TestFrameGetResolutionOrder(t *testing.T) {
	globals := NewGlobals()
	globals.Set("shared", NewString("global"))
	frame := NewFrame(globals, Undefined())
	frame.SetVariables(map[string]Value{"shared": NewString("variable"), "legacy": NewInt(7)})
	host := newObject("Window")
	host.Set("hosted", NewBool(true))
	host.Set("shared", NewString("host"))
	frame.SetHost(host)

	if v, _ := frame.Get("shared", ScopeAny); v.String() != "variable" {
		t.Fatalf("variables should shadow globals, got %v", v)
	}
	frame.SetLocal("shared", NewString("local"))
	if v, _ := frame.Get("shared", ScopeAny); v.String() != "local" {
		t.Fatalf("locals should shadow variables, got %v", v)
	}
	if v, _ := frame.Get("shared", ScopeGlobal); v.String() != "global" {
		t.Fatalf("global scope should read the store, got %v", v)
	}
	if v, ok := frame.Get("hosted", ScopeAny); !ok || !v.Bool() {
		t.Fatalf("expected host object fallback, got %v %v", v, ok)
	}
	if _, ok := frame.Get("missing", ScopeAny); ok {
		t.Fatalf("missing name reported as found")
	}
}

func TestFrameSetUpdatesNearestOwner(t *testing.T) {
	parent := NewFrame(nil, Undefined())
	parent.SetLocal("n", NewInt(1))
	child := parent.Child(Undefined())

	child.Set("n", NewInt(2), false)
	if _, ok := child.Locals()["n"]; ok {
		t.Fatalf("child should not shadow an existing parent local")
	}
	if v, _ := parent.Get("n", ScopeLocal); v.Number() != 2 {
		t.Fatalf("parent local not updated: %v", v)
	}

	child.Set("fresh", NewInt(3), false)
	if _, ok := parent.Get("fresh", ScopeLocal); ok {
		t.Fatalf("new local leaked into parent")
	}

	child.Set("g", NewInt(4), true)
	if v, ok := parent.Globals().Get("g"); !ok || v.Number() != 4 {
		t.Fatalf("global write not shared: %v %v", v, ok)
	}
}

func TestFrameChildInheritsContext(t *testing.T) {
	doc := newFakeDocument()
	btn := doc.add(doc.body, "button", "go")
	parent := NewFrame(nil, NewElement(btn))
	parent.SetYou(NewString("you"))
	parent.SetIt(NewInt(5))
	parent.SetFlags(Flags{Async: true, Halted: true})

	child := parent.Child(Undefined())
	if child.Me().Element() != btn {
		t.Fatalf("child should inherit me")
	}
	if child.You().String() != "you" || child.It().Number() != 5 {
		t.Fatalf("child should inherit you and it")
	}
	if child.Parent() != parent || child.Globals() != parent.Globals() {
		t.Fatalf("child should link parent and share globals")
	}
	if !child.IsAsync() || child.IsHalted() {
		t.Fatalf("child should keep only the async flag, got %+v", child.Flags())
	}

	other := parent.Child(NewString("other"))
	if other.Me().String() != "other" {
		t.Fatalf("explicit me not applied")
	}
}

func TestFrameCloneIsolatesLocals(t *testing.T) {
	frame := NewFrame(nil, Undefined())
	frame.SetLocal("a", NewInt(1))
	frame.SetFlags(Flags{Async: true})

	clone := frame.Clone()
	clone.SetLocal("a", NewInt(2))
	clone.SetLocal("b", NewInt(3))
	clone.Set("g", NewInt(9), true)

	if v, _ := frame.Get("a", ScopeLocal); v.Number() != 1 {
		t.Fatalf("clone write leaked into original: %v", v)
	}
	if _, ok := frame.Get("b", ScopeLocal); ok {
		t.Fatalf("clone local leaked into original")
	}
	if v, ok := frame.Get("g", ScopeGlobal); !ok || v.Number() != 9 {
		t.Fatalf("clone should share globals")
	}
	if !clone.IsAsync() {
		t.Fatalf("clone should keep flags")
	}
}

func TestFrameSnapshotRestoreOnUnmodifiedFrameIsNoop(t *testing.T) {
	frame := NewFrame(nil, NewString("me"))
	frame.SetLocal("a", NewInt(1))
	frame.Set("g", NewInt(2), true)
	frame.SetIt(NewString("it"))

	beforeLocals := frame.Locals()
	beforeGlobals := frame.Globals().Keys()
	store := frame.Globals()

	frame.Restore(frame.Snapshot())

	if diff := cmp.Diff(beforeLocals, frame.Locals(), cmp.Comparer(Value.Equal)); diff != "" {
		t.Fatalf("locals changed (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(beforeGlobals, frame.Globals().Keys()); diff != "" {
		t.Fatalf("globals changed (-want +got):\n%s", diff)
	}
	if frame.Globals() != store {
		t.Fatalf("restore replaced the globals store")
	}
	if frame.It().String() != "it" || frame.Me().String() != "me" {
		t.Fatalf("context bindings changed")
	}
}

func TestFrameRestoreRollsBackChanges(t *testing.T) {
	frame := NewFrame(nil, Undefined())
	frame.SetLocal("a", NewInt(1))
	frame.Set("g", NewInt(1), true)
	snap := frame.Snapshot()

	frame.SetLocal("a", NewInt(10))
	frame.SetLocal("b", NewInt(20))
	frame.Set("g", NewInt(10), true)
	frame.Set("h", NewInt(20), true)
	frame.SetFlags(Flags{Halted: true})

	frame.Restore(snap)
	if v, _ := frame.Get("a", ScopeLocal); v.Number() != 1 {
		t.Fatalf("local a not restored: %v", v)
	}
	if _, ok := frame.Get("b", ScopeLocal); ok {
		t.Fatalf("local b should be gone")
	}
	if v, _ := frame.Get("g", ScopeGlobal); v.Number() != 1 {
		t.Fatalf("global g not restored: %v", v)
	}
	if _, ok := frame.Get("h", ScopeGlobal); ok {
		t.Fatalf("global h should be gone")
	}
	if frame.IsHalted() {
		t.Fatalf("flags not restored")
	}
}

func TestFrameDeleteAndClearLocals(t *testing.T) {
	frame := NewFrame(nil, Undefined())
	frame.SetLocal("a", NewInt(1))
	frame.SetLocal("b", NewInt(2))

	frame.DeleteLocal("a")
	if _, ok := frame.Get("a", ScopeLocal); ok {
		t.Fatalf("a should be deleted")
	}
	frame.ClearLocals()
	if len(frame.Locals()) != 0 {
		t.Fatalf("expected no locals, got %v", frame.Locals())
	}
}

func TestFrameSetEventExposesEventObject(t *testing.T) {
	doc := newFakeDocument()
	btn := doc.add(doc.body, "button", "go")
	frame := NewFrame(nil, NewElement(btn))
	frame.SetEvent(NewEvent("click", btn, NewInt(3)))

	val, ok := contextValue(frame, "event")
	if !ok || val.Kind() != KindObject {
		t.Fatalf("expected event object, got %v", val)
	}
	obj := val.Object()
	if obj.Class() != "Event" {
		t.Fatalf("unexpected class %q", obj.Class())
	}
	if typ, _ := obj.Get("type"); typ.String() != "click" {
		t.Fatalf("unexpected type %v", typ)
	}
	if target, _ := obj.Get("target"); target.Element() != btn {
		t.Fatalf("unexpected target %v", target)
	}
}
