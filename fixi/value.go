package fixi

type ValueKind int

const (
	KindUndefined ValueKind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
	KindElement
	KindFunction
)

// Value is the dynamic value produced by evaluation. The zero Value is
// undefined.
type Value struct {
	kind ValueKind
	data any
}

// Array is a reference-typed ordered sequence. Arrays produced by selector
// queries are marked as element collections, which changes how member access
// treats them.
type Array struct {
	Items      []Value
	collection bool
}

// Collection reports whether the array came from a selector query.
func (a *Array) Collection() bool { return a.collection }

// Object is a reference-typed map with insertion-ordered keys.
type Object struct {
	class  string
	keys   []string
	fields map[string]Value
}

// NativeFunc implements a callable value. this is the receiver for method
// calls and undefined otherwise.
type NativeFunc func(exec *Execution, frame *Frame, this Value, args []Value) (Value, error)

// Function is a callable value. Script-defined functions carry their
// definition; host functions carry Fn and optionally Construct for `new`.
type Function struct {
	Name      string
	Fn        NativeFunc
	Construct NativeFunc
	def       *DefFeature
}
