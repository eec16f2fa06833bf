package fixi

import "sort"

func Undefined() Value               { return Value{kind: KindUndefined} }
func Null() Value                    { return Value{kind: KindNull} }
func NewBool(b bool) Value           { return Value{kind: KindBool, data: b} }
func NewNumber(n float64) Value      { return Value{kind: KindNumber, data: n} }
func NewInt(n int) Value             { return Value{kind: KindNumber, data: float64(n)} }
func NewString(s string) Value       { return Value{kind: KindString, data: s} }
func NewFunction(fn *Function) Value { return Value{kind: KindFunction, data: fn} }

// NewArray wraps items without copying them.
func NewArray(items []Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, data: &Array{Items: items}}
}

// NewCollection builds an element collection in the given order. Duplicates
// are kept.
func NewCollection(elems []Element) Value {
	items := make([]Value, 0, len(elems))
	for _, el := range elems {
		items = append(items, NewElement(el))
	}
	return Value{kind: KindArray, data: &Array{Items: items, collection: true}}
}

// NewElement wraps a host element; a nil element becomes null.
func NewElement(el Element) Value {
	if el == nil {
		return Null()
	}
	return Value{kind: KindElement, data: el}
}

// NewObject returns an empty plain object.
func NewObject() Value {
	return Value{kind: KindObject, data: newObject("Object")}
}

// NewObjectOf builds a plain object from a map. Keys are inserted in sorted
// order so the result is deterministic.
func NewObjectOf(fields map[string]Value) Value {
	obj := newObject("Object")
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		obj.Set(k, fields[k])
	}
	return Value{kind: KindObject, data: obj}
}

// NewInstance returns an empty object whose constructor name is class.
func NewInstance(class string) Value {
	return Value{kind: KindObject, data: newObject(class)}
}

func NewNativeFunction(name string, fn NativeFunc) Value {
	return NewFunction(&Function{Name: name, Fn: fn})
}

func newObject(class string) *Object {
	return &Object{class: class, fields: make(map[string]Value)}
}
