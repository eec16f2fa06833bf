package fixi

func (v Value) Kind() ValueKind { return v.kind }

// IsNil reports whether v is null or undefined.
func (v Value) IsNil() bool { return v.kind == KindNull || v.kind == KindUndefined }

func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

func (v Value) Bool() bool {
	if v.kind == KindBool {
		return v.data.(bool)
	}
	return false
}

func (v Value) Number() float64 {
	if v.kind == KindNumber {
		return v.data.(float64)
	}
	return toNumber(v)
}

func (v Value) Array() *Array {
	if v.kind != KindArray {
		return nil
	}
	return v.data.(*Array)
}

// Items returns the array items, or nil when v is not an array.
func (v Value) Items() []Value {
	if arr := v.Array(); arr != nil {
		return arr.Items
	}
	return nil
}

// IsCollection reports whether v is an element collection from a query.
func (v Value) IsCollection() bool {
	arr := v.Array()
	return arr != nil && arr.collection
}

func (v Value) Object() *Object {
	if v.kind != KindObject {
		return nil
	}
	return v.data.(*Object)
}

func (v Value) Element() Element {
	if v.kind != KindElement {
		return nil
	}
	return v.data.(Element)
}

func (v Value) Function() *Function {
	if v.kind != KindFunction {
		return nil
	}
	return v.data.(*Function)
}

func (o *Object) Get(key string) (Value, bool) {
	val, ok := o.fields[key]
	return val, ok
}

func (o *Object) Set(key string, val Value) {
	if _, ok := o.fields[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.fields[key] = val
}

func (o *Object) Delete(key string) {
	if _, ok := o.fields[key]; !ok {
		return
	}
	delete(o.fields, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the enumerable property names in insertion order.
func (o *Object) Keys() []string {
	return append([]string(nil), o.keys...)
}

func (o *Object) Len() int { return len(o.keys) }

// Class is the constructor name used by `is a` fallbacks.
func (o *Object) Class() string { return o.class }
