package fixi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// FromGo converts plain Go data (as produced by encoding/json or yaml.v3)
// into a Value. Map keys are inserted in sorted order.
func FromGo(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case bool:
		return NewBool(x)
	case int:
		return NewInt(x)
	case int64:
		return NewNumber(float64(x))
	case float64:
		return NewNumber(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return NewNumber(math.NaN())
		}
		return NewNumber(f)
	case string:
		return NewString(x)
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = FromGo(item)
		}
		return NewArray(items)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := newObject("Object")
		for _, k := range keys {
			obj.Set(k, FromGo(x[k]))
		}
		return Value{kind: KindObject, data: obj}
	case Element:
		return NewElement(x)
	default:
		return NewString(fmt.Sprint(x))
	}
}

// ToGo converts v into plain Go data. Objects become maps and lose their key
// order; elements and functions are returned as-is.
func ToGo(v Value) any {
	switch v.kind {
	case KindUndefined, KindNull:
		return nil
	case KindBool:
		return v.Bool()
	case KindNumber:
		return v.Number()
	case KindString:
		return v.String()
	case KindArray:
		items := v.Items()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = ToGo(item)
		}
		return out
	case KindObject:
		obj := v.Object()
		out := make(map[string]any, obj.Len())
		for _, k := range obj.keys {
			out[k] = ToGo(obj.fields[k])
		}
		return out
	case KindElement:
		return v.Element()
	case KindFunction:
		return v.Function()
	}
	return nil
}

// stringifyJSON encodes v keeping object key order. Undefined and functions
// are skipped inside objects and become null inside arrays.
func stringifyJSON(v Value, indent string) (string, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v, indent, "", make(map[any]bool)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func writeJSON(buf *bytes.Buffer, v Value, indent, prefix string, seen map[any]bool) error {
	switch v.kind {
	case KindUndefined, KindNull, KindFunction:
		buf.WriteString("null")
	case KindBool, KindString:
		raw, err := json.Marshal(ToGo(v))
		if err != nil {
			return err
		}
		buf.Write(raw)
	case KindNumber:
		n := v.Number()
		if math.IsNaN(n) || math.IsInf(n, 0) {
			buf.WriteString("null")
			return nil
		}
		buf.WriteString(formatNumber(n))
	case KindElement:
		buf.WriteString("{}")
	case KindArray:
		arr := v.Array()
		if seen[arr] {
			return fmt.Errorf("converting circular structure to JSON")
		}
		seen[arr] = true
		defer delete(seen, arr)
		buf.WriteByte('[')
		inner := prefix + indent
		for i, item := range arr.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			newline(buf, indent, inner)
			if err := writeJSON(buf, item, indent, inner, seen); err != nil {
				return err
			}
		}
		if len(arr.Items) > 0 {
			newline(buf, indent, prefix)
		}
		buf.WriteByte(']')
	case KindObject:
		obj := v.Object()
		if seen[obj] {
			return fmt.Errorf("converting circular structure to JSON")
		}
		seen[obj] = true
		defer delete(seen, obj)
		buf.WriteByte('{')
		inner := prefix + indent
		written := 0
		for _, k := range obj.keys {
			field := obj.fields[k]
			if field.kind == KindUndefined || field.kind == KindFunction {
				continue
			}
			if written > 0 {
				buf.WriteByte(',')
			}
			newline(buf, indent, inner)
			key, _ := json.Marshal(k)
			buf.Write(key)
			buf.WriteByte(':')
			if indent != "" {
				buf.WriteByte(' ')
			}
			if err := writeJSON(buf, field, indent, inner, seen); err != nil {
				return err
			}
			written++
		}
		if written > 0 {
			newline(buf, indent, prefix)
		}
		buf.WriteByte('}')
	}
	return nil
}

func newline(buf *bytes.Buffer, indent, prefix string) {
	if indent == "" {
		return
	}
	buf.WriteByte('\n')
	buf.WriteString(prefix)
}

// parseJSON decodes text token by token so object keys keep their order.
func parseJSON(text string) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	val, err := readJSON(dec)
	if err != nil {
		return Undefined(), err
	}
	if dec.More() {
		return Undefined(), fmt.Errorf("unexpected data after JSON value")
	}
	return val, nil
}

func readJSON(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Undefined(), err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '[':
			var items []Value
			for dec.More() {
				item, err := readJSON(dec)
				if err != nil {
					return Undefined(), err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Undefined(), err
			}
			return NewArray(items), nil
		case '{':
			obj := newObject("Object")
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Undefined(), err
				}
				key, _ := keyTok.(string)
				val, err := readJSON(dec)
				if err != nil {
					return Undefined(), err
				}
				obj.Set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return Undefined(), err
			}
			return Value{kind: KindObject, data: obj}, nil
		}
		return Undefined(), fmt.Errorf("unexpected delimiter %q", t)
	default:
		return FromGo(t), nil
	}
}
