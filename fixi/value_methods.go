package fixi

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

func (k ValueKind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindElement:
		return "element"
	case KindFunction:
		return "function"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// String converts v to text the way string concatenation does.
func (v Value) String() string {
	switch v.kind {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		if v.Bool() {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.data.(float64))
	case KindString:
		return v.data.(string)
	case KindArray:
		items := v.Items()
		parts := make([]string, len(items))
		for i, item := range items {
			if item.IsNil() {
				continue
			}
			parts[i] = item.String()
		}
		return strings.Join(parts, ",")
	case KindObject:
		return "[object " + v.Object().class + "]"
	case KindElement:
		return "[object HTMLElement]"
	case KindFunction:
		return fmt.Sprintf("function %s() { [native code] }", v.Function().Name)
	default:
		return fmt.Sprintf("<%v>", v.kind)
	}
}

// Truthy applies host truthiness: null, undefined, false, 0, NaN and the
// empty string are falsy; everything else, including functions, is truthy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindUndefined, KindNull:
		return false
	case KindBool:
		return v.Bool()
	case KindNumber:
		n := v.data.(float64)
		return n != 0 && !math.IsNaN(n)
	case KindString:
		return v.data.(string) != ""
	default:
		return true
	}
}

// Equal reports structural equality. It is meant for hosts and tests; script
// equality operators use strictEquals and looseEquals.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindArray:
		a, b := v.Items(), other.Items()
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
		return true
	case KindObject:
		a, b := v.Object(), other.Object()
		if a.class != b.class || len(a.keys) != len(b.keys) {
			return false
		}
		for _, k := range a.keys {
			bv, ok := b.fields[k]
			if !ok || !a.fields[k].Equal(bv) {
				return false
			}
		}
		return true
	default:
		return strictEquals(v, other)
	}
}

func formatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	case n == 0:
		return "0"
	}
	abs := math.Abs(n)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(n, 'e', -1, 64)
		return strings.Replace(strings.Replace(s, "e+0", "e+", 1), "e-0", "e-", 1)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func toNumber(v Value) float64 {
	switch v.kind {
	case KindNumber:
		return v.data.(float64)
	case KindBool:
		if v.Bool() {
			return 1
		}
		return 0
	case KindNull:
		return 0
	case KindString:
		return parseNumber(v.data.(string))
	case KindArray:
		items := v.Items()
		switch len(items) {
		case 0:
			return 0
		case 1:
			return parseNumber(items[0].String())
		}
		return math.NaN()
	default:
		return math.NaN()
	}
}

func parseNumber(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "0x") {
		n, err := strconv.ParseUint(lower[2:], 16, 64)
		if err != nil {
			return math.NaN()
		}
		return float64(n)
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if strings.ContainsAny(lower, "inx_") {
		return math.NaN()
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return n
}

func strictEquals(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindUndefined, KindNull:
		return true
	case KindBool:
		return a.Bool() == b.Bool()
	case KindNumber:
		return a.data.(float64) == b.data.(float64)
	case KindString:
		return a.data.(string) == b.data.(string)
	case KindArray:
		return a.Array() == b.Array()
	case KindObject:
		return a.Object() == b.Object()
	case KindFunction:
		return a.Function() == b.Function()
	case KindElement:
		return a.Element() == b.Element()
	default:
		return false
	}
}

func looseEquals(a, b Value) bool {
	if a.kind == b.kind {
		return strictEquals(a, b)
	}
	if a.IsNil() || b.IsNil() {
		return a.IsNil() && b.IsNil()
	}
	switch {
	case a.kind == KindNumber && b.kind == KindString:
		return a.data.(float64) == toNumber(b)
	case a.kind == KindString && b.kind == KindNumber:
		return toNumber(a) == b.data.(float64)
	case a.kind == KindBool:
		return looseEquals(NewNumber(toNumber(a)), b)
	case b.kind == KindBool:
		return looseEquals(a, NewNumber(toNumber(b)))
	case isPrimitive(a) && !isPrimitive(b):
		return looseEquals(a, NewString(b.String()))
	case !isPrimitive(a) && isPrimitive(b):
		return looseEquals(NewString(a.String()), b)
	}
	return false
}

func isPrimitive(v Value) bool {
	switch v.kind {
	case KindUndefined, KindNull, KindBool, KindNumber, KindString:
		return true
	}
	return false
}

// constructorName is the name `is a` falls back to when the requested type is
// outside the fixed vocabulary.
func constructorName(v Value) string {
	switch v.kind {
	case KindBool:
		return "Boolean"
	case KindNumber:
		return "Number"
	case KindString:
		return "String"
	case KindArray:
		return "Array"
	case KindObject:
		return v.Object().class
	case KindElement:
		return "HTMLElement"
	case KindFunction:
		return "Function"
	default:
		return ""
	}
}

// typeOf mirrors the host typeof operator.
func typeOf(v Value) string {
	switch v.kind {
	case KindUndefined:
		return "undefined"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindFunction:
		return "function"
	default:
		return "object"
	}
}

// isEmpty backs the `no` operator and `is empty` checks.
func isEmpty(v Value) bool {
	switch v.kind {
	case KindUndefined, KindNull:
		return true
	case KindString:
		return v.data.(string) == ""
	case KindArray:
		return len(v.Items()) == 0
	case KindObject:
		return v.Object().Len() == 0
	case KindNumber:
		return math.IsNaN(v.data.(float64))
	default:
		return false
	}
}
