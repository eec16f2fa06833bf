package fixi

import (
	"math"
	"strconv"
	"strings"
)

func arg(args []Value, i int) Value {
	if i < len(args) {
		return args[i]
	}
	return Undefined()
}

func hostFunc(obj *Object, name string, fn NativeFunc) {
	obj.Set(name, NewNativeFunction(name, fn))
}

// newHostObject builds the global object consulted last during lookup.
func newHostObject() *Object {
	host := newObject("Window")

	hostFunc(host, "parseInt", hostParseInt)
	hostFunc(host, "parseFloat", func(exec *Execution, frame *Frame, this Value, args []Value) (Value, error) {
		return NewNumber(parseLeadingFloat(strings.TrimSpace(arg(args, 0).String()))), nil
	})
	hostFunc(host, "isNaN", func(exec *Execution, frame *Frame, this Value, args []Value) (Value, error) {
		return NewBool(math.IsNaN(toNumber(arg(args, 0)))), nil
	})

	host.Set("String", NewNativeFunction("String", func(exec *Execution, frame *Frame, this Value, args []Value) (Value, error) {
		if len(args) == 0 {
			return NewString(""), nil
		}
		return NewString(args[0].String()), nil
	}))
	host.Set("Number", NewNativeFunction("Number", func(exec *Execution, frame *Frame, this Value, args []Value) (Value, error) {
		if len(args) == 0 {
			return NewInt(0), nil
		}
		return NewNumber(toNumber(args[0])), nil
	}))
	host.Set("Boolean", NewNativeFunction("Boolean", func(exec *Execution, frame *Frame, this Value, args []Value) (Value, error) {
		return NewBool(arg(args, 0).Truthy()), nil
	}))

	array := newObject("Function")
	hostFunc(array, "isArray", func(exec *Execution, frame *Frame, this Value, args []Value) (Value, error) {
		return NewBool(arg(args, 0).kind == KindArray), nil
	})
	hostFunc(array, "from", func(exec *Execution, frame *Frame, this Value, args []Value) (Value, error) {
		items, err := exec.iterate(arg(args, 0), Position{})
		if err != nil {
			return Undefined(), err
		}
		return NewArray(items), nil
	})
	host.Set("Array", Value{kind: KindObject, data: array})

	object := newObject("Function")
	hostFunc(object, "keys", func(exec *Execution, frame *Frame, this Value, args []Value) (Value, error) {
		obj := arg(args, 0).Object()
		if obj == nil {
			return NewArray(nil), nil
		}
		keys := obj.Keys()
		items := make([]Value, len(keys))
		for i, k := range keys {
			items[i] = NewString(k)
		}
		return NewArray(items), nil
	})
	hostFunc(object, "values", func(exec *Execution, frame *Frame, this Value, args []Value) (Value, error) {
		obj := arg(args, 0).Object()
		if obj == nil {
			return NewArray(nil), nil
		}
		items := make([]Value, 0, obj.Len())
		for _, k := range obj.keys {
			items = append(items, obj.fields[k])
		}
		return NewArray(items), nil
	})
	hostFunc(object, "assign", func(exec *Execution, frame *Frame, this Value, args []Value) (Value, error) {
		target := arg(args, 0)
		dst := target.Object()
		if dst == nil {
			return target, nil
		}
		for _, src := range args[1:] {
			if obj := src.Object(); obj != nil {
				for _, k := range obj.keys {
					dst.Set(k, obj.fields[k])
				}
			}
		}
		return target, nil
	})
	host.Set("Object", Value{kind: KindObject, data: object})

	host.Set("Math", Value{kind: KindObject, data: newMathObject()})

	jsonObj := newObject("JSON")
	hostFunc(jsonObj, "stringify", func(exec *Execution, frame *Frame, this Value, args []Value) (Value, error) {
		indent := ""
		if space := arg(args, 2); space.kind == KindNumber {
			indent = strings.Repeat(" ", max(0, min(10, int(space.Number()))))
		} else if space.kind == KindString {
			indent = space.String()
		}
		if v := arg(args, 0); v.kind == KindUndefined || v.kind == KindFunction {
			return Undefined(), nil
		}
		text, err := stringifyJSON(arg(args, 0), indent)
		if err != nil {
			return Undefined(), &ThrownError{Value: newErrorValue("TypeError", err.Error())}
		}
		return NewString(text), nil
	})
	hostFunc(jsonObj, "parse", func(exec *Execution, frame *Frame, this Value, args []Value) (Value, error) {
		val, err := parseJSON(arg(args, 0).String())
		if err != nil {
			return Undefined(), &ThrownError{Value: newErrorValue("SyntaxError", err.Error())}
		}
		return val, nil
	})
	host.Set("JSON", Value{kind: KindObject, data: jsonObj})

	host.Set("Error", Value{kind: KindFunction, data: &Function{
		Name: "Error",
		Fn: func(exec *Execution, frame *Frame, this Value, args []Value) (Value, error) {
			return newErrorValue("Error", messageArg(args)), nil
		},
		Construct: func(exec *Execution, frame *Frame, this Value, args []Value) (Value, error) {
			return newErrorValue("Error", messageArg(args)), nil
		},
	}})

	console := newObject("Console")
	hostFunc(console, "log", func(exec *Execution, frame *Frame, this Value, args []Value) (Value, error) {
		exec.logValues(args)
		return Undefined(), nil
	})
	host.Set("console", Value{kind: KindObject, data: console})

	host.Set("NaN", NewNumber(math.NaN()))
	host.Set("Infinity", NewNumber(math.Inf(1)))
	return host
}

func messageArg(args []Value) string {
	if len(args) == 0 || args[0].kind == KindUndefined {
		return ""
	}
	return args[0].String()
}

func newErrorValue(class, message string) Value {
	obj := newObject(class)
	obj.Set("name", NewString(class))
	obj.Set("message", NewString(message))
	return Value{kind: KindObject, data: obj}
}

func hostParseInt(exec *Execution, frame *Frame, this Value, args []Value) (Value, error) {
	text := strings.TrimSpace(arg(args, 0).String())
	radix := 10
	if r := arg(args, 1); !r.IsNil() {
		radix = int(toNumber(r))
	}
	neg := false
	if strings.HasPrefix(text, "-") || strings.HasPrefix(text, "+") {
		neg = text[0] == '-'
		text = text[1:]
	}
	if (radix == 16 || radix == 0) && (strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X")) {
		text, radix = text[2:], 16
	}
	if radix == 0 {
		radix = 10
	}
	if radix < 2 || radix > 36 {
		return NewNumber(math.NaN()), nil
	}
	end := 0
	for end < len(text) {
		d, err := strconv.ParseInt(text[end:end+1], radix, 64)
		if err != nil || d >= int64(radix) {
			break
		}
		end++
	}
	if end == 0 {
		return NewNumber(math.NaN()), nil
	}
	n, err := strconv.ParseInt(text[:end], radix, 64)
	if err != nil {
		return NewNumber(math.NaN()), nil
	}
	if neg {
		n = -n
	}
	return NewNumber(float64(n)), nil
}

// parseLeadingFloat parses the longest numeric prefix of s.
func parseLeadingFloat(s string) float64 {
	if strings.HasPrefix(s, "Infinity") || strings.HasPrefix(s, "+Infinity") {
		return math.Inf(1)
	}
	if strings.HasPrefix(s, "-Infinity") {
		return math.Inf(-1)
	}
	end := 0
	seenDot, seenExp, seenDigit := false, false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			seenDigit = true
		case (c == '+' || c == '-') && (i == 0 || s[i-1] == 'e' || s[i-1] == 'E'):
		case c == '.' && !seenDot && !seenExp:
			seenDot = true
		case (c == 'e' || c == 'E') && seenDigit && !seenExp:
			seenExp = true
		default:
			i = len(s)
			continue
		}
		if seenDigit {
			end = i + 1
		}
	}
	for end > 0 {
		if n, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return n
		}
		end--
	}
	return math.NaN()
}

func newMathObject() *Object {
	m := newObject("Math")
	m.Set("PI", NewNumber(math.Pi))
	m.Set("E", NewNumber(math.E))
	unary := map[string]func(float64) float64{
		"abs":   math.Abs,
		"ceil":  math.Ceil,
		"floor": math.Floor,
		"sqrt":  math.Sqrt,
		"trunc": math.Trunc,
		"round": func(x float64) float64 { return math.Floor(x + 0.5) },
		"sign": func(x float64) float64 {
			switch {
			case x > 0:
				return 1
			case x < 0:
				return -1
			}
			return x
		},
	}
	for _, name := range []string{"abs", "ceil", "floor", "round", "sign", "sqrt", "trunc"} {
		fn := unary[name]
		hostFunc(m, name, func(exec *Execution, frame *Frame, this Value, args []Value) (Value, error) {
			return NewNumber(fn(toNumber(arg(args, 0)))), nil
		})
	}
	hostFunc(m, "pow", func(exec *Execution, frame *Frame, this Value, args []Value) (Value, error) {
		return NewNumber(math.Pow(toNumber(arg(args, 0)), toNumber(arg(args, 1)))), nil
	})
	hostFunc(m, "max", func(exec *Execution, frame *Frame, this Value, args []Value) (Value, error) {
		out := math.Inf(-1)
		for _, a := range args {
			n := toNumber(a)
			if math.IsNaN(n) {
				return NewNumber(n), nil
			}
			out = math.Max(out, n)
		}
		return NewNumber(out), nil
	})
	hostFunc(m, "min", func(exec *Execution, frame *Frame, this Value, args []Value) (Value, error) {
		out := math.Inf(1)
		for _, a := range args {
			n := toNumber(a)
			if math.IsNaN(n) {
				return NewNumber(n), nil
			}
			out = math.Min(out, n)
		}
		return NewNumber(out), nil
	})
	return m
}
