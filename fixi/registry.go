package fixi

import (
	"fmt"
	"sort"
	"strings"
)

type Category string

const (
	CategoryOperator   Category = "operator"
	CategoryUnary      Category = "unary"
	CategoryReference  Category = "reference"
	CategoryPositional Category = "positional"
	CategoryConversion Category = "conversion"
	CategoryFunction   Category = "function"
)

type Associativity int

const (
	AssocLeft Associativity = iota
	AssocRight
	AssocNone
)

// Op identifies a built-in implementation. Entries registered by extensions
// carry OpExternal.
type Op int

const (
	OpExternal Op = iota
	OpAssign
	OpAnd
	OpOr
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpIdentity
	OpNotIdentity
	OpLooseEq
	OpLooseNe
	OpStrictEq
	OpStrictNe
	OpLess
	OpLessEq
	OpGreater
	OpGreaterEq
	OpContains
	OpNotContains
	OpMatches
	OpNotMatches
	OpIn
	OpIsA
	OpIsNotA
	OpAs
	OpNot
	OpNegate
	OpPlus
	OpNo
	OpExists
	OpTypeof
	OpDocument
	OpBody
	OpWindow
	OpNow
	OpFirst
	OpLast
	OpClosest
	OpNext
	OpPrevious
	OpParent
)

// EvaluateFunc computes an entry's value from evaluated arguments. Binary
// operators receive [left, right].
type EvaluateFunc func(exec *Execution, frame *Frame, args []Value) (Value, error)

// Entry describes one named expression or operator.
type Entry struct {
	Name          string
	Category      Category
	ResultType    string
	Aliases       []string
	Precedence    int
	Associativity Associativity
	// MinArgs and MaxArgs bound the argument count; MaxArgs < 0 is variadic.
	MinArgs  int
	MaxArgs  int
	Evaluate EvaluateFunc
	Validate func(args []Value) error

	op Op
}

// Op reports the built-in kind of the entry.
func (e *Entry) Op() Op { return e.op }

// ZeroArg reports whether the entry resolves as a bare identifier.
func (e *Entry) ZeroArg() bool { return e.MaxArgs == 0 && e.Category != CategoryOperator && e.Category != CategoryUnary }

func (e *Entry) checkArity(n int, pos Position) error {
	if n < e.MinArgs || (e.MaxArgs >= 0 && n > e.MaxArgs) {
		want := fmt.Sprintf("%d", e.MinArgs)
		switch {
		case e.MaxArgs < 0:
			want += " or more"
		case e.MaxArgs != e.MinArgs:
			want += fmt.Sprintf("-%d", e.MaxArgs)
		}
		return newFault(ErrInvalidArgument, pos, "%s expects %s arguments, got %d", e.Name, want, n)
	}
	return nil
}

// Registry maps names to expression entries. Binary operators, unary
// operators and named expressions live in separate tables; aliases resolve to
// the canonical name when an entry is registered.
type Registry struct {
	binary  map[string]*Entry
	unary   map[string]*Entry
	named   map[string]*Entry
	aliases map[string]string
}

func newRegistry() *Registry {
	return &Registry{
		binary:  make(map[string]*Entry),
		unary:   make(map[string]*Entry),
		named:   make(map[string]*Entry),
		aliases: make(map[string]string),
	}
}

func (r *Registry) table(cat Category) map[string]*Entry {
	switch cat {
	case CategoryOperator:
		return r.binary
	case CategoryUnary:
		return r.unary
	default:
		return r.named
	}
}

func (r *Registry) register(entry *Entry, op Op) error {
	name := strings.TrimSpace(entry.Name)
	if name == "" {
		return fmt.Errorf("fixi: expression name must be non-empty")
	}
	if entry.Evaluate == nil && op == OpExternal {
		return fmt.Errorf("fixi: expression %q has no evaluate function", name)
	}
	if entry.Category == "" {
		entry.Category = CategoryFunction
	}
	if entry.MinArgs == 0 && entry.MaxArgs == 0 {
		switch entry.Category {
		case CategoryOperator:
			entry.MinArgs, entry.MaxArgs = 2, 2
		case CategoryUnary:
			entry.MinArgs, entry.MaxArgs = 1, 1
		}
	}
	table := r.table(entry.Category)
	if _, exists := table[name]; exists {
		return fmt.Errorf("fixi: duplicate expression %q", name)
	}
	entry.Name = name
	entry.op = op
	table[name] = entry
	for _, alias := range entry.Aliases {
		r.aliases[aliasKey(entry.Category, alias)] = name
	}
	return nil
}

func aliasKey(cat Category, alias string) string {
	if cat != CategoryOperator && cat != CategoryUnary {
		cat = CategoryFunction
	}
	return string(cat) + ":" + normalizeOperator(alias)
}

func normalizeOperator(op string) string {
	return strings.Join(strings.Fields(strings.ToLower(op)), " ")
}

func (r *Registry) resolve(cat Category, name string) (*Entry, bool) {
	table := r.table(cat)
	if entry, ok := table[name]; ok {
		return entry, true
	}
	if canonical, ok := r.aliases[aliasKey(cat, name)]; ok {
		entry, ok := table[canonical]
		return entry, ok
	}
	if entry, ok := table[normalizeOperator(name)]; ok {
		return entry, true
	}
	return nil, false
}

// Binary looks up a binary operator by name or alias.
func (r *Registry) Binary(op string) (*Entry, bool) { return r.resolve(CategoryOperator, op) }

// Unary looks up a unary operator by name or alias.
func (r *Registry) Unary(op string) (*Entry, bool) { return r.resolve(CategoryUnary, op) }

// Lookup finds a named expression by name or alias.
func (r *Registry) Lookup(name string) (*Entry, bool) { return r.resolve(CategoryFunction, name) }

// Names returns every named expression in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.named))
	for name := range r.named {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Operators returns every binary operator name and alias in sorted order.
func (r *Registry) Operators() []string {
	seen := make(map[string]struct{})
	for name := range r.binary {
		seen[name] = struct{}{}
	}
	for key := range r.aliases {
		if rest, ok := strings.CutPrefix(key, string(CategoryOperator)+":"); ok {
			seen[rest] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
