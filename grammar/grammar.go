// Package grammar defines the immutable matcher tree that describes a
// grammar. Nodes carry no parse-time state, so a tree can be built once and
// shared between any number of concurrent parses; all mutable progress lives
// in the parse package. The only mutable node is Delayed, a once-assignable
// forward reference that makes recursive rules expressible.
package grammar

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher is a single node of the grammar tree. Implementations are the
// variant structs in this package; the parse engine dispatches on their
// concrete types.
type Matcher interface {
	matcher()
	String() string
}

// TransformFunc is a user function invoked by a Transform node against the
// values matched by its child. A non-nil error aborts the whole parse; it is
// not a recoverable match failure.
type TransformFunc func(args ...any) (any, error)

// Equal matches one input element equal to Literal.
type Equal struct {
	Literal any
}

func (m *Equal) matcher() {}

func (m *Equal) String() string {
	if s, ok := m.Literal.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprint(m.Literal)
}

// Any matches exactly one input element, whatever it is.
type Any struct{}

func (m *Any) matcher() {}

func (m *Any) String() string { return "." }

// Pattern matches a span of text input against a compiled regular
// expression anchored at the current position. Over non-text sources it
// matches the string form of a single element instead.
type Pattern struct {
	Expr   string
	Regexp *regexp.Regexp
}

func (m *Pattern) matcher() {}

func (m *Pattern) String() string { return "/" + m.Expr + "/" }

// Sequence matches its children left to right. When Flatten is set the
// children's value sequences are concatenated one level; otherwise each
// child contributes its value sequence as a single nested value.
type Sequence struct {
	Children []Matcher
	Flatten  bool
}

func (m *Sequence) matcher() {}

func (m *Sequence) String() string { return "(" + joinMatchers(m.Children, " ") + ")" }

// Alternate tries its children in declaration order and is exhausted only
// when every branch is.
type Alternate struct {
	Children []Matcher
}

func (m *Alternate) matcher() {}

func (m *Alternate) String() string { return "(" + joinMatchers(m.Children, " | ") + ")" }

// Unbounded is the Max sentinel for a Repeat with no upper limit.
const Unbounded = -1

// Repeat matches Child between Min and Max times (inclusive; Max of
// Unbounded means no limit). Greedy repeats accumulate as many repetitions
// as possible and backtrack by shedding the newest one; non-greedy repeats
// start at Min and grow one repetition per backtrack.
type Repeat struct {
	Child   Matcher
	Min     int
	Max     int
	Greedy  bool
	Flatten bool
}

func (m *Repeat) matcher() {}

func (m *Repeat) String() string {
	max := "∞"
	if m.Max >= 0 {
		max = fmt.Sprint(m.Max)
	}
	suffix := ""
	if !m.Greedy {
		suffix = "?"
	}
	return fmt.Sprintf("%s{%d,%s}%s", m.Child, m.Min, max, suffix)
}

// Transform invokes Func against the values matched by Child and replaces
// them with the single value Func returns. With Spread the values are passed
// as individual arguments; otherwise Func receives one argument holding the
// whole value sequence. Effectful marks the function as side-effecting,
// which excludes the node and everything containing it from memoization.
type Transform struct {
	Child     Matcher
	Func      TransformFunc
	Spread    bool
	Effectful bool
}

func (m *Transform) matcher() {}

func (m *Transform) String() string { return "map(" + m.Child.String() + ")" }

// Drop discards the values matched by Child while keeping its input
// consumption and success/failure behavior.
type Drop struct {
	Child Matcher
}

func (m *Drop) matcher() {}

func (m *Drop) String() string { return "skip(" + m.Child.String() + ")" }

// Lookahead succeeds with no values when Child matches, without consuming
// input.
type Lookahead struct {
	Child Matcher
}

func (m *Lookahead) matcher() {}

func (m *Lookahead) String() string { return "&(" + m.Child.String() + ")" }

// Not succeeds with no values when Child fails, without consuming input.
type Not struct {
	Child Matcher
}

func (m *Not) matcher() {}

func (m *Not) String() string { return "!(" + m.Child.String() + ")" }

// EndOfInput succeeds with no values at the end of the source and fails
// everywhere else.
type EndOfInput struct{}

func (m *EndOfInput) matcher() {}

func (m *EndOfInput) String() string { return "$" }

// Delayed is a forward reference to a matcher that is not known yet. It is
// the one place where a tree may refer to itself; executing a Delayed whose
// target was never resolved is a configuration error that aborts the parse.
type Delayed struct {
	name   string
	target Matcher
}

func (m *Delayed) matcher() {}

func (m *Delayed) String() string { return "<" + m.name + ">" }

// Name returns the name the Delayed was declared with.
func (m *Delayed) Name() string { return m.name }

// Target returns the resolved matcher, or nil while unresolved.
func (m *Delayed) Target() Matcher { return m.target }

// Resolve assigns the target matcher. It may be called exactly once.
func (m *Delayed) Resolve(target Matcher) {
	if m.target != nil {
		panic(fmt.Sprintf("grammar: %s already resolved", m))
	}
	if target == nil {
		panic(fmt.Sprintf("grammar: cannot resolve %s to nil", m))
	}
	m.target = target
}

// HasEffects reports whether any Transform reachable from m is marked
// Effectful. Delayed cycles are handled; an unresolved Delayed contributes
// nothing.
func HasEffects(m Matcher) bool {
	return hasEffects(m, make(map[Matcher]bool))
}

func hasEffects(m Matcher, seen map[Matcher]bool) bool {
	if m == nil || seen[m] {
		return false
	}
	seen[m] = true
	switch m := m.(type) {
	case *Sequence:
		for _, c := range m.Children {
			if hasEffects(c, seen) {
				return true
			}
		}
	case *Alternate:
		for _, c := range m.Children {
			if hasEffects(c, seen) {
				return true
			}
		}
	case *Repeat:
		return hasEffects(m.Child, seen)
	case *Transform:
		return m.Effectful || hasEffects(m.Child, seen)
	case *Drop:
		return hasEffects(m.Child, seen)
	case *Lookahead:
		return hasEffects(m.Child, seen)
	case *Not:
		return hasEffects(m.Child, seen)
	case *Delayed:
		return hasEffects(m.target, seen)
	}
	return false
}

func joinMatchers(ms []Matcher, sep string) string {
	parts := make([]string, len(ms))
	for i, m := range ms {
		parts[i] = m.String()
	}
	return strings.Join(parts, sep)
}
