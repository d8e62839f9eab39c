package grammar

import (
	"fmt"
	"regexp"
	"strings"
)

// Eq matches one input element equal to v.
func Eq(v any) *Equal {
	return &Equal{Literal: v}
}

// One matches any single input element.
func One() *Any {
	return &Any{}
}

// Re compiles expr and returns a Pattern anchored at the current position.
// It panics when expr is not a valid regular expression, mirroring
// regexp.MustCompile.
func Re(expr string) *Pattern {
	return &Pattern{
		Expr:   expr,
		Regexp: regexp.MustCompile(`\A(?:` + expr + `)`),
	}
}

// Seq matches children in order and concatenates their values.
func Seq(children ...Matcher) *Sequence {
	return &Sequence{Children: children, Flatten: true}
}

// Group matches children in order, keeping each child's value sequence as
// one nested value.
func Group(children ...Matcher) *Sequence {
	return &Sequence{Children: children}
}

// Alt tries children in order.
func Alt(children ...Matcher) *Alternate {
	return &Alternate{Children: children}
}

// Times matches m between min and max times, greedily. Pass Unbounded for
// max to remove the upper limit.
func Times(m Matcher, min, max int) *Repeat {
	return &Repeat{Child: m, Min: min, Max: max, Greedy: true, Flatten: true}
}

// Star matches m zero or more times, greedily.
func Star(m Matcher) *Repeat {
	return Times(m, 0, Unbounded)
}

// Plus matches m one or more times, greedily.
func Plus(m Matcher) *Repeat {
	return Times(m, 1, Unbounded)
}

// Opt matches m zero or one time, preferring one.
func Opt(m Matcher) *Repeat {
	return Times(m, 0, 1)
}

// Lazy returns a non-greedy copy of r.
func Lazy(r *Repeat) *Repeat {
	lazy := *r
	lazy.Greedy = false
	return &lazy
}

// Map wraps m in a Transform that receives the matched values as one
// aggregate argument.
func Map(m Matcher, fn TransformFunc) *Transform {
	return &Transform{Child: m, Func: fn}
}

// Apply wraps m in a Transform that receives the matched values spread as
// individual arguments.
func Apply(m Matcher, fn TransformFunc) *Transform {
	return &Transform{Child: m, Func: fn, Spread: true}
}

// MapEffect is Map for side-effecting functions; the resulting subtree is
// never memoized.
func MapEffect(m Matcher, fn TransformFunc) *Transform {
	return &Transform{Child: m, Func: fn, Effectful: true}
}

// Skip matches m but discards its values.
func Skip(m Matcher) *Drop {
	return &Drop{Child: m}
}

// Peek asserts that m matches here, consuming nothing.
func Peek(m Matcher) *Lookahead {
	return &Lookahead{Child: m}
}

// Reject asserts that m does not match here, consuming nothing.
func Reject(m Matcher) *Not {
	return &Not{Child: m}
}

// End matches only at the end of the source.
func End() *EndOfInput {
	return &EndOfInput{}
}

// Defer declares a named forward reference to be filled in with Resolve.
func Defer(name string) *Delayed {
	return &Delayed{name: name}
}

// Lit matches the literal text s element by element and yields s as a
// single value. For a single-element literal it is equivalent to Eq.
func Lit(s string) Matcher {
	runes := []rune(s)
	if len(runes) <= 1 {
		return Eq(s)
	}
	children := make([]Matcher, len(runes))
	for i, r := range runes {
		children[i] = Eq(string(r))
	}
	return Map(Seq(children...), func(args ...any) (any, error) {
		var b strings.Builder
		seq, _ := args[0].([]any)
		for _, v := range seq {
			fmt.Fprint(&b, v)
		}
		return b.String(), nil
	})
}
