// Package ebnf compiles EBNF grammar definitions into matcher trees, so a
// grammar can be loaded from a file instead of being built in Go code. The
// grammar syntax is the one understood by golang.org/x/exp/ebnf; each
// production becomes a named forward reference, which is what lets
// productions refer to each other and to themselves freely.
package ebnf

import (
	"fmt"
	"os"

	xebnf "golang.org/x/exp/ebnf"

	"github.com/dhamidi/gram/grammar"
)

// Load reads and parses an EBNF grammar file.
func Load(filename string) (xebnf.Grammar, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open grammar: %w", err)
	}
	defer f.Close()

	g, err := xebnf.Parse(filename, f)
	if err != nil {
		return nil, fmt.Errorf("parse grammar: %w", err)
	}
	return g, nil
}

// LoadMatcher loads an EBNF grammar file and compiles it into a matcher
// rooted at the start production.
func LoadMatcher(filename, start string) (grammar.Matcher, error) {
	g, err := Load(filename)
	if err != nil {
		return nil, err
	}
	return Compile(g, start)
}

// Compile translates the production named start, and everything reachable
// from it, into a matcher. Token literals match their text and yield it as
// one value; structure (sequences, alternatives, repetitions, options,
// groups) maps onto the corresponding matcher variants.
func Compile(g xebnf.Grammar, start string) (grammar.Matcher, error) {
	c := &compiler{g: g, refs: make(map[string]*grammar.Delayed)}
	root, err := c.reference(start)
	if err != nil {
		return nil, err
	}
	for len(c.pending) > 0 {
		name := c.pending[0]
		c.pending = c.pending[1:]
		m, err := c.compile(c.g[name].Expr)
		if err != nil {
			return nil, fmt.Errorf("production %s: %w", name, err)
		}
		c.refs[name].Resolve(m)
	}
	return root, nil
}

type compiler struct {
	g       xebnf.Grammar
	refs    map[string]*grammar.Delayed
	pending []string
}

// reference returns the forward reference standing for a production,
// scheduling the production for compilation the first time it is seen.
func (c *compiler) reference(name string) (*grammar.Delayed, error) {
	if d, ok := c.refs[name]; ok {
		return d, nil
	}
	if _, ok := c.g[name]; !ok {
		return nil, fmt.Errorf("undefined production %q", name)
	}
	d := grammar.Defer(name)
	c.refs[name] = d
	c.pending = append(c.pending, name)
	return d, nil
}

func (c *compiler) compile(expr xebnf.Expression) (grammar.Matcher, error) {
	switch e := expr.(type) {
	case nil:
		// An empty production matches the empty string.
		return grammar.Seq(), nil
	case *xebnf.Token:
		return grammar.Lit(e.String), nil
	case *xebnf.Range:
		return rangeMatcher(e)
	case xebnf.Sequence:
		children, err := c.compileAll(e)
		if err != nil {
			return nil, err
		}
		return grammar.Seq(children...), nil
	case xebnf.Alternative:
		children, err := c.compileAll(e)
		if err != nil {
			return nil, err
		}
		return grammar.Alt(children...), nil
	case *xebnf.Repetition:
		body, err := c.compile(e.Body)
		if err != nil {
			return nil, err
		}
		return grammar.Star(body), nil
	case *xebnf.Option:
		body, err := c.compile(e.Body)
		if err != nil {
			return nil, err
		}
		return grammar.Opt(body), nil
	case *xebnf.Group:
		return c.compile(e.Body)
	case *xebnf.Name:
		return c.reference(e.String)
	case *xebnf.Bad:
		return nil, fmt.Errorf("bad expression: %s", e.Error)
	default:
		return nil, fmt.Errorf("unsupported expression %T", expr)
	}
}

func (c *compiler) compileAll(exprs []xebnf.Expression) ([]grammar.Matcher, error) {
	children := make([]grammar.Matcher, len(exprs))
	for i, expr := range exprs {
		m, err := c.compile(expr)
		if err != nil {
			return nil, err
		}
		children[i] = m
	}
	return children, nil
}

func rangeMatcher(e *xebnf.Range) (grammar.Matcher, error) {
	begin := []rune(e.Begin.String)
	end := []rune(e.End.String)
	if len(begin) != 1 || len(end) != 1 {
		return nil, fmt.Errorf("range bounds must be single characters, got %q … %q", e.Begin.String, e.End.String)
	}
	if begin[0] > end[0] {
		return nil, fmt.Errorf("inverted range %q … %q", e.Begin.String, e.End.String)
	}
	return grammar.Re("[" + escapeClass(begin[0]) + "-" + escapeClass(end[0]) + "]"), nil
}

// escapeClass makes a rune safe inside a regular expression character
// class.
func escapeClass(r rune) string {
	switch r {
	case '\\', ']', '[', '^', '-':
		return `\` + string(r)
	}
	return string(r)
}
