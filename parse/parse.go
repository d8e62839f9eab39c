// Package parse executes a grammar against an input source. The engine is
// a trampoline: instead of matchers calling each other on the Go stack,
// every inter-matcher transition is a work item on an explicit list, and
// every matcher's progress lives in a resumable state value. That is what
// makes deep grammars, full backtracking, and lazy enumeration of every
// alternative possible with bounded stack use.
package parse

import (
	"github.com/dhamidi/gram/grammar"
)

// ParseOne parses src with m and returns the values of the first full
// match. It returns ErrNoMatch when the grammar cannot match the input;
// any other error is fatal (unresolved Delayed references, transform
// errors, source read errors, or an exceeded step budget).
func ParseOne(src Source, m grammar.Matcher, opts ...Option) ([]any, error) {
	results := ParseAll(src, m, opts...)
	vals, ok := results.Next()
	if err := results.Err(); err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoMatch
	}
	return vals, nil
}

// ParseAll returns a lazy sequence of every full match of m against src,
// in backtracking order. No parsing happens until Next is called; an
// abandoned Results does no further work. The sequence may be infinite for
// grammars with unboundedly many derivations.
func ParseAll(src Source, m grammar.Matcher, opts ...Option) *Results {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	root := m
	if o.FullInput {
		root = &grammar.Sequence{
			Children: []grammar.Matcher{m, &grammar.EndOfInput{}},
			Flatten:  true,
		}
	}
	r := &Results{root: root, state: stateFresh}
	ctx, err := newContext(src, root, o)
	if err != nil {
		r.err = err
		r.done = true
		return r
	}
	r.ctx = ctx
	return r
}

// Results enumerates the matches of one ParseAll invocation. It is not
// safe for concurrent use and cannot be rewound; start a fresh parse to
// iterate again.
type Results struct {
	ctx   *Context
	root  grammar.Matcher
	state state
	pos   int
	done  bool
	err   error
}

// Next runs the trampoline until the next full match is available. It
// returns false when the matches are exhausted or a fatal error occurred;
// check Err to tell the two apart.
func (r *Results) Next() ([]any, bool) {
	if r.done {
		return nil, false
	}
	eng := newEngine(r.ctx)
	eng.exec(r.root, r.state, 0, nil)
	eng.run()
	if eng.err != nil {
		r.err = eng.err
		r.done = true
		return nil, false
	}
	out := *eng.final
	if !out.ok {
		r.done = true
		return nil, false
	}
	r.state = out.next
	r.pos = out.pos
	r.done = isExhausted(out.next)
	return out.vals, true
}

// Pos returns the input position just after the most recent match. Matches
// cover a prefix of the input unless WithFullInput is set, so Pos tells the
// caller where the unconsumed remainder starts.
func (r *Results) Pos() int {
	return r.pos
}

// Err returns the fatal error that ended the sequence, if any. A grammar
// that simply never matches is not an error here: the sequence is just
// empty.
func (r *Results) Err() error {
	return r.err
}

// All drains every remaining match. It must not be used with grammars
// that derive unboundedly many results.
func (r *Results) All() ([][]any, error) {
	var all [][]any
	for {
		vals, ok := r.Next()
		if !ok {
			break
		}
		all = append(all, vals)
	}
	return all, r.err
}
