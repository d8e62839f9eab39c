package parse

import (
	"strconv"
	"strings"
)

// state is the per-node, per-parse progress record of a matcher. States are
// immutable values: resuming a matcher means executing it again with the
// state a previous outcome carried, so the same state may be resumed from
// several backtracking paths. The signature identifies which resumption a
// state stands for, which is what keys the memo cache.
type state interface {
	sig() string
}

// sentinel covers the two states shared by every matcher variant.
type sentinel int

const (
	// stateFresh marks a matcher that has not run at this position yet.
	stateFresh sentinel = iota
	// stateExhausted marks a matcher with no further alternatives.
	stateExhausted
)

func (s sentinel) sig() string {
	if s == stateFresh {
		return "F"
	}
	return "X"
}

func isExhausted(s state) bool {
	v, ok := s.(sentinel)
	return ok && v == stateExhausted
}

// step records one completed child match inside a Sequence or Repeat: where
// the child started, what it produced, and the state to resume it with for
// its next alternative.
type step struct {
	start int
	vals  []any
	next  state
}

func appendStep(steps []step, s step) []step {
	out := make([]step, len(steps)+1)
	copy(out, steps)
	out[len(steps)] = s
	return out
}

func popStep(steps []step) []step {
	out := make([]step, len(steps)-1)
	copy(out, steps)
	return out
}

func stepSig(b *strings.Builder, steps []step) {
	for _, s := range steps {
		b.WriteString(strconv.Itoa(s.start))
		b.WriteByte(':')
		b.WriteString(s.next.sig())
		b.WriteByte(',')
	}
}

// seqState holds the completed children of a Sequence; len(steps) is the
// index of the child to run next, or of the last child when resuming.
type seqState struct {
	steps []step
}

func (s *seqState) sig() string {
	var b strings.Builder
	b.WriteString("q(")
	stepSig(&b, s.steps)
	b.WriteByte(')')
	return b.String()
}

// altState tracks which branch of an Alternate is being tried and how to
// resume it.
type altState struct {
	branch int
	child  state
}

func (s *altState) sig() string {
	return "a" + strconv.Itoa(s.branch) + ":" + s.child.sig()
}

// repPhase distinguishes what a Repeat is waiting for.
type repPhase int

const (
	// repGrow: the child was executed fresh to add one repetition.
	repGrow repPhase = iota
	// repShrink: the newest repetition was shed and its child resumed for
	// another alternative.
	repShrink
	// repYield: a result was delivered with the recorded steps; end is the
	// position after the last repetition.
	repYield
)

// repState holds the accumulated repetitions of a Repeat plus the phase the
// node is in.
type repState struct {
	phase repPhase
	steps []step
	end   int
}

func (s *repState) sig() string {
	var b strings.Builder
	b.WriteString("r")
	b.WriteString(strconv.Itoa(int(s.phase)))
	b.WriteString("@")
	b.WriteString(strconv.Itoa(s.end))
	b.WriteByte('(')
	stepSig(&b, s.steps)
	b.WriteByte(')')
	return b.String()
}

// wrapState resumes the single child of a Transform or Drop.
type wrapState struct {
	child state
}

func (s *wrapState) sig() string {
	return "w:" + s.child.sig()
}

// outcome is the verdict of one matcher execution. A failed outcome is
// ordinary control flow driving backtracking, not an error.
type outcome struct {
	ok   bool
	vals []any
	pos  int
	next state
}

func success(vals []any, pos int, next state) outcome {
	return outcome{ok: true, vals: vals, pos: pos, next: next}
}

func failure() outcome {
	return outcome{next: stateExhausted}
}
