package parse

import (
	"fmt"
	"strings"

	"github.com/dhamidi/gram/grammar"
)

// frame is one live matcher invocation on the explicit continuation stack.
// It records which matcher runs, the state it was entered with, where in
// the input it started, and the frame its outcome is delivered to.
type frame struct {
	m      grammar.Matcher
	st     state
	pos    int
	parent *frame
	key    *cacheKey
}

type itemKind int

const (
	execItem itemKind = iota
	replyItem
)

// item is one pending trampoline operation: either execute a frame, or
// deliver a frame's outcome to its parent.
type item struct {
	kind itemKind
	fr   *frame
	out  outcome
}

// engine drives a single parse attempt to its next outcome. The explicit
// work list replaces call-stack recursion between matchers; its depth
// tracks live grammar nesting, not how many matches were attempted.
type engine struct {
	ctx   *Context
	work  []item
	steps uint64
	final *outcome
	err   error
}

func newEngine(ctx *Context) *engine {
	return &engine{ctx: ctx}
}

func (e *engine) push(it item) {
	e.work = append(e.work, it)
}

// exec schedules matcher m to run with st at pos, reporting to parent.
func (e *engine) exec(m grammar.Matcher, st state, pos int, parent *frame) {
	e.push(item{kind: execItem, fr: &frame{m: m, st: st, pos: pos, parent: parent}})
}

// emit completes fr with out. The outcome is memoized when the frame was
// entered on a cache miss, then delivered to the parent frame.
func (e *engine) emit(fr *frame, out outcome) {
	if fr.key != nil {
		e.ctx.memo.Add(*fr.key, out)
	}
	e.push(item{kind: replyItem, fr: fr, out: out})
}

func (e *engine) fatal(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *engine) badState(fr *frame) {
	e.fatal(fmt.Errorf("parse: %s cannot resume %T state", fr.m, fr.st))
}

// run pumps the work list until the root has a final outcome or a fatal
// error aborts the parse.
func (e *engine) run() {
	for e.final == nil && e.err == nil && len(e.work) > 0 {
		e.steps++
		if max := e.ctx.opts.MaxSteps; max > 0 && e.steps > max {
			e.fatal(fmt.Errorf("%w after %d dispatches", ErrStepLimit, max))
			return
		}
		it := e.work[len(e.work)-1]
		e.work = e.work[:len(e.work)-1]
		e.trace(it)
		if it.kind == execItem {
			e.dispatchExec(it.fr)
		} else {
			e.dispatchReply(it.fr, it.out)
		}
	}
	if e.final == nil && e.err == nil {
		e.fatal(fmt.Errorf("parse: work list drained without an outcome"))
	}
}

func (e *engine) trace(it item) {
	if !e.ctx.opts.Debug {
		return
	}
	if it.kind == replyItem {
		e.ctx.logger.Debugf("reply %s pos=%d ok=%v", it.fr.m, it.fr.pos, it.out.ok)
		return
	}
	e.ctx.logger.Debugf("exec %s pos=%d sig=%s", it.fr.m, it.fr.pos, it.fr.st.sig())
}

func (e *engine) dispatchExec(fr *frame) {
	if isExhausted(fr.st) {
		e.emit(fr, failure())
		return
	}
	if e.ctx.cacheable(fr.m) {
		key := cacheKey{m: fr.m, sig: fr.st.sig(), pos: fr.pos}
		if out, ok := e.ctx.memo.Get(key); ok {
			e.push(item{kind: replyItem, fr: fr, out: out})
			return
		}
		fr.key = &key
	}
	switch m := fr.m.(type) {
	case *grammar.Equal:
		e.execEqual(fr, m)
	case *grammar.Any:
		e.execAny(fr)
	case *grammar.Pattern:
		e.execPattern(fr, m)
	case *grammar.EndOfInput:
		e.execEnd(fr)
	case *grammar.Sequence:
		e.execSequence(fr, m)
	case *grammar.Alternate:
		e.execAlternate(fr, m)
	case *grammar.Repeat:
		e.execRepeat(fr, m)
	case *grammar.Transform:
		e.execWrapped(fr, m.Child)
	case *grammar.Drop:
		e.execWrapped(fr, m.Child)
	case *grammar.Lookahead:
		e.execAssertion(fr, m.Child)
	case *grammar.Not:
		e.execAssertion(fr, m.Child)
	case *grammar.Delayed:
		e.execDelayed(fr, m)
	default:
		e.fatal(fmt.Errorf("parse: unsupported matcher %T", fr.m))
	}
}

func (e *engine) dispatchReply(child *frame, out outcome) {
	parent := child.parent
	if parent == nil {
		e.final = &out
		return
	}
	switch m := parent.m.(type) {
	case *grammar.Sequence:
		e.replySequence(parent, m, child, out)
	case *grammar.Alternate:
		e.replyAlternate(parent, m, out)
	case *grammar.Repeat:
		e.replyRepeat(parent, m, child, out)
	case *grammar.Transform:
		e.replyTransform(parent, m, out)
	case *grammar.Drop:
		e.replyDrop(parent, out)
	case *grammar.Lookahead:
		e.replyLookahead(parent, out)
	case *grammar.Not:
		e.replyNot(parent, out)
	default:
		e.fatal(fmt.Errorf("parse: %T cannot receive a child outcome", parent.m))
	}
}

// Leaf matchers consume at most one element or pattern span and have no
// further alternatives.

func (e *engine) execEqual(fr *frame, m *grammar.Equal) {
	pos := e.ctx.skip(fr.pos)
	v, ok, err := e.ctx.elemAt(pos)
	if err != nil {
		e.fatal(err)
		return
	}
	if !ok || !elemEqual(v, m.Literal, e.ctx.opts.FoldCase) {
		e.emit(fr, failure())
		return
	}
	e.emit(fr, success([]any{v}, e.ctx.src.Advance(pos), stateExhausted))
}

func elemEqual(v, literal any, fold bool) bool {
	if fold {
		vs, vok := v.(string)
		ls, lok := literal.(string)
		if vok && lok {
			return strings.EqualFold(vs, ls)
		}
	}
	return v == literal
}

func (e *engine) execAny(fr *frame) {
	pos := e.ctx.skip(fr.pos)
	v, ok, err := e.ctx.elemAt(pos)
	if err != nil {
		e.fatal(err)
		return
	}
	if !ok {
		e.emit(fr, failure())
		return
	}
	e.emit(fr, success([]any{v}, e.ctx.src.Advance(pos), stateExhausted))
}

func (e *engine) execPattern(fr *frame, m *grammar.Pattern) {
	pos := e.ctx.skip(fr.pos)
	if ts := e.ctx.text; ts != nil {
		rest := ts.Text()[pos:]
		loc := m.Regexp.FindStringIndex(rest)
		if loc == nil {
			e.emit(fr, failure())
			return
		}
		e.emit(fr, success([]any{rest[:loc[1]]}, pos+loc[1], stateExhausted))
		return
	}
	// Non-text sources: the pattern must cover the string form of exactly
	// one element.
	v, ok, err := e.ctx.elemAt(pos)
	if err != nil {
		e.fatal(err)
		return
	}
	if !ok {
		e.emit(fr, failure())
		return
	}
	s := fmt.Sprint(v)
	if loc := m.Regexp.FindStringIndex(s); loc == nil || loc[1] != len(s) {
		e.emit(fr, failure())
		return
	}
	e.emit(fr, success([]any{v}, e.ctx.src.Advance(pos), stateExhausted))
}

func (e *engine) execEnd(fr *frame) {
	pos := e.ctx.skip(fr.pos)
	atEnd := e.ctx.src.AtEnd(pos)
	if err := e.ctx.sourceErr(); err != nil {
		e.fatal(err)
		return
	}
	if !atEnd {
		e.emit(fr, failure())
		return
	}
	e.emit(fr, success([]any{}, fr.pos, stateExhausted))
}

// Sequence runs children left to right. Backtracking resumes the last
// child that may still have alternatives; when it is exhausted, the one
// before it is resumed, until no completed child remains.

func (e *engine) execSequence(fr *frame, m *grammar.Sequence) {
	switch st := fr.st.(type) {
	case sentinel:
		if len(m.Children) == 0 {
			e.emit(fr, success([]any{}, fr.pos, stateExhausted))
			return
		}
		fr.st = &seqState{}
		e.exec(m.Children[0], stateFresh, fr.pos, fr)
	case *seqState:
		if len(st.steps) == 0 {
			e.emit(fr, failure())
			return
		}
		last := st.steps[len(st.steps)-1]
		fr.st = &seqState{steps: popStep(st.steps)}
		e.exec(m.Children[len(st.steps)-1], last.next, last.start, fr)
	default:
		e.badState(fr)
	}
}

func (e *engine) replySequence(fr *frame, m *grammar.Sequence, child *frame, out outcome) {
	st, ok := fr.st.(*seqState)
	if !ok {
		e.badState(fr)
		return
	}
	k := len(st.steps)
	if out.ok {
		steps := appendStep(st.steps, step{start: child.pos, vals: out.vals, next: out.next})
		if k+1 < len(m.Children) {
			fr.st = &seqState{steps: steps}
			e.exec(m.Children[k+1], stateFresh, out.pos, fr)
			return
		}
		e.emit(fr, success(concatValues(steps, m.Flatten), out.pos, &seqState{steps: steps}))
		return
	}
	if k == 0 {
		e.emit(fr, failure())
		return
	}
	last := st.steps[k-1]
	fr.st = &seqState{steps: popStep(st.steps)}
	e.exec(m.Children[k-1], last.next, last.start, fr)
}

// concatValues assembles the value sequence of a Sequence or Repeat from
// its completed steps: one nested value per step, or a single-level
// concatenation when flattening.
func concatValues(steps []step, flatten bool) []any {
	if !flatten {
		vals := make([]any, len(steps))
		for i, s := range steps {
			vals[i] = s.vals
		}
		return vals
	}
	total := 0
	for _, s := range steps {
		total += len(s.vals)
	}
	vals := make([]any, 0, total)
	for _, s := range steps {
		vals = append(vals, s.vals...)
	}
	return vals
}

// Alternate tries branches in declaration order, re-requesting the current
// branch's next alternative before moving to the next sibling.

func (e *engine) execAlternate(fr *frame, m *grammar.Alternate) {
	switch st := fr.st.(type) {
	case sentinel:
		if len(m.Children) == 0 {
			e.emit(fr, failure())
			return
		}
		fr.st = &altState{branch: 0, child: stateFresh}
		e.exec(m.Children[0], stateFresh, fr.pos, fr)
	case *altState:
		fr.st = st
		e.exec(m.Children[st.branch], st.child, fr.pos, fr)
	default:
		e.badState(fr)
	}
}

func (e *engine) replyAlternate(fr *frame, m *grammar.Alternate, out outcome) {
	st, ok := fr.st.(*altState)
	if !ok {
		e.badState(fr)
		return
	}
	if out.ok {
		e.emit(fr, success(out.vals, out.pos, &altState{branch: st.branch, child: out.next}))
		return
	}
	if st.branch+1 < len(m.Children) {
		fr.st = &altState{branch: st.branch + 1, child: stateFresh}
		e.exec(m.Children[st.branch+1], stateFresh, fr.pos, fr)
		return
	}
	e.emit(fr, failure())
}

// Repeat accumulates repetitions of its child. Greedy mode matches as many
// as allowed and backtracks by shedding the newest repetition; non-greedy
// mode stops as soon as the minimum is reached and grows on backtrack.

func (e *engine) execRepeat(fr *frame, m *grammar.Repeat) {
	switch st := fr.st.(type) {
	case sentinel:
		if m.Max >= 0 && m.Min > m.Max {
			e.emit(fr, failure())
			return
		}
		if m.Max == 0 || (!m.Greedy && m.Min == 0) {
			e.yieldRepeat(fr, m, nil, fr.pos)
			return
		}
		fr.st = &repState{phase: repGrow}
		e.exec(m.Child, stateFresh, fr.pos, fr)
	case *repState:
		if st.phase != repYield {
			e.badState(fr)
			return
		}
		if m.Greedy || (m.Max >= 0 && len(st.steps) >= m.Max) {
			e.shrinkRepeat(fr, m, st.steps)
			return
		}
		fr.st = &repState{phase: repGrow, steps: st.steps}
		e.exec(m.Child, stateFresh, st.end, fr)
	default:
		e.badState(fr)
	}
}

func (e *engine) replyRepeat(fr *frame, m *grammar.Repeat, child *frame, out outcome) {
	st, ok := fr.st.(*repState)
	if !ok || st.phase == repYield {
		e.badState(fr)
		return
	}
	if out.ok {
		steps := appendStep(st.steps, step{start: child.pos, vals: out.vals, next: out.next})
		e.continueRepeat(fr, m, steps, out.pos, out.pos == child.pos)
		return
	}
	// The child at this boundary is out of alternatives. Greedy repeats
	// yield the current count here; non-greedy repeats already did when
	// they first reached it.
	if m.Greedy && len(st.steps) >= m.Min {
		e.yieldRepeat(fr, m, st.steps, child.pos)
		return
	}
	e.shrinkRepeat(fr, m, st.steps)
}

func (e *engine) continueRepeat(fr *frame, m *grammar.Repeat, steps []step, end int, zeroWidth bool) {
	count := len(steps)
	if m.Max >= 0 && count >= m.Max {
		e.yieldRepeat(fr, m, steps, end)
		return
	}
	if !m.Greedy && count >= m.Min {
		e.yieldRepeat(fr, m, steps, end)
		return
	}
	if m.Greedy && zeroWidth && m.Max < 0 && count >= m.Min {
		// An unbounded greedy repeat over a zero-width match would grow
		// forever; treat the zero-width repetition as its last.
		e.yieldRepeat(fr, m, steps, end)
		return
	}
	fr.st = &repState{phase: repGrow, steps: steps}
	e.exec(m.Child, stateFresh, end, fr)
}

func (e *engine) yieldRepeat(fr *frame, m *grammar.Repeat, steps []step, end int) {
	e.emit(fr, success(concatValues(steps, m.Flatten), end, &repState{phase: repYield, steps: steps, end: end}))
}

func (e *engine) shrinkRepeat(fr *frame, m *grammar.Repeat, steps []step) {
	if len(steps) == 0 {
		e.emit(fr, failure())
		return
	}
	last := steps[len(steps)-1]
	fr.st = &repState{phase: repShrink, steps: popStep(steps)}
	e.exec(m.Child, last.next, last.start, fr)
}

// Transform and Drop wrap a single child and rewrite its values.

func (e *engine) execWrapped(fr *frame, child grammar.Matcher) {
	switch st := fr.st.(type) {
	case sentinel:
		e.exec(child, stateFresh, fr.pos, fr)
	case *wrapState:
		e.exec(child, st.child, fr.pos, fr)
	default:
		e.badState(fr)
	}
}

func (e *engine) replyTransform(fr *frame, m *grammar.Transform, out outcome) {
	if !out.ok {
		e.emit(fr, failure())
		return
	}
	v, err := callTransform(m, out.vals)
	if err != nil {
		e.fatal(fmt.Errorf("transform: %w", err))
		return
	}
	e.emit(fr, success([]any{v}, out.pos, &wrapState{child: out.next}))
}

func callTransform(m *grammar.Transform, vals []any) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if m.Spread {
		return m.Func(vals...)
	}
	return m.Func(vals)
}

func (e *engine) replyDrop(fr *frame, out outcome) {
	if !out.ok {
		e.emit(fr, failure())
		return
	}
	e.emit(fr, success([]any{}, out.pos, &wrapState{child: out.next}))
}

// Lookahead and Not run their child once at the current position and
// report a zero-width verdict; all of the child's alternatives are
// observationally identical, so they expose only one.

func (e *engine) execAssertion(fr *frame, child grammar.Matcher) {
	if _, ok := fr.st.(sentinel); !ok {
		e.badState(fr)
		return
	}
	e.exec(child, stateFresh, fr.pos, fr)
}

func (e *engine) replyLookahead(fr *frame, out outcome) {
	if !out.ok {
		e.emit(fr, failure())
		return
	}
	e.emit(fr, success([]any{}, fr.pos, stateExhausted))
}

func (e *engine) replyNot(fr *frame, out outcome) {
	if out.ok {
		e.emit(fr, failure())
		return
	}
	e.emit(fr, success([]any{}, fr.pos, stateExhausted))
}

// Delayed forwards to its resolved target; the target's own state and
// outcomes stand in for the reference entirely.

func (e *engine) execDelayed(fr *frame, m *grammar.Delayed) {
	target := m.Target()
	if target == nil {
		e.fatal(fmt.Errorf("%w: %s", ErrUnresolvedDelayed, m))
		return
	}
	e.exec(target, fr.st, fr.pos, fr.parent)
}
