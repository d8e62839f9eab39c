package parse

import (
	"errors"
	"unicode"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tliron/commonlog"

	"github.com/dhamidi/gram/grammar"
)

var (
	// ErrNoMatch reports that the grammar cannot parse the input. It is the
	// structural verdict of ParseOne, not a crash.
	ErrNoMatch = errors.New("cannot parse input")

	// ErrUnresolvedDelayed reports execution of a Delayed matcher whose
	// target was never resolved.
	ErrUnresolvedDelayed = errors.New("unresolved delayed matcher")

	// ErrStepLimit reports that the parse exceeded the configured step
	// budget.
	ErrStepLimit = errors.New("step limit exceeded")
)

// Options configures a single parse invocation.
type Options struct {
	// FoldCase makes Equal compare string elements case-insensitively.
	FoldCase bool
	// SkipSpace elides whitespace before each leaf matcher on text sources.
	SkipSpace bool
	// MemoSize enables the memo cache with the given capacity when > 0.
	MemoSize int
	// MaxSteps aborts the parse after this many trampoline dispatches when
	// > 0.
	MaxSteps uint64
	// FullInput appends an implicit end-of-input check after the root
	// matcher, so only matches covering the whole source count.
	FullInput bool
	// Debug traces every trampoline dispatch through the logger.
	Debug bool
	// Logger receives debug traces. Defaults to the "gram.parse" logger.
	Logger commonlog.Logger
}

// Option adjusts Options in the style of functional options.
type Option func(*Options)

// WithFoldCase compares string elements case-insensitively.
func WithFoldCase() Option {
	return func(o *Options) { o.FoldCase = true }
}

// WithSkipSpace elides whitespace before leaf matchers on text sources.
func WithSkipSpace() Option {
	return func(o *Options) { o.SkipSpace = true }
}

// WithMemo enables the memo cache. A size of 0 or less selects the default
// capacity.
func WithMemo(size int) Option {
	return func(o *Options) {
		if size <= 0 {
			size = defaultMemoSize
		}
		o.MemoSize = size
	}
}

// WithMaxSteps aborts the parse with ErrStepLimit after n dispatches.
func WithMaxSteps(n uint64) Option {
	return func(o *Options) { o.MaxSteps = n }
}

// WithFullInput rejects matches that stop short of the end of the input.
func WithFullInput() Option {
	return func(o *Options) { o.FullInput = true }
}

// WithDebug traces every dispatch at debug level.
func WithDebug() Option {
	return func(o *Options) { o.Debug = true }
}

// WithLogger routes debug traces to l.
func WithLogger(l commonlog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

const defaultMemoSize = 4096

// cacheKey identifies a memoized execution: which matcher, resuming from
// which state, at which position. The state signature is what separates a
// first attempt from a request for the Nth alternative.
type cacheKey struct {
	m   grammar.Matcher
	sig string
	pos int
}

// Context carries the per-parse configuration and scratch space: the
// source, the memo cache, and the set of matchers excluded from caching.
// It lives exactly as long as one ParseOne or ParseAll invocation.
type Context struct {
	src    Source
	text   TextSource
	opts   Options
	memo   *lru.Cache[cacheKey, outcome]
	impure map[grammar.Matcher]bool
	logger commonlog.Logger
}

func newContext(src Source, root grammar.Matcher, opts Options) (*Context, error) {
	ctx := &Context{
		src:    src,
		opts:   opts,
		logger: opts.Logger,
	}
	if ctx.logger == nil {
		ctx.logger = commonlog.GetLogger("gram.parse")
	}
	if ts, ok := src.(TextSource); ok {
		ctx.text = ts
	}
	if opts.MemoSize > 0 {
		memo, err := lru.New[cacheKey, outcome](opts.MemoSize)
		if err != nil {
			return nil, err
		}
		ctx.memo = memo
		ctx.impure = make(map[grammar.Matcher]bool)
		// Iterate to a fixpoint so effects reached only through a Delayed
		// cycle still poison every node above them.
		for prev := -1; prev != len(ctx.impure); {
			prev = len(ctx.impure)
			markImpure(root, ctx.impure, make(map[grammar.Matcher]bool))
		}
	}
	return ctx, nil
}

// markImpure records every matcher whose subtree contains an effectful
// transform; those must be executed every time rather than served from the
// cache.
func markImpure(m grammar.Matcher, impure map[grammar.Matcher]bool, seen map[grammar.Matcher]bool) bool {
	if m == nil {
		return false
	}
	if seen[m] {
		return impure[m]
	}
	seen[m] = true
	found := impure[m]
	switch m := m.(type) {
	case *grammar.Sequence:
		for _, c := range m.Children {
			if markImpure(c, impure, seen) {
				found = true
			}
		}
	case *grammar.Alternate:
		for _, c := range m.Children {
			if markImpure(c, impure, seen) {
				found = true
			}
		}
	case *grammar.Repeat:
		found = markImpure(m.Child, impure, seen) || found
	case *grammar.Transform:
		childFound := markImpure(m.Child, impure, seen)
		found = m.Effectful || childFound || found
	case *grammar.Drop:
		found = markImpure(m.Child, impure, seen) || found
	case *grammar.Lookahead:
		found = markImpure(m.Child, impure, seen) || found
	case *grammar.Not:
		found = markImpure(m.Child, impure, seen) || found
	case *grammar.Delayed:
		found = markImpure(m.Target(), impure, seen) || found
	}
	if found {
		impure[m] = true
	}
	return found
}

func (ctx *Context) cacheable(m grammar.Matcher) bool {
	if ctx.memo == nil {
		return false
	}
	if _, ok := m.(*grammar.Delayed); ok {
		return false
	}
	return !ctx.impure[m]
}

// elemAt reads the element at pos, surfacing source errors.
func (ctx *Context) elemAt(pos int) (any, bool, error) {
	v, ok := ctx.src.At(pos)
	if err := ctx.sourceErr(); err != nil {
		return nil, false, err
	}
	return v, ok, nil
}

func (ctx *Context) sourceErr() error {
	if es, ok := ctx.src.(errorSource); ok {
		return es.Err()
	}
	return nil
}

// skip advances pos past whitespace when elision is enabled and the source
// is text.
func (ctx *Context) skip(pos int) int {
	if !ctx.opts.SkipSpace || ctx.text == nil {
		return pos
	}
	text := ctx.text.Text()
	for pos < len(text) {
		r, size := utf8.DecodeRuneInString(text[pos:])
		if !unicode.IsSpace(r) {
			break
		}
		pos += size
	}
	return pos
}
