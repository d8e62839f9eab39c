package parse

import (
	"fmt"
	"io"
	"unicode/utf8"
)

// Source gives matchers sequential, restartable access to input. Positions
// are plain integer offsets; the same position may be visited many times
// while backtracking, and no operation mutates the source.
type Source interface {
	// At returns the element at pos, or false at or past the end.
	At(pos int) (any, bool)
	// Advance returns the position just after the element at pos.
	Advance(pos int) int
	// AtEnd reports whether pos is at the end of the input.
	AtEnd(pos int) bool
}

// TextSource is a Source backed by text. Pattern matchers use Text to match
// spans, and whitespace elision only applies to text sources.
type TextSource interface {
	Source
	Text() string
}

// errorSource is implemented by sources that can fail while pulling input,
// such as ReaderSource. A non-nil Err aborts the parse.
type errorSource interface {
	Err() error
}

// StringSource reads a string rune by rune. Positions are byte offsets and
// elements are single-rune strings.
type StringSource struct {
	text string
}

// NewStringSource returns a source over s.
func NewStringSource(s string) *StringSource {
	return &StringSource{text: s}
}

func (s *StringSource) At(pos int) (any, bool) {
	if pos < 0 || pos >= len(s.text) {
		return nil, false
	}
	_, size := utf8.DecodeRuneInString(s.text[pos:])
	return s.text[pos : pos+size], true
}

func (s *StringSource) Advance(pos int) int {
	if pos >= len(s.text) {
		return pos
	}
	_, size := utf8.DecodeRuneInString(s.text[pos:])
	return pos + size
}

func (s *StringSource) AtEnd(pos int) bool {
	return pos >= len(s.text)
}

func (s *StringSource) Text() string {
	return s.text
}

// SliceSource reads a slice of arbitrary elements, such as tokens produced
// by a separate lexer. Positions are indexes.
type SliceSource struct {
	elems []any
}

// NewSliceSource returns a source over the given elements.
func NewSliceSource(elems ...any) *SliceSource {
	return &SliceSource{elems: elems}
}

func (s *SliceSource) At(pos int) (any, bool) {
	if pos < 0 || pos >= len(s.elems) {
		return nil, false
	}
	return s.elems[pos], true
}

func (s *SliceSource) Advance(pos int) int {
	if pos >= len(s.elems) {
		return pos
	}
	return pos + 1
}

func (s *SliceSource) AtEnd(pos int) bool {
	return pos >= len(s.elems)
}

// ReaderSource pulls runes from an io.RuneReader on demand, buffering what
// it has seen so that positions remain restartable. Pulls are synchronous;
// a read error other than io.EOF is sticky and aborts the parse.
type ReaderSource struct {
	r   io.RuneReader
	buf []byte
	eof bool
	err error
}

// NewReaderSource returns a lazily populated source over r.
func NewReaderSource(r io.RuneReader) *ReaderSource {
	return &ReaderSource{r: r}
}

// fill buffers input until at least one byte past pos is available or the
// reader is drained.
func (s *ReaderSource) fill(pos int) {
	for !s.eof && s.err == nil && pos >= len(s.buf) {
		r, _, err := s.r.ReadRune()
		if err == io.EOF {
			s.eof = true
			return
		}
		if err != nil {
			s.err = fmt.Errorf("read source: %w", err)
			return
		}
		s.buf = utf8.AppendRune(s.buf, r)
	}
}

func (s *ReaderSource) At(pos int) (any, bool) {
	s.fill(pos)
	if pos < 0 || pos >= len(s.buf) {
		return nil, false
	}
	_, size := utf8.DecodeRune(s.buf[pos:])
	return string(s.buf[pos : pos+size]), true
}

func (s *ReaderSource) Advance(pos int) int {
	s.fill(pos)
	if pos >= len(s.buf) {
		return pos
	}
	_, size := utf8.DecodeRune(s.buf[pos:])
	return pos + size
}

func (s *ReaderSource) AtEnd(pos int) bool {
	s.fill(pos)
	return pos >= len(s.buf)
}

// Err returns the first read error encountered, if any.
func (s *ReaderSource) Err() error {
	return s.err
}
