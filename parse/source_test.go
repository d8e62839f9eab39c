package parse

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dhamidi/gram/grammar"
)

func TestStringSource_Unicode(t *testing.T) {
	src := NewStringSource("héllo")

	v, ok := src.At(1)
	if !ok || v != "é" {
		t.Fatalf("At(1) = (%v, %v), want (é, true)", v, ok)
	}
	// Positions are byte offsets, so a two-byte rune advances by two.
	if got := src.Advance(1); got != 3 {
		t.Errorf("Advance(1) = %d, want 3", got)
	}
	if src.AtEnd(5) {
		t.Error("AtEnd(5) = true before the final rune")
	}
	if !src.AtEnd(6) {
		t.Error("AtEnd(6) = false at the end")
	}
}

func TestStringSource_OutOfRange(t *testing.T) {
	src := NewStringSource("ab")
	if _, ok := src.At(2); ok {
		t.Error("At past the end succeeded")
	}
	if _, ok := src.At(-1); ok {
		t.Error("At(-1) succeeded")
	}
	if got := src.Advance(2); got != 2 {
		t.Errorf("Advance at the end moved to %d", got)
	}
}

func TestSliceSource(t *testing.T) {
	type token struct{ kind string }

	src := NewSliceSource(42, "x", token{kind: "op"})
	m := grammar.Seq(grammar.Eq(42), grammar.Eq("x"), grammar.Eq(token{kind: "op"}))
	vals, err := ParseOne(src, m, WithFullInput())
	if err != nil {
		t.Fatal(err)
	}
	want := []any{42, "x", token{kind: "op"}}
	if diff := cmp.Diff(want, vals, cmp.AllowUnexported(token{})); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestSliceSource_PatternMatchesWholeElement(t *testing.T) {
	m := grammar.Re(`[0-9]+`)

	vals, err := ParseOne(NewSliceSource(42), m)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{42}, vals); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}

	// A partial match of the element's string form does not count.
	if _, err := ParseOne(NewSliceSource("42x"), m); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("partial element match accepted: %v", err)
	}
}

func TestReaderSource(t *testing.T) {
	src := NewReaderSource(strings.NewReader("abc"))
	vals, err := ParseOne(src, grammar.Seq(grammar.Eq("a"), grammar.Eq("b"), grammar.Eq("c")), WithFullInput())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{"a", "b", "c"}, vals); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

// failingReader yields its runes and then a read error instead of EOF.
type failingReader struct {
	runes []rune
	err   error
}

func (r *failingReader) ReadRune() (rune, int, error) {
	if len(r.runes) == 0 {
		return 0, 0, r.err
	}
	c := r.runes[0]
	r.runes = r.runes[1:]
	return c, len(string(c)), nil
}

func TestReaderSource_PullsOnDemand(t *testing.T) {
	// A prefix match must never read past what it needs, so the error
	// lurking behind "a" stays untouched.
	src := NewReaderSource(&failingReader{runes: []rune("a"), err: errors.New("boom")})
	vals, err := ParseOne(src, grammar.Eq("a"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{"a"}, vals); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestReaderSource_ErrorIsFatal(t *testing.T) {
	errBoom := errors.New("boom")
	src := NewReaderSource(&failingReader{runes: []rune("a"), err: errBoom})
	_, err := ParseOne(src, grammar.Seq(grammar.Eq("a"), grammar.Eq("b")))
	if !errors.Is(err, errBoom) {
		t.Fatalf("got %v, want wrapped read error", err)
	}
	if errors.Is(err, ErrNoMatch) {
		t.Fatal("read error reported as no-match")
	}
}

func TestReaderSource_EOFIsEnd(t *testing.T) {
	src := NewReaderSource(strings.NewReader("a"))
	if _, err := ParseOne(src, grammar.Seq(grammar.Eq("a"), grammar.End())); err != nil {
		t.Fatal(err)
	}
}
