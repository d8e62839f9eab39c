package grammar

import (
	"fmt"
	"strconv"
	"strings"
)

// Leaf providers for common text lexemes. These are ordinary matchers built
// from the node variants; nothing here is known to the engine.

// Digit matches one decimal digit.
func Digit() *Pattern {
	return Re(`[0-9]`)
}

// Runes matches one rune drawn from set.
func Runes(set string) *Pattern {
	var b strings.Builder
	b.WriteByte('[')
	for _, r := range set {
		switch r {
		case '\\', ']', '[', '^', '-':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte(']')
	return Re(b.String())
}

// Ident matches an identifier in the usual letter-then-alphanumeric shape.
func Ident() *Pattern {
	return Re(`[A-Za-z_][A-Za-z0-9_]*`)
}

// Spaces matches and discards a run of whitespace.
func Spaces() *Drop {
	return Skip(Re(`[ \t\r\n]+`))
}

// Int matches an optionally signed decimal integer and yields it as an int.
func Int() Matcher {
	return Apply(Re(`-?[0-9]+`), func(args ...any) (any, error) {
		text := fmt.Sprint(args[0])
		n, err := strconv.Atoi(text)
		if err != nil {
			return nil, fmt.Errorf("int literal %q: %w", text, err)
		}
		return n, nil
	})
}

// Float matches a decimal floating point literal and yields it as a
// float64.
func Float() Matcher {
	return Apply(Re(`-?[0-9]+(?:\.[0-9]+)?(?:[eE][+-]?[0-9]+)?`), func(args ...any) (any, error) {
		text := fmt.Sprint(args[0])
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("float literal %q: %w", text, err)
		}
		return f, nil
	})
}

// Quoted matches a double-quoted string with backslash escapes and yields
// the unquoted value.
func Quoted() Matcher {
	return Apply(Re(`"(?:[^"\\]|\\.)*"`), func(args ...any) (any, error) {
		text := fmt.Sprint(args[0])
		s, err := strconv.Unquote(text)
		if err != nil {
			return nil, fmt.Errorf("string literal %s: %w", text, err)
		}
		return s, nil
	})
}
