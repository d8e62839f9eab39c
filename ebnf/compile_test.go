package ebnf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	xebnf "golang.org/x/exp/ebnf"

	"github.com/dhamidi/gram/parse"
)

const arithGrammar = `
Expr = Term { "+" Term } .
Term = digit | "(" Expr ")" .
digit = "0" … "9" .
`

func mustParseGrammar(t *testing.T, src string) xebnf.Grammar {
	t.Helper()
	g, err := xebnf.Parse("test.ebnf", strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse grammar: %v", err)
	}
	return g
}

func TestCompile(t *testing.T) {
	m, err := Compile(mustParseGrammar(t, arithGrammar), "Expr")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		input string
		want  []any
	}{
		{"1", []any{"1"}},
		{"1+2", []any{"1", "+", "2"}},
		{"1+(2+3)", []any{"1", "+", "(", "2", "+", "3", ")"}},
		{"((9))", []any{"(", "(", "9", ")", ")"}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			vals, err := parse.ParseOne(parse.NewStringSource(tt.input), m, parse.WithFullInput())
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, vals); diff != "" {
				t.Errorf("values mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompile_Rejects(t *testing.T) {
	m, err := Compile(mustParseGrammar(t, arithGrammar), "Expr")
	if err != nil {
		t.Fatal(err)
	}
	for _, input := range []string{"", "+1", "1+", "(1", "x"} {
		t.Run(input, func(t *testing.T) {
			_, err := parse.ParseOne(parse.NewStringSource(input), m, parse.WithFullInput())
			if err == nil {
				t.Errorf("%q matched", input)
			}
		})
	}
}

func TestCompile_MultiCharacterToken(t *testing.T) {
	g := mustParseGrammar(t, `Bool = "true" | "false" .`)
	m, err := Compile(g, "Bool")
	if err != nil {
		t.Fatal(err)
	}
	vals, err := parse.ParseOne(parse.NewStringSource("false"), m, parse.WithFullInput())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{"false"}, vals); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_OptionAndRepetition(t *testing.T) {
	g := mustParseGrammar(t, `List = item { "," item } [ "," ] .
item = "a" … "z" .`)
	m, err := Compile(g, "List")
	if err != nil {
		t.Fatal(err)
	}
	vals, err := parse.ParseOne(parse.NewStringSource("a,b,"), m, parse.WithFullInput())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{"a", ",", "b", ","}, vals); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_UnknownStart(t *testing.T) {
	if _, err := Compile(mustParseGrammar(t, arithGrammar), "Nope"); err == nil {
		t.Fatal("expected an error for an unknown start production")
	}
}

func TestCompile_UndefinedReference(t *testing.T) {
	g := mustParseGrammar(t, `A = B .`)
	_, err := Compile(g, "A")
	if err == nil || !strings.Contains(err.Error(), `"B"`) {
		t.Fatalf("got %v, want an undefined-production error naming B", err)
	}
}

func TestLoadMatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arith.ebnf")
	if err := os.WriteFile(path, []byte(arithGrammar), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadMatcher(path, "Expr")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := parse.ParseOne(parse.NewStringSource("1+2"), m, parse.WithFullInput()); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.ebnf")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
