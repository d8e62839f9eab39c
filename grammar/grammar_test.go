package grammar

import (
	"strings"
	"testing"
)

func TestBuilders(t *testing.T) {
	tests := []struct {
		name  string
		m     Matcher
		check func(t *testing.T, m Matcher)
	}{
		{
			name: "Seq flattens by default",
			m:    Seq(Eq("a"), Eq("b")),
			check: func(t *testing.T, m Matcher) {
				seq := m.(*Sequence)
				if !seq.Flatten {
					t.Error("Seq should flatten")
				}
				if len(seq.Children) != 2 {
					t.Errorf("got %d children, want 2", len(seq.Children))
				}
			},
		},
		{
			name: "Group keeps nesting",
			m:    Group(Eq("a")),
			check: func(t *testing.T, m Matcher) {
				if m.(*Sequence).Flatten {
					t.Error("Group should not flatten")
				}
			},
		},
		{
			name: "Star is zero or more",
			m:    Star(Eq("a")),
			check: func(t *testing.T, m Matcher) {
				rep := m.(*Repeat)
				if rep.Min != 0 || rep.Max != Unbounded || !rep.Greedy {
					t.Errorf("got min=%d max=%d greedy=%v", rep.Min, rep.Max, rep.Greedy)
				}
			},
		},
		{
			name: "Plus is one or more",
			m:    Plus(Eq("a")),
			check: func(t *testing.T, m Matcher) {
				rep := m.(*Repeat)
				if rep.Min != 1 || rep.Max != Unbounded {
					t.Errorf("got min=%d max=%d", rep.Min, rep.Max)
				}
			},
		},
		{
			name: "Opt is zero or one",
			m:    Opt(Eq("a")),
			check: func(t *testing.T, m Matcher) {
				rep := m.(*Repeat)
				if rep.Min != 0 || rep.Max != 1 {
					t.Errorf("got min=%d max=%d", rep.Min, rep.Max)
				}
			},
		},
		{
			name: "Lazy flips greediness without mutating",
			m:    Star(Eq("a")),
			check: func(t *testing.T, m Matcher) {
				rep := m.(*Repeat)
				lazy := Lazy(rep)
				if lazy.Greedy {
					t.Error("Lazy copy should not be greedy")
				}
				if !rep.Greedy {
					t.Error("original must stay greedy")
				}
			},
		},
		{
			name: "Apply spreads arguments",
			m:    Apply(Eq("a"), func(args ...any) (any, error) { return nil, nil }),
			check: func(t *testing.T, m Matcher) {
				if !m.(*Transform).Spread {
					t.Error("Apply should spread")
				}
			},
		},
		{
			name: "MapEffect marks the transform effectful",
			m:    MapEffect(Eq("a"), func(args ...any) (any, error) { return nil, nil }),
			check: func(t *testing.T, m Matcher) {
				if !m.(*Transform).Effectful {
					t.Error("MapEffect should be effectful")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, tt.m)
		})
	}
}

func TestRe_Anchored(t *testing.T) {
	p := Re(`[0-9]+`)
	if loc := p.Regexp.FindStringIndex("ab12"); loc != nil {
		t.Errorf("anchored pattern matched mid-string at %v", loc)
	}
	if loc := p.Regexp.FindStringIndex("12ab"); loc == nil || loc[0] != 0 || loc[1] != 2 {
		t.Errorf("got %v, want [0 2]", loc)
	}
}

func TestRe_BadExpressionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for invalid expression")
		}
	}()
	Re(`[`)
}

func TestRunes(t *testing.T) {
	p := Runes("ab-]")
	for _, c := range []string{"a", "b", "-", "]"} {
		if loc := p.Regexp.FindStringIndex(c); loc == nil {
			t.Errorf("set did not match %q", c)
		}
	}
	if loc := p.Regexp.FindStringIndex("c"); loc != nil {
		t.Error("set matched a rune outside it")
	}
}

func TestDelayed_Resolve(t *testing.T) {
	d := Defer("expr")
	if d.Target() != nil {
		t.Error("fresh Delayed should have no target")
	}
	if got := d.String(); got != "<expr>" {
		t.Errorf("String() = %q", got)
	}

	d.Resolve(Eq("a"))
	if d.Target() == nil {
		t.Error("target not set")
	}

	defer func() {
		if recover() == nil {
			t.Error("second Resolve should panic")
		}
	}()
	d.Resolve(Eq("b"))
}

func TestDelayed_ResolveNilPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Resolve(nil) should panic")
		}
	}()
	Defer("x").Resolve(nil)
}

func TestHasEffects(t *testing.T) {
	pure := func(args ...any) (any, error) { return nil, nil }

	plain := Seq(Eq("a"), Map(Eq("b"), pure))
	if HasEffects(plain) {
		t.Error("pure tree reported effectful")
	}

	effectful := Alt(Eq("a"), Star(MapEffect(Eq("b"), pure)))
	if !HasEffects(effectful) {
		t.Error("effectful tree reported pure")
	}
}

func TestHasEffects_Cycle(t *testing.T) {
	pure := func(args ...any) (any, error) { return nil, nil }

	expr := Defer("expr")
	expr.Resolve(Alt(Seq(Eq("("), expr, Eq(")")), MapEffect(Eq("x"), pure)))
	if !HasEffects(expr) {
		t.Error("effect behind a cycle not found")
	}

	loop := Defer("loop")
	loop.Resolve(Alt(Seq(Eq("("), loop, Eq(")")), Eq("x")))
	if HasEffects(loop) {
		t.Error("pure cycle reported effectful")
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		m    Matcher
		want string
	}{
		{Eq("a"), `"a"`},
		{Eq(42), "42"},
		{One(), "."},
		{Re(`[0-9]`), "/[0-9]/"},
		{Seq(Eq("a"), Eq("b")), `("a" "b")`},
		{Alt(Eq("a"), Eq("b")), `("a" | "b")`},
		{Star(Eq("a")), `"a"{0,∞}`},
		{Lazy(Times(Eq("a"), 1, 3)), `"a"{1,3}?`},
		{Skip(Eq("a")), `skip("a")`},
		{Peek(Eq("a")), `&("a")`},
		{Reject(Eq("a")), `!("a")`},
		{End(), "$"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.m.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLit(t *testing.T) {
	if _, ok := Lit("a").(*Equal); !ok {
		t.Error("single-rune Lit should be an Equal")
	}
	m, ok := Lit("abc").(*Transform)
	if !ok {
		t.Fatalf("multi-rune Lit should be a Transform, got %T", Lit("abc"))
	}
	seq, ok := m.Child.(*Sequence)
	if !ok || len(seq.Children) != 3 {
		t.Fatalf("Lit child should be a 3-element Sequence, got %v", m.Child)
	}
	v, err := m.Func([]any{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if v != "abc" {
		t.Errorf("join produced %v, want abc", v)
	}
}

func TestLit_Unicode(t *testing.T) {
	m := Lit("héllo").(*Transform)
	seq := m.Child.(*Sequence)
	if len(seq.Children) != 5 {
		t.Errorf("got %d children, want 5 (one per rune)", len(seq.Children))
	}
	if !strings.Contains(seq.Children[1].String(), "é") {
		t.Errorf("second child is %s, want é", seq.Children[1])
	}
}
