package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/dhamidi/gram/grammar"
	"github.com/dhamidi/gram/parse"
)

func newCalcCmd() *cobra.Command {
	var memo bool

	cmd := &cobra.Command{
		Use:   "calc [expression]",
		Short: "Evaluate arithmetic expressions with the combinator engine",
		Long: `Calc builds an arithmetic grammar from the combinators and evaluates
expressions with it. Without an argument it starts an interactive session.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			g := calcGrammar()
			if len(args) == 1 {
				v, err := evalCalc(g, args[0], memo)
				if err != nil {
					return err
				}
				fmt.Println(v)
				return nil
			}
			return runCalcREPL(g, memo)
		},
	}

	cmd.Flags().BoolVar(&memo, "memo", false, "enable the memo cache")

	return cmd
}

// calcGrammar wires the usual precedence ladder: expr -> sum -> product ->
// unary -> primary, with expr as a delayed reference so parentheses can
// recurse.
func calcGrammar() grammar.Matcher {
	expr := grammar.Defer("expr")

	primary := grammar.Alt(
		grammar.Float(),
		grammar.Seq(grammar.Skip(grammar.Eq("(")), expr, grammar.Skip(grammar.Eq(")"))),
	)

	unary := grammar.Alt(
		grammar.Apply(
			grammar.Seq(grammar.Skip(grammar.Eq("-")), primary),
			func(args ...any) (any, error) {
				return -args[0].(float64), nil
			},
		),
		primary,
	)

	product := grammar.Apply(
		grammar.Seq(unary, grammar.Star(grammar.Seq(grammar.Re(`[*/]`), unary))),
		foldBinary,
	)

	sum := grammar.Apply(
		grammar.Seq(product, grammar.Star(grammar.Seq(grammar.Re(`[+-]`), product))),
		foldBinary,
	)

	expr.Resolve(sum)
	return expr
}

// foldBinary reduces [x, op, y, op, z, ...] left to right.
func foldBinary(args ...any) (any, error) {
	acc := args[0].(float64)
	for i := 1; i+1 < len(args); i += 2 {
		op := args[i].(string)
		rhs := args[i+1].(float64)
		switch op {
		case "+":
			acc += rhs
		case "-":
			acc -= rhs
		case "*":
			acc *= rhs
		case "/":
			if rhs == 0 {
				return nil, errors.New("division by zero")
			}
			acc /= rhs
		}
	}
	return acc, nil
}

func evalCalc(g grammar.Matcher, input string, memo bool) (float64, error) {
	opts := []parse.Option{parse.WithSkipSpace(), parse.WithFullInput()}
	if memo {
		opts = append(opts, parse.WithMemo(0))
	}
	vals, err := parse.ParseOne(parse.NewStringSource(input), g, opts...)
	if errors.Is(err, parse.ErrNoMatch) {
		return 0, fmt.Errorf("cannot parse %q", input)
	}
	if err != nil {
		return 0, err
	}
	return vals[0].(float64), nil
}

func runCalcREPL(g grammar.Matcher, memo bool) error {
	prompt := liner.NewLiner()
	defer prompt.Close()
	prompt.SetCtrlCAborts(true)

	histPath := historyPath()
	loadHistory(prompt, histPath)
	defer saveHistory(prompt, histPath)

	for {
		input, err := prompt.Prompt("calc> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read line: %w", err)
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		prompt.AppendHistory(input)

		v, err := evalCalc(g, input, memo)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		fmt.Println(v)
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".gram_history")
}

func loadHistory(prompt *liner.State, path string) {
	if path == "" {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	prompt.ReadHistory(f)
}

func saveHistory(prompt *liner.State, path string) {
	if path == "" {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer f.Close()
	prompt.WriteHistory(f)
}
