package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dhamidi/gram/grammar"
	"github.com/dhamidi/gram/parse"
)

func newMatchCmd() *cobra.Command {
	var all bool
	var memo bool
	var foldCase bool
	var skipSpace bool
	var fullInput bool
	var debug bool

	cmd := &cobra.Command{
		Use:   "match <grammar> [input]",
		Short: "Match input against a builtin example grammar",
		Long: `Match parses input (an argument or stdin) with one of the builtin
example grammars and prints the matched values as JSON.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := builtinGrammar(args[0])
			if err != nil {
				return err
			}

			var input string
			if len(args) == 2 {
				input = args[1]
			} else {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				input = string(data)
			}

			var opts []parse.Option
			if memo {
				opts = append(opts, parse.WithMemo(0))
			}
			if foldCase {
				opts = append(opts, parse.WithFoldCase())
			}
			if skipSpace {
				opts = append(opts, parse.WithSkipSpace())
			}
			if fullInput {
				opts = append(opts, parse.WithFullInput())
			}
			if debug {
				opts = append(opts, parse.WithDebug())
			}

			enc := json.NewEncoder(os.Stdout)
			src := parse.NewStringSource(input)

			if all {
				results := parse.ParseAll(src, m, opts...)
				for {
					vals, ok := results.Next()
					if !ok {
						break
					}
					if err := enc.Encode(vals); err != nil {
						return fmt.Errorf("encode: %w", err)
					}
				}
				if err := results.Err(); err != nil {
					return fmt.Errorf("parse: %w", err)
				}
				return nil
			}

			vals, err := parse.ParseOne(src, m, opts...)
			if errors.Is(err, parse.ErrNoMatch) {
				return fmt.Errorf("%s does not match %q", args[0], input)
			}
			if err != nil {
				return fmt.Errorf("parse: %w", err)
			}
			return enc.Encode(vals)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "print every alternative, not just the first")
	cmd.Flags().BoolVar(&memo, "memo", false, "enable the memo cache")
	cmd.Flags().BoolVar(&foldCase, "fold-case", false, "compare literals case-insensitively")
	cmd.Flags().BoolVar(&skipSpace, "skip-space", false, "elide whitespace between tokens")
	cmd.Flags().BoolVar(&fullInput, "full", false, "require the match to cover the whole input")
	cmd.Flags().BoolVar(&debug, "debug", false, "trace engine dispatches")

	return cmd
}

func builtinGrammar(name string) (grammar.Matcher, error) {
	switch name {
	case "ident":
		return grammar.Ident(), nil
	case "int":
		return grammar.Int(), nil
	case "float":
		return grammar.Float(), nil
	case "string":
		return grammar.Quoted(), nil
	case "csv":
		return csvLine(), nil
	}
	// /expr/ builds a single pattern leaf.
	if len(name) >= 2 && strings.HasPrefix(name, "/") && strings.HasSuffix(name, "/") {
		expr := name[1 : len(name)-1]
		if _, err := regexp.Compile(expr); err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", name, err)
		}
		return grammar.Re(expr), nil
	}
	return nil, fmt.Errorf("unknown grammar %q (have ident, int, float, string, csv, /regexp/)", name)
}

// csvLine matches one comma-separated line of quoted or bare fields.
func csvLine() grammar.Matcher {
	field := grammar.Alt(grammar.Quoted(), grammar.Re(`[^,\r\n]*`))
	rest := grammar.Seq(grammar.Skip(grammar.Eq(",")), field)
	return grammar.Seq(field, grammar.Star(rest))
}
