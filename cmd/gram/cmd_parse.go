package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dhamidi/gram/ebnf"
	"github.com/dhamidi/gram/parse"
)

func newParseCmd() *cobra.Command {
	var all bool
	var memo bool
	var skipSpace bool
	var prefix bool

	cmd := &cobra.Command{
		Use:   "parse <grammar.ebnf> <start> [input]",
		Short: "Parse input with a grammar loaded from an EBNF file",
		Long: `Parse compiles the EBNF grammar file into a matcher rooted at the start
production and matches input (an argument or stdin) against it, printing
the matched values as JSON.`,
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := ebnf.LoadMatcher(args[0], args[1])
			if err != nil {
				return err
			}

			var input string
			if len(args) == 3 {
				input = args[2]
			} else {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				input = string(data)
			}

			opts := []parse.Option{}
			if !prefix {
				opts = append(opts, parse.WithFullInput())
			}
			if memo {
				opts = append(opts, parse.WithMemo(0))
			}
			if skipSpace {
				opts = append(opts, parse.WithSkipSpace())
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
				return fmt.Errorf("%s does not match %q", args[1], input)
			}
			if err != nil {
				return fmt.Errorf("parse: %w", err)
			}
			return enc.Encode(vals)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "print every alternative, not just the first")
	cmd.Flags().BoolVar(&memo, "memo", false, "enable the memo cache")
	cmd.Flags().BoolVar(&skipSpace, "skip-space", false, "elide whitespace between tokens")
	cmd.Flags().BoolVar(&prefix, "prefix", false, "accept matches covering only a prefix of the input")

	return cmd
}
