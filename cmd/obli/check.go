package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chazu/obli/pipeline"
)

func newCheckCmd() *cobra.Command {
	var flags struct {
		input string
		full  bool
	}

	cmd := &cobra.Command{
		Use:   "check [files...]",
		Short: "Validate source files without emitting code",
		Long: `Lex, parse and analyze source files, reporting every error and warning.
With --full the oblivious transform runs too, so branches that cannot be
made constant-time are reported as well.

Examples:
  obli check --input pay.obli
  obli check --full src/*.obli`,
		RunE: func(cmd *cobra.Command, args []string) error {
			files := args
			if flags.input != "" {
				files = append([]string{flags.input}, files...)
			}
			if len(files) == 0 {
				return fmt.Errorf("--input or at least one file is required")
			}

			failed := false
			for _, path := range files {
				src, err := readSource(cmd, path)
				if err != nil {
					return err
				}
				name := displayName(path)
				res, err := pipeline.Check(src, pipeline.Options{Filename: name, Full: flags.full})
				if err != nil {
					diagnose(cmd, name, src, err)
					failed = true
					continue
				}
				printWarnings(cmd, name, res.Warnings)
				if res.Report != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d preserved, %d rewritten)\n", name, res.Report.Preserved, res.Report.Rewritten)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", name)
				}
			}
			if failed {
				return errReported
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.input, "input", "i", "", "source file (- for stdin)")
	cmd.Flags().BoolVar(&flags.full, "full", false, "also run the oblivious transform")
	return cmd
}
