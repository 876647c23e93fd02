package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chazu/obli/codegen"
	"github.com/chazu/obli/pipeline"
)

func newTranspileCmd() *cobra.Command {
	var flags struct {
		input      string
		output     string
		target     string
		noValidate bool
	}

	cmd := &cobra.Command{
		Use:   "transpile",
		Short: "Translate one source file",
		Long: `Translate one source file to the target language.

Examples:
  # Rust on stdout
  obli transpile --input pay.obli

  # Go into a file
  obli transpile --input pay.obli --target go --output pay.go

  # Read from stdin
  echo 'secret(1) + 1' | obli transpile --input -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(cmd, flags.input)
			if err != nil {
				return err
			}
			name := displayName(flags.input)
			res, err := pipeline.Transpile(src, pipeline.Options{
				Target:         flags.target,
				Filename:       name,
				SkipValidation: flags.noValidate,
			})
			if err != nil {
				return diagnose(cmd, name, src, err)
			}
			printWarnings(cmd, name, res.Warnings)

			if flags.output == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), res.Code)
				return err
			}
			if dir := filepath.Dir(flags.output); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			return os.WriteFile(flags.output, []byte(res.Code), 0o644)
		},
	}

	cmd.Flags().StringVarP(&flags.input, "input", "i", "", "source file (- for stdin)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&flags.target, "target", "t", pipeline.DefaultTarget, fmt.Sprintf("target language %v", codegen.Targets()))
	cmd.Flags().BoolVar(&flags.noValidate, "no-validate", false, "skip type-checking of generated Go")
	return cmd
}
