package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chazu/obli/pipeline"
	"github.com/chazu/obli/vm"
)

func newRunCmd() *cobra.Command {
	var flags struct {
		expr     string
		input    string
		target   string
		showCode bool
		disasm   bool
	}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Transform and evaluate a program",
		Long: `Transform a program and evaluate it with the bytecode interpreter. Each
top-level expression prints one line.

Examples:
  obli run --expr '1 + 2; secret(3) * 2'
  obli run --input pay.obli --show-code --target go
  obli run --expr 'let s = secret(4); if s > 3 then s else 0' --disasm`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var src, name string
			switch {
			case flags.expr != "" && flags.input != "":
				return fmt.Errorf("--expr and --input are mutually exclusive")
			case flags.expr != "":
				src, name = flags.expr, "<expr>"
			case flags.input == "":
				return fmt.Errorf("one of --expr or --input is required")
			default:
				s, err := readSource(cmd, flags.input)
				if err != nil {
					return err
				}
				src, name = s, displayName(flags.input)
			}

			opts := pipeline.Options{Filename: name}
			if flags.showCode {
				opts.Target = flags.target
			}
			res, err := pipeline.Run(src, opts)
			if err != nil {
				return diagnose(cmd, name, src, err)
			}
			printWarnings(cmd, name, res.Warnings)

			out := cmd.OutOrStdout()
			if flags.showCode {
				fmt.Fprint(out, res.Code)
				fmt.Fprintln(out, "---")
			}
			if flags.disasm {
				chunk, err := vm.Compile(res.Program)
				if err != nil {
					return err
				}
				fmt.Fprint(out, chunk.Disassemble())
				fmt.Fprintln(out, "---")
			}
			for _, v := range res.Outputs {
				fmt.Fprintln(out, v)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.expr, "expr", "e", "", "program text")
	cmd.Flags().StringVarP(&flags.input, "input", "i", "", "source file (- for stdin)")
	cmd.Flags().StringVarP(&flags.target, "target", "t", pipeline.DefaultTarget, "target for --show-code")
	cmd.Flags().BoolVar(&flags.showCode, "show-code", false, "print the generated code before the results")
	cmd.Flags().BoolVar(&flags.disasm, "disasm", false, "print the interpreter bytecode")
	return cmd
}
