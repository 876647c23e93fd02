package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/chazu/obli/codegen"
	"github.com/chazu/obli/compiler/hash"
	"github.com/chazu/obli/pipeline"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "obli %s\n", pipeline.Version)
			fmt.Fprintf(out, "Targets: %v\n", codegen.Targets())
			fmt.Fprintf(out, "Hash Version: %d\n", hash.HashVersion)
			fmt.Fprintf(out, "Go Version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
