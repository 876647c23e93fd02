package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/chazu/obli/compiler"
	"github.com/chazu/obli/manifest"
	"github.com/chazu/obli/pipeline"
)

// errReported marks a failure whose diagnostic has already been written.
var errReported = errors.New("reported")

func newRootCmd() *cobra.Command {
	var verbosity int

	root := &cobra.Command{
		Use:   "obli",
		Short: "Secrecy-aware transpiler",
		Long: `obli compiles small expression programs that mark values with secret(...).
Conditionals whose guard depends on a secret are rewritten into branch-free
constant-time selects; everything else is translated as written.`,
		Version:       pipeline.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Notice and above by default; -v adds info, -vv debug.
			commonlog.Configure(verbosity-1, nil)
		},
	}
	root.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeat for debug)")

	root.AddCommand(
		newTranspileCmd(),
		newRunCmd(),
		newCheckCmd(),
		newFmtCmd(),
		newBuildCmd(),
		newWatchCmd(),
		newAuditCmd(),
		newShowCmd(),
		newReplCmd(),
		newVersionCmd(),
	)
	return root
}

// readSource reads path, or stdin when path is "-".
func readSource(cmd *cobra.Command, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("--input is required")
	}
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func displayName(path string) string {
	if path == "-" {
		return "<stdin>"
	}
	return path
}

// diagnose writes err as a source diagnostic and returns errReported.
func diagnose(cmd *cobra.Command, filename, src string, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), compiler.Diagnose(filename, src, err))
	return errReported
}

func printWarnings(cmd *cobra.Command, filename string, warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", filename, w)
	}
}

// loadProject finds obli.toml starting at dir.
func loadProject(dir string) (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("no %s found in %s or its parents", manifest.FileName, dir)
	}
	return m, nil
}
