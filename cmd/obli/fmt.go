package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/chazu/obli/compiler"
	"github.com/chazu/obli/manifest"
)

func newFmtCmd() *cobra.Command {
	var flags struct {
		write bool
		check bool
	}

	cmd := &cobra.Command{
		Use:   "fmt [files or directories...]",
		Short: "Format source files canonically",
		Long: `Reformat source files. Without flags the formatted text goes to stdout.

If no paths are given, every source file under the current directory is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.write && flags.check {
				return fmt.Errorf("--write and --check are mutually exclusive")
			}
			if len(args) == 0 {
				args = []string{"."}
			}
			files, err := collectSourceFiles(args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			anyChanged, failed := false, false
			for _, path := range files {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				original := string(data)
				formatted, err := compiler.Format(original)
				if err != nil {
					diagnose(cmd, path, original, err)
					failed = true
					continue
				}

				switch {
				case flags.check:
					if formatted != original {
						fmt.Fprintf(out, "would format: %s\n", path)
						anyChanged = true
					}
				case flags.write:
					if formatted == original {
						continue
					}
					if err := os.WriteFile(path, []byte(formatted), 0o644); err != nil {
						return err
					}
					fmt.Fprintf(out, "formatted: %s\n", path)
				default:
					fmt.Fprint(out, formatted)
				}
			}
			if failed || (flags.check && anyChanged) {
				return errReported
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&flags.write, "write", "w", false, "rewrite files in place")
	cmd.Flags().BoolVar(&flags.check, "check", false, "list files that need formatting and fail if any do")
	return cmd
}

// collectSourceFiles resolves paths to a sorted list of source files.
// Directories are walked; files named explicitly must have the source
// extension.
func collectSourceFiles(paths []string) ([]string, error) {
	var result []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("cannot access %q: %w", p, err)
		}
		if !info.IsDir() {
			if filepath.Ext(p) != manifest.SourceExt {
				return nil, fmt.Errorf("%q is not a %s file", p, manifest.SourceExt)
			}
			result = append(result, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(path) == manifest.SourceExt {
				result = append(result, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(result)
	return result, nil
}
