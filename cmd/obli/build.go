package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chazu/obli/build"
	"github.com/chazu/obli/manifest"
	"github.com/chazu/obli/store"
)

type buildFlags struct {
	dir    string
	jobs   int
	target string
}

func (f *buildFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.dir, "dir", "C", ".", "project directory (obli.toml is searched upward)")
	cmd.Flags().IntVarP(&f.jobs, "jobs", "j", 0, "parallel jobs (default from obli.toml, then one per CPU)")
	cmd.Flags().StringVarP(&f.target, "target", "t", "", "override build.target")
}

func (f *buildFlags) load() (*manifest.Manifest, error) {
	m, err := loadProject(f.dir)
	if err != nil {
		return nil, err
	}
	if f.target != "" {
		m.Build.Target = f.target
	}
	return m, nil
}

func newBuildCmd() *cobra.Command {
	var flags buildFlags
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Transpile every source file of the project",
		Long: `Transpile every source file listed by obli.toml into the output directory.
Files are independent and build in parallel. When build.record is on
(the default) each result is recorded in .obli/artifacts.db.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := flags.load()
			if err != nil {
				return err
			}
			return runBuild(cmd, m, flags.jobs)
		},
	}
	flags.register(cmd)
	return cmd
}

func newWatchCmd() *cobra.Command {
	var flags buildFlags
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Build, then rebuild whenever a source file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := flags.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rebuild := func() error {
				err := runBuild(cmd, m, flags.jobs)
				if errors.Is(err, errReported) {
					return nil
				}
				return err
			}
			if err := rebuild(); err != nil {
				return err
			}

			w, err := build.NewWatcher(m, debounce)
			if err != nil {
				return err
			}
			return w.Watch(ctx, rebuild)
		},
	}
	flags.register(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", build.DefaultDebounce, "quiet period before a rebuild")
	return cmd
}

// runBuild builds the project once and prints one line per file.
func runBuild(cmd *cobra.Command, m *manifest.Manifest, jobs int) error {
	b := &build.Builder{Manifest: m, Jobs: jobs}
	if m.Recording() {
		st, err := store.Open(m.StatePath())
		if err != nil {
			return err
		}
		defer st.Close()
		b.Store = st
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	summary, err := b.Build(ctx)
	if summary == nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, f := range summary.Files {
		if f.Err != nil {
			diagnose(cmd, f.Source, f.Text, f.Err)
			continue
		}
		printWarnings(cmd, f.Source, f.Warnings)
		fmt.Fprintf(out, "%s: %d preserved, %d rewritten\n", f.Source, f.Preserved, f.Rewritten)
	}
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "obli: %v\n", err)
		return errReported
	}
	fmt.Fprintf(out, "built %d files for %s into %s\n", len(summary.Files), summary.Target, m.Build.Output)
	return nil
}
