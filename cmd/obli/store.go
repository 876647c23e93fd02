package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/chazu/obli/store"
)

func openProjectStore(dir string) (*store.Store, error) {
	m, err := loadProject(dir)
	if err != nil {
		return nil, err
	}
	return store.Open(m.StatePath())
}

func newAuditCmd() *cobra.Command {
	var dir string
	var decisions bool
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List recorded build artifacts",
		Long: `List the artifacts recorded by obli build, one per line, with how many
conditionals were kept as branches and how many became selects.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openProjectStore(dir)
			if err != nil {
				return err
			}
			defer st.Close()

			artifacts, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tSOURCE\tTARGET\tPRESERVED\tREWRITTEN")
			for _, a := range artifacts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", shortKey(a.Key), a.Path, a.Target, a.Preserved, a.Rewritten)
				if decisions {
					for _, d := range a.Decisions {
						fmt.Fprintf(tw, "\t  %d:%d-%d:%d\t%s\t\t\n", d.Line, d.Column, d.EndLine, d.EndColumn, d.Mode)
					}
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "C", ".", "project directory")
	cmd.Flags().BoolVar(&decisions, "decisions", false, "list every conditional's outcome")
	return cmd
}

func newShowCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "show <key>",
		Short: "Print a recorded artifact",
		Long:  `Print a recorded artifact and its generated code. A unique key prefix is enough.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openProjectStore(dir)
			if err != nil {
				return err
			}
			defer st.Close()

			a, err := st.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "key:       %s\n", a.Key)
			fmt.Fprintf(out, "source:    %s\n", a.Path)
			fmt.Fprintf(out, "target:    %s\n", a.Target)
			fmt.Fprintf(out, "obli:      %s\n", a.Version)
			fmt.Fprintf(out, "structure: %s\n", a.Structure)
			fmt.Fprintf(out, "built:     %s\n", time.Unix(a.CreatedAt, 0).UTC().Format(time.RFC3339))
			fmt.Fprintf(out, "branches:  %d preserved, %d rewritten\n", a.Preserved, a.Rewritten)
			for _, w := range a.Warnings {
				fmt.Fprintf(out, "%s\n", w)
			}
			fmt.Fprintln(out)
			fmt.Fprint(out, a.Code)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "C", ".", "project directory")
	return cmd
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
