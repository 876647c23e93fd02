package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/obli/codegen"
	"github.com/chazu/obli/compiler"
	"github.com/chazu/obli/pipeline"
)

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive session",
		Long: `Read programs line by line and print their results. Declarations persist
for the rest of the session. End a line with \ to continue it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := &repl{out: cmd.OutOrStdout()}
			return r.loop(cmd.InOrStdin())
		},
	}
}

// repl keeps the declarations entered so far and replays them in front of
// every new input.
type repl struct {
	out     io.Writer
	history []string
	target  string // when set, generated code is printed for each input
}

func (r *repl) loop(in io.Reader) error {
	fmt.Fprintf(r.out, "obli %s (type 'exit' to quit, ':help' for commands)\n", pipeline.Version)

	scanner := bufio.NewScanner(in)
	var buf strings.Builder
	for {
		if buf.Len() == 0 {
			fmt.Fprint(r.out, ">> ")
		} else {
			fmt.Fprint(r.out, ".. ")
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()

		if buf.Len() == 0 {
			trimmed := strings.TrimSpace(line)
			if trimmed == "exit" || trimmed == "quit" {
				break
			}
			if strings.HasPrefix(trimmed, ":") {
				r.command(trimmed)
				continue
			}
		}

		if strings.HasSuffix(line, `\`) {
			buf.WriteString(strings.TrimSuffix(line, `\`))
			buf.WriteString("\n")
			continue
		}
		buf.WriteString(line)
		input := strings.TrimSpace(buf.String())
		buf.Reset()
		if input != "" {
			r.eval(input)
		}
	}
	fmt.Fprintln(r.out)
	return scanner.Err()
}

func (r *repl) command(cmd string) {
	fields := strings.Fields(cmd)
	switch fields[0] {
	case ":help", ":h", ":?":
		fmt.Fprintln(r.out, "REPL Commands:")
		fmt.Fprintln(r.out, "  :help, :h, :?     Show this help")
		fmt.Fprintln(r.out, "  :history          Show the declarations in scope")
		fmt.Fprintln(r.out, "  :clear            Forget all declarations")
		fmt.Fprintln(r.out, "  :code [target]    Print generated code for each input (no target turns it off)")
		fmt.Fprintln(r.out, "  :type <expr>      Show the label, type and lowering of an expression")
		fmt.Fprintln(r.out, "  exit, quit        Exit REPL")
	case ":history":
		for _, h := range r.history {
			fmt.Fprintln(r.out, h)
		}
	case ":clear":
		r.history = nil
		fmt.Fprintln(r.out, "cleared")
	case ":code":
		if len(fields) == 1 {
			r.target = ""
			fmt.Fprintln(r.out, "code display off")
			return
		}
		if _, err := codegen.Lookup(fields[1]); err != nil {
			fmt.Fprintln(r.out, err)
			return
		}
		r.target = fields[1]
		fmt.Fprintf(r.out, "showing %s code\n", r.target)
	case ":type", ":t":
		expr := strings.TrimSpace(strings.TrimPrefix(cmd, fields[0]))
		if expr == "" {
			fmt.Fprintln(r.out, "usage: :type <expr>")
			return
		}
		ex, err := pipeline.Explain(strings.Join(r.history, "\n"), expr)
		if err != nil {
			fmt.Fprintf(r.out, "%s: %v\n", compiler.ErrorKind(err), err)
			return
		}
		fmt.Fprintf(r.out, "%s : %s %s\n", ex.Lowered, ex.Label, ex.Type)
	default:
		fmt.Fprintf(r.out, "Unknown command: %s (type :help for commands)\n", cmd)
	}
}

func (r *repl) eval(input string) {
	src := strings.Join(append(append([]string{}, r.history...), input), "\n")
	res, err := pipeline.Run(src, pipeline.Options{Target: r.target, Filename: "<repl>"})
	if err != nil {
		fmt.Fprintf(r.out, "%s: %v\n", compiler.ErrorKind(err), err)
		return
	}
	if r.target != "" {
		fmt.Fprint(r.out, res.Code)
	}
	for _, v := range res.Outputs {
		fmt.Fprintln(r.out, v)
	}

	if prog, err := compiler.Parse(input); err == nil && len(prog.Outputs()) == 0 {
		if !strings.HasSuffix(input, ";") {
			input += ";"
		}
		r.history = append(r.history, input)
	}
}
