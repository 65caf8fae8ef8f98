package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	flag "github.com/spf13/pflag"
)

// Run is the main entry point. args[0] is the program name. Returns the
// exit code.
func Run(ctx context.Context, stdin io.Reader, out, errOut io.Writer, args []string, env map[string]string) int {
	globals := flag.NewFlagSet("shmht", flag.ContinueOnError)
	globals.SetInterspersed(false)
	globals.SetOutput(io.Discard)

	var in LoadConfigInput

	globals.StringVarP(&in.WorkDir, "cwd", "C", "", "Run as if started in `dir`")
	globals.StringVarP(&in.ConfigPath, "config", "c", "", "Use config `file`")
	globals.StringVarP(&in.PathOverride, "file", "f", "", "Table `file` (overrides config path)")

	var rest []string
	if len(args) > 1 {
		rest = args[1:]
	}

	err := globals.Parse(rest)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(out, globals)

			return 0
		}

		fprintln(errOut, "error:", err)
		printUsage(errOut, globals)

		return 1
	}

	rest = globals.Args()
	if len(rest) == 0 {
		printUsage(out, globals)

		return 0
	}

	in.Env = env

	cfg, err := LoadConfig(in)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	commands := allCommands(&cfg, stdin)

	name := rest[0]
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd.Run(ctx, NewIO(out, errOut), rest[1:])
		}
	}

	fprintln(errOut, "error: unknown command:", name)
	printUsage(errOut, globals)

	return 1
}

func allCommands(cfg *Config, stdin io.Reader) []*Command {
	return []*Command{
		newCmd(cfg),
		infoCmd(cfg),
		getCmd(cfg),
		setCmd(cfg),
		rmCmd(cfg),
		lsCmd(cfg),
		dumpCmd(cfg),
		loadCmd(cfg),
		replCmd(cfg, stdin),
		printConfigCmd(cfg),
	}
}

func printUsage(w io.Writer, globals *flag.FlagSet) {
	fprintln(w, "Usage: shmht [flags] <command> [args]")
	fprintln(w)
	fprintln(w, "A fixed-capacity hash table stored in a memory-mapped file.")
	fprintln(w)
	fprintln(w, "Flags:")
	fprint(w, globals.FlagUsages())
	fprintln(w)
	fprintln(w, "Commands:")

	for _, cmd := range allCommands(&Config{}, nil) {
		fprintln(w, cmd.HelpLine())
	}

	fprintln(w)
	fprintln(w, "Run 'shmht <command> --help' for command flags.")
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func fprint(w io.Writer, s string) {
	_, _ = io.WriteString(w, strings.TrimRight(s, "\n")+"\n")
}
