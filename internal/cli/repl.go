package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/sys/unix"

	"github.com/calvinalkan/shmht/pkg/mmfile"
	"github.com/calvinalkan/shmht/pkg/shmht"
)

// prompter reads REPL input lines. *liner.State implements it.
type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// scanPrompter reads lines from a non-terminal input, without echo or history.
type scanPrompter struct {
	scanner *bufio.Scanner
}

func (p *scanPrompter) Prompt(string) (string, error) {
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}

		return "", io.EOF
	}

	return p.scanner.Text(), nil
}

func (p *scanPrompter) AppendHistory(string) {}

func (p *scanPrompter) Close() error { return nil }

var replCommands = []string{"get", "set", "rm", "ls", "len", "info", "help", "exit", "quit"}

func replCmd(cfg *Config, stdin io.Reader) *Command {
	flags := newFlagSet("repl")
	asHex := flags.Bool("hex", false, "Keys and values are hex")

	return &Command{
		Flags: flags,
		Usage: "repl [flags]",
		Short: "Interactive shell on the table",
		Exec: func(ctx context.Context, o *IO, args []string) (err error) {
			if len(args) != 0 {
				return fmt.Errorf("%w: repl takes no arguments", ErrArgs)
			}

			f, err := openTable(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeTable(f, &err)

			r := &repl{file: f, path: cfg.PathAbs, hex: *asHex, o: o}

			return r.run(ctx, newPrompter(stdin, r.complete))
		},
	}
}

// newPrompter uses liner when stdin is the controlling terminal.
func newPrompter(stdin io.Reader, complete liner.Completer) prompter {
	file, ok := stdin.(*os.File)
	if ok && file == os.Stdin && isTerminal(file) {
		state := liner.NewLiner()
		state.SetCtrlCAborts(true)
		state.SetCompleter(complete)

		if h, err := os.Open(historyFile()); err == nil {
			_, _ = state.ReadHistory(h)
			_ = h.Close()
		}

		return &historyLiner{State: state}
	}

	if stdin == nil {
		stdin = strings.NewReader("")
	}

	return &scanPrompter{scanner: bufio.NewScanner(stdin)}
}

func isTerminal(f *os.File) bool {
	_, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)

	return err == nil
}

// historyLiner saves history on Close.
type historyLiner struct {
	*liner.State
}

func (l *historyLiner) Close() error {
	if path := historyFile(); path != "" {
		if h, err := os.Create(path); err == nil {
			_, _ = l.WriteHistory(h)
			_ = h.Close()
		}
	}

	return l.State.Close()
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".shmht_history")
}

type repl struct {
	file *mmfile.File
	path string
	hex  bool
	o    *IO
}

func (r *repl) run(ctx context.Context, p prompter) (err error) {
	defer func() { err = errors.Join(err, p.Close()) }()

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := p.Prompt("shmht> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("read input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		p.AppendHistory(line)

		fields := strings.Fields(line)
		cmd, args := strings.ToLower(fields[0]), fields[1:]

		if cmd == "exit" || cmd == "quit" {
			return nil
		}

		err = r.exec(ctx, cmd, args)
		if err != nil {
			r.o.Println("error:", err)
		}
	}
}

func (r *repl) exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		r.printHelp()

		return nil
	case "get":
		return r.withKey(ctx, "get <key>", 1, args, func(t *shmht.Table, kv [][]byte) error {
			value, err := t.Get(kv[0])
			if err != nil {
				return err
			}

			r.o.Println(formatBytes(value, r.hex))

			return nil
		})
	case "set":
		return r.withKey(ctx, "set <key> <value>", 2, args, func(t *shmht.Table, kv [][]byte) error {
			return t.Set(kv[0], kv[1])
		})
	case "rm":
		return r.withKey(ctx, "rm <key>", 1, args, func(t *shmht.Table, kv [][]byte) error {
			return t.Remove(kv[0])
		})
	case "ls":
		return rlocked(ctx, r.file, func(t *shmht.Table) error {
			printEntries(r.o, t, 0, r.hex)

			return nil
		})
	case "len":
		return rlocked(ctx, r.file, func(t *shmht.Table) error {
			r.o.Println(t.Len())

			return nil
		})
	case "info":
		return rlocked(ctx, r.file, func(t *shmht.Table) error {
			info, err := t.Info()
			if err != nil {
				return err
			}

			printInfo(r.o, r.path, info)

			return nil
		})
	default:
		return fmt.Errorf("unknown command %q (type 'help')", cmd)
	}
}

// withKey parses n key/value arguments and runs fn under the exclusive lock.
func (r *repl) withKey(ctx context.Context, usage string, n int, args []string, fn func(*shmht.Table, [][]byte) error) error {
	if len(args) != n {
		return fmt.Errorf("%w: %s", ErrArgs, usage)
	}

	kv := make([][]byte, n)

	for i, a := range args {
		b, err := parseBytes(a, r.hex)
		if err != nil {
			return err
		}

		kv[i] = b
	}

	return locked(ctx, r.file, func(t *shmht.Table) error {
		err := fn(t, kv)
		if err != nil {
			return keyError(args[0], err)
		}

		return nil
	})
}

func (r *repl) complete(line string) []string {
	var out []string

	lower := strings.ToLower(line)
	for _, c := range replCommands {
		if strings.HasPrefix(c, lower) {
			out = append(out, c)
		}
	}

	return out
}

func (r *repl) printHelp() {
	r.o.Println("Commands:")
	r.o.Println("  get <key>          Print the value of key")
	r.o.Println("  set <key> <value>  Store value under key")
	r.o.Println("  rm <key>           Remove key")
	r.o.Println("  ls                 List entries")
	r.o.Println("  len                Number of entries")
	r.o.Println("  info               Table header")
	r.o.Println("  help               Show this help")
	r.o.Println("  exit / quit        Leave the shell")
}
