package cli

import (
	"strings"
	"testing"
)

func Test_Repl_Runs_Script_When_Stdin_Not_Terminal(t *testing.T) {
	t.Parallel()

	c := newTableCLI(t)
	c.Stdin = strings.Join([]string{
		"set a 1",
		"set b 2",
		"get a",
		"",
		"len",
		"rm a",
		"get a",
		"bogus",
		"set onlykey",
		"ls",
		"exit",
		"set never reached",
	}, "\n")

	stdout := c.MustRun("repl")

	want := strings.Join([]string{
		"1",
		"2",
		`error: key "a": shmht: not found`,
		`error: unknown command "bogus" (type 'help')`,
		"error: wrong number of arguments: set <key> <value>",
		"b\t2",
		"",
	}, "\n")

	if stdout != want {
		t.Fatalf("repl output mismatch\ngot:\n%s\nwant:\n%s", stdout, want)
	}

	assertContains(t, c.MustRun("ls"), "b\t2")

	if strings.Contains(c.MustRun("dump"), "never") {
		t.Fatal("commands after exit were executed")
	}
}

func Test_Repl_Exits_Cleanly_When_Input_Ends(t *testing.T) {
	t.Parallel()

	c := newTableCLI(t)
	c.Stdin = "help\ninfo"

	stdout := c.MustRun("repl")
	assertContains(t, stdout, "Commands:")
	assertContains(t, stdout, "slots:         53")
}

func Test_Repl_Completes_Command_Names_When_Prefix_Given(t *testing.T) {
	t.Parallel()

	r := &repl{}

	got := r.complete("e")
	if len(got) != 1 || got[0] != "exit" {
		t.Fatalf("complete(e)=%v, want [exit]", got)
	}

	if got := r.complete("s"); len(got) != 1 || got[0] != "set" {
		t.Fatalf("complete(s)=%v, want [set]", got)
	}
}
