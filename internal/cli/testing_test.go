package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// CLI runs commands against a temp working directory.
type CLI struct {
	t     *testing.T
	Dir   string
	Env   map[string]string
	Stdin string
}

func NewCLI(t *testing.T) *CLI {
	t.Helper()

	dir := t.TempDir()

	return &CLI{
		t:   t,
		Dir: dir,
		// Keep the user's real global config out of the tests.
		Env: map[string]string{"XDG_CONFIG_HOME": filepath.Join(dir, "xdg")},
	}
}

// Run executes shmht with args and returns stdout, stderr and the exit code.
// "--cwd Dir" is prepended.
func (c *CLI) Run(args ...string) (string, string, int) {
	c.t.Helper()

	var out, errOut bytes.Buffer

	full := append([]string{"shmht", "--cwd", c.Dir}, args...)
	code := Run(context.Background(), strings.NewReader(c.Stdin), &out, &errOut, full, c.Env)

	return out.String(), errOut.String(), code
}

// MustRun fails the test unless the command exits 0, and returns stdout.
func (c *CLI) MustRun(args ...string) string {
	c.t.Helper()

	stdout, stderr, code := c.Run(args...)
	if code != 0 {
		c.t.Fatalf("%v: exit=%d\nstdout:\n%s\nstderr:\n%s", args, code, stdout, stderr)
	}

	return stdout
}

// MustFail fails the test unless the command exits non-zero, and returns stderr.
func (c *CLI) MustFail(args ...string) string {
	c.t.Helper()

	stdout, stderr, code := c.Run(args...)
	if code == 0 {
		c.t.Fatalf("%v: expected failure\nstdout:\n%s", args, stdout)
	}

	return stderr
}

func (c *CLI) WriteFile(name, content string) string {
	c.t.Helper()

	path := filepath.Join(c.Dir, name)

	err := os.WriteFile(path, []byte(content), 0o600)
	if err != nil {
		c.t.Fatal(err)
	}

	return path
}

func (c *CLI) ReadFile(name string) string {
	c.t.Helper()

	data, err := os.ReadFile(filepath.Join(c.Dir, name))
	if err != nil {
		c.t.Fatal(err)
	}

	return string(data)
}

func assertContains(t *testing.T, got, want string) {
	t.Helper()

	if !strings.Contains(got, want) {
		t.Errorf("output does not contain %q:\n%s", want, got)
	}
}
