package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/shmht/pkg/mmfile"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func Test_LoadConfig_Returns_Defaults_When_No_Files_Exist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := LoadConfig(LoadConfigInput{WorkDir: dir, Env: map[string]string{}})
	require.NoError(t, err)

	want := Config{
		Path:        DefaultPath,
		Capacity:    DefaultCapacity,
		LockTimeout: mmfile.DefaultLockTimeout,
		WorkDir:     dir,
		PathAbs:     filepath.Join(dir, DefaultPath),
	}

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func Test_LoadConfig_Applies_Precedence_When_All_Sources_Set(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	xdg := filepath.Join(dir, "xdg")

	writeConfig(t, filepath.Join(xdg, "shmht", "config.json"), `{
		// global
		"path": "global.shmht",
		"capacity": 10,
		"lock_timeout": "1s",
	}`)
	writeConfig(t, filepath.Join(dir, ConfigFileName), `{"capacity": 20}`)

	cfg, err := LoadConfig(LoadConfigInput{
		WorkDir: dir,
		Env:     map[string]string{"XDG_CONFIG_HOME": xdg},
	})
	require.NoError(t, err)

	want := Config{
		Path:        "global.shmht",
		Capacity:    20,
		LockTimeout: time.Second,
		PathAbs:     filepath.Join(dir, "global.shmht"),
		Sources: ConfigSources{
			Global:  filepath.Join(xdg, "shmht", "config.json"),
			Project: filepath.Join(dir, ConfigFileName),
		},
	}

	if diff := cmp.Diff(want, cfg, cmpopts.IgnoreFields(Config{}, "WorkDir")); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}

	cfg, err = LoadConfig(LoadConfigInput{
		WorkDir:      dir,
		PathOverride: "/abs/flag.shmht",
		Env:          map[string]string{"XDG_CONFIG_HOME": xdg},
	})
	require.NoError(t, err)
	require.Equal(t, "/abs/flag.shmht", cfg.PathAbs)
}

func Test_LoadConfig_Uses_Explicit_Config_When_Given(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, filepath.Join(dir, ConfigFileName), `{"path": "project.shmht"}`)
	writeConfig(t, filepath.Join(dir, "other.json"), `{"path": "other.shmht"}`)

	cfg, err := LoadConfig(LoadConfigInput{WorkDir: dir, ConfigPath: "other.json", Env: map[string]string{}})
	require.NoError(t, err)
	require.Equal(t, "other.shmht", cfg.Path)
	require.Equal(t, filepath.Join(dir, "other.json"), cfg.Sources.Project)
}

func Test_LoadConfig_Returns_Error_When_Config_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "empty path", content: `{"path": ""}`, wantErr: ErrPathEmpty},
		{name: "bad timeout", content: `{"lock_timeout": "soon"}`, wantErr: ErrLockTimeoutInvalid},
		{name: "negative timeout", content: `{"lock_timeout": "-1s"}`, wantErr: ErrLockTimeoutInvalid},
		{name: "zero capacity", content: `{"capacity": 0}`, wantErr: ErrConfigInvalid},
		{name: "not json", content: `{path`, wantErr: ErrConfigInvalid},
		{name: "wrong type", content: `{"capacity": "big"}`, wantErr: ErrConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeConfig(t, filepath.Join(dir, ConfigFileName), tt.content)

			_, err := LoadConfig(LoadConfigInput{WorkDir: dir, Env: map[string]string{}})
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func Test_LoadConfig_Returns_Error_When_Explicit_Config_Missing(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(LoadConfigInput{WorkDir: t.TempDir(), ConfigPath: "missing.json", Env: map[string]string{}})
	require.ErrorIs(t, err, ErrConfigFileNotFound)
}

func Test_PrintConfig_Shows_Effective_Values_When_Run(t *testing.T) {
	t.Parallel()

	c := NewCLI(t)
	c.WriteFile(ConfigFileName, `{"capacity": 77, "lock_timeout": "250ms"}`)

	stdout := c.MustRun("-f", "mine.shmht", "print-config")
	assertContains(t, stdout, `"path": "mine.shmht"`)
	assertContains(t, stdout, `"capacity": 77`)
	assertContains(t, stdout, `"lock_timeout": "250ms"`)
	assertContains(t, stdout, "# project config: "+filepath.Join(c.Dir, ConfigFileName))
}
