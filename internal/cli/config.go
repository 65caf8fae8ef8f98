package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/shmht/pkg/mmfile"
)

// ConfigFileName is the project config file looked up in the working directory.
const ConfigFileName = ".shmht.json"

// Defaults used when neither a config file nor a flag sets a value.
const (
	DefaultPath     = "table.shmht"
	DefaultCapacity = 1024
)

// Config is the effective CLI configuration.
type Config struct {
	Path        string        // table file as configured
	Capacity    uint64        // capacity used by "new" when --capacity is not given
	LockTimeout time.Duration // wait bound for the table lock

	// Resolved, not serialized
	WorkDir string
	PathAbs string
	Sources ConfigSources
}

// ConfigSources records which config files were loaded.
type ConfigSources struct {
	Global  string
	Project string
}

// fileConfig is the on-disk shape. Pointers distinguish "absent" from
// "explicitly empty".
type fileConfig struct {
	Path        *string `json:"path"`
	Capacity    *uint64 `json:"capacity"`
	LockTimeout *string `json:"lock_timeout"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Path:        DefaultPath,
		Capacity:    DefaultCapacity,
		LockTimeout: mmfile.DefaultLockTimeout,
	}
}

// LoadConfigInput holds the inputs for [LoadConfig].
type LoadConfigInput struct {
	WorkDir      string            // -C/--cwd; empty means os.Getwd
	ConfigPath   string            // -c/--config; must exist when set
	PathOverride string            // -f/--file
	Env          map[string]string // environment, for the global config location
}

// LoadConfig resolves the configuration. Later sources win:
//  1. defaults
//  2. global config ($XDG_CONFIG_HOME/shmht/config.json or ~/.config/shmht/config.json)
//  3. project config (.shmht.json in the working directory) or --config
//  4. -f/--file
func LoadConfig(in LoadConfigInput) (Config, error) {
	workDir := in.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}

		workDir = wd
	} else if !filepath.IsAbs(workDir) {
		abs, err := filepath.Abs(workDir)
		if err != nil {
			return Config{}, fmt.Errorf("resolve working directory: %w", err)
		}

		workDir = abs
	}

	cfg := DefaultConfig()

	if global := globalConfigPath(in.Env); global != "" {
		loaded, err := mergeConfigFile(&cfg, global, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg.Sources.Global = global
		}
	}

	project := filepath.Join(workDir, ConfigFileName)
	mustExist := false

	if in.ConfigPath != "" {
		project = in.ConfigPath
		if !filepath.IsAbs(project) {
			project = filepath.Join(workDir, project)
		}

		mustExist = true
	}

	loaded, err := mergeConfigFile(&cfg, project, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg.Sources.Project = project
	}

	if in.PathOverride != "" {
		cfg.Path = in.PathOverride
	}

	if cfg.Path == "" {
		return Config{}, ErrPathEmpty
	}

	cfg.WorkDir = workDir
	cfg.PathAbs = cfg.Path

	if !filepath.IsAbs(cfg.PathAbs) {
		cfg.PathAbs = filepath.Join(workDir, cfg.PathAbs)
	}

	return cfg, nil
}

func globalConfigPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "shmht", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "shmht", "config.json")
	}

	return ""
}

// mergeConfigFile overlays the file at path onto cfg. A missing file is
// skipped unless mustExist is set.
func mergeConfigFile(cfg *Config, path string, mustExist bool) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if mustExist {
				return false, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
			}

			return false, nil
		}

		return false, fmt.Errorf("read config %s: %w", path, err)
	}

	fc, err := parseConfig(data)
	if err != nil {
		return false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	err = applyFileConfig(cfg, fc)
	if err != nil {
		return false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return true, nil
}

func parseConfig(data []byte) (fileConfig, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var fc fileConfig

	err = json.Unmarshal(standardized, &fc)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return fc, nil
}

func applyFileConfig(cfg *Config, fc fileConfig) error {
	if fc.Path != nil {
		if *fc.Path == "" {
			return ErrPathEmpty
		}

		cfg.Path = *fc.Path
	}

	if fc.Capacity != nil {
		if *fc.Capacity == 0 {
			return errors.New("capacity must be positive")
		}

		cfg.Capacity = *fc.Capacity
	}

	if fc.LockTimeout != nil {
		d, err := time.ParseDuration(*fc.LockTimeout)
		if err != nil || d <= 0 {
			return fmt.Errorf("%w: %q", ErrLockTimeoutInvalid, *fc.LockTimeout)
		}

		cfg.LockTimeout = d
	}

	return nil
}

// MarshalJSON renders the config in its file shape, for print-config.
func (c Config) MarshalJSON() ([]byte, error) {
	timeout := c.LockTimeout.String()

	return json.Marshal(fileConfig{
		Path:        &c.Path,
		Capacity:    &c.Capacity,
		LockTimeout: &timeout,
	})
}
