package cli

import (
	"context"
	"encoding/json"
	"fmt"
)

func printConfigCmd(cfg *Config) *Command {
	return &Command{
		Flags: newFlagSet("print-config"),
		Usage: "print-config",
		Short: "Show the effective configuration",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}

			o.Println(string(data))
			o.Println()
			o.Println("# table:", cfg.PathAbs)

			if cfg.Sources.Global != "" {
				o.Println("# global config:", cfg.Sources.Global)
			}

			if cfg.Sources.Project != "" {
				o.Println("# project config:", cfg.Sources.Project)
			}

			return nil
		},
	}
}
