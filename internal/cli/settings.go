package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/iambrandonn/editorgate/internal/config"
)

// loadConfig resolves defaults, the config file, EDITORGATE_* variables and
// finally the global flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, "", err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get current directory: %w", err)
	}

	cfg, path, err := config.Load(configPath, cwd, config.LookupEnv)
	if err != nil {
		return nil, "", err
	}

	overrides := []struct {
		flag string
		dst  *string
	}{
		{"log-level", &cfg.Server.LogLevel},
		{"editor", &cfg.Editor.Path},
		{"project", &cfg.Project.DefaultPath},
	}
	for _, o := range overrides {
		if err := stringFlag(cmd, o.flag, o.dst); err != nil {
			return nil, "", err
		}
	}

	return cfg, path, nil
}

// stringFlag copies a flag into dst when the user set it.
func stringFlag(cmd *cobra.Command, name string, dst *string) error {
	flag := cmd.Flags().Lookup(name)
	if flag == nil || !flag.Changed {
		return nil
	}
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// newLogger writes text logs to stderr so stdout stays free for the MCP
// stdio transport and command output.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	level, err := config.ParseLogLevel(cfg.Server.LogLevel)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
	})), nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func displayPath(path string) string {
	if path == "" {
		return "(defaults)"
	}
	return path
}
