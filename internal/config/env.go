package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EDITORGATE_"

// ApplyEnv overlays EDITORGATE_* variables from lookup onto the config.
// Pass os.LookupEnv in production.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	list := func(name string, sep string, dst *[]string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = splitList(v, sep)
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, name, v, err)
		}
		*dst = n
		return nil
	}

	str("EDITOR_PATH", &c.Editor.Path)
	str("LOG_FILE", &c.Editor.LogFile)
	str("ENTRY_POINT", &c.Editor.EntryPoint)
	str("BRIDGE_DIR", &c.Editor.BridgeDir)
	str("PROJECT_PATH", &c.Project.DefaultPath)
	str("TRANSPORT", &c.Server.Transport)
	str("LISTEN_ADDR", &c.Server.ListenAddr)
	str("DIAG_ADDR", &c.Server.DiagAddr)
	str("LOG_LEVEL", &c.Server.LogLevel)
	str("JOURNAL", &c.Journal.Path)
	list("ALLOWED_PATHS", string(filepath.ListSeparator), &c.Security.AllowedPaths)
	list("BLOCKED_EXTENSIONS", ",", &c.Security.BlockedExtensions)
	list("ENABLED_TOOLS", ",", &c.Features.Tools)

	if err := num("DEFAULT_TIMEOUT_S", &c.Execution.DefaultTimeoutS); err != nil {
		return err
	}
	if err := num("MAX_OPERATION_TIME_S", &c.Execution.MaxOperationTimeS); err != nil {
		return err
	}
	if err := num("GRACE_PERIOD_MS", &c.Execution.GracePeriodMs); err != nil {
		return err
	}

	if v, ok := lookup(EnvPrefix + "SERIALIZE_PER_PROJECT"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sSERIALIZE_PER_PROJECT=%q: %w", EnvPrefix, v, err)
		}
		c.Execution.SerializePerProject = b
	}

	return nil
}

func splitList(v, sep string) []string {
	out := []string{}
	for _, item := range strings.Split(v, sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ParseLogLevel maps a level name to a slog level.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", level)
	}
}

// LookupEnv is the production lookup for ApplyEnv.
var LookupEnv = os.LookupEnv
