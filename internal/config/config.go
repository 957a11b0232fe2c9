package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the editorgate configuration file
type Config struct {
	Version   string          `json:"version" yaml:"version"`
	Server    ServerConfig    `json:"server" yaml:"server"`
	Editor    EditorConfig    `json:"editor" yaml:"editor"`
	Project   ProjectConfig   `json:"project" yaml:"project"`
	Execution ExecutionConfig `json:"execution" yaml:"execution"`
	Security  SecurityConfig  `json:"security" yaml:"security"`
	Features  FeaturesConfig  `json:"features" yaml:"features"`
	Journal   JournalConfig   `json:"journal" yaml:"journal"`
}

// ServerConfig contains MCP server and process-level settings
type ServerConfig struct {
	Name       string `json:"name" yaml:"name"`
	Version    string `json:"version" yaml:"version"`
	Transport  string `json:"transport" yaml:"transport"`
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
	DiagAddr   string `json:"diag_addr,omitempty" yaml:"diag_addr,omitempty"`
	LogLevel   string `json:"log_level" yaml:"log_level"`
}

// EditorConfig describes how the batch-mode editor is launched
type EditorConfig struct {
	Path       string            `json:"path,omitempty" yaml:"path,omitempty"`
	LogFile    string            `json:"log_file" yaml:"log_file"`
	EntryPoint string            `json:"entry_point" yaml:"entry_point"`
	ExtraArgs  []string          `json:"extra_args,omitempty" yaml:"extra_args,omitempty"`
	Env        map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	BridgeDir  string            `json:"bridge_dir,omitempty" yaml:"bridge_dir,omitempty"`
}

// ProjectConfig contains the default project and the layout used to
// recognize a project directory
type ProjectConfig struct {
	DefaultPath string `json:"default_path,omitempty" yaml:"default_path,omitempty"`
	AssetsDir   string `json:"assets_dir" yaml:"assets_dir"`
	SettingsDir string `json:"settings_dir" yaml:"settings_dir"`
}

// ExecutionConfig bounds individual operations
type ExecutionConfig struct {
	DefaultTimeoutS     int   `json:"default_timeout_s" yaml:"default_timeout_s"`
	MaxOperationTimeS   int   `json:"max_operation_time_s" yaml:"max_operation_time_s"`
	GracePeriodMs       int   `json:"grace_period_ms" yaml:"grace_period_ms"`
	DrainDelayMs        int   `json:"drain_delay_ms" yaml:"drain_delay_ms"`
	MaxOutputBytes      int64 `json:"max_output_bytes" yaml:"max_output_bytes"`
	SerializePerProject bool  `json:"serialize_per_project" yaml:"serialize_per_project"`
}

// SecurityConfig restricts the paths operations may touch
type SecurityConfig struct {
	AllowedPaths      []string `json:"allowed_paths" yaml:"allowed_paths"`
	BlockedExtensions []string `json:"blocked_extensions" yaml:"blocked_extensions"`
}

// FeaturesConfig selects the exposed tools, resources and prompts. An empty
// list enables everything in that category.
type FeaturesConfig struct {
	Tools     []string `json:"tools" yaml:"tools"`
	Resources []string `json:"resources" yaml:"resources"`
	Prompts   []string `json:"prompts" yaml:"prompts"`
}

// JournalConfig locates the operation journal. An empty path disables it.
type JournalConfig struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// GenerateDefault creates a new Config with default values
func GenerateDefault() *Config {
	return &Config{
		Version: "1.0",
		Server: ServerConfig{
			Name:       "editorgate",
			Version:    "1.0.0",
			Transport:  "stdio",
			ListenAddr: "127.0.0.1:8765",
			LogLevel:   "info",
		},
		Editor: EditorConfig{
			LogFile:    filepath.Join(os.TempDir(), "editorgate_editor.log"),
			EntryPoint: "UnityMCP.MCPBridge.ExecuteCommand",
		},
		Project: ProjectConfig{
			AssetsDir:   "Assets",
			SettingsDir: "ProjectSettings",
		},
		Execution: ExecutionConfig{
			DefaultTimeoutS:     300,
			MaxOperationTimeS:   300,
			GracePeriodMs:       1000,
			DrainDelayMs:        2000,
			MaxOutputBytes:      16 << 20,
			SerializePerProject: true,
		},
		Security: SecurityConfig{
			AllowedPaths:      []string{},
			BlockedExtensions: []string{".exe", ".dll", ".so", ".dylib"},
		},
		Features: FeaturesConfig{
			Tools:     []string{},
			Resources: []string{},
			Prompts:   []string{},
		},
	}
}

// DefaultEditorPath returns the conventional editor install location for
// the running platform.
func DefaultEditorPath() string {
	switch runtime.GOOS {
	case "darwin":
		return "/Applications/Unity/Hub/Editor/2023.3.0f1/Unity.app/Contents/MacOS/Unity"
	case "windows":
		return `C:\Program Files\Unity\Hub\Editor\2023.3.0f1\Editor\Unity.exe`
	default:
		return "/opt/Unity/Editor/Unity"
	}
}

// EditorPath returns the configured editor binary, falling back to the
// platform default.
func (c *Config) EditorPath() string {
	if strings.TrimSpace(c.Editor.Path) != "" {
		return c.Editor.Path
	}
	return DefaultEditorPath()
}

// DefaultTimeout returns the default operation timeout.
func (c *Config) DefaultTimeout() time.Duration {
	return time.Duration(c.Execution.DefaultTimeoutS) * time.Second
}

// MaxOperationTime returns the upper bound for caller-supplied timeouts.
func (c *Config) MaxOperationTime() time.Duration {
	return time.Duration(c.Execution.MaxOperationTimeS) * time.Second
}

// GracePeriod returns the delay between the polite and forced termination.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Execution.GracePeriodMs) * time.Millisecond
}

// DrainDelay returns how long output pipes are drained after the editor exits.
func (c *Config) DrainDelay() time.Duration {
	return time.Duration(c.Execution.DrainDelayMs) * time.Millisecond
}

// Layout returns the project layout used for validation.
func (c *Config) Layout() Layout {
	return Layout{AssetsDir: c.Project.AssetsDir, SettingsDir: c.Project.SettingsDir}
}

// Validate checks the configuration for errors and returns user-friendly error messages
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("configuration error: missing required field 'version'\n\nHint: Add a version field like:\n  \"version\": \"1.0\"")
	}

	switch c.Server.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("configuration error: invalid 'server.transport' value: %q\n\nHint: Use one of:\n  \"transport\": \"stdio\"\n  \"transport\": \"http\"", c.Server.Transport)
	}

	if c.Server.Transport == "http" && strings.TrimSpace(c.Server.ListenAddr) == "" {
		return fmt.Errorf("configuration error: 'server.listen_addr' is required for the http transport\n\nHint: Set an address like:\n  \"listen_addr\": \"127.0.0.1:8765\"")
	}

	if _, err := ParseLogLevel(c.Server.LogLevel); err != nil {
		return fmt.Errorf("configuration error: %v\n\nHint: Use one of debug, info, warn, error:\n  \"log_level\": \"info\"", err)
	}

	if strings.TrimSpace(c.Editor.EntryPoint) == "" {
		return fmt.Errorf("configuration error: missing required field 'editor.entry_point'\n\nHint: Name the static bridge method:\n  \"entry_point\": \"UnityMCP.MCPBridge.ExecuteCommand\"")
	}

	if c.Project.AssetsDir == "" || c.Project.SettingsDir == "" {
		return fmt.Errorf("configuration error: 'project.assets_dir' and 'project.settings_dir' must be set\n\nHint: Use the standard layout:\n  \"assets_dir\": \"Assets\",\n  \"settings_dir\": \"ProjectSettings\"")
	}

	if c.Execution.DefaultTimeoutS <= 0 {
		return fmt.Errorf("configuration error: invalid 'execution.default_timeout_s' value: %d\n\nHint: Timeouts are positive seconds:\n  \"default_timeout_s\": 300", c.Execution.DefaultTimeoutS)
	}

	if c.Execution.MaxOperationTimeS < c.Execution.DefaultTimeoutS {
		return fmt.Errorf("configuration error: 'execution.max_operation_time_s' (%d) is below 'execution.default_timeout_s' (%d)\n\nHint: The maximum must allow the default:\n  \"max_operation_time_s\": %d", c.Execution.MaxOperationTimeS, c.Execution.DefaultTimeoutS, c.Execution.DefaultTimeoutS)
	}

	if c.Execution.GracePeriodMs < 0 || c.Execution.DrainDelayMs < 0 {
		return fmt.Errorf("configuration error: 'execution.grace_period_ms' and 'execution.drain_delay_ms' must not be negative")
	}

	if c.Execution.MaxOutputBytes <= 0 {
		return fmt.Errorf("configuration error: invalid 'execution.max_output_bytes' value: %d\n\nHint: Cap captured output, for example:\n  \"max_output_bytes\": 16777216", c.Execution.MaxOutputBytes)
	}

	for _, ext := range c.Security.BlockedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("configuration error: blocked extension %q must start with '.'\n\nHint: List extensions like:\n  \"blocked_extensions\": [\".exe\", \".dll\"]", ext)
		}
	}

	return nil
}

// LoadFromFile loads a configuration file on top of the defaults. Files
// ending in .yaml or .yml are parsed as YAML, everything else as JSON.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := GenerateDefault()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	return cfg, nil
}

// SaveToFile writes the configuration with 0600 permissions, as YAML or
// JSON depending on the file extension
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write with 0600 permissions (owner read/write only)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}
