package testharness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/iambrandonn/editorgate/internal/config"
	"github.com/iambrandonn/editorgate/internal/fsutil"
	"github.com/iambrandonn/editorgate/internal/journal"
	"github.com/iambrandonn/editorgate/internal/protocol"
	"github.com/iambrandonn/editorgate/internal/tracker"
)

// ScriptEnv names the variable mockeditor reads its response script from.
const ScriptEnv = "MOCKEDITOR_SCRIPT"

// Scenario is one deterministic `editorgate exec` call against mockeditor.
type Scenario struct {
	Name string
	// Tool is a tool name or editor action.
	Tool   string
	Params map[string]any
	// Responses scripts mockeditor by action, in its script format. Nil
	// uses the built-in handlers.
	Responses map[string]any
	// Files are created under the project, keyed by relative path.
	Files map[string]string
}

var (
	// ScenarioProjectScan runs the built-in scan over a small project.
	ScenarioProjectScan = Scenario{
		Name: "project-scan",
		Tool: "project_scan",
		Files: map[string]string{
			"Assets/Scripts/Player.cs":           "public class Player {}\n",
			"Assets/Scripts/Enemy.cs":            "public class Enemy {}\n",
			"Assets/Scenes/Main.unity":           "%YAML 1.1\n",
			"Assets/Prefabs/Player.prefab":       "%YAML 1.1\n",
			"ProjectSettings/ProjectVersion.txt": "m_EditorVersion: 2022.3.10f1\n",
		},
	}
	// ScenarioBuildFailure has the editor report a failed build.
	ScenarioBuildFailure = Scenario{
		Name:   "build-failure",
		Tool:   "build_run",
		Params: map[string]any{"target": "StandaloneLinux64", "output_path": "Builds/Game"},
		Responses: map[string]any{
			"build.run": map[string]any{"success": false, "error": "Build failed with 2 errors"},
		},
	}
	// ScenarioEditorCrash has the editor exit non-zero without replying.
	ScenarioEditorCrash = Scenario{
		Name: "editor-crash",
		Tool: "project.scan",
		Responses: map[string]any{
			"*": map[string]any{"exit_code": 3, "stderr": "Fatal error in editor"},
		},
	}
)

// SmokeOptions configures RunSmoke.
type SmokeOptions struct {
	Scenario         Scenario
	GatewayBinary    string
	MockEditorBinary string
	WorkspaceDir     string
	Env              map[string]string
}

// SmokeResult captures the outcome of a smoke scenario.
type SmokeResult struct {
	Scenario   Scenario
	Workspace  string
	Project    string
	Stdout     string
	Stderr     string
	RunErr     error
	Envelope   *protocol.Envelope
	Records    []tracker.Record
	ConfigPath string
}

// RunSmoke executes a smoke scenario using the provided binaries.
func RunSmoke(ctx context.Context, opts SmokeOptions) (*SmokeResult, error) {
	if opts.GatewayBinary == "" {
		return nil, fmt.Errorf("editorgate binary path is required")
	}
	if opts.MockEditorBinary == "" {
		return nil, fmt.Errorf("mockeditor binary path is required")
	}
	if opts.Scenario.Tool == "" {
		return nil, fmt.Errorf("scenario tool is required")
	}

	workspace := opts.WorkspaceDir
	var err error
	if workspace == "" {
		workspace, err = os.MkdirTemp("", "editorgate-smoke-")
		if err != nil {
			return nil, fmt.Errorf("failed to create workspace: %w", err)
		}
	} else if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}

	project, err := writeProject(filepath.Join(workspace, "Game"), opts.Scenario.Files)
	if err != nil {
		return nil, err
	}

	cfg := config.GenerateDefault()
	cfg.Editor.Path = opts.MockEditorBinary
	cfg.Editor.LogFile = filepath.Join(workspace, "editor.log")
	cfg.Editor.BridgeDir = filepath.Join(workspace, "bridge")
	cfg.Journal.Path = filepath.Join(workspace, "operations.ndjson")

	if opts.Scenario.Responses != nil {
		scriptPath := filepath.Join(workspace, "mockeditor-script.json")
		if err := fsutil.AtomicWriteJSON(scriptPath, map[string]any{"responses": opts.Scenario.Responses}); err != nil {
			return nil, fmt.Errorf("failed to write mockeditor script: %w", err)
		}
		cfg.Editor.Env = map[string]string{ScriptEnv: scriptPath}
	}

	configPath := filepath.Join(workspace, "editorgate-smoke.json")
	if err := writeConfig(configPath, cfg); err != nil {
		return nil, err
	}

	params := opts.Scenario.Params
	if params == nil {
		params = map[string]any{}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}

	stdOut := &bytes.Buffer{}
	stdErr := &bytes.Buffer{}

	cmd := exec.CommandContext(ctx, opts.GatewayBinary, "exec", opts.Scenario.Tool,
		"--config", configPath,
		"--project", project,
		"--params", string(paramsJSON))
	cmd.Dir = workspace
	cmd.Stdout = stdOut
	cmd.Stderr = stdErr
	cmd.Env = mergeEnv(os.Environ(), opts.Env)

	runErr := cmd.Run()

	result := &SmokeResult{
		Scenario:   opts.Scenario,
		Workspace:  workspace,
		Project:    project,
		Stdout:     stdOut.String(),
		Stderr:     stdErr.String(),
		RunErr:     runErr,
		ConfigPath: configPath,
	}

	var env protocol.Envelope
	if err := json.Unmarshal(stdOut.Bytes(), &env); err == nil {
		result.Envelope = &env
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if records, err := journal.Read(cfg.Journal.Path, logger); err == nil {
		result.Records = records
	}

	return result, nil
}

func writeProject(dir string, files map[string]string) (string, error) {
	for _, sub := range []string{"Assets", "ProjectSettings"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return "", fmt.Errorf("failed to create project: %w", err)
		}
	}
	for rel, contents := range files {
		if err := fsutil.AtomicWrite(filepath.Join(dir, filepath.FromSlash(rel)), []byte(contents)); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", rel, err)
		}
	}
	return dir, nil
}

func writeConfig(path string, cfg *config.Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return fsutil.AtomicWrite(path, append(data, '\n'))
}

// DetectRepoRoot locates the repository root by searching for go.mod.
func DetectRepoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found (starting from %s)", dir)
		}
		dir = parent
	}
}

func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	result := append([]string{}, base...)
	for k, v := range overrides {
		result = setEnv(result, k, v)
	}
	return result
}
