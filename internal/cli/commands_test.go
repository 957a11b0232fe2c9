package cli

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iambrandonn/editorgate/internal/catalog"
	"github.com/iambrandonn/editorgate/internal/config"
	"github.com/iambrandonn/editorgate/internal/editorerr"
	"github.com/iambrandonn/editorgate/internal/journal"
	"github.com/iambrandonn/editorgate/internal/protocol"
	"github.com/iambrandonn/editorgate/internal/supervisor"
	"github.com/iambrandonn/editorgate/internal/tracker"
	"github.com/iambrandonn/editorgate/pkg/testharness"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams(`{"scene_paths":["Assets/A.unity"]}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"scene_paths": []any{"Assets/A.unity"}}, params)

	params, err = parseParams("  ")
	require.NoError(t, err)
	assert.Empty(t, params)

	params, err = parseParams("null")
	require.NoError(t, err)
	assert.NotNil(t, params)

	_, err = parseParams(`[1,2]`)
	assert.ErrorContains(t, err, "invalid --params")
}

func TestBuildRequestByToolAndAction(t *testing.T) {
	project := testharness.NewProject(t)
	cfg := config.GenerateDefault()

	byTool, err := buildRequest(cfg, "project_scan", map[string]any{"project_path": project}, false, 0)
	require.NoError(t, err)
	assert.Equal(t, "project.scan", byTool.Action)
	assert.Equal(t, project, byTool.ProjectPath)
	assert.NotContains(t, byTool.Parameters, "project_path")

	byAction, err := buildRequest(cfg, "project.scan", map[string]any{"project_path": project}, false, 0)
	require.NoError(t, err)
	assert.Equal(t, byTool, byAction)

	withTimeout, err := buildRequest(cfg, "project_scan", map[string]any{"project_path": project}, false, 90*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, withTimeout.Timeout)

	_, err = buildRequest(cfg, "no_such_tool", map[string]any{"project_path": project}, false, 0)
	assert.True(t, errors.Is(err, catalog.ErrUnknownOperation))
}

func TestBuildRequestUsesDefaultProject(t *testing.T) {
	cfg := config.GenerateDefault()
	cfg.Project.DefaultPath = testharness.NewProject(t)

	req, err := buildRequest(cfg, "project_scan", map[string]any{}, false, 0)
	require.NoError(t, err)
	assert.Equal(t, cfg.Project.DefaultPath, req.ProjectPath)

	cfg.Project.DefaultPath = ""
	_, err = buildRequest(cfg, "project_scan", map[string]any{}, false, 0)
	assert.True(t, errors.Is(err, catalog.ErrInvalidArguments))
}

func TestBuildRequestRaw(t *testing.T) {
	cfg := config.GenerateDefault()
	cfg.Project.DefaultPath = "/games/Default"

	req, err := buildRequest(cfg, "custom.action", map[string]any{"project_path": "/games/Other", "depth": float64(2)}, true, 0)
	require.NoError(t, err)
	assert.Equal(t, protocol.Request{
		Action:      "custom.action",
		ProjectPath: "/games/Other",
		Parameters:  protocol.Params{"depth": float64(2)},
		Timeout:     cfg.DefaultTimeout(),
	}, req)

	req, err = buildRequest(cfg, "custom.action", map[string]any{}, true, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "/games/Default", req.ProjectPath)
	assert.Equal(t, time.Minute, req.Timeout)
}

func TestExecPrintsEnvelope(t *testing.T) {
	editor := testharness.WriteFakeEditor(t, testharness.Behavior{
		Stdout: testharness.Reply(true, `{"count":3}`, ""),
	})
	project := testharness.NewProject(t)
	cfgPath := writeTestConfig(t, func(cfg *config.Config) {
		cfg.Editor.Path = editor
	})

	out, err := runCLI(t, "exec", "project_scan", "--config", cfgPath, "--project", project)
	require.NoError(t, err)

	var env map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	assert.Equal(t, true, env["success"])
	assert.Equal(t, map[string]any{"count": float64(3)}, env["data"])
	assert.Nil(t, env["error"])
}

func TestExecEditorFailureSetsExitError(t *testing.T) {
	editor := testharness.WriteFakeEditor(t, testharness.Behavior{
		Stdout: testharness.Reply(false, "", "Scene not found"),
	})
	project := testharness.NewProject(t)
	cfgPath := writeTestConfig(t, func(cfg *config.Config) {
		cfg.Editor.Path = editor
	})

	out, err := runCLI(t, "exec", "scene.validate", "--config", cfgPath, "--project", project,
		"--params", `{"scene_paths":["Assets/Main.unity"]}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOperationFailed))
	assert.Contains(t, out, `"success": false`)
	assert.Contains(t, out, "Scene not found")
}

func TestExecInvalidProjectNeverSpawns(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "pid")
	editor := testharness.WriteFakeEditor(t, testharness.Behavior{
		Stdout:  testharness.Reply(true, "", ""),
		PIDFile: pidFile,
	})
	cfgPath := writeTestConfig(t, func(cfg *config.Config) {
		cfg.Editor.Path = editor
	})

	out, err := runCLI(t, "exec", "custom.action", "--raw", "--config", cfgPath, "--project", t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOperationFailed))
	assert.Contains(t, out, "project")

	_, statErr := os.Stat(pidFile)
	assert.True(t, os.IsNotExist(statErr), "editor must not be launched for an invalid project")
}

func TestValidateReportsEachCheck(t *testing.T) {
	editor := testharness.WriteFakeEditor(t, testharness.Behavior{})
	project := testharness.NewProject(t)
	cfgPath := writeTestConfig(t, func(cfg *config.Config) {
		cfg.Editor.Path = editor
		cfg.Project.DefaultPath = project
	})

	out, err := runCLI(t, "validate", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "[ok]   config file: "+cfgPath)
	assert.Contains(t, out, "[ok]   editor: "+editor)
	assert.Contains(t, out, "[ok]   default project: "+project)
	assert.Contains(t, out, "[ok]   tools:")
	assert.Contains(t, out, "[ok]   prompts: 3 enabled")
	assert.NotContains(t, out, "[fail]")
}

func TestValidateFailsOnMissingEditorAndProject(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, func(cfg *config.Config) {
		cfg.Editor.Path = filepath.Join(dir, "missing", "Unity")
		cfg.Project.DefaultPath = dir
		cfg.Features.Tools = []string{"not_a_tool"}
	})

	out, err := runCLI(t, "validate", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 check(s) failed")
	assert.Contains(t, out, "[fail] editor: editor not found")
	assert.Contains(t, out, "[fail] default project")
	assert.Contains(t, out, "[fail] tools")
}

func TestOpsListsFiltersAndSummarizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops.ndjson")
	j, err := journal.Open(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	tr := tracker.New(tracker.WithObserver(j.Observer()))
	ok := tr.Begin("project.scan", "/games/A")
	require.NoError(t, tr.MarkRunning(ok))
	require.NoError(t, tr.MarkCompleted(ok, map[string]any{"Success": true}))
	bad := tr.Begin("build.run", "/games/A")
	require.NoError(t, tr.MarkFailed(bad, editorerr.NewProcessFailed(1, "compile error\nmore", nil)))
	require.NoError(t, j.Close())

	cfgPath := writeTestConfig(t, nil)

	out, err := runCLI(t, "ops", "--config", cfgPath, "--journal", path)
	require.NoError(t, err)
	assert.Contains(t, out, "ACTION")
	assert.Contains(t, out, ok)
	assert.Contains(t, out, bad)
	assert.NotContains(t, out, "more", "only the first error line is listed")

	out, err = runCLI(t, "ops", "--config", cfgPath, "--journal", path, "--status", "failed")
	require.NoError(t, err)
	assert.NotContains(t, out, ok)
	assert.Contains(t, out, bad)

	out, err = runCLI(t, "ops", "--config", cfgPath, "--journal", path, "--summary")
	require.NoError(t, err)
	assert.Regexp(t, `total\s+2`, out)
	assert.Regexp(t, `status failed\s+1`, out)
	assert.Regexp(t, `action build\.run\s+1`, out)

	out, err = runCLI(t, "ops", "--config", cfgPath, "--journal", path, "--json", "--action", "project.scan")
	require.NoError(t, err)
	var view struct {
		Operations   []tracker.Record `json:"operations"`
		ResourceType string           `json:"resource_type"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.Len(t, view.Operations, 1)
	assert.Equal(t, ok, view.Operations[0].ID)
	assert.Equal(t, "operations", view.ResourceType)

	_, err = runCLI(t, "ops", "--config", cfgPath, "--journal", path, "--status", "done")
	assert.ErrorContains(t, err, `unknown status "done"`)
}

func TestOpsRequiresJournal(t *testing.T) {
	cfgPath := writeTestConfig(t, nil)
	_, err := runCLI(t, "ops", "--config", cfgPath)
	assert.ErrorContains(t, err, "no journal configured")
}

func TestBridgeInstall(t *testing.T) {
	project := testharness.NewProject(t)
	cfgPath := writeTestConfig(t, nil)

	out, err := runCLI(t, "bridge", "install", "--config", cfgPath, "--project", project)
	require.NoError(t, err)
	dest := filepath.Join(project, "Assets", "Editor", supervisor.BridgeFileName)
	assert.Contains(t, out, "installed "+dest)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, supervisor.BridgeSource, data)

	out, err = runCLI(t, "bridge", "install", "--config", cfgPath, "--project", project)
	require.NoError(t, err)
	assert.Contains(t, out, "unchanged "+dest)
}

func TestBridgeInstallRejectsNonProject(t *testing.T) {
	cfgPath := writeTestConfig(t, nil)
	_, err := runCLI(t, "bridge", "install", "--config", cfgPath, "--project", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, editorerr.KindProjectInvalid, editorerr.KindOf(err))
}
