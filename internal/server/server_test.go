package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iambrandonn/editorgate/internal/catalog"
	"github.com/iambrandonn/editorgate/internal/config"
	"github.com/iambrandonn/editorgate/internal/editorerr"
	"github.com/iambrandonn/editorgate/internal/protocol"
	"github.com/iambrandonn/editorgate/internal/tracker"
)

// stubExecutor records requests and replays a canned outcome.
type stubExecutor struct {
	mu       sync.Mutex
	requests []protocol.Request
	resp     protocol.Response
	err      error
	tracker  *tracker.Tracker
}

func newStub() *stubExecutor {
	return &stubExecutor{tracker: tracker.New()}
}

func (s *stubExecutor) Execute(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	resp, err := s.resp, s.err
	s.mu.Unlock()

	id := s.tracker.Begin(req.Action, req.ProjectPath)
	_ = s.tracker.MarkRunning(id)
	if err != nil {
		_ = s.tracker.MarkFailed(id, err)
		return protocol.Response{}, err
	}
	_ = s.tracker.MarkCompleted(id, map[string]any{"Success": resp.Success})
	return resp, nil
}

func (s *stubExecutor) Tracker() *tracker.Tracker {
	return s.tracker
}

func (s *stubExecutor) calls() []protocol.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Request(nil), s.requests...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func connect(t *testing.T, exec Executor, opts Options) (*Server, *mcp.ClientSession) {
	t.Helper()
	s, err := New(exec, opts, discardLogger())
	require.NoError(t, err)

	ctx := context.Background()
	ct, st := mcp.NewInMemoryTransports()
	ss, err := s.MCP().Connect(ctx, st, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
	})
	return s, cs
}

func newProject(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "Game")
	for _, sub := range []string{"Assets/Scenes", "ProjectSettings"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ProjectSettings", "ProjectVersion.txt"), []byte("m_EditorVersion: 2022.3.10f1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Assets", "Scenes", "Main.unity"), []byte("scene"), 0o644))
	return dir
}

func toolText(t *testing.T, res *mcp.CallToolResult) protocol.Envelope {
	t.Helper()
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])

	var env protocol.Envelope
	require.NoError(t, json.Unmarshal([]byte(text.Text), &env))
	return env
}

func testOptions() Options {
	return Options{Catalog: catalog.Options{DefaultTimeout: 5 * time.Minute}}
}

func TestListTools(t *testing.T) {
	s, cs := connect(t, newStub(), testOptions())

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, res.Tools, len(s.Catalog().Operations()))

	names := make(map[string]bool)
	for _, tool := range res.Tools {
		names[tool.Name] = true
		assert.NotEmpty(t, tool.Description, tool.Name)
		assert.NotNil(t, tool.InputSchema, tool.Name)
	}
	for _, name := range catalog.CoreTools {
		assert.True(t, names[name], name)
	}
}

func TestEnabledToolsOnly(t *testing.T) {
	opts := testOptions()
	opts.Catalog.Enabled = []string{"project_scan", "build_run"}
	_, cs := connect(t, newStub(), opts)

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, res.Tools, 2)
}

func TestCallToolSuccess(t *testing.T) {
	stub := newStub()
	stub.resp = protocol.Response{Success: true, Data: map[string]any{"count": float64(3)}}
	_, cs := connect(t, stub, testOptions())

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "scene_validate",
		Arguments: map[string]any{
			"project_path": "/work/Game",
			"scene_paths":  []string{"Assets/Scenes/Main.unity"},
		},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	env := toolText(t, res)
	assert.True(t, env.Success)
	assert.Equal(t, map[string]any{"count": float64(3)}, env.Data)
	assert.Nil(t, env.Error)

	calls := stub.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "scene.validate", calls[0].Action)
	assert.Equal(t, "/work/Game", calls[0].ProjectPath)
	assert.Equal(t, []any{"Assets/Scenes/Main.unity"}, calls[0].Parameters["scenePaths"])
	assert.Equal(t, true, calls[0].Parameters["checkMissingScripts"])
	assert.Equal(t, 5*time.Minute, calls[0].Timeout)
}

func TestCallToolEditorReportedFailure(t *testing.T) {
	stub := newStub()
	stub.resp = protocol.Response{Success: false, Error: "Scene not found"}
	_, cs := connect(t, stub, testOptions())

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "scene_load",
		Arguments: map[string]any{"project_path": "/work/Game", "scene_path": "Assets/Missing.unity"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	env := toolText(t, res)
	assert.False(t, env.Success)
	assert.Equal(t, "Scene not found", env.ErrorMessage())
}

func TestCallToolExecutorErrorBecomesEnvelope(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "timeout", err: editorerr.NewTimeout(time.Second, nil), want: "timed out"},
		{name: "process failed", err: editorerr.NewProcessFailed(1, "crash", nil), want: "code 1"},
		{name: "project invalid", err: editorerr.NewProjectInvalid("/nope", config.ErrNotProject), want: "/nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := newStub()
			stub.err = tt.err
			_, cs := connect(t, stub, testOptions())

			res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
				Name:      "project_scan",
				Arguments: map[string]any{"project_path": "/nope"},
			})
			require.NoError(t, err)
			assert.True(t, res.IsError)

			env := toolText(t, res)
			assert.False(t, env.Success)
			assert.Contains(t, env.ErrorMessage(), tt.want)
		})
	}
}

func TestCallToolInvalidArgumentsNeverExecute(t *testing.T) {
	stub := newStub()
	_, cs := connect(t, stub, testOptions())

	for _, args := range []map[string]any{
		{},
		{"project_path": ""},
		{"project_path": "/p", "unexpected": 1},
		{"project_path": 42},
	} {
		res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: "project_scan", Arguments: args})
		require.NoError(t, err)
		assert.True(t, res.IsError, "%v", args)
		assert.Contains(t, toolText(t, res).ErrorMessage(), "invalid arguments")
	}
	assert.Empty(t, stub.calls())
}

func TestCallUnknownTool(t *testing.T) {
	_, cs := connect(t, newStub(), testOptions())
	_, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: "no_such_tool"})
	assert.Error(t, err)
}

func TestCallWithoutClient(t *testing.T) {
	stub := newStub()
	stub.resp = protocol.Response{Success: true, Data: "ok"}
	s, err := New(stub, testOptions(), discardLogger())
	require.NoError(t, err)

	env := s.Call(context.Background(), "editor_exec", json.RawMessage(`{"project_path":"/p","method_name":"Tools.Run"}`))
	assert.True(t, env.Success)
	assert.Equal(t, "ok", env.Data)

	env = s.Call(context.Background(), "editor_exec", json.RawMessage(`not json`))
	assert.False(t, env.Success)
}

func readText(t *testing.T, res *mcp.ReadResourceResult) string {
	t.Helper()
	require.Len(t, res.Contents, 1)
	assert.Equal(t, "application/json", res.Contents[0].MIMEType)
	return res.Contents[0].Text
}

func TestReadProjectResources(t *testing.T) {
	project := newProject(t)
	_, cs := connect(t, newStub(), testOptions())
	ctx := context.Background()

	res, err := cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: "unity://project/" + project})
	require.NoError(t, err)
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(readText(t, res)), &info))
	assert.Equal(t, "Game", info["name"])
	assert.Equal(t, "2022.3.10f1", info["editor_version"])

	res, err = cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: "unity://scenes/" + project})
	require.NoError(t, err)
	var scenes map[string]any
	require.NoError(t, json.Unmarshal([]byte(readText(t, res)), &scenes))
	assert.Equal(t, float64(1), scenes["total_scenes"])

	for _, kind := range []string{"assets", "logs"} {
		res, err = cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: "unity://" + kind + "/" + project})
		require.NoError(t, err, kind)
		assert.Contains(t, readText(t, res), `"resource_type": "unity_`+kind+`"`)
	}
}

func TestReadResourceInvalidProject(t *testing.T) {
	_, cs := connect(t, newStub(), testOptions())
	_, err := cs.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: "unity://project/" + t.TempDir()})
	assert.Error(t, err)
}

func TestReadOperations(t *testing.T) {
	stub := newStub()
	stub.resp = protocol.Response{Success: true}
	_, cs := connect(t, stub, testOptions())
	ctx := context.Background()

	_, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: "project_scan", Arguments: map[string]any{"project_path": "/p"}})
	require.NoError(t, err)

	res, err := cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: OperationsURI})
	require.NoError(t, err)

	var view struct {
		Summary struct {
			Total int `json:"total"`
		} `json:"summary"`
		Operations []tracker.Record `json:"operations"`
	}
	require.NoError(t, json.Unmarshal([]byte(readText(t, res)), &view))
	assert.Equal(t, 1, view.Summary.Total)
	require.Len(t, view.Operations, 1)
	assert.Equal(t, "project.scan", view.Operations[0].Action)
	assert.Equal(t, tracker.StatusCompleted, view.Operations[0].Status)
}

func TestEnabledResources(t *testing.T) {
	opts := testOptions()
	opts.Resources = []string{"operations"}
	_, cs := connect(t, newStub(), opts)

	_, err := cs.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: "unity://project/" + newProject(t)})
	assert.Error(t, err)

	_, err = cs.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: OperationsURI})
	assert.NoError(t, err)

	opts.Resources = []string{"textures"}
	_, err = New(newStub(), opts, discardLogger())
	assert.True(t, errors.Is(err, ErrUnknownResource))
}

func TestGetPrompt(t *testing.T) {
	_, cs := connect(t, newStub(), testOptions())
	ctx := context.Background()

	list, err := cs.ListPrompts(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, list.Prompts, 3)

	res, err := cs.GetPrompt(ctx, &mcp.GetPromptParams{
		Name:      "unity.debug",
		Arguments: map[string]string{"project_path": "/work/Game", "issue_type": "runtime"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Debugging guidance for runtime issues", res.Description)
	require.Len(t, res.Messages, 1)
	text, ok := res.Messages[0].Content.(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "# Runtime Debugging Guide")
	assert.Contains(t, text.Text, "/work/Game")
}

func TestNewRejectsUnknownFeatures(t *testing.T) {
	opts := testOptions()
	opts.Catalog.Enabled = []string{"teleport"}
	_, err := New(newStub(), opts, discardLogger())
	assert.True(t, errors.Is(err, catalog.ErrUnknownOperation))

	opts = testOptions()
	opts.Prompts = []string{"unity.deploy"}
	_, err = New(newStub(), opts, discardLogger())
	assert.Error(t, err)
}

func TestProjectFromURI(t *testing.T) {
	path, err := ProjectFromURI("unity://logs//work/My%20Game", "unity://logs/")
	require.NoError(t, err)
	assert.Equal(t, "/work/My Game", path)

	_, err = ProjectFromURI("unity://logs/", "unity://logs/")
	assert.Error(t, err)

	_, err = ProjectFromURI("unity://scenes/x", "unity://logs/")
	assert.True(t, errors.Is(err, ErrUnknownResource))
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.GenerateDefault()
	cfg.Project.DefaultPath = "/work/Game"
	cfg.Features.Tools = []string{"project_scan"}
	cfg.Security.AllowedPaths = []string{"/work"}

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, "editorgate", opts.Name)
	assert.Equal(t, "/work/Game", opts.Catalog.DefaultProject)
	assert.Equal(t, []string{"project_scan"}, opts.Catalog.Enabled)
	assert.Equal(t, []string{"/work"}, opts.Catalog.Policy.AllowedPaths)
	assert.Equal(t, cfg.DefaultTimeout(), opts.Catalog.DefaultTimeout)
	assert.Equal(t, cfg.Layout(), opts.Layout)
	assert.Equal(t, cfg.Editor.LogFile, opts.EditorLogFile)
}
