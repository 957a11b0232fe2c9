package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iambrandonn/editorgate/internal/config"
	"github.com/iambrandonn/editorgate/internal/editorerr"
	"github.com/iambrandonn/editorgate/pkg/testharness"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSupervisor(t *testing.T, editor string) *Supervisor {
	t.Helper()
	s, err := New(Options{
		EditorPath: editor,
		EntryPoint: "UnityMCP.MCPBridge.ExecuteCommand",
		LogFile:    filepath.Join(t.TempDir(), "editor.log"),
		BridgeDir:  t.TempDir(),
	}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("editor did not exit")
	}
}

func TestNewWritesBridgeScript(t *testing.T) {
	s := newSupervisor(t, "/opt/Unity/Editor/Unity")

	path := s.BridgePath()
	require.NotEmpty(t, path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, BridgeSource, data)
	assert.Contains(t, string(data), "UnityMCP")
	assert.Contains(t, string(data), "ExecuteCommand")
}

func TestNewRequiresEditorPath(t *testing.T) {
	_, err := New(Options{}, testLogger())
	assert.Error(t, err)
}

func TestArgv(t *testing.T) {
	s, err := New(Options{
		EditorPath: "/opt/Unity/Editor/Unity",
		EntryPoint: "UnityMCP.MCPBridge.ExecuteCommand",
		LogFile:    "/tmp/unity.log",
		ExtraArgs:  []string{"-nographics"},
		BridgeDir:  t.TempDir(),
	}, testLogger())
	require.NoError(t, err)
	defer s.Shutdown(context.Background())

	assert.Equal(t, []string{
		"/opt/Unity/Editor/Unity",
		"-batchmode", "-quit",
		"-projectPath", "/p",
		"-logFile", "/tmp/unity.log",
		"-executeMethod", "UnityMCP.MCPBridge.ExecuteCommand",
		"-nographics",
	}, s.Argv("/p"))
}

func TestSpawnInvalidProjectCreatesNoProcess(t *testing.T) {
	editor := testharness.WriteFakeEditor(t, testharness.Behavior{})
	s := newSupervisor(t, editor)

	notProject := t.TempDir()
	_, err := s.Spawn(context.Background(), notProject)
	require.Error(t, err)
	assert.Equal(t, editorerr.KindProjectInvalid, editorerr.KindOf(err))
	assert.True(t, errors.Is(err, config.ErrNotProject))
	assert.Equal(t, int64(0), s.Spawned())
}

func TestSpawnLaunchFailed(t *testing.T) {
	testharness.RequireUnix(t)
	s := newSupervisor(t, filepath.Join(t.TempDir(), "no-such-editor"))

	_, err := s.Spawn(context.Background(), testharness.NewProject(t))
	require.Error(t, err)
	assert.Equal(t, editorerr.KindLaunchFailed, editorerr.KindOf(err))
	assert.Equal(t, int64(0), s.Spawned())
	assert.Equal(t, 0, s.Live())
}

func TestSpawnArgvAndWorkingDirectory(t *testing.T) {
	capture := t.TempDir()
	argsFile := filepath.Join(capture, "args")
	cwdFile := filepath.Join(capture, "cwd")
	editor := testharness.WriteFakeEditor(t, testharness.Behavior{ArgsFile: argsFile, CwdFile: cwdFile})
	s := newSupervisor(t, editor)
	project := testharness.NewProject(t)

	h, err := s.Spawn(context.Background(), project)
	require.NoError(t, err)
	defer h.ClosePipes()

	assert.Equal(t, int64(1), s.Spawned())
	assert.Greater(t, h.PID(), 0)
	assert.Equal(t, project, h.Project())

	require.NoError(t, h.Stdin().Close())
	waitDone(t, h)
	assert.Equal(t, 0, h.ExitCode())
	assert.False(t, h.Alive())

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, s.Argv(project)[1:], strings.Split(strings.TrimSpace(string(args)), "\n"))

	cwd, err := os.ReadFile(cwdFile)
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(project)
	require.NoError(t, err)
	assert.Equal(t, want, strings.TrimSpace(string(cwd)))

	// The reaper unregisters the handle once it has exited
	assert.Eventually(t, func() bool { return s.Live() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestTerminateIsIdempotent(t *testing.T) {
	editor := testharness.WriteFakeEditor(t, testharness.Behavior{Sleep: 30 * time.Second})
	s := newSupervisor(t, editor)

	h, err := s.Spawn(context.Background(), testharness.NewProject(t))
	require.NoError(t, err)
	defer h.ClosePipes()
	require.NoError(t, h.Stdin().Close())
	assert.True(t, h.Alive())

	s.Terminate(h, time.Second)
	s.Terminate(h, time.Second)

	assert.False(t, h.Alive())
	assert.Equal(t, 1, h.Terminations())
	assert.Eventually(t, func() bool { return s.Live() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestTerminateEscalatesAfterGrace(t *testing.T) {
	editor := testharness.WriteFakeEditor(t, testharness.Behavior{Sleep: 30 * time.Second, IgnoreTerm: true})
	s := newSupervisor(t, editor)

	h, err := s.Spawn(context.Background(), testharness.NewProject(t))
	require.NoError(t, err)
	defer h.ClosePipes()
	require.NoError(t, h.Stdin().Close())

	// Let the shell install its trap
	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	s.Terminate(h, 300*time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, h.Alive())
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
	assert.Less(t, elapsed, 5*time.Second)
	assert.Equal(t, -1, h.ExitCode(), "killed by signal")
}

func TestTerminateExitedHandleIsNoop(t *testing.T) {
	editor := testharness.WriteFakeEditor(t, testharness.Behavior{Stdout: "done"})
	s := newSupervisor(t, editor)

	h, err := s.Spawn(context.Background(), testharness.NewProject(t))
	require.NoError(t, err)
	defer h.ClosePipes()
	require.NoError(t, h.Stdin().Close())
	waitDone(t, h)

	s.Terminate(h, time.Second)
	assert.Equal(t, 0, h.Terminations())
	assert.Equal(t, 0, h.ExitCode())

	s.Terminate(nil, time.Second)
}

func TestShutdownTerminatesLiveHandles(t *testing.T) {
	editor := testharness.WriteFakeEditor(t, testharness.Behavior{Sleep: 30 * time.Second})
	s := newSupervisor(t, editor)
	project := testharness.NewProject(t)

	var handles []*Handle
	for i := 0; i < 2; i++ {
		h, err := s.Spawn(context.Background(), project)
		require.NoError(t, err)
		handles = append(handles, h)
	}
	assert.Equal(t, 2, s.Live())

	bridge := s.BridgePath()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	for _, h := range handles {
		assert.False(t, h.Alive())
		assert.Equal(t, 1, h.Terminations())
	}
	assert.Equal(t, 0, s.Live())
	assert.Empty(t, s.BridgePath())
	_, err := os.Stat(bridge)
	assert.True(t, os.IsNotExist(err), "bridge script should be removed")

	// Idempotent
	require.NoError(t, s.Shutdown(ctx))

	_, err = s.Spawn(context.Background(), project)
	require.Error(t, err)
	assert.Equal(t, editorerr.KindLaunchFailed, editorerr.KindOf(err))
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestSpawnRacingShutdownLeavesNoLiveEditor(t *testing.T) {
	editor := testharness.WriteFakeEditor(t, testharness.Behavior{Sleep: 30 * time.Second})
	project := testharness.NewProject(t)

	for round := 0; round < 20; round++ {
		s := newSupervisor(t, editor)

		var wg sync.WaitGroup
		handles := make(chan *Handle, 4)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				h, err := s.Spawn(context.Background(), project)
				if err != nil {
					assert.True(t, errors.Is(err, ErrClosed), "unexpected spawn error: %v", err)
					return
				}
				handles <- h
			}()
		}

		time.Sleep(time.Duration(round*100) * time.Microsecond)
		require.NoError(t, s.Shutdown(context.Background()))
		wg.Wait()
		close(handles)

		for h := range handles {
			waitDone(t, h)
			h.ClosePipes()
		}
		assert.Equal(t, 0, s.Live(), "round %d", round)
	}
}

func TestShutdownToleratesMissingBridge(t *testing.T) {
	s := newSupervisor(t, "/opt/Unity/Editor/Unity")
	require.NoError(t, os.Remove(s.BridgePath()))
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestInstallBridge(t *testing.T) {
	project := testharness.NewProject(t)

	first, err := InstallBridge(config.DefaultLayout, project)
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assert.Equal(t, filepath.Join(project, "Assets", "Editor", BridgeFileName), first.Path)
	assert.True(t, strings.HasPrefix(first.Digest, "sha256:"))

	data, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, BridgeSource, data)

	second, err := InstallBridge(config.DefaultLayout, project)
	require.NoError(t, err)
	assert.False(t, second.Changed)

	require.NoError(t, os.WriteFile(first.Path, []byte("// stale"), 0644))
	third, err := InstallBridge(config.DefaultLayout, project)
	require.NoError(t, err)
	assert.True(t, third.Changed)

	_, err = InstallBridge(config.DefaultLayout, t.TempDir())
	assert.Equal(t, editorerr.KindProjectInvalid, editorerr.KindOf(err))
}
