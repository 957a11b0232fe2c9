package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iambrandonn/editorgate/internal/config"
	"github.com/iambrandonn/editorgate/internal/editorerr"
)

// DefaultGrace is the delay between the polite and the forced termination.
const DefaultGrace = time.Second

// reapTimeout bounds how long Terminate waits for the OS to report an exit
// after the forced kill.
const reapTimeout = 5 * time.Second

// ErrClosed is returned by Spawn after Shutdown.
var ErrClosed = errors.New("supervisor is shut down")

// Options describes how the editor is launched
type Options struct {
	EditorPath string
	EntryPoint string
	LogFile    string
	ExtraArgs  []string
	Env        map[string]string
	Layout     config.Layout

	// BridgeDir receives the bridge script at construction. Defaults to
	// the OS temp directory.
	BridgeDir string
}

// OptionsFromConfig maps the editor and project settings onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		EditorPath: cfg.EditorPath(),
		EntryPoint: cfg.Editor.EntryPoint,
		LogFile:    cfg.Editor.LogFile,
		ExtraArgs:  cfg.Editor.ExtraArgs,
		Env:        cfg.Editor.Env,
		Layout:     cfg.Layout(),
		BridgeDir:  cfg.Editor.BridgeDir,
	}
}

// Supervisor creates, tracks and terminates editor subprocesses. Each
// Spawn yields a Handle owned by exactly one operation.
type Supervisor struct {
	opts   Options
	logger *slog.Logger

	bridgePath string

	mu       sync.Mutex
	live     map[*Handle]struct{}
	closed   bool
	shutdown sync.Once

	spawned atomic.Int64
}

// New creates a supervisor and writes the bridge script.
func New(opts Options, logger *slog.Logger) (*Supervisor, error) {
	if opts.EditorPath == "" {
		return nil, fmt.Errorf("editor path is required")
	}
	if opts.Layout == (config.Layout{}) {
		opts.Layout = config.DefaultLayout
	}

	s := &Supervisor{
		opts:   opts,
		logger: logger,
		live:   make(map[*Handle]struct{}),
	}

	path, err := writeBridgeScript(opts.BridgeDir)
	if err != nil {
		return nil, err
	}
	s.bridgePath = path
	logger.Debug("bridge script written", "path", path)

	return s, nil
}

// BridgePath returns the location of the bridge script written at
// construction, or "" after Shutdown removed it.
func (s *Supervisor) BridgePath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bridgePath
}

// Argv returns the launch command line for a project.
func (s *Supervisor) Argv(projectPath string) []string {
	argv := []string{
		s.opts.EditorPath,
		"-batchmode",
		"-quit",
		"-projectPath", projectPath,
		"-logFile", s.opts.LogFile,
		"-executeMethod", s.opts.EntryPoint,
	}
	return append(argv, s.opts.ExtraArgs...)
}

// Spawn validates the project and starts one editor process for it.
func (s *Supervisor) Spawn(ctx context.Context, projectPath string) (*Handle, error) {
	if err := s.opts.Layout.Check(projectPath); err != nil {
		return nil, editorerr.NewProjectInvalid(projectPath, err)
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, editorerr.NewLaunchFailed(s.opts.EditorPath, ErrClosed)
	}

	argv := s.Argv(projectPath)
	s.logger.InfoContext(ctx, "starting editor", "project", projectPath, "argv", argv)

	proc := exec.Command(argv[0], argv[1:]...)
	proc.Dir = projectPath

	// Inherit parent environment first, then add custom vars
	proc.Env = os.Environ()
	for k, v := range s.opts.Env {
		proc.Env = append(proc.Env, fmt.Sprintf("%s=%s", k, v))
	}
	setProcAttrs(proc)

	p, err := newPipes()
	if err != nil {
		return nil, editorerr.NewLaunchFailed(s.opts.EditorPath, err)
	}
	proc.Stdin = p.stdinR
	proc.Stdout = p.stdoutW
	proc.Stderr = p.stderrW

	if err := proc.Start(); err != nil {
		p.closeAll()
		return nil, editorerr.NewLaunchFailed(s.opts.EditorPath, err)
	}
	// The child holds its own copies now
	p.closeChildEnds()

	h := &Handle{
		cmd:     proc,
		pid:     proc.Process.Pid,
		argv:    argv,
		project: projectPath,
		stdin:   p.stdinW,
		stdout:  p.stdoutR,
		stderr:  p.stderrR,
		done:    make(chan struct{}),
	}

	s.spawned.Add(1)

	// Shutdown may have run while the process was starting; a handle it
	// never saw must not outlive it.
	s.mu.Lock()
	closed = s.closed
	if !closed {
		s.live[h] = struct{}{}
	}
	s.mu.Unlock()

	go s.waitForExit(h)

	if closed {
		s.logger.WarnContext(ctx, "supervisor shut down during spawn, stopping editor", "pid", h.pid)
		s.Terminate(h, DefaultGrace)
		h.ClosePipes()
		return nil, editorerr.NewLaunchFailed(s.opts.EditorPath, ErrClosed)
	}

	s.logger.InfoContext(ctx, "editor started", "project", projectPath, "pid", h.pid)
	return h, nil
}

func (s *Supervisor) waitForExit(h *Handle) {
	err := h.cmd.Wait()

	h.exitCode = -1
	if h.cmd.ProcessState != nil {
		h.exitCode = h.cmd.ProcessState.ExitCode()
	}
	h.waitErr = err

	s.mu.Lock()
	delete(s.live, h)
	s.mu.Unlock()
	close(h.done)

	if err != nil {
		s.logger.Debug("editor process exited", "pid", h.pid, "exit_code", h.exitCode, "error", err)
	} else {
		s.logger.Debug("editor process exited cleanly", "pid", h.pid)
	}
}

// Terminate stops a live editor: a polite signal to its process group,
// then a forced kill once grace has passed. On an already exited handle
// it only sweeps helpers left in the group and is not counted as a
// termination. Calls after the first do nothing.
func (s *Supervisor) Terminate(h *Handle, grace time.Duration) {
	if h == nil {
		return
	}
	if grace <= 0 {
		grace = DefaultGrace
	}

	h.termOnce.Do(func() {
		if !h.Alive() {
			sweepGroup(h.cmd.Process)
			return
		}
		h.terminations.Add(1)

		s.logger.Warn("terminating editor", "pid", h.pid, "grace", grace)
		if err := signalTerminate(h.cmd.Process); err != nil {
			s.logger.Debug("terminate signal failed", "pid", h.pid, "error", err)
		}

		select {
		case <-h.done:
		case <-time.After(grace):
			s.logger.Warn("editor did not stop gracefully, killing", "pid", h.pid)
			if err := signalKill(h.cmd.Process); err != nil {
				s.logger.Debug("kill failed", "pid", h.pid, "error", err)
			}
			select {
			case <-h.done:
			case <-time.After(reapTimeout):
				s.logger.Error("editor not reaped after kill", "pid", h.pid)
			}
		}

		// Sweep anything the editor left behind in its group
		sweepGroup(h.cmd.Process)
	})
}

// Shutdown terminates every live editor and removes the bridge script.
// Safe to call more than once.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	var err error
	s.shutdown.Do(func() {
		s.mu.Lock()
		s.closed = true
		handles := make([]*Handle, 0, len(s.live))
		for h := range s.live {
			handles = append(handles, h)
		}
		bridge := s.bridgePath
		s.bridgePath = ""
		s.mu.Unlock()

		s.logger.Info("shutting down supervisor", "live", len(handles))

		var wg sync.WaitGroup
		for _, h := range handles {
			wg.Add(1)
			go func(h *Handle) {
				defer wg.Done()
				s.Terminate(h, DefaultGrace)
				h.ClosePipes()
			}(h)
		}

		finished := make(chan struct{})
		go func() {
			wg.Wait()
			close(finished)
		}()

		select {
		case <-finished:
		case <-ctx.Done():
			err = fmt.Errorf("shutdown interrupted: %w", ctx.Err())
		}

		if bridge != "" {
			if rmErr := os.Remove(bridge); rmErr != nil && !os.IsNotExist(rmErr) {
				s.logger.Error("failed to remove bridge script", "path", bridge, "error", rmErr)
				if err == nil {
					err = fmt.Errorf("failed to remove bridge script: %w", rmErr)
				}
			}
		}
	})
	return err
}

// Spawned returns the number of processes created so far.
func (s *Supervisor) Spawned() int64 {
	return s.spawned.Load()
}

// Live returns the number of processes that have not exited.
func (s *Supervisor) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Handle is one running editor process and the parent ends of its pipes.
type Handle struct {
	cmd     *exec.Cmd
	pid     int
	argv    []string
	project string

	stdin  *os.File
	stdout *os.File
	stderr *os.File

	done     chan struct{}
	exitCode int
	waitErr  error

	termOnce     sync.Once
	terminations atomic.Int32
	closeOnce    sync.Once
}

// PID returns the process id.
func (h *Handle) PID() int { return h.pid }

// Argv returns the command line the process was started with.
func (h *Handle) Argv() []string { return append([]string(nil), h.argv...) }

// Project returns the project path the process runs against.
func (h *Handle) Project() string { return h.project }

// Stdin returns the write end of the child's standard input.
func (h *Handle) Stdin() io.WriteCloser { return h.stdin }

// Stdout returns the read end of the child's standard output.
func (h *Handle) Stdout() io.Reader { return h.stdout }

// Stderr returns the read end of the child's standard error.
func (h *Handle) Stderr() io.Reader { return h.stderr }

// Done is closed once the process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// ExitCode returns the exit status, or -1 while running or when the
// process was ended by a signal.
func (h *Handle) ExitCode() int {
	select {
	case <-h.done:
		return h.exitCode
	default:
		return -1
	}
}

// WaitErr returns the error reported by the OS wait, after Done.
func (h *Handle) WaitErr() error {
	select {
	case <-h.done:
		return h.waitErr
	default:
		return nil
	}
}

// Alive reports whether the process is still running.
func (h *Handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Terminations returns how many times termination was actually applied.
func (h *Handle) Terminations() int {
	return int(h.terminations.Load())
}

// ClosePipes closes the parent ends of all three pipes. Pending reads
// return immediately. Safe to call more than once.
func (h *Handle) ClosePipes() {
	h.closeOnce.Do(func() {
		h.stdin.Close()
		h.stdout.Close()
		h.stderr.Close()
	})
}

type pipes struct {
	stdinR, stdinW   *os.File
	stdoutR, stdoutW *os.File
	stderrR, stderrW *os.File
}

func newPipes() (*pipes, error) {
	p := &pipes{}
	var err error
	if p.stdinR, p.stdinW, err = os.Pipe(); err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	if p.stdoutR, p.stdoutW, err = os.Pipe(); err != nil {
		p.closeAll()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if p.stderrR, p.stderrW, err = os.Pipe(); err != nil {
		p.closeAll()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	return p, nil
}

func (p *pipes) closeChildEnds() {
	for _, f := range []*os.File{p.stdinR, p.stdoutW, p.stderrW} {
		if f != nil {
			f.Close()
		}
	}
}

func (p *pipes) closeAll() {
	for _, f := range []*os.File{p.stdinR, p.stdinW, p.stdoutR, p.stdoutW, p.stderrR, p.stderrW} {
		if f != nil {
			f.Close()
		}
	}
}
