// Package gateway composes the supervisor, the command channel and the
// tracker into the single Execute entry point.
package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/iambrandonn/editorgate/internal/channel"
	"github.com/iambrandonn/editorgate/internal/config"
	"github.com/iambrandonn/editorgate/internal/editorerr"
	"github.com/iambrandonn/editorgate/internal/protocol"
	"github.com/iambrandonn/editorgate/internal/supervisor"
	"github.com/iambrandonn/editorgate/internal/tracker"
)

// ErrEmptyProject is wrapped in ProjectInvalid when no project path was
// given.
var ErrEmptyProject = errors.New("project path is empty")

// Spawner starts and stops editor processes.
type Spawner interface {
	Spawn(ctx context.Context, projectPath string) (*supervisor.Handle, error)
	Terminate(h *supervisor.Handle, grace time.Duration)
	Shutdown(ctx context.Context) error
}

// Exchanger runs one request/response round trip with a spawned editor.
type Exchanger interface {
	Exchange(ctx context.Context, h *supervisor.Handle, req protocol.Request, timeout time.Duration) (map[string]any, error)
}

// Options tunes the executor.
type Options struct {
	// Layout decides which directories are projects.
	Layout config.Layout
	// Grace is passed to Terminate on cleanup.
	Grace time.Duration
	// MaxTimeout caps request timeouts. Zero means no cap.
	MaxTimeout time.Duration
	// SerializePerProject makes operations on the same project path wait
	// for each other. Waiting counts against the operation timeout.
	SerializePerProject bool
	// Journal is closed by Close.
	Journal io.Closer
}

// Executor runs operations against editors, one process per call.
type Executor struct {
	spawner Spawner
	channel Exchanger
	tracker *tracker.Tracker
	opts    Options
	logger  *slog.Logger

	locks *projectLocks

	closeOnce sync.Once
	closeErr  error
}

// New creates an executor from its collaborators.
func New(spawner Spawner, channel Exchanger, tr *tracker.Tracker, opts Options, logger *slog.Logger) *Executor {
	if opts.Layout == (config.Layout{}) {
		opts.Layout = config.DefaultLayout
	}
	if opts.Grace <= 0 {
		opts.Grace = supervisor.DefaultGrace
	}
	return &Executor{
		spawner: spawner,
		channel: channel,
		tracker: tr,
		opts:    opts,
		logger:  logger,
		locks:   newProjectLocks(),
	}
}

// Tracker exposes the operation records for diagnostics.
func (e *Executor) Tracker() *tracker.Tracker {
	return e.tracker
}

// Execute runs req in a fresh editor process and returns the editor's
// response. An editor that reports Success=false is a completed operation,
// not an error. Every error returned is an *editorerr.Error labelled with
// the action; the process is always gone when Execute returns.
func (e *Executor) Execute(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	if err := e.validate(req); err != nil {
		e.logger.WarnContext(ctx, "rejected operation", "action", req.Action, "project", req.ProjectPath, "error", err)
		return protocol.Response{}, editorerr.WithAction(err, req.Action)
	}

	timeout := e.timeout(req)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	id := e.tracker.Begin(req.Action, req.ProjectPath)
	logger := e.logger.With("operation", id, "action", req.Action)
	logger.DebugContext(ctx, "operation pending", "project", req.ProjectPath, "timeout", timeout)

	fail := func(err error) (protocol.Response, error) {
		err = editorerr.WithAction(err, req.Action)
		if markErr := e.tracker.MarkFailed(id, err); markErr != nil {
			logger.Error("failed to record failure", "error", markErr)
		}
		logger.WarnContext(ctx, "operation failed", "kind", editorerr.KindOf(err), "error", err)
		return protocol.Response{}, err
	}

	if e.opts.SerializePerProject {
		release, err := e.locks.acquire(ctx, lockKey(req.ProjectPath))
		if err != nil {
			return fail(editorerr.NewTimeout(timeout, err))
		}
		defer release()
	}

	if err := e.tracker.MarkRunning(id); err != nil {
		logger.Error("failed to mark running", "error", err)
	}

	h, err := e.spawner.Spawn(ctx, req.ProjectPath)
	if err != nil {
		return fail(err)
	}
	defer func() {
		e.spawner.Terminate(h, e.opts.Grace)
		h.ClosePipes()
	}()

	raw, err := e.channel.Exchange(ctx, h, req, timeout)
	if err != nil {
		return fail(err)
	}

	resp, ok := protocol.ParseResponse(raw)
	if !ok {
		return fail(editorerr.NewMalformedResponse("", channel.ErrNotEnvelope))
	}

	if err := e.tracker.MarkCompleted(id, raw); err != nil {
		logger.Error("failed to mark completed", "error", err)
	}
	logger.InfoContext(ctx, "operation completed", "success", resp.Success, "pid", h.PID())
	return resp, nil
}

// Close tears the executor down: live editors are terminated, the bridge
// script removed, the tracker cleared and the journal closed. Safe to
// call more than once.
func (e *Executor) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		var errs []error
		if err := e.spawner.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		e.tracker.Clear()
		if e.opts.Journal != nil {
			if err := e.opts.Journal.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		e.closeErr = errors.Join(errs...)
		e.logger.Info("gateway closed")
	})
	return e.closeErr
}

func (e *Executor) validate(req protocol.Request) error {
	if req.ProjectPath == "" {
		return editorerr.NewProjectInvalid(req.ProjectPath, ErrEmptyProject)
	}
	if err := e.opts.Layout.Check(req.ProjectPath); err != nil {
		return editorerr.NewProjectInvalid(req.ProjectPath, err)
	}
	if err := req.Parameters.Validate(); err != nil {
		return editorerr.NewInvalidParameters(err)
	}
	return nil
}

func (e *Executor) timeout(req protocol.Request) time.Duration {
	t := req.EffectiveTimeout()
	if e.opts.MaxTimeout > 0 && t > e.opts.MaxTimeout {
		return e.opts.MaxTimeout
	}
	return t
}
