// Package channel performs the one-shot request/response exchange with a
// spawned editor: one JSON line in on stdin, one JSON object out on stdout.
package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iambrandonn/editorgate/internal/editorerr"
	"github.com/iambrandonn/editorgate/internal/ndjson"
	"github.com/iambrandonn/editorgate/internal/protocol"
	"github.com/iambrandonn/editorgate/internal/supervisor"
)

// DefaultMaxOutputBytes caps captured stdout and stderr each.
const DefaultMaxOutputBytes = 16 << 20

// DefaultDrainDelay is how long output is drained after the editor exits
// before pipes held by leftover children are closed.
const DefaultDrainDelay = 2 * time.Second

// MaxCommandBytes bounds the encoded command line.
const MaxCommandBytes = 64 << 20

// ErrNotEnvelope means stdout decoded but lacks the {"Success": bool} shape.
var ErrNotEnvelope = errors.New("output is not a result object")

// Terminator stops a running editor. *supervisor.Supervisor satisfies it.
type Terminator interface {
	Terminate(h *supervisor.Handle, grace time.Duration)
}

// Options tunes an exchange.
type Options struct {
	Grace          time.Duration
	DrainDelay     time.Duration
	MaxOutputBytes int64
}

// Channel exchanges commands with spawned editors.
type Channel struct {
	term   Terminator
	opts   Options
	logger *slog.Logger
}

// New creates a channel that uses term to stop editors that overrun.
func New(term Terminator, opts Options, logger *slog.Logger) *Channel {
	if opts.Grace <= 0 {
		opts.Grace = supervisor.DefaultGrace
	}
	if opts.DrainDelay <= 0 {
		opts.DrainDelay = DefaultDrainDelay
	}
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = DefaultMaxOutputBytes
	}
	return &Channel{term: term, opts: opts, logger: logger}
}

// Exchange writes req to the editor, closes its stdin and waits for it to
// exit or for timeout to elapse. On success it returns the decoded stdout
// object verbatim.
//
// A cancelled ctx is treated like an elapsed timeout: the editor is
// terminated and a Timeout error returned.
func (c *Channel) Exchange(ctx context.Context, h *supervisor.Handle, req protocol.Request, timeout time.Duration) (map[string]any, error) {
	if timeout <= 0 {
		timeout = req.EffectiveTimeout()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout := newCapture(c.opts.MaxOutputBytes)
	stderr := newCapture(c.opts.MaxOutputBytes)

	var g errgroup.Group
	g.Go(func() error {
		c.writeCommand(h, req)
		return nil
	})
	g.Go(func() error {
		return drain(stdout, h.Stdout())
	})
	g.Go(func() error {
		return drain(stderr, h.Stderr())
	})

	readsDone := make(chan error, 1)
	go func() {
		readsDone <- g.Wait()
	}()

	select {
	case <-h.Done():
		select {
		case err := <-readsDone:
			if err != nil {
				c.logger.Debug("output drain ended with error", "pid", h.PID(), "error", err)
			}
		case <-time.After(c.opts.DrainDelay):
			c.logger.Warn("editor exited but its output is still held open, closing pipes", "pid", h.PID())
			h.ClosePipes()
			<-readsDone
		}
	case <-ctx.Done():
		c.logger.Warn("editor command timed out", "action", req.Action, "pid", h.PID(), "timeout", timeout, "cause", ctx.Err())
		c.term.Terminate(h, c.opts.Grace)
		h.ClosePipes()
		<-readsDone
		return nil, editorerr.NewTimeout(timeout, ctx.Err())
	}

	if code := h.ExitCode(); code != 0 {
		return nil, editorerr.NewProcessFailed(code, stderr.String(), h.WaitErr())
	}

	raw := stdout.Bytes()
	obj, err := ndjson.DecodeObject(raw)
	if err != nil {
		if stdout.Truncated() {
			err = fmt.Errorf("output exceeded %d bytes: %w", c.opts.MaxOutputBytes, err)
		}
		return nil, editorerr.NewMalformedResponse(string(raw), err)
	}
	if _, ok := protocol.ParseResponse(obj); !ok {
		return nil, editorerr.NewMalformedResponse(string(raw), ErrNotEnvelope)
	}

	return obj, nil
}

func (c *Channel) writeCommand(h *supervisor.Handle, req protocol.Request) {
	stdin := h.Stdin()
	defer stdin.Close()

	enc := ndjson.NewEncoderSize(stdin, c.logger, MaxCommandBytes)
	err := enc.Encode(protocol.NewCommand(req))
	switch {
	case err == nil:
	case errors.Is(err, ndjson.ErrMarshal):
		c.logger.Error("command could not be encoded, editor receives no input", "action", req.Action, "pid", h.PID(), "error", err)
	default:
		// An editor that exits without reading its input breaks the pipe;
		// its exit status decides the outcome.
		c.logger.Debug("failed to write command", "action", req.Action, "pid", h.PID(), "error", err)
	}
}

func drain(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
