// Package editorerr defines the failure taxonomy of the execution core.
//
// Every failure returned by the supervisor, the command channel or the
// executor is an *Error carrying one of five kinds. Callers switch on
// KindOf(err) instead of matching message text.
package editorerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an execution failure.
type Kind string

const (
	// KindProjectInvalid means the project path failed validation. No
	// subprocess was created.
	KindProjectInvalid Kind = "project_invalid"
	// KindLaunchFailed means the OS could not create the editor process.
	KindLaunchFailed Kind = "launch_failed"
	// KindTimeout means the exchange outlived its deadline. The subprocess
	// was terminated before the error was returned.
	KindTimeout Kind = "timeout"
	// KindProcessFailed means the editor exited with a non-zero code.
	KindProcessFailed Kind = "process_failed"
	// KindMalformedResponse means the editor exited cleanly but its output
	// did not decode to the result envelope.
	KindMalformedResponse Kind = "malformed_response"
)

// Kinds lists every kind, in taxonomy order.
var Kinds = []Kind{
	KindProjectInvalid,
	KindLaunchFailed,
	KindTimeout,
	KindProcessFailed,
	KindMalformedResponse,
}

// maxDetail caps the stderr/raw excerpt included in Error().
const maxDetail = 2048

// Error is a classified execution failure.
type Error struct {
	Kind    Kind
	Action  string
	Message string

	// ExitCode is set for KindProcessFailed.
	ExitCode int
	// Stderr holds captured standard error for KindProcessFailed.
	Stderr string
	// Raw holds captured standard output for KindMalformedResponse.
	Raw string

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Action != "" {
		b.WriteString(e.Action)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	switch e.Kind {
	case KindProcessFailed:
		if s := strings.TrimSpace(e.Stderr); s != "" {
			b.WriteString(": ")
			b.WriteString(truncate(s))
		}
	case KindMalformedResponse:
		if e.Raw != "" {
			fmt.Fprintf(&b, " (raw output: %q)", truncate(e.Raw))
		}
	}
	if e.Err != nil && e.Kind != KindProcessFailed {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, editorerr.Timeout)
// works against the sentinel values below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ProjectInvalid    = &Error{Kind: KindProjectInvalid}
	LaunchFailed      = &Error{Kind: KindLaunchFailed}
	Timeout           = &Error{Kind: KindTimeout}
	ProcessFailed     = &Error{Kind: KindProcessFailed}
	MalformedResponse = &Error{Kind: KindMalformedResponse}
)

// KindOf returns the kind of err, or "" when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// As returns the classified error inside err.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// NewProjectInvalid reports a project path that failed validation.
func NewProjectInvalid(path string, err error) *Error {
	return &Error{
		Kind:    KindProjectInvalid,
		Message: fmt.Sprintf("invalid project path: %s", path),
		Err:     err,
	}
}

// NewInvalidParameters reports request parameters the editor could never
// receive. It shares the ProjectInvalid kind: nothing was spawned.
func NewInvalidParameters(err error) *Error {
	return &Error{
		Kind:    KindProjectInvalid,
		Message: "invalid parameters",
		Err:     err,
	}
}

// NewLaunchFailed reports a process that could not be created.
func NewLaunchFailed(binary string, err error) *Error {
	return &Error{
		Kind:    KindLaunchFailed,
		Message: fmt.Sprintf("failed to launch editor %s", binary),
		Err:     err,
	}
}

// NewTimeout reports an exchange that exceeded its deadline.
func NewTimeout(timeout fmt.Stringer, err error) *Error {
	return &Error{
		Kind:    KindTimeout,
		Message: fmt.Sprintf("editor command timed out after %s", timeout),
		Err:     err,
	}
}

// NewProcessFailed reports a non-zero editor exit.
func NewProcessFailed(exitCode int, stderr string, err error) *Error {
	return &Error{
		Kind:     KindProcessFailed,
		Message:  fmt.Sprintf("editor process failed with code %d", exitCode),
		ExitCode: exitCode,
		Stderr:   stderr,
		Err:      err,
	}
}

// NewMalformedResponse reports output that did not decode to the envelope.
func NewMalformedResponse(raw string, err error) *Error {
	return &Error{
		Kind:    KindMalformedResponse,
		Message: "failed to parse editor output",
		Raw:     raw,
		Err:     err,
	}
}

// WithAction returns a copy of err labelled with the operation action.
func WithAction(err error, action string) error {
	e, ok := As(err)
	if !ok || e.Action != "" {
		return err
	}
	cp := *e
	cp.Action = action
	return &cp
}

func truncate(s string) string {
	if len(s) <= maxDetail {
		return s
	}
	return s[:maxDetail] + "...(truncated)"
}
