package editorerr

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOfAndIs(t *testing.T) {
	cases := []struct {
		err      error
		kind     Kind
		sentinel *Error
	}{
		{NewProjectInvalid("/nope", nil), KindProjectInvalid, ProjectInvalid},
		{NewLaunchFailed("/bin/editor", exec.ErrNotFound), KindLaunchFailed, LaunchFailed},
		{NewTimeout(time.Second, nil), KindTimeout, Timeout},
		{NewProcessFailed(1, "NullReferenceException", nil), KindProcessFailed, ProcessFailed},
		{NewMalformedResponse("not json", nil), KindMalformedResponse, MalformedResponse},
	}

	for _, c := range cases {
		t.Run(string(c.kind), func(t *testing.T) {
			wrapped := fmt.Errorf("execute: %w", c.err)
			assert.Equal(t, c.kind, KindOf(wrapped))
			assert.True(t, errors.Is(wrapped, c.sentinel))
			for _, other := range []*Error{ProjectInvalid, LaunchFailed, Timeout, ProcessFailed, MalformedResponse} {
				if other != c.sentinel {
					assert.False(t, errors.Is(wrapped, other), "unexpected match with %s", other.Kind)
				}
			}
		})
	}

	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Len(t, Kinds, 5)
}

func TestErrorMessages(t *testing.T) {
	pf := NewProcessFailed(1, "NullReferenceException\n", nil)
	assert.Equal(t, "editor process failed with code 1: NullReferenceException", pf.Error())

	mr := NewMalformedResponse("not json", errors.New("invalid character 'o'"))
	assert.Contains(t, mr.Error(), `raw output: "not json"`)
	assert.Contains(t, mr.Error(), "invalid character")

	launch := NewLaunchFailed("/opt/Unity/Editor/Unity", exec.ErrNotFound)
	assert.True(t, errors.Is(launch, exec.ErrNotFound))

	params := NewInvalidParameters(errors.New("parameter scale is not a finite number: NaN"))
	assert.Equal(t, KindProjectInvalid, params.Kind)
	assert.Equal(t, "invalid parameters: parameter scale is not a finite number: NaN", params.Error())

	to := NewTimeout(2*time.Second, nil)
	assert.Equal(t, "editor command timed out after 2s", to.Error())
}

func TestWithAction(t *testing.T) {
	err := WithAction(NewTimeout(time.Second, nil), "build.run")
	assert.True(t, strings.HasPrefix(err.Error(), "build.run: "))

	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "build.run", e.Action)

	again := WithAction(err, "other")
	assert.Equal(t, err, again)

	plain := errors.New("plain")
	assert.Equal(t, plain, WithAction(plain, "x"))
}

func TestDetailTruncation(t *testing.T) {
	long := strings.Repeat("x", maxDetail*2)
	err := NewProcessFailed(2, long, nil)
	assert.Less(t, len(err.Error()), maxDetail+100)
	assert.Equal(t, long, err.Stderr)
}
