package testharness

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// Behavior scripts a fake editor. The generated /bin/sh script always
// consumes stdin to EOF first, like the real bridge.
type Behavior struct {
	// Stdout and Stderr are written verbatim after stdin is consumed.
	Stdout string
	Stderr string
	// ExitCode is the process exit status.
	ExitCode int
	// Sleep delays the reply.
	Sleep time.Duration
	// IgnoreTerm makes the editor (and its children) ignore SIGTERM.
	IgnoreTerm bool
	// Background leaves a child holding stdout open after the editor exits.
	Background time.Duration
	// BackgroundPIDFile receives the pid of the Background child.
	BackgroundPIDFile string

	// Capture files, written when set.
	ArgsFile  string
	StdinFile string
	CwdFile   string
	PIDFile   string
}

// RequireUnix skips tests that depend on /bin/sh fake editors.
func RequireUnix(tb testing.TB) {
	tb.Helper()
	if runtime.GOOS == "windows" {
		tb.Skip("fake editors are shell scripts")
	}
}

// Script renders the behavior as a shell script.
func (b Behavior) Script() string {
	var s strings.Builder
	s.WriteString("#!/bin/sh\n")
	if b.PIDFile != "" {
		fmt.Fprintf(&s, "echo $$ > %s\n", quote(b.PIDFile))
	}
	if b.ArgsFile != "" {
		fmt.Fprintf(&s, "printf '%%s\\n' \"$@\" > %s\n", quote(b.ArgsFile))
	}
	if b.CwdFile != "" {
		fmt.Fprintf(&s, "pwd -P > %s\n", quote(b.CwdFile))
	}
	if b.IgnoreTerm {
		s.WriteString("trap '' TERM\n")
	}
	if b.StdinFile != "" {
		fmt.Fprintf(&s, "cat > %s\n", quote(b.StdinFile))
	} else {
		s.WriteString("cat > /dev/null\n")
	}
	if b.Sleep > 0 {
		fmt.Fprintf(&s, "sleep %.3f\n", b.Sleep.Seconds())
	}
	if b.Background > 0 {
		fmt.Fprintf(&s, "sleep %.3f &\n", b.Background.Seconds())
		if b.BackgroundPIDFile != "" {
			fmt.Fprintf(&s, "echo $! > %s\n", quote(b.BackgroundPIDFile))
		}
	}
	if b.Stdout != "" {
		fmt.Fprintf(&s, "printf '%%s' %s\n", quote(b.Stdout))
	}
	if b.Stderr != "" {
		fmt.Fprintf(&s, "printf '%%s' %s >&2\n", quote(b.Stderr))
	}
	fmt.Fprintf(&s, "exit %d\n", b.ExitCode)
	return s.String()
}

// WriteFakeEditor writes the behavior as an executable script in a test
// temp directory and returns its path.
func WriteFakeEditor(tb testing.TB, b Behavior) string {
	tb.Helper()
	RequireUnix(tb)

	path := filepath.Join(tb.TempDir(), "Unity")
	if err := os.WriteFile(path, []byte(b.Script()), 0o755); err != nil {
		tb.Fatalf("failed to write fake editor: %v", err)
	}
	return path
}

// NewProject creates a directory with the standard Assets and
// ProjectSettings roots and returns its path.
func NewProject(tb testing.TB) string {
	tb.Helper()

	dir := filepath.Join(tb.TempDir(), "Game")
	for _, sub := range []string{"Assets", "ProjectSettings"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			tb.Fatalf("failed to create project: %v", err)
		}
	}
	return dir
}

// Reply renders a bridge reply object. dataJSON is raw JSON; empty means
// null.
func Reply(success bool, dataJSON string, errMsg string) string {
	if dataJSON == "" {
		dataJSON = "null"
	}
	if success {
		return fmt.Sprintf(`{"Success":true,"Data":%s,"Error":null}`, dataJSON)
	}
	return fmt.Sprintf(`{"Success":false,"Data":null,"Error":%q}`, errMsg)
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
