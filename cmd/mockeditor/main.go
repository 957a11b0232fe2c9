// Command mockeditor stands in for the batch-mode editor in end-to-end
// tests. It accepts the editor's launch flags, reads one command from
// stdin and answers it, either from a script or with built-in handlers.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iambrandonn/editorgate/internal/ndjson"
	"github.com/iambrandonn/editorgate/internal/protocol"
)

// ScriptEnv names a script file when -script is not passed.
const ScriptEnv = "MOCKEDITOR_SCRIPT"

func main() {
	fset := flag.NewFlagSet("mockeditor", flag.ContinueOnError)
	fset.Bool("batchmode", false, "Run without a window (accepted and ignored)")
	fset.Bool("quit", false, "Exit after the method returns (accepted and ignored)")
	projectPath := fset.String("projectPath", "", "Project directory")
	logFile := fset.String("logFile", "", "Editor log file")
	executeMethod := fset.String("executeMethod", "", "Static method to run")
	scriptFile := fset.String("script", os.Getenv(ScriptEnv), "Path to response script file (JSON)")
	if err := fset.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	// stderr carries diagnostics, stdout carries the single reply
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ed := &MockEditor{
		project: *projectPath,
		method:  *executeMethod,
		logger:  logger,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		session: uuid.New().String()[:8],
	}
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err == nil {
			defer f.Close()
			ed.log = f
		}
	}
	if *scriptFile != "" {
		if err := ed.loadScript(*scriptFile); err != nil {
			logger.Error("failed to load script", "error", err)
			os.Exit(1)
		}
	}

	os.Exit(ed.Run(os.Stdin))
}

// MockEditor answers one command.
type MockEditor struct {
	project string
	method  string
	session string
	logger  *slog.Logger
	stdout  io.Writer
	stderr  io.Writer
	log     io.Writer
	script  *Script
}

// Script contains pre-programmed replies keyed by action. The "*" entry
// matches any action without its own entry.
type Script struct {
	Responses map[string]ResponseTemplate `json:"responses"`
}

// ResponseTemplate defines how to answer a command.
type ResponseTemplate struct {
	// DelayMs sleeps before replying.
	DelayMs int `json:"delay_ms,omitempty"`
	// ExitCode is the process status. Non-zero exits skip the reply.
	ExitCode int    `json:"exit_code,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	// Raw is written to stdout verbatim instead of a reply object.
	Raw     *string `json:"raw,omitempty"`
	Success bool    `json:"success"`
	Data    any     `json:"data,omitempty"`
	Error   string  `json:"error,omitempty"`
}

func (e *MockEditor) loadScript(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script file: %w", err)
	}

	var script Script
	if err := json.Unmarshal(data, &script); err != nil {
		return fmt.Errorf("failed to parse script JSON: %w", err)
	}

	e.script = &script
	return nil
}

// reply mirrors the bridge's C# result object.
type reply struct {
	Success bool    `json:"Success"`
	Data    any     `json:"Data"`
	Error   *string `json:"Error"`
}

// Run reads the command, answers it and returns the exit status.
func (e *MockEditor) Run(stdin io.Reader) int {
	e.logf("mockeditor session %s opened project %s", e.session, e.project)

	var cmd protocol.Command
	if err := ndjson.NewDecoder(stdin, e.logger).Decode(&cmd); err != nil {
		return e.send(failure(fmt.Sprintf("Failed to read command: %v", err)))
	}
	e.logf("executing %s via %s", cmd.Action, e.method)

	if e.script != nil {
		tmpl, ok := e.script.Responses[cmd.Action]
		if !ok {
			tmpl, ok = e.script.Responses["*"]
		}
		if ok {
			return e.scripted(tmpl)
		}
	}

	return e.send(e.handle(cmd))
}

func (e *MockEditor) scripted(tmpl ResponseTemplate) int {
	if tmpl.DelayMs > 0 {
		time.Sleep(time.Duration(tmpl.DelayMs) * time.Millisecond)
	}
	if tmpl.Stderr != "" {
		fmt.Fprint(e.stderr, tmpl.Stderr)
	}
	if tmpl.ExitCode != 0 {
		return tmpl.ExitCode
	}
	if tmpl.Raw != nil {
		fmt.Fprint(e.stdout, *tmpl.Raw)
		return 0
	}
	if tmpl.Success {
		return e.send(success(tmpl.Data))
	}
	return e.send(failure(tmpl.Error))
}

func (e *MockEditor) handle(cmd protocol.Command) reply {
	switch cmd.Action {
	case "project.scan":
		return e.scan()
	case "editor.exec":
		method, _ := cmd.Parameters["methodName"].(string)
		if method == "" {
			return failure("methodName is required")
		}
		return success(map[string]any{"method": method, "returned": nil})
	case "fail":
		msg, _ := cmd.Parameters["message"].(string)
		return failure(msg)
	default:
		return success(map[string]any{
			"action":     cmd.Action,
			"parameters": cmd.Parameters,
			"session":    e.session,
		})
	}
}

// scan counts scripts and scenes under Assets.
func (e *MockEditor) scan() reply {
	counts := map[string]int{"scripts": 0, "scenes": 0, "prefabs": 0}
	root := filepath.Join(e.project, "Assets")
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".cs":
			counts["scripts"]++
		case ".unity":
			counts["scenes"]++
		case ".prefab":
			counts["prefabs"]++
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return failure(fmt.Sprintf("scan failed: %v", err))
	}
	return success(map[string]any{"project": filepath.Base(e.project), "counts": counts})
}

func (e *MockEditor) send(r reply) int {
	if err := ndjson.NewEncoder(e.stdout, e.logger).Encode(r); err != nil {
		e.logger.Error("failed to write reply", "error", err)
		return 1
	}
	return 0
}

func (e *MockEditor) logf(format string, args ...any) {
	if e.log != nil {
		fmt.Fprintf(e.log, format+"\n", args...)
	}
}

func success(data any) reply {
	return reply{Success: true, Data: data}
}

func failure(msg string) reply {
	return reply{Success: false, Error: &msg}
}
