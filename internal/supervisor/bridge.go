package supervisor

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/iambrandonn/editorgate/internal/config"
	"github.com/iambrandonn/editorgate/internal/editorerr"
	"github.com/iambrandonn/editorgate/internal/fsutil"
)

// BridgeSource is the editor-side script that reads one command from
// stdin and writes one result to stdout.
//
//go:embed bridge/MCPBridge.cs
var BridgeSource []byte

// BridgeFileName is the script name inside a project's editor folder.
const BridgeFileName = "MCPBridge.cs"

func writeBridgeScript(dir string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	name := fmt.Sprintf("editorgate_bridge_%s.cs", uuid.New().String()[:8])
	path := filepath.Join(dir, name)

	if err := fsutil.AtomicWriteMode(path, BridgeSource, 0644); err != nil {
		return "", fmt.Errorf("failed to write bridge script: %w", err)
	}
	return path, nil
}

// InstallResult reports what InstallBridge did.
type InstallResult struct {
	Path    string `json:"path"`
	Digest  string `json:"digest"`
	Changed bool   `json:"changed"`
}

// InstallBridge copies the bridge script into <assets>/Editor of a
// project. An identical existing copy is left untouched.
func InstallBridge(layout config.Layout, projectPath string) (InstallResult, error) {
	if err := layout.Check(projectPath); err != nil {
		return InstallResult{}, editorerr.NewProjectInvalid(projectPath, err)
	}

	dest := filepath.Join(layout.Assets(projectPath), "Editor", BridgeFileName)
	want := fsutil.Digest(BridgeSource)
	result := InstallResult{Path: dest, Digest: want}

	if got, err := fsutil.FileDigest(dest); err == nil && got == want {
		return result, nil
	}

	if err := fsutil.AtomicWriteMode(dest, BridgeSource, 0644); err != nil {
		return InstallResult{}, fmt.Errorf("failed to install bridge: %w", err)
	}
	result.Changed = true
	return result, nil
}
