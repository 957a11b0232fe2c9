package testharness

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// BuildBinaries compiles the editorgate and mockeditor binaries into
// outputDir and returns their paths.
func BuildBinaries(ctx context.Context, projectRoot, outputDir string) (string, string, error) {
	if projectRoot == "" {
		return "", "", fmt.Errorf("project root is required")
	}
	if outputDir == "" {
		return "", "", fmt.Errorf("output directory is required")
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create output directory: %w", err)
	}

	gatewayPath := filepath.Join(outputDir, exeName("editorgate"))
	editorPath := filepath.Join(outputDir, exeName("mockeditor"))

	if err := runGoBuild(ctx, projectRoot, gatewayPath, "./cmd/editorgate"); err != nil {
		return "", "", err
	}
	if err := runGoBuild(ctx, projectRoot, editorPath, "./cmd/mockeditor"); err != nil {
		return "", "", err
	}

	return gatewayPath, editorPath, nil
}

func runGoBuild(ctx context.Context, projectRoot, outputPath, pkg string) error {
	cmd := exec.CommandContext(ctx, "go", "build", "-trimpath", "-o", outputPath, pkg)
	cmd.Dir = projectRoot

	env := os.Environ()
	cmd.Env = setEnv(env, "CGO_ENABLED", "0")

	if combined, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("go build %s failed: %w\n%s", pkg, err, string(combined))
	}
	return nil
}

func exeName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	for i, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			env[i] = prefix + value
			return env
		}
	}
	return append(env, prefix+value)
}
