// Package release cross-compiles the gateway, smoke-tests native builds and
// writes dist/manifest.json next to a copy of the editor bridge script.
package release

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/iambrandonn/editorgate/internal/fsutil"
	"github.com/iambrandonn/editorgate/internal/supervisor"
)

// VersionSymbol is the linker symbol stamped with Options.Version.
const VersionSymbol = "github.com/iambrandonn/editorgate/internal/cli.Version"

// Target represents a GOOS/GOARCH pair to build for.
type Target struct {
	GOOS   string
	GOARCH string
}

func (t Target) String() string {
	return t.GOOS + "/" + t.GOARCH
}

// DefaultTargets covers the platforms the editor runs on.
var DefaultTargets = []Target{
	{GOOS: "darwin", GOARCH: "amd64"},
	{GOOS: "darwin", GOARCH: "arm64"},
	{GOOS: "linux", GOARCH: "amd64"},
	{GOOS: "linux", GOARCH: "arm64"},
	{GOOS: "windows", GOARCH: "amd64"},
}

// Binary is one main package to ship.
type Binary struct {
	Name    string
	Package string
}

// KnownBinaries are the main packages of this module that can ship.
var KnownBinaries = []Binary{
	{Name: "editorgate", Package: "./cmd/editorgate"},
	{Name: "mockeditor", Package: "./cmd/mockeditor"},
}

// DefaultBinaries is the gateway itself.
var DefaultBinaries = KnownBinaries[:1]

// LookupBinaries maps binary names onto KnownBinaries, keeping the order
// given and dropping repeats. No names selects DefaultBinaries.
func LookupBinaries(names []string) ([]Binary, error) {
	if len(names) == 0 {
		return append([]Binary(nil), DefaultBinaries...), nil
	}
	seen := make(map[string]bool, len(names))
	out := make([]Binary, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		found := false
		for _, bin := range KnownBinaries {
			if bin.Name == name {
				out = append(out, bin)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown binary %q", name)
		}
		seen[name] = true
	}
	return out, nil
}

// Options controls the release build.
type Options struct {
	// ProjectRoot is the directory containing go.mod. Defaults to CWD.
	ProjectRoot string
	// DistDir is where artifacts are written. Defaults to <ProjectRoot>/dist.
	DistDir  string
	Binaries []Binary
	Targets  []Target
	// Version is stamped into VersionSymbol when set.
	Version string
	// VersionSymbol overrides the linker symbol receiving Version.
	VersionSymbol string
	SkipSmoke     bool
	// SmokeArgs are passed to each native binary. Defaults to "version".
	SmokeArgs []string
	Logger    *slog.Logger
}

// Manifest captures release metadata.
type Manifest struct {
	BuiltAt   time.Time        `json:"built_at"`
	Version   string           `json:"version,omitempty"`
	GoVersion string           `json:"go_version"`
	GitCommit string           `json:"git_commit"`
	Bridge    BridgeArtifact   `json:"bridge"`
	Targets   []TargetArtifact `json:"targets"`
}

// BridgeArtifact is the bridge script shipped for manual installation.
type BridgeArtifact struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// TargetArtifact describes a built binary.
type TargetArtifact struct {
	Name   string       `json:"name"`
	OS     string       `json:"os"`
	Arch   string       `json:"arch"`
	Binary string       `json:"binary"`
	Size   int64        `json:"size"`
	SHA256 string       `json:"sha256"`
	Smoke  SmokeOutcome `json:"smoke"`
}

// SmokeOutcome records the result of running the smoke command.
type SmokeOutcome struct {
	Status        string   `json:"status"` // passed, failed, skipped
	Command       []string `json:"command"`
	Output        string   `json:"output,omitempty"`
	Error         string   `json:"error,omitempty"`
	SkippedReason string   `json:"skipped_reason,omitempty"`
}

// Build assembles release binaries and writes a manifest.
func Build(ctx context.Context, opts Options) (*Manifest, error) {
	if err := opts.applyDefaults(); err != nil {
		return nil, err
	}

	logger := opts.logger()
	logger.Info("starting release build", "dist", opts.DistDir, "binaries", len(opts.Binaries), "targets", len(opts.Targets))

	if err := os.MkdirAll(opts.DistDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create dist directory: %w", err)
	}

	goVersion, err := detectGoVersion(ctx, opts.ProjectRoot)
	if err != nil {
		return nil, err
	}

	gitCommit := detectGitCommit(ctx, opts.ProjectRoot)
	if gitCommit == "unknown" {
		logger.Warn("git commit could not be determined", "project_root", opts.ProjectRoot)
	}

	bridge, err := writeBridge(opts)
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{
		BuiltAt:   time.Now().UTC(),
		Version:   opts.Version,
		GoVersion: goVersion,
		GitCommit: gitCommit,
		Bridge:    bridge,
	}

	for _, target := range opts.Targets {
		for _, bin := range opts.Binaries {
			artifact, err := buildTarget(ctx, opts, bin, target, logger)
			if err != nil {
				return nil, err
			}
			manifest.Targets = append(manifest.Targets, *artifact)
		}
	}

	manifestPath := filepath.Join(opts.DistDir, "manifest.json")
	if err := fsutil.AtomicWriteJSON(manifestPath, manifest); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	logger.Info("release build complete", "artifacts", len(manifest.Targets))
	return manifest, nil
}

func (opts *Options) applyDefaults() error {
	if opts.ProjectRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to determine working directory: %w", err)
		}
		opts.ProjectRoot = wd
	}

	if opts.DistDir == "" {
		opts.DistDir = filepath.Join(opts.ProjectRoot, "dist")
	} else if !filepath.IsAbs(opts.DistDir) {
		opts.DistDir = filepath.Join(opts.ProjectRoot, opts.DistDir)
	}

	if len(opts.Targets) == 0 {
		opts.Targets = append([]Target(nil), DefaultTargets...)
	}
	if len(opts.Binaries) == 0 {
		opts.Binaries = append([]Binary(nil), DefaultBinaries...)
	}
	if len(opts.SmokeArgs) == 0 {
		opts.SmokeArgs = []string{"version"}
	}
	if opts.VersionSymbol == "" {
		opts.VersionSymbol = VersionSymbol
	}

	return nil
}

func (opts *Options) logger() *slog.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func (opts *Options) rel(path string) string {
	if rel, err := filepath.Rel(opts.ProjectRoot, path); err == nil {
		return rel
	}
	return path
}

func writeBridge(opts Options) (BridgeArtifact, error) {
	path := filepath.Join(opts.DistDir, supervisor.BridgeFileName)
	if err := fsutil.AtomicWriteMode(path, supervisor.BridgeSource, 0o644); err != nil {
		return BridgeArtifact{}, fmt.Errorf("failed to write bridge script: %w", err)
	}
	return BridgeArtifact{
		Path:   opts.rel(path),
		SHA256: fsutil.Digest(supervisor.BridgeSource),
	}, nil
}

func buildTarget(ctx context.Context, opts Options, bin Binary, target Target, logger *slog.Logger) (*TargetArtifact, error) {
	logger.Info("building target", "binary", bin.Name, "target", target)

	targetDir := filepath.Join(opts.DistDir, fmt.Sprintf("%s-%s", target.GOOS, target.GOARCH))
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create target directory %s: %w", targetDir, err)
	}

	cacheDir := filepath.Join(targetDir, ".gocache")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create build cache directory: %w", err)
	}
	defer os.RemoveAll(cacheDir)

	binaryName := bin.Name
	if target.GOOS == "windows" {
		binaryName += ".exe"
	}
	binaryPath := filepath.Join(targetDir, binaryName)

	// Remove existing binary to avoid stale artifacts.
	_ = os.Remove(binaryPath)

	args := []string{"build", "-trimpath", "-o", binaryPath}
	if opts.Version != "" {
		args = append(args, "-ldflags", fmt.Sprintf("-X %s=%s", opts.VersionSymbol, opts.Version))
	}
	args = append(args, bin.Package)

	buildCmd := exec.CommandContext(ctx, "go", args...)
	buildCmd.Dir = opts.ProjectRoot
	env := os.Environ()
	env = setEnv(env, "CGO_ENABLED", "0")
	env = setEnv(env, "GOOS", target.GOOS)
	env = setEnv(env, "GOARCH", target.GOARCH)
	env = setEnv(env, "GOCACHE", cacheDir)
	buildCmd.Env = env

	var stderr bytes.Buffer
	buildCmd.Stderr = &stderr

	if err := buildCmd.Run(); err != nil {
		return nil, fmt.Errorf("go build %s failed for %s: %w\n%s", bin.Package, target, err, stderr.String())
	}

	info, err := os.Stat(binaryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat binary: %w", err)
	}

	sum, err := fsutil.FileDigest(binaryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to compute checksum: %w", err)
	}

	relBinary := opts.rel(binaryPath)
	command := append([]string{relBinary}, opts.SmokeArgs...)

	var smoke SmokeOutcome
	if opts.SkipSmoke {
		smoke = SmokeOutcome{Status: "skipped", SkippedReason: "smoke tests disabled"}
	} else {
		smoke = runSmoke(ctx, opts, binaryPath, target)
	}
	smoke.Command = command

	return &TargetArtifact{
		Name:   bin.Name,
		OS:     target.GOOS,
		Arch:   target.GOARCH,
		Binary: relBinary,
		Size:   info.Size(),
		SHA256: sum,
		Smoke:  smoke,
	}, nil
}

func detectGoVersion(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "go", "env", "GOVERSION")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to determine Go version: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func detectGitCommit(ctx context.Context, dir string) string {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

func runSmoke(ctx context.Context, opts Options, binaryPath string, target Target) SmokeOutcome {
	var result SmokeOutcome

	if target.GOOS != runtime.GOOS {
		result.Status = "skipped"
		result.SkippedReason = "non-native operating system"
		return result
	}
	if target.GOARCH != runtime.GOARCH {
		result.Status = "skipped"
		result.SkippedReason = "non-native architecture"
		return result
	}

	cmd := exec.CommandContext(ctx, binaryPath, opts.SmokeArgs...)
	cmd.Dir = opts.ProjectRoot
	cmd.Env = os.Environ()

	output, err := cmd.CombinedOutput()
	result.Output = string(output)

	if err != nil {
		result.Status = "failed"
		result.Error = err.Error()
	} else {
		result.Status = "passed"
	}

	return result
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
