package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iambrandonn/editorgate/internal/release"
)

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Build release binaries and manifest",
	Long: `Cross-compile editorgate (and optionally the mock editor) for the
platforms the editor runs on, smoke-test native builds, and write
dist/manifest.json next to a copy of the bridge script.`,
	Args: cobra.NoArgs,
	RunE: runRelease,
}

func init() {
	releaseCmd.Flags().String("dist", "dist", "Output directory for release artifacts (relative to the module root or absolute)")
	releaseCmd.Flags().Bool("skip-smoke", false, "Skip running smoke tests against built binaries")
	releaseCmd.Flags().StringSlice("target", nil, "Limit builds to GOOS/GOARCH pairs (e.g., windows/amd64)")
	releaseCmd.Flags().StringSlice("binary", nil, "Binaries to build: editorgate, mockeditor (default editorgate)")
	releaseCmd.Flags().String("version", "", "Version stamped into the binaries")
	rootCmd.AddCommand(releaseCmd)
}

func runRelease(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	moduleRoot, err := findModuleRoot(wd)
	if err != nil {
		return err
	}
	logger.Info("module root detected", "path", moduleRoot)

	opts, err := releaseOptions(cmd, moduleRoot)
	if err != nil {
		return err
	}
	opts.Logger = logger

	manifest, err := release.Build(commandContext(cmd), opts)
	if err != nil {
		return err
	}

	logger.Info("manifest written", "path", filepath.Join(opts.DistDir, "manifest.json"), "bridge", manifest.Bridge.Path)
	return printArtifacts(cmd.OutOrStdout(), manifest)
}

// releaseOptions maps the release flags onto release.Options.
func releaseOptions(cmd *cobra.Command, moduleRoot string) (release.Options, error) {
	flags := cmd.Flags()
	opts := release.Options{ProjectRoot: moduleRoot}

	var err error
	if opts.DistDir, err = flags.GetString("dist"); err != nil {
		return opts, err
	}
	if opts.SkipSmoke, err = flags.GetBool("skip-smoke"); err != nil {
		return opts, err
	}
	if opts.Version, err = flags.GetString("version"); err != nil {
		return opts, err
	}

	targets, err := flags.GetStringSlice("target")
	if err != nil {
		return opts, err
	}
	if opts.Targets, err = parseReleaseTargets(targets); err != nil {
		return opts, err
	}

	names, err := flags.GetStringSlice("binary")
	if err != nil {
		return opts, err
	}
	if opts.Binaries, err = release.LookupBinaries(names); err != nil {
		return opts, err
	}
	return opts, nil
}

func parseReleaseTargets(values []string) ([]release.Target, error) {
	var targets []release.Target
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		goos, goarch, ok := strings.Cut(value, "/")
		if !ok || goos == "" || goarch == "" || strings.Contains(goarch, "/") {
			return nil, fmt.Errorf("invalid target %q (expected format GOOS/GOARCH)", value)
		}
		targets = append(targets, release.Target{GOOS: goos, GOARCH: goarch})
	}
	return targets, nil
}

func printArtifacts(w io.Writer, manifest *release.Manifest) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BINARY\tTARGET\tPATH\tSHA256\tSMOKE")
	for _, a := range manifest.Targets {
		fmt.Fprintf(tw, "%s\t%s/%s\t%s\t%s\t%s\n", a.Name, a.OS, a.Arch, a.Binary, a.SHA256, a.Smoke.Status)
	}
	fmt.Fprintf(tw, "bridge\t-\t%s\t%s\t-\n", manifest.Bridge.Path, manifest.Bridge.SHA256)
	return tw.Flush()
}

// findModuleRoot walks up from dir to the directory holding go.mod.
func findModuleRoot(dir string) (string, error) {
	start := dir
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found (starting from %s)", start)
		}
		dir = parent
	}
}
