package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/iambrandonn/editorgate/internal/catalog"
	"github.com/iambrandonn/editorgate/internal/config"
	"github.com/iambrandonn/editorgate/internal/prompts"
	"github.com/iambrandonn/editorgate/internal/server"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and environment without serving",
	Long: `Check the configuration file, the editor executable, the editor log
directory, the default project and the enabled tools and prompts. Exits
non-zero when any check fails.`,
	RunE: runValidate,
}

// check is one validate line.
type check struct {
	name   string
	detail string
	err    error
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, cfgPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	checks := validateConfig(cfg)
	checks = append([]check{{name: "config file", detail: displayPath(cfgPath)}}, checks...)

	failed := printChecks(cmd.OutOrStdout(), checks)
	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func validateConfig(cfg *config.Config) []check {
	var checks []check

	checks = append(checks, check{name: "configuration", detail: "valid", err: cfg.Validate()})
	checks = append(checks, checkEditor(cfg.EditorPath()))
	checks = append(checks, checkLogDir(cfg.Editor.LogFile))

	if project := cfg.Project.DefaultPath; project != "" {
		checks = append(checks, check{name: "default project", detail: project, err: cfg.Layout().Check(project)})
	} else {
		checks = append(checks, check{name: "default project", detail: "not set, clients must pass project_path"})
	}

	cat, err := catalog.New(server.OptionsFromConfig(cfg).Catalog)
	if err != nil {
		checks = append(checks, check{name: "tools", err: err})
	} else {
		checks = append(checks, check{name: "tools", detail: fmt.Sprintf("%d enabled", len(cat.Operations()))})
	}

	reg, err := prompts.New(cfg.Features.Prompts)
	if err != nil {
		checks = append(checks, check{name: "prompts", err: err})
	} else {
		checks = append(checks, check{name: "prompts", detail: fmt.Sprintf("%d enabled", len(reg.Prompts()))})
	}

	return checks
}

func checkEditor(path string) check {
	c := check{name: "editor", detail: path}
	info, err := os.Stat(path)
	switch {
	case err != nil:
		c.err = fmt.Errorf("editor not found: %w", err)
	case info.IsDir():
		c.err = fmt.Errorf("editor path %s is a directory", path)
	case runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0:
		c.err = fmt.Errorf("editor %s is not executable", path)
	}
	return c
}

func checkLogDir(logFile string) check {
	dir := filepath.Dir(logFile)
	c := check{name: "editor log directory", detail: dir}
	info, err := os.Stat(dir)
	switch {
	case err != nil:
		c.err = err
	case !info.IsDir():
		c.err = fmt.Errorf("%s is not a directory", dir)
	}
	return c
}

func printChecks(w io.Writer, checks []check) int {
	failed := 0
	for _, c := range checks {
		if c.err != nil {
			failed++
			fmt.Fprintf(w, "[fail] %s: %v\n", c.name, c.err)
			continue
		}
		fmt.Fprintf(w, "[ok]   %s: %s\n", c.name, c.detail)
	}
	return failed
}
