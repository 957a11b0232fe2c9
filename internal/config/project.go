package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotProject is returned when a directory lacks the project layout.
var ErrNotProject = errors.New("not an editor project")

// Layout names the two directories that make a directory a project.
type Layout struct {
	AssetsDir   string
	SettingsDir string
}

// DefaultLayout is the standard Assets/ProjectSettings layout.
var DefaultLayout = Layout{AssetsDir: "Assets", SettingsDir: "ProjectSettings"}

// Assets returns the assets root of project.
func (l Layout) Assets(project string) string {
	return filepath.Join(project, l.AssetsDir)
}

// Settings returns the settings root of project.
func (l Layout) Settings(project string) string {
	return filepath.Join(project, l.SettingsDir)
}

// Check reports why path is not a valid project, or nil when it is.
// The path must be an existing directory containing both the assets root
// and the settings root.
func (l Layout) Check(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: empty path", ErrNotProject)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotProject, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrNotProject, path)
	}

	for _, sub := range []string{l.AssetsDir, l.SettingsDir} {
		info, err := os.Stat(filepath.Join(path, sub))
		if err != nil {
			return fmt.Errorf("%w: missing %s", ErrNotProject, sub)
		}
		if !info.IsDir() {
			return fmt.Errorf("%w: %s is not a directory", ErrNotProject, sub)
		}
	}

	return nil
}

// ValidateProjectPath reports whether path is a project under the
// configured layout.
func (c *Config) ValidateProjectPath(path string) bool {
	return c.Layout().Check(path) == nil
}
