package config

import (
	"os"
	"path/filepath"
)

// FileNames lists the config file names searched for, in priority order.
var FileNames = []string{"editorgate.yaml", "editorgate.yml", "editorgate.json"}

// Find walks up from dir looking for a config file and returns its path,
// or "" when none exists up to the filesystem root.
func Find(dir string) string {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		for _, name := range FileNames {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Load resolves the effective configuration: defaults, then the file at
// path (or a discovered file when path is empty), then the environment.
func Load(path, workDir string, lookup func(string) (string, bool)) (*Config, string, error) {
	if path == "" {
		path = Find(workDir)
	}

	cfg := GenerateDefault()
	if path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, "", err
		}
		cfg = loaded
	}

	if lookup != nil {
		if err := cfg.ApplyEnv(lookup); err != nil {
			return nil, "", err
		}
	}

	return cfg, path, nil
}
