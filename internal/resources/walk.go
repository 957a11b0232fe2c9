package resources

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultIgnoredDirs are skipped by every scan. Library holds the
// editor's import cache and can be enormous.
var DefaultIgnoredDirs = []string{".git", "Library", "Temp", "obj", "node_modules"}

// FileInfo is one file found by a scan.
type FileInfo struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Extension    string    `json:"extension"`
	SizeBytes    int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified"`
}

// walkOptions configures a deterministic directory walk.
type walkOptions struct {
	// Extensions keeps only these lowercased extensions. Empty keeps all.
	Extensions []string
	IgnoreDirs []string
	// RelativeTo is the base for FileInfo.Path. Defaults to the walk root.
	RelativeTo string
}

// walkFiles lists regular files under dir in lexical order, skipping
// hidden entries and ignored directories. A missing dir yields nothing.
func walkFiles(dir string, opts walkOptions) ([]FileInfo, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	base := opts.RelativeTo
	if base == "" {
		base = dir
	}
	ignore := make(map[string]struct{}, len(opts.IgnoreDirs))
	for _, name := range opts.IgnoreDirs {
		ignore[name] = struct{}{}
	}
	exts := make(map[string]struct{}, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		exts[strings.ToLower(ext)] = struct{}{}
	}

	var files []FileInfo
	if err := walk(dir, base, ignore, exts, &files); err != nil {
		return nil, err
	}
	return files, nil
}

func walk(dir, base string, ignore, exts map[string]struct{}, files *[]FileInfo) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(dir, name)

		if entry.IsDir() {
			if _, ignored := ignore[name]; ignored {
				continue
			}
			if err := walk(full, base, ignore, exts, files); err != nil {
				return err
			}
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(name))
		if len(exts) > 0 {
			if _, ok := exts[ext]; !ok {
				continue
			}
		}

		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat %s: %w", full, err)
		}
		rel, err := filepath.Rel(base, full)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", full, err)
		}

		*files = append(*files, FileInfo{
			Name:         name,
			Path:         filepath.ToSlash(rel),
			Extension:    ext,
			SizeBytes:    info.Size(),
			LastModified: info.ModTime().UTC(),
		})
	}
	return nil
}
