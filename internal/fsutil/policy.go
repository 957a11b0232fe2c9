package fsutil

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrBlockedExtension is returned for paths whose extension is blocked.
	ErrBlockedExtension = errors.New("file extension is blocked")
	// ErrOutsideAllowed is returned for paths outside every allowed root.
	ErrOutsideAllowed = errors.New("path is outside the allowed paths")
)

// Policy restricts which filesystem paths operations may name.
// An empty AllowedPaths list allows every location.
type Policy struct {
	AllowedPaths      []string
	BlockedExtensions []string
}

// CheckLocation rejects an absolute-or-relative path that falls outside
// the allowed roots. Relative paths are resolved against base.
func (p Policy) CheckLocation(base, path string) error {
	if len(p.AllowedPaths) == 0 {
		return nil
	}

	target := path
	if !filepath.IsAbs(target) {
		target = filepath.Join(base, target)
	}
	target, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	for _, root := range p.AllowedPaths {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(rootAbs, target)
		if err == nil && !escapes(rel) {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrOutsideAllowed, path)
}

// CheckExtension rejects paths with a blocked extension. Matching is
// case-insensitive.
func (p Policy) CheckExtension(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return nil
	}
	for _, blocked := range p.BlockedExtensions {
		if strings.ToLower(blocked) == ext {
			return fmt.Errorf("%w: %s", ErrBlockedExtension, path)
		}
	}
	return nil
}

// CheckFile applies both the location and the extension rules.
func (p Policy) CheckFile(base, path string) error {
	if err := p.CheckExtension(path); err != nil {
		return err
	}
	return p.CheckLocation(base, path)
}
