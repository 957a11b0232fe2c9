package fsutil

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestAtomicWrite(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name     string
		path     string
		data     []byte
		existing bool
	}{
		{name: "write to new file", path: filepath.Join(tmpDir, "new.txt"), data: []byte("hello world")},
		{name: "overwrite existing file", path: filepath.Join(tmpDir, "existing.txt"), data: []byte("updated content"), existing: true},
		{name: "write empty file", path: filepath.Join(tmpDir, "empty.txt"), data: []byte{}},
		{name: "write to nested directory", path: filepath.Join(tmpDir, "nested", "deep", "file.txt"), data: []byte("nested content")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.existing {
				if err := os.WriteFile(tt.path, []byte("original"), 0600); err != nil {
					t.Fatalf("failed to create initial file: %v", err)
				}
			}

			if err := AtomicWrite(tt.path, tt.data); err != nil {
				t.Fatalf("AtomicWrite() error = %v", err)
			}

			got, err := os.ReadFile(tt.path)
			if err != nil {
				t.Fatalf("failed to read file: %v", err)
			}
			if string(got) != string(tt.data) {
				t.Errorf("content = %q, want %q", got, tt.data)
			}

			info, err := os.Stat(tt.path)
			if err != nil {
				t.Fatalf("failed to stat file: %v", err)
			}
			if info.Mode().Perm() != 0600 {
				t.Errorf("permissions = %o, want 0600", info.Mode().Perm())
			}
		})
	}
}

func TestAtomicWriteModeAndNoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Bridge.cs")

	if err := AtomicWriteMode(path, []byte("class A {}"), 0644); err != nil {
		t.Fatalf("AtomicWriteMode() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("permissions = %o, want 0644", info.Mode().Perm())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp.") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestAtomicWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	if err := AtomicWriteJSON(path, map[string]int{"count": 3}); err != nil {
		t.Fatalf("AtomicWriteJSON() error = %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "{\n  \"count\": 3\n}\n" {
		t.Errorf("unexpected content %q", got)
	}

	if err := AtomicWriteJSON(path, nil); err == nil {
		t.Error("expected error for nil value")
	}
}

func TestAtomicWriteConcurrency(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.txt")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := AtomicWrite(path, []byte(fmt.Sprintf("writer-%d", n))); err != nil {
				t.Errorf("writer %d: %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(got), "writer-") {
		t.Errorf("torn write: %q", got)
	}
}

func TestDigest(t *testing.T) {
	data := []byte("hello")
	want := fmt.Sprintf("sha256:%x", sha256.Sum256(data))

	if got := Digest(data); got != want {
		t.Errorf("Digest() = %s, want %s", got, want)
	}

	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
	got, err := FileDigest(path)
	if err != nil {
		t.Fatalf("FileDigest() error = %v", err)
	}
	if got != want {
		t.Errorf("FileDigest() = %s, want %s", got, want)
	}

	if _, err := FileDigest(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestResolveWithin(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "Assets", "Scenes"), 0755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		rel     string
		wantErr bool
	}{
		{name: "simple", rel: "Assets/Scenes"},
		{name: "missing target", rel: "Assets/New.unity"},
		{name: "dot dot inside", rel: "Assets/../Assets/Scenes"},
		{name: "escape", rel: "../outside", wantErr: true},
		{name: "absolute", rel: "/etc/passwd", wantErr: true},
		{name: "dotdot-prefixed name", rel: "..hidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveWithin(root, tt.rel)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveWithin(%q) error = %v, wantErr %v", tt.rel, err, tt.wantErr)
			}
			if err == nil && !filepath.IsAbs(got) {
				t.Errorf("expected absolute path, got %s", got)
			}
		})
	}
}

func TestResolveWithinSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	link := filepath.Join(root, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	if _, err := ResolveWithin(root, "link"); err == nil {
		t.Fatal("expected symlink escape to be rejected")
	}
}

func TestReadTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Editor.log")
	var b strings.Builder
	for i := 1; i <= 20; i++ {
		fmt.Fprintf(&b, "line %d\r\n", i)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		t.Fatal(err)
	}

	lines, err := ReadTail(path, 3, 1<<20)
	if err != nil {
		t.Fatalf("ReadTail() error = %v", err)
	}
	want := []string{"line 18", "line 19", "line 20"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Errorf("ReadTail() = %v, want %v", lines, want)
	}

	// A byte cap that starts mid-line drops the partial first line
	lines, err = ReadTail(path, 100, 20)
	if err != nil {
		t.Fatalf("ReadTail() error = %v", err)
	}
	for _, l := range lines {
		if !strings.HasPrefix(l, "line ") {
			t.Errorf("partial line returned: %q", l)
		}
	}

	empty := filepath.Join(t.TempDir(), "empty.log")
	if err := os.WriteFile(empty, nil, 0600); err != nil {
		t.Fatal(err)
	}
	lines, err = ReadTail(empty, 10, 1024)
	if err != nil || len(lines) != 0 {
		t.Errorf("ReadTail(empty) = %v, %v", lines, err)
	}
}

func TestPolicy(t *testing.T) {
	allowed := t.TempDir()
	p := Policy{
		AllowedPaths:      []string{allowed},
		BlockedExtensions: []string{".exe", ".dll"},
	}

	if err := p.CheckExtension("Build/Game.EXE"); !errors.Is(err, ErrBlockedExtension) {
		t.Errorf("expected blocked extension, got %v", err)
	}
	if err := p.CheckExtension("Assets/Player.cs"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := p.CheckExtension("Makefile"); err != nil {
		t.Errorf("unexpected error for extensionless path: %v", err)
	}

	if err := p.CheckLocation(allowed, "Assets/Player.cs"); err != nil {
		t.Errorf("relative path under allowed root rejected: %v", err)
	}
	if err := p.CheckLocation(allowed, filepath.Join(allowed, "Builds")); err != nil {
		t.Errorf("absolute path under allowed root rejected: %v", err)
	}
	if err := p.CheckLocation(allowed, "../elsewhere"); !errors.Is(err, ErrOutsideAllowed) {
		t.Errorf("expected outside allowed, got %v", err)
	}

	if err := p.CheckFile(allowed, "Plugins/native.dll"); !errors.Is(err, ErrBlockedExtension) {
		t.Errorf("CheckFile should apply the extension rule, got %v", err)
	}

	open := Policy{}
	if err := open.CheckFile("/", "/anywhere/at/all.txt"); err != nil {
		t.Errorf("empty policy should allow everything: %v", err)
	}
}
