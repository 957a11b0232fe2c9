// Package resources builds the read-only views of a project that clients
// browse: project metadata, scenes, assets, logs and the operation list.
package resources

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iambrandonn/editorgate/internal/config"
	"github.com/iambrandonn/editorgate/internal/fsutil"
	"github.com/iambrandonn/editorgate/internal/journal"
	"github.com/iambrandonn/editorgate/internal/tracker"
)

// MaxFilesPerCategory caps each asset category listing.
const MaxFilesPerCategory = 50

// Log tail sizes.
const (
	projectLogLines = 10
	editorLogLines  = 20
	maxTailBytes    = 256 << 10
)

// UnknownVersion is reported when ProjectVersion.txt is missing or unreadable.
const UnknownVersion = "Unknown"

// KnownDirectories are reported as present or absent in ProjectInfo.
var KnownDirectories = []string{"Assets", "ProjectSettings", "Packages", "Library", "Logs"}

// AssetCategories maps category names to file extensions. Files matching
// none are counted as "other".
var AssetCategories = []struct {
	Name       string
	Extensions []string
}{
	{"scripts", []string{".cs"}},
	{"prefabs", []string{".prefab"}},
	{"materials", []string{".mat"}},
	{"textures", []string{".png", ".jpg", ".jpeg", ".tga", ".psd", ".tiff"}},
	{"audio", []string{".wav", ".mp3", ".ogg", ".aiff"}},
	{"models", []string{".fbx", ".obj", ".dae", ".3ds", ".blend"}},
}

// Browser reads project data straight from disk; it never starts the
// editor.
type Browser struct {
	layout        config.Layout
	editorLogFile string
	logger        *slog.Logger
}

// New creates a browser. editorLogFile is the log the gateway passes to
// the editor with -logFile; it is included in log views when present.
func New(layout config.Layout, editorLogFile string, logger *slog.Logger) *Browser {
	if layout == (config.Layout{}) {
		layout = config.DefaultLayout
	}
	return &Browser{layout: layout, editorLogFile: editorLogFile, logger: logger}
}

// ProjectSettings holds the values scraped from ProjectSettings.asset.
type ProjectSettings struct {
	CompanyName   string `json:"company_name,omitempty"`
	ProductName   string `json:"product_name,omitempty"`
	BundleVersion string `json:"bundle_version,omitempty"`
}

// ProjectInfo describes one project.
type ProjectInfo struct {
	Name           string          `json:"name"`
	Path           string          `json:"path"`
	EditorVersion  string          `json:"editor_version"`
	EditorRevision string          `json:"editor_revision,omitempty"`
	Settings       ProjectSettings `json:"project_settings"`
	Directories    map[string]bool `json:"directories"`
	LastModified   time.Time       `json:"last_modified"`
	ResourceType   string          `json:"resource_type"`
}

// projectVersion is the YAML shape of ProjectSettings/ProjectVersion.txt.
type projectVersion struct {
	EditorVersion             string `yaml:"m_EditorVersion"`
	EditorVersionWithRevision string `yaml:"m_EditorVersionWithRevision"`
}

// Project returns metadata for the project at path.
func (b *Browser) Project(path string) (*ProjectInfo, error) {
	if err := b.check(path); err != nil {
		return nil, err
	}

	info := &ProjectInfo{
		Name:          filepath.Base(filepath.Clean(path)),
		Path:          path,
		EditorVersion: UnknownVersion,
		Directories:   make(map[string]bool, len(KnownDirectories)),
		ResourceType:  "unity_project",
	}

	if st, err := os.Stat(path); err == nil {
		info.LastModified = st.ModTime().UTC()
	}
	for _, dir := range KnownDirectories {
		st, err := os.Stat(filepath.Join(path, dir))
		info.Directories[dir] = err == nil && st.IsDir()
	}

	if v, err := readProjectVersion(b.settingsFile(path, "ProjectVersion.txt")); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			b.logger.Warn("could not read editor version", "project", path, "error", err)
		}
	} else {
		info.EditorVersion = v.EditorVersion
		info.EditorRevision = v.EditorVersionWithRevision
	}

	values, err := scrapeKeys(b.settingsFile(path, "ProjectSettings.asset"), "companyName", "productName", "bundleVersion")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		b.logger.Warn("could not parse ProjectSettings.asset", "project", path, "error", err)
	}
	info.Settings = ProjectSettings{
		CompanyName:   values["companyName"],
		ProductName:   values["productName"],
		BundleVersion: values["bundleVersion"],
	}

	return info, nil
}

func readProjectVersion(path string) (projectVersion, error) {
	if path == "" {
		return projectVersion{}, os.ErrNotExist
	}
	var v projectVersion
	data, err := os.ReadFile(path)
	if err != nil {
		return v, err
	}
	if err := yaml.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if v.EditorVersion == "" {
		return v, fmt.Errorf("%s has no m_EditorVersion", filepath.Base(path))
	}
	return v, nil
}

// scrapeKeys returns the first "key: value" occurrence of each key in a
// serialized editor asset. Asset files use custom YAML tags that generic
// decoders reject, so they are read line by line.
func scrapeKeys(path string, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	err := scanLines(path, func(line string) bool {
		trimmed := strings.TrimSpace(line)
		for _, key := range keys {
			if _, done := out[key]; done {
				continue
			}
			if v, ok := strings.CutPrefix(trimmed, key+":"); ok {
				out[key] = strings.TrimSpace(v)
			}
		}
		return len(out) < len(keys)
	})
	return out, err
}

func scanLines(path string, fn func(line string) bool) error {
	if path == "" {
		return os.ErrNotExist
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if !fn(scanner.Text()) {
			return nil
		}
	}
	return scanner.Err()
}

// SceneInfo is one scene file.
type SceneInfo struct {
	FileInfo
	InBuild bool `json:"in_build"`
}

// BuildScene is one entry of the build scene list.
type BuildScene struct {
	Path    string `json:"path"`
	Enabled bool   `json:"enabled"`
}

// Scenes lists the scenes of a project.
type Scenes struct {
	SceneFiles    []SceneInfo  `json:"scene_files"`
	BuildScenes   []BuildScene `json:"build_scenes"`
	TotalScenes   int          `json:"total_scenes"`
	ScenesInBuild int          `json:"scenes_in_build"`
	ResourceType  string       `json:"resource_type"`
}

// Scenes returns the scene files under the assets root and the build
// scene list from EditorBuildSettings.asset.
func (b *Browser) Scenes(path string) (*Scenes, error) {
	if err := b.check(path); err != nil {
		return nil, err
	}

	root, err := fsutil.ResolveWithin(path, ".")
	if err != nil {
		return nil, err
	}
	assets, err := fsutil.ResolveWithin(path, b.layout.AssetsDir)
	if err != nil {
		return nil, fmt.Errorf("assets root: %w", err)
	}

	files, err := walkFiles(assets, walkOptions{
		Extensions: []string{".unity"},
		IgnoreDirs: DefaultIgnoredDirs,
		RelativeTo: root,
	})
	if err != nil {
		return nil, err
	}

	build, err := readBuildScenes(b.settingsFile(path, "EditorBuildSettings.asset"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		b.logger.Warn("could not parse EditorBuildSettings.asset", "project", path, "error", err)
	}
	inBuild := make(map[string]bool, len(build))
	for _, s := range build {
		inBuild[s.Path] = true
	}

	out := &Scenes{
		SceneFiles:   make([]SceneInfo, 0, len(files)),
		BuildScenes:  build,
		ResourceType: "unity_scenes",
	}
	if out.BuildScenes == nil {
		out.BuildScenes = []BuildScene{}
	}
	for _, f := range files {
		out.SceneFiles = append(out.SceneFiles, SceneInfo{FileInfo: f, InBuild: inBuild[f.Path]})
	}
	out.TotalScenes = len(out.SceneFiles)
	out.ScenesInBuild = len(out.BuildScenes)
	return out, nil
}

// readBuildScenes scrapes the m_Scenes list:
//
//	- enabled: 1
//	  path: Assets/Scenes/Main.unity
func readBuildScenes(path string) ([]BuildScene, error) {
	var scenes []BuildScene
	enabled := true
	err := scanLines(path, func(line string) bool {
		trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "- "))
		if v, ok := strings.CutPrefix(trimmed, "enabled:"); ok {
			enabled = strings.TrimSpace(v) != "0"
			return true
		}
		if v, ok := strings.CutPrefix(trimmed, "path:"); ok {
			p := strings.TrimSpace(v)
			if strings.HasSuffix(p, ".unity") {
				scenes = append(scenes, BuildScene{Path: p, Enabled: enabled})
			}
			enabled = true
		}
		return true
	})
	return scenes, err
}

// AssetStatistics summarizes an asset scan.
type AssetStatistics struct {
	TotalFiles     int            `json:"total_files"`
	TotalSizeBytes int64          `json:"total_size_bytes"`
	TotalSizeMB    float64        `json:"total_size_mb"`
	ByCategory     map[string]int `json:"by_category"`
}

// Assets categorizes the files under a project's assets root.
type Assets struct {
	Categories   map[string][]FileInfo `json:"asset_summary"`
	Omitted      map[string]int        `json:"omitted,omitempty"`
	Statistics   AssetStatistics       `json:"statistics"`
	ResourceType string                `json:"resource_type"`
}

// Assets scans the assets root. Editor .meta sidecar files are skipped.
func (b *Browser) Assets(path string) (*Assets, error) {
	if err := b.check(path); err != nil {
		return nil, err
	}

	assets, err := fsutil.ResolveWithin(path, b.layout.AssetsDir)
	if err != nil {
		return nil, fmt.Errorf("assets root: %w", err)
	}

	files, err := walkFiles(assets, walkOptions{IgnoreDirs: DefaultIgnoredDirs})
	if err != nil {
		return nil, err
	}

	byExt := make(map[string]string)
	out := &Assets{
		Categories:   make(map[string][]FileInfo),
		Omitted:      make(map[string]int),
		Statistics:   AssetStatistics{ByCategory: make(map[string]int)},
		ResourceType: "unity_assets",
	}
	for _, c := range AssetCategories {
		out.Categories[c.Name] = []FileInfo{}
		for _, ext := range c.Extensions {
			byExt[ext] = c.Name
		}
	}
	out.Categories["other"] = []FileInfo{}

	for _, f := range files {
		if f.Extension == ".meta" {
			continue
		}
		category, ok := byExt[f.Extension]
		if !ok {
			category = "other"
		}
		out.Statistics.TotalFiles++
		out.Statistics.TotalSizeBytes += f.SizeBytes
		out.Statistics.ByCategory[category]++

		if len(out.Categories[category]) < MaxFilesPerCategory {
			out.Categories[category] = append(out.Categories[category], f)
		} else {
			out.Omitted[category]++
		}
	}
	for name := range out.Categories {
		if _, ok := out.Statistics.ByCategory[name]; !ok {
			out.Statistics.ByCategory[name] = 0
		}
	}
	mb := float64(out.Statistics.TotalSizeBytes) / (1024 * 1024)
	out.Statistics.TotalSizeMB = float64(int64(mb*100+0.5)) / 100

	return out, nil
}

// LogFile is one log with its last lines.
type LogFile struct {
	FileInfo
	LastLines []string `json:"last_lines"`
	IsEditor  bool     `json:"is_gateway_editor_log,omitempty"`
}

// Logs lists log files.
type Logs struct {
	LogFiles     []LogFile `json:"log_files"`
	TotalLogs    int       `json:"total_logs"`
	ResourceType string    `json:"resource_type"`
}

// Logs returns the *.log files under the project's Logs directory and the
// gateway's editor log. Unlike the other views it does not require a
// valid project, so logs of a broken project can still be inspected.
func (b *Browser) Logs(path string) (*Logs, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty path", config.ErrNotProject)
	}

	var files []FileInfo
	root, err := fsutil.ResolveWithin(path, ".")
	if err == nil {
		logsDir, err := fsutil.ResolveWithin(path, "Logs")
		if err != nil {
			return nil, fmt.Errorf("logs directory: %w", err)
		}
		files, err = walkFiles(logsDir, walkOptions{
			Extensions: []string{".log"},
			RelativeTo: root,
		})
		if err != nil {
			return nil, err
		}
	} else {
		b.logger.Debug("project directory unavailable, listing editor log only", "project", path, "error", err)
	}

	out := &Logs{LogFiles: make([]LogFile, 0, len(files)+1), ResourceType: "unity_logs"}
	for _, f := range files {
		out.LogFiles = append(out.LogFiles, LogFile{
			FileInfo:  f,
			LastLines: b.tailWithin(root, f.Path, projectLogLines),
		})
	}

	if b.editorLogFile != "" {
		if st, err := os.Stat(b.editorLogFile); err == nil && st.Mode().IsRegular() {
			out.LogFiles = append(out.LogFiles, LogFile{
				FileInfo: FileInfo{
					Name:         filepath.Base(b.editorLogFile),
					Path:         b.editorLogFile,
					Extension:    strings.ToLower(filepath.Ext(b.editorLogFile)),
					SizeBytes:    st.Size(),
					LastModified: st.ModTime().UTC(),
				},
				LastLines: b.tail(b.editorLogFile, editorLogLines),
				IsEditor:  true,
			})
		}
	}
	out.TotalLogs = len(out.LogFiles)
	return out, nil
}

// settingsFile resolves a file under the settings root. A file that
// escapes the project reads as missing.
func (b *Browser) settingsFile(project, name string) string {
	resolved, err := fsutil.ResolveWithin(project, filepath.Join(b.layout.SettingsDir, name))
	if err != nil {
		b.logger.Warn("ignoring settings file outside the project", "project", project, "file", name, "error", err)
		return ""
	}
	return resolved
}

func (b *Browser) tailWithin(root, rel string, n int) []string {
	resolved, err := fsutil.ResolveWithin(root, filepath.FromSlash(rel))
	if err != nil {
		b.logger.Warn("skipping log outside the project", "path", rel, "error", err)
		return []string{}
	}
	return b.tail(resolved, n)
}

func (b *Browser) tail(path string, n int) []string {
	lines, err := fsutil.ReadTail(path, n, maxTailBytes)
	if err != nil {
		b.logger.Warn("could not read log", "path", path, "error", err)
		return []string{}
	}
	if lines == nil {
		return []string{}
	}
	return lines
}

// Operations is the diagnostics view of tracked operations.
type Operations struct {
	Summary      journal.Summary  `json:"summary"`
	Operations   []tracker.Record `json:"operations"`
	ResourceType string           `json:"resource_type"`
}

// OperationsView summarizes a tracker snapshot.
func OperationsView(records []tracker.Record) *Operations {
	if records == nil {
		records = []tracker.Record{}
	}
	return &Operations{
		Summary:      journal.Summarize(records),
		Operations:   records,
		ResourceType: "operations",
	}
}

func (b *Browser) check(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: empty path", config.ErrNotProject)
	}
	return b.layout.Check(path)
}
