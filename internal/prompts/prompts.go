// Package prompts renders the guidance prompts the server offers for
// build, debugging and optimization work.
package prompts

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// ErrUnknownPrompt is returned by Render for unregistered names.
	ErrUnknownPrompt = errors.New("unknown prompt")
	// ErrMissingArgument is returned when a required argument is blank.
	ErrMissingArgument = errors.New("missing required argument")
)

// Argument describes one prompt argument.
type Argument struct {
	Name        string
	Description string
	Required    bool
	Default     string
}

// Prompt is a named guidance template.
type Prompt struct {
	Name        string
	Description string
	Arguments   []Argument

	tmpl     *template.Template
	describe func(args map[string]string) string
	extra    func(args map[string]string) map[string]string
}

// Rendered is a prompt filled in with arguments.
type Rendered struct {
	Description string
	Text        string
}

var title = cases.Title(language.English)

var funcs = template.FuncMap{
	"title": func(s string) string {
		return title.String(strings.ReplaceAll(s, "_", " "))
	},
}

// Registry holds the enabled prompts.
type Registry struct {
	prompts map[string]*Prompt
}

// New returns a registry of the built-in prompts. An empty enabled list
// enables all of them; unknown names are an error.
func New(enabled []string) (*Registry, error) {
	all := builtin()
	r := &Registry{prompts: make(map[string]*Prompt, len(all))}
	byName := make(map[string]*Prompt, len(all))
	for _, p := range all {
		byName[p.Name] = p
	}

	if len(enabled) == 0 {
		r.prompts = byName
		return r, nil
	}
	for _, name := range enabled {
		p, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPrompt, name)
		}
		r.prompts[name] = p
	}
	return r, nil
}

// Prompts returns the enabled prompts sorted by name.
func (r *Registry) Prompts() []*Prompt {
	out := make([]*Prompt, 0, len(r.prompts))
	for _, p := range r.prompts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Render fills in the named prompt. Missing optional arguments take their
// defaults.
func (r *Registry) Render(name string, args map[string]string) (Rendered, error) {
	p, ok := r.prompts[name]
	if !ok {
		return Rendered{}, fmt.Errorf("%w: %s", ErrUnknownPrompt, name)
	}
	return p.Render(args)
}

// Render fills in the prompt.
func (p *Prompt) Render(args map[string]string) (Rendered, error) {
	data := make(map[string]string, len(p.Arguments)+2)
	for _, arg := range p.Arguments {
		v := strings.TrimSpace(args[arg.Name])
		if v == "" {
			if arg.Required {
				return Rendered{}, fmt.Errorf("%w: %s.%s", ErrMissingArgument, p.Name, arg.Name)
			}
			v = arg.Default
		}
		data[arg.Name] = v
	}
	if p.extra != nil {
		for k, v := range p.extra(data) {
			data[k] = v
		}
	}

	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, data); err != nil {
		return Rendered{}, fmt.Errorf("render %s: %w", p.Name, err)
	}
	return Rendered{Description: p.describe(data), Text: buf.String()}, nil
}

func newPrompt(name, description string, args []Argument, text string) *Prompt {
	return &Prompt{
		Name:        name,
		Description: description,
		Arguments:   args,
		tmpl:        template.Must(template.New(name).Funcs(funcs).Option("missingkey=zero").Parse(text)),
	}
}

func builtin() []*Prompt {
	build := newPrompt("unity.build", "Build configuration and troubleshooting guidance", []Argument{
		{Name: "project_path", Description: "Path to the project", Required: true},
		{Name: "target_platform", Description: "Build target", Default: "StandaloneWindows64"},
		{Name: "build_options", Description: "Build options", Default: "None"},
		{Name: "output_path", Description: "Build output location"},
	}, buildTemplate)
	build.describe = func(a map[string]string) string {
		return fmt.Sprintf("Build guidance for the %s platform", a["target_platform"])
	}

	debug := newPrompt("unity.debug", "Debugging strategies and diagnostic guidance", []Argument{
		{Name: "project_path", Description: "Path to the project", Required: true},
		{Name: "issue_type", Description: "compilation, runtime, performance, ui or general", Default: "general"},
		{Name: "error_message", Description: "Error text seen in the console"},
		{Name: "context", Description: "What was happening when the issue appeared"},
	}, debugTemplate)
	debug.describe = func(a map[string]string) string {
		return fmt.Sprintf("Debugging guidance for %s issues", a["issue_type"])
	}
	debug.extra = func(a map[string]string) map[string]string {
		return map[string]string{"guidance": lookupGuidance(debugGuidance, a["issue_type"])}
	}

	optimize := newPrompt("unity.optimize", "Optimization strategies and performance guidance", []Argument{
		{Name: "project_path", Description: "Path to the project", Required: true},
		{Name: "target_platform", Description: "Platform to optimize for", Default: "general"},
		{Name: "focus_area", Description: "performance, rendering, memory or loading", Default: "performance"},
		{Name: "current_metrics", Description: "Current measurements, if any"},
	}, optimizeTemplate)
	optimize.describe = func(a map[string]string) string {
		return fmt.Sprintf("Optimization guidance for %s on %s", a["focus_area"], a["target_platform"])
	}
	optimize.extra = func(a map[string]string) map[string]string {
		return map[string]string{"guidance": lookupGuidance(optimizeGuidance, a["focus_area"])}
	}

	return []*Prompt{build, debug, optimize}
}

func lookupGuidance(table map[string]string, key string) string {
	if g, ok := table[strings.ToLower(key)]; ok {
		return g
	}
	return table["general"]
}
