// Package catalog is the closed table of editor operations exposed to
// clients: their tool names, argument schemas and the mapping from
// validated arguments to a core request.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/iambrandonn/editorgate/internal/fsutil"
	"github.com/iambrandonn/editorgate/internal/protocol"
)

// ProjectPathParam is the argument every operation takes.
const ProjectPathParam = "project_path"

// TimeoutParam overrides the request timeout, in minutes.
const TimeoutParam = "timeout_minutes"

var (
	// ErrUnknownOperation is returned for tool names not in the catalog
	// or not enabled.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrInvalidArguments wraps schema and policy failures.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// Type is a JSON schema type name.
type Type string

const (
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	// TypeAny accepts any JSON value.
	TypeAny Type = ""
)

// Param describes one operation argument.
type Param struct {
	// Name is the snake_case argument name clients send.
	Name        string
	Type        Type
	Types       []Type
	Items       Type
	Required    bool
	Default     any
	Enum        []string
	Description string
	// Path marks arguments naming a file the editor writes; they are
	// checked against the path policy.
	Path bool
}

// WireKey returns the camelCase key the bridge expects.
func (p Param) WireKey() string {
	return camelCase(p.Name)
}

func (p Param) schema() *jsonschema.Schema {
	s := &jsonschema.Schema{Description: p.Description}
	switch {
	case len(p.Types) > 0:
		for _, t := range p.Types {
			s.Types = append(s.Types, string(t))
		}
	case p.Type != TypeAny:
		s.Type = string(p.Type)
	}
	if p.Type == TypeArray && p.Items != TypeAny {
		s.Items = &jsonschema.Schema{Type: string(p.Items)}
	}
	for _, e := range p.Enum {
		s.Enum = append(s.Enum, e)
	}
	if p.Default != nil {
		if raw, err := json.Marshal(p.Default); err == nil {
			s.Default = raw
		}
	}
	return s
}

// Operation is one catalog entry.
type Operation struct {
	// Name is the tool name, e.g. "scene_validate".
	Name string
	// Action is the bridge action, e.g. "scene.validate".
	Action      string
	Family      string
	Description string
	Params      []Param
	// Fixed parameters are sent on every call.
	Fixed protocol.Params
	// TimeoutMinutes, when set, adds a timeout_minutes argument with this
	// default.
	TimeoutMinutes int
	// Variant picks a different action from the validated arguments.
	Variant func(args map[string]any) string
	// SnakeCaseWire sends every argument, project_path and
	// timeout_minutes included, under its snake_case name.
	SnakeCaseWire bool
}

func (op Operation) wireKey(p Param) string {
	if op.SnakeCaseWire {
		return p.Name
	}
	return p.WireKey()
}

// Schema builds the JSON schema of the operation's arguments.
func (op Operation) Schema() *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:                 "object",
		Description:          op.Description,
		Properties:           make(map[string]*jsonschema.Schema),
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}
	s.Properties[ProjectPathParam] = &jsonschema.Schema{
		Type:        "string",
		Description: "Path to the editor project",
	}
	s.Required = append(s.Required, ProjectPathParam)

	for _, p := range op.allParams() {
		s.Properties[p.Name] = p.schema()
		if p.Required {
			s.Required = append(s.Required, p.Name)
		}
	}
	return s
}

func (op Operation) allParams() []Param {
	if op.TimeoutMinutes <= 0 {
		return op.Params
	}
	return append(append([]Param(nil), op.Params...), Param{
		Name:        TimeoutParam,
		Type:        TypeInteger,
		Default:     op.TimeoutMinutes,
		Description: "Timeout in minutes",
	})
}

// Options configures a catalog.
type Options struct {
	// Enabled lists tool names to expose. Empty exposes every operation.
	Enabled []string
	Policy  fsutil.Policy
	// DefaultProject fills project_path when the client omits it.
	DefaultProject string
	// DefaultTimeout applies to operations without a timeout argument.
	DefaultTimeout time.Duration
	// MaxTimeout caps timeout_minutes. Zero means no cap.
	MaxTimeout time.Duration
}

// Catalog is the set of enabled operations.
type Catalog struct {
	opts   Options
	ops    []Operation
	byName map[string]int

	mu       sync.Mutex
	resolved map[string]*jsonschema.Resolved
}

// New builds a catalog from the built-in operation table. Unknown names in
// Enabled are an error.
func New(opts Options) (*Catalog, error) {
	return newCatalog(builtin(), opts)
}

func newCatalog(all []Operation, opts Options) (*Catalog, error) {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = protocol.DefaultTimeout
	}

	index := make(map[string]Operation, len(all))
	for _, op := range all {
		if _, dup := index[op.Name]; dup {
			return nil, fmt.Errorf("duplicate operation %q", op.Name)
		}
		index[op.Name] = op
	}

	selected := all
	if len(opts.Enabled) > 0 {
		selected = make([]Operation, 0, len(opts.Enabled))
		seen := make(map[string]bool)
		for _, name := range opts.Enabled {
			op, ok := index[name]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
			}
			if seen[name] {
				continue
			}
			seen[name] = true
			selected = append(selected, op)
		}
	}

	c := &Catalog{
		opts:     opts,
		ops:      selected,
		byName:   make(map[string]int, len(selected)),
		resolved: make(map[string]*jsonschema.Resolved),
	}
	for i, op := range selected {
		c.byName[op.Name] = i
	}
	return c, nil
}

// Operations returns the enabled operations in table order.
func (c *Catalog) Operations() []Operation {
	return append([]Operation(nil), c.ops...)
}

// Names returns the enabled tool names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.ops))
	for _, op := range c.ops {
		names = append(names, op.Name)
	}
	sort.Strings(names)
	return names
}

// Families returns the enabled operation count per family.
func (c *Catalog) Families() map[string]int {
	out := make(map[string]int)
	for _, op := range c.ops {
		out[op.Family]++
	}
	return out
}

// Lookup finds an enabled operation by tool name.
func (c *Catalog) Lookup(name string) (Operation, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Operation{}, false
	}
	return c.ops[i], true
}

// LookupAction finds the first enabled operation with the given action,
// for callers that address the editor by action name.
func (c *Catalog) LookupAction(action string) (Operation, bool) {
	for _, op := range c.ops {
		if op.Action == action {
			return op, true
		}
	}
	return Operation{}, false
}

// Prepare validates raw JSON arguments for the named tool and builds the
// core request.
func (c *Catalog) Prepare(name string, raw json.RawMessage) (protocol.Request, error) {
	args := make(map[string]any)
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &args); err != nil {
			return protocol.Request{}, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
		if args == nil {
			args = make(map[string]any)
		}
	}
	return c.PrepareArgs(name, args)
}

// PrepareArgs is Prepare for already decoded arguments. args is not
// modified.
func (c *Catalog) PrepareArgs(name string, args map[string]any) (protocol.Request, error) {
	op, ok := c.Lookup(name)
	if !ok {
		return protocol.Request{}, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
	}

	args = protocol.CloneMap(args)
	if args == nil {
		args = make(map[string]any)
	}
	if _, ok := args[ProjectPathParam]; !ok && c.opts.DefaultProject != "" {
		args[ProjectPathParam] = c.opts.DefaultProject
	}

	resolved, err := c.resolve(op)
	if err != nil {
		return protocol.Request{}, err
	}
	if err := resolved.ApplyDefaults(&args); err != nil {
		return protocol.Request{}, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if err := resolved.Validate(&args); err != nil {
		return protocol.Request{}, fmt.Errorf("%w: %s: %v", ErrInvalidArguments, op.Name, err)
	}

	project, _ := args[ProjectPathParam].(string)
	if strings.TrimSpace(project) == "" {
		return protocol.Request{}, fmt.Errorf("%w: %s is empty", ErrInvalidArguments, ProjectPathParam)
	}
	if err := c.opts.Policy.CheckLocation("", project); err != nil {
		return protocol.Request{}, fmt.Errorf("%w: %s: %v", ErrInvalidArguments, ProjectPathParam, err)
	}

	params := make(protocol.Params, len(op.Params)+len(op.Fixed))
	for _, p := range op.Params {
		v, ok := args[p.Name]
		if !ok || v == nil {
			continue
		}
		if p.Path {
			s, _ := v.(string)
			if err := c.opts.Policy.CheckFile(project, s); err != nil {
				return protocol.Request{}, fmt.Errorf("%w: %s: %v", ErrInvalidArguments, p.Name, err)
			}
		}
		params[op.wireKey(p)] = v
	}
	if op.SnakeCaseWire {
		params[ProjectPathParam] = project
		if v, ok := args[TimeoutParam]; ok && v != nil {
			params[TimeoutParam] = v
		}
	}
	for k, v := range op.Fixed {
		params[k] = protocol.Clone(v)
	}

	action := op.Action
	if op.Variant != nil {
		if a := op.Variant(args); a != "" {
			action = a
		}
	}

	return protocol.Request{
		Action:      action,
		ProjectPath: project,
		Parameters:  params,
		Timeout:     c.timeout(op, args),
	}, nil
}

func (c *Catalog) timeout(op Operation, args map[string]any) time.Duration {
	t := c.opts.DefaultTimeout
	if op.TimeoutMinutes > 0 {
		if m, ok := args[TimeoutParam].(float64); ok && m > 0 {
			t = time.Duration(m * float64(time.Minute))
		}
	}
	if c.opts.MaxTimeout > 0 && t > c.opts.MaxTimeout {
		t = c.opts.MaxTimeout
	}
	return t
}

func (c *Catalog) resolve(op Operation) (*jsonschema.Resolved, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.resolved[op.Name]; ok {
		return r, nil
	}
	r, err := op.Schema().Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve schema for %s: %w", op.Name, err)
	}
	c.resolved[op.Name] = r
	return r, nil
}

func camelCase(snake string) string {
	var b strings.Builder
	upper := false
	for _, r := range snake {
		if r == '_' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
