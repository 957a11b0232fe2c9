// Package server is the MCP surface of the gateway. It registers one tool
// per catalog operation, the project resources and the guidance prompts,
// and serves them over stdio or streamable HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/iambrandonn/editorgate/internal/catalog"
	"github.com/iambrandonn/editorgate/internal/config"
	"github.com/iambrandonn/editorgate/internal/editorerr"
	"github.com/iambrandonn/editorgate/internal/fsutil"
	"github.com/iambrandonn/editorgate/internal/prompts"
	"github.com/iambrandonn/editorgate/internal/protocol"
	"github.com/iambrandonn/editorgate/internal/resources"
	"github.com/iambrandonn/editorgate/internal/tracker"
)

// ErrUnknownResource is returned for resource names that do not exist.
var ErrUnknownResource = errors.New("unknown resource")

// Executor runs core requests. *gateway.Executor satisfies it.
type Executor interface {
	Execute(ctx context.Context, req protocol.Request) (protocol.Response, error)
	Tracker() *tracker.Tracker
}

// Options configures the MCP surface.
type Options struct {
	Name    string
	Version string
	Catalog catalog.Options
	// Resources and Prompts list the enabled names. Empty enables all.
	Resources []string
	Prompts   []string
	Layout    config.Layout
	// EditorLogFile is shown in the logs resource.
	EditorLogFile string
}

// OptionsFromConfig maps configuration onto server options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Name:    cfg.Server.Name,
		Version: cfg.Server.Version,
		Catalog: catalog.Options{
			Enabled: cfg.Features.Tools,
			Policy: fsutil.Policy{
				AllowedPaths:      cfg.Security.AllowedPaths,
				BlockedExtensions: cfg.Security.BlockedExtensions,
			},
			DefaultProject: cfg.Project.DefaultPath,
			DefaultTimeout: cfg.DefaultTimeout(),
			MaxTimeout:     cfg.MaxOperationTime(),
		},
		Resources:     cfg.Features.Resources,
		Prompts:       cfg.Features.Prompts,
		Layout:        cfg.Layout(),
		EditorLogFile: cfg.Editor.LogFile,
	}
}

// Server wraps the MCP server and its collaborators.
type Server struct {
	mcp     *mcp.Server
	exec    Executor
	catalog *catalog.Catalog
	prompts *prompts.Registry
	browser *resources.Browser
	logger  *slog.Logger
}

// New builds the server and registers every enabled tool, resource and
// prompt.
func New(exec Executor, opts Options, logger *slog.Logger) (*Server, error) {
	if opts.Name == "" {
		opts.Name = "editorgate"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	cat, err := catalog.New(opts.Catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to build tool catalog: %w", err)
	}
	reg, err := prompts.New(opts.Prompts)
	if err != nil {
		return nil, fmt.Errorf("failed to build prompts: %w", err)
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{Name: opts.Name, Version: opts.Version}, &mcp.ServerOptions{
			Instructions: instructions,
		}),
		exec:    exec,
		catalog: cat,
		prompts: reg,
		browser: resources.New(opts.Layout, opts.EditorLogFile, logger),
		logger:  logger,
	}

	s.registerTools()
	if err := s.registerResources(opts.Resources); err != nil {
		return nil, err
	}
	s.registerPrompts()

	logger.Info("mcp server ready",
		"tools", len(cat.Operations()),
		"prompts", len(reg.Prompts()),
		"families", cat.Families())
	return s, nil
}

const instructions = "Each tool runs one command in a fresh batch-mode editor for the given project_path. " +
	"Results are {success, data, error} objects. Long operations accept timeout_minutes."

// MCP returns the underlying server, for in-process transports.
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// Catalog returns the enabled operations.
func (s *Server) Catalog() *catalog.Catalog {
	return s.catalog
}

// RunStdio serves MCP over stdin/stdout until ctx is done or the client
// disconnects.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler serves MCP over the streamable HTTP transport.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, nil)
}

func (s *Server) registerTools() {
	for _, op := range s.catalog.Operations() {
		s.mcp.AddTool(&mcp.Tool{
			Name:        op.Name,
			Description: op.Description,
			InputSchema: op.Schema(),
		}, s.toolHandler(op))
	}
}

func (s *Server) toolHandler(op catalog.Operation) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var raw json.RawMessage
		if req.Params != nil {
			raw = req.Params.Arguments
		}
		return envelopeResult(s.Call(ctx, op.Name, raw)), nil
	}
}

// Call prepares and executes one tool call. It never returns a Go error:
// every failure becomes a failed envelope.
func (s *Server) Call(ctx context.Context, tool string, raw json.RawMessage) protocol.Envelope {
	start := time.Now()

	req, err := s.catalog.Prepare(tool, raw)
	if err != nil {
		s.logger.Warn("rejected tool call", "tool", tool, "error", err)
		return protocol.ErrorEnvelope(err)
	}

	resp, err := s.exec.Execute(ctx, req)
	if err != nil {
		s.logger.Warn("tool call failed",
			"tool", tool,
			"action", req.Action,
			"kind", editorerr.KindOf(err),
			"duration", time.Since(start),
			"error", err)
		return protocol.ErrorEnvelope(err)
	}

	s.logger.Info("tool call completed",
		"tool", tool,
		"action", req.Action,
		"success", resp.Success,
		"duration", time.Since(start))
	return protocol.NewEnvelope(resp)
}

func envelopeResult(env protocol.Envelope) *mcp.CallToolResult {
	text, err := json.Marshal(env)
	if err != nil {
		env = protocol.ErrorEnvelope(fmt.Errorf("failed to encode result: %w", err))
		text, _ = json.Marshal(env)
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: string(text)}},
		StructuredContent: env,
		IsError:           !env.Success,
	}
}

func (s *Server) registerPrompts() {
	for _, p := range s.prompts.Prompts() {
		args := make([]*mcp.PromptArgument, 0, len(p.Arguments))
		for _, a := range p.Arguments {
			args = append(args, &mcp.PromptArgument{
				Name:        a.Name,
				Description: a.Description,
				Required:    a.Required,
			})
		}
		name := p.Name
		s.mcp.AddPrompt(&mcp.Prompt{
			Name:        p.Name,
			Description: p.Description,
			Arguments:   args,
		}, func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			var in map[string]string
			if req.Params != nil {
				in = req.Params.Arguments
			}
			out, err := s.prompts.Render(name, in)
			if err != nil {
				return nil, err
			}
			return &mcp.GetPromptResult{
				Description: out.Description,
				Messages: []*mcp.PromptMessage{
					{Role: "user", Content: &mcp.TextContent{Text: out.Text}},
				},
			}, nil
		})
	}
}

// ResourceNames lists every resource the server can expose.
var ResourceNames = []string{"project", "scenes", "assets", "logs", "operations"}

func enabledSet(enabled []string) (map[string]bool, error) {
	set := make(map[string]bool, len(ResourceNames))
	if len(enabled) == 0 {
		for _, name := range ResourceNames {
			set[name] = true
		}
		return set, nil
	}
	for _, name := range enabled {
		if !slices.Contains(ResourceNames, name) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownResource, name)
		}
		set[name] = true
	}
	return set, nil
}

// OperationsView returns the current tracker snapshot with a summary.
func (s *Server) OperationsView() *resources.Operations {
	return resources.OperationsView(s.exec.Tracker().Snapshot())
}
