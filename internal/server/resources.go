package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// OperationsURI is the static resource holding the tracker snapshot.
const OperationsURI = "editorgate://operations"

const jsonMIME = "application/json"

// projectResource is a per-project view addressed as unity://<name>/<path>.
type projectResource struct {
	name        string
	description string
	read        func(path string) (any, error)
}

func (r projectResource) prefix() string {
	return "unity://" + r.name + "/"
}

func (s *Server) projectResources() []projectResource {
	return []projectResource{
		{
			name:        "project",
			description: "Project metadata: editor version, settings and directories",
			read:        func(p string) (any, error) { return s.browser.Project(p) },
		},
		{
			name:        "scenes",
			description: "Scene files and the build scene list",
			read:        func(p string) (any, error) { return s.browser.Scenes(p) },
		},
		{
			name:        "assets",
			description: "Assets grouped by category with size statistics",
			read:        func(p string) (any, error) { return s.browser.Assets(p) },
		},
		{
			name:        "logs",
			description: "Project log files and the editor log, last lines of each",
			read:        func(p string) (any, error) { return s.browser.Logs(p) },
		},
	}
}

func (s *Server) registerResources(enabled []string) error {
	set, err := enabledSet(enabled)
	if err != nil {
		return err
	}

	for _, r := range s.projectResources() {
		if !set[r.name] {
			continue
		}
		s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
			Name:        r.name,
			Description: r.description,
			URITemplate: r.prefix() + "{+path}",
			MIMEType:    jsonMIME,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			uri := req.Params.URI
			path, err := ProjectFromURI(uri, r.prefix())
			if err != nil {
				return nil, err
			}
			v, err := r.read(path)
			if err != nil {
				s.logger.Warn("resource read failed", "uri", uri, "error", err)
				return nil, err
			}
			return jsonResource(uri, v)
		})
	}

	if set["operations"] {
		s.mcp.AddResource(&mcp.Resource{
			Name:        "operations",
			Description: "Operations started by this server and their status",
			URI:         OperationsURI,
			MIMEType:    jsonMIME,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return jsonResource(OperationsURI, s.OperationsView())
		})
	}
	return nil
}

// ProjectFromURI extracts the percent-decoded project path from a
// resource URI with the given prefix.
func ProjectFromURI(uri, prefix string) (string, error) {
	rest, ok := strings.CutPrefix(uri, prefix)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownResource, uri)
	}
	path, err := url.PathUnescape(rest)
	if err != nil {
		return "", fmt.Errorf("invalid resource uri %s: %w", uri, err)
	}
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("resource uri %s has no project path", uri)
	}
	return path, nil
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: uri, MIMEType: jsonMIME, Text: string(data)},
		},
	}, nil
}
