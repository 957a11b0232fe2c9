package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iambrandonn/editorgate/internal/catalog"
	"github.com/iambrandonn/editorgate/internal/config"
	"github.com/iambrandonn/editorgate/internal/gateway"
	"github.com/iambrandonn/editorgate/internal/protocol"
	"github.com/iambrandonn/editorgate/internal/server"
)

// ErrOperationFailed is returned by exec when the result envelope reports
// failure, so scripts can rely on the exit status.
var ErrOperationFailed = errors.New("operation failed")

var execCmd = &cobra.Command{
	Use:   "exec <tool|action>",
	Short: "Run one editor operation and print its result",
	Long: `Run one operation in a fresh batch-mode editor and print the
{success, data, error} envelope.

The operation is named by MCP tool (scene_validate) or editor action
(scene.validate) and its arguments are checked against the tool schema.
With --raw the action and parameters are sent to the editor unchecked.`,
	Args: cobra.ExactArgs(1),
	RunE: runExec,
}

func init() {
	execCmd.Flags().String("params", "{}", "Operation arguments as a JSON object")
	execCmd.Flags().Duration("timeout", 0, "Override the operation timeout (e.g. 10m)")
	execCmd.Flags().Bool("raw", false, "Send the action and parameters without catalog validation")
}

func runExec(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	paramsJSON, err := cmd.Flags().GetString("params")
	if err != nil {
		return err
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return err
	}
	raw, err := cmd.Flags().GetBool("raw")
	if err != nil {
		return err
	}

	params, err := parseParams(paramsJSON)
	if err != nil {
		return err
	}
	req, err := buildRequest(cfg, args[0], params, raw, timeout)
	if err != nil {
		return err
	}

	exec, err := gateway.Build(cfg, logger)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	defer exec.Close(ctx)

	logger.Info("executing operation", "action", req.Action, "project", req.ProjectPath, "timeout", req.Timeout)

	var env protocol.Envelope
	if resp, err := exec.Execute(ctx, req); err != nil {
		env = protocol.ErrorEnvelope(err)
	} else {
		env = protocol.NewEnvelope(resp)
	}

	if err := printJSON(cmd.OutOrStdout(), env); err != nil {
		return err
	}
	if !env.Success {
		return fmt.Errorf("%w: %s", ErrOperationFailed, env.ErrorMessage())
	}
	return nil
}

func parseParams(s string) (map[string]any, error) {
	params := make(map[string]any)
	if strings.TrimSpace(s) == "" {
		return params, nil
	}
	if err := json.Unmarshal([]byte(s), &params); err != nil {
		return nil, fmt.Errorf("invalid --params: expected a JSON object: %w", err)
	}
	if params == nil {
		params = make(map[string]any)
	}
	return params, nil
}

// buildRequest turns a tool or action name plus arguments into a core
// request. Catalog requests get schema defaults, validation and the path
// policy; raw requests are passed through as given.
func buildRequest(cfg *config.Config, name string, params map[string]any, raw bool, timeout time.Duration) (protocol.Request, error) {
	if raw {
		project := cfg.Project.DefaultPath
		if p, ok := params[catalog.ProjectPathParam].(string); ok {
			project = p
			delete(params, catalog.ProjectPathParam)
		}
		req := protocol.Request{
			Action:      name,
			ProjectPath: project,
			Parameters:  protocol.Params(params),
			Timeout:     cfg.DefaultTimeout(),
		}
		if timeout > 0 {
			req.Timeout = timeout
		}
		if err := req.Parameters.Validate(); err != nil {
			return protocol.Request{}, err
		}
		return req, nil
	}

	cat, err := catalog.New(server.OptionsFromConfig(cfg).Catalog)
	if err != nil {
		return protocol.Request{}, err
	}
	tool := name
	if _, ok := cat.Lookup(name); !ok {
		if op, ok := cat.LookupAction(name); ok {
			tool = op.Name
		}
	}

	req, err := cat.PrepareArgs(tool, params)
	if err != nil {
		return protocol.Request{}, err
	}
	if timeout > 0 {
		req.Timeout = timeout
	}
	return req, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
