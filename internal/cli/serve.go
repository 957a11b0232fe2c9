package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/iambrandonn/editorgate/internal/config"
	"github.com/iambrandonn/editorgate/internal/diag"
	"github.com/iambrandonn/editorgate/internal/gateway"
	"github.com/iambrandonn/editorgate/internal/server"
)

// closeTimeout bounds how long live editors get to stop on shutdown.
const closeTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve editor operations over MCP",
	Long: `Serve editor operations as MCP tools, resources and prompts.

The stdio transport (default) speaks MCP on stdin/stdout and logs to stderr.
The http transport serves the streamable MCP endpoint at /mcp on --listen,
next to the /healthz and /operations diagnostics routes.`,
	RunE: runServe,
}

func init() {
	addServeFlags(serveCmd.Flags())
	// The root command runs serve, so it accepts the same flags.
	addServeFlags(rootCmd.Flags())
}

func addServeFlags(fs *pflag.FlagSet) {
	fs.String("transport", "", "MCP transport: stdio or http (default from config)")
	fs.String("listen", "", "Listen address for the http transport")
	fs.String("diag-addr", "", "Address for a separate diagnostics server (disabled when empty)")
	fs.String("journal", "", "Append finished operations to this NDJSON file")
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	overrides := []struct {
		flag string
		dst  *string
	}{
		{"transport", &cfg.Server.Transport},
		{"listen", &cfg.Server.ListenAddr},
		{"diag-addr", &cfg.Server.DiagAddr},
		{"journal", &cfg.Journal.Path},
	}
	for _, o := range overrides {
		if err := stringFlag(cmd, o.flag, o.dst); err != nil {
			return err
		}
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, cfgPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyServeFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	logger.Info("loaded configuration", "path", displayPath(cfgPath), "transport", cfg.Server.Transport)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exec, err := gateway.Build(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := exec.Close(closeCtx); err != nil {
			logger.Warn("failed to close gateway cleanly", "error", err)
		}
	}()

	srv, err := server.New(exec, server.OptionsFromConfig(cfg), logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	switch cfg.Server.Transport {
	case "http":
		front := diag.New(exec.Tracker(), diag.Options{
			Version: cfg.Server.Version,
			MCP:     srv.HTTPHandler(),
		}, logger)
		g.Go(func() error {
			return front.ListenAndServe(gctx, cfg.Server.ListenAddr)
		})
	default:
		g.Go(func() error {
			// The client closing stdin ends the whole process.
			defer stop()
			if err := srv.RunStdio(gctx); err != nil && !errors.Is(err, io.EOF) && gctx.Err() == nil {
				return fmt.Errorf("stdio transport: %w", err)
			}
			return nil
		})
	}

	if cfg.Server.DiagAddr != "" {
		d := diag.New(exec.Tracker(), diag.Options{Version: cfg.Server.Version}, logger)
		g.Go(func() error {
			return d.ListenAndServe(gctx, cfg.Server.DiagAddr)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("server stopped")
	return nil
}
