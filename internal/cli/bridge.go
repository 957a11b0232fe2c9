package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iambrandonn/editorgate/internal/supervisor"
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Manage the editor bridge script",
}

var bridgeInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the bridge script into a project's Editor folder",
	Long: `Copy the bridge script into <project>/Assets/Editor so the editor can
resolve the configured entry point. An identical copy is left untouched.`,
	Args: cobra.NoArgs,
	RunE: runBridgeInstall,
}

func init() {
	bridgeCmd.AddCommand(bridgeInstallCmd)
}

func runBridgeInstall(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	project := cfg.Project.DefaultPath
	if project == "" {
		return fmt.Errorf("no project given\n\nHint: pass --project <path>")
	}

	result, err := supervisor.InstallBridge(cfg.Layout(), project)
	if err != nil {
		return err
	}

	state := "unchanged"
	if result.Changed {
		state = "installed"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", state, result.Path, result.Digest)
	return nil
}
