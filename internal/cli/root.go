package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "editorgate",
	Short: "MCP gateway for batch-mode game editor automation",
	Long: `editorgate exposes editor operations (project scans, builds, tests, scene,
asset and prefab edits) as MCP tools. Every call launches a fresh batch-mode
editor for the target project, hands it one command on stdin and returns the
editor's reply.

Running 'editorgate' without a subcommand is equivalent to 'editorgate serve'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: run the 'serve' command
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(opsCmd)
	rootCmd.AddCommand(bridgeCmd)
	rootCmd.AddCommand(versionCmd)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Path to editorgate.yaml/.json (default: search up directory tree)")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("editor", "", "Path to the editor executable")
	flags.StringP("project", "p", "", "Default project path")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
