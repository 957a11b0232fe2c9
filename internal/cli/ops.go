package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iambrandonn/editorgate/internal/editorerr"
	"github.com/iambrandonn/editorgate/internal/journal"
	"github.com/iambrandonn/editorgate/internal/resources"
	"github.com/iambrandonn/editorgate/internal/tracker"
)

var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "List operations recorded in the journal",
	Long: `Read the operation journal written by 'editorgate serve --journal' and
list the finished operations, optionally filtered by action and status.`,
	Args: cobra.NoArgs,
	RunE: runOps,
}

func init() {
	opsCmd.Flags().String("journal", "", "Journal file to read (default from config)")
	opsCmd.Flags().String("action", "", "Only show operations with this action")
	opsCmd.Flags().String("status", "", "Only show operations with this status (completed, failed)")
	opsCmd.Flags().Bool("json", false, "Print the operations resource as JSON")
	opsCmd.Flags().Bool("summary", false, "Print counts instead of individual operations")
}

func runOps(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := stringFlag(cmd, "journal", &cfg.Journal.Path); err != nil {
		return err
	}
	if cfg.Journal.Path == "" {
		return fmt.Errorf("no journal configured\n\nHint: pass --journal or set \"journal\": {\"path\": ...} in the config")
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	action, _ := cmd.Flags().GetString("action")
	statusName, _ := cmd.Flags().GetString("status")
	asJSON, _ := cmd.Flags().GetBool("json")
	summaryOnly, _ := cmd.Flags().GetBool("summary")

	status, err := tracker.ParseStatus(statusName)
	if err != nil {
		return err
	}

	records, err := journal.Read(cfg.Journal.Path, logger)
	if err != nil {
		return err
	}
	records = journal.Filter(records, action, status)

	out := cmd.OutOrStdout()
	switch {
	case asJSON:
		return printJSON(out, resources.OperationsView(records))
	case summaryOnly:
		return printSummary(out, journal.Summarize(records))
	default:
		return printRecords(out, records)
	}
}

func printRecords(w io.Writer, records []tracker.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tACTION\tSTATUS\tDURATION\tPROJECT\tERROR")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.ID, rec.Action, rec.Status,
			rec.Duration().Round(time.Millisecond),
			rec.ProjectPath, firstLine(rec.Error))
	}
	return tw.Flush()
}

func printSummary(w io.Writer, s journal.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "total\t%d\n", s.Total)

	statuses := make([]string, 0, len(s.ByStatus))
	for st := range s.ByStatus {
		statuses = append(statuses, string(st))
	}
	sort.Strings(statuses)
	for _, st := range statuses {
		fmt.Fprintf(tw, "status %s\t%d\n", st, s.ByStatus[tracker.Status(st)])
	}

	kinds := make([]string, 0, len(s.ByKind))
	for k := range s.ByKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(tw, "error %s\t%d\n", k, s.ByKind[editorerr.Kind(k)])
	}

	for _, a := range s.Actions() {
		fmt.Fprintf(tw, "action %s\t%d\n", a, s.ByAction[a])
	}
	return tw.Flush()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
