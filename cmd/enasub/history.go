package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nishad/enasub/internal/ledger"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [RUN_ID]",
	Short: "Show packaging runs recorded in the ledger",
	Long: `List recent packaging runs, newest first. With a run id, list the
manifests that run wrote and any submissions made from them.`,
	Example: `  enasub history
  enasub history --limit 5 --format json
  enasub history 0b7c6f0e-2a53-4bd5-9f3e-3f4d1c9a2e11`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

var (
	historyLimit  int
	historyFormat string
	historyStats  bool
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Maximum runs to list (0 for all)")
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "table", "Output format (table|json)")
	historyCmd.Flags().BoolVar(&historyStats, "stats", false, "Show ledger row counts")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyFormat != "table" && historyFormat != "json" {
		return fmt.Errorf("unknown format %q (expected table or json)", historyFormat)
	}
	if noLedger || !cfg.Ledger.Enabled {
		return fmt.Errorf("the run ledger is disabled")
	}
	if _, err := os.Stat(cfg.Ledger.Path); os.IsNotExist(err) {
		printInfo("No runs recorded yet (%s)", cfg.Ledger.Path)
		return nil
	}

	db, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	switch {
	case historyStats:
		return showStats(db)
	case len(args) == 1:
		return showRun(db, args[0])
	default:
		return listRuns(db)
	}
}

func listRuns(db *ledger.DB) error {
	runs, err := db.Runs(historyLimit)
	if err != nil {
		return err
	}
	if historyFormat == "json" {
		return writeJSON(runs)
	}
	if len(runs) == 0 {
		printInfo("No runs recorded yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSCHEMA\tSTARTED\tSTATUS\tMANIFESTS\tTABLE")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.Schema, humanize.Time(r.Started), r.Status, r.Manifests, r.Table)
	}
	return w.Flush()
}

func showRun(db *ledger.DB, id string) error {
	run, err := db.GetRun(id)
	if err != nil {
		return err
	}
	manifests, err := db.Manifests(id)
	if err != nil {
		return err
	}

	submissions := map[string][]ledger.SubmissionRecord{}
	for _, m := range manifests {
		subs, err := db.Submissions(m.Path)
		if err != nil {
			return err
		}
		submissions[m.Path] = subs
	}

	if historyFormat == "json" {
		return writeJSON(struct {
			Run         *ledger.RunRecord                    `json:"run"`
			Manifests   []ledger.ManifestRecord              `json:"manifests"`
			Submissions map[string][]ledger.SubmissionRecord `json:"submissions"`
		}{run, manifests, submissions})
	}

	printInfo("Run %s", run.ID)
	printRule()
	fmt.Printf("  Schema:     %s\n", run.Schema)
	fmt.Printf("  Table:      %s\n", run.Table)
	fmt.Printf("  Directory:  %s\n", run.SubmissionDir)
	fmt.Printf("  Started:    %s (%s)\n", run.Started.Local().Format("2006-01-02 15:04:05"), humanize.Time(run.Started))
	if run.Finished != nil {
		fmt.Printf("  Duration:   %s\n", run.Finished.Sub(run.Started).Round(time.Millisecond))
	}
	fmt.Printf("  Status:     %s\n", statusText(run.Status))
	if run.Error != "" {
		fmt.Printf("  Error:      %s\n", colorize(colorRed, run.Error))
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROW\tSAMPLE\tFILES\tSIZE\tSUBMITTED\tMANIFEST")
	for _, m := range manifests {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\n",
			m.Row, m.Sample, m.Files, humanize.Bytes(uint64(m.Bytes)), submissionText(submissions[m.Path]), m.Path)
	}
	return w.Flush()
}

func showStats(db *ledger.DB) error {
	stats, err := db.Stats()
	if err != nil {
		return err
	}
	if historyFormat == "json" {
		return writeJSON(stats)
	}
	tables := make([]string, 0, len(stats))
	for t := range stats {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	printInfo("Ledger %s", db.Path())
	printRule()
	for _, t := range tables {
		fmt.Printf("  %-12s %s\n", t+":", humanize.Comma(stats[t]))
	}
	return nil
}

func statusText(status string) string {
	switch status {
	case ledger.StatusCompleted:
		return colorize(colorGreen, status)
	case ledger.StatusFailed:
		return colorize(colorRed, status)
	default:
		return colorize(colorYellow, status)
	}
}

func submissionText(subs []ledger.SubmissionRecord) string {
	if len(subs) == 0 {
		return "-"
	}
	last := subs[len(subs)-1]
	mode := "test"
	if last.Live {
		mode = "live"
	}
	if last.ExitCode == 0 {
		return fmt.Sprintf("%s ok", mode)
	}
	return fmt.Sprintf("%s exit %d", mode, last.ExitCode)
}

func writeJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
