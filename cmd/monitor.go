package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/tender-cli/internal/monitoring"
	"github.com/sells-group/tender-cli/internal/store"
)

// -- runs check --

var runsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate run health and send alerts to the configured webhook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snap, alerts := newChecker(st).Check(ctx)
		if snap == nil {
			return eris.New("runs check: could not collect run health")
		}
		formatHealth(os.Stdout, snap, alerts)
		return nil
	},
}

func newChecker(st store.Store) *monitoring.Checker {
	mcfg := cfg.Monitoring
	collector := monitoring.NewCollector(st,
		time.Duration(mcfg.StuckAfterMins)*time.Minute,
		mcfg.BacklogThreshold+1,
	)
	return monitoring.NewChecker(collector, monitoring.NewAlerter(mcfg), mcfg)
}

// formatHealth writes a snapshot and its alerts to w.
func formatHealth(out io.Writer, snap *monitoring.Snapshot, alerts []monitoring.Alert) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Window:\t%dh\n", snap.LookbackHours)
	_, _ = fmt.Fprintf(w, "Runs:\t%d (%d complete, %d failed, %d running)\n",
		snap.RunsTotal, snap.RunsComplete, snap.RunsFailed, snap.RunsRunning)
	_, _ = fmt.Fprintf(w, "Failure rate:\t%.1f%%\n", snap.FailRate*100)
	_, _ = fmt.Fprintf(w, "Stuck runs:\t%d\n", len(snap.StuckRuns))
	_, _ = fmt.Fprintf(w, "Backlog:\t%d\n", snap.Backlog)
	_ = w.Flush()

	if len(alerts) == 0 {
		_, _ = okColor.Fprintln(out, "No alerts.")
		return
	}
	for _, a := range alerts {
		_, _ = warnColor.Fprintf(out, "[%s] %s\n", a.Severity, a.Message)
	}
}

func init() {
	runsCmd.AddCommand(runsCheckCmd)
}
