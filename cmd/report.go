package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/tender-cli/internal/model"
	"github.com/sells-group/tender-cli/internal/pipeline"
	"github.com/sells-group/tender-cli/internal/resilience"
)

var reportReg string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a tender's stage, items and final report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("report"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rec, err := st.FindByKey(ctx, reportReg)
		if err != nil {
			return eris.Wrap(err, "report")
		}
		if rec == nil {
			return eris.Wrapf(resilience.ErrTenderNotFound, "report: %s", reportReg)
		}
		printReport(os.Stdout, rec)
		return nil
	},
}

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	okColor     = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
)

// printReport writes a human-readable view of rec to w.
func printReport(w io.Writer, rec *model.TenderRecord) {
	_, _ = headerColor.Fprintf(w, "Tender %s\n", rec.RegNumber)
	if rec.Metadata.Name != "" {
		_, _ = fmt.Fprintf(w, "%s\n", rec.Metadata.Name)
	}

	stage := rec.Stage()
	stageColor := warnColor
	if stage == model.StageReportGenerated {
		stageColor = okColor
	}
	_, _ = fmt.Fprint(w, "Stage: ")
	_, _ = stageColor.Fprintln(w, stage)

	items := rec.Items()
	if len(items) > 0 {
		_, _ = headerColor.Fprintf(w, "\nItems (%d)\n", len(items))
	}
	for i, it := range items {
		mark, c := "-", warnColor
		if i < len(rec.FindRequests) && rec.FindRequests[i].ProductAnalysis != nil {
			mark, c = "+", okColor
		}
		_, _ = c.Fprintf(w, "  %s ", mark)
		_, _ = fmt.Fprintf(w, "%d. %s", i+1, it.Name)
		if q := it.Quantity.Value.String(); q != "" {
			_, _ = fmt.Fprintf(w, " (%s %s)", q, it.Quantity.Unit)
		}
		_, _ = fmt.Fprintln(w)
	}

	if rec.IsProcessed && rec.FinalReport != nil {
		_, _ = headerColor.Fprintln(w, "\nReport")
		_, _ = fmt.Fprintln(w, pipeline.ComposeReport(*rec.FinalReport, rec.ProductAnalyses()))
		return
	}
	_, _ = warnColor.Fprintln(w, "\nNo final report yet.")
}

func init() {
	reportCmd.Flags().StringVar(&reportReg, "reg", "", "tender registration number (required)")
	_ = reportCmd.MarkFlagRequired("reg")
	rootCmd.AddCommand(reportCmd)
}
