package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tender-cli/internal/acquire"
)

var (
	normalizeReg    string
	normalizeURL    string
	normalizeFilter string
	normalizeKeep   bool
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Download and normalize a document bundle",
	Long:  "Runs document acquisition only and prints the normalized file paths. The work directory is removed afterwards unless --keep is set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("normalize"); err != nil {
			return err
		}
		acq := newAcquirer()

		var opts []acquire.Option
		if normalizeFilter != "" {
			opts = append(opts, acquire.WithNameFilter(normalizeFilter))
		}

		res, err := acq.AcquireAndNormalize(cmd.Context(), normalizeReg, normalizeURL, opts...)
		if err != nil {
			return eris.Wrap(err, "normalize")
		}
		for _, f := range res.NormalizedFiles {
			fmt.Fprintln(os.Stdout, f)
		}

		if !normalizeKeep {
			if err := acq.Cleanup(res.WorkDir); err != nil {
				zap.L().Warn("cleanup failed", zap.String("dir", res.WorkDir), zap.Error(err))
			}
		}
		return nil
	},
}

func init() {
	normalizeCmd.Flags().StringVar(&normalizeReg, "reg", "", "tender registration number (required)")
	normalizeCmd.Flags().StringVar(&normalizeURL, "url", "", "document bundle URL (required)")
	normalizeCmd.Flags().StringVar(&normalizeFilter, "filter", "", "only keep bundle files whose name contains this text")
	normalizeCmd.Flags().BoolVar(&normalizeKeep, "keep", false, "keep the work directory")
	_ = normalizeCmd.MarkFlagRequired("reg")
	_ = normalizeCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(normalizeCmd)
}
