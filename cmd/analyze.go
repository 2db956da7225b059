package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tender-cli/internal/acquire"
	"github.com/sells-group/tender-cli/internal/model"
	"github.com/sells-group/tender-cli/internal/resilience"
	"github.com/sells-group/tender-cli/internal/store"
)

var (
	analyzeReg    string
	analyzeURL    string
	analyzeFilter string
	analyzeKeep   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the full analysis for one tender",
	Long:  "Resolves the tender (store, --url or the Tenderland feed), then normalizes its documents, extracts the purchase, enriches every item and prints the run result.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if analyzeKeep {
			cfg.Pipeline.KeepFiles = true
		}

		env, err := initPipeline(ctx, "analyze")
		if err != nil {
			return err
		}
		defer env.Close()

		if _, err := resolveTender(ctx, env.Store, env.lookup(), analyzeReg, analyzeURL); err != nil {
			return err
		}

		var opts []acquire.Option
		if analyzeFilter != "" {
			opts = append(opts, acquire.WithNameFilter(analyzeFilter))
		}

		result, err := env.Pipeline.Run(ctx, analyzeReg, opts...)
		if err != nil {
			zap.L().Error("analysis failed",
				zap.String("reg_number", analyzeReg),
				zap.String("reason", resilience.UserMessage(err)),
			)
			return eris.Wrap(err, "analyze")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// tenderLookup resolves registration numbers the store does not know yet.
type tenderLookup interface {
	Lookup(ctx context.Context, regNumber string) (*model.TenderRecord, error)
}

func (pe *pipelineEnv) lookup() tenderLookup {
	if pe.Syncer == nil {
		return nil
	}
	return pe.Syncer
}

// resolveTender returns the stored record for reg, creating it from
// bundleURL or the discovery feed when it is unknown.
func resolveTender(ctx context.Context, st store.Store, lookup tenderLookup, reg, bundleURL string) (*model.TenderRecord, error) {
	rec, err := st.FindByKey(ctx, reg)
	if err != nil {
		return nil, eris.Wrapf(err, "load %s", reg)
	}
	if rec != nil {
		return rec, nil
	}

	if bundleURL != "" {
		rec = model.NewTenderRecord(reg, model.TenderMetadata{Name: reg, FilesURL: bundleURL})
		if _, err := st.UpsertByKey(ctx, rec); err != nil {
			return nil, &resilience.StoreWriteError{Key: reg, Path: "metadata", Err: err}
		}
		return rec, nil
	}
	if lookup != nil {
		return lookup.Lookup(ctx, reg)
	}
	return nil, eris.Wrapf(resilience.ErrTenderNotFound, "%s (no --url and no tenderland key)", reg)
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeReg, "reg", "", "tender registration number (required)")
	analyzeCmd.Flags().StringVar(&analyzeURL, "url", "", "document bundle URL for a tender not in the store")
	analyzeCmd.Flags().StringVar(&analyzeFilter, "filter", "", "only keep bundle files whose name contains this text")
	analyzeCmd.Flags().BoolVar(&analyzeKeep, "keep", false, "keep normalized documents and scratch pages on disk")
	_ = analyzeCmd.MarkFlagRequired("reg")
	rootCmd.AddCommand(analyzeCmd)
}
