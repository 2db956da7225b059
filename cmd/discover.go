package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tender-cli/internal/discovery"
	"github.com/sells-group/tender-cli/internal/resilience"
	"github.com/sells-group/tender-cli/internal/store"
)

// scheduleFromConfig is the value of a bare --schedule flag.
const scheduleFromConfig = "config"

var (
	discoverSchedule string
	discoverAnalyze  bool
	discoverLimit    int
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Pull new tenders from the Tenderland autosearch",
	Long: "Creates a Tenderland export, stores every tender not seen before and optionally analyzes all unprocessed tenders. " +
		"With --schedule it repeats on a cron expression (seconds first) until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if discoverAnalyze {
			cfg.Discovery.Analyze = true
		}
		env, err := initPipeline(ctx, "discover")
		if err != nil {
			return err
		}
		defer env.Close()

		pass := func(ctx context.Context) error {
			res, err := env.Syncer.Sync(ctx)
			if err != nil {
				return err
			}
			zap.L().Info("discovery pass",
				zap.Int("fetched", res.Fetched),
				zap.Int("created", res.Created),
			)
			if cfg.Discovery.Analyze {
				analyzeUnprocessed(ctx, env.Store, env.Pipeline, discoverLimit)
			}
			return nil
		}

		if !cmd.Flags().Changed("schedule") {
			return eris.Wrap(pass(ctx), "discover")
		}

		spec := discoverSchedule
		if spec == scheduleFromConfig {
			spec = cfg.Discovery.Schedule
		}
		return discovery.RunScheduled(ctx, spec, func(ctx context.Context) {
			if err := pass(ctx); err != nil {
				zap.L().Error("discovery pass failed", zap.Error(err))
			}
		})
	},
}

// analyzeUnprocessed runs the pipeline over unprocessed tenders, oldest
// first, one at a time. Failures are logged and the loop moves on.
func analyzeUnprocessed(ctx context.Context, st store.Store, p tenderRunner, limit int) (done, failed int) {
	recs, err := st.ListUnprocessed(ctx, limit)
	if err != nil {
		zap.L().Error("list unprocessed tenders", zap.Error(err))
		return 0, 0
	}
	for _, rec := range recs {
		if ctx.Err() != nil {
			break
		}
		if _, err := p.Run(ctx, rec.RegNumber); err != nil {
			failed++
			zap.L().Warn("tender analysis failed",
				zap.String("reg_number", rec.RegNumber),
				zap.String("reason", resilience.UserMessage(err)),
			)
			continue
		}
		done++
	}
	zap.L().Info("unprocessed tenders analyzed", zap.Int("done", done), zap.Int("failed", failed))
	return done, failed
}

func init() {
	discoverCmd.Flags().StringVar(&discoverSchedule, "schedule", "", "cron expression; bare --schedule uses discovery.schedule")
	discoverCmd.Flags().Lookup("schedule").NoOptDefVal = scheduleFromConfig
	discoverCmd.Flags().BoolVar(&discoverAnalyze, "analyze", false, "analyze unprocessed tenders after each pass")
	discoverCmd.Flags().IntVar(&discoverLimit, "limit", 20, "max unprocessed tenders analyzed per pass")
	rootCmd.AddCommand(discoverCmd)
}
