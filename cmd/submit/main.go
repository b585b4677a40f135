package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"reddit-alpha-agent/internal/app"
	"reddit-alpha-agent/internal/logger"
	"reddit-alpha-agent/internal/pipeline"
	"reddit-alpha-agent/internal/store"
)

type options struct {
	configPath string
	modelName  string
	days       int
	leverage   float64
	universe   string
	dryRun     bool
}

func newRootCmd() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:           "submit",
		Short:         "Run the Reddit sentiment pipeline once and submit the model to FINTER",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return app.Init()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.configPath, "config", "config.yaml", "path to config file")
	f.StringVar(&o.modelName, "model-name", "reddit_sentiment_v1", "model name registered with FINTER")
	f.IntVar(&o.days, "days", 30, "days of history to analyze")
	f.Float64Var(&o.leverage, "leverage", 1.0, "position leverage multiplier")
	f.StringVar(&o.universe, "universe", "us_stock", "FINTER universe")
	f.BoolVar(&o.dryRun, "dry-run", false, "run without submitting")
	return cmd
}

// apply copies flags onto cfg. The CLI submits live unless --dry-run is
// given, whatever pipeline.dry_run says in the config file.
func (o *options) apply(cfg *store.Config) error {
	cfg.Pipeline.ModelName = o.modelName
	cfg.Pipeline.LookbackDays = o.days
	cfg.Alpha.Leverage = o.leverage
	cfg.Finter.Universe = o.universe
	cfg.Pipeline.DryRun = o.dryRun
	if o.days <= 0 {
		return fmt.Errorf("--days must be positive, got %d", o.days)
	}
	return cfg.Validate()
}

func run(ctx context.Context, cmd *cobra.Command, o *options) error {
	cfg, err := app.LoadConfig(ctx, o.configPath)
	if err != nil {
		return err
	}
	if err := o.apply(cfg); err != nil {
		return err
	}
	a, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	report, runErr := a.Pipeline().Run(ctx)
	b, _ := json.MarshalIndent(report, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	if runErr != nil {
		return runErr
	}
	switch report.Outcome {
	case pipeline.OutcomeSubmitted, pipeline.OutcomeDryRun:
		return nil
	default:
		return fmt.Errorf("model not submitted: %s", report.Outcome)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	_ = logger.Shutdown(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
