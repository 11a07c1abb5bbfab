package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ratingtrends/chess-rankings/config"
	"github.com/ratingtrends/chess-rankings/internal/infrastructure/scheduler"
	"github.com/ratingtrends/chess-rankings/internal/infrastructure/scheduler/jobs"
	statushttp "github.com/ratingtrends/chess-rankings/internal/interface/http"
	"github.com/ratingtrends/chess-rankings/pkg/logger"
)

// globalFlags are shared by every subcommand and override configuration.
type globalFlags struct {
	configPath string
	category   string
	count      int
	window     int
	date       string
	format     string
	logLevel   string
	output     string
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "chess-rankings",
		Short: "Rating trends for the top Lichess players",
		Long: `chess-rankings lists the top players of a Lichess leaderboard and
reconstructs their daily rating over the last days.

Without a subcommand it prints the top players, the top player's trend and
writes the CSV export, in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: withApp(flags, func(ctx context.Context, a *app) error {
			ref, err := a.referenceDate(flags.date)
			if err != nil {
				return err
			}
			if err := a.printTop(ctx); err != nil {
				return err
			}
			if err := a.printTrend(ctx, "", ref); err != nil {
				return err
			}
			return a.runExport(ctx, ref)
		}),
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	pf.StringVar(&flags.category, "category", "", "leaderboard category (classical, rapid, blitz, ...)")
	pf.IntVar(&flags.count, "count", 0, "number of top players (1-200)")
	pf.IntVar(&flags.window, "window", 0, "trailing window in days")
	pf.StringVar(&flags.date, "date", "", "reference date YYYY-MM-DD (default: today)")
	pf.StringVar(&flags.format, "format", "", "console output format: text or json")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newTopCommand(flags),
		newTrendCommand(flags),
		newExportCommand(flags),
		newWorkerCommand(flags),
		newRunsCommand(flags),
	)
	return root
}

func newTopCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "top",
		Short: "Print the usernames of the top players",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(ctx context.Context, a *app) error {
			return a.printTop(ctx)
		}),
	}
}

func newTrendCommand(flags *globalFlags) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Print a player's daily rating trend (default: the top player)",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(ctx context.Context, a *app) error {
			ref, err := a.referenceDate(flags.date)
			if err != nil {
				return err
			}
			return a.printTrend(ctx, username, ref)
		}),
	}
	cmd.Flags().StringVarP(&username, "user", "u", "", "Lichess username")
	return cmd
}

func newExportCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the CSV of the top players' trends",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(ctx context.Context, a *app) error {
			ref, err := a.referenceDate(flags.date)
			if err != nil {
				return err
			}
			return a.runExport(ctx, ref)
		}),
	}
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "CSV file path")
	return cmd
}

func newWorkerCommand(flags *globalFlags) *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the scheduled export until interrupted",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(ctx context.Context, a *app) error {
			return runWorker(ctx, a, runNow)
		}),
	}
	cmd.Flags().BoolVar(&runNow, "run-now", false, "export once at startup")
	return cmd
}

func newRunsCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "Show the latest stored export run",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(ctx context.Context, a *app) error {
			return a.printLatestRun(ctx)
		}),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// withApp loads configuration, applies flags, wires the app and runs fn.
func withApp(flags *globalFlags, fn func(ctx context.Context, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flags.configPath)
		if err != nil {
			return err
		}
		if err := flags.apply(cmd, cfg); err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer a.close()

		return fn(cmd.Context(), a)
	}
}

// apply overrides cfg with flags the user set explicitly.
func (f *globalFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("category") {
		cfg.Report.Category = f.category
	}
	if changed("count") {
		cfg.Report.TopCount = f.count
	}
	if changed("window") {
		cfg.Report.WindowDays = f.window
	}
	if changed("format") {
		cfg.Report.OutputFormat = f.format
	}
	if changed("log-level") {
		cfg.Observability.LogLevel = f.logLevel
	}
	if changed("output") {
		cfg.Report.CSVPath = f.output
	}
	if err := cfg.Resolve(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func runWorker(ctx context.Context, a *app, runNow bool) error {
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   a.log,
		Timezone: a.cfg.App.Location,
	})

	job := jobs.NewExportTrendsJob(a.export, jobs.ExportTrendsConfig{
		Category:   a.cfg.Category(),
		Count:      a.cfg.Report.TopCount,
		WindowDays: a.cfg.Report.WindowDays,
		Location:   a.cfg.App.Location,
		Timeout:    a.cfg.Scheduler.JobTimeout,
	}, a.clock, a.log)

	if err := sched.Register(job, a.cfg.Scheduler.ExportCron); err != nil {
		return err
	}

	if runNow {
		if _, err := sched.RunNow(ctx, job.Name()); err != nil {
			a.log.Error("initial export failed", logger.Err(err))
		}
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	a.log.Info("worker started", "schedule", a.cfg.Scheduler.ExportCron, "timezone", a.cfg.App.Location.String())

	var (
		status    *statushttp.Server
		statusErr <-chan error
	)
	if a.cfg.Scheduler.StatusAddr != "" {
		status = a.statusServer(sched)
		statusErr = status.StartAsync()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-statusErr:
		if err != nil {
			runErr = fmt.Errorf("status server: %w", err)
		}
	}
	a.log.Info("shutting down worker")

	stopCtx, cancel := a.shutdownContext()
	defer cancel()
	if status != nil {
		if err := status.Shutdown(stopCtx); err != nil {
			a.log.Warn("status server shutdown", logger.Err(err))
		}
	}
	if err := sched.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
