package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ratingtrends/chess-rankings/config"
	"github.com/ratingtrends/chess-rankings/internal/application/batch"
	"github.com/ratingtrends/chess-rankings/internal/application/command"
	"github.com/ratingtrends/chess-rankings/internal/application/query"
	"github.com/ratingtrends/chess-rankings/internal/domain/rating"
	"github.com/ratingtrends/chess-rankings/internal/infrastructure/export/csvexport"
	"github.com/ratingtrends/chess-rankings/internal/infrastructure/external/lichess"
	"github.com/ratingtrends/chess-rankings/internal/infrastructure/persistence/postgres"
	"github.com/ratingtrends/chess-rankings/internal/infrastructure/persistence/redis"
	"github.com/ratingtrends/chess-rankings/internal/infrastructure/scheduler"
	"github.com/ratingtrends/chess-rankings/internal/interface/console/presenter"
	statushttp "github.com/ratingtrends/chess-rankings/internal/interface/http"
	"github.com/ratingtrends/chess-rankings/internal/interface/http/handlers"
	"github.com/ratingtrends/chess-rankings/pkg/circuitbreaker"
	"github.com/ratingtrends/chess-rankings/pkg/logger"
	"github.com/ratingtrends/chess-rankings/pkg/timeutil"
)

// app holds the wired dependencies of one command invocation.
type app struct {
	cfg       *config.Config
	log       *slog.Logger
	presenter *presenter.Presenter

	leaderboards *query.GetLeaderboardHandler
	trends       *query.GetPlayerTrendHandler
	topTrend     *query.GetTopPlayerTrendHandler
	export       *command.ExportTrendsHandler
	csv          *csvexport.Sink
	provider     *lichess.Client

	// Optional, nil unless configured.
	db    *postgres.Connection
	runs  *postgres.TrendRunRepository
	cache *redis.Cache
	board *redis.TrendBoard

	clock timeutil.Clock
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING
// ══════════════════════════════════════════════════════════════════════════════

func newApp(ctx context.Context, cfg *config.Config, out io.Writer) (*app, error) {
	log := logger.Setup(logger.Options{
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
		Format: logger.ParseFormat(cfg.Observability.LogFormat),
	})

	format, err := presenter.ParseFormat(cfg.Report.OutputFormat)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		log:       log,
		presenter: presenter.New(out, format),
		clock:     timeutil.SystemClock,
	}

	client := lichess.NewClient(lichess.ClientConfig{
		BaseURL:    cfg.Lichess.BaseURL,
		Timeout:    cfg.Lichess.Timeout,
		UserAgent:  cfg.Lichess.UserAgent,
		MaxRetries: cfg.Lichess.MaxRetries,
		CircuitBreaker: circuitbreaker.ProviderBreaker(
			cfg.Lichess.CircuitBreakerThreshold,
			cfg.Lichess.CircuitBreakerTimeout,
			func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			},
		),
		Logger: log,
	})
	a.provider = client

	a.leaderboards = query.NewGetLeaderboardHandler(client, log)
	a.trends = query.NewGetPlayerTrendHandler(client, log)
	a.topTrend = query.NewGetTopPlayerTrendHandler(a.leaderboards, a.trends)

	a.csv = csvexport.NewSink(csvexport.Options{
		Path:          cfg.Report.CSVPath,
		Dir:           cfg.Report.CSVDir,
		MissingMarker: cfg.Report.MissingMarker,
	}, log)

	opts := []command.ExportOption{command.WithPrimarySink(a.csv)}

	if cfg.Database.Enabled {
		if err := a.connectDatabase(ctx); err != nil {
			log.Warn("database unavailable, run storage disabled", logger.Err(err))
		} else {
			opts = append(opts, command.WithSecondarySink(a.runs))
		}
	}

	if cfg.Redis.Enabled {
		if err := a.connectRedis(ctx); err != nil {
			log.Warn("redis unavailable, trend board disabled", logger.Err(err))
		} else {
			a.board = redis.NewTrendBoard(a.cache, cfg.Redis.TTL, log)
			opts = append(opts, command.WithSecondarySink(a.board))
		}
	}

	runner := batch.NewRunner(
		batch.WithMaxConcurrency(cfg.Batch.MaxConcurrency),
		batch.WithLogger(log),
	)
	a.export = command.NewExportTrendsHandler(a.leaderboards, a.trends, runner, log, opts...)

	return a, nil
}

func (a *app) connectDatabase(ctx context.Context) error {
	pgCfg := postgres.DefaultConfig(a.cfg.Database.URL)
	if a.cfg.Database.MaxConns > 0 {
		pgCfg.MaxConns = a.cfg.Database.MaxConns
	}
	if a.cfg.Database.ConnectTimeout > 0 {
		pgCfg.ConnectTimeout = a.cfg.Database.ConnectTimeout
	}

	conn, err := postgres.NewConnection(ctx, pgCfg)
	if err != nil {
		return err
	}

	if a.cfg.Database.AutoMigrate {
		applied, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			conn.Close()
			return fmt.Errorf("migrate: %w", err)
		}
		if applied > 0 {
			a.log.Info("database migrations applied", slog.Int("count", applied))
		}
	}

	a.db = conn
	a.runs = postgres.NewTrendRunRepository(conn, a.log)
	return nil
}

func (a *app) connectRedis(ctx context.Context) error {
	rc := redis.DefaultConfig()
	rc.Addr = a.cfg.Redis.Addr
	rc.Password = a.cfg.Redis.Password
	rc.DB = a.cfg.Redis.DB

	cache, err := redis.NewCache(ctx, rc)
	if err != nil {
		return err
	}
	a.cache = cache
	return nil
}

// close releases optional connections.
func (a *app) close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn("closing redis", logger.Err(err))
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// REPORTS
// ══════════════════════════════════════════════════════════════════════════════

// referenceDate returns the --date override or today in the configured
// timezone.
func (a *app) referenceDate(override string) (rating.Date, error) {
	if override != "" {
		d, err := rating.ParseDate(override)
		if err != nil {
			return rating.Date{}, fmt.Errorf("invalid --date %q: %w", override, err)
		}
		return d, nil
	}
	return rating.DateOf(timeutil.Today(a.clock, a.cfg.App.Location)), nil
}

func (a *app) printTop(ctx context.Context) error {
	lb, err := a.leaderboards.Handle(ctx, query.GetLeaderboardQuery{
		Category: a.cfg.Category(),
		Count:    a.cfg.Report.TopCount,
	})
	if err != nil {
		return err
	}
	return a.presenter.Leaderboard(lb)
}

func (a *app) printTrend(ctx context.Context, username string, ref rating.Date) error {
	var (
		trend *query.PlayerTrend
		err   error
	)
	if username == "" {
		trend, err = a.topTrend.Handle(ctx, query.GetTopPlayerTrendQuery{
			Category:      a.cfg.Category(),
			ReferenceDate: ref,
			WindowDays:    a.cfg.Report.WindowDays,
		})
	} else {
		trend, err = a.trends.Handle(ctx, query.GetPlayerTrendQuery{
			Username:      username,
			Category:      a.cfg.Category(),
			ReferenceDate: ref,
			WindowDays:    a.cfg.Report.WindowDays,
		})
	}
	if err != nil {
		return err
	}
	return a.presenter.Trend(trend)
}

func (a *app) runExport(ctx context.Context, ref rating.Date) error {
	res, err := a.export.Handle(ctx, command.ExportTrendsCommand{
		Category:      a.cfg.Category(),
		Count:         a.cfg.Report.TopCount,
		ReferenceDate: ref,
		WindowDays:    a.cfg.Report.WindowDays,
	})
	if err != nil {
		if res != nil {
			return fmt.Errorf("an error occurred while writing to the file '%s': %w", a.csv.PathFor(res.Report), err)
		}
		return err
	}
	return a.presenter.Export(res, a.csv.PathFor(res.Report))
}

func (a *app) printLatestRun(ctx context.Context) error {
	if a.runs == nil {
		return fmt.Errorf("the runs command needs a database: set DATABASE_ENABLED and DATABASE_URL")
	}

	category := a.cfg.Category().Key()
	run, err := a.runs.LatestRun(ctx, category)
	if err != nil {
		return err
	}
	if run != nil {
		if run.Rows, err = a.runs.RowsForRun(ctx, run.RunID); err != nil {
			return err
		}
	}
	return a.presenter.Run(category, run)
}

// statusServer builds the worker status endpoint over whatever backends are
// connected.
func (a *app) statusServer(sched *scheduler.Scheduler) *statushttp.Server {
	checker := handlers.NewChecker(5 * time.Second)
	checker.Add("lichess", handlers.BreakerCheck(func() bool {
		return a.provider.BreakerState() == circuitbreaker.StateOpen
	}, "lichess circuit breaker is open"))

	deps := statushttp.Dependencies{
		Checker: checker,
		Jobs:    sched,
		Logger:  a.log,
	}
	if a.db != nil {
		checker.Add("postgres", handlers.PingCheck(a.db))
	}
	if a.cache != nil {
		checker.Add("redis", handlers.PingCheck(a.cache))
		deps.Board = a.board
	}

	return statushttp.NewServer(statushttp.DefaultConfig(a.cfg.Scheduler.StatusAddr), deps)
}

// shutdownContext bounds cleanup after the main context is cancelled.
func (a *app) shutdownContext() (context.Context, context.CancelFunc) {
	timeout := a.cfg.App.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}
