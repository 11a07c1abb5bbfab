// Package batch runs one trend reconstruction per player on a bounded pool
// of workers and collects the results in input order.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ratingtrends/chess-rankings/internal/domain/rating"
	"github.com/ratingtrends/chess-rankings/pkg/logger"
)

// DefaultMaxConcurrency caps in-flight players when nothing is configured.
const DefaultMaxConcurrency = 10

// Row is the outcome for one input username. A failed row carries Err and
// the placeholder window.
type Row struct {
	Username string
	Window   rating.TrendWindow
	Err      error
}

// PerPlayerFunc reconstructs the trend of one player.
type PerPlayerFunc func(ctx context.Context, username string) (rating.TrendWindow, error)

// PlaceholderFunc returns the window substituted for a failed player.
type PlaceholderFunc func() rating.TrendWindow

// Failure records one failed player.
type Failure struct {
	Index    int
	Username string
	Err      error
}

// Stats describes a finished run.
type Stats struct {
	StartedAt time.Time
	Duration  time.Duration
	Workers   int
	Total     int
	Succeeded int
	Failed    int
	Failures  []Failure
}

// Runner fans a per-player function out over a bounded worker pool.
type Runner struct {
	maxConcurrency int
	logger         *slog.Logger
	onError        func(username string, err error)
	now            func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxConcurrency sets the worker cap. Values below 1 keep the default.
func WithMaxConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxConcurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithOnError registers a side channel for per-player failures.
// Calls are serialized, so fn need not be safe for concurrent use.
func WithOnError(fn func(username string, err error)) Option {
	return func(r *Runner) {
		r.onError = fn
	}
}

// WithClock overrides time.Now for Stats.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		maxConcurrency: DefaultMaxConcurrency,
		logger:         slog.Default(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxConcurrency returns the configured worker cap.
func (r *Runner) MaxConcurrency() int {
	return r.maxConcurrency
}

// Run calls perPlayer once per username with at most
// min(MaxConcurrency, len(usernames)) calls in flight.
//
// A failing or panicking call never aborts the run: it is logged, passed to
// the OnError side channel and replaced by placeholder(). rows[i] always
// belongs to usernames[i], whatever order the calls finish in. Duplicate
// usernames are processed independently.
func (r *Runner) Run(ctx context.Context, usernames []string, perPlayer PerPlayerFunc, placeholder PlaceholderFunc) ([]Row, Stats) {
	startedAt := r.now()
	stats := Stats{StartedAt: startedAt, Total: len(usernames)}
	if len(usernames) == 0 {
		return []Row{}, stats
	}

	stats.Workers = min(r.maxConcurrency, len(usernames))
	rows := make([]Row, len(usernames))

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(stats.Workers)

	for i, username := range usernames {
		g.Go(func() error {
			window, err := r.runOne(ctx, username, perPlayer)
			if err != nil {
				window = placeholder()
				mu.Lock()
				stats.Failures = append(stats.Failures, Failure{Index: i, Username: username, Err: err})
				r.reportFailure(ctx, username, err)
				mu.Unlock()
			}
			rows[i] = Row{Username: username, Window: window, Err: err}
			return nil
		})
	}
	// Tasks never return an error; Wait is only a barrier.
	_ = g.Wait()

	sort.Slice(stats.Failures, func(a, b int) bool { return stats.Failures[a].Index < stats.Failures[b].Index })
	stats.Failed = len(stats.Failures)
	stats.Succeeded = stats.Total - stats.Failed
	stats.Duration = r.now().Sub(startedAt)

	r.logger.InfoContext(ctx, "batch completed",
		logger.Operation("trend_batch"),
		slog.Int("total", stats.Total),
		slog.Int("succeeded", stats.Succeeded),
		slog.Int("failed", stats.Failed),
		slog.Int("workers", stats.Workers),
		logger.Latency(stats.Duration),
	)

	return rows, stats
}

func (r *Runner) runOne(ctx context.Context, username string, perPlayer PerPlayerFunc) (window rating.TrendWindow, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic while processing %s: %v", username, p)
		}
	}()
	if err := ctx.Err(); err != nil {
		return rating.TrendWindow{}, err
	}
	return perPlayer(ctx, username)
}

func (r *Runner) reportFailure(ctx context.Context, username string, err error) {
	r.logger.WarnContext(ctx, "player trend failed, using placeholder row",
		logger.Username(username),
		logger.Err(err),
	)
	if r.onError != nil {
		r.onError(username, err)
	}
}
