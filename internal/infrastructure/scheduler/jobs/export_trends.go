// Package jobs contains the scheduled jobs run by the worker.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ratingtrends/chess-rankings/internal/application/command"
	"github.com/ratingtrends/chess-rankings/internal/domain/leaderboard"
	"github.com/ratingtrends/chess-rankings/internal/domain/rating"
	"github.com/ratingtrends/chess-rankings/pkg/logger"
	"github.com/ratingtrends/chess-rankings/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPORT TRENDS JOB
// ══════════════════════════════════════════════════════════════════════════════

// Exporter runs one bulk export.
type Exporter interface {
	Handle(ctx context.Context, cmd command.ExportTrendsCommand) (*command.ExportTrendsResult, error)
}

// ExportTrendsConfig contains configuration for the export job.
type ExportTrendsConfig struct {
	Category   leaderboard.Category
	Count      int
	WindowDays int

	// Location decides which calendar day "today" is.
	Location *time.Location

	// Timeout is the maximum duration of one run.
	Timeout time.Duration
}

// DefaultExportTrendsConfig returns sensible defaults.
func DefaultExportTrendsConfig() ExportTrendsConfig {
	return ExportTrendsConfig{
		Category:   leaderboard.DefaultCategory,
		Count:      leaderboard.DefaultCount,
		WindowDays: rating.DefaultWindowDays,
		Location:   time.UTC,
		Timeout:    10 * time.Minute,
	}
}

// ExportStats summarises the last run.
type ExportStats struct {
	RunID         string
	ReferenceDate rating.Date
	StartedAt     time.Time
	Duration      time.Duration
	Total         int
	Failed        int
	SinkErrors    int
}

// ExportTrendsJob exports the trend report for today's date.
type ExportTrendsJob struct {
	exporter Exporter
	config   ExportTrendsConfig
	clock    timeutil.Clock
	logger   *slog.Logger

	lastStats atomic.Pointer[ExportStats]
}

// NewExportTrendsJob creates a new export job.
func NewExportTrendsJob(exporter Exporter, config ExportTrendsConfig, clock timeutil.Clock, log *slog.Logger) *ExportTrendsJob {
	if clock == nil {
		clock = timeutil.SystemClock
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &ExportTrendsJob{
		exporter: exporter,
		config:   config,
		clock:    clock,
		logger:   logger.OrDefault(log).With(logger.Operation("export_trends_job")),
	}
}

// Name returns the job name.
func (j *ExportTrendsJob) Name() string {
	return "export_trends_" + j.config.Category.Key()
}

// Description returns a human-readable description.
func (j *ExportTrendsJob) Description() string {
	return fmt.Sprintf("Exports %d-day %s rating trends of the top %d players",
		j.config.WindowDays, j.config.Category.Key(), j.config.Count)
}

// Run executes the export.
func (j *ExportTrendsJob) Run(ctx context.Context) error {
	startedAt := j.clock()

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	ref := rating.DateOf(timeutil.Today(j.clock, j.config.Location))
	res, err := j.exporter.Handle(ctx, command.ExportTrendsCommand{
		Category:      j.config.Category,
		Count:         j.config.Count,
		ReferenceDate: ref,
		WindowDays:    j.config.WindowDays,
	})
	if err != nil {
		return fmt.Errorf("export trends for %s: %w", ref, err)
	}

	stats := &ExportStats{
		RunID:         res.Report.RunID.String(),
		ReferenceDate: ref,
		StartedAt:     startedAt,
		Duration:      j.clock().Sub(startedAt),
		Total:         res.Report.Summary.Total,
		Failed:        res.Report.Summary.Failed,
		SinkErrors:    len(res.SinkErrors),
	}
	j.lastStats.Store(stats)

	j.logger.InfoContext(ctx, "scheduled export finished",
		logger.RunID(stats.RunID),
		slog.Int("total", stats.Total),
		slog.Int("failed", stats.Failed),
		slog.Int("sink_errors", stats.SinkErrors),
	)
	return nil
}

// LastStats returns the stats of the last successful run, or nil.
func (j *ExportTrendsJob) LastStats() *ExportStats {
	return j.lastStats.Load()
}
