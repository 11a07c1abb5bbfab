// Package command contains write operations (CQRS - Commands).
// Commands produce durable side effects: files, database rows, cache entries.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ratingtrends/chess-rankings/internal/application/batch"
	"github.com/ratingtrends/chess-rankings/internal/application/query"
	"github.com/ratingtrends/chess-rankings/internal/domain/leaderboard"
	"github.com/ratingtrends/chess-rankings/internal/domain/rating"
	"github.com/ratingtrends/chess-rankings/internal/domain/report"
	"github.com/ratingtrends/chess-rankings/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPORT TRENDS COMMAND
// Reconstructs the trend of every player on the leaderboard and hands the
// ordered rows to the configured sinks.
// ══════════════════════════════════════════════════════════════════════════════

// ExportTrendsCommand contains the export parameters.
type ExportTrendsCommand struct {
	// Category to rank. Zero value = leaderboard.DefaultCategory.
	Category leaderboard.Category

	// Count is the leaderboard size (default 50).
	Count int

	// ReferenceDate is the last day of every window.
	ReferenceDate rating.Date

	// WindowDays is the trend length. Values below 1 select
	// rating.DefaultWindowDays.
	WindowDays int
}

// Validate applies defaults and checks required fields.
func (c *ExportTrendsCommand) Validate() error {
	if c.ReferenceDate.IsZero() {
		return errors.New("export_trends: reference date is required")
	}
	if c.Category.IsZero() {
		c.Category = leaderboard.DefaultCategory
	}
	if c.Count == 0 {
		c.Count = leaderboard.DefaultCount
	}
	if c.WindowDays < 1 {
		c.WindowDays = rating.DefaultWindowDays
	}
	return nil
}

// SinkError is a failed secondary sink. The export itself succeeded.
type SinkError struct {
	Sink string
	Err  error
}

// ExportTrendsResult is the outcome of an export.
type ExportTrendsResult struct {
	Report *report.TrendReport
	Stats  batch.Stats

	// SinkErrors lists secondary sinks that failed.
	SinkErrors []SinkError
}

// ExportTrendsHandler handles bulk trend exports.
type ExportTrendsHandler struct {
	leaderboards *query.GetLeaderboardHandler
	trends       *query.GetPlayerTrendHandler
	runner       *batch.Runner
	primary      report.Sink
	secondary    []report.Sink
	logger       *slog.Logger
	now          func() time.Time
}

// ExportOption configures the handler.
type ExportOption func(*ExportTrendsHandler)

// WithPrimarySink sets the sink whose failure fails the export.
func WithPrimarySink(s report.Sink) ExportOption {
	return func(h *ExportTrendsHandler) {
		h.primary = s
	}
}

// WithSecondarySink adds a sink whose failure is only logged.
func WithSecondarySink(s report.Sink) ExportOption {
	return func(h *ExportTrendsHandler) {
		if s != nil {
			h.secondary = append(h.secondary, s)
		}
	}
}

// WithClock overrides time.Now for report timestamps.
func WithClock(now func() time.Time) ExportOption {
	return func(h *ExportTrendsHandler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewExportTrendsHandler creates a new export handler.
func NewExportTrendsHandler(
	leaderboards *query.GetLeaderboardHandler,
	trends *query.GetPlayerTrendHandler,
	runner *batch.Runner,
	log *slog.Logger,
	opts ...ExportOption,
) *ExportTrendsHandler {
	h := &ExportTrendsHandler{
		leaderboards: leaderboards,
		trends:       trends,
		runner:       runner,
		logger:       logger.OrDefault(log),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle runs the export.
//
// A leaderboard failure aborts before any trend is fetched. Per-player
// failures become all-absent rows. The primary sink's failure is returned;
// secondary sink failures are reported in the result.
func (h *ExportTrendsHandler) Handle(ctx context.Context, cmd ExportTrendsCommand) (*ExportTrendsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	lb, err := h.leaderboards.Handle(ctx, query.GetLeaderboardQuery{Category: cmd.Category, Count: cmd.Count})
	if err != nil {
		return nil, err
	}

	rep := report.New(lb.Category, cmd.ReferenceDate, cmd.WindowDays, h.now())
	rep.RequestedCount = cmd.Count
	log := h.logger.With(logger.RunID(rep.RunID.String()), logger.Category(lb.Category.Key()))
	log.InfoContext(ctx, "export started",
		slog.Int("players", lb.Len()),
		slog.String("reference_date", cmd.ReferenceDate.String()),
	)

	rows, stats := h.runner.Run(ctx, lb.Usernames(),
		func(ctx context.Context, username string) (rating.TrendWindow, error) {
			return h.trends.Window(ctx, username, lb.Category, cmd.ReferenceDate, cmd.WindowDays)
		},
		func() rating.TrendWindow {
			return rating.EmptyTrendWindow(cmd.ReferenceDate, cmd.WindowDays)
		},
	)

	rep.Rows = make([]report.Row, len(rows))
	for i, row := range rows {
		rep.Rows[i] = report.Row{
			Rank:     lb.Entries[i].Rank,
			Username: row.Username,
			Window:   row.Window,
			Err:      row.Err,
		}
	}
	rep.Summary = report.Summary{
		Total:     stats.Total,
		Succeeded: stats.Succeeded,
		Failed:    stats.Failed,
		Duration:  stats.Duration,
	}

	result := &ExportTrendsResult{Report: rep, Stats: stats}

	if h.primary != nil {
		if err := h.primary.Write(ctx, rep); err != nil {
			return result, fmt.Errorf("export_trends: write %s: %w", h.primary.Name(), err)
		}
	}
	for _, sink := range h.secondary {
		if err := sink.Write(ctx, rep); err != nil {
			log.WarnContext(ctx, "secondary sink failed",
				logger.Component(sink.Name()),
				logger.Err(err),
			)
			result.SinkErrors = append(result.SinkErrors, SinkError{Sink: sink.Name(), Err: err})
		}
	}

	log.InfoContext(ctx, "export completed",
		slog.Int("succeeded", stats.Succeeded),
		slog.Int("failed", stats.Failed),
		slog.String("checksum", rep.Checksum),
	)

	return result, nil
}
