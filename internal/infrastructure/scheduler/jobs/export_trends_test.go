package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ratingtrends/chess-rankings/internal/application/command"
	"github.com/ratingtrends/chess-rankings/internal/domain/leaderboard"
	"github.com/ratingtrends/chess-rankings/internal/domain/rating"
	"github.com/ratingtrends/chess-rankings/internal/domain/report"
	"github.com/ratingtrends/chess-rankings/pkg/logger"
	"github.com/ratingtrends/chess-rankings/pkg/timeutil"
)

type fakeExporter struct {
	cmds []command.ExportTrendsCommand
	err  error
}

func (f *fakeExporter) Handle(ctx context.Context, cmd command.ExportTrendsCommand) (*command.ExportTrendsResult, error) {
	f.cmds = append(f.cmds, cmd)
	if f.err != nil {
		return nil, f.err
	}
	rep := report.New(cmd.Category, cmd.ReferenceDate, cmd.WindowDays, time.Now())
	rep.Summary = report.Summary{Total: 3, Succeeded: 2, Failed: 1}
	return &command.ExportTrendsResult{Report: rep}, nil
}

func TestExportTrendsJob_UsesTodayInLocation(t *testing.T) {
	// 23:30 UTC on Jan 9 is already Jan 10 in Almaty (UTC+5).
	now := time.Date(2024, 1, 9, 23, 30, 0, 0, time.UTC)
	almaty := time.FixedZone("ALMT", 5*60*60)

	exp := &fakeExporter{}
	cfg := DefaultExportTrendsConfig()
	cfg.Category = leaderboard.Rapid
	cfg.Location = almaty
	job := NewExportTrendsJob(exp, cfg, timeutil.FixedClock(now), logger.Discard())

	require.NoError(t, job.Run(context.Background()))

	require.Len(t, exp.cmds, 1)
	assert.Equal(t, rating.MustDate(2024, time.January, 10), exp.cmds[0].ReferenceDate)
	assert.Equal(t, leaderboard.Rapid, exp.cmds[0].Category)
	assert.Equal(t, 50, exp.cmds[0].Count)
	assert.Equal(t, 30, exp.cmds[0].WindowDays)

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Failed)
}

func TestExportTrendsJob_PropagatesError(t *testing.T) {
	exp := &fakeExporter{err: errors.New("leaderboard unavailable")}
	job := NewExportTrendsJob(exp, DefaultExportTrendsConfig(), nil, logger.Discard())

	err := job.Run(context.Background())
	assert.ErrorContains(t, err, "leaderboard unavailable")
	assert.Nil(t, job.LastStats())
}

func TestExportTrendsJob_NameAndDescription(t *testing.T) {
	job := NewExportTrendsJob(&fakeExporter{}, DefaultExportTrendsConfig(), nil, nil)
	assert.Equal(t, "export_trends_classical", job.Name())
	assert.Equal(t, "Exports 30-day classical rating trends of the top 50 players", job.Description())
}
