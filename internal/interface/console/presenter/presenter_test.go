package presenter

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ratingtrends/chess-rankings/internal/application/command"
	"github.com/ratingtrends/chess-rankings/internal/application/query"
	"github.com/ratingtrends/chess-rankings/internal/domain/leaderboard"
	"github.com/ratingtrends/chess-rankings/internal/domain/rating"
	"github.com/ratingtrends/chess-rankings/internal/domain/report"
)

var ref = rating.MustDate(2024, time.January, 3)

func sampleTrend(t *testing.T) *query.PlayerTrend {
	t.Helper()
	tl, err := rating.BuildTimeline([]rating.RawPoint{{2024, 0, 2, 1500}})
	require.NoError(t, err)
	return &query.PlayerTrend{
		Username: "alice",
		Category: leaderboard.Classical,
		Window:   rating.Reconstruct(tl, ref, 2),
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestLeaderboard_TextOneUsernamePerLine(t *testing.T) {
	lb := leaderboard.New(leaderboard.Classical, []leaderboard.Player{
		{Username: "alice", Rating: 2500},
		{Username: "bob", Rating: 2400},
	}, time.Now())

	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatText).Leaderboard(lb))
	assert.Equal(t, "alice\nbob\n", buf.String())
}

func TestLeaderboard_JSON(t *testing.T) {
	lb := leaderboard.New(leaderboard.Blitz, []leaderboard.Player{{Username: "alice", Title: "GM", Rating: 3000}}, time.Now())

	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatJSON).Leaderboard(lb))

	var out leaderboardJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "blitz", out.Category)
	require.Len(t, out.Players, 1)
	assert.Equal(t, 1, out.Players[0].Rank)
	assert.Equal(t, "GM", out.Players[0].Title)
}

func TestTrend_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatText).Trend(sampleTrend(t)))
	assert.Equal(t, "alice, {'Jan 01': None, 'Jan 02': 1500, 'Jan 03': 1500}\n", buf.String())
}

func TestTrend_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatJSON).Trend(sampleTrend(t)))

	var out trendJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "2024-01-01", out.Start)
	assert.Equal(t, "2024-01-03", out.End)
	require.Len(t, out.Ratings, 3)
	assert.Nil(t, out.Ratings[0].Rating)
	assert.Equal(t, 1500, *out.Ratings[2].Rating)
	assert.Nil(t, out.Change)
}

func TestExport_Text(t *testing.T) {
	rep := report.New(leaderboard.Classical, ref, 2, time.Now())
	rep.Rows = []report.Row{
		{Rank: 1, Username: "alice", Window: sampleTrend(t).Window},
		{Rank: 2, Username: "bob", Window: rating.EmptyTrendWindow(ref, 2), Err: errors.New("rating history not found for user 'bob'")},
	}
	rep.Summary = report.Summary{Total: 2, Succeeded: 1, Failed: 1, Duration: 1500 * time.Millisecond}
	res := &command.ExportTrendsResult{
		Report:     rep,
		SinkErrors: []command.SinkError{{Sink: "redis", Err: errors.New("connection refused")}},
	}

	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatText).Export(res, "out.csv"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "An error occurred while processing user bob: rating history not found for user 'bob'", lines[0])
	assert.Equal(t, "CSV file 'out.csv' has been created successfully.", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "2 players, 1 failed, 1.5s"))
	assert.Equal(t, "warning: redis sink failed: connection refused", lines[3])
}

func TestRun_NoneStored(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatText).Run("classical", nil))
	assert.Equal(t, "no stored runs for classical\n", buf.String())
}

func storedRun(t *testing.T) *report.StoredRun {
	t.Helper()
	return &report.StoredRun{
		RunID:         uuid.MustParse("6f1c2a4e-0d3b-4b8e-9a51-3c2d7e8f9a10"),
		Category:      "classical",
		ReferenceDate: ref,
		WindowDays:    2,
		GeneratedAt:   time.Date(2024, time.January, 3, 12, 0, 0, 0, time.UTC),
		Total:         2,
		Failed:        1,
		Checksum:      "deadbeef",
		Rows: []report.StoredRow{
			{Rank: 1, Username: "alice", Window: sampleTrend(t).Window},
			{Rank: 2, Username: "bob", Window: rating.EmptyTrendWindow(ref, 2), Error: "not found"},
		},
	}
}

func TestRun_TextListsRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatText).Run("classical", storedRun(t)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, "run 6f1c2a4e-0d3b-4b8e-9a51-3c2d7e8f9a10", lines[0])
	assert.Equal(t, "players:   2 (1 failed)", lines[4])
	assert.Equal(t, "1. alice, {'Jan 01': None, 'Jan 02': 1500, 'Jan 03': 1500}", lines[6])
	assert.Equal(t, "2. bob: not found", lines[7])
}

func TestRun_JSONIncludesRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, FormatJSON).Run("classical", storedRun(t)))

	var out storedRunJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "2024-01-03", out.ReferenceDate)
	require.Len(t, out.Rows, 2)
	require.Len(t, out.Rows[0].Ratings, 3)
	assert.Nil(t, out.Rows[0].Ratings[0].Rating)
	assert.Equal(t, 1500, *out.Rows[0].Ratings[2].Rating)
	assert.Equal(t, "not found", out.Rows[1].Error)
}
