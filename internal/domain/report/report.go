// Package report holds the bulk trend export as it leaves the application
// layer: one row per ranked player with the reconstructed window, in rank
// order, plus run metadata. Sinks (CSV file, database, cache) write it.
package report

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ratingtrends/chess-rankings/internal/domain/leaderboard"
	"github.com/ratingtrends/chess-rankings/internal/domain/rating"
)

// UsernameColumn is the first header cell.
const UsernameColumn = "username"

// Row is one player's trend. Err is set when the trend could not be
// reconstructed; the window is then all absent.
type Row struct {
	Rank     int
	Username string
	Window   rating.TrendWindow
	Err      error
}

// Failed reports whether the row is a placeholder for a failed player.
func (r Row) Failed() bool {
	return r.Err != nil
}

// Record renders the row as CSV cells: the username followed by one cell per
// day, using missing for absent ratings.
func (r Row) Record(missing string) []string {
	out := make([]string, 0, r.Window.Len()+1)
	out = append(out, r.Username)
	for _, v := range r.Window.Ratings() {
		if v.Valid {
			out = append(out, v.String())
		} else {
			out = append(out, missing)
		}
	}
	return out
}

// Summary counts the outcome of a run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// TrendReport is one bulk export run.
type TrendReport struct {
	RunID         uuid.UUID
	Category      leaderboard.Category
	ReferenceDate rating.Date
	WindowDays    int
	GeneratedAt   time.Time
	Rows          []Row
	Summary       Summary

	// RequestedCount is the leaderboard size asked for. The provider may
	// return fewer players, so it can exceed len(Rows).
	RequestedCount int

	// Checksum is the hex BLAKE2b-256 digest of the primary export file,
	// set by the CSV sink.
	Checksum string
}

// New creates a report with a fresh run id.
func New(category leaderboard.Category, ref rating.Date, windowDays int, generatedAt time.Time) *TrendReport {
	return &TrendReport{
		RunID:         uuid.New(),
		Category:      category,
		ReferenceDate: ref,
		WindowDays:    windowDays,
		GeneratedAt:   generatedAt,
	}
}

// Dates returns the window days shared by every row.
func (r *TrendReport) Dates() []rating.Date {
	days := r.WindowDays
	if days < 0 {
		days = 0
	}
	start := r.ReferenceDate.AddDays(-days)
	out := make([]rating.Date, days+1)
	for i := range out {
		out[i] = start.AddDays(i)
	}
	return out
}

// Header returns "username" followed by the ISO dates of the window.
func (r *TrendReport) Header() []string {
	dates := r.Dates()
	out := make([]string, 0, len(dates)+1)
	out = append(out, UsernameColumn)
	for _, d := range dates {
		out = append(out, d.String())
	}
	return out
}

// Usernames returns the row usernames in rank order.
func (r *TrendReport) Usernames() []string {
	out := make([]string, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row.Username
	}
	return out
}

// FailedRows returns the placeholder rows.
func (r *TrendReport) FailedRows() []Row {
	var out []Row
	for _, row := range r.Rows {
		if row.Failed() {
			out = append(out, row)
		}
	}
	return out
}

// Sink receives a finished report.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string

	// Write stores the report. Sinks may annotate the report (the CSV sink
	// sets Checksum) and are called in registration order.
	Write(ctx context.Context, r *TrendReport) error
}

// StoredRun is run metadata read back from durable storage.
type StoredRun struct {
	RunID         uuid.UUID
	Category      string
	ReferenceDate rating.Date
	WindowDays    int
	GeneratedAt   time.Time
	Total         int
	Failed        int
	Checksum      string

	// Rows is filled only when the caller asks for them.
	Rows []StoredRow
}

// StoredRow is one persisted player row. Error is empty for players whose
// trend was reconstructed.
type StoredRow struct {
	Rank     int
	Username string
	Window   rating.TrendWindow
	Error    string
}

// RunRepository reads back stored runs.
type RunRepository interface {
	// LatestRun returns the most recent run for category, or nil when none
	// has been stored.
	LatestRun(ctx context.Context, category string) (*StoredRun, error)

	// RowsForRun returns the rows of a run in rank order.
	RowsForRun(ctx context.Context, runID uuid.UUID) ([]StoredRow, error)
}
