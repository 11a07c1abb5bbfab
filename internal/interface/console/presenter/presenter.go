// Package presenter formats report data for the console.
// Text output mirrors the plain listings operators are used to; JSON output
// is meant for piping into other tools.
package presenter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ratingtrends/chess-rankings/internal/application/command"
	"github.com/ratingtrends/chess-rankings/internal/application/query"
	"github.com/ratingtrends/chess-rankings/internal/domain/leaderboard"
	"github.com/ratingtrends/chess-rankings/internal/domain/rating"
	"github.com/ratingtrends/chess-rankings/internal/domain/report"
)

// ══════════════════════════════════════════════════════════════════════════════
// FORMAT
// ══════════════════════════════════════════════════════════════════════════════

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Presenter writes leaderboards, trends and export summaries.
type Presenter struct {
	w      io.Writer
	format Format
}

// New creates a presenter writing to w.
func New(w io.Writer, format Format) *Presenter {
	if format == "" {
		format = FormatText
	}
	return &Presenter{w: w, format: format}
}

// ─────────────────────────────────────────────────────────────────────────────
// LEADERBOARD
// ─────────────────────────────────────────────────────────────────────────────

type leaderboardJSON struct {
	Category  string      `json:"category"`
	FetchedAt time.Time   `json:"fetched_at"`
	Players   []entryJSON `json:"players"`
}

type entryJSON struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Title    string `json:"title,omitempty"`
	Rating   int    `json:"rating"`
	Progress int    `json:"progress"`
	Online   bool   `json:"online"`
}

// Leaderboard prints the ranked usernames, one per line.
func (p *Presenter) Leaderboard(lb *leaderboard.Leaderboard) error {
	if p.format == FormatJSON {
		out := leaderboardJSON{
			Category:  lb.Category.Key(),
			FetchedAt: lb.FetchedAt,
			Players:   make([]entryJSON, 0, lb.Len()),
		}
		for _, e := range lb.Entries {
			out.Players = append(out.Players, entryJSON{
				Rank:     e.Rank,
				Username: e.Player.Username,
				Title:    e.Player.Title,
				Rating:   e.Player.Rating,
				Progress: e.Player.Progress,
				Online:   e.Player.Online,
			})
		}
		return p.encode(out)
	}

	var sb strings.Builder
	for _, name := range lb.Usernames() {
		sb.WriteString(name)
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(p.w, sb.String())
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// TREND
// ─────────────────────────────────────────────────────────────────────────────

type trendJSON struct {
	Username string    `json:"username"`
	Category string    `json:"category"`
	Start    string    `json:"start"`
	End      string    `json:"end"`
	Ratings  []dayJSON `json:"ratings"`
	Change   *int      `json:"change,omitempty"`
	Rank     int       `json:"rank,omitempty"`
}

type dayJSON struct {
	Date   string `json:"date"`
	Rating *int   `json:"rating"`
}

// Trend prints "username, {'Jan 02': 1500, ...}" with None for days
// without a rating.
func (p *Presenter) Trend(t *query.PlayerTrend) error {
	if p.format == FormatJSON {
		out := trendJSON{
			Username: t.Username,
			Category: t.Category.Key(),
			Start:    t.Window.Start.String(),
			End:      t.Window.End().String(),
			Ratings:  windowDays(t.Window),
		}
		if c, ok := t.Window.Change(); ok {
			out.Change = &c
		}
		if t.Entry != nil {
			out.Rank = t.Entry.Rank
		}
		return p.encode(out)
	}

	_, err := fmt.Fprintf(p.w, "%s, %s\n", t.Username, FormatWindow(t.Window))
	return err
}

func windowDays(w rating.TrendWindow) []dayJSON {
	out := make([]dayJSON, 0, w.Len())
	for _, pt := range w.Points {
		day := dayJSON{Date: pt.Date.String()}
		if pt.Rating.Valid {
			v := pt.Rating.Value
			day.Rating = &v
		}
		out = append(out, day)
	}
	return out
}

// FormatWindow renders a window as "{'Jan 02': 1500, 'Jan 03': None}".
func FormatWindow(w rating.TrendWindow) string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, pt := range w.Points {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "'%s': %s", pt.Date.Label(), pt.Rating)
	}
	sb.WriteByte('}')
	return sb.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// EXPORT
// ─────────────────────────────────────────────────────────────────────────────

type exportJSON struct {
	RunID         string        `json:"run_id"`
	Category      string        `json:"category"`
	ReferenceDate string        `json:"reference_date"`
	Path          string        `json:"path,omitempty"`
	Checksum      string        `json:"checksum,omitempty"`
	Total         int           `json:"total"`
	Failed        int           `json:"failed"`
	Duration      string        `json:"duration"`
	Failures      []failureJSON `json:"failures,omitempty"`
	SinkErrors    []failureJSON `json:"sink_errors,omitempty"`
}

type failureJSON struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// Export prints the outcome of a bulk export written to path.
func (p *Presenter) Export(res *command.ExportTrendsResult, path string) error {
	rep := res.Report

	if p.format == FormatJSON {
		out := exportJSON{
			RunID:         rep.RunID.String(),
			Category:      rep.Category.Key(),
			ReferenceDate: rep.ReferenceDate.String(),
			Path:          path,
			Checksum:      rep.Checksum,
			Total:         rep.Summary.Total,
			Failed:        rep.Summary.Failed,
			Duration:      rep.Summary.Duration.String(),
		}
		for _, row := range rep.FailedRows() {
			out.Failures = append(out.Failures, failureJSON{Name: row.Username, Error: row.Err.Error()})
		}
		for _, se := range res.SinkErrors {
			out.SinkErrors = append(out.SinkErrors, failureJSON{Name: se.Sink, Error: se.Err.Error()})
		}
		return p.encode(out)
	}

	var sb strings.Builder
	for _, row := range rep.FailedRows() {
		fmt.Fprintf(&sb, "An error occurred while processing user %s: %v\n", row.Username, row.Err)
	}
	fmt.Fprintf(&sb, "CSV file '%s' has been created successfully.\n", path)
	fmt.Fprintf(&sb, "%d players, %d failed, %s (run %s)\n",
		rep.Summary.Total, rep.Summary.Failed, rep.Summary.Duration.Round(time.Millisecond), rep.RunID)
	for _, se := range res.SinkErrors {
		fmt.Fprintf(&sb, "warning: %s sink failed: %v\n", se.Sink, se.Err)
	}
	_, err := io.WriteString(p.w, sb.String())
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// STORED RUNS
// ─────────────────────────────────────────────────────────────────────────────

type storedRunJSON struct {
	RunID         string          `json:"run_id"`
	Category      string          `json:"category"`
	ReferenceDate string          `json:"reference_date"`
	WindowDays    int             `json:"window_days"`
	GeneratedAt   time.Time       `json:"generated_at"`
	Total         int             `json:"total"`
	Failed        int             `json:"failed"`
	Checksum      string          `json:"checksum"`
	Rows          []storedRowJSON `json:"rows,omitempty"`
}

type storedRowJSON struct {
	Rank     int       `json:"rank"`
	Username string    `json:"username"`
	Ratings  []dayJSON `json:"ratings"`
	Error    string    `json:"error,omitempty"`
}

// Run prints stored run metadata followed by its rows, or a notice when
// there is no run.
func (p *Presenter) Run(category string, run *report.StoredRun) error {
	if p.format == FormatJSON {
		if run == nil {
			return p.encode(nil)
		}
		out := storedRunJSON{
			RunID:         run.RunID.String(),
			Category:      run.Category,
			ReferenceDate: run.ReferenceDate.String(),
			WindowDays:    run.WindowDays,
			GeneratedAt:   run.GeneratedAt,
			Total:         run.Total,
			Failed:        run.Failed,
			Checksum:      run.Checksum,
		}
		for _, row := range run.Rows {
			out.Rows = append(out.Rows, storedRowJSON{
				Rank:     row.Rank,
				Username: row.Username,
				Ratings:  windowDays(row.Window),
				Error:    row.Error,
			})
		}
		return p.encode(out)
	}
	if run == nil {
		_, err := fmt.Fprintf(p.w, "no stored runs for %s\n", category)
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb,
		"run %s\ncategory:  %s\ndate:      %s (%d days)\ngenerated: %s\nplayers:   %d (%d failed)\nchecksum:  %s\n",
		run.RunID, run.Category, run.ReferenceDate, run.WindowDays,
		run.GeneratedAt.Format(time.RFC3339), run.Total, run.Failed, run.Checksum,
	)
	for _, row := range run.Rows {
		if row.Error != "" {
			fmt.Fprintf(&sb, "%d. %s: %s\n", row.Rank, row.Username, row.Error)
			continue
		}
		fmt.Fprintf(&sb, "%d. %s, %s\n", row.Rank, row.Username, FormatWindow(row.Window))
	}
	_, err := io.WriteString(p.w, sb.String())
	return err
}

func (p *Presenter) encode(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
