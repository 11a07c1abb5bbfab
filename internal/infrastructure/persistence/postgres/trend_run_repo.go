package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ratingtrends/chess-rankings/internal/domain/rating"
	"github.com/ratingtrends/chess-rankings/internal/domain/report"
	"github.com/ratingtrends/chess-rankings/pkg/logger"
	"github.com/ratingtrends/chess-rankings/pkg/retry"
)

// TrendRunRepository persists export runs. It is a report.Sink and a
// report.RunRepository.
type TrendRunRepository struct {
	conn    *Connection
	retrier *retry.Retrier
	logger  *slog.Logger
}

var (
	_ report.Sink          = (*TrendRunRepository)(nil)
	_ report.RunRepository = (*TrendRunRepository)(nil)
)

// NewTrendRunRepository creates a new repository.
func NewTrendRunRepository(conn *Connection, log *slog.Logger) *TrendRunRepository {
	return &TrendRunRepository{
		conn:    conn,
		retrier: retry.StorageRetrier(),
		logger:  logger.OrDefault(log).With(logger.Component("postgres")),
	}
}

// Name implements report.Sink.
func (r *TrendRunRepository) Name() string {
	return "postgres"
}

// Write implements report.Sink.
func (r *TrendRunRepository) Write(ctx context.Context, rep *report.TrendReport) error {
	return r.SaveRun(ctx, rep)
}

// SaveRun inserts the run and all of its rows in one transaction.
// Transient connection errors are retried; a duplicate run id is not.
func (r *TrendRunRepository) SaveRun(ctx context.Context, rep *report.TrendReport) error {
	start := time.Now()
	err := r.retrier.Do(ctx, func(ctx context.Context) error {
		err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
			return saveRunTx(ctx, tx, rep)
		})
		if err != nil && pgconn.SafeToRetry(err) {
			return retry.Retryable(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("save run %s: %w", rep.RunID, err)
	}

	r.logger.InfoContext(ctx, "export run stored",
		logger.RunID(rep.RunID.String()),
		slog.Int("rows", len(rep.Rows)),
		logger.Latency(time.Since(start)),
	)
	return nil
}

func saveRunTx(ctx context.Context, tx pgx.Tx, rep *report.TrendReport) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO export_runs (
			run_id, category, reference_date, window_days, generated_at,
			total_players, failed_players, checksum
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rep.RunID,
		rep.Category.Key(),
		rep.ReferenceDate.Time(),
		rep.WindowDays,
		rep.GeneratedAt,
		len(rep.Rows),
		len(rep.FailedRows()),
		rep.Checksum,
	)
	if err != nil {
		return fmt.Errorf("insert export run: %w", err)
	}

	batch := &pgx.Batch{}
	for _, row := range rep.Rows {
		batch.Queue(`
			INSERT INTO trend_rows (run_id, rank, username, ratings, error)
			VALUES ($1, $2, $3, $4, $5)`,
			rep.RunID, row.Rank, row.Username, ratingsArray(row.Window), rowError(row.Err),
		)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert trend rows: %w", err)
	}
	return nil
}

// ratingsArray maps a window to an INTEGER[] with NULL for absent days.
func ratingsArray(w rating.TrendWindow) []*int32 {
	out := make([]*int32, len(w.Points))
	for i, p := range w.Points {
		if p.Rating.Valid {
			v := int32(p.Rating.Value)
			out[i] = &v
		}
	}
	return out
}

func rowError(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	return &msg
}

// LatestRun implements report.RunRepository.
func (r *TrendRunRepository) LatestRun(ctx context.Context, category string) (*report.StoredRun, error) {
	var (
		run     report.StoredRun
		runID   uuid.UUID
		refDate time.Time
	)
	err := r.conn.QueryRow(ctx, `
		SELECT run_id, category, reference_date, window_days, generated_at,
		       total_players, failed_players, checksum
		FROM export_runs
		WHERE category = $1
		ORDER BY generated_at DESC
		LIMIT 1`, category,
	).Scan(&runID, &run.Category, &refDate, &run.WindowDays, &run.GeneratedAt, &run.Total, &run.Failed, &run.Checksum)
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run for %s: %w", category, err)
	}

	run.RunID = runID
	run.ReferenceDate = rating.DateOf(refDate)
	return &run, nil
}

// RowsForRun implements report.RunRepository. Windows are rebuilt from the
// run's reference date.
func (r *TrendRunRepository) RowsForRun(ctx context.Context, runID uuid.UUID) ([]report.StoredRow, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT t.rank, t.username, t.ratings, COALESCE(t.error, ''), e.reference_date
		FROM trend_rows t
		JOIN export_runs e ON e.run_id = t.run_id
		WHERE t.run_id = $1
		ORDER BY t.rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("rows for run %s: %w", runID, err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (report.StoredRow, error) {
		var (
			s       report.StoredRow
			ratings []*int32
			refDate time.Time
		)
		if err := row.Scan(&s.Rank, &s.Username, &ratings, &s.Error, &refDate); err != nil {
			return s, err
		}
		s.Window = windowFromArray(rating.DateOf(refDate), ratings)
		return s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan rows for run %s: %w", runID, err)
	}
	return out, nil
}

// windowFromArray is the inverse of ratingsArray: the last element is the
// reference date.
func windowFromArray(ref rating.Date, ratings []*int32) rating.TrendWindow {
	w := rating.TrendWindow{
		Start:  ref.AddDays(-(len(ratings) - 1)),
		Points: make([]rating.TrendPoint, len(ratings)),
	}
	for i, v := range ratings {
		w.Points[i].Date = w.Start.AddDays(i)
		if v != nil {
			w.Points[i].Rating = rating.Some(int(*v))
		}
	}
	return w
}
