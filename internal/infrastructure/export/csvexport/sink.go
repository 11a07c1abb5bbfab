// Package csvexport writes trend reports as CSV files: a header of
// "username" plus one ISO date per day, then one row per player in rank
// order.
package csvexport

import (
	"context"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"

	"github.com/ratingtrends/chess-rankings/internal/domain/report"
	"github.com/ratingtrends/chess-rankings/pkg/logger"
)

// DefaultMissingMarker is written for days without a rating.
const DefaultMissingMarker = ""

// FileName returns the default export name, e.g.
// "top_50_classical_players_ratings.csv". The count is the requested
// leaderboard size, falling back to the row count when unset.
func FileName(rep *report.TrendReport) string {
	count := rep.RequestedCount
	if count <= 0 {
		count = len(rep.Rows)
	}
	return fmt.Sprintf("top_%d_%s_players_ratings.csv", count, rep.Category.Key())
}

// FileMode is the permission of written exports.
const FileMode os.FileMode = 0o644

// Options configures the sink.
type Options struct {
	// Path is the output file. When empty, FileName is used inside Dir.
	Path string

	// Dir is the output directory when Path is empty. Defaults to ".".
	Dir string

	// MissingMarker replaces absent ratings.
	MissingMarker string
}

// Sink writes reports to a CSV file. It is the primary export: its error
// fails the run.
type Sink struct {
	opts   Options
	logger *slog.Logger
}

var _ report.Sink = (*Sink)(nil)

// NewSink creates a new CSV sink.
func NewSink(opts Options, log *slog.Logger) *Sink {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	return &Sink{
		opts:   opts,
		logger: logger.OrDefault(log).With(logger.Component("csv")),
	}
}

// Name implements report.Sink.
func (s *Sink) Name() string {
	return "csv"
}

// PathFor returns where rep will be written.
func (s *Sink) PathFor(rep *report.TrendReport) string {
	if s.opts.Path != "" {
		return s.opts.Path
	}
	return filepath.Join(s.opts.Dir, FileName(rep))
}

// Write implements report.Sink. The file is written to a temporary name in
// the target directory and renamed into place, so readers never see a
// partial export. The BLAKE2b-256 digest of the file is stored on rep.
func (s *Sink) Write(ctx context.Context, rep *report.TrendReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.PathFor(rep)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".trends-*.csv")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmp.Name())
	}()

	sum, err := Encode(tmp, rep, s.opts.MissingMarker)
	if err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	// CreateTemp opens with 0600; exports are meant to be shared.
	if err := tmp.Chmod(FileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}

	rep.Checksum = sum
	s.logger.InfoContext(ctx, "csv export written",
		slog.String("path", path),
		slog.Int("rows", len(rep.Rows)),
		slog.String("checksum", sum),
	)
	return nil
}

// Encode writes rep as CSV to w and returns the hex BLAKE2b-256 digest of
// the bytes written.
func Encode(w io.Writer, rep *report.TrendReport, missing string) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}

	cw := csv.NewWriter(io.MultiWriter(w, h))
	if err := cw.Write(rep.Header()); err != nil {
		return "", err
	}
	for _, row := range rep.Rows {
		if err := cw.Write(row.Record(missing)); err != nil {
			return "", err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
