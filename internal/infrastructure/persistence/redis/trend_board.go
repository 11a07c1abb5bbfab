package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ratingtrends/chess-rankings/internal/domain/rating"
	"github.com/ratingtrends/chess-rankings/internal/domain/report"
	"github.com/ratingtrends/chess-rankings/pkg/logger"
)

// CachedTrend is one player's stored window.
type CachedTrend struct {
	Rank     int         `json:"rank"`
	Username string      `json:"username"`
	Start    rating.Date `json:"start"`
	Ratings  []*int      `json:"ratings"`
	Error    string      `json:"error,omitempty"`
	Score    float64     `json:"-"`
}

// Window rebuilds the domain window.
func (c CachedTrend) Window() rating.TrendWindow {
	points := make([]rating.TrendPoint, len(c.Ratings))
	for i, v := range c.Ratings {
		r := rating.None()
		if v != nil {
			r = rating.Some(*v)
		}
		points[i] = rating.TrendPoint{Date: c.Start.AddDays(i), Rating: r}
	}
	return rating.TrendWindow{Start: c.Start, Points: points}
}

// BoardMeta is the run metadata stored next to a board.
type BoardMeta struct {
	RunID         string      `json:"run_id"`
	Category      string      `json:"category"`
	ReferenceDate rating.Date `json:"reference_date"`
	WindowDays    int         `json:"window_days"`
	GeneratedAt   time.Time   `json:"generated_at"`
	Total         int         `json:"total"`
	Failed        int         `json:"failed"`
}

// TrendBoard keeps the latest export per category in Redis.
//
// Layout:
//   - Sorted Set "trends:rating:{category}" scores usernames by last rating
//   - Hash "trends:window:{category}" stores username -> CachedTrend JSON
//   - String "trends:meta:{category}" stores BoardMeta JSON
//
// Players without any rating in the window are kept in the hash but not in
// the sorted set.
type TrendBoard struct {
	cache  *Cache
	ttl    time.Duration
	logger *slog.Logger
}

var _ report.Sink = (*TrendBoard)(nil)

// NewTrendBoard creates a new TrendBoard. A non-positive ttl uses
// TTLTrendBoard.
func NewTrendBoard(cache *Cache, ttl time.Duration, log *slog.Logger) *TrendBoard {
	if ttl <= 0 {
		ttl = TTLTrendBoard
	}
	return &TrendBoard{
		cache:  cache,
		ttl:    ttl,
		logger: logger.OrDefault(log).With(logger.Component("redis")),
	}
}

// Name implements report.Sink.
func (b *TrendBoard) Name() string {
	return "redis"
}

// Write implements report.Sink. The previous board for the category is
// replaced atomically.
func (b *TrendBoard) Write(ctx context.Context, rep *report.TrendReport) error {
	category := rep.Category.Key()
	ratingKey, windowKey, metaKey := RatingKey(category), WindowKey(category), MetaKey(category)

	members, fields, err := boardEntries(rep)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(metaOf(rep))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	pipe := b.cache.Client().TxPipeline()
	pipe.Del(ctx, ratingKey, windowKey)
	if len(members) > 0 {
		pipe.ZAdd(ctx, ratingKey, members...)
		pipe.Expire(ctx, ratingKey, b.ttl)
	}
	if len(fields) > 0 {
		pipe.HSet(ctx, windowKey, fields)
		pipe.Expire(ctx, windowKey, b.ttl)
	}
	pipe.Set(ctx, metaKey, meta, b.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store trend board %s: %w", category, err)
	}

	b.logger.DebugContext(ctx, "trend board stored",
		logger.Category(category),
		logger.RunID(rep.RunID.String()),
		slog.Int("ranked", len(members)),
	)
	return nil
}

// Top returns up to n stored trends ordered by last rating, highest first.
func (b *TrendBoard) Top(ctx context.Context, category string, n int) ([]CachedTrend, error) {
	if n <= 0 {
		return nil, nil
	}

	scored, err := b.cache.Client().ZRevRangeWithScores(ctx, RatingKey(category), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read trend board %s: %w", category, err)
	}
	if len(scored) == 0 {
		return nil, nil
	}

	names := make([]string, len(scored))
	for i, z := range scored {
		names[i], _ = z.Member.(string)
	}

	raw, err := b.cache.Client().HMGet(ctx, WindowKey(category), names...).Result()
	if err != nil {
		return nil, fmt.Errorf("read trend windows %s: %w", category, err)
	}

	out := make([]CachedTrend, 0, len(raw))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var trend CachedTrend
		if err := decode([]byte(s), &trend); err != nil {
			return nil, err
		}
		trend.Score = scored[i].Score
		out = append(out, trend)
	}
	return out, nil
}

// Trend returns one player's stored trend, or ErrCacheMiss.
func (b *TrendBoard) Trend(ctx context.Context, category, username string) (CachedTrend, error) {
	var trend CachedTrend
	err := b.cache.HGet(ctx, WindowKey(category), username, &trend)
	return trend, err
}

// Meta returns the metadata of the stored board, or nil when there is none.
func (b *TrendBoard) Meta(ctx context.Context, category string) (*BoardMeta, error) {
	var meta BoardMeta
	err := b.cache.Get(ctx, MetaKey(category), &meta)
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

func boardEntries(rep *report.TrendReport) ([]redis.Z, map[string]any, error) {
	members := make([]redis.Z, 0, len(rep.Rows))
	fields := make(map[string]any, len(rep.Rows))

	for _, row := range rep.Rows {
		if row.Username == "" {
			continue
		}
		trend := cachedTrendOf(row)
		data, err := json.Marshal(trend)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrCacheSerialization, row.Username, err)
		}
		fields[row.Username] = data

		if last := row.Window.Last(); last.Valid {
			members = append(members, redis.Z{Score: float64(last.Value), Member: row.Username})
		}
	}
	return members, fields, nil
}

func cachedTrendOf(row report.Row) CachedTrend {
	ratings := make([]*int, len(row.Window.Points))
	for i, p := range row.Window.Points {
		if p.Rating.Valid {
			v := p.Rating.Value
			ratings[i] = &v
		}
	}
	trend := CachedTrend{
		Rank:     row.Rank,
		Username: row.Username,
		Start:    row.Window.Start,
		Ratings:  ratings,
	}
	if row.Err != nil {
		trend.Error = row.Err.Error()
	}
	return trend
}

func metaOf(rep *report.TrendReport) BoardMeta {
	return BoardMeta{
		RunID:         rep.RunID.String(),
		Category:      rep.Category.Key(),
		ReferenceDate: rep.ReferenceDate,
		WindowDays:    rep.WindowDays,
		GeneratedAt:   rep.GeneratedAt,
		Total:         len(rep.Rows),
		Failed:        len(rep.FailedRows()),
	}
}
