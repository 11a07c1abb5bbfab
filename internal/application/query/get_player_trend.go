package query

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/ratingtrends/chess-rankings/internal/domain/leaderboard"
	"github.com/ratingtrends/chess-rankings/internal/domain/rating"
	"github.com/ratingtrends/chess-rankings/internal/domain/shared"
	"github.com/ratingtrends/chess-rankings/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PLAYER TREND QUERY
// Reconstructs the daily rating trend of one player.
// ══════════════════════════════════════════════════════════════════════════════

// GetPlayerTrendQuery contains the trend request parameters.
type GetPlayerTrendQuery struct {
	Username string

	// Category selects the history entry. Zero value = default category.
	Category leaderboard.Category

	// ReferenceDate is the last day of the window ("today").
	ReferenceDate rating.Date

	// WindowDays is the number of days before ReferenceDate. Values below 1
	// select rating.DefaultWindowDays.
	WindowDays int
}

// Validate applies defaults and checks required fields.
func (q *GetPlayerTrendQuery) Validate() error {
	q.Username = strings.TrimSpace(q.Username)
	if q.Username == "" {
		return errors.New("username is required")
	}
	if q.ReferenceDate.IsZero() {
		return errors.New("reference date is required")
	}
	if q.Category.IsZero() {
		q.Category = leaderboard.DefaultCategory
	}
	if q.WindowDays < 1 {
		q.WindowDays = rating.DefaultWindowDays
	}
	return nil
}

// PlayerTrend is the reconstructed trend of one player.
type PlayerTrend struct {
	Username string
	Category leaderboard.Category
	Window   rating.TrendWindow

	// Observations is the size of the player's history in the category.
	Observations int

	// Latest is the player's last recorded rating change, if any.
	Latest *rating.Observation

	// Entry is set when the trend was requested through the leaderboard.
	Entry *leaderboard.Entry
}

// GetPlayerTrendHandler handles single-player trend queries.
type GetPlayerTrendHandler struct {
	provider leaderboard.PlayerDataProvider
	logger   *slog.Logger
}

// NewGetPlayerTrendHandler creates a new trend query handler.
func NewGetPlayerTrendHandler(provider leaderboard.PlayerDataProvider, log *slog.Logger) *GetPlayerTrendHandler {
	return &GetPlayerTrendHandler{
		provider: provider,
		logger:   logger.OrDefault(log),
	}
}

// Handle fetches the history, extracts the category, builds the timeline and
// reconstructs the window. Every error is returned to the caller.
func (h *GetPlayerTrendHandler) Handle(ctx context.Context, query GetPlayerTrendQuery) (*PlayerTrend, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	histories, err := h.provider.FetchRatingHistory(ctx, query.Username)
	if err != nil {
		return nil, err
	}

	points, err := rating.ExtractCategory(histories, query.Username, query.Category.HistoryName())
	if err != nil {
		return nil, err
	}

	timeline, err := rating.BuildTimeline(points)
	if err != nil {
		return nil, shared.WithUsername(err, query.Username)
	}

	trend := &PlayerTrend{
		Username:     query.Username,
		Category:     query.Category,
		Window:       rating.Reconstruct(timeline, query.ReferenceDate, query.WindowDays),
		Observations: timeline.Len(),
	}
	if latest, ok := timeline.Latest(); ok {
		trend.Latest = &latest
	}

	h.logger.DebugContext(ctx, "trend reconstructed",
		logger.Username(query.Username),
		logger.Category(query.Category.Key()),
		slog.Int("observations", trend.Observations),
		slog.String("reference_date", query.ReferenceDate.String()),
	)

	return trend, nil
}

// Window is the batch-friendly form of Handle: it returns only the window.
func (h *GetPlayerTrendHandler) Window(ctx context.Context, username string, category leaderboard.Category, ref rating.Date, windowDays int) (rating.TrendWindow, error) {
	trend, err := h.Handle(ctx, GetPlayerTrendQuery{
		Username:      username,
		Category:      category,
		ReferenceDate: ref,
		WindowDays:    windowDays,
	})
	if err != nil {
		return rating.TrendWindow{}, err
	}
	return trend.Window, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GET TOP PLAYER TREND QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetTopPlayerTrendQuery asks for the trend of the current number one.
type GetTopPlayerTrendQuery struct {
	Category      leaderboard.Category
	ReferenceDate rating.Date
	WindowDays    int
}

// GetTopPlayerTrendHandler chains a one-player leaderboard with a trend query.
type GetTopPlayerTrendHandler struct {
	leaderboards *GetLeaderboardHandler
	trends       *GetPlayerTrendHandler
}

// NewGetTopPlayerTrendHandler creates a new top-player trend handler.
func NewGetTopPlayerTrendHandler(leaderboards *GetLeaderboardHandler, trends *GetPlayerTrendHandler) *GetTopPlayerTrendHandler {
	return &GetTopPlayerTrendHandler{leaderboards: leaderboards, trends: trends}
}

// Handle returns the trend of the top ranked player. Errors from either step
// propagate unchanged.
func (h *GetTopPlayerTrendHandler) Handle(ctx context.Context, query GetTopPlayerTrendQuery) (*PlayerTrend, error) {
	lb, err := h.leaderboards.Handle(ctx, GetLeaderboardQuery{Category: query.Category, Count: 1})
	if err != nil {
		return nil, err
	}
	top, _ := lb.Top()

	trend, err := h.trends.Handle(ctx, GetPlayerTrendQuery{
		Username:      top.Player.Username,
		Category:      lb.Category,
		ReferenceDate: query.ReferenceDate,
		WindowDays:    query.WindowDays,
	})
	if err != nil {
		return nil, err
	}
	trend.Entry = &top
	return trend, nil
}
