// Package query contains read operations following the CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request type.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ratingtrends/chess-rankings/internal/domain/leaderboard"
	"github.com/ratingtrends/chess-rankings/internal/domain/shared"
	"github.com/ratingtrends/chess-rankings/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Fetches the top N players of one category, in rank order.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery contains the leaderboard request parameters.
type GetLeaderboardQuery struct {
	// Category to rank. The zero value selects leaderboard.DefaultCategory.
	Category leaderboard.Category

	// Count is the number of players (default 50, max 200).
	Count int
}

// Validate applies defaults and checks bounds.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Category.IsZero() {
		q.Category = leaderboard.DefaultCategory
	}
	if q.Count == 0 {
		q.Count = leaderboard.DefaultCount
	}
	if q.Count < 1 || q.Count > leaderboard.MaxCount {
		return fmt.Errorf("count must be between 1 and %d, got %d", leaderboard.MaxCount, q.Count)
	}
	return nil
}

// GetLeaderboardHandler handles leaderboard queries.
type GetLeaderboardHandler struct {
	provider leaderboard.PlayerDataProvider
	logger   *slog.Logger
	now      func() time.Time
}

// NewGetLeaderboardHandler creates a new leaderboard query handler.
func NewGetLeaderboardHandler(provider leaderboard.PlayerDataProvider, log *slog.Logger) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{
		provider: provider,
		logger:   logger.OrDefault(log),
		now:      time.Now,
	}
}

// Handle fetches the leaderboard.
//
// An empty or absent player list is a shared.KindNoPlayersFound error.
// Provider errors are returned unchanged.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, query GetLeaderboardQuery) (*leaderboard.Leaderboard, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	start := h.now()
	players, err := h.provider.FetchTopPlayers(ctx, query.Category, query.Count)
	if err != nil {
		return nil, err
	}

	lb := leaderboard.New(query.Category, players, h.now())
	if lb.IsEmpty() {
		return nil, shared.NewNoPlayersFoundError(query.Category.Key())
	}

	h.logger.DebugContext(ctx, "leaderboard fetched",
		logger.Category(query.Category.Key()),
		slog.Int("requested", query.Count),
		slog.Int("received", lb.Len()),
		logger.Latency(h.now().Sub(start)),
	)

	return lb, nil
}

// TopUsernames returns the usernames of the top count players in rank order.
func (h *GetLeaderboardHandler) TopUsernames(ctx context.Context, category leaderboard.Category, count int) ([]string, error) {
	lb, err := h.Handle(ctx, GetLeaderboardQuery{Category: category, Count: count})
	if err != nil {
		return nil, err
	}
	return lb.Usernames(), nil
}
