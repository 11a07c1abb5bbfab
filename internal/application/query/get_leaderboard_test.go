package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ratingtrends/chess-rankings/internal/domain/leaderboard"
	"github.com/ratingtrends/chess-rankings/internal/domain/leaderboard/leaderboardtest"
	"github.com/ratingtrends/chess-rankings/internal/domain/shared"
	"github.com/ratingtrends/chess-rankings/pkg/logger"
)

func TestGetLeaderboardQuery_Validate(t *testing.T) {
	q := GetLeaderboardQuery{}
	require.NoError(t, q.Validate())
	assert.Equal(t, leaderboard.Classical, q.Category)
	assert.Equal(t, 50, q.Count)

	q = GetLeaderboardQuery{Count: 201}
	assert.Error(t, q.Validate())

	q = GetLeaderboardQuery{Count: -1}
	assert.Error(t, q.Validate())
}

func TestGetLeaderboardHandler_ReturnsRankedUsernames(t *testing.T) {
	provider := leaderboardtest.New().
		AddPlayer("alice", "Classical").
		AddPlayer("bob", "Classical").
		AddPlayer("carol", "Classical")
	h := NewGetLeaderboardHandler(provider, logger.Discard())

	names, err := h.TopUsernames(context.Background(), leaderboard.Classical, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, names)
}

func TestGetLeaderboardHandler_EmptyListIsNoPlayersFound(t *testing.T) {
	provider := leaderboardtest.New()
	h := NewGetLeaderboardHandler(provider, logger.Discard())

	lb, err := h.Handle(context.Background(), GetLeaderboardQuery{Category: leaderboard.Classical})
	assert.Nil(t, lb)
	assert.ErrorIs(t, err, shared.ErrNoPlayersFound)
}

func TestGetLeaderboardHandler_OnlyBlankUsernamesIsNoPlayersFound(t *testing.T) {
	provider := leaderboardtest.New()
	provider.Players = []leaderboard.Player{{Username: ""}, {Username: "  "}}
	h := NewGetLeaderboardHandler(provider, logger.Discard())

	_, err := h.Handle(context.Background(), GetLeaderboardQuery{})
	assert.ErrorIs(t, err, shared.ErrNoPlayersFound)
}

func TestGetLeaderboardHandler_ProviderErrorPropagates(t *testing.T) {
	provider := leaderboardtest.New()
	provider.TopErr = shared.NewProviderError("status 503", "https://lichess.org/api/player/top/50/classical", nil)
	h := NewGetLeaderboardHandler(provider, logger.Discard())

	_, err := h.Handle(context.Background(), GetLeaderboardQuery{})
	assert.Equal(t, shared.KindProvider, shared.KindOf(err))
}
