package lichess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ratingtrends/chess-rankings/internal/domain/leaderboard"
	"github.com/ratingtrends/chess-rankings/internal/domain/shared"
)

func TestMapper_PlayersFromDTO(t *testing.T) {
	m := NewMapper()

	_, err := m.PlayersFromDTO(nil, leaderboard.Classical)
	assert.ErrorIs(t, err, ErrNilDTO)

	players, err := m.PlayersFromDTO(&TopPlayersDTO{Users: []PlayerDTO{
		{Username: "a", Perfs: map[string]PerfDTO{"blitz": {Rating: 3000}}},
		{Username: ""},
	}}, leaderboard.Classical)
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.Zero(t, players[0].Rating)
}

func TestMapper_HistoriesFromDTO(t *testing.T) {
	m := NewMapper()

	out, err := m.HistoriesFromDTO([]RatingHistoryDTO{{Name: "Classical"}}, "alice")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Empty(t, out[0].Points)

	_, err = m.HistoriesFromDTO([]RatingHistoryDTO{{Name: "Classical", Points: [][]int{{2024, 0, 1, 1500, 7}}}}, "alice")
	var e *shared.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, shared.KindMalformedObservation, e.Kind)
	assert.Equal(t, "alice", e.Username)
}
