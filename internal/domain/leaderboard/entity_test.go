package leaderboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"classical", Classical, false},
		{"Classical", Classical, false},
		{" BLITZ ", Blitz, false},
		{"kingOfTheHill", KingOfTheHill, false},
		{"King of the Hill", KingOfTheHill, false},
		{"puzzle", Category{}, true},
		{"", Category{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownCategory)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategory_Names(t *testing.T) {
	assert.Equal(t, "classical", Classical.Key())
	assert.Equal(t, "Classical", Classical.HistoryName())
	assert.Equal(t, "Three-check", ThreeCheck.HistoryName())
	assert.Equal(t, DefaultCategory, Classical)
	assert.Len(t, Categories(), 14)
}

func TestNew_RanksByPositionAndSkipsBlankUsernames(t *testing.T) {
	lb := New(Classical, []Player{
		{Username: "alice", Rating: 2600, Online: true},
		{Username: ""},
		{Username: "bob", Rating: 2550},
		{Username: "alice", Rating: 2500},
	}, time.Unix(0, 0))

	require.Equal(t, 3, lb.Len())
	assert.Equal(t, []string{"alice", "bob", "alice"}, lb.Usernames())
	assert.Equal(t, 1, lb.Entries[0].Rank)
	assert.Equal(t, 2, lb.Entries[1].Rank)
	assert.Equal(t, 3, lb.Entries[2].Rank)

	top, ok := lb.Top()
	require.True(t, ok)
	assert.Equal(t, "alice", top.Player.Username)
}

func TestLeaderboard_Empty(t *testing.T) {
	lb := New(Classical, nil, time.Now())
	assert.True(t, lb.IsEmpty())
	assert.Empty(t, lb.Usernames())
	_, ok := lb.Top()
	assert.False(t, ok)

	var nilBoard *Leaderboard
	assert.True(t, nilBoard.IsEmpty())
	assert.Nil(t, nilBoard.Usernames())
}
