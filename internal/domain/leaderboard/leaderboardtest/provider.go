// Package leaderboardtest provides an in-memory PlayerDataProvider for tests.
package leaderboardtest

import (
	"context"
	"sync"
	"time"

	"github.com/ratingtrends/chess-rankings/internal/domain/leaderboard"
	"github.com/ratingtrends/chess-rankings/internal/domain/rating"
	"github.com/ratingtrends/chess-rankings/internal/domain/shared"
)

// Provider serves canned leaderboards and histories.
// It is safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	// Players is returned by FetchTopPlayers, truncated to count.
	Players []leaderboard.Player
	// TopErr fails FetchTopPlayers.
	TopErr error

	// Histories maps username to its history. A missing key is a
	// RatingHistoryNotFound error.
	Histories map[string][]rating.CategoryHistory
	// HistoryErrs fails FetchRatingHistory for specific usernames.
	HistoryErrs map[string]error
	// Latency delays FetchRatingHistory per username.
	Latency map[string]time.Duration

	topCalls     int
	historyCalls []string
}

// New returns an empty provider.
func New() *Provider {
	return &Provider{
		Histories:   map[string][]rating.CategoryHistory{},
		HistoryErrs: map[string]error{},
		Latency:     map[string]time.Duration{},
	}
}

// AddPlayer appends a leaderboard player with a single-category history.
func (p *Provider) AddPlayer(username, category string, points ...rating.RawPoint) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Players = append(p.Players, leaderboard.Player{Username: username, ID: username})
	p.Histories[username] = []rating.CategoryHistory{{Name: category, Points: points}}
	return p
}

// FetchTopPlayers implements leaderboard.PlayerDataProvider.
func (p *Provider) FetchTopPlayers(ctx context.Context, category leaderboard.Category, count int) ([]leaderboard.Player, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topCalls++
	if p.TopErr != nil {
		return nil, p.TopErr
	}
	players := p.Players
	if count < len(players) {
		players = players[:count]
	}
	out := make([]leaderboard.Player, len(players))
	copy(out, players)
	return out, nil
}

// FetchRatingHistory implements leaderboard.PlayerDataProvider.
func (p *Provider) FetchRatingHistory(ctx context.Context, username string) ([]rating.CategoryHistory, error) {
	p.mu.Lock()
	p.historyCalls = append(p.historyCalls, username)
	delay := p.Latency[username]
	err := p.HistoryErrs[username]
	history, ok := p.Histories[username]
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok || len(history) == 0 {
		return nil, shared.NewRatingHistoryNotFoundError(username)
	}
	return history, nil
}

// TopCalls returns how many times FetchTopPlayers was called.
func (p *Provider) TopCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.topCalls
}

// HistoryCalls returns the usernames FetchRatingHistory was called with,
// in call order.
func (p *Provider) HistoryCalls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.historyCalls))
	copy(out, p.historyCalls)
	return out
}
