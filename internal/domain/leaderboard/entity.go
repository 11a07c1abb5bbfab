// Package leaderboard contains the domain model of a Lichess leaderboard:
// the game category being ranked, the players on it and the provider
// contract the rest of the application fetches them through.
package leaderboard

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATEGORY
// ══════════════════════════════════════════════════════════════════════════════

// Category is a rated game category. Lichess names the same category twice:
// the perf key in leaderboard URLs ("classical") and the display name in
// rating histories ("Classical").
type Category struct {
	key  string
	name string
}

// Known categories.
var (
	UltraBullet    = Category{"ultraBullet", "UltraBullet"}
	Bullet         = Category{"bullet", "Bullet"}
	Blitz          = Category{"blitz", "Blitz"}
	Rapid          = Category{"rapid", "Rapid"}
	Classical      = Category{"classical", "Classical"}
	Correspondence = Category{"correspondence", "Correspondence"}
	Chess960       = Category{"chess960", "Chess960"}
	Crazyhouse     = Category{"crazyhouse", "Crazyhouse"}
	Antichess      = Category{"antichess", "Antichess"}
	Atomic         = Category{"atomic", "Atomic"}
	Horde          = Category{"horde", "Horde"}
	KingOfTheHill  = Category{"kingOfTheHill", "King of the Hill"}
	RacingKings    = Category{"racingKings", "Racing Kings"}
	ThreeCheck     = Category{"threeCheck", "Three-check"}
)

// DefaultCategory is ranked when nothing else is configured.
var DefaultCategory = Classical

var categories = []Category{
	UltraBullet, Bullet, Blitz, Rapid, Classical, Correspondence, Chess960,
	Crazyhouse, Antichess, Atomic, Horde, KingOfTheHill, RacingKings, ThreeCheck,
}

// ErrUnknownCategory is returned by ParseCategory.
var ErrUnknownCategory = errors.New("unknown category")

// ParseCategory resolves a perf key or history name, ignoring case.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range categories {
		if strings.EqualFold(s, c.key) || strings.EqualFold(s, c.name) {
			return c, nil
		}
	}
	return Category{}, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Categories returns every known category.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Key returns the perf key used by the leaderboard endpoint.
func (c Category) Key() string { return c.key }

// HistoryName returns the name used in rating-history payloads.
func (c Category) HistoryName() string { return c.name }

// IsZero reports whether c is the zero value.
func (c Category) IsZero() bool { return c.key == "" }

// String returns the perf key.
func (c Category) String() string { return c.key }

// ══════════════════════════════════════════════════════════════════════════════
// PLAYER
// ══════════════════════════════════════════════════════════════════════════════

// Player is a leaderboard row as the provider returns it.
type Player struct {
	// Username is the display form, e.g. "DrNykterstein".
	Username string

	// ID is the lowercase account id.
	ID string

	// Title is the FIDE or Lichess title ("GM", "IM", "BOT"...), may be empty.
	Title string

	// Rating in the ranked category.
	Rating int

	// Progress is the rating change over the provider's recent period.
	Progress int

	// Online reports whether the player was online when fetched.
	Online bool
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

// Entry is one ranked player. Rank starts at 1.
type Entry struct {
	Rank   int
	Player Player
}

// Leaderboard is the ordered top of a category at the moment it was fetched.
type Leaderboard struct {
	Category  Category
	Entries   []Entry
	FetchedAt time.Time
}

// New ranks players by their position in the slice.
// Players without a username cannot be looked up later and are skipped;
// ranks stay consecutive.
func New(category Category, players []Player, fetchedAt time.Time) *Leaderboard {
	entries := make([]Entry, 0, len(players))
	for _, p := range players {
		if strings.TrimSpace(p.Username) == "" {
			continue
		}
		entries = append(entries, Entry{Rank: len(entries) + 1, Player: p})
	}
	return &Leaderboard{Category: category, Entries: entries, FetchedAt: fetchedAt}
}

// Len returns the number of entries.
func (lb *Leaderboard) Len() int {
	if lb == nil {
		return 0
	}
	return len(lb.Entries)
}

// IsEmpty reports whether the leaderboard has no entries.
func (lb *Leaderboard) IsEmpty() bool {
	return lb.Len() == 0
}

// Usernames returns the usernames in rank order. Duplicates are kept.
func (lb *Leaderboard) Usernames() []string {
	if lb == nil {
		return nil
	}
	out := make([]string, len(lb.Entries))
	for i, e := range lb.Entries {
		out[i] = e.Player.Username
	}
	return out
}

// Top returns the first entry.
func (lb *Leaderboard) Top() (Entry, bool) {
	if lb.IsEmpty() {
		return Entry{}, false
	}
	return lb.Entries[0], true
}
