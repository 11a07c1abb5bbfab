package lichess

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD DTOs
// GET /api/player/top/{nb}/{perfType}
// ══════════════════════════════════════════════════════════════════════════════

// TopPlayersDTO is the leaderboard payload.
//
//	{"users": [{"id": "...", "username": "...", "perfs": {"classical": {"rating": 2500, "progress": 12}}}]}
type TopPlayersDTO struct {
	// Users is nil when the key is absent.
	Users []PlayerDTO `json:"users"`
}

// PlayerDTO is one leaderboard entry.
type PlayerDTO struct {
	ID       string             `json:"id"`
	Username string             `json:"username"`
	Title    string             `json:"title,omitempty"`
	Online   bool               `json:"online,omitempty"`
	Patron   bool               `json:"patron,omitempty"`
	Perfs    map[string]PerfDTO `json:"perfs,omitempty"`
}

// PerfDTO is the rating summary of one category.
type PerfDTO struct {
	Rating   int `json:"rating"`
	Progress int `json:"progress"`
}

// ══════════════════════════════════════════════════════════════════════════════
// RATING HISTORY DTOs
// GET /api/user/{username}/rating-history
// ══════════════════════════════════════════════════════════════════════════════

// RatingHistoryDTO is one category of a rating history.
//
//	{"name": "Classical", "points": [[2024, 0, 15, 1500]]}
//
// Points are (year, zero-indexed month, day, rating).
type RatingHistoryDTO struct {
	Name   string  `json:"name"`
	Points [][]int `json:"points"`
}

// ErrorDTO is the body Lichess sends with most error statuses.
type ErrorDTO struct {
	Error string `json:"error"`
}
