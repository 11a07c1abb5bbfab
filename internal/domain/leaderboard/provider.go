package leaderboard

import (
	"context"

	"github.com/ratingtrends/chess-rankings/internal/domain/rating"
)

// MaxCount is the largest leaderboard the provider serves in one request.
const MaxCount = 200

// DefaultCount is the leaderboard size used by the reports.
const DefaultCount = 50

// PlayerDataProvider is the source of leaderboards and rating histories.
// The implementation lives in the infrastructure layer (Lichess over HTTP).
//
// Transport failures are reported as shared.KindProvider errors.
type PlayerDataProvider interface {
	// FetchTopPlayers returns up to count players of category in rank order.
	// An empty leaderboard is not an error at this level.
	FetchTopPlayers(ctx context.Context, category Category, count int) ([]Player, error)

	// FetchRatingHistory returns every category history of username.
	// A missing or empty payload is a shared.KindRatingHistoryNotFound error.
	FetchRatingHistory(ctx context.Context, username string) ([]rating.CategoryHistory, error)
}
