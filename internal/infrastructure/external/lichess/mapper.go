package lichess

import (
	"errors"
	"fmt"

	"github.com/ratingtrends/chess-rankings/internal/domain/leaderboard"
	"github.com/ratingtrends/chess-rankings/internal/domain/rating"
	"github.com/ratingtrends/chess-rankings/internal/domain/shared"
)

// ErrNilDTO is returned when a nil DTO is passed to the mapper.
var ErrNilDTO = errors.New("nil DTO")

// Mapper converts Lichess DTOs to domain types, keeping the wire format out
// of the domain.
type Mapper struct{}

// NewMapper creates a new Mapper instance.
func NewMapper() *Mapper {
	return &Mapper{}
}

// PlayersFromDTO converts a leaderboard payload. The rating and progress are
// taken from the perf matching category; entries are kept even without a
// username (the leaderboard decides what to skip).
func (m *Mapper) PlayersFromDTO(dto *TopPlayersDTO, category leaderboard.Category) ([]leaderboard.Player, error) {
	if dto == nil {
		return nil, ErrNilDTO
	}

	players := make([]leaderboard.Player, 0, len(dto.Users))
	for _, u := range dto.Users {
		perf := u.Perfs[category.Key()]
		players = append(players, leaderboard.Player{
			Username: u.Username,
			ID:       u.ID,
			Title:    u.Title,
			Rating:   perf.Rating,
			Progress: perf.Progress,
			Online:   u.Online,
		})
	}
	return players, nil
}

// HistoriesFromDTO converts a rating-history payload. A point that does not
// have exactly four components is a malformed observation.
func (m *Mapper) HistoriesFromDTO(dtos []RatingHistoryDTO, username string) ([]rating.CategoryHistory, error) {
	out := make([]rating.CategoryHistory, 0, len(dtos))
	for _, h := range dtos {
		points := make([]rating.RawPoint, 0, len(h.Points))
		for _, p := range h.Points {
			if len(p) != 4 {
				err := shared.NewMalformedObservationError(p, fmt.Sprintf("%s: expected 4 components, got %d", h.Name, len(p)))
				err.Username = username
				return nil, err
			}
			points = append(points, rating.RawPoint{p[0], p[1], p[2], p[3]})
		}
		out = append(out, rating.CategoryHistory{Name: h.Name, Points: points})
	}
	return out, nil
}
