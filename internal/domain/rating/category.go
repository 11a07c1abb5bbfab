package rating

import "github.com/ratingtrends/chess-rankings/internal/domain/shared"

// CategoryHistory is one game category's raw history as returned by the
// provider, e.g. {"name": "Classical", "points": [[2023, 0, 15, 1500]]}.
type CategoryHistory struct {
	Name   string
	Points []RawPoint
}

// ExtractCategory returns the points of the first history whose name equals
// category exactly. The match is case-sensitive. An entry with no points is
// a valid result; a missing entry is a KindCategoryNotFound error.
func ExtractCategory(histories []CategoryHistory, username, category string) ([]RawPoint, error) {
	for _, h := range histories {
		if h.Name == category {
			return h.Points, nil
		}
	}
	return nil, shared.NewCategoryNotFoundError(username, category)
}
