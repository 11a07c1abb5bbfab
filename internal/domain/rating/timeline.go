package rating

import (
	"sort"
	"time"

	"github.com/ratingtrends/chess-rankings/internal/domain/shared"
)

// RawPoint is one history point as delivered by the provider:
// (year, zero-indexed month, day, rating).
type RawPoint [4]int

// Year returns the year component.
func (p RawPoint) Year() int { return p[0] }

// Month returns the month normalized to 1..12 (the provider sends 0..11).
func (p RawPoint) Month() time.Month { return time.Month(p[1] + 1) }

// Day returns the day of month.
func (p RawPoint) Day() int { return p[2] }

// Rating returns the rating value.
func (p RawPoint) Rating() int { return p[3] }

// Observation is a rating recorded on a date.
type Observation struct {
	Date   Date
	Rating int
}

// Timeline maps dates to the rating observed on that date.
// It is immutable once built and is owned by a single reconstruction.
type Timeline struct {
	ratings map[Date]int
}

// BuildTimeline converts raw points into a timeline.
//
// A point whose date does not exist fails the whole build with a
// KindMalformedObservation error; points are never dropped silently.
// When two points share a date the later one in the input wins.
func BuildTimeline(points []RawPoint) (*Timeline, error) {
	ratings := make(map[Date]int, len(points))
	for _, p := range points {
		d, err := NewDate(p.Year(), p.Month(), p.Day())
		if err != nil {
			return nil, &shared.Error{
				Kind:    shared.KindMalformedObservation,
				Point:   []int{p[0], p[1], p[2], p[3]},
				Message: err.Error(),
				Err:     err,
			}
		}
		ratings[d] = p.Rating()
	}
	return &Timeline{ratings: ratings}, nil
}

// At returns the rating observed exactly on d.
func (t *Timeline) At(d Date) (int, bool) {
	if t == nil {
		return 0, false
	}
	r, ok := t.ratings[d]
	return r, ok
}

// MostRecentBefore returns the rating at the latest date strictly before d.
func (t *Timeline) MostRecentBefore(d Date) (int, bool) {
	if t == nil {
		return 0, false
	}
	var (
		best   Date
		rating int
		found  bool
	)
	for date, r := range t.ratings {
		if !date.Before(d) {
			continue
		}
		if !found || date.After(best) {
			best, rating, found = date, r, true
		}
	}
	return rating, found
}

// Len returns the number of distinct dates.
func (t *Timeline) Len() int {
	if t == nil {
		return 0
	}
	return len(t.ratings)
}

// Dates returns the observed dates in chronological order.
func (t *Timeline) Dates() []Date {
	if t == nil {
		return nil
	}
	dates := make([]Date, 0, len(t.ratings))
	for d := range t.ratings {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// Observations returns every observation in chronological order.
func (t *Timeline) Observations() []Observation {
	dates := t.Dates()
	out := make([]Observation, len(dates))
	for i, d := range dates {
		out[i] = Observation{Date: d, Rating: t.ratings[d]}
	}
	return out
}

// Latest returns the most recent observation.
func (t *Timeline) Latest() (Observation, bool) {
	if t.Len() == 0 {
		return Observation{}, false
	}
	var latest Observation
	first := true
	for d, r := range t.ratings {
		if first || d.After(latest.Date) {
			latest = Observation{Date: d, Rating: r}
			first = false
		}
	}
	return latest, true
}
