package rating

import (
	"strconv"
)

// DefaultWindowDays is the trend length in days; a window holds one more
// entry than this because both ends are inclusive.
const DefaultWindowDays = 30

// OptionalRating is a rating that may be absent.
type OptionalRating struct {
	Value int
	Valid bool
}

// Some returns a present rating.
func Some(v int) OptionalRating { return OptionalRating{Value: v, Valid: true} }

// None returns an absent rating.
func None() OptionalRating { return OptionalRating{} }

// String returns the value or "None".
func (o OptionalRating) String() string {
	if !o.Valid {
		return "None"
	}
	return strconv.Itoa(o.Value)
}

// TrendPoint is the rating in effect on one day of a window.
type TrendPoint struct {
	Date   Date
	Rating OptionalRating
}

// TrendWindow is a chronological run of consecutive days ending at the
// reference date.
type TrendWindow struct {
	Start  Date
	Points []TrendPoint
}

// Dates returns the window's days in order.
func (w TrendWindow) Dates() []Date {
	out := make([]Date, len(w.Points))
	for i, p := range w.Points {
		out[i] = p.Date
	}
	return out
}

// Ratings returns the window's ratings in order.
func (w TrendWindow) Ratings() []OptionalRating {
	out := make([]OptionalRating, len(w.Points))
	for i, p := range w.Points {
		out[i] = p.Rating
	}
	return out
}

// Len returns the number of days in the window.
func (w TrendWindow) Len() int { return len(w.Points) }

// End returns the reference date, or the zero Date for an empty window.
func (w TrendWindow) End() Date {
	if len(w.Points) == 0 {
		return Date{}
	}
	return w.Points[len(w.Points)-1].Date
}

// Last returns the rating on the reference date.
func (w TrendWindow) Last() OptionalRating {
	if len(w.Points) == 0 {
		return None()
	}
	return w.Points[len(w.Points)-1].Rating
}

// Change returns last minus first when both ends are present.
func (w TrendWindow) Change() (int, bool) {
	if len(w.Points) == 0 {
		return 0, false
	}
	first, last := w.Points[0].Rating, w.Points[len(w.Points)-1].Rating
	if !first.Valid || !last.Valid {
		return 0, false
	}
	return last.Value - first.Value, true
}

// IsEmpty reports whether every entry is absent.
func (w TrendWindow) IsEmpty() bool {
	for _, p := range w.Points {
		if p.Rating.Valid {
			return false
		}
	}
	return true
}

// EmptyTrendWindow returns the window ending at ref with every rating absent.
// Batch exports use it as the placeholder row for a failed player.
func EmptyTrendWindow(ref Date, windowDays int) TrendWindow {
	return Reconstruct(nil, ref, windowDays)
}

// Reconstruct builds the daily trend for the windowDays+1 days ending at ref.
//
// The rating before the first observation inside the window comes from the
// latest observation at or before the window start, however far back. Each
// day then takes its own observation if there is one and otherwise keeps the
// previous day's value. A day is absent only when no observation exists on
// or before it. Negative windowDays is treated as zero.
func Reconstruct(t *Timeline, ref Date, windowDays int) TrendWindow {
	if windowDays < 0 {
		windowDays = 0
	}
	start := ref.AddDays(-windowDays)

	carry := None()
	if r, ok := t.At(start); ok {
		carry = Some(r)
	} else if r, ok := t.MostRecentBefore(start); ok {
		carry = Some(r)
	}

	points := make([]TrendPoint, 0, windowDays+1)
	for i := 0; i <= windowDays; i++ {
		d := start.AddDays(i)
		if r, ok := t.At(d); ok {
			carry = Some(r)
		}
		points = append(points, TrendPoint{Date: d, Rating: carry})
	}
	return TrendWindow{Start: start, Points: points}
}
