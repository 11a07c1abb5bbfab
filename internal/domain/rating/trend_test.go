package rating

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ratingsOf(w TrendWindow) []string {
	out := make([]string, 0, w.Len())
	for _, r := range w.Ratings() {
		out = append(out, r.String())
	}
	return out
}

func TestReconstruct_ForwardFillsBetweenObservations(t *testing.T) {
	tl, err := BuildTimeline([]RawPoint{{2024, 0, 15, 1500}, {2024, 0, 20, 1550}})
	require.NoError(t, err)

	w := Reconstruct(tl, MustDate(2024, time.January, 22), 7)

	require.Equal(t, 8, w.Len())
	assert.Equal(t, MustDate(2024, time.January, 15), w.Start)
	assert.Equal(t, MustDate(2024, time.January, 22), w.End())
	assert.Equal(t,
		[]string{"1500", "1500", "1500", "1500", "1500", "1550", "1550", "1550"},
		ratingsOf(w))

	change, ok := w.Change()
	assert.True(t, ok)
	assert.Equal(t, 50, change)
}

func TestReconstruct_EmptyTimeline(t *testing.T) {
	tl, err := BuildTimeline(nil)
	require.NoError(t, err)

	w := Reconstruct(tl, MustDate(2024, time.June, 1), DefaultWindowDays)

	require.Equal(t, 31, w.Len())
	assert.True(t, w.IsEmpty())
	assert.Equal(t, EmptyTrendWindow(MustDate(2024, time.June, 1), DefaultWindowDays), w)
	_, ok := w.Change()
	assert.False(t, ok)
}

func TestReconstruct_SeedsFromHistoryBeforeWindow(t *testing.T) {
	tl, err := BuildTimeline([]RawPoint{{2021, 4, 2, 2100}, {2024, 0, 25, 2125}})
	require.NoError(t, err)

	w := Reconstruct(tl, MustDate(2024, time.January, 31), 30)

	assert.Equal(t, Some(2100), w.Points[0].Rating)
	assert.Equal(t, Some(2100), w.Points[23].Rating)
	assert.Equal(t, Some(2125), w.Points[24].Rating)
	assert.Equal(t, Some(2125), w.Last())
}

func TestReconstruct_AbsentUntilFirstObservation(t *testing.T) {
	tl, err := BuildTimeline([]RawPoint{{2024, 0, 10, 1800}})
	require.NoError(t, err)

	w := Reconstruct(tl, MustDate(2024, time.January, 12), 4)

	assert.Equal(t, []string{"None", "None", "1800", "1800", "1800"}, ratingsOf(w))
}

func TestReconstruct_WindowCompleteness(t *testing.T) {
	tests := []struct {
		name  string
		ref   Date
		start Date
	}{
		{"year boundary", MustDate(2024, time.January, 10), MustDate(2023, time.December, 11)},
		{"leap february", MustDate(2024, time.March, 15), MustDate(2024, time.February, 14)},
		{"common february", MustDate(2023, time.March, 15), MustDate(2023, time.February, 13)},
		{"month end", MustDate(2024, time.May, 31), MustDate(2024, time.May, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Reconstruct(nil, tt.ref, DefaultWindowDays)

			require.Equal(t, DefaultWindowDays+1, w.Len())
			assert.Equal(t, tt.start, w.Start)
			assert.Equal(t, tt.ref, w.End())
			dates := w.Dates()
			for i := 1; i < len(dates); i++ {
				assert.Equal(t, dates[i-1].AddDays(1), dates[i])
			}
		})
	}
}

func TestReconstruct_ForwardFillInvariant(t *testing.T) {
	tl, err := BuildTimeline([]RawPoint{
		{2023, 11, 1, 1900}, {2023, 11, 24, 1912}, {2023, 11, 31, 1890},
		{2024, 0, 1, 1901}, {2024, 0, 9, 1930}, {2024, 0, 9, 1935},
	})
	require.NoError(t, err)

	w := Reconstruct(tl, MustDate(2024, time.January, 15), DefaultWindowDays)

	for i := 1; i < w.Len(); i++ {
		if _, observed := tl.At(w.Points[i].Date); observed {
			continue
		}
		assert.Equal(t, w.Points[i-1].Rating, w.Points[i].Rating, w.Points[i].Date.String())
	}
	assert.Equal(t, Some(1935), w.Last())
}

func TestReconstruct_Idempotent(t *testing.T) {
	tl, err := BuildTimeline([]RawPoint{{2024, 1, 28, 1500}, {2024, 1, 29, 1510}, {2024, 2, 2, 1490}})
	require.NoError(t, err)
	ref := MustDate(2024, time.March, 5)

	assert.Equal(t, Reconstruct(tl, ref, 30), Reconstruct(tl, ref, 30))
}

func TestReconstruct_NegativeWindow(t *testing.T) {
	tl, err := BuildTimeline([]RawPoint{{2024, 0, 1, 1500}})
	require.NoError(t, err)

	w := Reconstruct(tl, MustDate(2024, time.January, 3), -4)

	require.Equal(t, 1, w.Len())
	assert.Equal(t, Some(1500), w.Last())
}
