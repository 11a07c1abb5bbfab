package rating

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ratingtrends/chess-rankings/internal/domain/shared"
)

func TestBuildTimeline_NormalizesMonth(t *testing.T) {
	tl, err := BuildTimeline([]RawPoint{{2024, 0, 15, 1500}, {2024, 11, 31, 1620}})
	require.NoError(t, err)

	r, ok := tl.At(MustDate(2024, time.January, 15))
	assert.True(t, ok)
	assert.Equal(t, 1500, r)

	r, ok = tl.At(MustDate(2024, time.December, 31))
	assert.True(t, ok)
	assert.Equal(t, 1620, r)
	assert.Equal(t, 2, tl.Len())
}

func TestBuildTimeline_LastWriteWins(t *testing.T) {
	tl, err := BuildTimeline([]RawPoint{{2024, 0, 15, 1500}, {2024, 0, 15, 1510}})
	require.NoError(t, err)

	r, _ := tl.At(MustDate(2024, time.January, 15))
	assert.Equal(t, 1510, r)
	assert.Equal(t, 1, tl.Len())
}

func TestBuildTimeline_MalformedPoint(t *testing.T) {
	tests := []struct {
		name  string
		point RawPoint
	}{
		{"february 30", RawPoint{2024, 1, 30, 1500}},
		{"february 29 in common year", RawPoint{2023, 1, 29, 1500}},
		{"month index 12", RawPoint{2024, 12, 1, 1500}},
		{"negative month index", RawPoint{2024, -1, 1, 1500}},
		{"day zero", RawPoint{2024, 0, 0, 1500}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl, err := BuildTimeline([]RawPoint{{2024, 0, 1, 1400}, tt.point})
			assert.Nil(t, tl)
			require.ErrorIs(t, err, shared.ErrMalformedObservation)

			var e *shared.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.point[:], e.Point)
		})
	}
}

func TestBuildTimeline_UnorderedInput(t *testing.T) {
	tl, err := BuildTimeline([]RawPoint{{2024, 2, 1, 1700}, {2023, 5, 1, 1500}, {2024, 0, 1, 1600}})
	require.NoError(t, err)

	assert.Equal(t, []Date{
		MustDate(2023, time.June, 1),
		MustDate(2024, time.January, 1),
		MustDate(2024, time.March, 1),
	}, tl.Dates())

	latest, ok := tl.Latest()
	require.True(t, ok)
	assert.Equal(t, Observation{Date: MustDate(2024, time.March, 1), Rating: 1700}, latest)
}

func TestTimeline_MostRecentBeforeIsStrict(t *testing.T) {
	tl, err := BuildTimeline([]RawPoint{{2024, 0, 10, 1500}, {2024, 0, 20, 1550}, {2023, 11, 31, 1450}})
	require.NoError(t, err)

	tests := []struct {
		name   string
		date   Date
		want   int
		wantOK bool
	}{
		{"before everything", MustDate(2023, time.December, 31), 0, false},
		{"day after first", MustDate(2024, time.January, 1), 1450, true},
		{"exact date excluded", MustDate(2024, time.January, 20), 1500, true},
		{"between observations", MustDate(2024, time.January, 15), 1500, true},
		{"far future", MustDate(2030, time.June, 1), 1550, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tl.MostRecentBefore(tt.date)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Every answer must come from the latest observation dated strictly earlier.
func TestTimeline_MostRecentBeforeProperty(t *testing.T) {
	tl, err := BuildTimeline([]RawPoint{
		{2023, 10, 3, 1401}, {2023, 11, 30, 1420}, {2024, 0, 2, 1433},
		{2024, 1, 29, 1460}, {2024, 2, 1, 1475},
	})
	require.NoError(t, err)
	obs := tl.Observations()

	for d := MustDate(2023, time.October, 25); !d.After(MustDate(2024, time.March, 10)); d = d.AddDays(1) {
		got, ok := tl.MostRecentBefore(d)

		want, wantOK := 0, false
		for _, o := range obs {
			if o.Date.Before(d) {
				want, wantOK = o.Rating, true
			}
		}
		assert.Equal(t, wantOK, ok, d.String())
		assert.Equal(t, want, got, d.String())
	}
}

func TestTimeline_NilIsEmpty(t *testing.T) {
	var tl *Timeline
	_, ok := tl.At(MustDate(2024, time.January, 1))
	assert.False(t, ok)
	_, ok = tl.MostRecentBefore(MustDate(2024, time.January, 1))
	assert.False(t, ok)
	_, ok = tl.Latest()
	assert.False(t, ok)
	assert.Zero(t, tl.Len())
	assert.Empty(t, tl.Dates())
}
