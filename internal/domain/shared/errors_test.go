package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKindSentinel(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
		kind     Kind
	}{
		{NewProviderError("timeout", "https://lichess.org/api/player/top/50/classical", nil), ErrProvider, KindProvider},
		{NewNoPlayersFoundError("classical"), ErrNoPlayersFound, KindNoPlayersFound},
		{NewRatingHistoryNotFoundError("alice"), ErrRatingHistoryNotFound, KindRatingHistoryNotFound},
		{NewCategoryNotFoundError("alice", "Classical"), ErrCategoryNotFound, KindCategoryNotFound},
		{NewMalformedObservationError([]int{2023, 1, 30, 1500}, "day out of range"), ErrMalformedObservation, KindMalformedObservation},
	}

	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			wrapped := fmt.Errorf("report: %w", tc.err)
			assert.ErrorIs(t, wrapped, tc.sentinel)
			assert.Equal(t, tc.kind, KindOf(wrapped))
			assert.NotEmpty(t, tc.err.Error())
		})
	}
}

func TestError_KindsDoNotCrossMatch(t *testing.T) {
	err := NewCategoryNotFoundError("alice", "Classical")
	assert.False(t, errors.Is(err, ErrProvider))
	assert.False(t, errors.Is(err, ErrRatingHistoryNotFound))
	assert.True(t, errors.Is(err, &Error{Kind: KindCategoryNotFound}))
}

func TestError_Messages(t *testing.T) {
	assert.Equal(t, "rating history not found for user 'bob'", NewRatingHistoryNotFoundError("bob").Error())
	assert.Equal(t, "no Classical rating history found for user 'bob'", NewCategoryNotFoundError("bob", "Classical").Error())
	assert.Contains(t, NewProviderError("status 503", "https://x/y", errors.New("eof")).Error(), "resource: https://x/y")
}

func TestProviderError_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewProviderError("request failed", "https://x", cause)
	assert.ErrorIs(t, err, cause)
}

func TestKindOf_Unknown(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestWithUsername(t *testing.T) {
	base := NewMalformedObservationError([]int{2023, 13, 1, 1500}, "month out of range")
	err := WithUsername(base, "carol")

	var e *Error
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, "carol", e.Username)
	assert.Empty(t, base.Username)

	plain := errors.New("x")
	assert.Same(t, plain, WithUsername(plain, "carol"))
}
