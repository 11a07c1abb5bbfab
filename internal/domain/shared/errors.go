// Package shared contains the error taxonomy used across all domain packages.
// This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error. Callers switch on the kind instead of
// probing concrete types.
type Kind int

const (
	// KindUnknown is reported by KindOf for errors outside the taxonomy.
	KindUnknown Kind = iota
	// KindProvider is a transport or HTTP failure reaching the data source.
	KindProvider
	// KindNoPlayersFound means the leaderboard query succeeded with zero entries.
	KindNoPlayersFound
	// KindRatingHistoryNotFound means the provider returned no usable history.
	KindRatingHistoryNotFound
	// KindCategoryNotFound means the history lacks the requested category.
	KindCategoryNotFound
	// KindMalformedObservation means a raw point is not a valid calendar date.
	KindMalformedObservation
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindProvider:
		return "provider"
	case KindNoPlayersFound:
		return "no_players_found"
	case KindRatingHistoryNotFound:
		return "rating_history_not_found"
	case KindCategoryNotFound:
		return "category_not_found"
	case KindMalformedObservation:
		return "malformed_observation"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching. An *Error matches the sentinel of its kind.
var (
	ErrProvider              = errors.New("provider error")
	ErrNoPlayersFound        = errors.New("no players found on the leaderboard")
	ErrRatingHistoryNotFound = errors.New("rating history not found")
	ErrCategoryNotFound      = errors.New("category not found in rating history")
	ErrMalformedObservation  = errors.New("malformed rating observation")
)

func (k Kind) sentinel() error {
	switch k {
	case KindProvider:
		return ErrProvider
	case KindNoPlayersFound:
		return ErrNoPlayersFound
	case KindRatingHistoryNotFound:
		return ErrRatingHistoryNotFound
	case KindCategoryNotFound:
		return ErrCategoryNotFound
	case KindMalformedObservation:
		return ErrMalformedObservation
	default:
		return nil
	}
}

// Error is the single concrete domain error. Only the payload fields relevant
// to Kind are set.
type Error struct {
	Kind Kind

	// Username of the player the failure concerns.
	Username string
	// Category is the game category requested.
	Category string
	// Resource identifies what was being fetched (usually a URL).
	Resource string
	// Message is a human-readable description.
	Message string
	// Point is the offending raw observation for KindMalformedObservation.
	Point []int
	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case KindProvider:
		msg := fmt.Sprintf("provider error: %s | resource: %s", e.Message, e.Resource)
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return msg
	case KindNoPlayersFound:
		if e.Category != "" {
			return fmt.Sprintf("no players found on the %s leaderboard", e.Category)
		}
		return ErrNoPlayersFound.Error()
	case KindRatingHistoryNotFound:
		return fmt.Sprintf("rating history not found for user '%s'", e.Username)
	case KindCategoryNotFound:
		return fmt.Sprintf("no %s rating history found for user '%s'", e.Category, e.Username)
	case KindMalformedObservation:
		msg := fmt.Sprintf("malformed rating observation %v", e.Point)
		if e.Message != "" {
			msg += ": " + e.Message
		}
		return msg
	default:
		if e.Err != nil {
			return e.Err.Error()
		}
		return e.Message
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind, or another *Error of the same kind.
func (e *Error) Is(target error) bool {
	if s := e.Kind.sentinel(); s != nil && target == s {
		return true
	}
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// NewProviderError reports a transport failure for resource.
func NewProviderError(message, resource string, cause error) *Error {
	return &Error{Kind: KindProvider, Message: message, Resource: resource, Err: cause}
}

// NewNoPlayersFoundError reports an empty leaderboard for category.
func NewNoPlayersFoundError(category string) *Error {
	return &Error{Kind: KindNoPlayersFound, Category: category}
}

// NewRatingHistoryNotFoundError reports a missing history payload.
func NewRatingHistoryNotFoundError(username string) *Error {
	return &Error{Kind: KindRatingHistoryNotFound, Username: username}
}

// NewCategoryNotFoundError reports a history without the category entry.
func NewCategoryNotFoundError(username, category string) *Error {
	return &Error{Kind: KindCategoryNotFound, Username: username, Category: category}
}

// NewMalformedObservationError reports a raw point that is not a real date.
func NewMalformedObservationError(point []int, message string) *Error {
	return &Error{Kind: KindMalformedObservation, Point: point, Message: message}
}

// WithUsername returns a copy of err carrying username when err is an *Error
// without one. Other errors are returned unchanged.
func WithUsername(err error, username string) error {
	var e *Error
	if !errors.As(err, &e) || e.Username != "" {
		return err
	}
	cp := *e
	cp.Username = username
	return &cp
}
