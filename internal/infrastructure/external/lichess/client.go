// Package lichess implements leaderboard.PlayerDataProvider over the public
// Lichess REST API. No authentication is used.
package lichess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ratingtrends/chess-rankings/internal/domain/leaderboard"
	"github.com/ratingtrends/chess-rankings/internal/domain/rating"
	"github.com/ratingtrends/chess-rankings/internal/domain/shared"
	"github.com/ratingtrends/chess-rankings/pkg/circuitbreaker"
	"github.com/ratingtrends/chess-rankings/pkg/logger"
	"github.com/ratingtrends/chess-rankings/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://lichess.org/api"

// leaderboardMediaType selects the v3 leaderboard format ({"users": [...]}).
const leaderboardMediaType = "application/vnd.lichess.v3+json"

// maxBodySize bounds how much of a response is read.
const maxBodySize = 16 << 20

// ClientConfig contains configuration for the Lichess API client.
type ClientConfig struct {
	// BaseURL is the API root, without trailing slash.
	BaseURL string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// MaxRetries is the number of attempts per request, used when Retry is nil.
	MaxRetries int

	// Retry overrides the retry policy.
	Retry *retry.Retrier

	// CircuitBreaker overrides the breaker. Nil builds a default one.
	CircuitBreaker *circuitbreaker.CircuitBreaker

	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:    DefaultBaseURL,
		Timeout:    30 * time.Second,
		UserAgent:  "chess-rankings/1.0",
		MaxRetries: 3,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the Lichess API client.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
	mapper     *Mapper
	logger     *slog.Logger
}

var _ leaderboard.PlayerDataProvider = (*Client)(nil)

// NewClient creates a new Lichess API client.
func NewClient(config ClientConfig) *Client {
	log := logger.OrDefault(config.Logger).With(logger.Component("lichess"))
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 1
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	retrier := config.Retry
	if retrier == nil {
		retrier = retry.ProviderRetrier(config.MaxRetries)
	}

	breaker := config.CircuitBreaker
	if breaker == nil {
		breaker = circuitbreaker.ProviderBreaker(5, 30*time.Second, func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		})
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		retrier:    retrier,
		breaker:    breaker,
		mapper:     NewMapper(),
		logger:     log,
	}
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// BreakerState returns the circuit breaker state.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

// ══════════════════════════════════════════════════════════════════════════════
// PROVIDER OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// FetchTopPlayers implements leaderboard.PlayerDataProvider.
// A payload without a "users" key yields an empty slice.
func (c *Client) FetchTopPlayers(ctx context.Context, category leaderboard.Category, count int) ([]leaderboard.Player, error) {
	path := fmt.Sprintf("/player/top/%d/%s", count, url.PathEscape(category.Key()))

	var dto TopPlayersDTO
	found, err := c.getJSON(ctx, path, leaderboardMediaType, &dto)
	if err != nil {
		return nil, err
	}
	if !found {
		return []leaderboard.Player{}, nil
	}
	return c.mapper.PlayersFromDTO(&dto, category)
}

// FetchRatingHistory implements leaderboard.PlayerDataProvider.
// 404, a JSON null and an empty array are all RatingHistoryNotFound.
func (c *Client) FetchRatingHistory(ctx context.Context, username string) ([]rating.CategoryHistory, error) {
	path := fmt.Sprintf("/user/%s/rating-history", url.PathEscape(username))

	var dtos []RatingHistoryDTO
	found, err := c.getJSON(ctx, path, "application/json", &dtos)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return nil, shared.NewRatingHistoryNotFoundError(username)
		}
		return nil, err
	}
	if !found || len(dtos) == 0 {
		return nil, shared.NewRatingHistoryNotFoundError(username)
	}
	return c.mapper.HistoriesFromDTO(dtos, username)
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// statusError is an HTTP error status.
type statusError struct {
	code    int
	message string
}

func (e *statusError) Error() string {
	if e.message != "" {
		return fmt.Sprintf("status %d: %s", e.code, e.message)
	}
	return fmt.Sprintf("status %d", e.code)
}

// getJSON performs a GET with circuit breaking and retries and decodes the
// body into out. found is false when the body is empty or JSON null.
//
// Every failure is a shared.KindProvider error wrapping the cause; a
// *statusError stays reachable through errors.As.
func (c *Client) getJSON(ctx context.Context, path, accept string, out any) (found bool, err error) {
	fullURL := c.config.BaseURL + path
	start := time.Now()

	var clientErr error
	execErr := c.breaker.Execute(ctx, func(ctx context.Context) error {
		err := c.retrier.Do(ctx, func(ctx context.Context) error {
			var opErr error
			found, opErr = c.doSingleRequest(ctx, fullURL, accept, out)
			return opErr
		})
		// 4xx says nothing about the API's health.
		var se *statusError
		if errors.As(err, &se) && se.code < http.StatusInternalServerError {
			clientErr = err
			return nil
		}
		return err
	})
	if execErr == nil {
		execErr = clientErr
	}

	if execErr != nil {
		c.logger.WarnContext(ctx, "lichess request failed",
			logger.Resource(fullURL),
			logger.Latency(time.Since(start)),
			logger.Err(execErr),
		)
		return false, shared.NewProviderError(describe(execErr), fullURL, execErr)
	}

	c.logger.DebugContext(ctx, "lichess request",
		logger.Resource(fullURL),
		logger.Latency(time.Since(start)),
	)
	return found, nil
}

// doSingleRequest performs one HTTP request and marks the result retryable
// or permanent.
func (c *Client) doSingleRequest(ctx context.Context, fullURL, accept string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return false, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", accept)
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, retry.Permanent(ctx.Err())
		}
		return false, retry.Retryable(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return false, retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		se := &statusError{code: resp.StatusCode}
		var apiErr ErrorDTO
		if json.Unmarshal(body, &apiErr) == nil {
			se.message = apiErr.Error
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return false, retry.Retryable(se)
		}
		return false, retry.Permanent(se)
	}

	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return false, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, retry.Permanent(fmt.Errorf("unmarshal response: %w", err))
	}
	return true, nil
}

func describe(err error) string {
	var se *statusError
	switch {
	case errors.As(err, &se):
		return "unexpected HTTP status " + http.StatusText(se.code)
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		return "rating API temporarily unavailable"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "request cancelled"
	default:
		return "request failed"
	}
}
