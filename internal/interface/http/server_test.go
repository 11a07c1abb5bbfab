package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ratingtrends/chess-rankings/internal/domain/rating"
	"github.com/ratingtrends/chess-rankings/internal/infrastructure/persistence/redis"
	"github.com/ratingtrends/chess-rankings/internal/infrastructure/scheduler"
	"github.com/ratingtrends/chess-rankings/internal/interface/http/handlers"
	"github.com/ratingtrends/chess-rankings/pkg/logger"
)

type fakeJobs []scheduler.JobInfo

func (f fakeJobs) ListJobs() []scheduler.JobInfo { return f }

type fakeBoard struct {
	meta    *redis.BoardMeta
	players []redis.CachedTrend
	err     error
	gotN    int
}

func (f *fakeBoard) Trend(ctx context.Context, category, username string) (redis.CachedTrend, error) {
	if f.err != nil {
		return redis.CachedTrend{}, f.err
	}
	for _, p := range f.players {
		if p.Username == username {
			return p, nil
		}
	}
	return redis.CachedTrend{}, redis.ErrCacheMiss
}

func (f *fakeBoard) Meta(ctx context.Context, category string) (*redis.BoardMeta, error) {
	return f.meta, f.err
}

func (f *fakeBoard) Top(ctx context.Context, category string, n int) ([]redis.CachedTrend, error) {
	f.gotN = n
	return f.players, f.err
}

func serve(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func newTestServer(deps Dependencies) *Server {
	deps.Logger = logger.Discard()
	return NewServer(DefaultConfig("127.0.0.1:0"), deps)
}

func TestHealth_ReportsFailingCheck(t *testing.T) {
	checker := handlers.NewChecker(time.Second)
	checker.Add("redis", func(ctx context.Context) error { return errors.New("down") })

	rec, body := serve(t, newTestServer(Dependencies{Checker: checker}), "/health")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	data := body["data"].(map[string]any)
	assert.Equal(t, "failing: redis", data["message"])
}

func TestHealth_OK(t *testing.T) {
	rec, body := serve(t, newTestServer(Dependencies{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
}

func TestJobs(t *testing.T) {
	started := time.Date(2024, 1, 20, 6, 0, 0, 0, time.UTC)
	jobs := fakeJobs{{
		Name:      "export_trends_classical",
		Schedule:  "0 6 * * *",
		NextRun:   started.Add(24 * time.Hour),
		RunCount:  3,
		FailCount: 1,
		LastResult: &scheduler.JobResult{
			StartedAt: started,
			Duration:  1500 * time.Millisecond,
			Error:     errors.New("provider error"),
		},
	}}

	rec, body := serve(t, newTestServer(Dependencies{Jobs: jobs}), "/jobs")

	require.Equal(t, http.StatusOK, rec.Code)
	list := body["data"].([]any)
	require.Len(t, list, 1)
	job := list[0].(map[string]any)
	assert.Equal(t, "export_trends_classical", job["name"])
	assert.EqualValues(t, 3, job["run_count"])
	last := job["last_run"].(map[string]any)
	assert.Equal(t, "1.5s", last["duration"])
	assert.Equal(t, "provider error", last["error"])
}

func TestBoard(t *testing.T) {
	r := 2500
	board := &fakeBoard{
		meta: &redis.BoardMeta{RunID: "run-1", Category: "classical", ReferenceDate: rating.Date{Year: 2024, Month: time.January, Day: 20}, WindowDays: 30, Total: 1},
		players: []redis.CachedTrend{
			{Rank: 1, Username: "Alice", Start: rating.Date{Year: 2023, Month: time.December, Day: 21}, Ratings: []*int{&r}},
		},
	}
	s := newTestServer(Dependencies{Board: board})

	rec, body := serve(t, s, "/boards/Classical?n=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, board.gotN)
	data := body["data"].(map[string]any)
	assert.Equal(t, "run-1", data["meta"].(map[string]any)["run_id"])
	players := data["players"].([]any)
	require.Len(t, players, 1)
	assert.Equal(t, "Alice", players[0].(map[string]any)["username"])

	rec, _ = serve(t, s, "/boards/classical")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultBoardSize, board.gotN)
}

func TestBoard_Errors(t *testing.T) {
	cases := []struct {
		name  string
		deps  Dependencies
		path  string
		code  int
		errID string
	}{
		{"disabled", Dependencies{}, "/boards/classical", http.StatusServiceUnavailable, "board_disabled"},
		{"unknown category", Dependencies{Board: &fakeBoard{}}, "/boards/crazyhouse960", http.StatusBadRequest, "invalid_category"},
		{"bad n", Dependencies{Board: &fakeBoard{}}, "/boards/classical?n=0", http.StatusBadRequest, "invalid_n"},
		{"empty cache", Dependencies{Board: &fakeBoard{}}, "/boards/classical", http.StatusNotFound, "not_found"},
		{"redis failure", Dependencies{Board: &fakeBoard{err: errors.New("timeout")}}, "/boards/classical", http.StatusInternalServerError, "cache_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := serve(t, newTestServer(tc.deps), tc.path)
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, tc.errID, body["error"].(map[string]any)["code"])
		})
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(Dependencies{})
	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
	assert.Contains(t, rec.Body.String(), `"request_id":"abc"`)
}

func TestBoardPlayer(t *testing.T) {
	r := 2500
	board := &fakeBoard{players: []redis.CachedTrend{
		{Rank: 1, Username: "Alice", Start: rating.Date{Year: 2023, Month: time.December, Day: 21}, Ratings: []*int{&r}},
	}}
	s := newTestServer(Dependencies{Board: board})

	rec, body := serve(t, s, "/boards/classical/players/Alice")
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "Alice", data["username"])
	assert.Equal(t, "2023-12-21", data["start"])

	rec, body = serve(t, s, "/boards/classical/players/nobody")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["error"].(map[string]any)["code"])

	rec, _ = serve(t, newTestServer(Dependencies{Board: &fakeBoard{err: errors.New("timeout")}}), "/boards/classical/players/Alice")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
