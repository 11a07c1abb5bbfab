package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLichess serves the same two-player classical leaderboard for any
// count. Bob has no rating history.
func fakeLichess(t *testing.T) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/player/top/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"users":[
			{"id":"alice","username":"Alice","perfs":{"classical":{"rating":2500,"progress":5}}},
			{"id":"bob","username":"Bob","perfs":{"classical":{"rating":2400,"progress":0}}}
		]}`))
	})
	mux.HandleFunc("/api/user/Alice/rating-history", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"name":"Classical","points":[[2024,0,15,2500]]}]`))
	})
	mux.HandleFunc("/api/user/Bob/rating-history", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Setenv("LICHESS_BASE_URL", srv.URL+"/api")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DATABASE_ENABLED", "false")
	t.Setenv("REDIS_ENABLED", "false")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTopCommand(t *testing.T) {
	fakeLichess(t)

	out, err := execute(t, "top", "--count", "2")
	require.NoError(t, err)
	assert.Equal(t, "Alice\nBob\n", out)
}

func TestTrendCommand_User(t *testing.T) {
	fakeLichess(t)

	out, err := execute(t, "trend", "--user", "Alice", "--window", "2", "--date", "2024-01-16")
	require.NoError(t, err)
	assert.Equal(t, "Alice, {'Jan 14': None, 'Jan 15': 2500, 'Jan 16': 2500}\n", out)
}

func TestTrendCommand_UnknownUser(t *testing.T) {
	fakeLichess(t)

	_, err := execute(t, "trend", "--user", "Bob", "--date", "2024-01-16")
	assert.ErrorContains(t, err, "rating history not found for user 'Bob'")
}

func TestExportCommand(t *testing.T) {
	fakeLichess(t)
	path := filepath.Join(t.TempDir(), "trends.csv")

	out, err := execute(t, "export", "--count", "2", "--date", "2024-01-16", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, "An error occurred while processing user Bob")
	assert.Contains(t, out, "CSV file '"+path+"' has been created successfully.")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "username,2023-12-17,"))
	assert.True(t, strings.HasPrefix(lines[1], "Alice,"))
	assert.True(t, strings.HasSuffix(lines[1], ",2500,2500"))
	assert.Equal(t, "Bob"+strings.Repeat(",", 31), lines[2])
}

func TestRootCommand_RunsAllReports(t *testing.T) {
	fakeLichess(t)
	path := filepath.Join(t.TempDir(), "trends.csv")
	t.Setenv("REPORT_CSV_PATH", path)

	out, err := execute(t, "--count", "2", "--date", "2024-01-16")
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	assert.Equal(t, "Alice", lines[0])
	assert.Equal(t, "Bob", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "Alice, {'Dec 17': None"))
	assert.FileExists(t, path)
}

func TestRunsCommand_NeedsDatabase(t *testing.T) {
	fakeLichess(t)

	_, err := execute(t, "runs")
	assert.ErrorContains(t, err, "needs a database")
}

func TestInvalidFlags(t *testing.T) {
	fakeLichess(t)

	_, err := execute(t, "top", "--count", "500")
	assert.ErrorContains(t, err, "REPORT_TOP_COUNT")

	_, err = execute(t, "trend", "--date", "16/01/2024")
	assert.ErrorContains(t, err, "invalid --date")
}
