// Package http serves the worker status endpoint: health checks, scheduled
// job state and the latest trend board cached in Redis.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ratingtrends/chess-rankings/internal/domain/leaderboard"
	"github.com/ratingtrends/chess-rankings/internal/infrastructure/persistence/redis"
	"github.com/ratingtrends/chess-rankings/internal/infrastructure/scheduler"
	"github.com/ratingtrends/chess-rankings/internal/interface/http/handlers"
	"github.com/ratingtrends/chess-rankings/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Addr to listen on, e.g. ":8080".
	Addr string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig(addr string) Config {
	return Config{
		Addr:         addr,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

const (
	defaultBoardSize = 10
	maxBoardSize     = 200
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// JobLister reports the scheduled jobs.
type JobLister interface {
	ListJobs() []scheduler.JobInfo
}

// BoardReader reads the cached trend board.
type BoardReader interface {
	Meta(ctx context.Context, category string) (*redis.BoardMeta, error)
	Top(ctx context.Context, category string, n int) ([]redis.CachedTrend, error)
	Trend(ctx context.Context, category, username string) (redis.CachedTrend, error)
}

// Dependencies contains the collaborators of the status handlers.
// Board may be nil when Redis is disabled.
type Dependencies struct {
	Checker *handlers.Checker
	Jobs    JobLister
	Board   BoardReader
	Logger  *slog.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server is the worker status server.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	router     *http.ServeMux
	logger     *slog.Logger

	mu      sync.RWMutex
	running bool
}

// NewServer creates a status server.
func NewServer(config Config, deps Dependencies) *Server {
	if deps.Checker == nil {
		deps.Checker = handlers.NewChecker(0)
	}

	s := &Server{
		config: config,
		deps:   deps,
		router: http.NewServeMux(),
		logger: logger.OrDefault(deps.Logger).With(logger.Component("status")),
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /healthz", s.handleHealth)
	s.router.HandleFunc("GET /live", s.handleLive)
	s.router.HandleFunc("GET /jobs", s.handleJobs)
	s.router.HandleFunc("GET /boards/{category}", s.handleBoard)
	s.router.HandleFunc("GET /boards/{category}/players/{username}", s.handleBoardPlayer)
}

// Handler returns the router wrapped in middleware.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = s.loggingMiddleware(h)
	h = s.recoveryMiddleware(h)
	h = s.requestIDMiddleware(h)
	return h
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// StartAsync listens in a goroutine. The channel receives the terminal
// error, if any, and is closed when the server stops.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	go func() {
		defer close(errCh)
		s.logger.Info("status server listening", slog.String("addr", s.config.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()
	return errCh
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down status server")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning reports whether the server is listening.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Checker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

type jobJSON struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Schedule    string     `json:"schedule"`
	NextRun     *time.Time `json:"next_run,omitempty"`
	RunCount    int64      `json:"run_count"`
	FailCount   int64      `json:"fail_count"`
	LastRun     *lastRun   `json:"last_run,omitempty"`
}

type lastRun struct {
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
	Success   bool      `json:"success"`
	Manual    bool      `json:"manual,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeJSON(w, r, http.StatusOK, []jobJSON{})
		return
	}

	infos := s.deps.Jobs.ListJobs()
	out := make([]jobJSON, 0, len(infos))
	for _, info := range infos {
		j := jobJSON{
			Name:        info.Name,
			Description: info.Description,
			Schedule:    info.Schedule,
			RunCount:    info.RunCount,
			FailCount:   info.FailCount,
		}
		if !info.NextRun.IsZero() {
			next := info.NextRun
			j.NextRun = &next
		}
		if res := info.LastResult; res != nil {
			j.LastRun = &lastRun{
				StartedAt: res.StartedAt,
				Duration:  res.Duration.Round(time.Millisecond).String(),
				Success:   res.Success,
				Manual:    res.Manual,
			}
			if res.Error != nil {
				j.LastRun.Error = res.Error.Error()
			}
		}
		out = append(out, j)
	}
	writeJSON(w, r, http.StatusOK, out)
}

type boardJSON struct {
	Meta    *redis.BoardMeta    `json:"meta"`
	Players []redis.CachedTrend `json:"players"`
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	if s.deps.Board == nil {
		writeJSONError(w, r, http.StatusServiceUnavailable, "board_disabled", "the trend board needs Redis")
		return
	}

	category, err := leaderboard.ParseCategory(r.PathValue("category"))
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_category", err.Error())
		return
	}

	n := defaultBoardSize
	if raw := r.URL.Query().Get("n"); raw != "" {
		n, err = strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxBoardSize {
			writeJSONError(w, r, http.StatusBadRequest, "invalid_n", "n must be between 1 and "+strconv.Itoa(maxBoardSize))
			return
		}
	}

	ctx := r.Context()
	meta, err := s.deps.Board.Meta(ctx, category.Key())
	if err != nil {
		s.logger.Error("reading board meta", logger.Category(category.Key()), logger.Err(err))
		writeJSONError(w, r, http.StatusInternalServerError, "cache_error", "failed to read the trend board")
		return
	}
	if meta == nil {
		writeJSONError(w, r, http.StatusNotFound, "not_found", "no export has been cached for "+category.Key())
		return
	}

	players, err := s.deps.Board.Top(ctx, category.Key(), n)
	if err != nil {
		s.logger.Error("reading board", logger.Category(category.Key()), logger.Err(err))
		writeJSONError(w, r, http.StatusInternalServerError, "cache_error", "failed to read the trend board")
		return
	}
	writeJSON(w, r, http.StatusOK, boardJSON{Meta: meta, Players: players})
}

func (s *Server) handleBoardPlayer(w http.ResponseWriter, r *http.Request) {
	if s.deps.Board == nil {
		writeJSONError(w, r, http.StatusServiceUnavailable, "board_disabled", "the trend board needs Redis")
		return
	}

	category, err := leaderboard.ParseCategory(r.PathValue("category"))
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_category", err.Error())
		return
	}
	username := r.PathValue("username")

	trend, err := s.deps.Board.Trend(r.Context(), category.Key(), username)
	switch {
	case errors.Is(err, redis.ErrCacheMiss):
		writeJSONError(w, r, http.StatusNotFound, "not_found", username+" is not on the cached "+category.Key()+" board")
	case err != nil:
		s.logger.Error("reading board player", logger.Category(category.Key()), logger.Username(username), logger.Err(err))
		writeJSONError(w, r, http.StatusInternalServerError, "cache_error", "failed to read the trend board")
	default:
		writeJSON(w, r, http.StatusOK, trend)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

type contextKey string

const contextKeyRequestID contextKey = "request_id"

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rw.statusCode),
			logger.Latency(time.Since(start)),
			slog.String("request_id", requestID(r.Context())),
		)
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
					slog.String("path", r.URL.Path),
				)
				writeJSONError(w, r, http.StatusInternalServerError, "internal_server_error", "an unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// Response is the envelope of every status endpoint.
type Response struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeResponse(w, status, Response{
		Success:   status >= 200 && status < 300,
		Data:      data,
		RequestID: requestID(r.Context()),
	})
}

func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeResponse(w, status, Response{
		Error:     &APIError{Code: code, Message: message},
		RequestID: requestID(r.Context()),
	})
}

func writeResponse(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}
