package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	wsadapter "leaderbot/adapters/websocket"
	"leaderbot/analytics"
	"leaderbot/core"
	"leaderbot/engine"
	"leaderbot/leaderboard"
	"leaderbot/realtime"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// RateLimitCleanup evicts idle client limiters after this long.
	RateLimitCleanup time.Duration
	// RunTimeout bounds a cycle started through POST /run.
	RunTimeout time.Duration
	// DisableMetrics hides /metrics even when Analytics is set.
	DisableMetrics bool
}

// Deps are the services behind the API. Hub and Analytics are optional.
type Deps struct {
	Bot       *engine.Bot
	Config    engine.Config
	Hub       *realtime.Hub
	Analytics *analytics.Service
}

type server struct {
	deps Deps
	opts Options
}

// NewRouter builds the status API.
// Routes:
//   - GET  {prefix}/healthz
//   - GET  {prefix}/leaderboards/{id}/{year}
//   - GET  {prefix}/leaderboards/{id}/{year}/standings?sort=stars|score
//   - GET  {prefix}/leaderboards/{id}/{year}/stats
//   - GET  {prefix}/leaderboards/{id}/{year}/export?format=json|xlsx&sort=
//   - POST {prefix}/run?dry_run=true
//   - GET  {prefix}/metrics
//   - WS   {prefix}/ws
func NewRouter(deps Deps, opts Options) http.Handler {
	if deps.Bot == nil {
		panic("NewRouter requires a bot")
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 2 * time.Minute
	}
	s := &server{deps: deps, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if opts.AllowCORSOrigin != "" {
		r.Use(corsMiddleware(opts.AllowCORSOrigin))
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		r.Use(rateLimitMiddleware(newRateLimiter(opts.RateLimitRPM, opts.RateLimitBurst, opts.RateLimitCleanup)))
	}
	if len(opts.APIKeys) > 0 {
		r.Use(apiKeyMiddleware(opts.APIKeys))
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	r.Route(prefix(opts.PathPrefix), func(r chi.Router) {
		r.Get("/healthz", s.healthCheck)
		r.Route("/leaderboards/{id}/{year}", func(r chi.Router) {
			r.Get("/", s.getLeaderboard)
			r.Get("/standings", s.getStandings)
			r.Get("/stats", s.getStats)
			r.Get("/export", s.export)
		})
		r.Post("/run", s.run)
		if deps.Analytics != nil && !opts.DisableMetrics {
			r.Method(http.MethodGet, "/metrics", deps.Analytics.Handler())
		}
		if deps.Hub != nil {
			r.Method(http.MethodGet, "/ws", wsadapter.Handler(deps.Hub))
		}
	})
	return r
}

func prefix(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	if p[len(p)-1] == '/' {
		p = p[:len(p)-1]
	}
	return p
}

// healthCheck pings the storage backend.
func (s *server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var err error
	storage := s.deps.Bot.Storage()
	if hc, ok := storage.(engine.HealthChecker); ok {
		err = hc.Ping(ctx)
	} else if s.deps.Config != nil {
		_, err = storage.Load(ctx, s.deps.Config.LeaderboardID(), s.deps.Config.Year())
	}

	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{"storage": "ok"},
	}
	code := http.StatusOK
	if err != nil {
		code = http.StatusServiceUnavailable
		status["status"] = "unhealthy"
		status["checks"] = map[string]any{"storage": "failed", "error": core.ErrorKind(err)}
	}
	writeJSONStatus(w, code, status)
}

type leaderboardResponse struct {
	LeaderboardID core.LeaderboardID `json:"leaderboard_id"`
	Year          int                `json:"year"`
	LastError     string             `json:"last_error,omitempty"`
	Leaderboard   *core.Leaderboard  `json:"leaderboard"`
}

func (s *server) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	id, year, lb, ok := s.load(w, r)
	if !ok {
		return
	}
	resp := leaderboardResponse{LeaderboardID: id, Year: year, Leaderboard: lb}
	if rec, ok := s.deps.Bot.Storage().(engine.ErrorRecorder); ok {
		resp.LastError, _ = rec.LastError(r.Context(), id, year)
	}
	writeJSON(w, resp)
}

func (s *server) getStandings(w http.ResponseWriter, r *http.Request) {
	order, err := leaderboard.ParseSortOrder(r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_sort", err.Error(), nil)
		return
	}
	_, _, lb, ok := s.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, map[string]any{"sort": order, "standings": leaderboard.Standings(lb, order)})
}

func (s *server) getStats(w http.ResponseWriter, r *http.Request) {
	id, year, err := leaderboardKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_leaderboard", err.Error(), nil)
		return
	}
	if s.deps.Analytics == nil {
		writeError(w, http.StatusNotFound, "not_found", "analytics disabled", nil)
		return
	}
	st, ok := s.deps.Analytics.Stats().Get(id, year)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "no cycles recorded for this leaderboard", nil)
		return
	}
	writeJSON(w, st)
}

func (s *server) export(w http.ResponseWriter, r *http.Request) {
	format, err := analytics.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_format", err.Error(), nil)
		return
	}
	order, err := leaderboard.ParseSortOrder(r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_sort", err.Error(), nil)
		return
	}
	id, year, lb, ok := s.load(w, r)
	if !ok {
		return
	}
	exp, err := analytics.NewExporter(format)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_format", err.Error(), nil)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="leaderboard_%d_%d.%s"`, id, year, format))
	_ = exp.Export(w, lb, order)
}

type runResponse struct {
	Result engine.Result `json:"result"`
	Error  string        `json:"error,omitempty"`
	Kind   string        `json:"error_kind,omitempty"`
}

func (s *server) run(w http.ResponseWriter, r *http.Request) {
	if s.deps.Config == nil {
		writeError(w, http.StatusServiceUnavailable, "not_configured", "no leaderboard configured", nil)
		return
	}
	var opts engine.RunOptions
	if raw := r.URL.Query().Get("dry_run"); raw != "" {
		dry, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_dry_run", "dry_run must be a boolean", nil)
			return
		}
		opts.DryRun = dry
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.RunTimeout)
	defer cancel()
	res, err := s.deps.Bot.RunWith(ctx, s.deps.Config, opts)
	if err != nil {
		var ce *engine.CycleError
		if !errors.As(err, &ce) {
			writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
			return
		}
		writeJSONStatus(w, http.StatusBadGateway, runResponse{Result: res, Error: err.Error(), Kind: core.ErrorKind(err)})
		return
	}
	writeJSON(w, runResponse{Result: res})
}

// load resolves the path key and the stored snapshot, writing the error
// response itself when it returns false.
func (s *server) load(w http.ResponseWriter, r *http.Request) (core.LeaderboardID, int, *core.Leaderboard, bool) {
	id, year, err := leaderboardKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_leaderboard", err.Error(), nil)
		return 0, 0, nil, false
	}
	lb, err := s.deps.Bot.Storage().Load(r.Context(), id, year)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "storage", err.Error(), map[string]string{"kind": core.ErrorKind(err)})
		return 0, 0, nil, false
	}
	if lb == nil {
		writeError(w, http.StatusNotFound, "not_found", "no snapshot stored for this leaderboard", nil)
		return 0, 0, nil, false
	}
	return id, year, lb, true
}

func leaderboardKey(r *http.Request) (core.LeaderboardID, int, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, 0, errors.New("leaderboard id must be a positive integer")
	}
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 2015 {
		return 0, 0, errors.New("year must be 2015 or later")
	}
	return core.LeaderboardID(id), year, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	writeJSONStatus(w, status, apiError{Code: code, Message: msg, Details: details})
}
