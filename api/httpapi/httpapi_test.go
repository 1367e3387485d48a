package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mem "leaderbot/adapters/memory"
	"leaderbot/analytics"
	"leaderbot/core"
	"leaderbot/core/coretest"
	"leaderbot/engine"
)

type apiFixture struct {
	store    *mem.Store
	bus      *engine.EventBus
	bot      *engine.Bot
	current  *core.Leaderboard
	fetchErr error
	cfg      engine.Config
}

func newFixture(t *testing.T) *apiFixture {
	t.Helper()
	f := &apiFixture{store: mem.New(), bus: engine.NewEventBus(engine.DispatchSync)}
	f.current = core.NewLeaderboard(coretest.Year, 1)
	f.current.Members[1] = coretest.Member(1, "Alice", core.Puzzle{Day: 1, Part: 1}, core.Puzzle{Day: 2, Part: 1})
	f.current.Members[2] = coretest.Member(2, "Bob", core.Puzzle{Day: 1, Part: 2})
	fetch := engine.FetcherFunc(func(ctx context.Context, year int, id core.LeaderboardID, creds core.Credentials) (*core.Leaderboard, error) {
		if f.fetchErr != nil {
			return nil, f.fetchErr
		}
		return f.current.Clone(), nil
	})
	f.bot = engine.NewBot(fetch, f.store, engine.NopReporter{}, engine.WithEventBus(f.bus))
	f.cfg = engine.NewStaticConfig(coretest.Year, coretest.LeaderboardID, core.ViewKey("vk"))
	return f
}

func (f *apiFixture) handler(t *testing.T, opts Options) http.Handler {
	t.Helper()
	svc, err := analytics.NewService()
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	t.Cleanup(svc.Attach(f.bus))
	return NewRouter(Deps{Bot: f.bot, Config: f.cfg, Analytics: svc}, opts)
}

func do(h http.Handler, method, target string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRunThenReadSnapshot(t *testing.T) {
	f := newFixture(t)
	h := f.handler(t, Options{PathPrefix: "/api"})

	rec := do(h, http.MethodGet, "/api/leaderboards/424242/2024")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before first run, got %d", rec.Code)
	}

	rec = do(h, http.MethodPost, "/api/run")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var run runResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &run)
	if !run.Result.FirstRun || !run.Result.Saved {
		t.Fatalf("unexpected result %+v", run.Result)
	}

	rec = do(h, http.MethodGet, "/api/leaderboards/424242/2024")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var lb leaderboardResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &lb)
	if lb.Leaderboard == nil || len(lb.Leaderboard.Members) != 2 {
		t.Fatalf("unexpected snapshot %+v", lb)
	}
}

func TestRunFailureIs502(t *testing.T) {
	f := newFixture(t)
	f.fetchErr = &core.FetchError{Kind: core.FetchAuthExpired, StatusCode: 400, Err: core.ErrNoAccess}
	h := f.handler(t, Options{})

	rec := do(h, http.MethodPost, "/run")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	var run runResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &run)
	if run.Kind != "fetch.auth_expired" || run.Result.Stage != core.StageFetching {
		t.Fatalf("unexpected response %+v", run)
	}

	rec = do(h, http.MethodGet, "/leaderboards/424242/2024/stats")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"fetch.auth_expired":1`) {
		t.Fatalf("unexpected stats %d %s", rec.Code, rec.Body.String())
	}
}

func TestDryRunDoesNotSave(t *testing.T) {
	f := newFixture(t)
	h := f.handler(t, Options{})

	rec := do(h, http.MethodPost, "/run?dry_run=true")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if lb, _ := f.store.Load(context.Background(), coretest.LeaderboardID, coretest.Year); lb != nil {
		t.Fatal("dry run saved a snapshot")
	}
	if rec := do(h, http.MethodPost, "/run?dry_run=maybe"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad dry_run, got %d", rec.Code)
	}
}

func TestStandings(t *testing.T) {
	f := newFixture(t)
	h := f.handler(t, Options{})
	if err := f.store.Save(context.Background(), coretest.LeaderboardID, coretest.Year, f.current); err != nil {
		t.Fatal(err)
	}

	rec := do(h, http.MethodGet, "/leaderboards/424242/2024/standings?sort=score")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Standings []struct {
			Rank int    `json:"rank"`
			Name string `json:"name"`
		} `json:"standings"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	// Alice 2 stars / 20 points, Bob 1 star / 20 points; equal score falls back to stars
	if len(resp.Standings) != 2 || resp.Standings[0].Name != "Alice" {
		t.Fatalf("unexpected standings %+v", resp.Standings)
	}

	if rec := do(h, http.MethodGet, "/leaderboards/424242/2024/standings?sort=name"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/leaderboards/abc/2024/standings"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	h := f.handler(t, Options{})
	_ = f.store.Save(context.Background(), coretest.LeaderboardID, coretest.Year, f.current)

	rec := do(h, http.MethodGet, "/leaderboards/424242/2024/export?format=xlsx")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "PK") {
		t.Fatal("expected a zip container")
	}
	if rec := do(h, http.MethodGet, "/leaderboards/424242/2024/export?format=csv"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	h := f.handler(t, Options{PathPrefix: "/api/"})

	rec := do(h, http.MethodGet, "/api/healthz")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "healthy") {
		t.Fatalf("unexpected health %d %s", rec.Code, rec.Body.String())
	}

	_ = do(h, http.MethodPost, "/api/run")
	rec = do(h, http.MethodGet, "/api/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "leaderbot_cycles_total") {
		t.Fatalf("unexpected metrics %d", rec.Code)
	}
}

type downStore struct{ *mem.Store }

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthUnhealthy(t *testing.T) {
	unused := engine.FetcherFunc(func(context.Context, int, core.LeaderboardID, core.Credentials) (*core.Leaderboard, error) {
		return nil, errors.New("not called")
	})
	bot := engine.NewBot(unused, downStore{mem.New()}, engine.NopReporter{})
	h := NewRouter(Deps{Bot: bot}, Options{})
	if rec := do(h, http.MethodGet, "/healthz"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if rec := do(h, http.MethodPost, "/run"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without config, got %d", rec.Code)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	f := newFixture(t)
	h := f.handler(t, Options{PathPrefix: "/api", APIKeys: []string{"secret"}, AllowCORSOrigin: "*"})

	if rec := do(h, http.MethodGet, "/api/healthz"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/api/healthz", "Authorization", "Bearer secret"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec := do(h, http.MethodOptions, "/api/healthz")
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight should bypass auth, got %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t)
	h := f.handler(t, Options{
		APIKeys:          []string{"k"},
		RateLimitEnabled: true,
		RateLimitRPM:     1,
		RateLimitBurst:   1,
	})

	if rec := do(h, http.MethodGet, "/healthz", "X-API-Key", "k"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 first request, got %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/healthz", "X-API-Key", "k"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestNotFound(t *testing.T) {
	f := newFixture(t)
	h := f.handler(t, Options{})
	rec := do(h, http.MethodGet, "/nope")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "not_found") {
		t.Fatalf("unexpected %d %s", rec.Code, rec.Body.String())
	}
}
