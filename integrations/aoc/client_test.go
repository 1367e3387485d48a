package aoc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaderbot/core"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithBaseURL(srv.URL), WithRateLimit(0, 0)}, opts...)
	return New(opts...)
}

func fixture(t *testing.T) []byte {
	t.Helper()
	b, err := os.ReadFile("../../core/testdata/leaderboard.json")
	require.NoError(t, err)
	return b
}

func TestFetch_ViewKey(t *testing.T) {
	body := fixture(t)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2024/leaderboard/private/view/12345.json", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("view_key"))
		assert.Empty(t, r.Header.Get("Cookie"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	})

	lb, err := c.Fetch(context.Background(), 2024, 12345, core.ViewKey("secret"))
	require.NoError(t, err)
	assert.Equal(t, 2024, lb.Year)
	assert.Len(t, lb.Members, 3)
}

func TestFetch_SessionCookie(t *testing.T) {
	body := fixture(t)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session")
		require.NoError(t, err)
		assert.Equal(t, "abc123", cookie.Value)
		assert.Empty(t, r.URL.RawQuery)
		_, _ = w.Write(body)
	}, WithUserAgent("custom/1.0"))

	_, err := c.Fetch(context.Background(), 2024, 12345, core.SessionCookie("abc123"))
	require.NoError(t, err)
}

func TestFetch_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   core.FetchErrorKind
	}{
		{"bad request means no access", http.StatusBadRequest, "", core.FetchAuthExpired},
		{"unauthorized", http.StatusUnauthorized, "", core.FetchAuthExpired},
		{"forbidden", http.StatusForbidden, "", core.FetchAuthExpired},
		{"redirect to login", http.StatusFound, "", core.FetchAuthExpired},
		{"not found", http.StatusNotFound, "", core.FetchNotFound},
		{"throttled", http.StatusTooManyRequests, "", core.FetchTransient},
		{"server error", http.StatusBadGateway, "", core.FetchTransient},
		{"html instead of json", http.StatusOK, "<html>login</html>", core.FetchMalformed},
		{"wrong event", http.StatusOK, `{"event":"2019","owner_id":1,"members":{}}`, core.FetchMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.status == http.StatusFound {
					w.Header().Set("Location", "/2024/leaderboard")
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Fetch(context.Background(), 2024, 1, core.ViewKey("k"))
			var fe *core.FetchError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, tt.kind, fe.Kind)
			assert.Equal(t, tt.status, fe.StatusCode)
			if tt.kind == core.FetchAuthExpired {
				assert.ErrorIs(t, err, core.ErrNoAccess)
			}
		})
	}
}

func TestFetch_NetworkError(t *testing.T) {
	c := New(WithBaseURL("http://127.0.0.1:1"), WithRateLimit(0, 0), WithTimeout(time.Second))
	_, err := c.Fetch(context.Background(), 2024, 1, core.ViewKey("k"))
	var fe *core.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, core.FetchTransient, fe.Kind)
}

func TestFetch_RateLimited(t *testing.T) {
	body := fixture(t)
	hits := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write(body)
	}, WithRateLimit(time.Hour, 1))

	_, err := c.Fetch(context.Background(), 2024, 12345, core.ViewKey("k"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Fetch(ctx, 2024, 12345, core.ViewKey("k"))
	require.Error(t, err)
	assert.Equal(t, 1, hits, "second request must not reach the server")
}

func TestFetch_Canceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Fetch(ctx, 2024, 1, core.ViewKey("k"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "timeout", core.ErrorKind(err))
}
