package tgauth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glucodiary/internal/telegram"
)

const botToken = "123456:TEST-token"

func signed(ts int64, user string) string {
	v := url.Values{}
	v.Set("auth_date", strconv.FormatInt(ts, 10))
	if user != "" {
		v.Set("user", user)
	}
	return telegram.Sign(v, botToken)
}

func newVerifier(t *testing.T) (*Verifier, clock.FakeClock) {
	t.Helper()
	clk := clock.NewFake()
	clk.Set(time.Unix(1_760_000_000, 0))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	v, err := New(log, botToken, telegram.DefaultFreshness, clk, 8, nil)
	require.NoError(t, err)
	return v, clk
}

func serve(v *Verifier, header string) (*httptest.ResponseRecorder, *telegram.User) {
	var got *telegram.User
	h := v.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := UserFrom(r.Context()); ok {
			got = &u
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/reminders", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, got
}

func TestHandler_Accepts(t *testing.T) {
	v, clk := newVerifier(t)
	raw := signed(clk.Now().Unix(), `{"id":42,"first_name":"Анна"}`)

	rec, u := serve(v, "tg "+raw)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, u)
	assert.Equal(t, int64(42), u.ID)

	// second request is served from the cache
	rec, u = serve(v, "TG "+raw)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, u)
	assert.Equal(t, 1, v.cache.Len())
}

func TestHandler_Rejects(t *testing.T) {
	v, clk := newVerifier(t)
	now := clk.Now().Unix()
	user := `{"id":42,"first_name":"Анна"}`

	tests := []struct {
		name   string
		header string
		reason string
	}{
		{"no header", "", "missing"},
		{"wrong scheme", "Bearer " + signed(now, user), "missing"},
		{"empty value", "tg ", "missing"},
		{"stale", "tg " + signed(now-86401, user), "stale"},
		{"from the future", "tg " + signed(now+120, user), "stale"},
		{"bad signature", "tg " + url.Values{"auth_date": {strconv.FormatInt(now, 10)}, "hash": {"00"}}.Encode(), "signature"},
		{"no user", "tg " + signed(now, ""), "no_user"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, u := serve(v, tt.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Nil(t, u)
			assert.JSONEq(t, `{"error":"`+tt.reason+`"}`, rec.Body.String())
		})
	}
}

func TestHandler_CachedButExpired(t *testing.T) {
	v, clk := newVerifier(t)
	raw := signed(clk.Now().Unix(), `{"id":7,"first_name":"Иван"}`)

	rec, _ := serve(v, "tg "+raw)
	require.Equal(t, http.StatusNoContent, rec.Code)

	clk.Add(24*time.Hour + time.Second)
	rec, _ = serve(v, "tg "+raw)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, v.cache.Len())
}
