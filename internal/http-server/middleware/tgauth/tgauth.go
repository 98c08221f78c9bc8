package tgauth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jmhodges/clock"

	"glucodiary/internal/metrics"
	"glucodiary/internal/telegram"
)

type ctxKey struct{}

// WithUser returns a copy of ctx carrying the authenticated Telegram user.
func WithUser(ctx context.Context, u telegram.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFrom returns the user stored by the middleware.
func UserFrom(ctx context.Context) (telegram.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(telegram.User)
	return u, ok
}

// Verifier checks "Authorization: tg <initData>" headers. Verified strings are
// cached by their raw value; freshness is checked on every request because it
// depends on the current time.
type Verifier struct {
	botToken  string
	freshness telegram.Freshness
	clk       clock.Clock
	cache     *lru.Cache[string, telegram.User]
	metrics   *metrics.Metrics
	log       *slog.Logger
}

func New(log *slog.Logger, botToken string, freshness telegram.Freshness, clk clock.Clock, cacheSize int, m *metrics.Metrics) (*Verifier, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New[string, telegram.User](cacheSize)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Verifier{
		botToken:  botToken,
		freshness: freshness,
		clk:       clk,
		cache:     cache,
		metrics:   m,
		log:       log,
	}, nil
}

var (
	errNoHeader = errors.New("authorization required")
	errNoUser   = errors.New("init data has no user")
)

// Authenticate returns the user that signed raw.
func (v *Verifier) Authenticate(raw string) (telegram.User, string, error) {
	if !v.freshness.Fresh(raw, v.clk.Now()) {
		v.cache.Remove(raw)
		return telegram.User{}, "stale", telegram.ErrStaleInitData
	}
	if u, ok := v.cache.Get(raw); ok {
		return u, "", nil
	}
	if err := telegram.Verify(raw, v.botToken); err != nil {
		return telegram.User{}, "signature", err
	}
	data, err := telegram.ParseInitData(raw)
	if err != nil {
		return telegram.User{}, "malformed", err
	}
	if data.User == nil || data.User.ID == 0 {
		return telegram.User{}, "no_user", errNoUser
	}
	v.cache.Add(raw, *data.User)
	return *data.User, "", nil
}

// Handler is the chi middleware.
func (v *Verifier) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const op = "tgauth.Handler"

		raw, ok := rawInitData(r.Header.Get("Authorization"))
		if !ok {
			v.reject(w, r, op, "missing", errNoHeader)
			return
		}
		u, reason, err := v.Authenticate(raw)
		if err != nil {
			v.reject(w, r, op, reason, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

func (v *Verifier) reject(w http.ResponseWriter, r *http.Request, op, reason string, err error) {
	v.metrics.AuthFailed(reason)
	v.log.Warn(op+": unauthorized", "reason", reason, "error", err, "path", r.URL.Path)
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, map[string]string{"error": reason})
}

func rawInitData(header string) (string, bool) {
	scheme, raw, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, telegram.AuthScheme) {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}
