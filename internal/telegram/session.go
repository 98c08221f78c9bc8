package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/jmhodges/clock"
)

// AuthScheme prefixes init data in the Authorization header.
const AuthScheme = "tg"

// Store keeps the current init data string between requests.
// Get returns ErrNoInitData when nothing is stored.
type Store interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, raw string) error
	Delete(ctx context.Context) error
}

// Session owns the cached init data of one Mini-App user and decides whether
// outgoing requests may carry it.
type Session struct {
	store     Store
	clk       clock.Clock
	freshness Freshness
}

func NewSession(store Store, clk clock.Clock, freshness Freshness) *Session {
	if clk == nil {
		clk = clock.New()
	}
	return &Session{store: store, clk: clk, freshness: freshness}
}

// Save stores raw init data handed over by the Telegram client.
func (s *Session) Save(ctx context.Context, raw string) error {
	if raw == "" {
		return ErrNoInitData
	}
	if !s.freshness.Fresh(raw, s.clk.Now()) {
		return ErrStaleInitData
	}
	if err := s.store.Set(ctx, raw); err != nil {
		return fmt.Errorf("save init data: %w", err)
	}
	return nil
}

// InitData returns the stored init data if it is still fresh. Stale data is
// evicted from the store so later reads see nothing instead of re-checking it.
func (s *Session) InitData(ctx context.Context) (string, error) {
	raw, err := s.store.Get(ctx)
	if err != nil {
		return "", err
	}
	if raw == "" {
		return "", ErrNoInitData
	}
	if s.freshness.Fresh(raw, s.clk.Now()) {
		return raw, nil
	}

	if err := s.store.Delete(ctx); err != nil {
		log.Printf("evict stale init data: %v", err)
	} else {
		log.Println("[info] evicted stale init data")
	}
	return "", ErrStaleInitData
}

// User returns the Telegram user from the stored init data.
func (s *Session) User(ctx context.Context) (*User, error) {
	raw, err := s.InitData(ctx)
	if err != nil {
		return nil, err
	}
	data, err := ParseInitData(raw)
	if err != nil {
		return nil, err
	}
	if data.User == nil {
		return nil, errors.New("init data has no user")
	}
	return data.User, nil
}

// AuthHeaders returns the Authorization header for fresh init data, or an
// error explaining why the request has to go out unauthenticated.
func (s *Session) AuthHeaders(ctx context.Context) (http.Header, error) {
	raw, err := s.InitData(ctx)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set("Authorization", AuthScheme+" "+raw)
	return h, nil
}

// Headers is AuthHeaders without the reason: it yields an empty header set
// when there is nothing fresh to send.
func (s *Session) Headers(ctx context.Context) http.Header {
	h, err := s.AuthHeaders(ctx)
	if err != nil {
		return http.Header{}
	}
	return h
}
