package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	*MemoryStore
	deletes   int
	deleteErr error
}

func (c *countingStore) Delete(ctx context.Context) error {
	c.deletes++
	if c.deleteErr != nil {
		return c.deleteErr
	}
	return c.MemoryStore.Delete(ctx)
}

func newTestSession(t *testing.T) (*Session, *countingStore, clock.FakeClock) {
	t.Helper()
	clk := clock.NewFake()
	clk.Set(time.Unix(1_760_000_000, 0))
	store := &countingStore{MemoryStore: NewMemoryStore("")}
	return NewSession(store, clk, DefaultFreshness), store, clk
}

func TestSession_AuthHeaders(t *testing.T) {
	ctx := context.Background()
	s, _, clk := newTestSession(t)
	raw := rawWithAuthDate(clk.Now().Unix())

	require.NoError(t, s.Save(ctx, raw))

	h, err := s.AuthHeaders(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tg "+raw, h.Get("Authorization"))
	assert.Equal(t, "tg "+raw, s.Headers(ctx).Get("Authorization"))
}

func TestSession_NoInitData(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSession(t)

	_, err := s.AuthHeaders(ctx)
	assert.ErrorIs(t, err, ErrNoInitData)
	assert.Empty(t, s.Headers(ctx))
}

func TestSession_EvictsStale(t *testing.T) {
	ctx := context.Background()
	s, store, clk := newTestSession(t)
	require.NoError(t, s.Save(ctx, rawWithAuthDate(clk.Now().Unix())))

	clk.Add(24*time.Hour + 2*time.Second)

	_, err := s.AuthHeaders(ctx)
	assert.ErrorIs(t, err, ErrStaleInitData)
	assert.Equal(t, 1, store.deletes)

	// evicted, so the next read finds nothing and does not delete again
	_, err = s.InitData(ctx)
	assert.ErrorIs(t, err, ErrNoInitData)
	assert.Equal(t, 1, store.deletes)
	assert.Empty(t, s.Headers(ctx))
}

func TestSession_EvictFailureStillStale(t *testing.T) {
	ctx := context.Background()
	s, store, clk := newTestSession(t)
	require.NoError(t, store.Set(ctx, rawWithAuthDate(clk.Now().Unix()-90000)))
	store.deleteErr = errors.New("storage unavailable")

	_, err := s.InitData(ctx)
	assert.ErrorIs(t, err, ErrStaleInitData)
}

func TestSession_SaveRejectsStale(t *testing.T) {
	ctx := context.Background()
	s, _, clk := newTestSession(t)

	assert.ErrorIs(t, s.Save(ctx, rawWithAuthDate(clk.Now().Unix()+120)), ErrStaleInitData)
	assert.ErrorIs(t, s.Save(ctx, ""), ErrNoInitData)
}

func TestSession_User(t *testing.T) {
	ctx := context.Background()
	s, _, clk := newTestSession(t)
	require.NoError(t, s.Save(ctx, rawWithAuthDate(clk.Now().Unix())))

	u, err := s.User(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), u.ID)
}
