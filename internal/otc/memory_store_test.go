package otc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore().WithNow(clock.Now)
	ctx := context.Background()

	verifiedAt := clock.Now()
	rec := &Record{Identifier: "a@b.com", Purpose: "login", Code: "1234", VerifiedAt: &verifiedAt, ExpiresAt: clock.Now().Add(time.Minute)}
	require.NoError(t, store.Put(ctx, rec, time.Minute))

	got, err := store.Get(ctx, rec.Key())
	require.NoError(t, err)
	got.Attempts = 99
	*got.VerifiedAt = got.VerifiedAt.Add(time.Hour)

	again, err := store.Get(ctx, rec.Key())
	require.NoError(t, err)
	assert.Equal(t, 0, again.Attempts)
	assert.Equal(t, verifiedAt, *again.VerifiedAt)
}

func TestMemoryStore_TTLPurge(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore().WithNow(clock.Now)
	ctx := context.Background()

	rec := &Record{Identifier: "a@b.com", Purpose: "login", ExpiresAt: clock.Now().Add(time.Hour)}
	require.NoError(t, store.Put(ctx, rec, 10*time.Second))

	clock.Advance(9 * time.Second)
	_, err := store.Get(ctx, rec.Key())
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = store.Get(ctx, rec.Key())
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := store.DeleteExpired(ctx, clock.Now(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryStore_ZeroTTLNeverPurges(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore().WithNow(clock.Now)
	ctx := context.Background()

	rec := &Record{Identifier: "a@b.com", Purpose: "login", ExpiresAt: clock.Now().Add(time.Hour)}
	require.NoError(t, store.Put(ctx, rec, 0))

	clock.Advance(30 * time.Minute)
	_, err := store.Get(ctx, rec.Key())
	assert.NoError(t, err)
}

func TestRecord_Sweepable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	verified := now.Add(-10 * time.Second)

	assert.True(t, (&Record{ExpiresAt: now.Add(-time.Second)}).Sweepable(now, 5*time.Second))
	assert.False(t, (&Record{ExpiresAt: now.Add(time.Minute)}).Sweepable(now, 5*time.Second))
	assert.True(t, (&Record{ExpiresAt: now.Add(time.Minute), Verified: true, VerifiedAt: &verified}).Sweepable(now, 5*time.Second))
	assert.False(t, (&Record{ExpiresAt: now.Add(time.Minute), Verified: true, VerifiedAt: &verified}).Sweepable(now, time.Minute))
}
