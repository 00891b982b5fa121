package otc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/faults"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/logging"
)

func testRecord() *Record {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &Record{
		Identifier: "919876543210",
		Purpose:    "login",
		Code:       "482913",
		CreatedAt:  created,
		ExpiresAt:  created.Add(10 * time.Minute),
		Attempts:   1,
	}
}

func TestRedisStore_PutGet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, logging.Discard())
	ctx := context.Background()

	rec := testRecord()
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	key := recordPrefix + rec.Key()

	mock.ExpectSet(key, string(data), 15*time.Minute).SetVal("OK")
	require.NoError(t, store.Put(ctx, rec, 15*time.Minute))

	mock.ExpectGet(key).SetVal(string(data))
	got, err := store.Get(ctx, rec.Key())
	require.NoError(t, err)
	assert.Equal(t, rec.Code, got.Code)
	assert.Equal(t, 1, got.Attempts)
	assert.True(t, rec.ExpiresAt.Equal(got.ExpiresAt))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_GetMissing(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, logging.Discard())

	mock.ExpectGet(recordPrefix + "login:1").RedisNil()
	_, err := store.Get(context.Background(), "login:1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_GetUnavailable(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, logging.Discard())

	mock.ExpectGet(recordPrefix + "login:1").SetErr(errors.New("connection refused"))
	_, err := store.Get(context.Background(), "login:1")
	assert.ErrorIs(t, err, faults.ErrTransientStore)
}

func TestRedisStore_MalformedRecordDropped(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, logging.Discard())
	key := recordPrefix + "login:1"

	mock.ExpectGet(key).SetVal("{not json")
	mock.ExpectDel(key).SetVal(1)

	_, err := store.Get(context.Background(), "login:1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_DeleteAndSweep(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, logging.Discard())
	ctx := context.Background()

	mock.ExpectDel(recordPrefix + "login:1").SetVal(1)
	require.NoError(t, store.Delete(ctx, "login:1"))

	n, err := store.DeleteExpired(ctx, time.Now(), time.Second)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewRedisLocker(db, 5*time.Second, logging.Discard())
	locker.token = func() string { return "tok-1" }
	lockKey := lockPrefix + "login:1"

	mock.ExpectSetNX(lockKey, "tok-1", 5*time.Second).SetVal(true)
	unlock, err := locker.Lock(context.Background(), "login:1")
	require.NoError(t, err)

	mock.ExpectEval(releaseScript, []string{lockKey}, "tok-1").SetVal(int64(1))
	unlock()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_RetriesWhileHeld(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewRedisLocker(db, 5*time.Second, logging.Discard())
	locker.token = func() string { return "tok-2" }
	locker.retry = time.Millisecond
	lockKey := lockPrefix + "login:1"

	mock.ExpectSetNX(lockKey, "tok-2", 5*time.Second).SetVal(false)
	mock.ExpectSetNX(lockKey, "tok-2", 5*time.Second).SetVal(true)

	_, err := locker.Lock(context.Background(), "login:1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_Unavailable(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewRedisLocker(db, 5*time.Second, logging.Discard())
	locker.token = func() string { return "tok-3" }

	mock.ExpectSetNX(lockPrefix+"login:1", "tok-3", 5*time.Second).SetErr(errors.New("connection refused"))
	_, err := locker.Lock(context.Background(), "login:1")
	assert.ErrorIs(t, err, faults.ErrTransientStore)
}
