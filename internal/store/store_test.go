package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestOTPStoreVerify(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)
	s := NewOTPStore(rdb, "secret", 10*time.Minute, 0, 3)

	require.NoError(t, s.Save(ctx, PurposeLogin2FA, "7", "123456"))
	assert.ErrorIs(t, s.Verify(ctx, PurposeLogin2FA, "7", "000000"), ErrOTPInvalid)
	assert.ErrorIs(t, s.Verify(ctx, PurposePasswordReset, "7", "123456"), ErrOTPExpired, "purposes do not share codes")
	require.NoError(t, s.Verify(ctx, PurposeLogin2FA, "7", "123456"))
	assert.ErrorIs(t, s.Verify(ctx, PurposeLogin2FA, "7", "123456"), ErrOTPExpired, "a used code cannot be replayed")
}

func TestOTPStoreAttemptsExhausted(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)
	s := NewOTPStore(rdb, "secret", 10*time.Minute, 0, 3)
	require.NoError(t, s.Save(ctx, PurposePasswordReset, "a@b.c", "111111"))

	assert.ErrorIs(t, s.Verify(ctx, PurposePasswordReset, "a@b.c", "1"), ErrOTPInvalid)
	assert.ErrorIs(t, s.Verify(ctx, PurposePasswordReset, "a@b.c", "2"), ErrOTPInvalid)
	assert.ErrorIs(t, s.Verify(ctx, PurposePasswordReset, "a@b.c", "3"), ErrOTPMaxAttempts)
	assert.ErrorIs(t, s.Verify(ctx, PurposePasswordReset, "a@b.c", "111111"), ErrOTPMaxAttempts, "the right code is refused once attempts run out")
}

func TestOTPStoreConcurrentGuessesRespectLimit(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	const maxAttempts = 5
	s := NewOTPStore(rdb, "secret", 10*time.Minute, 0, maxAttempts)
	require.NoError(t, s.Save(ctx, PurposeLogin2FA, "9", "424242"))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		invalid int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Verify(ctx, PurposeLogin2FA, "9", "000000"); errors.Is(err, ErrOTPInvalid) {
				mu.Lock()
				invalid++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, maxAttempts-1, invalid, "only attempts under the limit are judged")
	assert.Equal(t, "5", mr.HGet(s.key(PurposeLogin2FA, "9"), "attempts"))
}

func TestOTPStoreExpiry(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	s := NewOTPStore(rdb, "secret", time.Minute, 0, 3)
	require.NoError(t, s.Save(ctx, PurposeLogin2FA, "7", "123456"))

	assert.ErrorIs(t, s.Verify(ctx, PurposeLogin2FA, "7", "999999"), ErrOTPInvalid)
	assert.Greater(t, mr.TTL(s.key(PurposeLogin2FA, "7")), time.Duration(0), "a wrong guess keeps the expiry")

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, s.Verify(ctx, PurposeLogin2FA, "7", "123456"), ErrOTPExpired)
}

func TestOTPStoreCooldown(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	s := NewOTPStore(rdb, "secret", 10*time.Minute, time.Minute, 3)

	require.NoError(t, s.Save(ctx, PurposePasswordReset, "a@b.c", "111111"))
	assert.ErrorIs(t, s.Save(ctx, PurposePasswordReset, "a@b.c", "222222"), ErrOTPCooldown)

	mr.FastForward(61 * time.Second)
	require.NoError(t, s.Save(ctx, PurposePasswordReset, "a@b.c", "222222"))
	assert.ErrorIs(t, s.Verify(ctx, PurposePasswordReset, "a@b.c", "111111"), ErrOTPInvalid, "a resend replaces the old code")
	require.NoError(t, s.Verify(ctx, PurposePasswordReset, "a@b.c", "222222"))

	// a successful verify clears the cooldown
	require.NoError(t, s.Save(ctx, PurposePasswordReset, "a@b.c", "333333"))
}

func TestRefreshStore(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	s := NewRefreshStore(rdb, time.Hour)

	require.NoError(t, s.Put(ctx, 1, "jti-a"))
	require.NoError(t, s.Put(ctx, 1, "jti-b"))
	require.NoError(t, s.Put(ctx, 2, "jti-c"))

	require.NoError(t, s.Consume(ctx, 1, "jti-a"))
	assert.ErrorIs(t, s.Consume(ctx, 1, "jti-a"), ErrRefreshInvalid)
	assert.ErrorIs(t, s.Consume(ctx, 2, "jti-b"), ErrRefreshInvalid, "tokens are bound to their user")

	require.NoError(t, s.RevokeAll(ctx, 1))
	assert.ErrorIs(t, s.Consume(ctx, 1, "jti-b"), ErrRefreshInvalid)
	require.NoError(t, s.Consume(ctx, 2, "jti-c"))

	require.NoError(t, s.Put(ctx, 3, "jti-d"))
	mr.FastForward(2 * time.Hour)
	assert.ErrorIs(t, s.Consume(ctx, 3, "jti-d"), ErrRefreshInvalid)
}
