package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrOTPCooldown    = errors.New("otp cooldown")
	ErrOTPExpired     = errors.New("otp expired")
	ErrOTPInvalid     = errors.New("otp invalid")
	ErrOTPMaxAttempts = errors.New("otp max attempts exceeded")
)

// OTP purposes; each one has its own key space.
const (
	PurposeLogin2FA      = "2fa"
	PurposePasswordReset = "reset"
)

// OTPStore keeps a hashed one-time code per (purpose, subject) with TTL,
// resend cooldown and an attempt limit.
type OTPStore struct {
	rdb *redis.Client
	// secret only salts the stored hash.
	secret string

	ttl         time.Duration
	cooldown    time.Duration
	maxAttempts int
}

func NewOTPStore(rdb *redis.Client, secret string, ttl, cooldown time.Duration, maxAttempts int) *OTPStore {
	return &OTPStore{rdb: rdb, secret: secret, ttl: ttl, cooldown: cooldown, maxAttempts: maxAttempts}
}

// Both keys share a hash tag so the verify script stays on one cluster slot.
func (s *OTPStore) key(purpose, subject string) string {
	return "otp:{" + purpose + ":" + subject + "}"
}

func (s *OTPStore) cooldownKey(purpose, subject string) string {
	return "otp:cooldown:{" + purpose + ":" + subject + "}"
}

func (s *OTPStore) hash(purpose, subject, code string) string {
	sum := sha256.Sum256([]byte(purpose + ":" + subject + ":" + code + ":" + s.secret))
	return hex.EncodeToString(sum[:])
}

// Save replaces any pending code for (purpose, subject) and starts the resend cooldown.
func (s *OTPStore) Save(ctx context.Context, purpose, subject, code string) error {
	if s.cooldown > 0 {
		ok, err := s.rdb.SetNX(ctx, s.cooldownKey(purpose, subject), "1", s.cooldown).Result()
		if err != nil {
			return err
		}
		if !ok {
			return ErrOTPCooldown
		}
	}
	key := s.key(purpose, subject)
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, "hash", s.hash(purpose, subject, code), "attempts", "0")
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// verifyScript checks and counts an attempt in one step so concurrent
// guesses cannot both pass the attempt limit. HINCRBY keeps the key TTL.
// Returns 1 match, 0 mismatch, -1 missing, -2 attempts exhausted.
var verifyScript = redis.NewScript(`
local h = redis.call('HGET', KEYS[1], 'hash')
if not h then return -1 end
local max = tonumber(ARGV[2])
local attempts = tonumber(redis.call('HGET', KEYS[1], 'attempts') or '0')
if attempts >= max then return -2 end
if h == ARGV[1] then
  redis.call('DEL', KEYS[1], KEYS[2])
  return 1
end
if redis.call('HINCRBY', KEYS[1], 'attempts', 1) >= max then return -2 end
return 0
`)

// Verify checks the code; a match deletes it so it cannot be replayed.
func (s *OTPStore) Verify(ctx context.Context, purpose, subject, code string) error {
	keys := []string{s.key(purpose, subject), s.cooldownKey(purpose, subject)}
	res, err := verifyScript.Run(ctx, s.rdb, keys, s.hash(purpose, subject, code), s.maxAttempts).Int()
	if err != nil {
		return err
	}
	switch res {
	case 1:
		return nil
	case -1:
		return ErrOTPExpired
	case -2:
		return ErrOTPMaxAttempts
	}
	return ErrOTPInvalid
}
