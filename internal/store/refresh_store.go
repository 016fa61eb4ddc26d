package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrRefreshInvalid = errors.New("refresh invalid")

// RefreshStore tracks live refresh token ids per user so tokens can be rotated and revoked.
type RefreshStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRefreshStore(rdb *redis.Client, ttl time.Duration) *RefreshStore {
	return &RefreshStore{rdb: rdb, ttl: ttl}
}

func (s *RefreshStore) key(userID int64, jti string) string {
	return "refresh:" + strconv.FormatInt(userID, 10) + ":" + jti
}

func (s *RefreshStore) setKey(userID int64) string {
	return "refresh:set:" + strconv.FormatInt(userID, 10)
}

func (s *RefreshStore) Put(ctx context.Context, userID int64, jti string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.key(userID, jti), "1", s.ttl)
	pipe.SAdd(ctx, s.setKey(userID), jti)
	pipe.Expire(ctx, s.setKey(userID), s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Consume deletes the jti; a second call for the same jti returns ErrRefreshInvalid.
func (s *RefreshStore) Consume(ctx context.Context, userID int64, jti string) error {
	n, err := s.rdb.Del(ctx, s.key(userID, jti)).Result()
	if err != nil {
		return err
	}
	_ = s.rdb.SRem(ctx, s.setKey(userID), jti).Err()
	if n == 0 {
		return ErrRefreshInvalid
	}
	return nil
}

// RevokeAll drops every refresh token of the user (password change, deactivation).
func (s *RefreshStore) RevokeAll(ctx context.Context, userID int64) error {
	jtis, err := s.rdb.SMembers(ctx, s.setKey(userID)).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(jtis)+1)
	for _, j := range jtis {
		keys = append(keys, s.key(userID, j))
	}
	keys = append(keys, s.setKey(userID))
	return s.rdb.Del(ctx, keys...).Err()
}
