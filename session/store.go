package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps Redis transport failures. Callers must never map
// it to an authentication failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Store is a Redis-backed session store. Rows are JSON blobs keyed by session
// ID, with a per-user set index for listing and bulk revocation.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the Redis key namespace.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// Create persists a new session row and its user-index entry in one
// MULTI/EXEC transaction. The row TTL is the time remaining until ExpiresAt,
// so Redis reclaims the key once the refresh window closes.
func (s *Store) Create(ctx context.Context, sess *Session) error {
	if sess == nil || sess.SessionID == "" || sess.UserID == "" {
		return errors.New("session requires session id and user id")
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session already expired")
	}

	data, err := Encode(sess)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.SessionID), data, ttl)
		pipe.SAdd(ctx, s.userKey(sess.UserID), sess.SessionID)
		pipe.Expire(ctx, s.userKey(sess.UserID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// FindActive retrieves a session that is present, active, and inside its
// expiry window. Missing, deactivated, and expired sessions all return
// redis.Nil; an expired row is deleted on the way out (lazy expiry).
func (s *Store) FindActive(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}

	if sess.Expired(time.Now()) {
		if err := s.deleteSessionAndIndex(ctx, sess.UserID, sessionID); err != nil {
			return nil, err
		}
		return nil, redis.Nil
	}

	if !sess.Active {
		return nil, redis.Nil
	}

	return sess, nil
}

// ListActive returns the user's active sessions, most recently used first.
// Index entries whose rows have disappeared or expired are pruned in passing.
func (s *Store) ListActive(ctx context.Context, userID string) ([]*Session, error) {
	sessionIDs, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Session{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(sessionIDs) == 0 {
		return []*Session{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(sessionIDs))
	for i, sid := range sessionIDs {
		cmds[i] = pipe.Get(ctx, s.key(sid))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	now := time.Now()
	sessions := make([]*Session, 0, len(sessionIDs))
	var stale []interface{}

	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				stale = append(stale, sessionIDs[i])
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}

		sess, decErr := Decode(data)
		if decErr != nil {
			return nil, decErr
		}
		if sess.Expired(now) || !sess.Active {
			stale = append(stale, sessionIDs[i])
			continue
		}

		sessions = append(sessions, sess)
	}

	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, s.userKey(userID), stale...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastUsedAt.After(sessions[j].LastUsedAt)
	})

	return sessions, nil
}

// Deactivate soft-revokes a session. Returns true only when this call flipped
// an active row; a second call, or a call on a missing or expired session,
// returns false with no error (idempotent).
func (s *Store) Deactivate(ctx context.Context, sessionID string) (bool, error) {
	key := s.key(sessionID)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return false, err
	}
	if !sess.Active || sess.Expired(time.Now()) {
		return false, nil
	}

	sess.Active = false
	return true, s.writeBackAndUnindex(ctx, key, sess)
}

// DeactivateAll soft-revokes every active session of a user and returns the
// number of rows flipped. A second call returns zero.
func (s *Store) DeactivateAll(ctx context.Context, userID string) (int, error) {
	userKey := s.userKey(userID)

	sessionIDs, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(sessionIDs) == 0 {
		return 0, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(sessionIDs))
	for i, sid := range sessionIDs {
		cmds[i] = pipe.Get(ctx, s.key(sid))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	now := time.Now()
	var flipped int

	_, err = s.redis.TxPipelined(ctx, func(tx redis.Pipeliner) error {
		for i, cmd := range cmds {
			data, cmdErr := cmd.Bytes()
			if cmdErr != nil {
				continue
			}
			sess, decErr := Decode(data)
			if decErr != nil || !sess.Active || sess.Expired(now) {
				continue
			}

			sess.Active = false
			encoded, encErr := Encode(sess)
			if encErr != nil {
				return encErr
			}
			tx.Set(ctx, s.key(sessionIDs[i]), encoded, redis.KeepTTL)
			flipped++
		}
		tx.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return flipped, nil
}

// Touch updates LastUsedAt (and the IP when provided) without touching token
// hashes. Missing rows return redis.Nil.
func (s *Store) Touch(ctx context.Context, sessionID string, now time.Time, ip string) error {
	key := s.key(sessionID)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return err
	}

	sess.LastUsedAt = now
	if ip != "" {
		sess.IPAddress = ip
	}

	return s.writeBack(ctx, key, sess)
}

// RotateTokenHashes overwrites both token digests after a refresh, updating
// LastUsedAt and the IP alongside. This is a plain read-modify-write:
// concurrent rotations of the same session race last-writer-wins, and the
// loser's freshly minted tokens die on their next store lookup.
func (s *Store) RotateTokenHashes(ctx context.Context, sessionID, accessHash, refreshHash string, now time.Time, ip string) error {
	key := s.key(sessionID)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return err
	}
	if !sess.Active || sess.Expired(now) {
		return redis.Nil
	}

	sess.TokenHash = accessHash
	sess.RefreshTokenHash = refreshHash
	sess.LastUsedAt = now
	if ip != "" {
		sess.IPAddress = ip
	}

	return s.writeBack(ctx, key, sess)
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) writeBack(ctx context.Context, key string, sess *Session) error {
	encoded, err := Encode(sess)
	if err != nil {
		return err
	}

	// KeepTTL preserves the refresh-window expiry set at creation.
	if err := s.redis.Set(ctx, key, encoded, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Store) writeBackAndUnindex(ctx context.Context, key string, sess *Session) error {
	encoded, err := Encode(sess)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, encoded, redis.KeepTTL)
		pipe.SRem(ctx, s.userKey(sess.UserID), sess.SessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Store) deleteSessionAndIndex(ctx context.Context, userID, sessionID string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(sessionID))
		pipe.SRem(ctx, s.userKey(userID), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
