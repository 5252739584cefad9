package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists session records between activity events. Implementations
// are last-writer-wins: concurrent activity from multiple devices may clobber
// each other's record, which at worst resolves to a fresh session on the next
// read, never to corrupted state.
type Store interface {
	// Get returns the user's session record, or nil when none exists.
	// A missing or unreadable record is not an error condition for
	// resolution; callers pass nil through to Resolve.
	Get(ctx context.Context, userID string) (*Info, error)

	// Put replaces the user's session record.
	Put(ctx context.Context, userID string, info Info) error
}

// MemoryStore is an in-memory Store for tests and single-process deployments.
// Thread-safe via RWMutex.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Info
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Info)}
}

// Get returns the stored record for a user, or nil when absent.
func (s *MemoryStore) Get(_ context.Context, userID string) (*Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.sessions[userID]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

// Put replaces the stored record for a user.
func (s *MemoryStore) Put(_ context.Context, userID string, info Info) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[userID] = info
	return nil
}

// RedisStore persists session records in Redis with a TTL slightly past the
// session timeout, so expired sessions disappear without explicit cleanup.
type RedisStore struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisStore creates a Redis-backed session store. timeout should match
// the session timeout used for resolution; records live a little longer than
// that so boundary reads still observe the expired record's timestamps.
func NewRedisStore(client *redis.Client, timeout time.Duration) *RedisStore {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RedisStore{client: client, timeout: timeout}
}

func sessionKey(userID string) string {
	return "session:" + userID
}

// Get returns the user's session record. Redis errors and corrupt payloads
// both resolve to a nil record, which the state machine treats as "start a
// new session" rather than failing the request.
func (s *RedisStore) Get(ctx context.Context, userID string) (*Info, error) {
	data, err := s.client.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		slog.Warn("session read failed, treating as new session",
			"user_id", userID,
			"error", err)
		return nil, nil
	}

	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		slog.Warn("corrupt session record, treating as new session",
			"user_id", userID,
			"error", err)
		return nil, nil
	}

	return &info, nil
}

// Put replaces the user's session record, last writer wins.
func (s *RedisStore) Put(ctx context.Context, userID string, info Info) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	ttl := s.timeout * 2
	if err := s.client.Set(ctx, sessionKey(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session record: %w", err)
	}
	return nil
}
