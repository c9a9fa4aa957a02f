// prefs.go implements durable persistence for the preferred-group hint. The hint is
// exactly that — a hint: it may name a group the user has since left, and losing it
// degrades UX but never correctness. Both operations are therefore best-effort and
// swallow storage failures after logging them.
package activectx

import (
	"context"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// PrefKeyPrefix is the redis key namespace for preferred-group hints. Keys are
// namespaced per user so shared deployments never leak one user's preference
// into another's selection.
const PrefKeyPrefix = "pref:active_group:"

// PrefKey returns the redis key holding a user's preferred group id.
func PrefKey(userID string) string {
	return PrefKeyPrefix + userID
}

// PreferenceStore persists the single preferred-group hint for one user.
// Implementations never return errors: a failed read behaves as "no preference"
// and a failed write is logged and dropped.
type PreferenceStore interface {
	// Preferred returns the stored group id hint, or ok=false when absent.
	Preferred(ctx context.Context) (groupID string, ok bool)

	// SetPreferred stores the hint. Best-effort.
	SetPreferred(ctx context.Context, groupID string)
}

// RedisPreferenceStore stores the hint in redis with no expiry.
type RedisPreferenceStore struct {
	rdb *redis.Client
	key string
}

// NewRedisPreferenceStore creates a redis-backed preference store for one user.
func NewRedisPreferenceStore(rdb *redis.Client, userID string) *RedisPreferenceStore {
	return &RedisPreferenceStore{rdb: rdb, key: PrefKey(userID)}
}

// Preferred implements PreferenceStore.
func (s *RedisPreferenceStore) Preferred(ctx context.Context) (string, bool) {
	val, err := s.rdb.Get(ctx, s.key).Result()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("preference read failed, treating as absent", "key", s.key, "error", err)
		}
		return "", false
	}
	if val == "" {
		return "", false
	}
	return val, true
}

// SetPreferred implements PreferenceStore.
func (s *RedisPreferenceStore) SetPreferred(ctx context.Context, groupID string) {
	if err := s.rdb.Set(ctx, s.key, groupID, 0).Err(); err != nil {
		slog.Warn("preference write failed, dropping", "key", s.key, "error", err)
	}
}

// MemoryPreferenceStore is an in-process PreferenceStore for tests and for
// deployments without redis. Safe for concurrent use.
type MemoryPreferenceStore struct {
	mu      sync.RWMutex
	groupID string
	set     bool
}

// NewMemoryPreferenceStore creates an empty in-memory preference store.
func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{}
}

// Preferred implements PreferenceStore.
func (s *MemoryPreferenceStore) Preferred(_ context.Context) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groupID, s.set
}

// SetPreferred implements PreferenceStore.
func (s *MemoryPreferenceStore) SetPreferred(_ context.Context, groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupID = groupID
	s.set = true
}
