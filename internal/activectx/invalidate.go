// invalidate.go implements targeted cache invalidation for context switches. When the
// active group changes, only caches keyed by the PREVIOUS group id are dropped — never
// a global sweep. Invalidation is best-effort: failures are logged and must never
// block or fail the switch that triggered them.
package activectx

import (
	"context"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Invalidator drops cached data associated with one group.
type Invalidator interface {
	// Name identifies the invalidator in logs.
	Name() string

	// InvalidateGroup removes all cached entries keyed by groupID.
	InvalidateGroup(ctx context.Context, groupID string) error
}

// InvalidatorRegistry fans an invalidation out to every registered Invalidator.
// Dependent consumers register the caches they own; the context manager calls
// InvalidateGroup with the previous active group id on each distinct switch.
type InvalidatorRegistry struct {
	mu           sync.RWMutex
	invalidators []Invalidator
}

// NewInvalidatorRegistry creates an empty registry.
func NewInvalidatorRegistry() *InvalidatorRegistry {
	return &InvalidatorRegistry{}
}

// Register adds an invalidator. Safe to call concurrently with InvalidateGroup.
func (r *InvalidatorRegistry) Register(inv Invalidator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidators = append(r.invalidators, inv)
}

// InvalidateGroup invokes every registered invalidator for groupID. Errors are
// logged and swallowed; one failing invalidator never stops the others.
func (r *InvalidatorRegistry) InvalidateGroup(ctx context.Context, groupID string) {
	r.mu.RLock()
	invalidators := make([]Invalidator, len(r.invalidators))
	copy(invalidators, r.invalidators)
	r.mu.RUnlock()

	for _, inv := range invalidators {
		if err := inv.InvalidateGroup(ctx, groupID); err != nil {
			slog.Warn("cache invalidation failed",
				"invalidator", inv.Name(), "group_id", groupID, "error", err)
		}
	}
}

// CacheKeyPrefix is the redis key namespace for group-scoped response caches.
// Entries are keyed "cache:<group_id>:<resource>" so one group's cache can be
// dropped without touching any other group's.
const CacheKeyPrefix = "cache:"

// RedisInvalidator drops redis cache entries under cache:<group_id>:*.
type RedisInvalidator struct {
	rdb *redis.Client
}

// NewRedisInvalidator creates a redis-backed invalidator.
func NewRedisInvalidator(rdb *redis.Client) *RedisInvalidator {
	return &RedisInvalidator{rdb: rdb}
}

// Name implements Invalidator.
func (r *RedisInvalidator) Name() string { return "redis" }

// InvalidateGroup implements Invalidator by scanning for the group's key prefix
// and deleting matches in batches. SCAN is used instead of KEYS so invalidation
// never blocks the redis server on large keyspaces.
func (r *RedisInvalidator) InvalidateGroup(ctx context.Context, groupID string) error {
	pattern := CacheKeyPrefix + groupID + ":*"

	var cursor uint64
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return err
		}

		if len(keys) > 0 {
			if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
