// Package contexts exposes the active-context manager over HTTP: one endpoint to
// read the current snapshot and three mutations (switch, refetch, force refresh).
// Managers are session-scoped, so the package also owns the per-user manager
// registry that the rest of the API uses to reach into a user's context when
// their memberships change underneath them.
package contexts

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hearthhub/hearthhub/internal/activectx"
	"github.com/hearthhub/hearthhub/internal/db/repositories"
	"github.com/hearthhub/hearthhub/internal/telemetry"
)

// registryEntry pairs a manager with a once guard so the initial membership
// load runs exactly one time no matter how many requests race on first access.
type registryEntry struct {
	manager *activectx.Manager
	init    sync.Once
}

// ManagerRegistry lazily creates and caches one active-context manager per
// authenticated user. Managers live until the user logs out (Drop) or the
// process exits; their refresh counters are session-scoped by design.
type ManagerRegistry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry

	memberships   *repositories.MembershipRepository
	rdb           *redis.Client
	invalidations *activectx.InvalidatorRegistry
}

// NewManagerRegistry creates an empty registry. rdb may be nil; preference
// hints then live in per-user in-memory stores and do not survive restarts.
func NewManagerRegistry(memberships *repositories.MembershipRepository, rdb *redis.Client, invalidations *activectx.InvalidatorRegistry) *ManagerRegistry {
	return &ManagerRegistry{
		entries:       make(map[string]*registryEntry),
		memberships:   memberships,
		rdb:           rdb,
		invalidations: invalidations,
	}
}

// ManagerFor returns the user's manager, creating and initializing it on first
// access. The initial membership load happens synchronously so the first
// GET /context of a session already carries a selected active group.
func (r *ManagerRegistry) ManagerFor(ctx context.Context, userID string) *activectx.Manager {
	r.mu.Lock()
	entry, ok := r.entries[userID]
	if !ok {
		entry = &registryEntry{manager: activectx.NewManager(
			activectx.NewSQLStore(r.memberships, userID),
			r.preferenceStore(userID),
			r.invalidations,
		)}
		r.entries[userID] = entry
	}
	r.mu.Unlock()

	entry.init.Do(func() {
		// The once latches whatever the first load produced, so it must not be
		// tied to the lifetime of whichever request happened to arrive first: a
		// caller that disconnects mid-load would otherwise leave the manager
		// stuck in an error state for the rest of the session.
		start := time.Now()
		entry.manager.Refetch(context.WithoutCancel(ctx))
		telemetry.MembershipLoadDuration.Observe(time.Since(start).Seconds())
	})

	return entry.manager
}

// Peek returns the user's manager if one exists, without creating it.
func (r *ManagerRegistry) Peek(userID string) *activectx.Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[userID]; ok {
		return entry.manager
	}
	return nil
}

// Drop signs the user's manager out and removes it from the registry. Called
// on logout; a later request recreates a fresh manager with a zero counter.
func (r *ManagerRegistry) Drop(userID string) {
	r.mu.Lock()
	entry, ok := r.entries[userID]
	if ok {
		delete(r.entries, userID)
	}
	r.mu.Unlock()

	if ok {
		entry.manager.SignOut()
	}
}

// RefetchUser re-runs active selection for a user whose memberships were just
// mutated by someone else (role change, removal). A user with no live manager
// needs nothing: their next session initializes from the database anyway.
func (r *ManagerRegistry) RefetchUser(ctx context.Context, userID string) {
	if mgr := r.Peek(userID); mgr != nil {
		before := mgr.Snapshot().RefreshCounter
		mgr.Refetch(ctx)
		if mgr.Snapshot().RefreshCounter != before {
			telemetry.RefreshPropagationsTotal.Inc()
		}
	}
}

// preferenceStore picks the durable redis store when redis is configured and
// falls back to a per-user in-memory store otherwise.
func (r *ManagerRegistry) preferenceStore(userID string) activectx.PreferenceStore {
	if r.rdb != nil {
		return activectx.NewRedisPreferenceStore(r.rdb, userID)
	}
	return activectx.NewMemoryPreferenceStore()
}
