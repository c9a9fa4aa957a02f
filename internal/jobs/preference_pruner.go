// preference_pruner.go implements the PreferencePruner background job, which
// periodically sweeps the redis keyspace for preferred-group hints that name a
// group no longer present in the database (deleted groups) and removes them.
// A stale hint is harmless at read time — active selection falls back to the
// first membership — but pruning keeps the keyspace from growing without bound
// in deployments with high group churn. The job is a no-op when redis is not
// configured, so it is always safe to start regardless of deployment environment.
package jobs

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hearthhub/hearthhub/internal/activectx"
	"github.com/hearthhub/hearthhub/internal/telemetry"
)

// scanBatchSize is the COUNT hint passed to redis SCAN.
const scanBatchSize = 100

// GroupChecker reports whether a group currently exists. Satisfied by
// repositories.GroupRepository.
type GroupChecker interface {
	Exists(ctx context.Context, groupID string) (bool, error)
}

// PreferencePruner periodically removes preferred-group hints for deleted groups.
type PreferencePruner struct {
	rdb      *redis.Client
	groups   GroupChecker
	interval time.Duration
	stopChan chan struct{}
}

// NewPreferencePruner creates a new PreferencePruner.
// intervalHours controls how often the sweep runs (default 24h).
func NewPreferencePruner(rdb *redis.Client, groups GroupChecker, intervalHours int) *PreferencePruner {
	if intervalHours <= 0 {
		intervalHours = 24
	}
	return &PreferencePruner{
		rdb:      rdb,
		groups:   groups,
		interval: time.Duration(intervalHours) * time.Hour,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background pruning loop.
// It runs an initial sweep immediately, then repeats on the configured interval.
// The loop exits when ctx is cancelled or Stop() is called.
func (p *PreferencePruner) Start(ctx context.Context) {
	if p.rdb == nil {
		log.Println("Preference pruner: disabled (redis not configured)")
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Printf("Preference pruner started (sweep interval: %v)", p.interval)

	// Run once immediately on startup
	p.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			p.runSweep(ctx)
		case <-p.stopChan:
			log.Println("Preference pruner stopped")
			return
		case <-ctx.Done():
			log.Println("Preference pruner context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit.
func (p *PreferencePruner) Stop() {
	close(p.stopChan)
}

// runSweep scans all preference keys and deletes those naming deleted groups.
func (p *PreferencePruner) runSweep(ctx context.Context) {
	pattern := activectx.PrefKeyPrefix + "*"

	var cursor uint64
	var scanned, pruned int
	for {
		keys, next, err := p.rdb.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			log.Printf("Preference pruner: scan failed: %v", err)
			return
		}

		for _, key := range keys {
			scanned++
			if p.pruneIfStale(ctx, key) {
				pruned++
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	if pruned > 0 {
		log.Printf("Preference pruner: removed %d stale hint(s) out of %d scanned", pruned, scanned)
	}
}

// pruneIfStale deletes the key when its stored group id no longer exists.
// Returns true when a key was removed.
func (p *PreferencePruner) pruneIfStale(ctx context.Context, key string) bool {
	if !strings.HasPrefix(key, activectx.PrefKeyPrefix) {
		return false
	}

	groupID, err := p.rdb.Get(ctx, key).Result()
	if err != nil {
		// Key may have expired or been deleted between SCAN and GET.
		return false
	}
	if groupID == "" {
		return false
	}

	exists, err := p.groups.Exists(ctx, groupID)
	if err != nil {
		log.Printf("Preference pruner: existence check failed for group %s: %v", groupID, err)
		return false
	}
	if exists {
		return false
	}

	if err := p.rdb.Del(ctx, key).Err(); err != nil {
		log.Printf("Preference pruner: delete failed for %s: %v", key, err)
		return false
	}

	telemetry.PreferencePrunerDeletedTotal.Inc()
	return true
}
