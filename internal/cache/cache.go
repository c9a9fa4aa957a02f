// Package cache provides an in-process LRU cache for group-scoped query results.
// Entries are keyed by group id so a context switch can drop one group's entries
// without disturbing any other group's. The cache implements activectx.Invalidator
// and is registered with the context manager's invalidation registry at startup.
package cache

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is the entry capacity used when no size is configured.
const DefaultSize = 1024

// GroupCache is a fixed-capacity LRU keyed by "<group_id>:<resource>".
type GroupCache struct {
	lru *lru.Cache[string, any]
}

// New creates a GroupCache holding at most size entries. Sizes below 1 fall
// back to DefaultSize.
func New(size int) (*GroupCache, error) {
	if size < 1 {
		size = DefaultSize
	}
	c, err := lru.New[string, any](size)
	if err != nil {
		return nil, err
	}
	return &GroupCache{lru: c}, nil
}

// Key builds the cache key for a resource within a group.
func Key(groupID, resource string) string {
	return groupID + ":" + resource
}

// Get returns the cached value for a group's resource.
func (c *GroupCache) Get(groupID, resource string) (any, bool) {
	return c.lru.Get(Key(groupID, resource))
}

// Set stores a value for a group's resource, evicting the least recently used
// entry when full.
func (c *GroupCache) Set(groupID, resource string, value any) {
	c.lru.Add(Key(groupID, resource), value)
}

// Len returns the number of cached entries.
func (c *GroupCache) Len() int {
	return c.lru.Len()
}

// Name implements activectx.Invalidator.
func (c *GroupCache) Name() string { return "lru" }

// InvalidateGroup implements activectx.Invalidator by removing every entry
// under the group's key prefix. The keyspace is small and in-process, so a
// linear sweep over the keys is fine.
func (c *GroupCache) InvalidateGroup(_ context.Context, groupID string) error {
	prefix := groupID + ":"
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lru.Remove(key)
		}
	}
	return nil
}
