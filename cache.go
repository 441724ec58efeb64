package main

import lru "github.com/hashicorp/golang-lru"

// TargetCache bounds the server's resolved-target cache: get_any_target
// checks the live online_users/groups indices first, then falls back to
// this cache, then to a storage inflate (spec §4.4, §9's LRU design note).
// It is invalidated whenever a creation would change existence — e.g. a
// register or group-enter that brings a previously-absent target into
// being must evict any cached miss for that name.
type TargetCache struct {
	cache *lru.Cache
}

// NewTargetCache returns a cache bounded to size entries.
func NewTargetCache(size int) (*TargetCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &TargetCache{cache: c}, nil
}

// cached is what the cache stores: either a resolved entity or a recorded
// miss, so repeated lookups of a nonexistent target don't keep hitting
// storage.
type cached struct {
	user  *User
	group *Group
	miss  bool
}

// Get returns the cached resolution for name, if present.
func (t *TargetCache) Get(name string) (user *User, group *Group, miss bool, ok bool) {
	v, found := t.cache.Get(canonicalize(name))
	if !found {
		return nil, nil, false, false
	}
	c := v.(cached)
	return c.user, c.group, c.miss, true
}

// PutUser caches a resolved User.
func (t *TargetCache) PutUser(name string, u *User) {
	t.cache.Add(canonicalize(name), cached{user: u})
}

// PutGroup caches a resolved Group.
func (t *TargetCache) PutGroup(name string, g *Group) {
	t.cache.Add(canonicalize(name), cached{group: g})
}

// PutMiss records that name resolved to nothing, so a repeated lookup can
// skip storage until the cache entry is invalidated.
func (t *TargetCache) PutMiss(name string) {
	t.cache.Add(canonicalize(name), cached{miss: true})
}

// Invalidate evicts name — called whenever register/group-enter brings a
// previously-absent target into existence.
func (t *TargetCache) Invalidate(name string) {
	t.cache.Remove(canonicalize(name))
}
