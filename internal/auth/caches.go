package auth

import (
	"time"

	"github.com/authcore-io/authcore/internal/cache"
)

// Default cache sizing. These bound memory on a per-instance basis; a cold
// instance simply refills from the collaborators.
const (
	DefaultUserCacheCapacity     = 1000
	DefaultDecisionCacheCapacity = 1000
	DefaultHashCacheCapacity     = 1000
	DefaultOrgUsersCacheCapacity = 100

	DefaultUserCacheTTL     = 30 * time.Minute
	DefaultDecisionCacheTTL = 30 * time.Minute
	DefaultHashCacheTTL     = time.Hour
	DefaultOrgUsersCacheTTL = 30 * time.Minute
)

// CacheSizing carries capacity and TTL per cache so deployments can tune
// them without touching code.
type CacheSizing struct {
	UserCapacity     int
	DecisionCapacity int
	HashCapacity     int
	OrgUsersCapacity int

	UserTTL     time.Duration
	DecisionTTL time.Duration
	HashTTL     time.Duration
	OrgUsersTTL time.Duration
}

// DefaultCacheSizing returns the sizing used when nothing overrides it.
func DefaultCacheSizing() CacheSizing {
	return CacheSizing{
		UserCapacity:     DefaultUserCacheCapacity,
		DecisionCapacity: DefaultDecisionCacheCapacity,
		HashCapacity:     DefaultHashCacheCapacity,
		OrgUsersCapacity: DefaultOrgUsersCacheCapacity,
		UserTTL:          DefaultUserCacheTTL,
		DecisionTTL:      DefaultDecisionCacheTTL,
		HashTTL:          DefaultHashCacheTTL,
		OrgUsersTTL:      DefaultOrgUsersCacheTTL,
	}
}

// Caches groups the per-instance caches the authorizer consults before
// reaching out to its collaborators.
type Caches struct {
	Users     *cache.Cache[User]
	Decisions *cache.Cache[bool]
	Hashes    *cache.Cache[string]
	OrgUsers  *cache.Cache[[]User]
}

// NewCaches builds the cache set from sizing. Zero or negative values fall
// back to the defaults.
func NewCaches(s CacheSizing) *Caches {
	d := DefaultCacheSizing()
	if s.UserCapacity <= 0 {
		s.UserCapacity = d.UserCapacity
	}
	if s.DecisionCapacity <= 0 {
		s.DecisionCapacity = d.DecisionCapacity
	}
	if s.HashCapacity <= 0 {
		s.HashCapacity = d.HashCapacity
	}
	if s.OrgUsersCapacity <= 0 {
		s.OrgUsersCapacity = d.OrgUsersCapacity
	}
	if s.UserTTL <= 0 {
		s.UserTTL = d.UserTTL
	}
	if s.DecisionTTL <= 0 {
		s.DecisionTTL = d.DecisionTTL
	}
	if s.HashTTL <= 0 {
		s.HashTTL = d.HashTTL
	}
	if s.OrgUsersTTL <= 0 {
		s.OrgUsersTTL = d.OrgUsersTTL
	}
	return &Caches{
		Users:     cache.New[User](s.UserCapacity, s.UserTTL),
		Decisions: cache.New[bool](s.DecisionCapacity, s.DecisionTTL),
		Hashes:    cache.New[string](s.HashCapacity, s.HashTTL),
		OrgUsers:  cache.New[[]User](s.OrgUsersCapacity, s.OrgUsersTTL),
	}
}

// InvalidateAll empties every cache. Used after mutations that change
// directory state in ways the keys cannot target precisely.
func (c *Caches) InvalidateAll() {
	c.Users.InvalidateAll()
	c.Decisions.InvalidateAll()
	c.Hashes.InvalidateAll()
	c.OrgUsers.InvalidateAll()
}
