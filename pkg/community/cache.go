package community

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/campfirehq/campfire/pkg/observability"
)

// CachedStore wraps a Store with a two-tier read-through cache: an in-process
// LRU for slow-changing rows (communities, content refs) and Redis for
// everything. Memberships and subscriptions get short TTLs and never enter
// the LRU tier because role and payment changes must surface quickly.
// Negative (not-found) results are not cached.
type CachedStore struct {
	store   Store
	redis   *redis.Client
	l1      *lru.Cache[string, l1Entry]
	ttl     map[string]time.Duration
	metrics *observability.Metrics

	now func() time.Time
}

// l1Entry stamps cached bytes with their save time so the L1 tier honors
// the same TTL as Redis instead of serving until LRU eviction.
type l1Entry struct {
	data    []byte
	savedAt time.Time
}

// NewCachedStore creates a cache layer over the given store.
func NewCachedStore(store Store, redisAddr, password string, db, l1Size int) (*CachedStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if l1Size <= 0 {
		l1Size = 1024
	}
	l1, err := lru.New[string, l1Entry](l1Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}

	return &CachedStore{
		store: store,
		redis: client,
		l1:    l1,
		ttl: map[string]time.Duration{
			"community":    5 * time.Minute,
			"membership":   30 * time.Second,
			"subscription": 30 * time.Second,
			"content":      5 * time.Minute,
		},
		now: time.Now,
	}, nil
}

// SetMetrics enables cache hit/miss recording. Safe to leave unset.
func (c *CachedStore) SetMetrics(metrics *observability.Metrics) {
	c.metrics = metrics
}

// Close closes the Redis connection.
func (c *CachedStore) Close() error {
	return c.redis.Close()
}

// Redis exposes the underlying client for health checks.
func (c *CachedStore) Redis() *redis.Client {
	return c.redis
}

func (c *CachedStore) recordHit(tier, entity string) {
	if c.metrics != nil {
		c.metrics.RecordCacheHit(tier, entity)
	}
}

func (c *CachedStore) recordMiss(tier, entity string) {
	if c.metrics != nil {
		c.metrics.RecordCacheMiss(tier, entity)
	}
}

// l1Get returns L1 bytes for the key unless the entry outlived the TTL for
// its cache type, in which case it is dropped and treated as a miss.
func (c *CachedStore) l1Get(key, cacheType string) ([]byte, bool) {
	entry, ok := c.l1.Get(key)
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.savedAt) >= c.ttl[cacheType] {
		c.l1.Remove(key)
		return nil, false
	}
	return entry.data, true
}

func (c *CachedStore) l1Add(key string, data []byte) {
	c.l1.Add(key, l1Entry{data: data, savedAt: c.now()})
}

// GetCommunity gets a community with caching.
func (c *CachedStore) GetCommunity(ctx context.Context, id int64) (*Community, error) {
	key := fmt.Sprintf("community:%d", id)

	if data, ok := c.l1Get(key, "community"); ok {
		var comm Community
		if err := json.Unmarshal(data, &comm); err == nil {
			c.recordHit("l1", "community")
			return &comm, nil
		}
	}
	c.recordMiss("l1", "community")

	if cached, err := c.redis.Get(ctx, key).Result(); err == nil {
		var comm Community
		if err := json.Unmarshal([]byte(cached), &comm); err == nil {
			c.recordHit("redis", "community")
			c.l1Add(key, []byte(cached))
			return &comm, nil
		}
	}
	c.recordMiss("redis", "community")

	comm, err := c.store.GetCommunity(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(comm); err == nil {
		c.l1Add(key, data)
		c.redis.Set(ctx, key, data, c.ttl["community"])
	}

	return comm, nil
}

// GetMembership gets a membership with short-TTL Redis caching.
func (c *CachedStore) GetMembership(ctx context.Context, communityID, userID int64) (*Membership, error) {
	key := fmt.Sprintf("membership:%d:%d", communityID, userID)

	if cached, err := c.redis.Get(ctx, key).Result(); err == nil {
		var m Membership
		if err := json.Unmarshal([]byte(cached), &m); err == nil {
			c.recordHit("redis", "membership")
			return &m, nil
		}
	}
	c.recordMiss("redis", "membership")

	m, err := c.store.GetMembership(ctx, communityID, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(m); err == nil {
		c.redis.Set(ctx, key, data, c.ttl["membership"])
	}

	return m, nil
}

// GetActiveSubscription gets a subscription with short-TTL Redis caching.
func (c *CachedStore) GetActiveSubscription(ctx context.Context, communityID, userID int64) (*Subscription, error) {
	key := fmt.Sprintf("subscription:%d:%d", communityID, userID)

	if cached, err := c.redis.Get(ctx, key).Result(); err == nil {
		var sub Subscription
		if err := json.Unmarshal([]byte(cached), &sub); err == nil {
			c.recordHit("redis", "subscription")
			return &sub, nil
		}
	}
	c.recordMiss("redis", "subscription")

	sub, err := c.store.GetActiveSubscription(ctx, communityID, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(sub); err == nil {
		c.redis.Set(ctx, key, data, c.ttl["subscription"])
	}

	return sub, nil
}

// GetLessonRef gets a lesson projection with caching.
func (c *CachedStore) GetLessonRef(ctx context.Context, id int64) (*ContentRef, error) {
	return c.getContentRef(ctx, fmt.Sprintf("content:lesson:%d", id), func() (*ContentRef, error) {
		return c.store.GetLessonRef(ctx, id)
	})
}

// GetPostRef gets a post projection with caching.
func (c *CachedStore) GetPostRef(ctx context.Context, id int64) (*ContentRef, error) {
	return c.getContentRef(ctx, fmt.Sprintf("content:post:%d", id), func() (*ContentRef, error) {
		return c.store.GetPostRef(ctx, id)
	})
}

// GetCommentRef gets a comment projection with caching.
func (c *CachedStore) GetCommentRef(ctx context.Context, id int64) (*ContentRef, error) {
	return c.getContentRef(ctx, fmt.Sprintf("content:comment:%d", id), func() (*ContentRef, error) {
		return c.store.GetCommentRef(ctx, id)
	})
}

func (c *CachedStore) getContentRef(ctx context.Context, key string, fetch func() (*ContentRef, error)) (*ContentRef, error) {
	if data, ok := c.l1Get(key, "content"); ok {
		var ref ContentRef
		if err := json.Unmarshal(data, &ref); err == nil {
			c.recordHit("l1", "content")
			return &ref, nil
		}
	}
	c.recordMiss("l1", "content")

	if cached, err := c.redis.Get(ctx, key).Result(); err == nil {
		var ref ContentRef
		if err := json.Unmarshal([]byte(cached), &ref); err == nil {
			c.recordHit("redis", "content")
			c.l1Add(key, []byte(cached))
			return &ref, nil
		}
	}
	c.recordMiss("redis", "content")

	ref, err := fetch()
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(ref); err == nil {
		c.l1Add(key, data)
		c.redis.Set(ctx, key, data, c.ttl["content"])
	}

	return ref, nil
}

// InvalidateCommunity removes a community from both cache tiers.
func (c *CachedStore) InvalidateCommunity(ctx context.Context, id int64) error {
	key := fmt.Sprintf("community:%d", id)
	c.l1.Remove(key)
	return c.redis.Del(ctx, key).Err()
}

// InvalidateMembership removes a membership from the Redis tier. Called by
// the services that mutate membership rows so role changes take effect
// before the TTL expires.
func (c *CachedStore) InvalidateMembership(ctx context.Context, communityID, userID int64) error {
	return c.redis.Del(ctx, fmt.Sprintf("membership:%d:%d", communityID, userID)).Err()
}

// InvalidateSubscription removes a subscription from the Redis tier.
func (c *CachedStore) InvalidateSubscription(ctx context.Context, communityID, userID int64) error {
	return c.redis.Del(ctx, fmt.Sprintf("subscription:%d:%d", communityID, userID)).Err()
}

// InvalidateAll clears all cached data.
func (c *CachedStore) InvalidateAll(ctx context.Context) error {
	c.l1.Purge()
	return c.redis.FlushDB(ctx).Err()
}

// SetTTL updates the TTL for a cache type.
func (c *CachedStore) SetTTL(cacheType string, ttl time.Duration) {
	c.ttl[cacheType] = ttl
}
