package community

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campfirehq/campfire/pkg/observability"
)

// countingStore tracks how often each lookup hits the backing store.
type countingStore struct {
	communities map[int64]*Community
	memberships map[string]*Membership
	calls       map[string]int
}

func newCountingStore() *countingStore {
	return &countingStore{
		communities: make(map[int64]*Community),
		memberships: make(map[string]*Membership),
		calls:       make(map[string]int),
	}
}

func (s *countingStore) GetCommunity(ctx context.Context, id int64) (*Community, error) {
	s.calls["community"]++
	c, ok := s.communities[id]
	if !ok {
		return nil, fmt.Errorf("community %d: %w", id, ErrNotFound)
	}
	return c, nil
}

func (s *countingStore) GetMembership(ctx context.Context, communityID, userID int64) (*Membership, error) {
	s.calls["membership"]++
	m, ok := s.memberships[fmt.Sprintf("%d:%d", communityID, userID)]
	if !ok {
		return nil, fmt.Errorf("membership: %w", ErrNotFound)
	}
	return m, nil
}

func (s *countingStore) GetActiveSubscription(ctx context.Context, communityID, userID int64) (*Subscription, error) {
	s.calls["subscription"]++
	return nil, fmt.Errorf("subscription: %w", ErrNotFound)
}

func (s *countingStore) GetLessonRef(ctx context.Context, id int64) (*ContentRef, error) {
	s.calls["lesson"]++
	return &ContentRef{Type: ContentLesson, ID: id, CommunityID: 1, IsFree: true}, nil
}

func (s *countingStore) GetPostRef(ctx context.Context, id int64) (*ContentRef, error) {
	s.calls["post"]++
	return &ContentRef{Type: ContentPost, ID: id, CommunityID: 1, IsFree: true}, nil
}

func (s *countingStore) GetCommentRef(ctx context.Context, id int64) (*ContentRef, error) {
	s.calls["comment"]++
	return &ContentRef{Type: ContentComment, ID: id, CommunityID: 1, IsFree: true}, nil
}

func setupCache(t *testing.T) (*CachedStore, *countingStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	backing := newCountingStore()
	cached, err := NewCachedStore(backing, mr.Addr(), "", 0, 16)
	require.NoError(t, err)
	t.Cleanup(func() { cached.Close() })

	return cached, backing, mr
}

func TestCachedStoreCommunityReadThrough(t *testing.T) {
	cached, backing, _ := setupCache(t)
	backing.communities[1] = &Community{ID: 1, Name: "gophers", CreatorID: 100, IsPublic: true}

	ctx := context.Background()

	first, err := cached.GetCommunity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "gophers", first.Name)

	second, err := cached.GetCommunity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	assert.Equal(t, 1, backing.calls["community"], "second read served from cache")
}

func TestCachedStoreCommunityL1AfterRedisFlush(t *testing.T) {
	cached, backing, mr := setupCache(t)
	backing.communities[1] = &Community{ID: 1, Name: "gophers", CreatorID: 100}

	ctx := context.Background()
	_, err := cached.GetCommunity(ctx, 1)
	require.NoError(t, err)

	mr.FlushAll()

	// Within the TTL the L1 tier still serves the row.
	_, err = cached.GetCommunity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, backing.calls["community"], "fresh L1 entry survives a Redis flush")

	// Past the TTL it must not: the entry expires in place.
	cached.now = func() time.Time { return time.Now().Add(10 * time.Minute) }

	_, err = cached.GetCommunity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, backing.calls["community"], "stale L1 entry is a miss")
}

func TestCachedStoreCommunityVisibilityChangeSurfaces(t *testing.T) {
	cached, backing, mr := setupCache(t)
	backing.communities[1] = &Community{ID: 1, Name: "gophers", CreatorID: 100, IsPublic: true}

	ctx := context.Background()
	warm, err := cached.GetCommunity(ctx, 1)
	require.NoError(t, err)
	require.True(t, warm.IsPublic)

	// Another service flips the community private; no invalidation hook
	// runs in this process, so the TTL is the only freshness bound.
	backing.communities[1] = &Community{ID: 1, Name: "gophers", CreatorID: 100, IsPublic: false}

	mr.FastForward(10 * time.Minute)
	cached.now = func() time.Time { return time.Now().Add(10 * time.Minute) }

	c, err := cached.GetCommunity(ctx, 1)
	require.NoError(t, err)
	assert.False(t, c.IsPublic, "private flip must surface once the TTL lapses")
}

func TestCachedStoreContentRefTTLExpiry(t *testing.T) {
	cached, backing, mr := setupCache(t)

	ctx := context.Background()
	_, err := cached.GetLessonRef(ctx, 10)
	require.NoError(t, err)
	_, err = cached.GetLessonRef(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, backing.calls["lesson"])

	mr.FastForward(10 * time.Minute)
	cached.now = func() time.Time { return time.Now().Add(10 * time.Minute) }

	_, err = cached.GetLessonRef(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, backing.calls["lesson"], "content refs expire from L1 with the TTL")
}

func TestCachedStoreNegativeResultsNotCached(t *testing.T) {
	cached, backing, _ := setupCache(t)

	ctx := context.Background()
	_, err := cached.GetCommunity(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = cached.GetCommunity(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 2, backing.calls["community"], "misses always reach the store")
}

func TestCachedStoreMembershipTTLExpiry(t *testing.T) {
	cached, backing, mr := setupCache(t)
	backing.memberships["1:200"] = &Membership{
		UserID: 200, CommunityID: 1, Role: RoleMember, Status: MembershipActive,
	}

	ctx := context.Background()
	_, err := cached.GetMembership(ctx, 1, 200)
	require.NoError(t, err)
	_, err = cached.GetMembership(ctx, 1, 200)
	require.NoError(t, err)
	assert.Equal(t, 1, backing.calls["membership"])

	// Role changes must surface once the short TTL lapses.
	mr.FastForward(time.Minute)

	_, err = cached.GetMembership(ctx, 1, 200)
	require.NoError(t, err)
	assert.Equal(t, 2, backing.calls["membership"])
}

func TestCachedStoreInvalidateMembership(t *testing.T) {
	cached, backing, _ := setupCache(t)
	backing.memberships["1:200"] = &Membership{
		UserID: 200, CommunityID: 1, Role: RoleMember, Status: MembershipActive,
	}

	ctx := context.Background()
	_, err := cached.GetMembership(ctx, 1, 200)
	require.NoError(t, err)

	require.NoError(t, cached.InvalidateMembership(ctx, 1, 200))

	backing.memberships["1:200"].Role = RoleAdmin
	m, err := cached.GetMembership(ctx, 1, 200)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, m.Role, "invalidation surfaces the new role immediately")
}

func TestCachedStoreInvalidateCommunity(t *testing.T) {
	cached, backing, _ := setupCache(t)
	backing.communities[1] = &Community{ID: 1, Name: "before", CreatorID: 100}

	ctx := context.Background()
	_, err := cached.GetCommunity(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, cached.InvalidateCommunity(ctx, 1))

	backing.communities[1] = &Community{ID: 1, Name: "after", CreatorID: 100}
	c, err := cached.GetCommunity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "after", c.Name)
}

func TestCachedStoreContentRefCaching(t *testing.T) {
	cached, backing, _ := setupCache(t)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ref, err := cached.GetLessonRef(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, ContentLesson, ref.Type)
	}
	assert.Equal(t, 1, backing.calls["lesson"])

	for i := 0; i < 2; i++ {
		_, err := cached.GetPostRef(ctx, 20)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, backing.calls["post"])
}

func TestCachedStoreRedisDown(t *testing.T) {
	_, err := NewCachedStore(newCountingStore(), "127.0.0.1:1", "", 0, 16)
	assert.Error(t, err)
}

func TestCachedStoreRedisDBSelection(t *testing.T) {
	mr := miniredis.RunT(t)

	backing := newCountingStore()
	backing.communities[1] = &Community{ID: 1, Name: "gophers", CreatorID: 100}

	cached, err := NewCachedStore(backing, mr.Addr(), "", 1, 16)
	require.NoError(t, err)
	t.Cleanup(func() { cached.Close() })

	ctx := context.Background()
	_, err = cached.GetCommunity(ctx, 1)
	require.NoError(t, err)

	// The key lives in DB 1, not the default DB.
	assert.False(t, mr.Exists("community:1"))

	// And the Redis tier in DB 1 serves it once L1 is cleared.
	cached.l1.Purge()
	_, err = cached.GetCommunity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, backing.calls["community"])
}

func TestCachedStoreRecordsMetrics(t *testing.T) {
	cached, backing, _ := setupCache(t)
	backing.communities[1] = &Community{ID: 1, Name: "gophers", CreatorID: 100}

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	cached.SetMetrics(metrics)

	ctx := context.Background()
	_, err := cached.GetCommunity(ctx, 1)
	require.NoError(t, err)
	_, err = cached.GetCommunity(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheMissesTotal.WithLabelValues("l1", "community")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheMissesTotal.WithLabelValues("redis", "community")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheHitsTotal.WithLabelValues("l1", "community")))
}
