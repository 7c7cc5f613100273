package predict

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCache(t *testing.T, ttl time.Duration, clock *time.Time) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewCache(client, ttl, WithCacheClock(func() time.Time { return *clock }))
	return c, mr
}

func TestScenarioHash_NormalizesFormatting(t *testing.T) {
	a := ScenarioHash(Bill{Title: "Budget Act 2027", Summary: "Raises  the defence\nbudget."})
	b := ScenarioHash(Bill{Title: "budget act 2027", Summary: "raises the defence budget."})
	assert.Equal(t, a, b)

	c := ScenarioHash(Bill{Title: "Budget Act 2028", Summary: "Raises the defence budget."})
	assert.NotEqual(t, a, c)
}

func TestCache_RoundTrip(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	c, _ := testCache(t, time.Hour, &now)
	ctx := context.Background()

	hash := ScenarioHash(Bill{Title: "Budget Act"})
	pred := &Prediction{Decision: "FOR", Confidence: 0.8, Provenance: ProvenanceModel, Model: "claude"}
	require.NoError(t, c.Set(ctx, "mp-1", hash, pred))

	got, err := c.Get(ctx, "mp-1", hash)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "FOR", got.Decision)
	assert.Equal(t, ProvenanceModel, got.Provenance, "provenance must survive the cache")
}

func TestCache_MissIsNilNotError(t *testing.T) {
	now := time.Now()
	c, _ := testCache(t, time.Hour, &now)

	got, err := c.Get(context.Background(), "mp-1", "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_ExpiryBoundary(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	c, _ := testCache(t, time.Hour, &now)
	ctx := context.Background()

	hash := ScenarioHash(Bill{Title: "Budget Act"})
	require.NoError(t, c.Set(ctx, "mp-1", hash, &Prediction{Decision: "FOR", Confidence: 0.8}))

	// Just before expiry: present.
	now = now.Add(time.Hour - time.Second)
	got, err := c.Get(ctx, "mp-1", hash)
	require.NoError(t, err)
	assert.NotNil(t, got)

	// At expiry: a read is valid only strictly before expiresAt.
	now = now.Add(time.Second)
	got, err = c.Get(ctx, "mp-1", hash)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_RedisTTLAlsoExpires(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	c, mr := testCache(t, time.Hour, &now)
	ctx := context.Background()

	hash := ScenarioHash(Bill{Title: "Budget Act"})
	require.NoError(t, c.Set(ctx, "mp-1", hash, &Prediction{Decision: "FOR", Confidence: 0.8}))

	mr.FastForward(time.Hour + time.Second)
	got, err := c.Get(ctx, "mp-1", hash)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_GetBatch(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	c, _ := testCache(t, time.Hour, &now)
	ctx := context.Background()

	hash := ScenarioHash(Bill{Title: "Budget Act"})
	require.NoError(t, c.Set(ctx, "mp-1", hash, &Prediction{Decision: "FOR", Confidence: 0.8}))
	require.NoError(t, c.Set(ctx, "mp-3", hash, &Prediction{Decision: "AGAINST", Confidence: 0.6}))

	found, err := c.GetBatch(ctx, []string{"mp-1", "mp-2", "mp-3"}, hash)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "FOR", found["mp-1"].Decision)
	assert.Equal(t, "AGAINST", found["mp-3"].Decision)
	_, present := found["mp-2"]
	assert.False(t, present, "absence must be a miss, not a negative entry")
}

func TestCache_GetBatch_Empty(t *testing.T) {
	now := time.Now()
	c, _ := testCache(t, time.Hour, &now)

	found, err := c.GetBatch(context.Background(), nil, "hash")
	require.NoError(t, err)
	assert.Empty(t, found)
}
