package predict

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache memoizes predictions in Redis, keyed by member id plus a
// deterministic scenario hash. Entries expire by TTL; Redis enforces it
// server-side and the stored expiresAt is double-checked on read so a lagging
// Redis clock can't serve a stale entry.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCacheClock injects a time source for tests.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a prediction cache with the given TTL.
func NewCache(client *redis.Client, ttl time.Duration, opts ...CacheOption) *Cache {
	c := &Cache{client: client, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type cachedPrediction struct {
	Prediction Prediction `json:"prediction"`
	ExpiresAt  time.Time  `json:"expiresAt"`
}

// ScenarioHash returns a deterministic hash of the bill's content. Case and
// whitespace differences do not change the hash, so reformatted copies of the
// same bill collide.
func ScenarioHash(bill Bill) string {
	normalized := normalize(bill.Title) + "\n" + normalize(bill.Summary)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func cacheKey(memberID, scenarioHash string) string {
	return "pred:" + memberID + ":" + scenarioHash
}

// Set stores a prediction under (member, scenario).
func (c *Cache) Set(ctx context.Context, memberID, scenarioHash string, pred *Prediction) error {
	entry := cachedPrediction{
		Prediction: *pred,
		ExpiresAt:  c.now().Add(c.ttl),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(memberID, scenarioHash), data, c.ttl).Err()
}

// Get returns the cached prediction, or nil when absent or expired. Absence
// is not a negative result; callers must fall through to computing one.
func (c *Cache) Get(ctx context.Context, memberID, scenarioHash string) (*Prediction, error) {
	data, err := c.client.Get(ctx, cacheKey(memberID, scenarioHash)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.decode([]byte(data)), nil
}

// GetBatch looks up one scenario for many members and returns only the
// present, unexpired entries.
func (c *Cache) GetBatch(ctx context.Context, memberIDs []string, scenarioHash string) (map[string]*Prediction, error) {
	if len(memberIDs) == 0 {
		return map[string]*Prediction{}, nil
	}

	keys := make([]string, len(memberIDs))
	for i, id := range memberIDs {
		keys[i] = cacheKey(id, scenarioHash)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	found := make(map[string]*Prediction)
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue // absent
		}
		if pred := c.decode([]byte(s)); pred != nil {
			found[memberIDs[i]] = pred
		}
	}
	return found, nil
}

// decode unmarshals an entry and enforces the strictly-before-expiry read
// rule. Undecodable or expired entries read as misses.
func (c *Cache) decode(data []byte) *Prediction {
	var entry cachedPrediction
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil
	}
	if !c.now().Before(entry.ExpiresAt) {
		return nil
	}
	return &entry.Prediction
}
