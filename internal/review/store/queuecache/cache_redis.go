// Package queuecache caches computed role queues in Redis. Queues are pure
// reads recomputed from the stores, so a short TTL plus invalidation on every
// decision keeps dashboards cheap without risking stale routing: a miss just
// recomputes.
package queuecache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"bursary/internal/review/models"
	id "bursary/pkg/domain"
)

const (
	keyPrefix  = "bursary:queue:"
	defaultTTL = 15 * time.Second
)

// Cache wraps a Redis client. A nil *Cache is a valid no-op cache so wiring
// stays optional.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New builds a queue cache. Pass a zero ttl to use the default.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached queue for a role, and whether the cache held one.
func (c *Cache) Get(ctx context.Context, role id.Role) ([]models.Summary, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, keyPrefix+role.String()).Bytes()
	if err != nil {
		return nil, false
	}
	var queue []models.Summary
	if err := json.Unmarshal(raw, &queue); err != nil {
		return nil, false
	}
	return queue, true
}

// Set stores the computed queue for a role.
func (c *Cache) Set(ctx context.Context, role id.Role, queue []models.Summary) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(queue)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, keyPrefix+role.String(), raw, c.ttl).Err()
}

// Invalidate drops every cached role queue. Called after any committed
// decision, since one decision can move an application across several queues.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	keys := make([]string, 0, 5)
	for _, role := range []id.Role{
		id.RoleDocumentOfficer,
		id.RoleFinancialOfficer,
		id.RoleAcademicOfficer,
		id.RoleChairperson,
		id.RoleAdmin,
	} {
		keys = append(keys, keyPrefix+role.String())
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
