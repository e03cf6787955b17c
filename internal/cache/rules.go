package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/maypok86/otter"
	"github.com/redis/go-redis/v9"

	"github.com/mfigueredo/viptier/internal/observability"
	"github.com/mfigueredo/viptier/internal/rulestore"
)

// keyPrefix namespaces rule set keys in Redis, e.g. "ruleset:gid://shopify/Shop/1".
const keyPrefix = "ruleset"

// RulesCache is the two-tier cache over decoded rule sets.
//
// Both tiers degrade to a miss on failure: the classify path must never fail
// because a cache is down, it falls through to the rule store instead.
type RulesCache struct {
	l1     otter.Cache[string, []rulestore.Rule]
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRulesCache builds the tiers from the redis client and cache knobs.
// The redis client may be nil, leaving an L1-only cache (degraded mode).
func NewRulesCache(client *redis.Client, capacity int, l1TTL, l2TTL time.Duration, logger *slog.Logger) (*RulesCache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	l1, err := otter.MustBuilder[string, []rulestore.Rule](capacity).
		WithTTL(l1TTL).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build l1 cache: %w", err)
	}

	return &RulesCache{
		l1:     l1,
		redis:  client,
		ttl:    l2TTL,
		logger: logger,
	}, nil
}

// Get returns the cached rule set for the owner, checking L1 then L2.
func (c *RulesCache) Get(ctx context.Context, ownerID string) ([]rulestore.Rule, bool) {
	if rules, ok := c.l1.Get(ownerID); ok {
		observability.RuleCacheHits.WithLabelValues("l1").Inc()
		return rules, true
	}

	if c.redis == nil {
		return nil, false
	}

	raw, err := c.redis.Get(ctx, redisKey(ownerID)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("rule cache l2 read failed",
				slog.String("owner_id", ownerID),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}

	var rules []rulestore.Rule
	if err := json.Unmarshal([]byte(raw), &rules); err != nil {
		c.logger.Warn("rule cache l2 entry corrupt, dropping",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		c.redis.Del(ctx, redisKey(ownerID))
		return nil, false
	}

	observability.RuleCacheHits.WithLabelValues("l2").Inc()
	c.l1.Set(ownerID, rules)
	return rules, true
}

// Set fills both tiers after a rule store read.
func (c *RulesCache) Set(ctx context.Context, ownerID string, rules []rulestore.Rule) {
	c.l1.Set(ownerID, rules)

	if c.redis == nil {
		return
	}

	raw, err := json.Marshal(rules)
	if err != nil {
		c.logger.Warn("failed to encode rule set for cache",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := c.redis.Set(ctx, redisKey(ownerID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("rule cache l2 write failed",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
	}
}

// Invalidate drops both tiers for the owner. It satisfies
// rulestore.Invalidator and runs after every committed rule write.
func (c *RulesCache) Invalidate(ctx context.Context, ownerID string) {
	c.l1.Delete(ownerID)

	if c.redis == nil {
		return
	}

	if err := c.redis.Del(ctx, redisKey(ownerID)).Err(); err != nil {
		c.logger.Warn("rule cache l2 invalidation failed",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
	}
}

// Close shuts down the L1 tier's background goroutines. The redis client's
// lifecycle belongs to the caller.
func (c *RulesCache) Close() {
	c.l1.Close()
}

func redisKey(ownerID string) string {
	return fmt.Sprintf("%s:%s", keyPrefix, ownerID)
}
