package redisdb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/planloom/planloom-backend/internal/platform/logger"
)

// Cache holds tenant-scoped records outside the graph: cached analysis
// reports keyed per tenant. Keys follow "planloom:<graph_id>:..." so a
// tenant's footprint can be purged with one scan.
type Cache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewFromEnv(log *logger.Logger) (*Cache, error) {
	if log == nil {
		return nil, fmt.Errorf("redisdb: logger required")
	}
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, nil
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    strings.TrimSpace(os.Getenv("REDIS_PASSWORD")),
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redisdb: ping: %w", err)
	}

	return &Cache{
		log: log.With("client", "RedisCache"),
		rdb: rdb,
		ttl: 10 * time.Minute,
	}, nil
}

func (c *Cache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func reportKey(graphID string) string {
	return fmt.Sprintf("planloom:%s:analysis_report", graphID)
}

func tenantPattern(graphID string) string {
	return fmt.Sprintf("planloom:%s:*", graphID)
}

// GetReport returns the cached analysis report for a tenant, or false
// when absent. Cache misses and decode failures are both misses.
func (c *Cache) GetReport(ctx context.Context, graphID string, out any) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, nil
	}
	raw, err := c.rdb.Get(ctx, reportKey(graphID)).Bytes()
	if err == goredis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redisdb: get report: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.log.Warn("cached report undecodable, treating as miss", "graph_id", graphID, "error", err)
		return false, nil
	}
	return true, nil
}

func (c *Cache) SetReport(ctx context.Context, graphID string, report any) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("redisdb: encode report: %w", err)
	}
	return c.rdb.Set(ctx, reportKey(graphID), raw, c.ttl).Err()
}

// InvalidateReport drops the cached report after a mutation so the next
// analysis reflects the new graph state.
func (c *Cache) InvalidateReport(ctx context.Context, graphID string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, reportKey(graphID)).Err()
}

func (c *Cache) Name() string { return "redis" }

// PurgeTenant scans and deletes every key under the tenant's prefix.
func (c *Cache) PurgeTenant(ctx context.Context, graphID string) (int64, error) {
	if c == nil || c.rdb == nil {
		return 0, nil
	}
	var purged int64
	iter := c.rdb.Scan(ctx, 0, tenantPattern(graphID), 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return purged, fmt.Errorf("redisdb: delete %s: %w", iter.Val(), err)
		}
		purged++
	}
	if err := iter.Err(); err != nil {
		return purged, fmt.Errorf("redisdb: scan tenant keys: %w", err)
	}
	return purged, nil
}
