package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/forecastdao/tiergate/internal/ledger"
	"github.com/redis/go-redis/v9"
)

// RedisUsageRepo persists UsageStats snapshots as hashes. Counters change
// on every quota debit, so they live in Redis rather than Postgres.
type RedisUsageRepo struct {
	client *redis.Client
	prefix string
}

func NewRedisUsageRepo(client *redis.Client, prefix string) *RedisUsageRepo {
	if prefix == "" {
		prefix = "usage"
	}
	return &RedisUsageRepo{client: client, prefix: prefix}
}

func (r *RedisUsageRepo) SaveUsage(ctx context.Context, key ledger.Key, stats ledger.UsageStats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, r.indexKey(), r.field(key), payload).Err()
}

// LoadAll returns every persisted counter set for tracker restore.
func (r *RedisUsageRepo) LoadAll(ctx context.Context) (map[ledger.Key]ledger.UsageStats, error) {
	raw, err := r.client.HGetAll(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[ledger.Key]ledger.UsageStats, len(raw))
	for field, payload := range raw {
		key, ok := parseField(field)
		if !ok {
			continue
		}
		var stats ledger.UsageStats
		if err := json.Unmarshal([]byte(payload), &stats); err != nil {
			continue
		}
		out[key] = stats
	}
	return out, nil
}

func (r *RedisUsageRepo) indexKey() string {
	return r.prefix + ":stats"
}

func (r *RedisUsageRepo) field(key ledger.Key) string {
	return fmt.Sprintf("%s|%s", key.Account, key.Role)
}

func parseField(field string) (ledger.Key, bool) {
	for i := 0; i < len(field); i++ {
		if field[i] == '|' {
			return ledger.Key{Account: field[:i], Role: field[i+1:]}, true
		}
	}
	return ledger.Key{}, false
}
