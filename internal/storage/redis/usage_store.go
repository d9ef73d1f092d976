package redis

import (
	"context"
	"errors"

	"github.com/goodtune/focusforge/internal/storage"
	"github.com/redis/go-redis/v9"
)

var (
	upsertUsage       = redis.NewScript(upsertUsageScript)
	deleteUsageBefore = redis.NewScript(deleteUsageBeforeScript)
	clearUsage        = redis.NewScript(clearUsageScript)
)

type usageStore struct {
	client *redis.Client
}

// Load returns every usage record keyed by hostname
func (s *usageStore) Load(ctx context.Context) (map[string]storage.UsageRecord, error) {
	hosts, err := s.client.ZRange(ctx, usageIndexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	records := make(map[string]storage.UsageRecord, len(hosts))
	if len(hosts) == 0 {
		return records, nil
	}

	// Use pipeline for efficient batch retrieval
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(hosts))
	for i, host := range hosts {
		cmds[i] = pipe.HGetAll(ctx, usageKey(host))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}

		record, err := parseUsageRecord(data)
		if err != nil {
			return nil, err
		}
		records[record.Hostname] = *record
	}

	return records, nil
}

// Get retrieves a single record
func (s *usageStore) Get(ctx context.Context, hostname string) (*storage.UsageRecord, error) {
	data, err := s.client.HGetAll(ctx, usageKey(hostname)).Result()
	if err != nil {
		return nil, err
	}
	return parseUsageRecord(data)
}

// Upsert creates or replaces a record
func (s *usageStore) Upsert(ctx context.Context, record storage.UsageRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	keys := []string{usageKey(record.Hostname), usageIndexKey}
	args := []interface{}{
		record.Hostname,
		record.Visits,
		record.TotalTimeMs,
		record.LastVisitAt,
	}

	return upsertUsage.Run(ctx, s.client, keys, args...).Err()
}

// Delete removes a single record
func (s *usageStore) Delete(ctx context.Context, hostname string) error {
	removed, err := s.client.ZRem(ctx, usageIndexKey, hostname).Result()
	if err != nil {
		return err
	}
	deleted, err := s.client.Del(ctx, usageKey(hostname)).Result()
	if err != nil {
		return err
	}
	if removed == 0 && deleted == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteBefore removes records last visited before cutoffMs
func (s *usageStore) DeleteBefore(ctx context.Context, cutoffMs int64) (int, error) {
	n, err := deleteUsageBefore.Run(ctx, s.client, []string{usageIndexKey}, usageKey(""), cutoffMs).Int()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Clear removes all usage data
func (s *usageStore) Clear(ctx context.Context) error {
	return clearUsage.Run(ctx, s.client, []string{usageIndexKey}, usageKey("")).Err()
}
