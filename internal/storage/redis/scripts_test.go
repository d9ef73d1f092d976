package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a miniredis instance for testing Lua scripts
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr
}

func TestUpsertUsageScript(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()

	ctx := context.Background()

	tests := []struct {
		name      string
		hostname  string
		visits    int
		lastVisit int64
	}{
		{name: "create record", hostname: "example.com", visits: 1, lastVisit: 1000},
		{name: "overwrite record", hostname: "example.com", visits: 2, lastVisit: 5000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := client.Eval(ctx, upsertUsageScript,
				[]string{usageKey(tt.hostname), usageIndexKey},
				tt.hostname, tt.visits, 0, tt.lastVisit)
			if result.Err() != nil {
				t.Fatalf("Script execution failed: %v", result.Err())
			}

			score, err := mr.ZScore(usageIndexKey, tt.hostname)
			if err != nil {
				t.Fatalf("Expected hostname in index: %v", err)
			}
			if int64(score) != tt.lastVisit {
				t.Errorf("Expected index score %d, got %v", tt.lastVisit, score)
			}
		})
	}

	members, err := mr.ZMembers(usageIndexKey)
	if err != nil {
		t.Fatalf("ZMembers failed: %v", err)
	}
	if len(members) != 1 {
		t.Errorf("Expected a single index member, got %v", members)
	}
}

func TestDeleteUsageBeforeScript(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()

	ctx := context.Background()

	for _, rec := range []struct {
		host string
		last int64
	}{{"a.com", 100}, {"b.com", 200}, {"c.com", 300}} {
		if err := client.Eval(ctx, upsertUsageScript,
			[]string{usageKey(rec.host), usageIndexKey},
			rec.host, 1, 0, rec.last).Err(); err != nil {
			t.Fatalf("seed %s: %v", rec.host, err)
		}
	}

	n, err := client.Eval(ctx, deleteUsageBeforeScript, []string{usageIndexKey}, usageKey(""), 300).Int()
	if err != nil {
		t.Fatalf("Script execution failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("Expected 2 deletions, got %d", n)
	}
	if mr.Exists(usageKey("a.com")) || mr.Exists(usageKey("b.com")) {
		t.Error("Expected a.com and b.com to be deleted")
	}
	if !mr.Exists(usageKey("c.com")) {
		t.Error("Expected c.com to survive (cutoff is exclusive)")
	}
}
