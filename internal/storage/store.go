package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Partition keys. The sync partition holds small user configuration, the
// local partition holds usage statistics.
const (
	KeyBlockConfig = "blockConfig"
	KeyUsageData   = "usageData"
)

// Store represents the root storage interface.
type Store interface {
	Close() error
	Config() ConfigStore
	Usage() UsageStore
}

// ConfigStore persists the block configuration (sync partition).
type ConfigStore interface {
	GetBlockConfig(ctx context.Context) (*BlockConfig, error)
	PutBlockConfig(ctx context.Context, cfg BlockConfig) error
}

// UsageStore persists per-hostname usage records (local partition).
type UsageStore interface {
	Load(ctx context.Context) (map[string]UsageRecord, error)
	Get(ctx context.Context, hostname string) (*UsageRecord, error)
	Upsert(ctx context.Context, record UsageRecord) error
	Delete(ctx context.Context, hostname string) error
	DeleteBefore(ctx context.Context, cutoffMs int64) (int, error)
	Clear(ctx context.Context) error
}
