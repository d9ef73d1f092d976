package bolt

import (
	"context"

	"github.com/goodtune/focusforge/internal/storage"
	"go.etcd.io/bbolt"
)

type configStore struct {
	db *bbolt.DB
}

func (s *configStore) GetBlockConfig(ctx context.Context) (*storage.BlockConfig, error) {
	return getBucketValue[storage.BlockConfig](ctx, s.db, bucketSync, storage.KeyBlockConfig)
}

func (s *configStore) PutBlockConfig(ctx context.Context, cfg storage.BlockConfig) error {
	if cfg.Sites == nil {
		cfg.Sites = []string{}
	}
	return putBucketValue(ctx, s.db, bucketSync, storage.KeyBlockConfig, cfg)
}
