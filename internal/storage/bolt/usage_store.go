package bolt

import (
	"context"
	"fmt"

	"github.com/goodtune/focusforge/internal/storage"
	"go.etcd.io/bbolt"
)

type usageStore struct {
	db *bbolt.DB
}

func (s *usageStore) Load(ctx context.Context) (map[string]storage.UsageRecord, error) {
	records := make(map[string]storage.UsageRecord)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketUsage))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var record storage.UsageRecord
			if err := unmarshal(v, &record); err != nil {
				return err
			}
			records[string(k)] = record
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *usageStore) Get(ctx context.Context, hostname string) (*storage.UsageRecord, error) {
	return getBucketValue[storage.UsageRecord](ctx, s.db, bucketUsage, hostname)
}

func (s *usageStore) Upsert(ctx context.Context, record storage.UsageRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	return putBucketValue(ctx, s.db, bucketUsage, record.Hostname, record)
}

func (s *usageStore) Delete(ctx context.Context, hostname string) error {
	return deleteBucketValue(ctx, s.db, bucketUsage, hostname)
}

func (s *usageStore) DeleteBefore(ctx context.Context, cutoffMs int64) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketUsage))
		if b == nil {
			return nil
		}
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var record storage.UsageRecord
			if err := unmarshal(v, &record); err != nil {
				return err
			}
			if record.LastVisitAt < cutoffMs {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

func (s *usageStore) Clear(ctx context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := tx.DeleteBucket([]byte(bucketUsage)); err != nil && err != bbolt.ErrBucketNotFound {
			return fmt.Errorf("delete usage bucket: %w", err)
		}
		_, err := tx.CreateBucket([]byte(bucketUsage))
		return err
	})
}
