package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/goodtune/focusforge/internal/storage"
	"github.com/redis/go-redis/v9"
)

type configStore struct {
	client *redis.Client
}

// GetBlockConfig returns the stored block configuration
func (s *configStore) GetBlockConfig(ctx context.Context) (*storage.BlockConfig, error) {
	data, err := s.client.HGetAll(ctx, blockConfigKey).Result()
	if err != nil {
		return nil, err
	}
	return parseBlockConfig(data)
}

// PutBlockConfig replaces the stored block configuration
func (s *configStore) PutBlockConfig(ctx context.Context, cfg storage.BlockConfig) error {
	if cfg.Sites == nil {
		cfg.Sites = []string{}
	}
	sites, err := json.Marshal(cfg.Sites)
	if err != nil {
		return fmt.Errorf("marshal sites: %w", err)
	}

	return s.client.HSet(ctx, blockConfigKey,
		"sites", string(sites),
		"study_mode", strconv.FormatBool(cfg.StudyModeEnabled),
	).Err()
}
