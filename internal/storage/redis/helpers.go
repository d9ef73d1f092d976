package redis

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/goodtune/focusforge/internal/storage"
)

// parseUsageRecord converts a Redis hash to UsageRecord
func parseUsageRecord(data map[string]string) (*storage.UsageRecord, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	visits, err := strconv.ParseInt(data["visits"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse visits: %w", err)
	}

	totalTimeMs, err := strconv.ParseInt(data["total_time_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse total_time_ms: %w", err)
	}

	lastVisitAt, err := strconv.ParseInt(data["last_visit_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last_visit_at: %w", err)
	}

	return &storage.UsageRecord{
		Hostname:    data["hostname"],
		Visits:      visits,
		TotalTimeMs: totalTimeMs,
		LastVisitAt: lastVisitAt,
	}, nil
}

// parseBlockConfig converts a Redis hash to BlockConfig
func parseBlockConfig(data map[string]string) (*storage.BlockConfig, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	cfg := &storage.BlockConfig{Sites: []string{}}
	if raw := data["sites"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.Sites); err != nil {
			return nil, fmt.Errorf("failed to parse sites: %w", err)
		}
	}

	enabled, err := strconv.ParseBool(data["study_mode"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse study_mode: %w", err)
	}
	cfg.StudyModeEnabled = enabled

	return cfg, nil
}
