package storage

import (
	"errors"
	"testing"
)

func TestNormalizeHostname(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"https://www.example.com/", "example.com", false},
		{"http://Example.COM:8080/path?q=1", "example.com", false},
		{"www.youtube.com", "youtube.com", false},
		{"  TikTok.com  ", "tiktok.com", false},
		{"news.ycombinator.com/item?id=1", "news.ycombinator.com", false},
		{"localhost:3000", "localhost", false},
		{"", "", true},
		{"   ", "", true},
		{"https:///nohost", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeHostname(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeHostname(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeHostname(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBlockConfigSites(t *testing.T) {
	var cfg BlockConfig
	cfg.SetSites([]string{"YouTube.com", "", "www.youtube.com", "tiktok.com"})
	if len(cfg.Sites) != 2 || cfg.Sites[0] != "youtube.com" || cfg.Sites[1] != "tiktok.com" {
		t.Fatalf("unexpected sites: %v", cfg.Sites)
	}

	if _, err := cfg.AddSite("https://tiktok.com/foo"); !errors.Is(err, ErrDuplicateSite) {
		t.Fatalf("expected ErrDuplicateSite, got %v", err)
	}

	host, err := cfg.AddSite(" Reddit.com ")
	if err != nil {
		t.Fatalf("add site: %v", err)
	}
	if host != "reddit.com" || cfg.Sites[2] != "reddit.com" {
		t.Fatalf("unexpected add result %q, sites %v", host, cfg.Sites)
	}

	clone := cfg.Clone()
	if !cfg.RemoveSite("youtube.com") {
		t.Fatal("expected youtube.com to be removed")
	}
	if cfg.RemoveSite("youtube.com") {
		t.Fatal("second removal should report false")
	}
	if len(clone.Sites) != 3 {
		t.Fatalf("clone was mutated: %v", clone.Sites)
	}
}

func TestDefaultBlockConfig(t *testing.T) {
	cfg := DefaultBlockConfig(nil)
	if cfg.StudyModeEnabled {
		t.Error("study mode should default to off")
	}
	if len(cfg.Sites) != len(DefaultBlockedSites) {
		t.Fatalf("expected %d default sites, got %v", len(DefaultBlockedSites), cfg.Sites)
	}
}

func TestUsageRecordValidate(t *testing.T) {
	if err := (UsageRecord{Hostname: "a.com", Visits: 1}).Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}
	if err := (UsageRecord{Hostname: "", Visits: 1}).Validate(); !errors.Is(err, ErrInvalidHostname) {
		t.Fatalf("expected ErrInvalidHostname, got %v", err)
	}
	if err := (UsageRecord{Hostname: "a.com"}).Validate(); err == nil {
		t.Fatal("expected error for zero visits")
	}
}
