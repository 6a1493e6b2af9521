package config

import (
	"testing"
	"time"
)

func TestValidateMaintenanceConfig(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*MaintenanceConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*MaintenanceConfig) {}},
		{name: "zero batch", mutate: func(c *MaintenanceConfig) { c.BatchSize = 0 }, wantErr: true},
		{name: "blank marker", mutate: func(c *MaintenanceConfig) { c.MarkerKey = "  " }, wantErr: true},
		{name: "no lock ttl", mutate: func(c *MaintenanceConfig) { c.LockTTL = 0 }, wantErr: true},
		{name: "huge batch", mutate: func(c *MaintenanceConfig) { c.BatchSize = 501 }, wantErr: true},
		{name: "blank post type", mutate: func(c *MaintenanceConfig) { c.DefaultPostTypes = []string{"post", " "} }, wantErr: true},
		{name: "no status", mutate: func(c *MaintenanceConfig) { c.PostStatus = "" }, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultMaintenanceConfig()
			tc.mutate(&cfg)
			err := validateMaintenanceConfig(cfg)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestStaticHolderReturnsStoredConfig(t *testing.T) {
	cfg := DefaultMaintenanceConfig()
	cfg.BatchSize = 7
	cfg.LockTTL = time.Second

	holder := NewStaticMaintenanceConfigHolder(cfg)
	if got := holder.Get().BatchSize; got != 7 {
		t.Fatalf("expected batch size 7, got %d", got)
	}
}

func TestRedirectURI(t *testing.T) {
	cfg := Config{PublicBaseURL: "https://example.test"}
	if got := cfg.RedirectURI(); got != "https://example.test/wpmudev/v1/drive/callback" {
		t.Fatalf("unexpected redirect uri %q", got)
	}
}

func TestValidateMaintenanceConfigNamesField(t *testing.T) {
	cfg := DefaultMaintenanceConfig()
	cfg.BatchSize = 0
	err := validateMaintenanceConfig(cfg)
	if err == nil || err.Error() != `maintenance.batchSize failed "gt" check` {
		t.Fatalf("unexpected error: %v", err)
	}
}
