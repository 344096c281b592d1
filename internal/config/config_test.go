package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load with no file: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.ScreenerInterval() != time.Minute {
		t.Errorf("screener interval = %v, want 1m", cfg.ScreenerInterval())
	}
	if cfg.AutoTradeInterval() != time.Minute {
		t.Errorf("auto trade interval = %v, want 1m", cfg.AutoTradeInterval())
	}
	if len(cfg.Screener.Timeframes) == 0 {
		t.Error("default timeframes missing")
	}
	if cfg.Screener.Concurrency <= 0 {
		t.Error("default concurrency missing")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
screener:
  interval: 5m
  timeframes: ["5m", "1h"]
  min_volume_usd: 2000000
auto_trade:
  interval: 2m
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.ScreenerInterval() != 5*time.Minute {
		t.Errorf("screener interval = %v, want 5m", cfg.ScreenerInterval())
	}
	if cfg.Screener.MinVolume != 2000000 {
		t.Errorf("min volume = %v", cfg.Screener.MinVolume)
	}
	if len(cfg.Screener.Timeframes) != 2 {
		t.Errorf("timeframes = %v", cfg.Screener.Timeframes)
	}
}

func TestLoadRejectsBadInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("screener:\n  interval: soon\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for unparseable interval")
	}
}

func TestLoadRequiresTelegramFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("telegram:\n  enabled: true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for enabled telegram without token")
	}
}
