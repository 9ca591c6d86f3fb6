package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Server.Port != 8080 || c.Fusion.ScoreTTL != 300*time.Second || c.Alerts.Expiry != 24*time.Hour {
		t.Fatalf("unexpected defaults %+v %+v", c.Server, c.Fusion)
	}
	if c.Market.SnapshotTTL != time.Minute || c.Market.Timezone != "Asia/Kolkata" {
		t.Fatalf("unexpected market defaults %+v", c.Market)
	}
	if len(c.Fusion.Symbols) != 5 || len(c.Fusion.Weights) != 5 {
		t.Fatalf("expected the five default symbols and sources, got %v %v", c.Fusion.Symbols, c.Fusion.Weights)
	}
	for name, w := range c.Fusion.Weights {
		if math.Abs(w-0.2) > 1e-9 {
			t.Fatalf("expected equal weights, %s=%v", name, w)
		}
	}
	if c.Market.BasePrices["RELIANCE"] != 2650 || c.Fusion.Sectors["ITC"] != "FMCG" {
		t.Fatalf("unexpected domain defaults")
	}
}

func TestParseNormalisesWeights(t *testing.T) {
	c, err := Parse([]byte(`
fusion:
  weights:
    satellite: 2
    news: 2
    options: 0
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Fusion.Weights["satellite"] != 0.5 || c.Fusion.Weights["news"] != 0.5 || c.Fusion.Weights["options"] != 0 {
		t.Fatalf("unexpected weights %v", c.Fusion.Weights)
	}
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"negative weight": "fusion:\n  weights:\n    news: -1\n    web: 2\n",
		"zero weights":    "fusion:\n  weights:\n    news: 0\n",
		"unknown source":  "fusion:\n  weights:\n    satelite: 0.2\n    news: 0.8\n",
		"bad timezone":    "market:\n  timezone: Mars/Olympus\n",
		"bad clock":       "market:\n  open: \"9am\"\n",
		"bad log level":   "log:\n  level: loud\n",
		"bad workers":     "fusion:\n  workers: 0\n",
		"kafka brokers":   "kafka:\n  enabled: true\n",
		"sentiment url":   "sources:\n  sentiment_url: not a url\n",
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestParseClock(t *testing.T) {
	if m, err := ParseClock("09:15"); err != nil || m != 555 {
		t.Fatalf("expected 555, got %d %v", m, err)
	}
	if m, err := ParseClock("15:30"); err != nil || m != 930 {
		t.Fatalf("expected 930, got %d %v", m, err)
	}
	if _, err := ParseClock("25:00"); err == nil {
		t.Fatalf("expected error for invalid hour")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("market:\n  timezone: UTC\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("SYMBOLS", "TCS, ITC,")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("POSTGRES_DSN", "postgres://u:p@db:5432/finfusion")

	c, err := LoadWithEnv(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Fusion.Symbols) != 2 || c.Fusion.Symbols[1] != "ITC" {
		t.Fatalf("unexpected symbols %v", c.Fusion.Symbols)
	}
	if c.Server.Port != 9090 {
		t.Fatalf("unexpected port %d", c.Server.Port)
	}
	if !c.Redis.Enabled || c.Redis.Host != "cache" || c.Redis.Port != 6380 {
		t.Fatalf("unexpected redis %+v", c.Redis)
	}
	if !c.Kafka.Enabled || len(c.Kafka.Brokers) != 2 {
		t.Fatalf("unexpected kafka %+v", c.Kafka.Brokers)
	}
	if !c.Postgres.Enabled || c.Postgres.DSN == "" {
		t.Fatalf("expected postgres enabled from dsn")
	}
	if c.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", c.Location())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
