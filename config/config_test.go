package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ANALYZER_CONFIG", "")
	t.Setenv("COMPARABLE_LIMIT", "")
	t.Setenv("BAND_FRACTION", "")
	t.Setenv("CURVE_STEP_KM", "")

	cfg := Load()
	if cfg.Engine.ComparableLimit != 20 {
		t.Errorf("ComparableLimit: got %d, want 20", cfg.Engine.ComparableLimit)
	}
	if cfg.Engine.BandFraction != 0.10 {
		t.Errorf("BandFraction: got %v, want 0.10", cfg.Engine.BandFraction)
	}
	if cfg.Engine.MinSampleCount != 5 {
		t.Errorf("MinSampleCount: got %d, want 5", cfg.Engine.MinSampleCount)
	}
	if cfg.Engine.CurveStepKm != 5000 {
		t.Errorf("CurveStepKm: got %v, want 5000", cfg.Engine.CurveStepKm)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ANALYZER_CONFIG", "")
	t.Setenv("COMPARABLE_LIMIT", "7")
	t.Setenv("BAND_FRACTION", "0.2")
	t.Setenv("POOL_CAP", "not-a-number")

	cfg := Load()
	if cfg.Engine.ComparableLimit != 7 {
		t.Errorf("ComparableLimit: got %d, want 7", cfg.Engine.ComparableLimit)
	}
	if cfg.Engine.BandFraction != 0.2 {
		t.Errorf("BandFraction: got %v, want 0.2", cfg.Engine.BandFraction)
	}
	if cfg.Engine.PoolCap != 500 {
		t.Errorf("invalid POOL_CAP should fall back to 500, got %d", cfg.Engine.PoolCap)
	}
}

func TestApplyFileOverlaysNonZeroValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analyzer.yaml")
	body := []byte(`
engine:
  comparableLimit: 12
  curveStepKm: 5000
scraper:
  cardSelector: "li.result"
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	cfg := &Config{
		Engine:  EngineConfig{ComparableLimit: 20, MinSampleCount: 5, CurveStepKm: 2500},
		Scraper: ScraperConfig{CardSelector: "article", TitleSelector: "h2"},
	}
	if err := cfg.ApplyFile(path); err != nil {
		t.Fatalf("ApplyFile: %v", err)
	}

	if cfg.Engine.ComparableLimit != 12 {
		t.Errorf("ComparableLimit: got %d, want 12", cfg.Engine.ComparableLimit)
	}
	if cfg.Engine.MinSampleCount != 5 {
		t.Errorf("MinSampleCount should be untouched, got %d", cfg.Engine.MinSampleCount)
	}
	if cfg.Engine.CurveStepKm != 5000 {
		t.Errorf("CurveStepKm: got %v, want 5000", cfg.Engine.CurveStepKm)
	}
	if cfg.Scraper.CardSelector != "li.result" || cfg.Scraper.TitleSelector != "h2" {
		t.Errorf("unexpected scraper selectors: %+v", cfg.Scraper)
	}
}

func TestApplyFileMissing(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ApplyFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDSN(t *testing.T) {
	cfg := &Config{
		PostgresHost: "db", PostgresPort: "5433", PostgresUser: "u",
		PostgresPassword: "p", PostgresDB: "cars", PostgresSSLMode: "disable",
	}
	want := "host=db port=5433 user=u password=p dbname=cars sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN: got %q, want %q", got, want)
	}
}
