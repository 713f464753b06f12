package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. Values come from .env / the
// process environment, then an optional YAML tuning file named by
// ANALYZER_CONFIG overrides the engine and scraper sections.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	Engine  EngineConfig  `yaml:"engine"`
	Scraper ScraperConfig `yaml:"scraper"`

	CSVOutputPath string
	LogLevel      string
}

// EngineConfig tunes comparable selection, confidence thresholds and curves.
type EngineConfig struct {
	ComparableLimit          int     `yaml:"comparableLimit"`
	PoolCap                  int     `yaml:"poolCap"`
	MinSampleCount           int     `yaml:"minSampleCount"`
	LowConfidenceSampleCount int     `yaml:"lowConfidenceSampleCount"`
	BandFraction             float64 `yaml:"bandFraction"`
	CurveStepKm              float64 `yaml:"curveStepKm"`
}

// ScraperConfig drives the live marketplace listing source. SearchURLTemplate
// holds {query} and {page} placeholders.
type ScraperConfig struct {
	SearchURLTemplate string `yaml:"searchUrlTemplate"`
	PagesToScrape     int    `yaml:"pagesToScrape"`
	MaxConcurrency    int    `yaml:"maxConcurrency"`
	RateLimitMs       int    `yaml:"rateLimitMs"`
	MaxRetries        int    `yaml:"maxRetries"`
	ChromeBin         string `yaml:"chromeBin"`

	CardSelector  string `yaml:"cardSelector"`
	TitleSelector string `yaml:"titleSelector"`
	PriceSelector string `yaml:"priceSelector"`
	KmSelector    string `yaml:"kmSelector"`
	YearSelector  string `yaml:"yearSelector"`
}

// Load reads the .env file, the environment and the optional tuning file.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "market"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "market123"),
		PostgresDB:       getEnv("POSTGRES_DB", "car_market"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		Engine: EngineConfig{
			ComparableLimit:          getEnvInt("COMPARABLE_LIMIT", 20),
			PoolCap:                  getEnvInt("POOL_CAP", 500),
			MinSampleCount:           getEnvInt("MIN_SAMPLE_COUNT", 5),
			LowConfidenceSampleCount: getEnvInt("LOW_CONFIDENCE_SAMPLE_COUNT", 30),
			BandFraction:             getEnvFloat("BAND_FRACTION", 0.10),
			CurveStepKm:              getEnvFloat("CURVE_STEP_KM", 5000),
		},
		Scraper: ScraperConfig{
			SearchURLTemplate: getEnv("SEARCH_URL_TEMPLATE", "https://www.finn.no/mobility/search/car?q={query}&page={page}"),
			PagesToScrape:     getEnvInt("PAGES_TO_SCRAPE", 2),
			MaxConcurrency:    getEnvInt("MAX_CONCURRENCY", 3),
			RateLimitMs:       getEnvInt("RATE_LIMIT_MS", 2000),
			MaxRetries:        getEnvInt("MAX_RETRIES", 3),
			ChromeBin:         getEnv("CHROME_BIN", ""),

			CardSelector:  getEnv("CARD_SELECTOR", "article"),
			TitleSelector: getEnv("TITLE_SELECTOR", "h2"),
			PriceSelector: getEnv("PRICE_SELECTOR", "[data-testid='price']"),
			KmSelector:    getEnv("KM_SELECTOR", "[data-testid='mileage']"),
			YearSelector:  getEnv("YEAR_SELECTOR", "[data-testid='year']"),
		},

		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", "./output/analysis_points.csv"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}

	if path := os.Getenv("ANALYZER_CONFIG"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			log.Printf("[config] %v (keeping env values)", err)
		}
	}

	return cfg
}

// ApplyFile overlays the engine and scraper sections of a YAML file. Zero
// values in the file leave the current setting alone.
func (c *Config) ApplyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}

	var file struct {
		Engine  EngineConfig  `yaml:"engine"`
		Scraper ScraperConfig `yaml:"scraper"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("cannot parse %s: %w", path, err)
	}

	c.Engine = mergeEngine(c.Engine, file.Engine)
	c.Scraper = mergeScraper(c.Scraper, file.Scraper)
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func mergeEngine(base, override EngineConfig) EngineConfig {
	if override.ComparableLimit > 0 {
		base.ComparableLimit = override.ComparableLimit
	}
	if override.PoolCap > 0 {
		base.PoolCap = override.PoolCap
	}
	if override.MinSampleCount > 0 {
		base.MinSampleCount = override.MinSampleCount
	}
	if override.LowConfidenceSampleCount > 0 {
		base.LowConfidenceSampleCount = override.LowConfidenceSampleCount
	}
	if override.BandFraction > 0 {
		base.BandFraction = override.BandFraction
	}
	if override.CurveStepKm > 0 {
		base.CurveStepKm = override.CurveStepKm
	}
	return base
}

func mergeScraper(base, override ScraperConfig) ScraperConfig {
	if override.SearchURLTemplate != "" {
		base.SearchURLTemplate = override.SearchURLTemplate
	}
	if override.PagesToScrape > 0 {
		base.PagesToScrape = override.PagesToScrape
	}
	if override.MaxConcurrency > 0 {
		base.MaxConcurrency = override.MaxConcurrency
	}
	if override.RateLimitMs > 0 {
		base.RateLimitMs = override.RateLimitMs
	}
	if override.MaxRetries > 0 {
		base.MaxRetries = override.MaxRetries
	}
	if override.ChromeBin != "" {
		base.ChromeBin = override.ChromeBin
	}
	if override.CardSelector != "" {
		base.CardSelector = override.CardSelector
	}
	if override.TitleSelector != "" {
		base.TitleSelector = override.TitleSelector
	}
	if override.PriceSelector != "" {
		base.PriceSelector = override.PriceSelector
	}
	if override.KmSelector != "" {
		base.KmSelector = override.KmSelector
	}
	if override.YearSelector != "" {
		base.YearSelector = override.YearSelector
	}
	return base
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}
