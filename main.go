package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"car-market-analyzer/config"
	"car-market-analyzer/models"
	"car-market-analyzer/scraper/marketplace"
	"car-market-analyzer/services"
	"car-market-analyzer/storage"
	"car-market-analyzer/utils"
)

const exitInsufficientData = 2

func main() {
	app := &cli.App{
		Name:  "car-market-analyzer",
		Usage: "Estimate a used car's market value and compare it with live listings",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "source",
				Value:   "postgres",
				Usage:   "Listing source (postgres, fixtures, live)",
				EnvVars: []string{"LISTING_SOURCE"},
			},
			&cli.StringFlag{
				Name:    "fixtures",
				Usage:   "YAML file with models and listings; also serves models for the live source",
				EnvVars: []string{"FIXTURES_PATH"},
			},
		},
		Commands: []*cli.Command{
			analyzeCommand(),
			insightsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Estimate the price of one car and list comparable listings",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "make", Usage: "Car make, e.g. Toyota", Required: true},
			&cli.StringFlag{Name: "model", Usage: "Car model, e.g. Corolla", Required: true},
			&cli.IntFlag{Name: "year", Usage: "Model year", Required: true},
			&cli.Float64Flag{Name: "km", Usage: "Odometer reading in kilometers"},
			&cli.Float64Flag{Name: "price", Usage: "Asking price to compare against the estimate"},
			&cli.StringFlag{Name: "id", Usage: "Listing ID of the target, excluded from comparables"},
			&cli.StringFlag{Name: "csv", Usage: "Write plotted points to this CSV file (defaults to CSV_OUTPUT_PATH)"},
			&cli.BoolFlag{Name: "no-csv", Usage: "Skip the CSV export"},
			&cli.BoolFlag{Name: "json", Usage: "Print the analysis as JSON instead of a report"},
		},
		Action: runAnalyze,
	}
}

func insightsCommand() *cli.Command {
	return &cli.Command{
		Name:  "insights",
		Usage: "Summarise the listing pool of a make/model",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "make", Usage: "Car make", Required: true},
			&cli.StringFlag{Name: "model", Usage: "Car model", Required: true},
		},
		Action: runInsights,
	}
}

func runAnalyze(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := newLogger(c, cfg)

	target := models.TargetVehicle{
		ID:         c.String("id"),
		Make:       c.String("make"),
		Model:      c.String("model"),
		Year:       c.Int("year"),
		Kilometers: c.Float64("km"),
	}
	if c.IsSet("price") {
		p := c.Float64("price")
		target.Price = &p
	}

	b, err := openBackends(ctx, c, cfg, logger, true)
	if err != nil {
		return err
	}
	defer b.Close()

	analyzer := services.NewAnalyzer(services.AnalyzerOptions{
		ComparableLimit:          cfg.Engine.ComparableLimit,
		MinSampleCount:           cfg.Engine.MinSampleCount,
		LowConfidenceSampleCount: cfg.Engine.LowConfidenceSampleCount,
		BandFraction:             cfg.Engine.BandFraction,
		CurveStepKm:              cfg.Engine.CurveStepKm,
	})
	market := services.NewMarketService(
		services.NewModelRepository(b.models, logger),
		b.listings,
		analyzer,
		logger,
	)
	report := services.NewInsightService(logger)

	analysis, err := market.Analyze(ctx, target)
	if errors.Is(err, services.ErrInsufficientData) {
		report.PrintInsufficient(target, err)
		return cli.Exit("", exitInsufficientData)
	}
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if !c.Bool("no-csv") {
		path := c.String("csv")
		if path == "" {
			path = cfg.CSVOutputPath
		}
		if err := writeCSV(path, analysis); err != nil {
			logger.Error("CSV export failed: %v", err)
		} else {
			logger.Info("Plotted points saved to %s", path)
		}
	}

	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(analysis)
	}

	report.PrintAnalysis(analysis)
	return nil
}

func runInsights(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := newLogger(c, cfg)

	b, err := openBackends(ctx, c, cfg, logger, false)
	if err != nil {
		return err
	}
	defer b.Close()

	carMake, carModel := c.String("make"), c.String("model")
	pool, err := b.listings.FetchListings(ctx, services.NormalizeKey(carMake), services.NormalizeKey(carModel))
	if err != nil {
		return fmt.Errorf("fetch listings: %w", err)
	}

	svc := services.NewInsightService(logger)
	svc.Print(svc.Generate(carMake, carModel, pool))
	return nil
}

// newLogger builds the logger from LOG_LEVEL, the --log-level flag winning.
// JSON output keeps stdout clean by sending every log line to stderr.
func newLogger(c *cli.Context, cfg *config.Config) *utils.Logger {
	level := cfg.LogLevel
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	if c.Bool("json") {
		return utils.NewLoggerTo(os.Stderr, os.Stderr, utils.ParseLevel(level))
	}
	logger := utils.NewLogger()
	logger.SetLevel(utils.ParseLevel(level))
	return logger
}

// backends pairs the listing source with the model store for one run.
type backends struct {
	listings storage.ListingSource
	models   storage.ModelStore
	closers  []func() error
}

func (b *backends) Close() {
	for _, fn := range b.closers {
		_ = fn()
	}
}

// openBackends resolves --source. The live source only scrapes listings, so
// its models come from --fixtures when given and from PostgreSQL otherwise.
func openBackends(ctx context.Context, c *cli.Context, cfg *config.Config, logger *utils.Logger, withModels bool) (*backends, error) {
	b := &backends{}
	fixtures := c.String("fixtures")

	openFixtures := func() (*storage.MemoryStore, error) {
		if fixtures == "" {
			return nil, errors.New("--fixtures is required for the fixtures source")
		}
		store, err := storage.LoadFixtures(fixtures, services.NormalizeKey)
		if err != nil {
			return nil, err
		}
		logger.With("fixtures").Info("Loaded %s", fixtures)
		return store, nil
	}
	openPostgres := func() (*storage.PostgresStore, error) {
		store, err := storage.NewPostgresStore(ctx, cfg.DSN(), cfg.Engine.PoolCap, &utils.RetryConfig{
			MaxAttempts: cfg.Scraper.MaxRetries,
			BaseDelay:   time.Second,
			Logger:      logger,
		})
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			logger.Error("Make sure the database is running, or use --source fixtures")
			return nil, err
		}
		b.closers = append(b.closers, store.Close)
		return store, nil
	}

	switch source := c.String("source"); source {
	case "postgres":
		store, err := openPostgres()
		if err != nil {
			return nil, err
		}
		b.listings, b.models = store, store
	case "fixtures":
		store, err := openFixtures()
		if err != nil {
			return nil, err
		}
		b.listings, b.models = store, store
	case "live":
		b.listings = marketplace.New(cfg.Scraper, logger)
		if !withModels {
			break
		}
		if fixtures != "" {
			store, err := openFixtures()
			if err != nil {
				return nil, err
			}
			b.models = store
			break
		}
		store, err := openPostgres()
		if err != nil {
			b.Close()
			return nil, err
		}
		b.models = store
	default:
		return nil, fmt.Errorf("unknown source %q (want postgres, fixtures or live)", source)
	}
	return b, nil
}

func writeCSV(path string, a *models.CarAnalysis) error {
	var w storage.PointWriter
	w, err := storage.NewCSVWriter(path)
	if err != nil {
		return err
	}
	if err := w.WriteAnalysis(a); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
