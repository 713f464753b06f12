package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"car-market-analyzer/models"
	"car-market-analyzer/storage"
	"car-market-analyzer/utils"
)

// MarketService fetches a target's price model and listing pool concurrently
// and hands both to the Analyzer.
type MarketService struct {
	models   *ModelRepository
	listings storage.ListingSource
	analyzer *Analyzer
	logger   *utils.Logger
}

// NewMarketService wires the collaborators of one analysis run.
func NewMarketService(repo *ModelRepository, listings storage.ListingSource, analyzer *Analyzer, logger *utils.Logger) *MarketService {
	return &MarketService{models: repo, listings: listings, analyzer: analyzer, logger: logger.With("market")}
}

// Analyze runs one analysis. A missing model is reported as an
// *InsufficientDataError; fetch failures are returned as-is.
func (s *MarketService) Analyze(ctx context.Context, target models.TargetVehicle) (*models.CarAnalysis, error) {
	var (
		model *models.PriceModel
		pool  []*models.Listing
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := s.models.FindModel(gctx, target.Make, target.Model)
		if errors.Is(err, ErrModelNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		model = m
		return nil
	})
	g.Go(func() error {
		l, err := s.listings.FetchListings(gctx, NormalizeKey(target.Make), NormalizeKey(target.Model))
		if err != nil {
			return fmt.Errorf("fetch listings: %w", err)
		}
		pool = l
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Debug("%s %s: model found=%t, pool=%d listings",
		target.Make, target.Model, model != nil, len(pool))

	analysis, err := s.analyzer.Analyze(target, model, pool)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Estimated %d %s %s at %.0f (%d comparables, %d curves)",
		target.Year, target.Make, target.Model, analysis.EstimatedPrice,
		len(analysis.SimilarListings), len(analysis.PriceCurves))
	return analysis, nil
}

// Pool returns the listing pool for a make/model without analysing it.
func (s *MarketService) Pool(ctx context.Context, carMake, carModel string) ([]*models.Listing, error) {
	pool, err := s.listings.FetchListings(ctx, NormalizeKey(carMake), NormalizeKey(carModel))
	if err != nil {
		return nil, fmt.Errorf("fetch listings: %w", err)
	}
	return pool, nil
}
