package storage

import (
	"context"

	"car-market-analyzer/models"
)

// ListingSource returns the listing pool for a normalised make/model. Sources
// are read-only; implementations may return inactive listings and leave the
// filtering to the analyzer.
type ListingSource interface {
	FetchListings(ctx context.Context, makeNorm, modelBase string) ([]*models.Listing, error)
}

// ModelStore looks up a pre-fitted price model by its normalised key. An empty
// modelBase asks for the make-level aggregate. found is false when no row
// exists; err is reserved for storage failures.
type ModelStore interface {
	LookupModel(ctx context.Context, makeNorm, modelBase string) (model *models.PriceModel, found bool, err error)
}

// PointWriter exports the plotted points of an analysis.
type PointWriter interface {
	WriteAnalysis(analysis *models.CarAnalysis) error
	Close() error
}
