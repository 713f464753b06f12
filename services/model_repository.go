package services

import (
	"context"
	"fmt"

	"car-market-analyzer/models"
	"car-market-analyzer/storage"
	"car-market-analyzer/utils"
)

// ModelRepository finds the most specific fitted model for a make/model.
type ModelRepository struct {
	store  storage.ModelStore
	logger *utils.Logger
}

// NewModelRepository wraps a ModelStore.
func NewModelRepository(store storage.ModelStore, logger *utils.Logger) *ModelRepository {
	return &ModelRepository{store: store, logger: logger.With("models")}
}

// FindModel returns the model-level fit for (make, model) when one exists,
// else the make-level aggregate of the same make, else ErrModelNotFound.
func (r *ModelRepository) FindModel(ctx context.Context, carMake, carModel string) (*models.PriceModel, error) {
	makeNorm := NormalizeKey(carMake)
	modelBase := NormalizeKey(carModel)
	if makeNorm == "" {
		return nil, fmt.Errorf("%w: empty make", ErrModelNotFound)
	}

	if modelBase != "" {
		m, found, err := r.store.LookupModel(ctx, makeNorm, modelBase)
		if err != nil {
			return nil, fmt.Errorf("lookup model %s|%s: %w", makeNorm, modelBase, err)
		}
		if found && m != nil && m.MakeNorm == makeNorm {
			return m, nil
		}
	}

	m, found, err := r.store.LookupModel(ctx, makeNorm, "")
	if err != nil {
		return nil, fmt.Errorf("lookup make model %s: %w", makeNorm, err)
	}
	if found && m != nil && m.MakeNorm == makeNorm {
		r.logger.Debug("No fit for %s|%s, using make-level model (%d samples)",
			makeNorm, modelBase, m.SampleCount)
		return m, nil
	}

	return nil, fmt.Errorf("%w: %s|%s", ErrModelNotFound, makeNorm, modelBase)
}
