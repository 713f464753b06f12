package services

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"car-market-analyzer/models"
)

// Price range band. With a model RMSE and a positive estimate the band is
// RMSE/estimate clamped to [MinBandFraction, MaxBandFraction]; otherwise the
// flat DefaultBandFraction applies. Bounds never go below zero.
const (
	DefaultBandFraction = 0.10
	MinBandFraction     = 0.05
	MaxBandFraction     = 0.35
)

const (
	DefaultComparableLimit          = 20
	DefaultMinSampleCount           = 5
	DefaultLowConfidenceSampleCount = 30

	minCurveMaxKm   = 100000.0
	curveKmHeadroom = 1.25
	curveKmRounding = 10000.0
)

// AnalyzerOptions tunes an Analyzer. Zero values take the defaults above.
type AnalyzerOptions struct {
	ComparableLimit          int
	MinSampleCount           int
	LowConfidenceSampleCount int
	BandFraction             float64
	CurveStepKm              float64
	Now                      func() time.Time
}

// Analyzer assembles a CarAnalysis from an already fetched model and listing
// pool. It does no I/O and holds no per-request state.
type Analyzer struct {
	opts AnalyzerOptions
}

// NewAnalyzer returns an Analyzer with defaults filled in.
func NewAnalyzer(opts AnalyzerOptions) *Analyzer {
	if opts.ComparableLimit <= 0 {
		opts.ComparableLimit = DefaultComparableLimit
	}
	if opts.MinSampleCount <= 0 {
		opts.MinSampleCount = DefaultMinSampleCount
	}
	if opts.LowConfidenceSampleCount <= 0 {
		opts.LowConfidenceSampleCount = DefaultLowConfidenceSampleCount
	}
	if opts.BandFraction <= 0 || opts.BandFraction >= 1 {
		opts.BandFraction = DefaultBandFraction
	}
	if opts.CurveStepKm <= 0 {
		opts.CurveStepKm = DefaultCurveStepKm
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Analyzer{opts: opts}
}

// Analyze estimates the target's market value against model and ranks
// comparables from pool. A nil model, an under-sampled model or a model that
// cannot be evaluated yields an *InsufficientDataError.
func (a *Analyzer) Analyze(target models.TargetVehicle, model *models.PriceModel, pool []*models.Listing) (*models.CarAnalysis, error) {
	estimator := NewEstimator(a.opts.Now())

	if err := validateTarget(target, estimator.CurrentYear); err != nil {
		return nil, err
	}
	if model == nil {
		return nil, &InsufficientDataError{Reason: fmt.Sprintf("no price model for %q %q", target.Make, target.Model)}
	}
	if model.SampleCount < a.opts.MinSampleCount {
		return nil, &InsufficientDataError{Reason: fmt.Sprintf("model %s/%s backed by %d samples, need %d",
			model.MakeNorm, model.ModelBase, model.SampleCount, a.opts.MinSampleCount)}
	}

	estimate, err := estimator.Estimate(model, target.Year, target.Kilometers)
	if err != nil {
		if errors.Is(err, ErrInvalidModel) {
			return nil, &InsufficientDataError{Reason: err.Error()}
		}
		return nil, err
	}

	targetPoint := models.PricePoint{
		Kilometers: target.Kilometers,
		Price:      estimate,
		Year:       target.Year,
		IsTarget:   true,
		Name:       fmt.Sprintf("%d %s %s", target.Year, target.Make, target.Model),
	}
	var comparison *models.PriceComparison
	if target.Price != nil {
		targetPoint.Price = *target.Price
		comparison = ComparePrice(*target.Price, estimate)
	}

	similar := SelectComparables(target, pool, a.opts.ComparableLimit)

	years, maxKm := curveInputs(target, similar)
	curves := NewCurveBuilder(estimator, a.opts.CurveStepKm).Build(model, years, KmRange{Min: 0, Max: curveMaxKm(maxKm)})

	return &models.CarAnalysis{
		TargetCar:       targetPoint,
		SimilarListings: similar,
		PriceCurves:     curves,
		PriceModel:      *model,
		EstimatedPrice:  estimate,
		PriceRange:      PriceRangeFor(estimate, model.RMSE, a.opts.BandFraction),
		LowConfidence:   model.SampleCount < a.opts.LowConfidenceSampleCount,
		Comparison:      comparison,
	}, nil
}

// PriceRangeFor derives the confidence band around estimate. See the band
// constants for the rule; flat is the fraction used without an RMSE.
func PriceRangeFor(estimate, rmse, flat float64) models.PriceRange {
	band := flat
	if rmse > 0 && estimate > 0 {
		band = math.Min(MaxBandFraction, math.Max(MinBandFraction, rmse/estimate))
	}
	return models.PriceRange{
		Low:  math.Max(0, estimate*(1-band)),
		High: math.Max(0, estimate*(1+band)),
	}
}

// ComparePrice relates an asking price to an estimate. The percentage is
// flagged invalid when the estimate is not strictly positive.
func ComparePrice(asking, estimate float64) *models.PriceComparison {
	c := &models.PriceComparison{
		AskingPrice: asking,
		Difference:  asking - estimate,
	}
	if estimate > 0 {
		c.PercentBelow = (estimate - asking) / estimate * 100
		c.PercentValid = true
	}
	return c
}

func validateTarget(t models.TargetVehicle, currentYear int) error {
	if t.Year < 1000 || t.Year > 9999 {
		return fmt.Errorf("%w: year %d is not a 4-digit year", ErrInvalidVehicle, t.Year)
	}
	if t.Year > currentYear {
		return fmt.Errorf("%w: year %d is after %d", ErrInvalidVehicle, t.Year, currentYear)
	}
	if t.Kilometers < 0 || math.IsNaN(t.Kilometers) || math.IsInf(t.Kilometers, 0) {
		return fmt.Errorf("%w: kilometers %v", ErrInvalidVehicle, t.Kilometers)
	}
	if t.Price != nil && (*t.Price < 0 || math.IsNaN(*t.Price) || math.IsInf(*t.Price, 0)) {
		return fmt.Errorf("%w: price %v", ErrInvalidVehicle, *t.Price)
	}
	return nil
}

// curveInputs returns the sorted distinct years of target and comparables and
// the largest mileage among them.
func curveInputs(target models.TargetVehicle, similar []models.PricePoint) ([]int, float64) {
	seen := map[int]struct{}{target.Year: {}}
	years := []int{target.Year}
	maxKm := target.Kilometers

	for _, p := range similar {
		if _, ok := seen[p.Year]; !ok {
			seen[p.Year] = struct{}{}
			years = append(years, p.Year)
		}
		if p.Kilometers > maxKm {
			maxKm = p.Kilometers
		}
	}
	sort.Ints(years)
	return years, maxKm
}

func curveMaxKm(observed float64) float64 {
	scaled := math.Ceil(observed*curveKmHeadroom/curveKmRounding) * curveKmRounding
	return math.Max(minCurveMaxKm, scaled)
}
