package services

import (
	"math"

	"car-market-analyzer/models"
)

const (
	DefaultCurveStepKm = 5000.0
	MinCurvePoints     = 20
	MaxCurvePoints     = 50
)

// KmRange is the inclusive mileage span a curve is sampled over.
type KmRange struct {
	Min float64
	Max float64
}

// CurveBuilder samples the estimator across a mileage range per model year.
type CurveBuilder struct {
	estimator *Estimator
	stepKm    float64
}

// NewCurveBuilder returns a builder using stepKm between samples; a
// non-positive step falls back to DefaultCurveStepKm.
func NewCurveBuilder(estimator *Estimator, stepKm float64) *CurveBuilder {
	if stepKm <= 0 || math.IsNaN(stepKm) || math.IsInf(stepKm, 0) {
		stepKm = DefaultCurveStepKm
	}
	return &CurveBuilder{estimator: estimator, stepKm: stepKm}
}

// Build returns one curve per year. Every curve holds at least two points
// ordered by mileage; a year that cannot be evaluated at every sample is left
// out rather than emitted partially.
func (b *CurveBuilder) Build(model *models.PriceModel, years []int, kmRange KmRange) models.PriceCurves {
	curves := make(models.PriceCurves, len(years))
	samples := b.samples(kmRange)

	for _, year := range years {
		if _, done := curves[year]; done {
			continue
		}

		points := make([]models.PricePoint, 0, len(samples))
		ok := true
		for _, km := range samples {
			price, err := b.estimator.Estimate(model, year, km)
			if err != nil {
				ok = false
				break
			}
			points = append(points, models.PricePoint{
				Kilometers: km,
				Price:      price,
				Year:       year,
				IsCurve:    true,
			})
		}
		if ok {
			curves[year] = points
		}
	}
	return curves
}

// samples lists the mileages to evaluate: Min, Min+step, ..., always ending
// at Max. The step narrows so a curve has at least MinCurvePoints samples and
// widens when it would need more than MaxCurvePoints. A stepped sample closer
// than half a step to Max is dropped in favour of Max.
func (b *CurveBuilder) samples(r KmRange) []float64 {
	lo := math.Max(0, r.Min)
	hi := r.Max
	if math.IsNaN(lo) || math.IsInf(lo, 0) {
		lo = 0
	}
	if math.IsNaN(hi) || math.IsInf(hi, 0) || hi <= lo {
		hi = lo + b.stepKm
	}

	span := hi - lo
	step := math.Min(b.stepKm, span/float64(MinCurvePoints-1))
	if n := math.Ceil(span/step) + 1; n > MaxCurvePoints {
		step = span / float64(MaxCurvePoints-1)
	}

	out := make([]float64, 0, MaxCurvePoints)
	for i := 0; len(out) < MaxCurvePoints-1; i++ {
		km := lo + float64(i)*step
		if hi-km < step/2 {
			break
		}
		out = append(out, km)
	}
	return append(out, hi)
}
