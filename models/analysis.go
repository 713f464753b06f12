package models

import (
	"sort"
	"time"
)

// Coefficients are the fitted terms of the per-model price regression.
type Coefficients struct {
	Intercept    float64 `json:"intercept" yaml:"intercept"`
	BetaAge      float64 `json:"beta_age" yaml:"beta_age"`
	BetaLogKm    float64 `json:"beta_logkm" yaml:"beta_logkm"`
	BetaAgeLogKm float64 `json:"beta_age_logkm" yaml:"beta_age_logkm"`
}

// PriceModel is a pre-fitted regression for one (make_norm, model_base) pair.
// An empty ModelBase marks a make-level aggregate.
type PriceModel struct {
	MakeNorm     string       `json:"make_norm" yaml:"make_norm"`
	ModelBase    string       `json:"model_base" yaml:"model_base"`
	Coefficients Coefficients `json:"coefficients" yaml:"coefficients"`
	SampleCount  int          `json:"sample_count" yaml:"sample_count"`
	R2           float64      `json:"r2" yaml:"r2"`
	RMSE         float64      `json:"rmse" yaml:"rmse"`
	TrainedAt    time.Time    `json:"trained_at" yaml:"trained_at"`
}

// IsMakeLevel reports whether the model aggregates every model of a make.
func (m *PriceModel) IsMakeLevel() bool {
	return m.ModelBase == ""
}

// PricePoint is one plotted point: the target, a comparable or a curve sample.
type PricePoint struct {
	Kilometers float64 `json:"kilometers"`
	Price      float64 `json:"price"`
	Year       int     `json:"year,omitempty"`
	IsTarget   bool    `json:"isTarget,omitempty"`
	IsCurve    bool    `json:"isCurve,omitempty"`
	Name       string  `json:"name,omitempty"`
	URL        string  `json:"url,omitempty"`
}

// PriceCurves maps a model year to its price-vs-mileage samples.
type PriceCurves map[int][]PricePoint

// Years returns the curve years in ascending order.
func (c PriceCurves) Years() []int {
	years := make([]int, 0, len(c))
	for y := range c {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// PriceRange is the confidence band around the point estimate.
type PriceRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// PriceComparison relates an asking price to the estimate. PercentBelow is
// only meaningful when PercentValid is true; it is positive when the asking
// price is below the estimate.
type PriceComparison struct {
	AskingPrice  float64 `json:"askingPrice"`
	Difference   float64 `json:"difference"`
	PercentBelow float64 `json:"percentBelow"`
	PercentValid bool    `json:"percentValid"`
}

// CarAnalysis is the result of one analysis request. It holds no handles and is
// safe to serialise.
type CarAnalysis struct {
	TargetCar       PricePoint       `json:"targetCar"`
	SimilarListings []PricePoint     `json:"similarListings"`
	PriceCurves     PriceCurves      `json:"priceCurves"`
	PriceModel      PriceModel       `json:"priceModel"`
	EstimatedPrice  float64          `json:"estimatedPrice"`
	PriceRange      PriceRange       `json:"priceRange"`
	LowConfidence   bool             `json:"lowConfidence"`
	Comparison      *PriceComparison `json:"comparison,omitempty"`
}
