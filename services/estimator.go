package services

import (
	"fmt"
	"math"
	"time"

	"car-market-analyzer/models"
)

// Estimator evaluates a fitted price regression:
//
//	age   = currentYear - year
//	logKm = ln(1 + max(0, km))
//	price = intercept + beta_age*age + beta_logkm*logKm + beta_age_logkm*age*logKm
//
// It is pure; CurrentYear pins the evaluation year.
type Estimator struct {
	CurrentYear int
}

// NewEstimator returns an Estimator evaluating at now's calendar year.
func NewEstimator(now time.Time) *Estimator {
	return &Estimator{CurrentYear: now.Year()}
}

// Estimate returns the modelled price for a vehicle of the given year and
// mileage. Negative results are returned as-is.
func (e *Estimator) Estimate(model *models.PriceModel, year int, kilometers float64) (float64, error) {
	if model == nil {
		return 0, fmt.Errorf("%w: no model", ErrInvalidModel)
	}
	if !coefficientsFinite(model.Coefficients) {
		return 0, fmt.Errorf("%w: non-finite coefficient for %s/%s",
			ErrInvalidModel, model.MakeNorm, model.ModelBase)
	}
	if math.IsNaN(kilometers) || math.IsInf(kilometers, 0) {
		return 0, fmt.Errorf("%w: kilometers %v", ErrInvalidVehicle, kilometers)
	}

	age := e.CurrentYear - year
	if age < 0 {
		return 0, fmt.Errorf("%w: year %d is after %d", ErrInvalidVehicle, year, e.CurrentYear)
	}

	c := model.Coefficients
	a := float64(age)
	logKm := math.Log1p(math.Max(0, kilometers))

	price := c.Intercept + c.BetaAge*a + c.BetaLogKm*logKm + c.BetaAgeLogKm*(a*logKm)
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("%w: non-finite estimate for %s/%s",
			ErrInvalidModel, model.MakeNorm, model.ModelBase)
	}
	return price, nil
}

func coefficientsFinite(c models.Coefficients) bool {
	for _, v := range []float64{c.Intercept, c.BetaAge, c.BetaLogKm, c.BetaAgeLogKm} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
