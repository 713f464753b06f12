package services

import (
	"errors"
	"math"
	"testing"

	"car-market-analyzer/models"
)

func TestEstimateWorkedExample(t *testing.T) {
	e := &Estimator{CurrentYear: 2024}

	got, err := e.Estimate(corollaModel(), 2020, 50_000)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	logKm := math.Log(50_001)
	want := 2_000_000 - 50_000*4.0 - 150_000*logKm + 2_000*4*logKm
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("Estimate = %.6f; want %.6f", got, want)
	}
	// ln(50001) rounded to 10.82 gives ≈263 560.
	if math.Abs(got-263_560) > 50 {
		t.Errorf("Estimate = %.2f; want ≈263560", got)
	}
}

func TestEstimateNegativeMileageTreatedAsZero(t *testing.T) {
	e := &Estimator{CurrentYear: 2024}
	m := corollaModel()

	neg, err := e.Estimate(m, 2020, -5_000)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	zero, _ := e.Estimate(m, 2020, 0)
	if neg != zero {
		t.Errorf("negative km: got %.2f, want %.2f", neg, zero)
	}
	if want := 2_000_000 - 50_000*4.0; zero != want {
		t.Errorf("zero km: got %.2f, want %.2f", zero, want)
	}
}

func TestEstimateErrors(t *testing.T) {
	e := &Estimator{CurrentYear: 2024}

	nanModel := corollaModel()
	nanModel.Coefficients.BetaAge = math.NaN()
	infModel := corollaModel()
	infModel.Coefficients.Intercept = math.Inf(1)
	overflow := corollaModel()
	overflow.Coefficients.Intercept = math.MaxFloat64
	overflow.Coefficients.BetaAge = math.MaxFloat64

	tests := []struct {
		name  string
		model *models.PriceModel
		year  int
		km    float64
		want  error
	}{
		{"nil model", nil, 2020, 1000, ErrInvalidModel},
		{"nan coefficient", nanModel, 2020, 1000, ErrInvalidModel},
		{"inf coefficient", infModel, 2020, 1000, ErrInvalidModel},
		{"overflowing result", overflow, 2020, 1000, ErrInvalidModel},
		{"future year", corollaModel(), 2025, 1000, ErrInvalidVehicle},
		{"nan mileage", corollaModel(), 2020, math.NaN(), ErrInvalidVehicle},
	}

	for _, tt := range tests {
		got, err := e.Estimate(tt.model, tt.year, tt.km)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v; want %v", tt.name, err, tt.want)
		}
		if got != 0 {
			t.Errorf("%s: value %.2f returned alongside error", tt.name, got)
		}
	}
}

func TestEstimateFiniteForValidInputs(t *testing.T) {
	e := &Estimator{CurrentYear: 2024}
	m := corollaModel()

	for year := 1960; year <= 2024; year += 4 {
		for _, km := range []float64{0, 1, 999, 50_000, 400_000, 5_000_000} {
			v, err := e.Estimate(m, year, km)
			if err != nil {
				t.Fatalf("Estimate(%d, %.0f): %v", year, km, err)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("Estimate(%d, %.0f) not finite: %v", year, km, v)
			}
		}
	}
}

// Holds only for well-behaved fits: with beta_logkm > 0 and no interaction
// term, price does not fall as mileage rises.
func TestEstimateMonotonicInMileage(t *testing.T) {
	e := &Estimator{CurrentYear: 2024}
	m := &models.PriceModel{Coefficients: models.Coefficients{Intercept: 100_000, BetaAge: -5_000, BetaLogKm: 1_000}}

	prev := math.Inf(-1)
	for km := 0.0; km <= 300_000; km += 7_500 {
		v, err := e.Estimate(m, 2018, km)
		if err != nil {
			t.Fatalf("Estimate: %v", err)
		}
		if v < prev {
			t.Fatalf("estimate decreased at %.0f km: %.2f < %.2f", km, v, prev)
		}
		prev = v
	}
}

func TestEstimateNegativeResultNotClamped(t *testing.T) {
	e := &Estimator{CurrentYear: 2024}
	m := &models.PriceModel{Coefficients: models.Coefficients{Intercept: 10_000, BetaAge: -5_000}}

	v, err := e.Estimate(m, 2014, 0)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if v != -40_000 {
		t.Errorf("Estimate = %.2f; want -40000", v)
	}
}

func TestNewEstimatorUsesCalendarYear(t *testing.T) {
	if got := NewEstimator(fixedNow()).CurrentYear; got != 2024 {
		t.Errorf("CurrentYear = %d; want 2024", got)
	}
}
