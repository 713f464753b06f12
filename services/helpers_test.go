package services

import (
	"bytes"
	"time"

	"car-market-analyzer/models"
	"car-market-analyzer/utils"
)

func newTestLogger() *utils.Logger {
	return utils.NewLoggerTo(&bytes.Buffer{}, &bytes.Buffer{}, utils.LevelDebug)
}

func fixedNow() time.Time {
	return time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
}

// corollaModel carries the worked example coefficients.
func corollaModel() *models.PriceModel {
	return &models.PriceModel{
		MakeNorm:  "toyota",
		ModelBase: "corolla",
		Coefficients: models.Coefficients{
			Intercept:    2_000_000,
			BetaAge:      -50_000,
			BetaLogKm:    -150_000,
			BetaAgeLogKm: 2_000,
		},
		SampleCount: 120,
		R2:          0.81,
		TrainedAt:   time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC),
	}
}

func listing(id string, year int, km, price float64, scrapedAt time.Time) *models.Listing {
	return &models.Listing{
		ID:         id,
		Make:       "Toyota",
		Model:      "Corolla",
		Year:       year,
		Kilometers: km,
		Price:      price,
		URL:        "https://cars.example.com/ad/" + id,
		ScrapedAt:  scrapedAt,
		IsActive:   true,
	}
}

func price(v float64) *float64 { return &v }
