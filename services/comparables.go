package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"car-market-analyzer/models"
)

// SelectComparables picks at most limit listings comparable to target: active,
// same make/model join key, not the target itself and carrying a price. The
// freshest listings come first; ties go to the closest year, then the closest
// mileage, then the lowest ID.
func SelectComparables(target models.TargetVehicle, pool []*models.Listing, limit int) []models.PricePoint {
	if limit <= 0 || len(pool) == 0 {
		return []models.PricePoint{}
	}

	key := JoinKey(target.Make, target.Model)
	candidates := make([]*models.Listing, 0, len(pool))
	for _, l := range pool {
		if l == nil || !l.IsActive {
			continue
		}
		if target.ID != "" && l.ID == target.ID {
			continue
		}
		// A zero price is a missing price, not a free car.
		if l.Price <= 0 {
			continue
		}
		if JoinKey(l.Make, l.Model) != key {
			continue
		}
		candidates = append(candidates, l)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.ScrapedAt.Equal(b.ScrapedAt) {
			return a.ScrapedAt.After(b.ScrapedAt)
		}
		if da, db := yearDistance(a.Year, target.Year), yearDistance(b.Year, target.Year); da != db {
			return da < db
		}
		if da, db := math.Abs(a.Kilometers-target.Kilometers), math.Abs(b.Kilometers-target.Kilometers); da != db {
			return da < db
		}
		return a.ID < b.ID
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	points := make([]models.PricePoint, 0, len(candidates))
	for _, l := range candidates {
		points = append(points, models.PricePoint{
			Kilometers: l.Kilometers,
			Price:      l.Price,
			Year:       l.Year,
			Name:       listingName(l),
			URL:        l.URL,
		})
	}
	return points
}

func yearDistance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

func listingName(l *models.Listing) string {
	if name := strings.TrimSpace(l.DisplayName); name != "" {
		return name
	}
	carMake := l.DisplayMake
	if carMake == "" {
		carMake = l.Make
	}
	return strings.TrimSpace(fmt.Sprintf("%d %s %s", l.Year, carMake, l.Model))
}
