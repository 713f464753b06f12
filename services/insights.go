package services

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"car-market-analyzer/models"
	"car-market-analyzer/utils"
)

// InsightService summarises listing pools and prints analysis reports.
type InsightService struct {
	logger *utils.Logger
	out    io.Writer
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger.With("insights"), out: os.Stdout}
}

// WithOutput redirects printed reports.
func (s *InsightService) WithOutput(w io.Writer) *InsightService {
	s.out = w
	return s
}

// Generate computes pool statistics for the active listings of one
// make/model. Listings without a price count towards the total only.
func (s *InsightService) Generate(carMake, carModel string, listings []*models.Listing) *models.MarketReport {
	report := &models.MarketReport{
		Make:           carMake,
		Model:          carModel,
		ListingsByYear: make(map[int]int),
	}

	key := JoinKey(carMake, carModel)
	var priced []*models.Listing
	var totalKm float64

	for _, l := range listings {
		if !l.IsActive || JoinKey(l.Make, l.Model) != key {
			continue
		}
		report.TotalListings++
		totalKm += l.Kilometers
		if l.Year > 0 {
			report.ListingsByYear[l.Year]++
		}
		if l.Price > 0 {
			priced = append(priced, l)
		}
	}

	if report.TotalListings > 0 {
		report.AverageKm = round2(totalKm / float64(report.TotalListings))
	}

	report.PricedListings = len(priced)
	if len(priced) > 0 {
		report.Cheapest, report.MostExpensive = priced[0], priced[0]
		var total float64
		for _, l := range priced {
			total += l.Price
			if l.Price < report.Cheapest.Price {
				report.Cheapest = l
			}
			if l.Price > report.MostExpensive.Price {
				report.MostExpensive = l
			}
		}
		report.AveragePrice = round2(total / float64(len(priced)))
		report.MinPrice = round2(report.Cheapest.Price)
		report.MaxPrice = round2(report.MostExpensive.Price)
	}

	s.logger.Debug("%s %s: %d listings, %d priced",
		carMake, carModel, report.TotalListings, report.PricedListings)
	return report
}

// Print writes a market report.
func (s *InsightService) Print(r *models.MarketReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)
	w := s.out

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 MARKET INSIGHTS: %s %s\033[0m\n", strings.ToUpper(r.Make), strings.ToUpper(r.Model))
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Active listings : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Fprintf(w, "  With a price    : \033[1m%d\033[0m\n", r.PricedListings)
	fmt.Fprintf(w, "  Average mileage : \033[1m%s km\033[0m\n", formatAmount(r.AverageKm))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Asking Prices\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.PricedListings > 0 {
		fmt.Fprintf(w, "  Average : \033[1;32m%s\033[0m\n", formatAmount(r.AveragePrice))
		fmt.Fprintf(w, "  Minimum : \033[1;32m%s\033[0m  %s\n", formatAmount(r.MinPrice), truncate(r.Cheapest.DisplayName, 34))
		fmt.Fprintf(w, "  Maximum : \033[1;32m%s\033[0m  %s\n", formatAmount(r.MaxPrice), truncate(r.MostExpensive.DisplayName, 34))
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Listings by Model Year\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ListingsByYear) == 0 {
		fmt.Fprintf(w, "  No year data\n")
	} else {
		years := make([]int, 0, len(r.ListingsByYear))
		for y := range r.ListingsByYear {
			years = append(years, y)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(years)))
		for _, y := range years {
			cnt := r.ListingsByYear[y]
			fmt.Fprintf(w, "  %-6d %s (%d)\n", y, strings.Repeat("█", cnt), cnt)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

// PrintAnalysis writes the estimate, range and comparables of an analysis.
func (s *InsightService) PrintAnalysis(a *models.CarAnalysis) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)
	w := s.out

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  🚗 PRICE ANALYSIS: %s\033[0m\n", a.TargetCar.Name)
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Estimate\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Mileage         : %s km\n", formatAmount(a.TargetCar.Kilometers))
	fmt.Fprintf(w, "  Estimated price : \033[1;32m%s\033[0m\n", formatAmount(a.EstimatedPrice))
	fmt.Fprintf(w, "  Price range     : %s – %s\n", formatAmount(a.PriceRange.Low), formatAmount(a.PriceRange.High))
	if c := a.Comparison; c != nil {
		fmt.Fprintf(w, "  Asking price    : %s\n", formatAmount(c.AskingPrice))
		switch {
		case !c.PercentValid:
			fmt.Fprintf(w, "  \033[1;31mEstimate is not positive, no percentage comparison\033[0m\n")
		case c.PercentBelow >= 0:
			fmt.Fprintf(w, "  Versus market   : \033[1;32m%.1f%% below estimate\033[0m\n", c.PercentBelow)
		default:
			fmt.Fprintf(w, "  Versus market   : \033[1;31m%.1f%% above estimate\033[0m\n", -c.PercentBelow)
		}
	}
	fmt.Fprintln(w)

	m := a.PriceModel
	level := "model"
	if m.IsMakeLevel() {
		level = "make (aggregate)"
	}
	fmt.Fprintf(w, "\033[1;33m  Price Model\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Level   : %s\n", level)
	fmt.Fprintf(w, "  Samples : %d  R² %.2f  RMSE %s\n", m.SampleCount, m.R2, formatAmount(m.RMSE))
	if a.LowConfidence {
		fmt.Fprintf(w, "  \033[1;31mLow confidence: few listings back this model\033[0m\n")
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Comparable Listings\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(a.SimilarListings) == 0 {
		fmt.Fprintf(w, "  No comparable listings found\n")
	} else {
		for i, p := range a.SimilarListings {
			fmt.Fprintf(w, "  \033[1m%2d.\033[0m %-30s %9s km  \033[1;32m%12s\033[0m\n",
				i+1, truncate(p.Name, 30), formatAmount(p.Kilometers), formatAmount(p.Price))
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Trend Curves\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	years := a.PriceCurves.Years()
	if len(years) == 0 {
		fmt.Fprintf(w, "  No curves available\n")
	}
	for _, y := range years {
		pts := a.PriceCurves[y]
		first, last := pts[0], pts[len(pts)-1]
		fmt.Fprintf(w, "  %d: %s @ %s km → %s @ %s km\n", y,
			formatAmount(first.Price), formatAmount(first.Kilometers),
			formatAmount(last.Price), formatAmount(last.Kilometers))
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

// PrintInsufficient writes the "not enough data" state for a target.
func (s *InsightService) PrintInsufficient(target models.TargetVehicle, reason error) {
	fmt.Fprintf(s.out, "\n\033[1;33m  Not enough data to estimate %d %s %s\033[0m\n  %v\n\n",
		target.Year, target.Make, target.Model, reason)
}

// formatAmount rounds to whole units and groups thousands with spaces.
func formatAmount(v float64) string {
	s := decimal.NewFromFloat(v).Round(0).String()
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func round2(f float64) float64 {
	v, _ := decimal.NewFromFloat(f).Round(2).Float64()
	return v
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
