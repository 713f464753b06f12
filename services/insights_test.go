package services

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"car-market-analyzer/models"
)

func sampleListings() []*models.Listing {
	now := fixedNow()
	a := listing("a", 2020, 40_000, 200_000, now)
	a.DisplayName = "Corolla A"
	b := listing("b", 2020, 60_000, 150_000, now)
	b.DisplayName = "Corolla B"
	c := listing("c", 2018, 90_000, 120_000, now)
	c.DisplayName = "Corolla C"
	d := listing("d", 2019, 70_000, 0, now)
	inactive := listing("e", 2021, 10_000, 400_000, now)
	inactive.IsActive = false
	other := listing("f", 2021, 10_000, 500_000, now)
	other.Model = "Yaris"
	return []*models.Listing{a, b, c, d, inactive, other}
}

func TestInsightCounts(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate("Toyota", "Corolla", sampleListings())

	if r.TotalListings != 4 {
		t.Errorf("TotalListings: got %d, want 4", r.TotalListings)
	}
	if r.PricedListings != 3 {
		t.Errorf("PricedListings: got %d, want 3", r.PricedListings)
	}
	if r.AverageKm != 65_000 {
		t.Errorf("AverageKm: got %.2f, want 65000", r.AverageKm)
	}
	if r.ListingsByYear[2020] != 2 || r.ListingsByYear[2018] != 1 || r.ListingsByYear[2019] != 1 {
		t.Errorf("ListingsByYear: got %v", r.ListingsByYear)
	}
	if _, ok := r.ListingsByYear[2021]; ok {
		t.Error("inactive and other-model listings should not be counted")
	}
}

func TestInsightPrices(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate("toyota", "COROLLA", sampleListings())

	if want := 156_666.67; r.AveragePrice != want {
		t.Errorf("AveragePrice: got %.2f, want %.2f", r.AveragePrice, want)
	}
	if r.MinPrice != 120_000 || r.Cheapest.DisplayName != "Corolla C" {
		t.Errorf("cheapest: got %.2f %q", r.MinPrice, r.Cheapest.DisplayName)
	}
	if r.MaxPrice != 200_000 || r.MostExpensive.DisplayName != "Corolla A" {
		t.Errorf("most expensive: got %.2f %q", r.MaxPrice, r.MostExpensive.DisplayName)
	}
}

func TestInsightEmptyInput(t *testing.T) {
	var out bytes.Buffer
	svc := NewInsightService(newTestLogger()).WithOutput(&out)
	r := svc.Generate("Toyota", "Corolla", nil)

	if r.TotalListings != 0 || r.Cheapest != nil || r.MostExpensive != nil {
		t.Errorf("expected an empty report, got %+v", r)
	}

	svc.Print(r)
	if !strings.Contains(out.String(), "No price data available") {
		t.Errorf("empty report output missing placeholder:\n%s", out.String())
	}
}

func TestPrintAnalysis(t *testing.T) {
	var out bytes.Buffer
	svc := NewInsightService(newTestLogger()).WithOutput(&out)

	target := corollaTarget()
	target.Price = price(240_000)
	analysis, err := testAnalyzer().Analyze(target, corollaModel(), sampleListings())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	svc.PrintAnalysis(analysis)

	text := out.String()
	for _, want := range []string{
		"PRICE ANALYSIS: 2020 Toyota Corolla",
		formatAmount(analysis.EstimatedPrice),
		"Asking price    : 240 000",
		"Corolla A",
		"Samples : 120",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Low confidence") {
		t.Error("120-sample model printed as low confidence")
	}
}

func TestPrintInsufficient(t *testing.T) {
	var out bytes.Buffer
	svc := NewInsightService(newTestLogger()).WithOutput(&out)

	svc.PrintInsufficient(corollaTarget(), &InsufficientDataError{Reason: "no price model"})
	if !strings.Contains(out.String(), "Not enough data to estimate 2020 Toyota Corolla") ||
		!strings.Contains(out.String(), "no price model") {
		t.Errorf("unexpected output: %q", out.String())
	}
	if !errors.Is(&InsufficientDataError{}, ErrInsufficientData) {
		t.Error("InsufficientDataError should match ErrInsufficientData")
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1_000, "1 000"},
		{263_588.65, "263 589"},
		{1_234_567, "1 234 567"},
		{-45_000.4, "-45 000"},
	}
	for _, tt := range tests {
		if got := formatAmount(tt.in); got != tt.want {
			t.Errorf("formatAmount(%v) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Toyota Corolla Touring Sports", 10); got != "Toyota ..." {
		t.Errorf("truncate: got %q", got)
	}
	if got := truncate("Škoda", 10); got != "Škoda" {
		t.Errorf("truncate: got %q", got)
	}
}
