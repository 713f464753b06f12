package models

import "time"

// RawListing holds an unprocessed listing card exactly as it was read from a
// marketplace search page. The cleaner turns it into a Listing.
type RawListing struct {
	Title     string
	RawPrice  string
	RawKm     string
	RawYear   string
	Make      string
	Model     string
	URL       string
	ImageURL  string
	ScrapedAt time.Time
	Platform  string
}

// Listing is a read-only market listing. The analyzer never mutates it.
type Listing struct {
	ID          string
	Make        string
	Model       string
	DisplayMake string
	DisplayName string
	Year        int
	Kilometers  float64
	Price       float64
	URL         string
	ImageURL    string
	ScrapedAt   time.Time
	IsActive    bool
}

// TargetVehicle is the subject of an analysis. ID is set when the target is an
// existing listing so it can be kept out of its own comparables. Price is nil
// for hypothetical queries.
type TargetVehicle struct {
	ID         string
	Make       string
	Model      string
	Year       int
	Kilometers float64
	Price      *float64
}

// MarketReport holds summary statistics over a listing pool.
type MarketReport struct {
	Make           string
	Model          string
	TotalListings  int
	PricedListings int
	AveragePrice   float64
	MinPrice       float64
	MaxPrice       float64
	AverageKm      float64
	Cheapest       *Listing
	MostExpensive  *Listing
	ListingsByYear map[int]int
}
