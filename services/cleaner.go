package services

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"car-market-analyzer/models"
	"car-market-analyzer/utils"
)

var (
	// digitGroupRegexp captures a number written with space, dot or comma
	// thousands separators: "245 000", "245.000", "1,200,000".
	digitGroupRegexp = regexp.MustCompile(`\d{1,3}(?:[ \x{00A0}\x{202F}.,]\d{3})+|\d+`)
	// yearRegexp captures a plausible model year.
	yearRegexp = regexp.MustCompile(`\b(19[5-9]\d|20\d{2})\b`)
	// trailingIDRegexp captures the numeric id most marketplaces put in URLs.
	trailingIDRegexp = regexp.MustCompile(`(\d{4,})\D*$`)
)

// Cleaner turns raw marketplace cards into Listings.
type Cleaner struct {
	logger *utils.Logger
	now    func() time.Time
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger.With("cleaner"), now: time.Now}
}

// Clean parses raw cards, dropping cards without URL, duplicates by URL and
// cards whose price, mileage or year cannot be read. Scraped cards are live
// listings, so the result is marked active.
func (c *Cleaner) Clean(raw []*models.RawListing) []*models.Listing {
	seen := make(map[string]struct{})
	result := make([]*models.Listing, 0, len(raw))
	currentYear := c.now().Year()

	for _, r := range raw {
		link := strings.TrimSpace(r.URL)
		if link == "" {
			c.logger.Warn("Dropping listing with empty URL: %s", r.Title)
			continue
		}
		if _, dup := seen[link]; dup {
			c.logger.Debug("Duplicate URL skipped: %s", link)
			continue
		}
		seen[link] = struct{}{}

		price, ok := parseAmount(r.RawPrice)
		if !ok || price <= 0 {
			c.logger.Debug("No price on %s (%q)", link, r.RawPrice)
			continue
		}
		km, ok := parseAmount(r.RawKm)
		if !ok {
			c.logger.Debug("No mileage on %s (%q)", link, r.RawKm)
			continue
		}
		year := parseYear(r.RawYear, r.Title)
		if year == 0 || year > currentYear {
			c.logger.Debug("No usable year on %s (%q / %q)", link, r.RawYear, r.Title)
			continue
		}

		scrapedAt := r.ScrapedAt
		if scrapedAt.IsZero() {
			scrapedAt = c.now()
		}

		result = append(result, &models.Listing{
			ID:          listingID(link),
			Make:        normaliseText(r.Make),
			Model:       normaliseText(r.Model),
			DisplayName: normaliseText(r.Title),
			Year:        year,
			Kilometers:  km,
			Price:       price,
			URL:         link,
			ImageURL:    strings.TrimSpace(r.ImageURL),
			ScrapedAt:   scrapedAt,
			IsActive:    true,
		})
	}

	c.logger.Info("Cleaned %d → %d listings (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result
}

// parseAmount reads the first grouped number in s, ignoring currency and unit
// text: "kr 245 000" → 245000, "12.500 km" → 12500.
func parseAmount(s string) (float64, bool) {
	match := digitGroupRegexp.FindString(s)
	if match == "" {
		return 0, false
	}
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, match)
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseYear prefers the dedicated year field and falls back to the title.
func parseYear(raw, title string) int {
	for _, s := range []string{raw, title} {
		if m := yearRegexp.FindString(s); m != "" {
			y, _ := strconv.Atoi(m)
			return y
		}
	}
	return 0
}

// listingID uses the trailing numeric id of the URL, or the URL itself.
func listingID(link string) string {
	path := link
	if u, err := url.Parse(link); err == nil {
		path = u.Path + "?" + u.RawQuery
	}
	if m := trailingIDRegexp.FindStringSubmatch(path); len(m) == 2 {
		return m[1]
	}
	return link
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
