package marketplace

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"car-market-analyzer/config"
	"car-market-analyzer/models"
	"car-market-analyzer/utils"
)

func testConfig() config.ScraperConfig {
	return config.ScraperConfig{
		CardSelector:  "article",
		TitleSelector: "h2",
		PriceSelector: "[data-testid='price']",
		KmSelector:    "[data-testid='mileage']",
		YearSelector:  "[data-testid='year']",
	}
}

func TestSearchURL(t *testing.T) {
	t.Parallel()

	got := searchURL("https://cars.example.com/search?q={query}&page={page}", "skoda octavia", 3)
	want := "https://cars.example.com/search?q=skoda+octavia&page=3"
	if got != want {
		t.Fatalf("searchURL: got %q, want %q", got, want)
	}
}

func TestParseCards(t *testing.T) {
	t.Parallel()

	html := `
	<main>
	  <article>
	    <a href="/car/ad/123456789"><h2>Skoda Octavia 1.5 TSI Style</h2></a>
	    <img src="https://img.example.com/1.jpg">
	    <span data-testid="year">2019</span>
	    <span data-testid="mileage">62 000 km</span>
	    <span data-testid="price">kr 219 900</span>
	  </article>
	  <article>
	    <h2>Card without a link</h2>
	  </article>
	  <article>
	    <a href="https://cars.example.com/car/ad/987654321"><h2>Skoda Octavia Combi</h2></a>
	    <span data-testid="mileage">110.500 km</span>
	  </article>
	</main>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	scrapedAt := time.Date(2024, time.May, 2, 9, 0, 0, 0, time.UTC)
	cards := parseCards(doc, testConfig(), "https://cars.example.com/search?q=skoda", scrapedAt)

	if len(cards) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(cards))
	}

	first := cards[0]
	if first.URL != "https://cars.example.com/car/ad/123456789" {
		t.Fatalf("relative link not resolved: %s", first.URL)
	}
	if first.Title != "Skoda Octavia 1.5 TSI Style" {
		t.Fatalf("unexpected title: %s", first.Title)
	}
	if first.RawPrice != "kr 219 900" || first.RawKm != "62 000 km" || first.RawYear != "2019" {
		t.Fatalf("unexpected raw fields: %+v", first)
	}
	if first.ImageURL != "https://img.example.com/1.jpg" {
		t.Fatalf("unexpected image: %s", first.ImageURL)
	}
	if !first.ScrapedAt.Equal(scrapedAt) || first.Platform != platform {
		t.Fatalf("unexpected metadata: %+v", first)
	}

	second := cards[1]
	if second.RawPrice != "" || second.RawYear != "" {
		t.Fatalf("missing fields should stay empty: %+v", second)
	}
	if second.ImageURL != "" {
		t.Fatalf("card without image should have empty ImageURL, got %q", second.ImageURL)
	}
}

func TestKeepUnseenAcrossPages(t *testing.T) {
	t.Parallel()

	card := func(u string) *models.RawListing { return &models.RawListing{URL: u} }
	seen := utils.NewKeySet()

	first := keepUnseen(seen, []*models.RawListing{card("/ad/1"), card("/ad/2"), card("/ad/2")})
	second := keepUnseen(seen, []*models.RawListing{card("/ad/2"), card("/ad/3")})

	if len(first) != 2 || len(second) != 1 || second[0].URL != "/ad/3" {
		t.Fatalf("unexpected cards: first=%d second=%d", len(first), len(second))
	}
	if seen.Size() != 3 {
		t.Errorf("seen: got %d, want 3", seen.Size())
	}
}
