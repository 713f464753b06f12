package marketplace

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"car-market-analyzer/config"
	"car-market-analyzer/models"
	"car-market-analyzer/services"
	"car-market-analyzer/storage"
	"car-market-analyzer/utils"
)

const platform = "marketplace"

// Scraper is a live, read-only listing source: it renders marketplace search
// result pages in headless Chrome and reads the listing cards. Nothing it
// reads is stored.
type Scraper struct {
	cfg     config.ScraperConfig
	logger  *utils.Logger
	retry   *utils.RetryConfig
	cleaner *services.Cleaner
}

var _ storage.ListingSource = (*Scraper)(nil)

// New creates a ready-to-use marketplace Scraper.
func New(cfg config.ScraperConfig, logger *utils.Logger) *Scraper {
	return &Scraper{
		cfg:    cfg,
		logger: logger.With("marketplace"),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		cleaner: services.NewCleaner(logger),
	}
}

// FetchListings scrapes the configured number of search pages for the
// make/model concurrently and returns the cleaned listings.
func (s *Scraper) FetchListings(ctx context.Context, makeNorm, modelBase string) ([]*models.Listing, error) {
	query := strings.TrimSpace(makeNorm + " " + modelBase)
	pages := s.cfg.PagesToScrape
	if pages < 1 {
		pages = 1
	}
	s.logger.Info("Searching %q across %d pages", query, pages)

	chromeBin := s.cfg.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	s.logger.Debug("Using browser binary: %q", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	// Start the browser once so page tabs share it.
	if err := chromedp.Run(browserCtx); err != nil {
		return nil, fmt.Errorf("marketplace: start browser: %w", err)
	}

	var (
		mu       sync.Mutex
		raw      []*models.RawListing
		scanned  int
		firstErr error
	)
	seen := utils.NewKeySet()
	pool := utils.NewWorkerPool(s.cfg.MaxConcurrency, s.cfg.RateLimitMs)

	for page := 1; page <= pages; page++ {
		pageURL := searchURL(s.cfg.SearchURLTemplate, query, page)
		pageNum := page
		pool.Submit(ctx, func(ctx context.Context) {
			cards, err := s.scrapePage(ctx, browserCtx, pageURL, pageNum)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Error("Page %d failed: %v", pageNum, err)
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			scanned += len(cards)
			for _, c := range keepUnseen(seen, cards) {
				c.Make, c.Model = makeNorm, modelBase
				raw = append(raw, c)
			}
		})
	}
	pool.Wait()

	if len(raw) == 0 && firstErr != nil {
		return nil, fmt.Errorf("marketplace: %w", firstErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.logger.Info("Collected %d raw cards for %q (%d repeated across pages)",
		seen.Size(), query, scanned-seen.Size())
	return s.cleaner.Clean(raw), nil
}

// keepUnseen returns the cards whose URL was not collected from an earlier page.
func keepUnseen(seen *utils.KeySet, cards []*models.RawListing) []*models.RawListing {
	fresh := make([]*models.RawListing, 0, len(cards))
	for _, c := range cards {
		if seen.Add(c.URL) {
			fresh = append(fresh, c)
		}
	}
	return fresh
}

// scrapePage renders one search page in a new tab and parses its cards.
func (s *Scraper) scrapePage(ctx, browserCtx context.Context, pageURL string, pageNum int) ([]*models.RawListing, error) {
	var cards []*models.RawListing

	err := s.retry.Do(ctx, fmt.Sprintf("scrape-page-%d", pageNum), func(ctx context.Context) error {
		tabCtx, cancelTab := chromedp.NewContext(browserCtx)
		defer cancelTab()

		tabCtx, cancelTimeout := context.WithTimeout(tabCtx, 60*time.Second)
		defer cancelTimeout()

		var html string
		err := chromedp.Run(tabCtx,
			chromedp.Navigate(pageURL),
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(2*time.Second),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		)
		if err != nil {
			return fmt.Errorf("chromedp page scrape: %w", err)
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return fmt.Errorf("parse page: %w", err)
		}

		cards = parseCards(doc, s.cfg, pageURL, time.Now())
		s.logger.Debug("Page %d: %d cards", pageNum, len(cards))
		return nil
	})

	return cards, err
}

// parseCards reads listing cards from a rendered search page. Card links and
// images are resolved against pageURL.
func parseCards(doc *goquery.Document, cfg config.ScraperConfig, pageURL string, scrapedAt time.Time) []*models.RawListing {
	base, _ := url.Parse(pageURL)
	var cards []*models.RawListing

	doc.Find(cfg.CardSelector).Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find("a[href]").First().Attr("href")
		if !ok {
			return
		}

		img, _ := card.Find("img").First().Attr("src")
		cards = append(cards, &models.RawListing{
			Title:     text(card, cfg.TitleSelector),
			RawPrice:  text(card, cfg.PriceSelector),
			RawKm:     text(card, cfg.KmSelector),
			RawYear:   text(card, cfg.YearSelector),
			URL:       resolve(base, href),
			ImageURL:  resolve(base, img),
			ScrapedAt: scrapedAt,
			Platform:  platform,
		})
	})
	return cards
}

func text(sel *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(sel.Find(selector).First().Text())
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || base == nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

// searchURL fills the {query} and {page} placeholders of a search template.
func searchURL(template, query string, page int) string {
	r := strings.NewReplacer(
		"{query}", url.QueryEscape(query),
		"{page}", strconv.Itoa(page),
	)
	return r.Replace(template)
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
