package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"car-market-analyzer/models"
)

// CSVWriter exports the plotted points of analyses (target, comparables and
// curve samples) to a CSV file. It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

var _ PointWriter = (*CSVWriter)(nil)

// NewCSVWriter creates (or truncates) the CSV file at path and writes the
// header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"series", "year", "kilometers", "price", "name", "url"}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteAnalysis appends the target, every comparable and every curve point.
// Curves are written in ascending year order.
func (c *CSVWriter) WriteAnalysis(a *models.CarAnalysis) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.writePoint("target", a.TargetCar); err != nil {
		return err
	}
	for _, p := range a.SimilarListings {
		if err := c.writePoint("comparable", p); err != nil {
			return err
		}
	}
	for _, year := range a.PriceCurves.Years() {
		for _, p := range a.PriceCurves[year] {
			if err := c.writePoint("curve", p); err != nil {
				return err
			}
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

func (c *CSVWriter) writePoint(series string, p models.PricePoint) error {
	year := ""
	if p.Year != 0 {
		year = strconv.Itoa(p.Year)
	}
	row := []string{
		series,
		year,
		decimal.NewFromFloat(p.Kilometers).Round(0).String(),
		decimal.NewFromFloat(p.Price).Round(2).StringFixed(2),
		p.Name,
		p.URL,
	}
	if err := c.writer.Write(row); err != nil {
		return fmt.Errorf("csv: write row: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
