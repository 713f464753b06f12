package storage

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"car-market-analyzer/models"
)

// MemoryStore serves listings and price models from memory. It backs fixture
// runs and tests. Keys are compared as given: callers pass normalised keys for
// lookups and the store is filled with normalised keys by its loader.
type MemoryStore struct {
	mu       sync.RWMutex
	listings map[string][]*models.Listing
	models   map[string]*models.PriceModel
	keyFunc  func(string) string
}

var (
	_ ListingSource = (*MemoryStore)(nil)
	_ ModelStore    = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty store. keyFunc normalises listing make and
// model names when listings are added; nil keeps them as they are.
func NewMemoryStore(keyFunc func(string) string) *MemoryStore {
	if keyFunc == nil {
		keyFunc = func(s string) string { return s }
	}
	return &MemoryStore{
		listings: make(map[string][]*models.Listing),
		models:   make(map[string]*models.PriceModel),
		keyFunc:  keyFunc,
	}
}

func storeKey(makeNorm, modelBase string) string {
	return makeNorm + "|" + modelBase
}

// AddListings indexes listings under their normalised make/model.
func (s *MemoryStore) AddListings(listings ...*models.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range listings {
		k := storeKey(s.keyFunc(l.Make), s.keyFunc(l.Model))
		s.listings[k] = append(s.listings[k], l)
	}
}

// AddModels indexes models under their own key; a later model with the same
// key replaces an earlier one only if it was trained later.
func (s *MemoryStore) AddModels(pms ...*models.PriceModel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range pms {
		k := storeKey(m.MakeNorm, m.ModelBase)
		if prev, ok := s.models[k]; ok && prev.TrainedAt.After(m.TrainedAt) {
			continue
		}
		s.models[k] = m
	}
}

// FetchListings returns a copy of the listings stored under the key, newest first.
func (s *MemoryStore) FetchListings(_ context.Context, makeNorm, modelBase string) ([]*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.listings[storeKey(makeNorm, modelBase)]
	out := make([]*models.Listing, len(stored))
	copy(out, stored)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ScrapedAt.After(out[j].ScrapedAt)
	})
	return out, nil
}

// LookupModel returns the model stored under the key.
func (s *MemoryStore) LookupModel(_ context.Context, makeNorm, modelBase string) (*models.PriceModel, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.models[storeKey(makeNorm, modelBase)]
	return m, ok, nil
}

// fixtureFile is the on-disk layout of a fixture file.
type fixtureFile struct {
	Models   []models.PriceModel `yaml:"models"`
	Listings []fixtureListing    `yaml:"listings"`
}

type fixtureListing struct {
	ID          string    `yaml:"id"`
	Make        string    `yaml:"make"`
	Model       string    `yaml:"model"`
	DisplayMake string    `yaml:"display_make"`
	DisplayName string    `yaml:"display_name"`
	Year        int       `yaml:"year"`
	Kilometers  float64   `yaml:"kilometers"`
	Price       float64   `yaml:"price"`
	URL         string    `yaml:"url"`
	ImageURL    string    `yaml:"image_url"`
	ScrapedAt   time.Time `yaml:"scraped_at"`
	IsActive    *bool     `yaml:"is_active"`
}

// LoadFixtures reads a YAML fixture file with "models" and "listings" lists
// into a new MemoryStore. Listings default to active. Model keys are passed
// through keyFunc as well, so fixtures may use display names.
func LoadFixtures(path string, keyFunc func(string) string) (*MemoryStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixtures: read %q: %w", path, err)
	}

	var file fixtureFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("fixtures: parse %q: %w", path, err)
	}

	store := NewMemoryStore(keyFunc)
	for i := range file.Models {
		m := file.Models[i]
		m.MakeNorm = store.keyFunc(m.MakeNorm)
		m.ModelBase = store.keyFunc(m.ModelBase)
		if m.MakeNorm == "" {
			return nil, fmt.Errorf("fixtures: model %d has no make_norm", i)
		}
		store.AddModels(&m)
	}

	for i, fl := range file.Listings {
		if strings.TrimSpace(fl.Make) == "" {
			return nil, fmt.Errorf("fixtures: listing %d has no make", i)
		}
		active := true
		if fl.IsActive != nil {
			active = *fl.IsActive
		}
		id := fl.ID
		if id == "" {
			id = fmt.Sprintf("fixture-%d", i+1)
		}
		store.AddListings(&models.Listing{
			ID:          id,
			Make:        fl.Make,
			Model:       fl.Model,
			DisplayMake: fl.DisplayMake,
			DisplayName: fl.DisplayName,
			Year:        fl.Year,
			Kilometers:  fl.Kilometers,
			Price:       fl.Price,
			URL:         fl.URL,
			ImageURL:    fl.ImageURL,
			ScrapedAt:   fl.ScrapedAt,
			IsActive:    active,
		})
	}
	return store, nil
}
