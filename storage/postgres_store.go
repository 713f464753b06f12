package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"car-market-analyzer/models"
	"car-market-analyzer/utils"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore reads listings and fitted price models from PostgreSQL. It
// never writes: listings are owned by the marketplace and models by the
// offline training job.
type PostgresStore struct {
	db      *sql.DB
	poolCap int
}

var (
	_ ListingSource = (*PostgresStore)(nil)
	_ ModelStore    = (*PostgresStore)(nil)
)

// NewPostgresStore opens a connection and waits for the database to answer.
// poolCap bounds how many listings one FetchListings call returns.
func NewPostgresStore(ctx context.Context, dsn string, poolCap int, retry *utils.RetryConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	err = retry.Do(ctx, "postgres-ping", func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return NewPostgresStoreFromDB(db, poolCap), nil
}

// NewPostgresStoreFromDB wraps an already opened database handle.
func NewPostgresStoreFromDB(db *sql.DB, poolCap int) *PostgresStore {
	if poolCap <= 0 {
		poolCap = 500
	}
	return &PostgresStore{db: db, poolCap: poolCap}
}

// FetchListings returns the freshest active listings for a make/model key.
func (s *PostgresStore) FetchListings(ctx context.Context, makeNorm, modelBase string) ([]*models.Listing, error) {
	query, args, err := listingsQuery(makeNorm, modelBase, s.poolCap)
	if err != nil {
		return nil, fmt.Errorf("postgres: build listings query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch listings: %w", err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		var (
			l                        models.Listing
			displayMake, displayName sql.NullString
			url, imageURL            sql.NullString
		)
		if err := rows.Scan(
			&l.ID, &l.Make, &l.Model, &displayMake, &displayName,
			&l.Year, &l.Kilometers, &l.Price, &url, &imageURL,
			&l.ScrapedAt, &l.IsActive,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan listing: %w", err)
		}
		l.DisplayMake = displayMake.String
		l.DisplayName = displayName.String
		l.URL = url.String
		l.ImageURL = imageURL.String
		listings = append(listings, &l)
	}
	return listings, rows.Err()
}

// LookupModel returns the newest fitted model stored under the key.
func (s *PostgresStore) LookupModel(ctx context.Context, makeNorm, modelBase string) (*models.PriceModel, bool, error) {
	query, args, err := modelQuery(makeNorm, modelBase)
	if err != nil {
		return nil, false, fmt.Errorf("postgres: build model query: %w", err)
	}

	var m models.PriceModel
	var r2, rmse sql.NullFloat64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&m.MakeNorm, &m.ModelBase,
		&m.Coefficients.Intercept, &m.Coefficients.BetaAge,
		&m.Coefficients.BetaLogKm, &m.Coefficients.BetaAgeLogKm,
		&m.SampleCount, &r2, &rmse, &m.TrainedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres: lookup model: %w", err)
	}
	m.R2 = r2.Float64
	m.RMSE = rmse.Float64
	return &m, true, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func listingsQuery(makeNorm, modelBase string, limit int) (string, []interface{}, error) {
	return psql.
		Select(
			"id::text", "make", "model", "display_make", "display_name",
			"year", "kilometers", "price", "url", "image_url",
			"scraped_at", "is_active",
		).
		From("listings").
		Where(sq.Eq{
			"make_norm":  makeNorm,
			"model_base": modelBase,
			"is_active":  true,
		}).
		Where(sq.NotEq{"price": nil, "year": nil, "kilometers": nil}).
		OrderBy("scraped_at DESC").
		Limit(uint64(limit)).
		ToSql()
}

// modelQuery uses model_base = '' for make-level aggregates.
func modelQuery(makeNorm, modelBase string) (string, []interface{}, error) {
	return psql.
		Select(
			"make_norm", "model_base",
			"intercept", "beta_age", "beta_logkm", "beta_age_logkm",
			"sample_count", "r2", "rmse", "trained_at",
		).
		From("price_models").
		Where(sq.Eq{"make_norm": makeNorm, "model_base": modelBase}).
		OrderBy("trained_at DESC").
		Limit(1).
		ToSql()
}
