package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/northcounty/propsync/internal/db"
	"github.com/northcounty/propsync/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool db.Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: closeFn}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS properties (
	property_id   TEXT PRIMARY KEY,
	address       TEXT NOT NULL,
	location      TEXT NOT NULL DEFAULT '',
	district      TEXT NOT NULL DEFAULT '',
	beds          DOUBLE PRECISION NOT NULL DEFAULT 0,
	baths         DOUBLE PRECISION NOT NULL DEFAULT 0,
	sqft          INTEGER NOT NULL DEFAULT 0,
	acres         DOUBLE PRECISION NOT NULL DEFAULT 0,
	year_built    INTEGER NOT NULL DEFAULT 0,
	property_type TEXT NOT NULL DEFAULT '',
	asking_price  DOUBLE PRECISION,
	sold_price    DOUBLE PRECISION,
	listing_date  TIMESTAMPTZ,
	sale_date     TIMESTAMPTZ,
	dom           INTEGER NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'active',
	lat           DOUBLE PRECISION NOT NULL DEFAULT 0,
	lng           DOUBLE PRECISION NOT NULL DEFAULT 0,
	mls_id        TEXT NOT NULL DEFAULT '',
	source_url    TEXT NOT NULL DEFAULT '',
	photos        JSONB NOT NULL DEFAULT '[]',
	description   TEXT NOT NULL DEFAULT '',
	verified      BOOLEAN NOT NULL DEFAULT false,
	avm_value     DOUBLE PRECISION,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_properties_address ON properties(address);
CREATE INDEX IF NOT EXISTS idx_properties_status ON properties(status);
CREATE INDEX IF NOT EXISTS idx_properties_district ON properties(district);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const pgPropertyCols = `property_id, address, location, district, beds, baths, sqft, acres,
	year_built, property_type, asking_price, sold_price, listing_date, sale_date,
	dom, status, lat, lng, mls_id, source_url, photos, description, verified, avm_value`

// Same coalescing semantics as the SQLite upsert.
const pgUpsert = `
INSERT INTO properties (` + pgPropertyCols + `, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
	$17, $18, $19, $20, $21, $22, $23, $24, now(), now())
ON CONFLICT (property_id) DO UPDATE SET
	address       = EXCLUDED.address,
	location      = CASE WHEN EXCLUDED.location != '' THEN EXCLUDED.location ELSE properties.location END,
	district      = CASE WHEN EXCLUDED.district != '' THEN EXCLUDED.district ELSE properties.district END,
	beds          = CASE WHEN EXCLUDED.beds > 0 THEN EXCLUDED.beds ELSE properties.beds END,
	baths         = CASE WHEN EXCLUDED.baths > 0 THEN EXCLUDED.baths ELSE properties.baths END,
	sqft          = CASE WHEN EXCLUDED.sqft > 0 THEN EXCLUDED.sqft ELSE properties.sqft END,
	acres         = CASE WHEN EXCLUDED.acres > 0 THEN EXCLUDED.acres ELSE properties.acres END,
	year_built    = CASE WHEN EXCLUDED.year_built > 0 THEN EXCLUDED.year_built ELSE properties.year_built END,
	property_type = CASE WHEN EXCLUDED.property_type != '' THEN EXCLUDED.property_type ELSE properties.property_type END,
	asking_price  = CASE WHEN properties.verified AND NOT EXCLUDED.verified THEN properties.asking_price
	                     ELSE COALESCE(EXCLUDED.asking_price, properties.asking_price) END,
	sold_price    = CASE WHEN properties.verified AND NOT EXCLUDED.verified THEN properties.sold_price
	                     ELSE COALESCE(EXCLUDED.sold_price, properties.sold_price) END,
	listing_date  = COALESCE(EXCLUDED.listing_date, properties.listing_date),
	sale_date     = COALESCE(EXCLUDED.sale_date, properties.sale_date),
	dom           = CASE WHEN EXCLUDED.dom > 0 THEN EXCLUDED.dom ELSE properties.dom END,
	status        = EXCLUDED.status,
	lat           = CASE WHEN EXCLUDED.lat != 0 THEN EXCLUDED.lat ELSE properties.lat END,
	lng           = CASE WHEN EXCLUDED.lng != 0 THEN EXCLUDED.lng ELSE properties.lng END,
	mls_id        = CASE WHEN EXCLUDED.mls_id != '' THEN EXCLUDED.mls_id ELSE properties.mls_id END,
	source_url    = CASE WHEN EXCLUDED.source_url != '' THEN EXCLUDED.source_url ELSE properties.source_url END,
	photos        = CASE WHEN EXCLUDED.photos != '[]'::jsonb THEN EXCLUDED.photos ELSE properties.photos END,
	description   = CASE WHEN EXCLUDED.description != '' THEN EXCLUDED.description ELSE properties.description END,
	verified      = properties.verified OR EXCLUDED.verified,
	avm_value     = COALESCE(EXCLUDED.avm_value, properties.avm_value),
	updated_at    = now()
`

func (s *PostgresStore) Upsert(ctx context.Context, p *model.Property) error {
	if p.PropertyID == "" {
		return eris.New("postgres: upsert: property id is empty")
	}
	photosJSON, err := json.Marshal(p.Photos)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal photos")
	}
	if p.Photos == nil {
		photosJSON = []byte("[]")
	}

	_, err = s.pool.Exec(ctx, pgUpsert,
		p.PropertyID, p.Address, p.Location, p.District, p.Beds, p.Baths, p.Sqft, p.Acres,
		p.YearBuilt, p.PropertyType, p.AskingPrice, p.SoldPrice, p.ListingDate, p.SaleDate,
		p.DOM, string(p.Status), p.Lat, p.Lng, p.MLSID, p.SourceURL, string(photosJSON),
		p.Description, p.Verified, p.AVMValue,
	)
	return eris.Wrapf(err, "postgres: upsert property %s", p.PropertyID)
}

func (s *PostgresStore) Get(ctx context.Context, propertyID string) (*model.Property, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgPropertyCols+` FROM properties WHERE property_id = $1`,
		propertyID,
	)
	return scanPgProperty(row)
}

func (s *PostgresStore) GetByAddress(ctx context.Context, address string) (*model.Property, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgPropertyCols+` FROM properties WHERE address = $1`,
		address,
	)
	return scanPgProperty(row)
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]model.Property, error) {
	query := `SELECT ` + pgPropertyCols + ` FROM properties WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	if filter.District != "" {
		args = append(args, filter.District)
		query += placeholder(` AND district = `, len(args))
	}
	query += ` ORDER BY address`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	args = append(args, limit)
	query += placeholder(` LIMIT `, len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += placeholder(` OFFSET `, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list properties")
	}
	defer rows.Close()

	var props []model.Property
	for rows.Next() {
		p, err := scanPgProperty(rows)
		if err != nil {
			return nil, err
		}
		props = append(props, *p)
	}
	return props, eris.Wrap(rows.Err(), "postgres: list properties iterate")
}

func (s *PostgresStore) ListSold(ctx context.Context) ([]model.Property, error) {
	return s.List(ctx, Filter{Status: model.StatusSold, Limit: 10000})
}

func (s *PostgresStore) SetPrices(ctx context.Context, address string, asking, sold *float64, verified bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE properties SET
			asking_price = COALESCE($1, asking_price),
			sold_price   = COALESCE($2, sold_price),
			verified     = verified OR $3,
			updated_at   = now()
		 WHERE address = $4`,
		asking, sold, verified, address,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set prices for %s", address)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "property %s", address)
	}
	return nil
}

func (s *PostgresStore) SetAskingPrice(ctx context.Context, propertyID string, price float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE properties SET asking_price = $1, updated_at = now() WHERE property_id = $2`,
		price, propertyID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set asking price for %s", propertyID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "property %s", propertyID)
	}
	return nil
}

const pgStatsQuery = `
SELECT
	COUNT(*),
	COALESCE(SUM(CASE WHEN sold_price > asking_price THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN sold_price < asking_price THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN sold_price = asking_price THEN 1 ELSE 0 END), 0),
	AVG((sold_price - asking_price) * 100.0 / asking_price)
FROM properties
WHERE status = 'sold' AND sold_price IS NOT NULL
  AND asking_price IS NOT NULL AND asking_price > 0
`

func (s *PostgresStore) MarketStats(ctx context.Context) (*model.MarketStats, error) {
	var stats model.MarketStats
	var avg *float64
	err := s.pool.QueryRow(ctx, pgStatsQuery).Scan(
		&stats.TotalSold, &stats.SoldOverAsking, &stats.SoldUnderAsking,
		&stats.SoldAtAsking, &avg,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: market stats")
	}
	if avg != nil {
		stats.AvgPercentDiff = *avg
	}
	return &stats, nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM properties`)
	return eris.Wrap(err, "postgres: clear properties")
}

func placeholder(prefix string, n int) string {
	return fmt.Sprintf("%s$%d", prefix, n)
}

func scanPgProperty(row pgx.Row) (*model.Property, error) {
	var p model.Property
	var status string
	var asking, sold, avm *float64
	var listingDate, saleDate *time.Time
	var photosJSON []byte

	err := row.Scan(
		&p.PropertyID, &p.Address, &p.Location, &p.District, &p.Beds, &p.Baths, &p.Sqft, &p.Acres,
		&p.YearBuilt, &p.PropertyType, &asking, &sold, &listingDate, &saleDate,
		&p.DOM, &status, &p.Lat, &p.Lng, &p.MLSID, &p.SourceURL, &photosJSON,
		&p.Description, &p.Verified, &avm,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan property")
	}

	p.Status = model.Status(status)
	p.AskingPrice = asking
	p.SoldPrice = sold
	p.AVMValue = avm
	p.ListingDate = listingDate
	p.SaleDate = saleDate
	if len(photosJSON) > 0 {
		if err := json.Unmarshal(photosJSON, &p.Photos); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal photos")
		}
		if len(p.Photos) == 0 {
			p.Photos = nil
		}
	}
	return &p, nil
}
