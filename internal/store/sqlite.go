package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/northcounty/propsync/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS properties (
	property_id   TEXT PRIMARY KEY,
	address       TEXT NOT NULL,
	location      TEXT NOT NULL DEFAULT '',
	district      TEXT NOT NULL DEFAULT '',
	beds          REAL NOT NULL DEFAULT 0,
	baths         REAL NOT NULL DEFAULT 0,
	sqft          INTEGER NOT NULL DEFAULT 0,
	acres         REAL NOT NULL DEFAULT 0,
	year_built    INTEGER NOT NULL DEFAULT 0,
	property_type TEXT NOT NULL DEFAULT '',
	asking_price  REAL,
	sold_price    REAL,
	listing_date  DATETIME,
	sale_date     DATETIME,
	dom           INTEGER NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'active',
	lat           REAL NOT NULL DEFAULT 0,
	lng           REAL NOT NULL DEFAULT 0,
	mls_id        TEXT NOT NULL DEFAULT '',
	source_url    TEXT NOT NULL DEFAULT '',
	photos        TEXT NOT NULL DEFAULT '[]',
	description   TEXT NOT NULL DEFAULT '',
	verified      INTEGER NOT NULL DEFAULT 0,
	avm_value     REAL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_properties_address ON properties(address);
CREATE INDEX IF NOT EXISTS idx_properties_status ON properties(status);
CREATE INDEX IF NOT EXISTS idx_properties_district ON properties(district);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqlitePropertyCols = `property_id, address, location, district, beds, baths, sqft, acres,
	year_built, property_type, asking_price, sold_price, listing_date, sale_date,
	dom, status, lat, lng, mls_id, source_url, photos, description, verified, avm_value`

// Coalescing write: non-conflict runs write their fields; on conflict,
// zero-valued numerics and empty strings keep the existing value, and
// null prices never blank a previously written one. Verified prices
// survive unverified updates.
const sqliteUpsert = `
INSERT INTO properties (` + sqlitePropertyCols + `, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(property_id) DO UPDATE SET
	address       = excluded.address,
	location      = CASE WHEN excluded.location != '' THEN excluded.location ELSE location END,
	district      = CASE WHEN excluded.district != '' THEN excluded.district ELSE district END,
	beds          = CASE WHEN excluded.beds > 0 THEN excluded.beds ELSE beds END,
	baths         = CASE WHEN excluded.baths > 0 THEN excluded.baths ELSE baths END,
	sqft          = CASE WHEN excluded.sqft > 0 THEN excluded.sqft ELSE sqft END,
	acres         = CASE WHEN excluded.acres > 0 THEN excluded.acres ELSE acres END,
	year_built    = CASE WHEN excluded.year_built > 0 THEN excluded.year_built ELSE year_built END,
	property_type = CASE WHEN excluded.property_type != '' THEN excluded.property_type ELSE property_type END,
	asking_price  = CASE WHEN verified = 1 AND excluded.verified = 0 THEN asking_price
	                     ELSE COALESCE(excluded.asking_price, asking_price) END,
	sold_price    = CASE WHEN verified = 1 AND excluded.verified = 0 THEN sold_price
	                     ELSE COALESCE(excluded.sold_price, sold_price) END,
	listing_date  = COALESCE(excluded.listing_date, listing_date),
	sale_date     = COALESCE(excluded.sale_date, sale_date),
	dom           = CASE WHEN excluded.dom > 0 THEN excluded.dom ELSE dom END,
	status        = excluded.status,
	lat           = CASE WHEN excluded.lat != 0 THEN excluded.lat ELSE lat END,
	lng           = CASE WHEN excluded.lng != 0 THEN excluded.lng ELSE lng END,
	mls_id        = CASE WHEN excluded.mls_id != '' THEN excluded.mls_id ELSE mls_id END,
	source_url    = CASE WHEN excluded.source_url != '' THEN excluded.source_url ELSE source_url END,
	photos        = CASE WHEN excluded.photos != '[]' THEN excluded.photos ELSE photos END,
	description   = CASE WHEN excluded.description != '' THEN excluded.description ELSE description END,
	verified      = verified OR excluded.verified,
	avm_value     = COALESCE(excluded.avm_value, avm_value),
	updated_at    = excluded.updated_at
`

func (s *SQLiteStore) Upsert(ctx context.Context, p *model.Property) error {
	if p.PropertyID == "" {
		return eris.New("sqlite: upsert: property id is empty")
	}
	photosJSON, err := json.Marshal(p.Photos)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal photos")
	}
	if p.Photos == nil {
		photosJSON = []byte("[]")
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx, sqliteUpsert,
		p.PropertyID, p.Address, p.Location, p.District, p.Beds, p.Baths, p.Sqft, p.Acres,
		p.YearBuilt, p.PropertyType, p.AskingPrice, p.SoldPrice, p.ListingDate, p.SaleDate,
		p.DOM, string(p.Status), p.Lat, p.Lng, p.MLSID, p.SourceURL, string(photosJSON),
		p.Description, p.Verified, p.AVMValue, now, now,
	)
	return eris.Wrapf(err, "sqlite: upsert property %s", p.PropertyID)
}

func (s *SQLiteStore) Get(ctx context.Context, propertyID string) (*model.Property, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqlitePropertyCols+` FROM properties WHERE property_id = ?`,
		propertyID,
	)
	return scanProperty(row)
}

func (s *SQLiteStore) GetByAddress(ctx context.Context, address string) (*model.Property, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqlitePropertyCols+` FROM properties WHERE address = ?`,
		address,
	)
	return scanProperty(row)
}

func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]model.Property, error) {
	query := `SELECT ` + sqlitePropertyCols + ` FROM properties WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.District != "" {
		query += ` AND district = ?`
		args = append(args, filter.District)
	}
	query += ` ORDER BY address`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list properties")
	}
	defer rows.Close()

	var props []model.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		props = append(props, *p)
	}
	return props, eris.Wrap(rows.Err(), "sqlite: list properties iterate")
}

func (s *SQLiteStore) ListSold(ctx context.Context) ([]model.Property, error) {
	return s.List(ctx, Filter{Status: model.StatusSold, Limit: 10000})
}

func (s *SQLiteStore) SetPrices(ctx context.Context, address string, asking, sold *float64, verified bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE properties SET
			asking_price = COALESCE(?, asking_price),
			sold_price   = COALESCE(?, sold_price),
			verified     = verified OR ?,
			updated_at   = ?
		 WHERE address = ?`,
		asking, sold, verified, time.Now().UTC(), address,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set prices for %s", address)
	}
	return checkRowsAffected(res, "property", address)
}

func (s *SQLiteStore) SetAskingPrice(ctx context.Context, propertyID string, price float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE properties SET asking_price = ?, updated_at = ? WHERE property_id = ?`,
		price, time.Now().UTC(), propertyID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set asking price for %s", propertyID)
	}
	return checkRowsAffected(res, "property", propertyID)
}

const statsQuery = `
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

func (s *SQLiteStore) MarketStats(ctx context.Context) (*model.MarketStats, error) {
	var stats model.MarketStats
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, statsQuery).Scan(
		&stats.TotalSold, &stats.SoldOverAsking, &stats.SoldUnderAsking,
		&stats.SoldAtAsking, &avg,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: market stats")
	}
	stats.AvgPercentDiff = avg.Float64
	return &stats, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM properties`)
	return eris.Wrap(err, "sqlite: clear properties")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanProperty(row scannable) (*model.Property, error) {
	var p model.Property
	var status string
	var asking, sold, avm sql.NullFloat64
	var listingDate, saleDate sql.NullTime
	var photosJSON string

	err := row.Scan(
		&p.PropertyID, &p.Address, &p.Location, &p.District, &p.Beds, &p.Baths, &p.Sqft, &p.Acres,
		&p.YearBuilt, &p.PropertyType, &asking, &sold, &listingDate, &saleDate,
		&p.DOM, &status, &p.Lat, &p.Lng, &p.MLSID, &p.SourceURL, &photosJSON,
		&p.Description, &p.Verified, &avm,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan property")
	}

	p.Status = model.Status(status)
	if asking.Valid {
		p.AskingPrice = &asking.Float64
	}
	if sold.Valid {
		p.SoldPrice = &sold.Float64
	}
	if avm.Valid {
		p.AVMValue = &avm.Float64
	}
	if listingDate.Valid {
		t := listingDate.Time.UTC()
		p.ListingDate = &t
	}
	if saleDate.Valid {
		t := saleDate.Time.UTC()
		p.SaleDate = &t
	}
	if photosJSON != "" && photosJSON != "[]" {
		if err := json.Unmarshal([]byte(photosJSON), &p.Photos); err != nil {
			return nil, eris.Wrap(err, "unmarshal photos")
		}
	}
	return &p, nil
}
