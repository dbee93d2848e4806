package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"olx-car-scraper/models"
)

const listingsTable = "car_listings"

// Dialects understood by NewSQLStore. The value is also the database/sql
// driver name.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

var listingColumns = []string{
	"external_id", "title", "price", "currency", "location", "seller_name", "seller_type",
	"description", "brand", "model", "year", "mileage_km", "fuel_type", "transmission",
	"engine_cc", "color", "image_urls", "source_url", "first_seen_at", "last_seen_at", "active",
}

// mutableColumns are overwritten on conflict. first_seen_at is never among them.
var mutableColumns = []string{
	"title", "price", "currency", "location", "seller_name", "seller_type",
	"description", "brand", "model", "year", "mileage_km", "fuel_type", "transmission",
	"engine_cc", "color", "image_urls", "source_url", "last_seen_at", "active",
}

var migrations = map[string][]string{
	DialectSQLite: {
		`CREATE TABLE IF NOT EXISTS car_listings (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id   TEXT      NOT NULL UNIQUE,
			title         TEXT      NOT NULL,
			price         REAL,
			currency      TEXT,
			location      TEXT,
			seller_name   TEXT,
			seller_type   TEXT,
			description   TEXT,
			brand         TEXT,
			model         TEXT,
			year          INTEGER,
			mileage_km    INTEGER,
			fuel_type     TEXT,
			transmission  TEXT,
			engine_cc     INTEGER,
			color         TEXT,
			image_urls    TEXT      NOT NULL DEFAULT '[]',
			source_url    TEXT      NOT NULL,
			first_seen_at TIMESTAMP NOT NULL,
			last_seen_at  TIMESTAMP NOT NULL,
			active        BOOLEAN   NOT NULL DEFAULT 1
		)`,
	},
	DialectPostgres: {
		`CREATE TABLE IF NOT EXISTS car_listings (
			id            BIGSERIAL PRIMARY KEY,
			external_id   VARCHAR(50)   NOT NULL UNIQUE,
			title         VARCHAR(500)  NOT NULL,
			price         NUMERIC(12,2),
			currency      VARCHAR(3),
			location      TEXT,
			seller_name   TEXT,
			seller_type   VARCHAR(20),
			description   TEXT,
			brand         VARCHAR(100),
			model         VARCHAR(100),
			year          INTEGER,
			mileage_km    INTEGER,
			fuel_type     VARCHAR(50),
			transmission  VARCHAR(50),
			engine_cc     INTEGER,
			color         VARCHAR(50),
			image_urls    TEXT          NOT NULL DEFAULT '[]',
			source_url    TEXT          NOT NULL,
			first_seen_at TIMESTAMPTZ   NOT NULL,
			last_seen_at  TIMESTAMPTZ   NOT NULL,
			active        BOOLEAN       NOT NULL DEFAULT TRUE
		)`,
	},
}

// Shared by both dialects.
var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_car_listings_brand_model ON car_listings(brand, model)`,
	`CREATE INDEX IF NOT EXISTS idx_car_listings_year         ON car_listings(year)`,
	`CREATE INDEX IF NOT EXISTS idx_car_listings_price        ON car_listings(price)`,
	`CREATE INDEX IF NOT EXISTS idx_car_listings_last_seen_at ON car_listings(last_seen_at)`,
}

// SQLStore persists listings through database/sql, in SQLite or PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	dialect string
	sb      sq.StatementBuilderType
}

// NewSQLStore opens the database and waits for it to answer. It does not
// create the schema; call Migrate for that.
func NewSQLStore(ctx context.Context, dialect, dsn string) (*SQLStore, error) {
	var sb sq.StatementBuilderType
	switch dialect {
	case DialectSQLite:
		sb = sq.StatementBuilder.PlaceholderFormat(sq.Question)
	case DialectPostgres:
		sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	default:
		return nil, fmt.Errorf("store: unsupported dialect %q", dialect)
	}

	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// A single connection keeps writers serialized and ":memory:" databases shared.
		db.SetMaxOpenConns(1)
	}

	attempts := 1
	if dialect == DialectPostgres {
		attempts = 10
	}
	if err := ping(ctx, db, attempts); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping failed after retries: %w", dialect, err)
	}

	return &SQLStore{db: db, dialect: dialect, sb: sb}, nil
}

// Migrate creates the listings table and its indexes if they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	stmts := append(append([]string(nil), migrations[s.dialect]...), indexes...)
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: migrate: %w", s.dialect, err)
		}
	}
	return nil
}

func (s *SQLStore) FindByExternalID(ctx context.Context, id string) (*models.ListingRecord, error) {
	query, args, err := s.sb.Select(listingColumns...).
		From(listingsTable).
		Where(sq.Eq{"external_id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: build find: %w", s.dialect, err)
	}

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: find %s: %w", s.dialect, id, err)
	}
	return rec, nil
}

func (s *SQLStore) Upsert(ctx context.Context, rec *models.ListingRecord) error {
	images, err := json.Marshal(nonNil(rec.ImageURLs))
	if err != nil {
		return fmt.Errorf("%s: encode image urls: %w", s.dialect, err)
	}

	updates := make([]string, len(mutableColumns))
	for i, col := range mutableColumns {
		updates[i] = col + " = excluded." + col
	}

	query, args, err := s.sb.Insert(listingsTable).
		Columns(listingColumns...).
		Values(
			rec.ExternalID, rec.Title, rec.Price, rec.Currency, rec.Location, rec.SellerName, rec.SellerType,
			rec.Description, rec.Brand, rec.Model, rec.Year, rec.MileageKm, rec.FuelType, rec.Transmission,
			rec.EngineCC, rec.Color, string(images), rec.SourceURL,
			dbTime(rec.FirstSeenAt), dbTime(rec.LastSeenAt), rec.Active,
		).
		Suffix("ON CONFLICT (external_id) DO UPDATE SET " + strings.Join(updates, ", ")).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: build upsert: %w", s.dialect, err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: upsert %s: %w", s.dialect, rec.ExternalID, err)
	}
	return nil
}

// PurgeOlderThan deletes records not seen since cutoff.
func (s *SQLStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := s.sb.Delete(listingsTable).
		Where(sq.Lt{"last_seen_at": dbTime(cutoff)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%s: build purge: %w", s.dialect, err)
	}
	return s.exec(ctx, "purge", query, args)
}

// DeactivateOlderThan marks records not seen since cutoff as inactive.
func (s *SQLStore) DeactivateOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := s.sb.Update(listingsTable).
		Set("active", false).
		Where(sq.And{
			sq.Lt{"last_seen_at": dbTime(cutoff)},
			sq.Eq{"active": true},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%s: build deactivate: %w", s.dialect, err)
	}
	return s.exec(ctx, "deactivate", query, args)
}

// List returns matching records, newest first.
func (s *SQLStore) List(ctx context.Context, filter ListFilter) ([]*models.ListingRecord, error) {
	qb := s.sb.Select(listingColumns...).
		From(listingsTable).
		OrderBy("first_seen_at DESC", "external_id")
	if q := strings.TrimSpace(filter.Query); q != "" {
		qb = qb.Where(sq.Like{"LOWER(title)": "%" + strings.ToLower(q) + "%"})
	}
	if filter.ActiveOnly {
		qb = qb.Where(sq.Eq{"active": true})
	}
	if filter.Limit > 0 {
		qb = qb.Limit(uint64(filter.Limit))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: build list: %w", s.dialect, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: list: %w", s.dialect, err)
	}
	defer rows.Close()

	records := make([]*models.ListingRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", s.dialect, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func ping(ctx context.Context, db *sql.DB, attempts int) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		if i+1 < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
	}
	return err
}

func (s *SQLStore) exec(ctx context.Context, op, query string, args []interface{}) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %s: %w", s.dialect, op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %s: rows affected: %w", s.dialect, op, err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.ListingRecord, error) {
	rec := &models.ListingRecord{}
	var images string
	if err := row.Scan(
		&rec.ExternalID, &rec.Title, &rec.Price, &rec.Currency, &rec.Location, &rec.SellerName, &rec.SellerType,
		&rec.Description, &rec.Brand, &rec.Model, &rec.Year, &rec.MileageKm, &rec.FuelType, &rec.Transmission,
		&rec.EngineCC, &rec.Color, &images, &rec.SourceURL, &rec.FirstSeenAt, &rec.LastSeenAt, &rec.Active,
	); err != nil {
		return nil, err
	}

	rec.ImageURLs = make([]string, 0)
	if images != "" {
		if err := json.Unmarshal([]byte(images), &rec.ImageURLs); err != nil {
			return nil, fmt.Errorf("decode image urls: %w", err)
		}
	}
	rec.FirstSeenAt = rec.FirstSeenAt.UTC()
	rec.LastSeenAt = rec.LastSeenAt.UTC()
	return rec, nil
}

// dbTime stores instants in UTC at the precision both engines keep, so
// text comparison in SQLite orders them correctly.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
