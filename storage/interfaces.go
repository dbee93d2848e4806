package storage

import (
	"context"
	"time"

	"olx-car-scraper/models"
)

// Store is the interface any listing backend must satisfy. Records are
// keyed by ExternalID.
type Store interface {
	// FindByExternalID returns nil, nil when no record has the id.
	FindByExternalID(ctx context.Context, id string) (*models.ListingRecord, error)
	// Upsert inserts rec or overwrites the stored record with the same
	// ExternalID. The stored FirstSeenAt is never changed by an update.
	Upsert(ctx context.Context, rec *models.ListingRecord) error
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	DeactivateOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	List(ctx context.Context, filter ListFilter) ([]*models.ListingRecord, error)
	Close() error
}

// ListFilter narrows List. The zero value returns every record.
type ListFilter struct {
	// Query matches, case-insensitively, anywhere in the title.
	Query      string
	ActiveOnly bool
	Limit      int
}

// RecordWriter exports listing records to a file or stream.
type RecordWriter interface {
	Write(records []*models.ListingRecord) error
	Close() error
}
