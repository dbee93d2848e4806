package services

import (
	"context"
	"fmt"
	"time"

	"olx-car-scraper/models"
	"olx-car-scraper/storage"
	"olx-car-scraper/utils"
)

// MergeError ties a failure to the record it happened on.
type MergeError struct {
	ExternalID string
	Err        error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge %s: %v", e.ExternalID, e.Err)
}

func (e *MergeError) Unwrap() error { return e.Err }

// MergeReport counts what a Merge call did. Inserted+Updated+Failed equals
// the number of candidates. Stored holds the records as written, with their
// observation times, in candidate order.
type MergeReport struct {
	Inserted int
	Updated  int
	Failed   int
	Errors   []*MergeError
	Stored   []*models.ListingRecord
}

// Reconciler merges freshly scraped candidates into the store, one record
// at a time. A failure on one record never aborts the others.
type Reconciler struct {
	store   storage.Store
	cleaner *Cleaner
	locks   *utils.KeyedMutex
	logger  *utils.Logger
	now     func() time.Time
}

// NewReconciler returns a Reconciler writing to store.
func NewReconciler(store storage.Store, logger *utils.Logger) *Reconciler {
	return &Reconciler{
		store:   store,
		cleaner: NewCleaner(logger),
		locks:   utils.NewKeyedMutex(),
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock replaces the time source. Tests use it to pin observation times.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Merge stores every candidate. New ExternalIDs are inserted with
// FirstSeenAt = LastSeenAt = now; known ones get every mutable field
// overwritten and LastSeenAt bumped while FirstSeenAt is kept.
func (r *Reconciler) Merge(ctx context.Context, candidates []*models.ListingRecord) MergeReport {
	var report MergeReport

	for _, cand := range candidates {
		if cand == nil {
			continue
		}
		stored, inserted, err := r.mergeOne(ctx, cand)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, &MergeError{ExternalID: cand.ExternalID, Err: err})
			r.logger.Error("[reconciler] %s: %v", cand.ExternalID, err)
			continue
		}
		if inserted {
			report.Inserted++
		} else {
			report.Updated++
		}
		report.Stored = append(report.Stored, stored)
	}

	r.logger.Info("[reconciler] Merged %d candidates — %d inserted, %d updated, %d failed",
		len(candidates), report.Inserted, report.Updated, report.Failed)
	return report
}

func (r *Reconciler) mergeOne(ctx context.Context, cand *models.ListingRecord) (*models.ListingRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	rec := r.cleaner.Clean(cand)
	if err := r.cleaner.Validate(rec); err != nil {
		return nil, false, err
	}

	unlock := r.locks.Lock(rec.ExternalID)
	defer unlock()

	existing, err := r.store.FindByExternalID(ctx, rec.ExternalID)
	if err != nil {
		return nil, false, fmt.Errorf("lookup: %w", err)
	}

	now := r.now().UTC()
	target := rec
	inserted := existing == nil
	if inserted {
		target.FirstSeenAt = now
	} else {
		existing.CopyMutable(rec)
		target = existing
		if now.Before(target.FirstSeenAt) {
			// A clock step backwards must not break FirstSeenAt <= LastSeenAt.
			now = target.FirstSeenAt
		}
	}
	target.LastSeenAt = now
	target.Active = true

	if err := r.store.Upsert(ctx, target); err != nil {
		return nil, false, fmt.Errorf("upsert: %w", err)
	}
	return target.Clone(), inserted, nil
}

// Purge deletes records not seen within olderThan.
func (r *Reconciler) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := r.now().UTC().Add(-olderThan)
	n, err := r.store.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	r.logger.Info("[reconciler] Purged %d listings not seen since %s", n, cutoff.Format(time.RFC3339))
	return n, nil
}

// Deactivate marks records not seen within olderThan as inactive instead
// of deleting them.
func (r *Reconciler) Deactivate(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := r.now().UTC().Add(-olderThan)
	n, err := r.store.DeactivateOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deactivate: %w", err)
	}
	r.logger.Info("[reconciler] Deactivated %d listings not seen since %s", n, cutoff.Format(time.RFC3339))
	return n, nil
}
