package service

import (
	"context"
	"errors"
	"time"

	"focusflow/backend/internal/logger"
	"focusflow/backend/internal/model"
	"focusflow/backend/internal/repository"
	"focusflow/backend/internal/stats"
)

const DefaultMaxRetries = 5

// AggregateService keeps user_meta consistent with the focus history.
type AggregateService struct {
	store      *repository.Store
	loc        *time.Location
	maxRetries int
}

func NewAggregateService(store *repository.Store, loc *time.Location, maxRetries int) *AggregateService {
	if loc == nil {
		loc = time.Local
	}
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &AggregateService{store: store, loc: loc, maxRetries: maxRetries}
}

func (s *AggregateService) Location() *time.Location {
	return s.loc
}

type metaMutation func(tx *repository.Tx, meta model.UserMeta) (model.UserMeta, error)

// update reads the user's meta, applies fn and writes the result back only if
// the stored version did not move in between. A lost race re-reads and
// retries; after maxRetries retries it gives up with ErrWriteConflict.
// Returning meta unchanged from fn skips the write.
func (s *AggregateService) update(ctx context.Context, userID string, fn metaMutation) (*model.UserMeta, error) {
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		var result *model.UserMeta
		err := s.store.RunAtomic(ctx, func(tx *repository.Tx) error {
			current, err := tx.UserMeta.Ensure(ctx, userID)
			if err != nil {
				return err
			}
			if current == nil {
				return nil
			}

			next, err := fn(tx, *current)
			if err != nil {
				return err
			}
			if next == *current {
				result = current
				return nil
			}

			swapped, err := tx.UserMeta.CompareAndSwap(ctx, &next, current.Version)
			if err != nil {
				return err
			}
			if !swapped {
				return errLostRace
			}
			result = &next
			return nil
		})
		if errors.Is(err, errLostRace) {
			logger.Aggregate().Debug("meta version moved, retrying", "user_id", userID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	logger.Aggregate().Warn("giving up on meta write", "user_id", userID, "retries", s.maxRetries)
	return nil, ErrWriteConflict
}

// OnFocusCompleted folds one finished session into the user's meta. Sessions
// that do not qualify are ignored and reported as a nil meta.
func (s *AggregateService) OnFocusCompleted(ctx context.Context, userID string, durationSeconds, endedAtMs int64, mode model.FocusMode) (*model.UserMeta, error) {
	if durationSeconds <= 0 || !mode.Qualifying() {
		return nil, nil
	}

	return s.update(ctx, userID, func(_ *repository.Tx, meta model.UserMeta) (model.UserMeta, error) {
		next, _ := stats.Apply(meta, durationSeconds, endedAtMs, mode, s.loc)
		return next, nil
	})
}

// RecordCompletion stores a finished record and applies it to the owner's
// meta in the same transaction.
func (s *AggregateService) RecordCompletion(ctx context.Context, record *model.FocusRecord) (*model.UserMeta, error) {
	return s.update(ctx, record.UserID, func(tx *repository.Tx, meta model.UserMeta) (model.UserMeta, error) {
		if err := tx.FocusRecords.Put(ctx, record); err != nil {
			return meta, err
		}
		next, _ := stats.Apply(meta, record.Duration, record.EndTime, record.Mode, s.loc)
		return next, nil
	})
}

// Recalculate rebuilds the aggregate fields from the user's full history.
// Settings and the sync timestamp are preserved.
func (s *AggregateService) Recalculate(ctx context.Context, userID string) (*model.UserMeta, error) {
	return s.update(ctx, userID, func(tx *repository.Tx, meta model.UserMeta) (model.UserMeta, error) {
		return s.recalculate(ctx, tx, meta)
	})
}

func (s *AggregateService) recalculate(ctx context.Context, tx *repository.Tx, meta model.UserMeta) (model.UserMeta, error) {
	records, err := tx.FocusRecords.ListByUser(ctx, meta.UserID)
	if err != nil {
		return meta, err
	}
	return stats.Fold(records, s.loc).ApplyTo(meta), nil
}

// RemoveRecord deletes a record owned by userID and recalculates. It reports
// false when the record is missing or belongs to someone else.
func (s *AggregateService) RemoveRecord(ctx context.Context, userID, recordID string) (bool, *model.UserMeta, error) {
	removed := false
	meta, err := s.update(ctx, userID, func(tx *repository.Tx, meta model.UserMeta) (model.UserMeta, error) {
		removed = false
		record, err := tx.FocusRecords.Get(ctx, recordID)
		if err != nil {
			return meta, err
		}
		if record == nil || record.UserID != userID {
			return meta, nil
		}
		if err := tx.FocusRecords.Delete(ctx, recordID); err != nil {
			return meta, err
		}
		removed = true
		return s.recalculate(ctx, tx, meta)
	})
	if err != nil {
		return false, nil, err
	}
	return removed, meta, nil
}

// UpdateSettings stores new durations. Any non-positive duration rejects the
// whole update and returns a nil meta.
func (s *AggregateService) UpdateSettings(ctx context.Context, userID string, settings model.Settings) (*model.UserMeta, error) {
	if !settings.Valid() {
		return nil, nil
	}
	return s.update(ctx, userID, func(_ *repository.Tx, meta model.UserMeta) (model.UserMeta, error) {
		meta.Settings = settings
		return meta, nil
	})
}

// AdvanceSyncTimestamp moves LastSyncTimestamp forward to ts. Older values
// are ignored.
func (s *AggregateService) AdvanceSyncTimestamp(ctx context.Context, userID string, ts int64) (*model.UserMeta, error) {
	return s.update(ctx, userID, func(_ *repository.Tx, meta model.UserMeta) (model.UserMeta, error) {
		return advanceSync(meta, ts), nil
	})
}

func advanceSync(meta model.UserMeta, ts int64) model.UserMeta {
	if ts > meta.LastSyncTimestamp {
		meta.LastSyncTimestamp = ts
	}
	return meta
}

// Meta returns the user's meta, creating the default row on first access.
// Without a durable store it returns the default meta.
func (s *AggregateService) Meta(ctx context.Context, userID string) (*model.UserMeta, error) {
	if !s.store.Available() {
		meta := model.DefaultMeta(userID)
		return &meta, nil
	}
	return s.store.UserMeta.Ensure(ctx, userID)
}
