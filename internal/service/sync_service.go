package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"focusflow/backend/internal/calendar"
	"focusflow/backend/internal/logger"
	"focusflow/backend/internal/model"
	"focusflow/backend/internal/repository"
)

const defaultEventTitle = "Pomodoro Focus Session"

// SyncService tracks which focus records reached the external calendar.
type SyncService struct {
	store      *repository.Store
	aggregates *AggregateService
	calendar   calendar.Client
	now        func() time.Time
}

func NewSyncService(store *repository.Store, aggregates *AggregateService, client calendar.Client) *SyncService {
	return &SyncService{
		store:      store,
		aggregates: aggregates,
		calendar:   client,
		now:        time.Now,
	}
}

// MarkSynced moves a pending record to synced with the given external
// reference and advances the owner's sync timestamp in the same transaction.
// Missing records, records already synced and empty references report false.
// The owner is re-checked inside the transaction; if the record changed hands
// since it was read, the whole step runs again for the new owner.
func (s *SyncService) MarkSynced(ctx context.Context, recordID, externalRef string) (bool, error) {
	externalRef = strings.TrimSpace(externalRef)
	if externalRef == "" || !s.store.Available() {
		return false, nil
	}

	for attempt := 0; attempt <= s.aggregates.maxRetries; attempt++ {
		record, err := s.store.FocusRecords.Get(ctx, recordID)
		if err != nil {
			return false, err
		}
		if record == nil || record.SyncStatus != model.SyncStatusPending {
			return false, nil
		}

		owner := record.UserID
		now := s.now().UnixMilli()
		marked := false
		_, err = s.aggregates.update(ctx, owner, func(tx *repository.Tx, meta model.UserMeta) (model.UserMeta, error) {
			marked = false
			current, err := tx.FocusRecords.Get(ctx, recordID)
			if err != nil {
				return meta, err
			}
			if current == nil || current.SyncStatus != model.SyncStatusPending {
				return meta, nil
			}
			if current.UserID != owner {
				return meta, errOwnerMoved
			}

			ok, err := tx.FocusRecords.MarkSynced(ctx, recordID, externalRef)
			if err != nil {
				return meta, err
			}
			marked = ok
			if !ok {
				return meta, nil
			}
			return advanceSync(meta, now), nil
		})
		if errors.Is(err, errOwnerMoved) {
			logger.Sync().Debug("record changed owner, retrying", "record_id", recordID, "from", owner)
			continue
		}
		if err != nil {
			return false, err
		}
		return marked, nil
	}
	return false, ErrWriteConflict
}

// Configured reports whether a calendar client is attached.
func (s *SyncService) Configured() bool {
	return s.calendar != nil
}

// SyncRecord pushes one record to the calendar. A calendar failure is logged
// and leaves the record pending; nothing else is undone.
func (s *SyncService) SyncRecord(ctx context.Context, record *model.FocusRecord) (bool, error) {
	if record == nil || record.SyncStatus != model.SyncStatusPending || s.calendar == nil {
		return false, nil
	}

	title := strings.TrimSpace(record.TaskName)
	if title == "" {
		title = defaultEventTitle
	}
	start := time.UnixMilli(record.StartTime)
	end := time.UnixMilli(record.EndTime)

	eventID, err := s.calendar.CreateEvent(ctx, title, start, end)
	if err != nil {
		logger.Sync().Warn("calendar sync failed, record stays pending",
			"record_id", record.ID,
			"user_id", record.UserID,
			"error", err,
		)
		return false, nil
	}

	ok, err := s.MarkSynced(ctx, record.ID, eventID)
	if err != nil || !ok {
		return ok, err
	}
	record.SyncStatus = model.SyncStatusSynced
	record.CalendarEventID = &eventID
	return true, nil
}

// ListPending returns the user's records still waiting for the calendar.
func (s *SyncService) ListPending(ctx context.Context, userID string) ([]model.FocusRecord, error) {
	return s.store.FocusRecords.ListByUserAndSyncStatus(ctx, userID, model.SyncStatusPending)
}

// SyncPending retries every pending record of the user once and reports how
// many reached the calendar.
func (s *SyncService) SyncPending(ctx context.Context, userID string) (int, error) {
	pending, err := s.ListPending(ctx, userID)
	if err != nil {
		return 0, err
	}

	synced := 0
	for i := range pending {
		ok, err := s.SyncRecord(ctx, &pending[i])
		if err != nil {
			return synced, err
		}
		if ok {
			synced++
		}
	}
	return synced, nil
}
