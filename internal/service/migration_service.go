package service

import (
	"context"
	"fmt"

	"focusflow/backend/internal/identity"
	"focusflow/backend/internal/intent"
	"focusflow/backend/internal/logger"
	"focusflow/backend/internal/model"
	"focusflow/backend/internal/repository"
)

type MigrationService struct {
	store *repository.Store
	flag  intent.Flag
}

type MigrationResult struct {
	TargetUserID string          `json:"targetUserId"`
	TasksMoved   int             `json:"tasksMoved"`
	RecordsMoved int             `json:"recordsMoved"`
	MetaMerged   bool            `json:"metaMerged"`
	Meta         *model.UserMeta `json:"meta,omitempty"`
}

func NewMigrationService(store *repository.Store, flag intent.Flag) *MigrationService {
	return &MigrationService{store: store, flag: flag}
}

// SetMigrateGuestOnLogin arms or disarms migration for the next sign-in.
func (s *MigrationService) SetMigrateGuestOnLogin(migrate bool) error {
	return s.flag.Set(migrate)
}

// HandleTransition consumes the intent flag on every identity change and
// migrates guest data when the flag was set and a guest just signed in. The
// flag is cleared before migrating, so a failed run is never retried by a
// later login.
func (s *MigrationService) HandleTransition(ctx context.Context, t identity.Transition) (bool, error) {
	migrate, err := s.flag.Consume()
	if err != nil {
		logger.Migration().Warn("intent flag unreadable, skipping migration", "error", err)
		return false, nil
	}
	if !migrate || !t.SignedIn() {
		return false, nil
	}

	result, err := s.MigrateGuest(ctx, t.To)
	if err != nil {
		return false, err
	}
	logger.Migration().Info("guest data migrated",
		"user_id", result.TargetUserID,
		"tasks", result.TasksMoved,
		"records", result.RecordsMoved,
		"meta_merged", result.MetaMerged,
	)
	return true, nil
}

// MigrateGuest moves every guest-owned task and record to targetUserID and
// merges the guest meta into the target's, all in one transaction. The guest
// meta row stays behind with its counters zeroed, which makes a second run a
// no-op.
func (s *MigrationService) MigrateGuest(ctx context.Context, targetUserID string) (*MigrationResult, error) {
	result := &MigrationResult{TargetUserID: targetUserID}
	if targetUserID == "" || identity.IsGuest(targetUserID) {
		return result, nil
	}

	err := s.store.RunAtomic(ctx, func(tx *repository.Tx) error {
		result.TasksMoved, result.RecordsMoved, result.MetaMerged, result.Meta = 0, 0, false, nil

		tasks, err := tx.Tasks.ListByUser(ctx, model.GuestUserID)
		if err != nil {
			return fmt.Errorf("list guest tasks: %w", err)
		}
		records, err := tx.FocusRecords.ListByUser(ctx, model.GuestUserID)
		if err != nil {
			return fmt.Errorf("list guest records: %w", err)
		}
		guestMeta, err := tx.UserMeta.Get(ctx, model.GuestUserID)
		if err != nil {
			return fmt.Errorf("get guest meta: %w", err)
		}

		for _, task := range tasks {
			if err := tx.Tasks.Update(ctx, task.ID, repository.TaskPatch{UserID: &targetUserID}); err != nil {
				return fmt.Errorf("reassign task %s: %w", task.ID, err)
			}
		}
		result.TasksMoved = len(tasks)

		for _, record := range records {
			if err := tx.FocusRecords.Update(ctx, record.ID, repository.FocusRecordPatch{UserID: &targetUserID}); err != nil {
				return fmt.Errorf("reassign record %s: %w", record.ID, err)
			}
		}
		result.RecordsMoved = len(records)

		if guestMeta == nil {
			return nil
		}

		existing, err := tx.UserMeta.Get(ctx, targetUserID)
		if err != nil {
			return fmt.Errorf("get target meta: %w", err)
		}
		merged := MergeMeta(targetUserID, existing, *guestMeta)
		if existing == nil || !sameMeta(*existing, merged) {
			if err := tx.UserMeta.Put(ctx, &merged); err != nil {
				return fmt.Errorf("write merged meta: %w", err)
			}
		}
		result.MetaMerged = true
		result.Meta = &merged

		drained := *guestMeta
		drained.StreakCount = 0
		drained.TotalFocusTime = 0
		drained.LastFocusDate = ""
		if !sameMeta(drained, *guestMeta) {
			if err := tx.UserMeta.Put(ctx, &drained); err != nil {
				return fmt.Errorf("drain guest meta: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MergeMeta combines the target's meta (nil when the target has none) with
// the guest's. Dates compare as strings, which orders zero-padded
// YYYY-MM-DD values chronologically.
func MergeMeta(targetUserID string, existing *model.UserMeta, guest model.UserMeta) model.UserMeta {
	base := model.UserMeta{UserID: targetUserID}
	if existing != nil {
		base = *existing
		base.UserID = targetUserID
	}

	merged := base
	merged.StreakCount = max(base.StreakCount, guest.StreakCount)
	merged.TotalFocusTime = base.TotalFocusTime + guest.TotalFocusTime
	merged.LastSyncTimestamp = max(base.LastSyncTimestamp, guest.LastSyncTimestamp)

	switch {
	case base.LastFocusDate == "":
		merged.LastFocusDate = guest.LastFocusDate
	case guest.LastFocusDate == "":
		merged.LastFocusDate = base.LastFocusDate
	default:
		merged.LastFocusDate = max(base.LastFocusDate, guest.LastFocusDate)
	}

	switch {
	case !base.Settings.IsZero():
		merged.Settings = base.Settings
	case !guest.Settings.IsZero():
		merged.Settings = guest.Settings
	default:
		merged.Settings = model.DefaultSettings()
	}
	return merged
}

// sameMeta compares the stored fields, ignoring the version.
func sameMeta(a, b model.UserMeta) bool {
	a.Version, b.Version = 0, 0
	return a == b
}

// HasGuestData reports whether anything is worth migrating.
func (s *MigrationService) HasGuestData(ctx context.Context) (bool, error) {
	if !s.store.Available() {
		return false, nil
	}

	tasks, err := s.store.Tasks.CountByUser(ctx, model.GuestUserID)
	if err != nil {
		return false, err
	}
	if tasks > 0 {
		return true, nil
	}
	records, err := s.store.FocusRecords.CountByUser(ctx, model.GuestUserID)
	if err != nil {
		return false, err
	}
	if records > 0 {
		return true, nil
	}
	meta, err := s.store.UserMeta.Get(ctx, model.GuestUserID)
	if err != nil {
		return false, err
	}
	return meta != nil && (meta.TotalFocusTime > 0 || meta.StreakCount > 0), nil
}
