package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"focusflow/backend/internal/model"
)

var focusRecordColumns = []string{
	"id", "user_id", "task_id", "task_name", "tag_name", "tag_color",
	"start_time", "end_time", "duration", "mode", "sync_status", "calendar_event_id",
}

type FocusRecordRepository struct {
	q sqlx.ExtContext
}

// FocusRecordPatch covers the only mutable parts of a record: ownership,
// which changes during guest migration, and the sync pair.
type FocusRecordPatch struct {
	UserID          *string
	SyncStatus      *model.SyncStatus
	CalendarEventID *string
}

func (p FocusRecordPatch) setMap() map[string]interface{} {
	m := make(map[string]interface{})
	if p.UserID != nil {
		m["user_id"] = *p.UserID
	}
	if p.SyncStatus != nil {
		m["sync_status"] = string(*p.SyncStatus)
	}
	if p.CalendarEventID != nil {
		m["calendar_event_id"] = *p.CalendarEventID
	}
	return m
}

func (r *FocusRecordRepository) Get(ctx context.Context, id string) (*model.FocusRecord, error) {
	if r.q == nil {
		return nil, nil
	}

	query, args, err := psql.Select(focusRecordColumns...).From("focus_records").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get focus record: %w", err)
	}

	var record model.FocusRecord
	if err := sqlx.GetContext(ctx, r.q, &record, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get focus record: %w", err)
	}
	return &record, nil
}

func (r *FocusRecordRepository) Put(ctx context.Context, record *model.FocusRecord) error {
	if r.q == nil {
		return nil
	}

	query, args, err := psql.Insert("focus_records").
		Columns(focusRecordColumns...).
		Values(
			record.ID,
			record.UserID,
			record.TaskID,
			record.TaskName,
			record.TagName,
			record.TagColor,
			record.StartTime,
			record.EndTime,
			record.Duration,
			string(record.Mode),
			string(record.SyncStatus),
			record.CalendarEventID,
		).
		Suffix(`ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			task_id = excluded.task_id,
			task_name = excluded.task_name,
			tag_name = excluded.tag_name,
			tag_color = excluded.tag_color,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			duration = excluded.duration,
			mode = excluded.mode,
			sync_status = excluded.sync_status,
			calendar_event_id = excluded.calendar_event_id`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build put focus record: %w", err)
	}

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put focus record: %w", err)
	}
	return nil
}

func (r *FocusRecordRepository) Update(ctx context.Context, id string, patch FocusRecordPatch) error {
	_, err := r.update(ctx, sq.Eq{"id": id}, patch)
	return err
}

// MarkSynced moves a pending record to synced. It reports false when the
// record is absent or no longer pending.
func (r *FocusRecordRepository) MarkSynced(ctx context.Context, id, calendarEventID string) (bool, error) {
	synced := model.SyncStatusSynced
	return r.update(ctx, sq.Eq{"id": id, "sync_status": string(model.SyncStatusPending)}, FocusRecordPatch{
		SyncStatus:      &synced,
		CalendarEventID: &calendarEventID,
	})
}

func (r *FocusRecordRepository) update(ctx context.Context, where sq.Eq, patch FocusRecordPatch) (bool, error) {
	if r.q == nil {
		return false, nil
	}
	fields := patch.setMap()
	if len(fields) == 0 {
		return false, nil
	}

	query, args, err := psql.Update("focus_records").SetMap(fields).Where(where).ToSql()
	if err != nil {
		return false, fmt.Errorf("build update focus record: %w", err)
	}
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update focus record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update focus record rows: %w", err)
	}
	return affected > 0, nil
}

func (r *FocusRecordRepository) Delete(ctx context.Context, id string) error {
	if r.q == nil {
		return nil
	}

	query, args, err := psql.Delete("focus_records").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete focus record: %w", err)
	}
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete focus record: %w", err)
	}
	return nil
}

// ListByUser returns the user's records ordered by end time.
func (r *FocusRecordRepository) ListByUser(ctx context.Context, userID string) ([]model.FocusRecord, error) {
	return r.list(ctx, sq.Eq{"user_id": userID})
}

// ListByUserAndRange returns records whose end time falls in [startMs, endMs].
func (r *FocusRecordRepository) ListByUserAndRange(ctx context.Context, userID string, startMs, endMs int64) ([]model.FocusRecord, error) {
	return r.list(ctx, sq.And{
		sq.Eq{"user_id": userID},
		sq.GtOrEq{"end_time": startMs},
		sq.LtOrEq{"end_time": endMs},
	})
}

func (r *FocusRecordRepository) ListByUserAndSyncStatus(ctx context.Context, userID string, status model.SyncStatus) ([]model.FocusRecord, error) {
	return r.list(ctx, sq.Eq{"user_id": userID, "sync_status": string(status)})
}

func (r *FocusRecordRepository) ListByUserTagRange(ctx context.Context, userID, tagName string, startMs, endMs int64) ([]model.FocusRecord, error) {
	return r.list(ctx, sq.And{
		sq.Eq{"user_id": userID, "tag_name": tagName},
		sq.GtOrEq{"end_time": startMs},
		sq.LtOrEq{"end_time": endMs},
	})
}

func (r *FocusRecordRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	if r.q == nil {
		return 0, nil
	}
	count, err := countRows(ctx, r.q, psql.Select("COUNT(1)").From("focus_records").Where(sq.Eq{"user_id": userID}))
	if err != nil {
		return 0, fmt.Errorf("count focus records: %w", err)
	}
	return count, nil
}

func (r *FocusRecordRepository) list(ctx context.Context, where sq.Sqlizer) ([]model.FocusRecord, error) {
	if r.q == nil {
		return []model.FocusRecord{}, nil
	}

	query, args, err := psql.Select(focusRecordColumns...).
		From("focus_records").
		Where(where).
		OrderBy("end_time", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list focus records: %w", err)
	}

	records := []model.FocusRecord{}
	if err := sqlx.SelectContext(ctx, r.q, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list focus records: %w", err)
	}
	return records, nil
}
