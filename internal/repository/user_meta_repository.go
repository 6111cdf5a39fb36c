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

var userMetaColumns = []string{
	"user_id", "streak_count", "last_focus_date", "total_focus_time",
	"focus_duration", "short_break_duration", "long_break_duration",
	"last_sync_timestamp", "version",
}

type UserMetaRepository struct {
	q sqlx.ExtContext
}

type userMetaRow struct {
	UserID             string `db:"user_id"`
	StreakCount        int    `db:"streak_count"`
	LastFocusDate      string `db:"last_focus_date"`
	TotalFocusTime     int64  `db:"total_focus_time"`
	FocusDuration      int    `db:"focus_duration"`
	ShortBreakDuration int    `db:"short_break_duration"`
	LongBreakDuration  int    `db:"long_break_duration"`
	LastSyncTimestamp  int64  `db:"last_sync_timestamp"`
	Version            int64  `db:"version"`
}

func (row userMetaRow) toModel() *model.UserMeta {
	return &model.UserMeta{
		UserID:         row.UserID,
		StreakCount:    row.StreakCount,
		LastFocusDate:  row.LastFocusDate,
		TotalFocusTime: row.TotalFocusTime,
		Settings: model.Settings{
			FocusDuration:      row.FocusDuration,
			ShortBreakDuration: row.ShortBreakDuration,
			LongBreakDuration:  row.LongBreakDuration,
		},
		LastSyncTimestamp: row.LastSyncTimestamp,
		Version:           row.Version,
	}
}

func (r *UserMetaRepository) Get(ctx context.Context, userID string) (*model.UserMeta, error) {
	if r.q == nil {
		return nil, nil
	}

	query, args, err := psql.Select(userMetaColumns...).From("user_meta").Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get user meta: %w", err)
	}

	var row userMetaRow
	if err := sqlx.GetContext(ctx, r.q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user meta: %w", err)
	}
	return row.toModel(), nil
}

// Put replaces the row for meta.UserID unconditionally and bumps its version.
func (r *UserMetaRepository) Put(ctx context.Context, meta *model.UserMeta) error {
	if r.q == nil {
		return nil
	}

	query, args, err := psql.Insert("user_meta").
		Columns(userMetaColumns...).
		Values(
			meta.UserID,
			meta.StreakCount,
			meta.LastFocusDate,
			meta.TotalFocusTime,
			meta.Settings.FocusDuration,
			meta.Settings.ShortBreakDuration,
			meta.Settings.LongBreakDuration,
			meta.LastSyncTimestamp,
			1,
		).
		Suffix(`ON CONFLICT(user_id) DO UPDATE SET
			streak_count = excluded.streak_count,
			last_focus_date = excluded.last_focus_date,
			total_focus_time = excluded.total_focus_time,
			focus_duration = excluded.focus_duration,
			short_break_duration = excluded.short_break_duration,
			long_break_duration = excluded.long_break_duration,
			last_sync_timestamp = excluded.last_sync_timestamp,
			version = user_meta.version + 1`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build put user meta: %w", err)
	}

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put user meta: %w", err)
	}
	return nil
}

// Ensure returns the user's row, creating it with defaults when missing and
// backfilling settings that were never stored.
func (r *UserMetaRepository) Ensure(ctx context.Context, userID string) (*model.UserMeta, error) {
	if r.q == nil {
		return nil, nil
	}

	defaults := model.DefaultSettings()
	query, args, err := psql.Insert("user_meta").
		Columns(userMetaColumns...).
		Values(userID, 0, "", 0, defaults.FocusDuration, defaults.ShortBreakDuration, defaults.LongBreakDuration, 0, 1).
		Suffix("ON CONFLICT(user_id) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ensure user meta: %w", err)
	}
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("ensure user meta: %w", err)
	}

	query, args, err = psql.Update("user_meta").
		Set("focus_duration", defaults.FocusDuration).
		Set("short_break_duration", defaults.ShortBreakDuration).
		Set("long_break_duration", defaults.LongBreakDuration).
		Set("version", sq.Expr("version + 1")).
		Where(sq.Eq{
			"user_id":              userID,
			"focus_duration":       0,
			"short_break_duration": 0,
			"long_break_duration":  0,
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build backfill settings: %w", err)
	}
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("backfill settings: %w", err)
	}

	return r.Get(ctx, userID)
}

// CompareAndSwap writes meta only if the stored version still equals
// expectedVersion. A false result means another writer got there first.
func (r *UserMetaRepository) CompareAndSwap(ctx context.Context, meta *model.UserMeta, expectedVersion int64) (bool, error) {
	if r.q == nil {
		return false, nil
	}

	query, args, err := psql.Update("user_meta").
		Set("streak_count", meta.StreakCount).
		Set("last_focus_date", meta.LastFocusDate).
		Set("total_focus_time", meta.TotalFocusTime).
		Set("focus_duration", meta.Settings.FocusDuration).
		Set("short_break_duration", meta.Settings.ShortBreakDuration).
		Set("long_break_duration", meta.Settings.LongBreakDuration).
		Set("last_sync_timestamp", meta.LastSyncTimestamp).
		Set("version", expectedVersion+1).
		Where(sq.Eq{"user_id": meta.UserID, "version": expectedVersion}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build swap user meta: %w", err)
	}

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("swap user meta: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("swap user meta rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}
	meta.Version = expectedVersion + 1
	return true, nil
}
