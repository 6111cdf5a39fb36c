package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusflow/backend/internal/model"
)

func TestCompleteValidatesInput(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	focus := NewFocusService(store, NewAggregateService(store, time.UTC, DefaultMaxRetries))

	input := completion(t, "2024-01-05", 9, 1500, model.ModePomodoro)
	input.StartTime = input.EndTime
	record, _, err := focus.Complete(ctx, "u", input)
	require.NoError(t, err)
	assert.Nil(t, record, "end must be after start")

	input = completion(t, "2024-01-05", 9, 1500, model.FocusMode("Nap"))
	record, _, err = focus.Complete(ctx, "u", input)
	require.NoError(t, err)
	assert.Nil(t, record)

	count, err := store.FocusRecords.CountByUser(ctx, "u")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCompleteSnapshotsTag(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	focus := NewFocusService(store, NewAggregateService(store, time.UTC, DefaultMaxRetries))

	input := completion(t, "2024-01-05", 9, 0, model.ModeFlow)
	input.StartTime = input.EndTime - 90_000
	input.TagName = ""
	record, meta, err := focus.Complete(ctx, "u", input)
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Regexp(t, `^record-`, record.ID)
	assert.Equal(t, "General", record.TagName)
	assert.Equal(t, "#94a3b8", record.TagColor)
	assert.EqualValues(t, 90, record.Duration, "duration falls back to the elapsed time")
	assert.Equal(t, model.SyncStatusPending, record.SyncStatus)
	assert.EqualValues(t, 90, meta.TotalFocusTime)
}

func TestTodayFocusTime(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	loc := time.FixedZone("UTC+2", 2*60*60)
	focus := NewFocusService(store, NewAggregateService(store, loc, DefaultMaxRetries))

	now := time.Date(2024, 5, 10, 15, 0, 0, 0, loc)
	inputs := []struct {
		end     time.Time
		seconds int64
		mode    model.FocusMode
	}{
		{time.Date(2024, 5, 10, 0, 0, 0, 0, loc), 600, model.ModePomodoro},
		{time.Date(2024, 5, 10, 9, 0, 0, 0, loc), 1500, model.ModeFlow},
		{time.Date(2024, 5, 10, 9, 30, 0, 0, loc), 300, model.ModeShortBreak},
		{time.Date(2024, 5, 9, 23, 59, 0, 0, loc), 1500, model.ModePomodoro},
		{time.Date(2024, 5, 11, 0, 0, 0, 0, loc), 1500, model.ModePomodoro},
	}
	for _, in := range inputs {
		_, _, err := focus.Complete(ctx, "u", CompletionInput{
			TaskName:  "Focus",
			StartTime: in.end.UnixMilli() - in.seconds*1000,
			EndTime:   in.end.UnixMilli(),
			Duration:  in.seconds,
			Mode:      in.mode,
		})
		require.NoError(t, err)
	}

	total, err := focus.TodayFocusTime(ctx, "u", now)
	require.NoError(t, err)
	assert.EqualValues(t, 2100, total)

	records, err := focus.ListRange(ctx, "u", "General", now.Add(-24*time.Hour), now)
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestResolveMode(t *testing.T) {
	tests := map[string]model.FocusMode{
		"focus":       model.ModePomodoro,
		"short-break": model.ModeShortBreak,
		"long-break":  model.ModeLongBreak,
		"flow":        model.ModeFlow,
		"unknown":     model.ModePomodoro,
	}
	for input, want := range tests {
		assert.Equal(t, want, ResolveMode(input), input)
	}
}
