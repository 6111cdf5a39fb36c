package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"focusflow/backend/internal/model"
	"focusflow/backend/internal/repository"
	"focusflow/backend/internal/tag"
)

// CompletionInput describes a finished timer run as reported by the client.
type CompletionInput struct {
	TaskID    *string         `json:"taskId"`
	TaskName  string          `json:"taskName"`
	TagName   string          `json:"tagName"`
	TagColor  string          `json:"tagColor"`
	StartTime int64           `json:"startTime"`
	EndTime   int64           `json:"endTime"`
	Duration  int64           `json:"duration"`
	Mode      model.FocusMode `json:"mode"`
}

type FocusService struct {
	store      *repository.Store
	aggregates *AggregateService
}

func NewFocusService(store *repository.Store, aggregates *AggregateService) *FocusService {
	return &FocusService{store: store, aggregates: aggregates}
}

func newRecordID() string {
	return "record-" + uuid.NewString()
}

// Complete stores a pending record for userID and folds it into the user's
// meta. Invalid input, or a missing store, yields a nil record.
func (s *FocusService) Complete(ctx context.Context, userID string, input CompletionInput) (*model.FocusRecord, *model.UserMeta, error) {
	if input.EndTime <= input.StartTime || !input.Mode.Valid() || !s.store.Available() {
		return nil, nil, nil
	}

	duration := input.Duration
	if duration <= 0 {
		duration = (input.EndTime - input.StartTime) / 1000
	}

	tagName := strings.TrimSpace(input.TagName)
	if tagName == "" {
		tagName = tag.DefaultName
	}
	presentation := tag.Present(tag.Slug(tagName))
	tagColor := strings.TrimSpace(input.TagColor)
	if tagColor == "" {
		tagColor = presentation.Color
	}

	record := &model.FocusRecord{
		ID:         newRecordID(),
		UserID:     userID,
		TaskID:     input.TaskID,
		TaskName:   strings.TrimSpace(input.TaskName),
		TagName:    tagName,
		TagColor:   tagColor,
		StartTime:  input.StartTime,
		EndTime:    input.EndTime,
		Duration:   duration,
		Mode:       input.Mode,
		SyncStatus: model.SyncStatusPending,
	}

	meta, err := s.aggregates.RecordCompletion(ctx, record)
	if err != nil {
		return nil, nil, err
	}
	return record, meta, nil
}

// Remove deletes a record owned by userID and rebuilds the user's aggregate.
func (s *FocusService) Remove(ctx context.Context, userID, recordID string) (bool, *model.UserMeta, error) {
	return s.aggregates.RemoveRecord(ctx, userID, recordID)
}

func (s *FocusService) List(ctx context.Context, userID string) ([]model.FocusRecord, error) {
	return s.store.FocusRecords.ListByUser(ctx, userID)
}

// ListRange returns records ending inside [from, to]. An empty tag matches
// every tag.
func (s *FocusService) ListRange(ctx context.Context, userID, tagName string, from, to time.Time) ([]model.FocusRecord, error) {
	if tagName != "" {
		return s.store.FocusRecords.ListByUserTagRange(ctx, userID, tagName, from.UnixMilli(), to.UnixMilli())
	}
	return s.store.FocusRecords.ListByUserAndRange(ctx, userID, from.UnixMilli(), to.UnixMilli())
}

// TodayFocusTime sums qualifying durations that ended on now's calendar day.
func (s *FocusService) TodayFocusTime(ctx context.Context, userID string, now time.Time) (int64, error) {
	start, end := dayBounds(now, s.aggregates.Location())
	records, err := s.store.FocusRecords.ListByUserAndRange(ctx, userID, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return 0, err
	}

	var total int64
	for _, record := range records {
		if record.Qualifying() {
			total += record.Duration
		}
	}
	return total, nil
}

func dayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1).Add(-time.Millisecond)
	return start, end
}

// ResolveMode maps a timer mode name to the mode stored on records.
func ResolveMode(timerMode string) model.FocusMode {
	switch timerMode {
	case "focus":
		return model.ModePomodoro
	case "short-break":
		return model.ModeShortBreak
	case "long-break":
		return model.ModeLongBreak
	case "flow":
		return model.ModeFlow
	default:
		return model.ModePomodoro
	}
}
