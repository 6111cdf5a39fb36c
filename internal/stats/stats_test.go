package stats

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusflow/backend/internal/model"
)

var testLoc = time.FixedZone("UTC+2", 2*60*60)

func at(t *testing.T, day string, hour int) int64 {
	t.Helper()
	d, err := time.ParseInLocation(DayLayout, day, testLoc)
	require.NoError(t, err)
	return d.Add(time.Duration(hour) * time.Hour).UnixMilli()
}

func record(end int64, duration int64, mode model.FocusMode) model.FocusRecord {
	return model.FocusRecord{
		StartTime: end - duration*1000,
		EndTime:   end,
		Duration:  duration,
		Mode:      mode,
	}
}

func TestDayUsesLocation(t *testing.T) {
	// 23:30 UTC on the 1st is already the 2nd at UTC+2.
	ms := time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, "2024-03-02", Day(ms, testLoc))
	assert.Equal(t, "2024-03-01", Day(ms, time.UTC))
}

func TestDayGap(t *testing.T) {
	gap, ok := DayGap("2024-02-28", "2024-03-01")
	require.True(t, ok)
	assert.Equal(t, 2, gap)

	gap, ok = DayGap("2024-03-30", "2024-03-31")
	require.True(t, ok)
	assert.Equal(t, 1, gap)

	_, ok = DayGap("", "2024-03-01")
	assert.False(t, ok)
}

func TestApplyIgnoresNonQualifying(t *testing.T) {
	meta := model.UserMeta{StreakCount: 2, LastFocusDate: "2024-03-01", TotalFocusTime: 600}

	next, applied := Apply(meta, 0, at(t, "2024-03-02", 10), model.ModePomodoro, testLoc)
	assert.False(t, applied)
	assert.Equal(t, meta, next)

	next, applied = Apply(meta, 300, at(t, "2024-03-02", 10), model.ModeShortBreak, testLoc)
	assert.False(t, applied)
	assert.Equal(t, meta, next)
}

func TestApplySameDayCountsTimeOnce(t *testing.T) {
	meta := model.UserMeta{}

	meta, _ = Apply(meta, 1500, at(t, "2024-03-01", 9), model.ModePomodoro, testLoc)
	assert.Equal(t, 1, meta.StreakCount)
	assert.EqualValues(t, 1500, meta.TotalFocusTime)

	meta, _ = Apply(meta, 1200, at(t, "2024-03-01", 15), model.ModeFlow, testLoc)
	assert.Equal(t, 1, meta.StreakCount)
	assert.EqualValues(t, 2700, meta.TotalFocusTime)
	assert.Equal(t, "2024-03-01", meta.LastFocusDate)
}

func TestApplyStreakTransitions(t *testing.T) {
	meta := model.UserMeta{StreakCount: 4, LastFocusDate: "2024-03-01"}

	next, _ := Apply(meta, 60, at(t, "2024-03-02", 8), model.ModePomodoro, testLoc)
	assert.Equal(t, 5, next.StreakCount)
	assert.Equal(t, "2024-03-02", next.LastFocusDate)

	next, _ = Apply(meta, 60, at(t, "2024-03-10", 8), model.ModePomodoro, testLoc)
	assert.Equal(t, 1, next.StreakCount)
	assert.Equal(t, "2024-03-10", next.LastFocusDate)
}

func TestApplyOutOfOrderLeavesStreak(t *testing.T) {
	meta := model.UserMeta{StreakCount: 3, LastFocusDate: "2024-03-05"}
	next, applied := Apply(meta, 60, at(t, "2024-03-04", 8), model.ModePomodoro, testLoc)
	require.True(t, applied)
	assert.Equal(t, 3, next.StreakCount)
	assert.EqualValues(t, 60, next.TotalFocusTime)
	assert.Equal(t, "2024-03-04", next.LastFocusDate)
}

func TestFold(t *testing.T) {
	records := []model.FocusRecord{
		record(at(t, "2024-03-01", 9), 1500, model.ModePomodoro),
		record(at(t, "2024-03-03", 9), 1500, model.ModePomodoro),
		record(at(t, "2024-03-04", 9), 600, model.ModeFlow),
		record(at(t, "2024-03-04", 11), 300, model.ModeShortBreak),
		record(at(t, "2024-03-05", 9), 0, model.ModePomodoro),
	}

	agg := Fold(records, testLoc)
	assert.Equal(t, "2024-03-04", agg.LastFocusDate)
	assert.Equal(t, 2, agg.StreakCount)
	assert.EqualValues(t, 3600, agg.TotalFocusTime)

	assert.Equal(t, Aggregate{}, Fold(nil, testLoc))
}

func TestReplayMatchesFold(t *testing.T) {
	modes := []model.FocusMode{model.ModePomodoro, model.ModeFlow, model.ModeShortBreak, model.ModeLongBreak}
	rng := rand.New(rand.NewSource(7))
	base := at(t, "2024-01-01", 0)

	for round := 0; round < 200; round++ {
		n := rng.Intn(25)
		records := make([]model.FocusRecord, 0, n)
		cursor := base
		for i := 0; i < n; i++ {
			// Mostly same-day or next-day steps with the occasional long gap.
			step := time.Duration(rng.Intn(30)) * time.Hour
			if rng.Intn(6) == 0 {
				step += time.Duration(rng.Intn(5)) * 24 * time.Hour
			}
			cursor += step.Milliseconds()
			duration := int64(rng.Intn(3000))
			records = append(records, record(cursor, duration, modes[rng.Intn(len(modes))]))
		}

		replayed := Replay("u", records, testLoc)
		folded := Fold(records, testLoc)
		require.True(t, folded.Matches(replayed), "round %d: fold %+v replay %+v", round, folded, replayed)
	}
}

func TestAggregateApplyToKeepsSettings(t *testing.T) {
	meta := model.UserMeta{
		UserID:            "u",
		StreakCount:       9,
		Settings:          model.Settings{FocusDuration: 10, ShortBreakDuration: 2, LongBreakDuration: 3},
		LastSyncTimestamp: 42,
	}
	next := Aggregate{StreakCount: 1, LastFocusDate: "2024-01-01", TotalFocusTime: 5}.ApplyTo(meta)
	assert.Equal(t, meta.Settings, next.Settings)
	assert.EqualValues(t, 42, next.LastSyncTimestamp)
	assert.Equal(t, 1, next.StreakCount)
}
