// Package stats computes the derived per-user focus statistics. Everything
// here is pure: the incremental update and the full fold must agree for any
// history replayed in end-time order.
package stats

import (
	"sort"
	"time"

	"focusflow/backend/internal/model"
)

const DayLayout = "2006-01-02"

// Day projects an epoch-millisecond timestamp onto its calendar day in loc.
func Day(ms int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(ms).In(loc).Format(DayLayout)
}

// DayGap returns the number of whole calendar days from one YYYY-MM-DD date
// to another. Both are read as civil dates so DST shifts never matter.
func DayGap(from, to string) (int, bool) {
	f, err := time.Parse(DayLayout, from)
	if err != nil {
		return 0, false
	}
	t, err := time.Parse(DayLayout, to)
	if err != nil {
		return 0, false
	}
	return int(t.Sub(f).Hours() / 24), true
}

// Apply folds one completed session into meta. It reports false and returns
// meta untouched when the session does not qualify.
func Apply(meta model.UserMeta, durationSeconds, endedAtMs int64, mode model.FocusMode, loc *time.Location) (model.UserMeta, bool) {
	if durationSeconds <= 0 || !mode.Qualifying() {
		return meta, false
	}

	date := Day(endedAtMs, loc)
	previous := meta.LastFocusDate
	next := meta

	switch {
	case previous == "":
		next.StreakCount = 1
	case date == previous:
	default:
		gap, ok := DayGap(previous, date)
		switch {
		case !ok || gap > 1:
			next.StreakCount = 1
		case gap == 1:
			next.StreakCount++
		}
	}

	next.TotalFocusTime += durationSeconds
	next.LastFocusDate = date
	return next, true
}

type Aggregate struct {
	StreakCount    int
	LastFocusDate  string
	TotalFocusTime int64
}

// Fold recomputes the aggregate from a user's full history.
func Fold(records []model.FocusRecord, loc *time.Location) Aggregate {
	var agg Aggregate
	seen := make(map[string]struct{})
	days := make([]string, 0, len(records))

	for _, record := range records {
		if !record.Qualifying() {
			continue
		}
		agg.TotalFocusTime += record.Duration
		day := Day(record.EndTime, loc)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}

	if len(days) == 0 {
		return agg
	}

	sort.Strings(days)
	agg.LastFocusDate = days[len(days)-1]
	agg.StreakCount = 1
	for i := len(days) - 1; i > 0; i-- {
		gap, ok := DayGap(days[i-1], days[i])
		if !ok || gap != 1 {
			break
		}
		agg.StreakCount++
	}
	return agg
}

// ApplyTo replaces the aggregate fields of meta, keeping settings and sync
// state.
func (a Aggregate) ApplyTo(meta model.UserMeta) model.UserMeta {
	meta.StreakCount = a.StreakCount
	meta.LastFocusDate = a.LastFocusDate
	meta.TotalFocusTime = a.TotalFocusTime
	return meta
}

// Matches reports whether meta carries exactly this aggregate.
func (a Aggregate) Matches(meta model.UserMeta) bool {
	return meta.StreakCount == a.StreakCount &&
		meta.LastFocusDate == a.LastFocusDate &&
		meta.TotalFocusTime == a.TotalFocusTime
}

// Replay applies records incrementally in end-time order starting from an
// empty meta.
func Replay(userID string, records []model.FocusRecord, loc *time.Location) model.UserMeta {
	ordered := append([]model.FocusRecord(nil), records...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].EndTime < ordered[j].EndTime
	})

	meta := model.UserMeta{UserID: userID}
	for _, record := range ordered {
		meta, _ = Apply(meta, record.Duration, record.EndTime, record.Mode, loc)
	}
	return meta
}
