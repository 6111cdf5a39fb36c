package model

const GuestUserID = "guest"

type TaskStatus string

const (
	TaskStatusTodo      TaskStatus = "todo"
	TaskStatusCompleted TaskStatus = "completed"
)

type FocusMode string

const (
	ModePomodoro   FocusMode = "Pomodoro"
	ModeShortBreak FocusMode = "ShortBreak"
	ModeLongBreak  FocusMode = "LongBreak"
	ModeFlow       FocusMode = "Flow"
)

// Qualifying reports whether sessions in this mode count toward streak and
// total focus time.
func (m FocusMode) Qualifying() bool {
	return m == ModePomodoro || m == ModeFlow
}

func (m FocusMode) Valid() bool {
	switch m {
	case ModePomodoro, ModeShortBreak, ModeLongBreak, ModeFlow:
		return true
	}
	return false
}

type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
)

const (
	DefaultFocusDurationSeconds      = 25 * 60
	DefaultShortBreakDurationSeconds = 5 * 60
	DefaultLongBreakDurationSeconds  = 15 * 60
)

type Task struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"userId" db:"user_id"`
	Title       string     `json:"title" db:"title"`
	TagID       string     `json:"tagId" db:"tag_id"`
	Status      TaskStatus `json:"status" db:"status"`
	CreatedAt   int64      `json:"createdAt" db:"created_at"`
	CompletedAt *int64     `json:"completedAt" db:"completed_at"`
}

type FocusRecord struct {
	ID              string     `json:"id" db:"id"`
	UserID          string     `json:"userId" db:"user_id"`
	TaskID          *string    `json:"taskId" db:"task_id"`
	TaskName        string     `json:"taskName" db:"task_name"`
	TagName         string     `json:"tagName" db:"tag_name"`
	TagColor        string     `json:"tagColor" db:"tag_color"`
	StartTime       int64      `json:"startTime" db:"start_time"`
	EndTime         int64      `json:"endTime" db:"end_time"`
	Duration        int64      `json:"duration" db:"duration"`
	Mode            FocusMode  `json:"mode" db:"mode"`
	SyncStatus      SyncStatus `json:"syncStatus" db:"sync_status"`
	CalendarEventID *string    `json:"calendarEventId" db:"calendar_event_id"`
}

// Qualifying reports whether the record contributes to the owner's aggregates.
func (r FocusRecord) Qualifying() bool {
	return r.Duration > 0 && r.Mode.Qualifying()
}

type Settings struct {
	FocusDuration      int `json:"focusDuration" yaml:"focus_duration"`
	ShortBreakDuration int `json:"shortBreakDuration" yaml:"short_break_duration"`
	LongBreakDuration  int `json:"longBreakDuration" yaml:"long_break_duration"`
}

func DefaultSettings() Settings {
	return Settings{
		FocusDuration:      DefaultFocusDurationSeconds,
		ShortBreakDuration: DefaultShortBreakDurationSeconds,
		LongBreakDuration:  DefaultLongBreakDurationSeconds,
	}
}

// IsZero reports whether the settings were never stored.
func (s Settings) IsZero() bool {
	return s == Settings{}
}

func (s Settings) Valid() bool {
	return s.FocusDuration > 0 && s.ShortBreakDuration > 0 && s.LongBreakDuration > 0
}

// UserMeta holds the derived per-user statistics. LastFocusDate is always a
// zero-padded YYYY-MM-DD string so that string order equals date order.
type UserMeta struct {
	UserID            string   `json:"userId"`
	StreakCount       int      `json:"streak_count"`
	LastFocusDate     string   `json:"last_focus_date"`
	TotalFocusTime    int64    `json:"total_focus_time"`
	Settings          Settings `json:"settings"`
	LastSyncTimestamp int64    `json:"last_sync_timestamp"`
	Version           int64    `json:"version"`
}

func DefaultMeta(userID string) UserMeta {
	return UserMeta{
		UserID:   userID,
		Settings: DefaultSettings(),
	}
}
