// Package session holds the state of the active user: who it is, their tasks
// and their meta. Identity changes arrive as events from an identity.Tracker
// and are handled in a fixed order: reset the cached state, consume the
// migration intent (migrating if asked), then load the new user.
package session

import (
	"context"
	"sync"
	"time"

	"focusflow/backend/internal/identity"
	"focusflow/backend/internal/logger"
	"focusflow/backend/internal/model"
	"focusflow/backend/internal/repository"
	"focusflow/backend/internal/service"
	"focusflow/backend/internal/tag"
)

type Services struct {
	Tasks      *service.TaskService
	Focus      *service.FocusService
	Aggregates *service.AggregateService
	Migrations *service.MigrationService
	Sync       *service.SyncService
}

type Snapshot struct {
	UserID           string         `json:"userId"`
	ActiveTasks      []model.Task   `json:"activeTasks"`
	CompletedTasks   []model.Task   `json:"completedTasks"`
	Meta             model.UserMeta `json:"meta"`
	Hydrated         bool           `json:"hydrated"`
	BackendAvailable bool           `json:"backendAvailable"`
	LastMigration    *time.Time     `json:"lastMigration,omitempty"`
}

type Manager struct {
	store   *repository.Store
	tracker *identity.Tracker
	svc     Services

	// turn serializes callers that switch user and then act as that user.
	turn sync.Mutex

	mu           sync.RWMutex
	tasks        []model.Task
	meta         *model.UserMeta
	hydrated     bool
	lastMigrated *time.Time
}

func NewManager(store *repository.Store, tracker *identity.Tracker, svc Services) *Manager {
	m := &Manager{store: store, tracker: tracker, svc: svc}
	tracker.Subscribe(m.resetOnSwitch)
	tracker.Subscribe(m.migrateOnSignIn)
	tracker.Subscribe(m.loadOnSwitch)
	return m
}

func (m *Manager) resetOnSwitch(_ context.Context, _ identity.Transition) error {
	m.Reset()
	return nil
}

// migrateOnSignIn never fails the switch: the intent is consumed either way
// and the new user still gets loaded.
func (m *Manager) migrateOnSignIn(ctx context.Context, t identity.Transition) error {
	ran, err := m.svc.Migrations.HandleTransition(ctx, t)
	if err != nil {
		logger.Session().Error("guest migration failed", "user_id", t.To, "error", err)
		return nil
	}
	if ran {
		now := time.Now()
		m.mu.Lock()
		m.lastMigrated = &now
		m.mu.Unlock()
	}
	return nil
}

func (m *Manager) loadOnSwitch(ctx context.Context, t identity.Transition) error {
	return m.Load(ctx, t.To)
}

// Begin makes p the active user and holds the session for the caller until
// release is called. Requests for different users therefore never interleave.
func (m *Manager) Begin(ctx context.Context, p *identity.Principal) (func(), error) {
	m.turn.Lock()
	if _, err := m.Activate(ctx, p); err != nil {
		m.turn.Unlock()
		return nil, err
	}
	return m.turn.Unlock, nil
}

// Activate switches to the user p resolves to. A session that is already on
// that user but never loaded is loaded now.
func (m *Manager) Activate(ctx context.Context, p *identity.Principal) (identity.Transition, error) {
	transition, changed, err := m.tracker.Update(ctx, p)
	if err != nil || changed {
		return transition, err
	}

	m.mu.RLock()
	hydrated := m.hydrated
	m.mu.RUnlock()
	if !hydrated {
		return transition, m.Load(ctx, transition.To)
	}
	return transition, nil
}

func (m *Manager) CurrentUserID() string {
	return m.tracker.Current()
}

func (m *Manager) BackendAvailable() bool {
	return m.store.Available()
}

// Load replaces the cached state with userID's stored tasks and meta.
func (m *Manager) Load(ctx context.Context, userID string) error {
	tasks, err := m.svc.Tasks.List(ctx, userID)
	if err != nil {
		return err
	}
	meta, err := m.svc.Aggregates.Meta(ctx, userID)
	if err != nil {
		return err
	}
	if meta == nil {
		fallback := model.DefaultMeta(userID)
		meta = &fallback
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = tasks
	m.meta = meta
	m.hydrated = true
	logger.Session().Debug("session loaded", "user_id", userID, "tasks", len(tasks))
	return nil
}

func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = nil
	m.meta = nil
	m.hydrated = false
}

func (m *Manager) Refresh(ctx context.Context) error {
	return m.Load(ctx, m.CurrentUserID())
}

func (m *Manager) Snapshot() Snapshot {
	userID := m.CurrentUserID()

	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := Snapshot{
		UserID:           userID,
		ActiveTasks:      []model.Task{},
		CompletedTasks:   []model.Task{},
		Meta:             model.DefaultMeta(userID),
		Hydrated:         m.hydrated,
		BackendAvailable: m.store.Available(),
		LastMigration:    m.lastMigrated,
	}
	for _, task := range m.tasks {
		if task.Status == model.TaskStatusCompleted {
			snapshot.CompletedTasks = append(snapshot.CompletedTasks, task)
		} else {
			snapshot.ActiveTasks = append(snapshot.ActiveTasks, task)
		}
	}
	if m.meta != nil {
		snapshot.Meta = *m.meta
	}
	return snapshot
}

func (m *Manager) setMeta(meta *model.UserMeta) {
	if meta == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta = meta
}

func (m *Manager) upsertTask(task model.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tasks {
		if m.tasks[i].ID == task.ID {
			m.tasks[i] = task
			return
		}
	}
	m.tasks = append([]model.Task{task}, m.tasks...)
}

func (m *Manager) dropTask(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.tasks[:0]
	for _, task := range m.tasks {
		if task.ID != taskID {
			kept = append(kept, task)
		}
	}
	m.tasks = kept
}

func (m *Manager) AddTask(ctx context.Context, title, tagName string) (*model.Task, error) {
	task, err := m.svc.Tasks.Add(ctx, m.CurrentUserID(), title, tagName)
	if err != nil || task == nil {
		return nil, err
	}
	m.upsertTask(*task)
	return task, nil
}

func (m *Manager) UpdateTask(ctx context.Context, taskID, title, tagName string) (*model.Task, error) {
	task, err := m.svc.Tasks.Update(ctx, m.CurrentUserID(), taskID, title, tagName)
	if err != nil || task == nil {
		return nil, err
	}
	m.upsertTask(*task)
	return task, nil
}

func (m *Manager) ToggleTaskStatus(ctx context.Context, taskID string) (*model.Task, error) {
	task, err := m.svc.Tasks.Toggle(ctx, m.CurrentUserID(), taskID)
	if err != nil || task == nil {
		return nil, err
	}
	m.upsertTask(*task)
	return task, nil
}

func (m *Manager) RemoveTask(ctx context.Context, taskID string) (bool, error) {
	removed, err := m.svc.Tasks.Remove(ctx, m.CurrentUserID(), taskID)
	if err != nil || !removed {
		return false, err
	}
	m.dropTask(taskID)
	return true, nil
}

// AddFocusRecord stores a finished session for the active user and updates
// their aggregates. A qualifying session of a signed-in user is then pushed
// to the calendar once; a failed push leaves the record pending.
func (m *Manager) AddFocusRecord(ctx context.Context, input service.CompletionInput) (*model.FocusRecord, error) {
	record, meta, err := m.svc.Focus.Complete(ctx, m.CurrentUserID(), input)
	if err != nil || record == nil {
		return nil, err
	}
	m.setMeta(meta)
	m.pushToCalendar(ctx, record)
	return record, nil
}

func (m *Manager) pushToCalendar(ctx context.Context, record *model.FocusRecord) {
	if m.svc.Sync == nil || !m.svc.Sync.Configured() || !record.Qualifying() || identity.IsGuest(record.UserID) {
		return
	}

	ok, err := m.svc.Sync.SyncRecord(ctx, record)
	if err != nil {
		logger.Session().Warn("calendar push failed, record stays pending", "record_id", record.ID, "error", err)
		return
	}
	if !ok {
		return
	}

	meta, err := m.svc.Aggregates.Meta(ctx, record.UserID)
	if err != nil {
		logger.Session().Warn("reload meta after calendar push", "user_id", record.UserID, "error", err)
		return
	}
	m.setMeta(meta)
}

func (m *Manager) RemoveFocusRecord(ctx context.Context, recordID string) (bool, error) {
	removed, meta, err := m.svc.Focus.Remove(ctx, m.CurrentUserID(), recordID)
	if err != nil || !removed {
		return false, err
	}
	m.setMeta(meta)
	return true, nil
}

// MarkFocusRecordSynced records the calendar event for one of the active
// user's records.
func (m *Manager) MarkFocusRecordSynced(ctx context.Context, recordID, calendarEventID string) (bool, error) {
	userID := m.CurrentUserID()
	record, err := m.store.FocusRecords.Get(ctx, recordID)
	if err != nil || record == nil || record.UserID != userID {
		return false, err
	}

	ok, err := m.svc.Sync.MarkSynced(ctx, recordID, calendarEventID)
	if err != nil || !ok {
		return false, err
	}
	meta, err := m.svc.Aggregates.Meta(ctx, userID)
	if err != nil {
		return true, err
	}
	m.setMeta(meta)
	return true, nil
}

// SyncPending pushes the active user's pending records to the calendar.
func (m *Manager) SyncPending(ctx context.Context) (int, error) {
	userID := m.CurrentUserID()
	synced, err := m.svc.Sync.SyncPending(ctx, userID)
	if err != nil || synced == 0 {
		return synced, err
	}
	meta, err := m.svc.Aggregates.Meta(ctx, userID)
	if err != nil {
		return synced, err
	}
	m.setMeta(meta)
	return synced, nil
}

func (m *Manager) ListFocusRecords(ctx context.Context) ([]model.FocusRecord, error) {
	return m.svc.Focus.List(ctx, m.CurrentUserID())
}

func (m *Manager) ListPendingRecords(ctx context.Context) ([]model.FocusRecord, error) {
	return m.svc.Sync.ListPending(ctx, m.CurrentUserID())
}

func (m *Manager) TodayFocusTime(ctx context.Context, now time.Time) (int64, error) {
	return m.svc.Focus.TodayFocusTime(ctx, m.CurrentUserID(), now)
}

// UpdateSettings stores new durations for the active user. Invalid settings
// return a nil meta.
func (m *Manager) UpdateSettings(ctx context.Context, settings model.Settings) (*model.UserMeta, error) {
	meta, err := m.svc.Aggregates.UpdateSettings(ctx, m.CurrentUserID(), settings)
	if err != nil || meta == nil {
		return nil, err
	}
	m.setMeta(meta)
	return meta, nil
}

// Recalculate rebuilds the active user's aggregates from their history.
func (m *Manager) Recalculate(ctx context.Context) (*model.UserMeta, error) {
	meta, err := m.svc.Aggregates.Recalculate(ctx, m.CurrentUserID())
	if err != nil {
		return nil, err
	}
	m.setMeta(meta)
	return meta, nil
}

func (m *Manager) HasGuestData(ctx context.Context) (bool, error) {
	return m.svc.Migrations.HasGuestData(ctx)
}

func (m *Manager) SetMigrateGuestOnLogin(migrate bool) error {
	return m.svc.Migrations.SetMigrateGuestOnLogin(migrate)
}

func (m *Manager) TagPresentation(slug string) tag.Presentation {
	return tag.Present(slug)
}

func (m *Manager) ResolveMode(timerMode string) model.FocusMode {
	return service.ResolveMode(timerMode)
}
