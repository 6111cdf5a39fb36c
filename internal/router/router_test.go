package router_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"focusflow/backend/internal/db"
	"focusflow/backend/internal/handler"
	"focusflow/backend/internal/identity"
	"focusflow/backend/internal/intent"
	"focusflow/backend/internal/repository"
	"focusflow/backend/internal/router"
	"focusflow/backend/internal/service"
	"focusflow/backend/internal/session"
)

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type taskView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	TagID       string `json:"tagId"`
	Status      string `json:"status"`
	CompletedAt *int64 `json:"completedAt"`
}

type metaView struct {
	StreakCount       int    `json:"streak_count"`
	LastFocusDate     string `json:"last_focus_date"`
	TotalFocusTime    int64  `json:"total_focus_time"`
	LastSyncTimestamp int64  `json:"last_sync_timestamp"`
}

type sessionEnvelope struct {
	Session struct {
		UserID           string     `json:"userId"`
		ActiveTasks      []taskView `json:"activeTasks"`
		CompletedTasks   []taskView `json:"completedTasks"`
		Meta             metaView   `json:"meta"`
		BackendAvailable bool       `json:"backendAvailable"`
	} `json:"session"`
}

type recordEnvelope struct {
	Record struct {
		ID         string `json:"id"`
		UserID     string `json:"userId"`
		TagColor   string `json:"tagColor"`
		SyncStatus string `json:"syncStatus"`
	} `json:"record"`
	Meta metaView `json:"meta"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestGuestMigrationAndIsolation(t *testing.T) {
	engine := setupTestEngine(t, true)

	status, raw := requestJSON(t, engine, http.MethodPost, "/api/tasks", "", map[string]string{
		"title":   "Outline chapter",
		"tagName": "Writing",
	})
	if status != http.StatusCreated {
		t.Fatalf("expected 201 for guest task, got %d: %s", status, raw)
	}

	end := time.Date(2024, 1, 6, 9, 0, 0, 0, time.UTC)
	record := createRecord(t, engine, "", end, 1500, "focus")
	if record.Meta.TotalFocusTime != 1500 || record.Meta.StreakCount != 1 {
		t.Fatalf("unexpected guest meta: %+v", record.Meta)
	}

	status, _ = requestJSON(t, engine, http.MethodPut, "/api/guest/migration-intent", "", map[string]bool{
		"migrateGuestOnLogin": true,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 setting intent, got %d", status)
	}

	user1 := registerUser(t, engine, "user1@example.com", "123456")
	user1Session := getSession(t, engine, user1.Token)
	if user1Session.Session.UserID != user1.User.ID {
		t.Fatalf("expected active user %s, got %s", user1.User.ID, user1Session.Session.UserID)
	}
	if len(user1Session.Session.ActiveTasks) != 1 || user1Session.Session.ActiveTasks[0].Title != "Outline chapter" {
		t.Fatalf("expected migrated guest task, got %+v", user1Session.Session.ActiveTasks)
	}
	if user1Session.Session.Meta.TotalFocusTime != 1500 {
		t.Fatalf("expected merged total 1500, got %d", user1Session.Session.Meta.TotalFocusTime)
	}

	status, raw = requestJSON(t, engine, http.MethodGet, "/api/guest", "", nil)
	if status != http.StatusOK || !bytes.Contains(raw, []byte(`"hasGuestData":false`)) {
		t.Fatalf("expected no guest data left, got %d: %s", status, raw)
	}

	user2 := registerUser(t, engine, "user2@example.com", "123456")
	user2Session := getSession(t, engine, user2.Token)
	if len(user2Session.Session.ActiveTasks) != 0 || user2Session.Session.Meta.TotalFocusTime != 0 {
		t.Fatalf("user2 must not see user1 data: %+v", user2Session.Session)
	}

	status, _ = requestJSON(t, engine, http.MethodDelete, "/api/focus-records/"+record.Record.ID, user2.Token, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 deleting another user's record, got %d", status)
	}
}

func TestTaskEndpoints(t *testing.T) {
	engine := setupTestEngine(t, true)
	user := registerUser(t, engine, "tasks@example.com", "123456")

	status, raw := requestJSON(t, engine, http.MethodPost, "/api/tasks", user.Token, map[string]string{"title": "   "})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank title, got %d", status)
	}
	assertErrorCode(t, raw, "invalid_title")

	status, raw = requestJSON(t, engine, http.MethodPost, "/api/tasks", user.Token, map[string]string{"title": "Review PR"})
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", status, raw)
	}
	var created struct {
		Task taskView `json:"task"`
	}
	if err := json.Unmarshal(raw, &created); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if created.Task.TagID != "tag-general" {
		t.Fatalf("expected default tag, got %s", created.Task.TagID)
	}

	status, raw = requestJSON(t, engine, http.MethodPost, "/api/tasks/"+created.Task.ID+"/toggle", user.Token, nil)
	if status != http.StatusOK || !bytes.Contains(raw, []byte(`"status":"completed"`)) {
		t.Fatalf("expected completed task, got %d: %s", status, raw)
	}

	snapshot := getSession(t, engine, user.Token)
	if len(snapshot.Session.CompletedTasks) != 1 || snapshot.Session.CompletedTasks[0].CompletedAt == nil {
		t.Fatalf("expected one completed task, got %+v", snapshot.Session.CompletedTasks)
	}

	status, _ = requestJSON(t, engine, http.MethodPut, "/api/tasks/"+created.Task.ID, user.Token, map[string]string{
		"title":   "Review PR #12",
		"tagName": "Coding",
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on update, got %d", status)
	}

	status, _ = requestJSON(t, engine, http.MethodDelete, "/api/tasks/"+created.Task.ID, user.Token, nil)
	if status != http.StatusNoContent {
		t.Fatalf("expected 204 on delete, got %d", status)
	}
	status, _ = requestJSON(t, engine, http.MethodDelete, "/api/tasks/"+created.Task.ID, user.Token, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", status)
	}
}

func TestFocusRecordSyncAndRecalculation(t *testing.T) {
	engine := setupTestEngine(t, true)
	user := registerUser(t, engine, "focus@example.com", "123456")

	status, raw := requestJSON(t, engine, http.MethodPost, "/api/focus-records", user.Token, map[string]interface{}{
		"mode":      "Nap",
		"startTime": 1,
		"endTime":   2,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid mode, got %d", status)
	}
	assertErrorCode(t, raw, "invalid_mode")

	day := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	first := createRecord(t, engine, user.Token, day, 1500, "focus")
	createRecord(t, engine, user.Token, day.AddDate(0, 0, 1), 1200, "flow")
	last := createRecord(t, engine, user.Token, day.AddDate(0, 0, 2), 300, "short-break")
	if last.Meta.StreakCount != 2 || last.Meta.TotalFocusTime != 2700 {
		t.Fatalf("unexpected meta after breaks: %+v", last.Meta)
	}
	if first.Record.TagColor != "#3b82f6" || first.Record.SyncStatus != "pending" {
		t.Fatalf("unexpected record snapshot: %+v", first.Record)
	}

	status, raw = requestJSON(t, engine, http.MethodPost, "/api/focus-records/"+first.Record.ID+"/synced", user.Token, map[string]string{
		"calendarEventId": "evt-1",
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 marking synced, got %d: %s", status, raw)
	}
	status, raw = requestJSON(t, engine, http.MethodPost, "/api/focus-records/"+first.Record.ID+"/synced", user.Token, map[string]string{
		"calendarEventId": "evt-2",
	})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 re-syncing, got %d", status)
	}
	assertErrorCode(t, raw, "not_pending")

	status, raw = requestJSON(t, engine, http.MethodGet, "/api/focus-records?syncStatus=pending", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 listing pending, got %d", status)
	}
	var pending struct {
		Records []struct {
			ID string `json:"id"`
		} `json:"records"`
	}
	if err := json.Unmarshal(raw, &pending); err != nil {
		t.Fatalf("unmarshal pending: %v", err)
	}
	if len(pending.Records) != 2 {
		t.Fatalf("expected 2 pending records, got %d", len(pending.Records))
	}

	status, raw = requestJSON(t, engine, http.MethodDelete, "/api/focus-records/"+first.Record.ID, user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 deleting record, got %d", status)
	}
	var deleted struct {
		Meta metaView `json:"meta"`
	}
	if err := json.Unmarshal(raw, &deleted); err != nil {
		t.Fatalf("unmarshal delete: %v", err)
	}
	if deleted.Meta.StreakCount != 1 || deleted.Meta.TotalFocusTime != 1200 || deleted.Meta.LastFocusDate != "2024-03-02" {
		t.Fatalf("expected recalculated meta, got %+v", deleted.Meta)
	}
	if deleted.Meta.LastSyncTimestamp == 0 {
		t.Fatal("recalculation must keep the sync timestamp")
	}

	status, raw = requestJSON(t, engine, http.MethodPut, "/api/meta/settings", user.Token, map[string]int{
		"focusDuration":      3000,
		"shortBreakDuration": 0,
		"longBreakDuration":  900,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero duration, got %d", status)
	}
	assertErrorCode(t, raw, "invalid_duration")
}

func TestInvalidToken(t *testing.T) {
	engine := setupTestEngine(t, true)

	status, raw := requestJSON(t, engine, http.MethodGet, "/api/session", "not-a-token", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	assertErrorCode(t, raw, "unauthorized")
}

func TestAuthMe(t *testing.T) {
	engine := setupTestEngine(t, true)

	status, raw := requestJSON(t, engine, http.MethodGet, "/api/auth/me", "", nil)
	if status != http.StatusOK || !bytes.Contains(raw, []byte(`"guest":true`)) {
		t.Fatalf("expected guest identity, got %d: %s", status, raw)
	}

	user := registerUser(t, engine, "me@example.com", "123456")
	status, raw = requestJSON(t, engine, http.MethodGet, "/api/auth/me", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, raw)
	}
	var me struct {
		UserID string `json:"userId"`
		Email  string `json:"email"`
		Guest  bool   `json:"guest"`
	}
	if err := json.Unmarshal(raw, &me); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if me.UserID != user.User.ID || me.Email != "me@example.com" || me.Guest {
		t.Fatalf("unexpected identity: %+v", me)
	}
}

func TestRegisterValidation(t *testing.T) {
	engine := setupTestEngine(t, true)

	status, raw := requestJSON(t, engine, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "short@example.com",
		"password": "123",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	assertErrorCode(t, raw, "invalid_password")
	if !bytes.Contains(raw, []byte(`"password":"too short"`)) {
		t.Fatalf("expected field details, got %s", raw)
	}

	status, raw = requestJSON(t, engine, http.MethodPost, "/api/auth/login", "", nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing body, got %d", status)
	}
	assertErrorCode(t, raw, "invalid_json")
}

func TestWithoutDurableStore(t *testing.T) {
	engine := setupTestEngine(t, false)

	status, raw := requestJSON(t, engine, http.MethodGet, "/health", "", nil)
	if status != http.StatusOK || !bytes.Contains(raw, []byte(`"backendAvailable":false`)) {
		t.Fatalf("unexpected health response %d: %s", status, raw)
	}

	status, raw = requestJSON(t, engine, http.MethodPost, "/api/tasks", "", map[string]string{"title": "Lost"})
	if status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without store, got %d", status)
	}
	assertErrorCode(t, raw, "store_unavailable")

	status, _ = requestJSON(t, engine, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "nobody@example.com",
		"password": "123456",
	})
	if status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 registering without store, got %d", status)
	}

	snapshot := getSession(t, engine, "")
	if snapshot.Session.BackendAvailable || snapshot.Session.UserID != "guest" {
		t.Fatalf("unexpected degraded session: %+v", snapshot.Session)
	}
}

func TestCORSPreflight(t *testing.T) {
	engine := setupTestEngine(t, true)
	req := httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "DELETE")
	recorder := httptest.NewRecorder()

	engine.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatalf("unexpected allow-origin header: %s", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
}

func setupTestEngine(t *testing.T, durable bool) http.Handler {
	t.Helper()

	var database *sqlx.DB
	if durable {
		opened, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() {
			_ = opened.Close()
		})

		_, currentFile, _, _ := runtime.Caller(0)
		migrationsDir := filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
		if err := db.RunMigrations(opened, migrationsDir); err != nil {
			t.Fatalf("run migrations: %v", err)
		}
		database = opened
	}

	store := repository.NewStore(database)
	authService := service.NewAuthService(repository.NewUserRepository(database), "test-secret", 24*time.Hour)
	aggregates := service.NewAggregateService(store, time.UTC, service.DefaultMaxRetries)
	manager := session.NewManager(store, identity.NewTracker(), session.Services{
		Tasks:      service.NewTaskService(store),
		Focus:      service.NewFocusService(store, aggregates),
		Aggregates: aggregates,
		Migrations: service.NewMigrationService(store, intent.NewFileFlag(filepath.Join(t.TempDir(), "intent.yaml"))),
		Sync:       service.NewSyncService(store, aggregates, nil),
	})

	return router.New(authService, manager, router.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		Session: handler.NewSessionHandler(manager),
		Tasks:   handler.NewTaskHandler(manager),
		Focus:   handler.NewFocusHandler(manager),
	}, []string{"http://localhost:3000"})
}

func registerUser(t *testing.T, server http.Handler, email, password string) authResponse {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s failed with status %d: %s", email, status, string(body))
	}
	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal register response: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("empty token for user %s", email)
	}
	return resp
}

func getSession(t *testing.T, server http.Handler, token string) sessionEnvelope {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodGet, "/api/session", token, nil)
	if status != http.StatusOK {
		t.Fatalf("get session failed with status %d: %s", status, string(body))
	}
	var resp sessionEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal session response: %v", err)
	}
	return resp
}

func createRecord(t *testing.T, server http.Handler, token string, end time.Time, seconds int64, timerMode string) recordEnvelope {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodPost, "/api/focus-records", token, map[string]interface{}{
		"taskName":  "Deep work",
		"tagName":   "Coding",
		"startTime": end.Add(-time.Duration(seconds) * time.Second).UnixMilli(),
		"endTime":   end.UnixMilli(),
		"duration":  seconds,
		"timerMode": timerMode,
	})
	if status != http.StatusCreated {
		t.Fatalf("create record failed with status %d: %s", status, string(body))
	}
	var resp recordEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal record response: %v", err)
	}
	return resp
}

func assertErrorCode(t *testing.T, body []byte, code string) {
	t.Helper()
	var resp apiErrorEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal error response: %v", err)
	}
	if resp.Error.Code != code {
		t.Fatalf("expected error code %s, got %s", code, resp.Error.Code)
	}
}

func requestJSON(
	t *testing.T,
	server http.Handler,
	method, path, token string,
	body interface{},
) (int, []byte) {
	t.Helper()

	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		payload = raw
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)
	return recorder.Code, recorder.Body.Bytes()
}
