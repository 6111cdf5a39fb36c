package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"focusflow/backend/internal/model"
	"focusflow/backend/internal/repository"
	"focusflow/backend/internal/tag"
)

type TaskService struct {
	store *repository.Store
	now   func() time.Time
}

func NewTaskService(store *repository.Store) *TaskService {
	return &TaskService{store: store, now: time.Now}
}

func newTaskID() string {
	return "task-" + uuid.NewString()
}

func tagIDFor(tagName string) string {
	if strings.TrimSpace(tagName) == "" {
		tagName = tag.DefaultName
	}
	return tag.Slug(tagName)
}

// Add creates a todo task for userID. A blank title, or a missing store,
// yields a nil task.
func (s *TaskService) Add(ctx context.Context, userID, title, tagName string) (*model.Task, error) {
	cleanTitle := strings.TrimSpace(title)
	if cleanTitle == "" || !s.store.Available() {
		return nil, nil
	}

	task := &model.Task{
		ID:        newTaskID(),
		UserID:    userID,
		Title:     cleanTitle,
		TagID:     tagIDFor(tagName),
		Status:    model.TaskStatusTodo,
		CreatedAt: s.now().UnixMilli(),
	}
	if err := s.store.Tasks.Put(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Update renames and retags a task owned by userID.
func (s *TaskService) Update(ctx context.Context, userID, taskID, title, tagName string) (*model.Task, error) {
	cleanTitle := strings.TrimSpace(title)
	if cleanTitle == "" {
		return nil, nil
	}

	task, err := s.owned(ctx, userID, taskID)
	if err != nil || task == nil {
		return nil, err
	}

	tagID := tagIDFor(tagName)
	if err := s.store.Tasks.Update(ctx, taskID, repository.TaskPatch{Title: &cleanTitle, TagID: &tagID}); err != nil {
		return nil, err
	}
	task.Title = cleanTitle
	task.TagID = tagID
	return task, nil
}

// Toggle flips a task between todo and completed, stamping or clearing the
// completion time.
func (s *TaskService) Toggle(ctx context.Context, userID, taskID string) (*model.Task, error) {
	task, err := s.owned(ctx, userID, taskID)
	if err != nil || task == nil {
		return nil, err
	}

	next := model.TaskStatusCompleted
	completedAt := sql.NullInt64{}
	if task.Status == model.TaskStatusCompleted {
		next = model.TaskStatusTodo
	} else {
		completedAt = sql.NullInt64{Int64: s.now().UnixMilli(), Valid: true}
	}

	if err := s.store.Tasks.Update(ctx, taskID, repository.TaskPatch{Status: &next, CompletedAt: &completedAt}); err != nil {
		return nil, err
	}
	task.Status = next
	task.CompletedAt = nil
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Int64
	}
	return task, nil
}

func (s *TaskService) Remove(ctx context.Context, userID, taskID string) (bool, error) {
	task, err := s.owned(ctx, userID, taskID)
	if err != nil || task == nil {
		return false, err
	}
	if err := s.store.Tasks.Delete(ctx, taskID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *TaskService) List(ctx context.Context, userID string) ([]model.Task, error) {
	return s.store.Tasks.ListByUser(ctx, userID)
}

func (s *TaskService) owned(ctx context.Context, userID, taskID string) (*model.Task, error) {
	task, err := s.store.Tasks.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil || task.UserID != userID {
		return nil, nil
	}
	return task, nil
}
