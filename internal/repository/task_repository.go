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

var taskColumns = []string{"id", "user_id", "title", "tag_id", "status", "created_at", "completed_at"}

type TaskRepository struct {
	q sqlx.ExtContext
}

// TaskPatch lists the fields Update may change. Nil fields are left alone.
// CompletedAt uses a NullInt64 so a completion time can be cleared.
type TaskPatch struct {
	UserID      *string
	Title       *string
	TagID       *string
	Status      *model.TaskStatus
	CompletedAt *sql.NullInt64
}

func (p TaskPatch) setMap() map[string]interface{} {
	m := make(map[string]interface{})
	if p.UserID != nil {
		m["user_id"] = *p.UserID
	}
	if p.Title != nil {
		m["title"] = *p.Title
	}
	if p.TagID != nil {
		m["tag_id"] = *p.TagID
	}
	if p.Status != nil {
		m["status"] = string(*p.Status)
	}
	if p.CompletedAt != nil {
		m["completed_at"] = *p.CompletedAt
	}
	return m
}

func (r *TaskRepository) Get(ctx context.Context, id string) (*model.Task, error) {
	if r.q == nil {
		return nil, nil
	}

	query, args, err := psql.Select(taskColumns...).From("tasks").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get task: %w", err)
	}

	var task model.Task
	if err := sqlx.GetContext(ctx, r.q, &task, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &task, nil
}

func (r *TaskRepository) Put(ctx context.Context, task *model.Task) error {
	if r.q == nil {
		return nil
	}

	query, args, err := psql.Insert("tasks").
		Columns(taskColumns...).
		Values(task.ID, task.UserID, task.Title, task.TagID, string(task.Status), task.CreatedAt, task.CompletedAt).
		Suffix(`ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			title = excluded.title,
			tag_id = excluded.tag_id,
			status = excluded.status,
			created_at = excluded.created_at,
			completed_at = excluded.completed_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build put task: %w", err)
	}

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put task: %w", err)
	}
	return nil
}

// Update applies patch to the task with the given id. Updating an id that does
// not exist changes nothing.
func (r *TaskRepository) Update(ctx context.Context, id string, patch TaskPatch) error {
	if r.q == nil {
		return nil
	}
	fields := patch.setMap()
	if len(fields) == 0 {
		return nil
	}

	query, args, err := psql.Update("tasks").SetMap(fields).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build update task: %w", err)
	}
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	if r.q == nil {
		return nil
	}

	query, args, err := psql.Delete("tasks").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete task: %w", err)
	}
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// ListByUser returns the user's tasks, newest first.
func (r *TaskRepository) ListByUser(ctx context.Context, userID string) ([]model.Task, error) {
	return r.list(ctx, sq.Eq{"user_id": userID})
}

func (r *TaskRepository) ListByUserAndStatus(ctx context.Context, userID string, status model.TaskStatus) ([]model.Task, error) {
	return r.list(ctx, sq.Eq{"user_id": userID, "status": string(status)})
}

func (r *TaskRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	if r.q == nil {
		return 0, nil
	}
	count, err := countRows(ctx, r.q, psql.Select("COUNT(1)").From("tasks").Where(sq.Eq{"user_id": userID}))
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return count, nil
}

func (r *TaskRepository) list(ctx context.Context, where sq.Sqlizer) ([]model.Task, error) {
	if r.q == nil {
		return []model.Task{}, nil
	}

	query, args, err := psql.Select(taskColumns...).
		From("tasks").
		Where(where).
		OrderBy("created_at DESC", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list tasks: %w", err)
	}

	tasks := []model.Task{}
	if err := sqlx.SelectContext(ctx, r.q, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}
