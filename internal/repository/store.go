package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"focusflow/backend/internal/logger"
)

var ErrNotFound = errors.New("not found")

// psql is shared by every repository; SQLite takes ? placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Store groups the focus tables. A Store built over a nil database is
// unavailable: reads come back empty and writes are dropped.
type Store struct {
	db *sqlx.DB

	Tasks        *TaskRepository
	FocusRecords *FocusRecordRepository
	UserMeta     *UserMetaRepository
}

func NewStore(db *sqlx.DB) *Store {
	s := &Store{db: db}
	if db == nil {
		s.Tasks = &TaskRepository{}
		s.FocusRecords = &FocusRecordRepository{}
		s.UserMeta = &UserMetaRepository{}
		return s
	}
	s.Tasks = &TaskRepository{q: db}
	s.FocusRecords = &FocusRecordRepository{q: db}
	s.UserMeta = &UserMetaRepository{q: db}
	return s
}

// Available reports whether a durable backend is attached.
func (s *Store) Available() bool {
	return s != nil && s.db != nil
}

// Tx exposes the repositories bound to one transaction.
type Tx struct {
	Tasks        *TaskRepository
	FocusRecords *FocusRecordRepository
	UserMeta     *UserMetaRepository
}

// RunAtomic runs fn in a single transaction spanning all tables. Either every
// write made through tx commits or none does. The database runs on one
// connection, so fn must only use tx: calling the Store's own repositories
// from inside fn would wait on the connection fn is holding.
func (s *Store) RunAtomic(ctx context.Context, fn func(tx *Tx) error) error {
	if !s.Available() {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	bound := &Tx{
		Tasks:        &TaskRepository{q: tx},
		FocusRecords: &FocusRecordRepository{q: tx},
		UserMeta:     &UserMetaRepository{q: tx},
	}
	if err := fn(bound); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Store().Error("rollback failed", "error", rbErr)
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func countRows(ctx context.Context, q sqlx.ExtContext, builder sq.SelectBuilder) (int, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var count int
	if err := sqlx.GetContext(ctx, q, &count, query, args...); err != nil {
		return 0, err
	}
	return count, nil
}
