package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"taskping/internal/model"
	"taskping/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the sqlite store at cfg.Path, creating the file and
// running migrations as needed.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const activeStatuses = `'TODO','IN_PROGRESS'`

func (s *sqliteStore) DueBetween(ctx context.Context, from, to time.Time) ([]model.Task, error) {
	return s.queryTasks(ctx,
		`SELECT id, title, due_at, priority, status FROM tasks
		 WHERE due_at >= ? AND due_at < ? AND status IN (`+activeStatuses+`)
		 ORDER BY due_at`,
		from.UnixMilli(), to.UnixMilli(),
	)
}

func (s *sqliteStore) OverdueBefore(ctx context.Context, before time.Time) ([]model.Task, error) {
	return s.queryTasks(ctx,
		`SELECT id, title, due_at, priority, status FROM tasks
		 WHERE due_at < ? AND status IN (`+activeStatuses+`)
		 ORDER BY due_at`,
		before.UnixMilli(),
	)
}

func (s *sqliteStore) queryTasks(ctx context.Context, query string, args ...any) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		var t model.Task
		var dueMS int64
		if err := rows.Scan(&t.ID, &t.Title, &dueMS, &t.Priority, &t.Status); err != nil {
			return nil, err
		}
		t.DueAt = time.UnixMilli(dueMS)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range tasks {
		ids, err := s.assignees(ctx, tasks[i].ID)
		if err != nil {
			return nil, err
		}
		tasks[i].Assignees = ids
	}
	return tasks, nil
}

func (s *sqliteStore) assignees(ctx context.Context, taskID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM task_assignees WHERE task_id = ? ORDER BY user_id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *sqliteStore) UpsertTask(ctx context.Context, t model.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tasks(id, title, due_at, priority, status) VALUES(?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   title=excluded.title, due_at=excluded.due_at,
		   priority=excluded.priority, status=excluded.status`,
		t.ID, t.Title, t.DueAt.UnixMilli(), string(t.Priority), string(t.Status),
	)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id = ?`, t.ID); err != nil {
		return err
	}
	for _, uid := range t.Assignees {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO task_assignees(task_id, user_id) VALUES(?,?)`, t.ID, uid); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) Append(ctx context.Context, rec model.NotificationRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications(id, user_id, task_id, kind, priority, title, message,
		   task_title, task_due_at, task_priority, task_status, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.UserID, rec.TaskID, string(rec.Kind), string(rec.Priority),
		rec.Title, rec.Message,
		rec.Task.Title, rec.Task.DueAt.UnixMilli(), string(rec.Task.Priority), string(rec.Task.Status),
		rec.CreatedAt.UnixMilli(),
	)
	return err
}

func (s *sqliteStore) HasSince(ctx context.Context, userID, taskID int64, kind model.NotificationKind, since time.Time) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM notifications
		 WHERE user_id = ? AND task_id = ? AND kind = ? AND created_at >= ?
		 LIMIT 1`,
		userID, taskID, string(kind), since.UnixMilli(),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
