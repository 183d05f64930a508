package store

import (
	"database/sql"
	"fmt"
)

// PersonalTask is a user-authored to-do with no relation to documents
// or issues.
type PersonalTask struct {
	ID        int64
	Task      string
	Deadline  *string
	Done      bool
	DoneAt    *string
	CreatedAt string
	Notes     string
}

// AddPersonalTask inserts a task and returns its id.
func (s *Store) AddPersonalTask(task string, deadline *string) (int64, error) {
	res, err := s.conn.Exec(`
		INSERT INTO personal_tasks (task_text, deadline, created_at)
		VALUES (?, ?, ?)`, task, derefOrNil(deadline), nowUTC())
	if err != nil {
		return 0, fmt.Errorf("store: add task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: task id: %w", err)
	}
	return id, nil
}

// SetPersonalTaskDone flips a task's completion flag. The completion
// timestamp is set exactly when done is true.
func (s *Store) SetPersonalTaskDone(taskID int64, done bool) error {
	var doneAt any
	doneInt := 0
	if done {
		doneInt = 1
		doneAt = nowUTC()
	}
	_, err := s.conn.Exec(`UPDATE personal_tasks SET done = ?, done_at = ? WHERE id = ?`,
		doneInt, doneAt, taskID)
	if err != nil {
		return fmt.Errorf("store: set task done: %w", err)
	}
	return nil
}

// DeletePersonalTask removes a task.
func (s *Store) DeletePersonalTask(taskID int64) error {
	if _, err := s.conn.Exec(`DELETE FROM personal_tasks WHERE id = ?`, taskID); err != nil {
		return fmt.Errorf("store: delete task: %w", err)
	}
	return nil
}

// ListPersonalTasks returns tasks, pending first, then by deadline
// with absent deadlines last.
func (s *Store) ListPersonalTasks(pendingOnly bool) ([]PersonalTask, error) {
	query := `SELECT id, task_text, deadline, done, done_at, created_at, notes FROM personal_tasks`
	if pendingOnly {
		query += ` WHERE done = 0`
	}
	query += ` ORDER BY done ASC, deadline ASC NULLS LAST, id ASC`

	rows, err := s.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("store: list tasks: %w", err)
	}
	defer rows.Close()

	var out []PersonalTask
	for rows.Next() {
		var t PersonalTask
		var deadline, doneAt, notes sql.NullString
		var done int
		if err := rows.Scan(&t.ID, &t.Task, &deadline, &done, &doneAt, &t.CreatedAt, &notes); err != nil {
			return nil, err
		}
		t.Deadline = strPtr(deadline)
		t.Done = done != 0
		t.DoneAt = strPtr(doneAt)
		t.Notes = strOrEmpty(notes)
		out = append(out, t)
	}
	return out, rows.Err()
}
