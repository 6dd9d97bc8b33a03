package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/flatmate/internal/model"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskSelect = `SELECT t.id, t.house_id, t.creator_id, t.assignee_id, t.title, t.description,
	t.priority, t.status, t.due_date, t.completed_at,
	t.reminder_enabled, t.reminder_interval, t.recurrence_pattern, t.recurrence_end_date,
	t.created_at, t.updated_at,
	c.name, c.email, a.name, a.email
	FROM tasks t
	LEFT JOIN users c ON c.id = t.creator_id
	LEFT JOIN users a ON a.id = t.assignee_id`

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var creatorID, assigneeID sql.NullInt64
	var dueDate, completedAt, recurrenceEnd sql.NullTime
	var pattern string
	var creatorName, creatorEmail, assigneeName, assigneeEmail sql.NullString

	err := scanner.Scan(
		&t.ID, &t.HouseID, &creatorID, &assigneeID, &t.Title, &t.Description,
		&t.Priority, &t.Status, &dueDate, &completedAt,
		&t.Reminder.Enabled, &t.Reminder.IntervalMinutes, &pattern, &recurrenceEnd,
		&t.CreatedAt, &t.UpdatedAt,
		&creatorName, &creatorEmail, &assigneeName, &assigneeEmail,
	)
	if err != nil {
		return nil, err
	}

	t.CreatorID = int64Ptr(creatorID)
	t.AssigneeID = int64Ptr(assigneeID)
	t.DueDate = timePtr(dueDate)
	t.CompletedAt = timePtr(completedAt)

	if pattern != "" {
		t.Schedule = model.Recurring(pattern, timePtr(recurrenceEnd))
	} else {
		t.Schedule = model.NoSchedule()
	}

	if t.CreatorID != nil && creatorName.Valid {
		t.Creator = &model.UserSummary{ID: *t.CreatorID, Name: creatorName.String, Email: creatorEmail.String}
	}
	if t.AssigneeID != nil && assigneeName.Valid {
		t.Assignee = &model.UserSummary{ID: *t.AssigneeID, Name: assigneeName.String, Email: assigneeEmail.String}
	}
	return &t, nil
}

// scheduleColumns flattens a Schedule into its stored columns.
func scheduleColumns(s model.Schedule) (string, sql.NullTime) {
	if s.Kind != model.ScheduleRecurring {
		return "", sql.NullTime{}
	}
	return s.Pattern, nullTime(s.EndDate)
}

func (s *TaskStore) Create(t *model.Task) (*model.Task, error) {
	pattern, recurrenceEnd := scheduleColumns(t.Schedule)
	result, err := s.db.Exec(
		`INSERT INTO tasks (house_id, creator_id, assignee_id, title, description, priority, status,
			due_date, completed_at, reminder_enabled, reminder_interval, recurrence_pattern, recurrence_end_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.HouseID, nullInt64(t.CreatorID), nullInt64(t.AssigneeID), t.Title, t.Description, string(t.Priority), string(t.Status),
		nullTime(t.DueDate), nullTime(t.CompletedAt), t.Reminder.Enabled, t.Reminder.IntervalMinutes, pattern, recurrenceEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) GetByID(id int64) (*model.Task, error) {
	row := s.db.QueryRow(taskSelect+` WHERE t.id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// TaskField names a group of task columns that change together.
type TaskField int

const (
	TaskTitle TaskField = iota
	TaskDescription
	TaskPriority
	TaskStatus // status and completed_at
	TaskDueDate
	TaskAssignee
	TaskReminder
	TaskSchedule
)

var allTaskFields = []TaskField{
	TaskTitle, TaskDescription, TaskPriority, TaskStatus,
	TaskDueDate, TaskAssignee, TaskReminder, TaskSchedule,
}

// Update writes the named fields of t, or every mutable field when none are
// named. Columns outside fields keep their stored values, so concurrent
// updates of different fields do not overwrite each other. The house and
// creator of a task never change.
func (s *TaskStore) Update(t *model.Task, fields ...TaskField) (*model.Task, error) {
	if len(fields) == 0 {
		fields = allTaskFields
	}

	var sets []string
	var args []any
	set := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	for _, f := range fields {
		switch f {
		case TaskTitle:
			set("title", t.Title)
		case TaskDescription:
			set("description", t.Description)
		case TaskPriority:
			set("priority", string(t.Priority))
		case TaskStatus:
			set("status", string(t.Status))
			set("completed_at", nullTime(t.CompletedAt))
		case TaskDueDate:
			set("due_date", nullTime(t.DueDate))
		case TaskAssignee:
			set("assignee_id", nullInt64(t.AssigneeID))
		case TaskReminder:
			set("reminder_enabled", t.Reminder.Enabled)
			set("reminder_interval", t.Reminder.IntervalMinutes)
		case TaskSchedule:
			pattern, recurrenceEnd := scheduleColumns(t.Schedule)
			set("recurrence_pattern", pattern)
			set("recurrence_end_date", recurrenceEnd)
		default:
			return nil, fmt.Errorf("update task: unknown field %d", f)
		}
	}

	args = append(args, t.ID)
	_, err := s.db.Exec(`UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.GetByID(t.ID)
}

func (s *TaskStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (s *TaskStore) ListByHouse(houseID int64) ([]model.Task, error) {
	return s.list(taskSelect+` WHERE t.house_id = ? ORDER BY t.created_at DESC, t.id DESC`, houseID)
}

// TaskFilter narrows ListForUser. Nil fields do not filter.
type TaskFilter struct {
	HouseID    *int64
	Status     *model.Status
	AssigneeID *int64
}

// ListForUser returns tasks from every house the user is a member of.
func (s *TaskStore) ListForUser(userID int64, f TaskFilter) ([]model.Task, error) {
	where := []string{`t.house_id IN (SELECT house_id FROM house_members WHERE user_id = ?)`}
	args := []any{userID}
	if f.HouseID != nil {
		where = append(where, `t.house_id = ?`)
		args = append(args, *f.HouseID)
	}
	if f.Status != nil {
		where = append(where, `t.status = ?`)
		args = append(args, string(*f.Status))
	}
	if f.AssigneeID != nil {
		where = append(where, `t.assignee_id = ?`)
		args = append(args, *f.AssigneeID)
	}
	query := taskSelect + ` WHERE ` + strings.Join(where, ` AND `) + ` ORDER BY t.due_date IS NULL, t.due_date ASC, t.created_at DESC, t.id DESC`
	return s.list(query, args...)
}

func (s *TaskStore) list(query string, args ...any) ([]model.Task, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}
