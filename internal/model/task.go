package model

import (
	"encoding/json"
	"errors"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Status is the single source of truth for task progress. The "completed"
// flag exposed in JSON is derived from it.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Reminder settings are stored and returned but nothing delivers reminders.
type Reminder struct {
	Enabled         bool `json:"enabled"`
	IntervalMinutes int  `json:"interval_minutes,omitempty"`
}

type ScheduleKind string

const (
	ScheduleNone      ScheduleKind = "none"
	ScheduleRecurring ScheduleKind = "recurring"
)

// Schedule is an extension point for recurring tasks. Recurrence is recorded
// on the task but never expanded into new occurrences.
type Schedule struct {
	Kind    ScheduleKind `json:"kind"`
	Pattern string       `json:"pattern,omitempty"`
	EndDate *time.Time   `json:"end_date,omitempty"`
}

// UnmarshalJSON accepts the same end_date formats as Date.
func (s *Schedule) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind    ScheduleKind `json:"kind"`
		Pattern string       `json:"pattern"`
		EndDate *Date        `json:"end_date"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		if errors.Is(err, ErrInvalidDate) {
			return ErrInvalidEndDate
		}
		return err
	}
	*s = Schedule{Kind: raw.Kind, Pattern: raw.Pattern, EndDate: raw.EndDate.TimePtr()}
	return nil
}

func NoSchedule() Schedule {
	return Schedule{Kind: ScheduleNone}
}

func Recurring(pattern string, endDate *time.Time) Schedule {
	return Schedule{Kind: ScheduleRecurring, Pattern: pattern, EndDate: endDate}
}

type Task struct {
	ID          int64        `json:"id"`
	HouseID     int64        `json:"house_id"`
	CreatorID   *int64       `json:"creator_id"`
	AssigneeID  *int64       `json:"assignee_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Priority    Priority     `json:"priority"`
	Status      Status       `json:"status"`
	DueDate     *time.Time   `json:"due_date"`
	CompletedAt *time.Time   `json:"completed_at"`
	Reminder    Reminder     `json:"reminder"`
	Schedule    Schedule     `json:"schedule"`
	Creator     *UserSummary `json:"creator,omitempty"`
	Assignee    *UserSummary `json:"assignee,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (t *Task) Completed() bool {
	return t.Status == StatusCompleted
}

// SetStatus moves the task to s, stamping or clearing CompletedAt as the task
// enters or leaves the completed state.
func (t *Task) SetStatus(s Status, now time.Time) {
	if s == StatusCompleted && t.Status != StatusCompleted {
		completedAt := now.UTC()
		t.CompletedAt = &completedAt
	}
	if s != StatusCompleted {
		t.CompletedAt = nil
	}
	t.Status = s
}

func (t Task) MarshalJSON() ([]byte, error) {
	type alias Task
	return json.Marshal(struct {
		alias
		Completed bool `json:"completed"`
	}{alias(t), t.Completed()})
}
