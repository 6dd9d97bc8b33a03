package service

import (
	"strings"
	"time"

	"github.com/dukerupert/flatmate/internal/access"
	"github.com/dukerupert/flatmate/internal/apperr"
	"github.com/dukerupert/flatmate/internal/auth"
	"github.com/dukerupert/flatmate/internal/model"
	"github.com/dukerupert/flatmate/internal/recurrence"
	"github.com/dukerupert/flatmate/internal/store"
)

var errTaskNotFound = apperr.NotFound("Task not found")

type TaskInput struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    model.Priority `json:"priority"`
	Status      model.Status   `json:"status"`
	DueDate     *model.Date    `json:"due_date"`
	AssigneeID  *int64         `json:"assignee_id"`
	Reminder    model.Reminder `json:"reminder"`
	Schedule    model.Schedule `json:"schedule"`
}

// TaskPatch is a partial update. Nil pointers leave a field unchanged;
// Optional fields can also be cleared with an explicit null. Completed is
// accepted for older clients and is folded into Status.
type TaskPatch struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Priority    *model.Priority      `json:"priority"`
	Status      *model.Status        `json:"status"`
	Completed   *bool                `json:"completed"`
	DueDate     Optional[model.Date] `json:"due_date"`
	AssigneeID  Optional[int64]      `json:"assignee_id"`
	Reminder    *model.Reminder      `json:"reminder"`
	Schedule    *model.Schedule      `json:"schedule"`
}

// MyTasksFilter narrows the cross-house task list.
type MyTasksFilter struct {
	HouseID      *int64
	Status       *model.Status
	AssignedToMe bool
}

type TaskService struct {
	tasks  *store.TaskStore
	houses *store.HouseStore
	gate   *access.Gate
	now    func() time.Time
}

func NewTaskService(tasks *store.TaskStore, houses *store.HouseStore, gate *access.Gate) *TaskService {
	return &TaskService{tasks: tasks, houses: houses, gate: gate, now: time.Now}
}

func (s *TaskService) loadHouse(id int64) (*model.House, error) {
	h, err := s.houses.GetByID(id)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, errHouseNotFound
	}
	return h, nil
}

// loadTask returns the task once the actor is known to be a member of its
// house. A missing task is reported before any membership check.
func (s *TaskService) loadTask(actor auth.Identity, id int64) (*model.Task, error) {
	t, err := s.tasks.GetByID(id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errTaskNotFound
	}
	if err := s.gate.RequireMember(actor.UserID, t.HouseID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TaskService) ListHouse(actor auth.Identity, houseID int64) ([]model.Task, error) {
	if _, err := s.loadHouse(houseID); err != nil {
		return nil, err
	}
	if err := s.gate.RequireMember(actor.UserID, houseID); err != nil {
		return nil, err
	}
	return s.tasks.ListByHouse(houseID)
}

// ListMine returns tasks across every house the actor belongs to. Narrowing
// to one house requires that house to exist and the actor to be a member.
func (s *TaskService) ListMine(actor auth.Identity, f MyTasksFilter) ([]model.Task, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, apperr.Validation("Invalid status")
	}
	if f.HouseID != nil {
		if _, err := s.loadHouse(*f.HouseID); err != nil {
			return nil, err
		}
		if err := s.gate.RequireMember(actor.UserID, *f.HouseID); err != nil {
			return nil, err
		}
	}
	filter := store.TaskFilter{HouseID: f.HouseID, Status: f.Status}
	if f.AssignedToMe {
		filter.AssigneeID = &actor.UserID
	}
	return s.tasks.ListForUser(actor.UserID, filter)
}

func (s *TaskService) Create(actor auth.Identity, houseID int64, in TaskInput) (*model.Task, error) {
	if _, err := s.loadHouse(houseID); err != nil {
		return nil, err
	}
	if err := s.gate.RequireMember(actor.UserID, houseID); err != nil {
		return nil, err
	}

	title, err := requireText(in.Title, "Title", maxTitleLength)
	if err != nil {
		return nil, err
	}
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}
	if in.Status == "" {
		in.Status = model.StatusPending
	}
	t := &model.Task{
		HouseID:     houseID,
		CreatorID:   &actor.UserID,
		AssigneeID:  in.AssigneeID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Priority:    in.Priority,
		DueDate:     in.DueDate.TimePtr(),
		Reminder:    in.Reminder,
		Schedule:    in.Schedule,
	}
	if err := s.validate(t, in.Status, true); err != nil {
		return nil, err
	}
	t.SetStatus(in.Status, s.now())
	return s.tasks.Create(t)
}

func (s *TaskService) Get(actor auth.Identity, id int64) (*model.Task, error) {
	return s.loadTask(actor, id)
}

// Update applies a partial patch. Any current member of the task's house may
// change any mutable field.
func (s *TaskService) Update(actor auth.Identity, id int64, p TaskPatch) (*model.Task, error) {
	t, err := s.loadTask(actor, id)
	if err != nil {
		return nil, err
	}

	var fields []store.TaskField
	if p.Title != nil {
		if t.Title, err = requireText(*p.Title, "Title", maxTitleLength); err != nil {
			return nil, err
		}
		fields = append(fields, store.TaskTitle)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
		fields = append(fields, store.TaskDescription)
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
		fields = append(fields, store.TaskPriority)
	}
	if p.DueDate.Set {
		t.DueDate = p.DueDate.Value.TimePtr()
		fields = append(fields, store.TaskDueDate)
	}
	if p.AssigneeID.Set {
		t.AssigneeID = p.AssigneeID.Value
		fields = append(fields, store.TaskAssignee)
	}
	if p.Reminder != nil {
		t.Reminder = *p.Reminder
		fields = append(fields, store.TaskReminder)
	}
	if p.Schedule != nil {
		t.Schedule = *p.Schedule
		fields = append(fields, store.TaskSchedule)
	}

	status, err := patchedStatus(t.Status, p)
	if err != nil {
		return nil, err
	}
	if err := s.validate(t, status, p.AssigneeID.Set); err != nil {
		return nil, err
	}
	if p.Status != nil || p.Completed != nil {
		t.SetStatus(status, s.now())
		fields = append(fields, store.TaskStatus)
	}
	if len(fields) == 0 {
		return t, nil
	}
	return s.tasks.Update(t, fields...)
}

// patchedStatus resolves the status a patch asks for. The legacy completed
// flag maps onto the status and must agree with it when both are sent.
func patchedStatus(current model.Status, p TaskPatch) (model.Status, error) {
	status := current
	if p.Status != nil {
		status = *p.Status
	}
	if p.Completed == nil {
		return status, nil
	}
	if p.Status != nil && *p.Completed != (status == model.StatusCompleted) {
		return "", apperr.Validation("Status and completed disagree")
	}
	switch {
	case *p.Completed:
		return model.StatusCompleted, nil
	case status == model.StatusCompleted:
		return model.StatusPending, nil
	}
	return status, nil
}

func (s *TaskService) Complete(actor auth.Identity, id int64) (*model.Task, error) {
	t, err := s.loadTask(actor, id)
	if err != nil {
		return nil, err
	}
	t.SetStatus(model.StatusCompleted, s.now())
	return s.tasks.Update(t, store.TaskStatus)
}

// Delete removes a task. Only its creator may, or the house creator once the
// task's creator account no longer exists. The deleted task is returned.
func (s *TaskService) Delete(actor auth.Identity, id int64) (*model.Task, error) {
	t, err := s.loadTask(actor, id)
	if err != nil {
		return nil, err
	}
	h, err := s.loadHouse(t.HouseID)
	if err != nil {
		return nil, err
	}
	if !access.CanDeleteTask(t, h, actor.UserID) {
		return nil, apperr.Forbidden("Only the task creator can delete this task")
	}
	if err := s.tasks.Delete(id); err != nil {
		return nil, err
	}
	return t, nil
}

// validate checks t before it is written. The assignee is only checked when
// it is being set, so a task keeps an assignee who has since left the house.
func (s *TaskService) validate(t *model.Task, status model.Status, checkAssignee bool) error {
	if !t.Priority.Valid() {
		return apperr.Validation("Priority must be low, medium or high")
	}
	if !status.Valid() {
		return apperr.Validation("Status must be pending, in_progress or completed")
	}
	if len(t.Description) > maxDescriptionLength {
		return apperr.Validation("Description is too long")
	}
	if t.Reminder.IntervalMinutes < 0 || (t.Reminder.Enabled && t.Reminder.IntervalMinutes == 0) {
		return apperr.Validation("Reminder interval must be positive")
	}

	switch t.Schedule.Kind {
	case "", model.ScheduleNone:
		if t.Schedule.Pattern != "" || t.Schedule.EndDate != nil {
			return apperr.Validation("Recurrence requires kind recurring")
		}
		t.Schedule = model.NoSchedule()
	case model.ScheduleRecurring:
		if strings.TrimSpace(t.Schedule.Pattern) == "" {
			return apperr.Validation("Recurrence pattern is required")
		}
		pattern, err := recurrence.Normalize(t.Schedule.Pattern)
		if err != nil {
			return apperr.Validation("Invalid recurrence pattern")
		}
		t.Schedule.Pattern = pattern
	default:
		return apperr.Validation("Schedule kind must be none or recurring")
	}

	if checkAssignee && t.AssigneeID != nil {
		ok, err := s.gate.IsMember(*t.AssigneeID, t.HouseID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Validation("Assignee must be a member of this house")
		}
	}
	return nil
}
