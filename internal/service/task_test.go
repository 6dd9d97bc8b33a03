package service

import (
	"testing"
	"time"

	"github.com/dukerupert/flatmate/internal/apperr"
	"github.com/dukerupert/flatmate/internal/model"
)

// A creates "Take out trash" assigned to B; B completes it but cannot delete
// it; A deletes it.
func TestTaskLifecycleScenario(t *testing.T) {
	env := setupServices(t)
	alice := env.register(t, "Alice", "alice@example.com")
	bob := env.register(t, "Bob", "bob@example.com")
	h := env.createHouse(t, alice, "Flat 1")
	if _, err := env.houses.Join(bob, h.Code); err != nil {
		t.Fatalf("join: %v", err)
	}

	task, err := env.tasks.Create(alice, h.ID, TaskInput{Title: "Take out trash", AssigneeID: &bob.UserID})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Priority != model.PriorityMedium || task.Status != model.StatusPending {
		t.Errorf("defaults = %q, %q", task.Priority, task.Status)
	}
	if task.Assignee == nil || task.Assignee.ID != bob.UserID {
		t.Errorf("assignee = %+v", task.Assignee)
	}

	completed := model.StatusCompleted
	updated, err := env.tasks.Update(bob, task.ID, TaskPatch{Status: &completed})
	if err != nil {
		t.Fatalf("bob update: %v", err)
	}
	if !updated.Completed() || updated.CompletedAt == nil {
		t.Errorf("status = %q, completed_at = %v", updated.Status, updated.CompletedAt)
	}

	_, err = env.tasks.Delete(bob, task.ID)
	assertKind(t, err, apperr.KindForbidden)

	if _, err := env.tasks.Delete(alice, task.ID); err != nil {
		t.Fatalf("alice delete: %v", err)
	}
	_, err = env.tasks.Get(alice, task.ID)
	assertKind(t, err, apperr.KindNotFound)
}

func TestTaskCreateValidation(t *testing.T) {
	env := setupServices(t)
	alice := env.register(t, "Alice", "alice@example.com")
	outsider := env.register(t, "Carol", "carol@example.com")
	h := env.createHouse(t, alice, "Flat 1")

	tests := []struct {
		name string
		in   TaskInput
	}{
		{"missing title", TaskInput{Title: "  "}},
		{"bad priority", TaskInput{Title: "x", Priority: "urgent"}},
		{"bad status", TaskInput{Title: "x", Status: "done"}},
		{"assignee not a member", TaskInput{Title: "x", AssigneeID: &outsider.UserID}},
		{"reminder without interval", TaskInput{Title: "x", Reminder: model.Reminder{Enabled: true}}},
		{"recurring without pattern", TaskInput{Title: "x", Schedule: model.Schedule{Kind: model.ScheduleRecurring}}},
		{"end date without recurrence", TaskInput{Title: "x", Schedule: model.Schedule{EndDate: ptr(time.Now())}}},
		{"unknown schedule kind", TaskInput{Title: "x", Schedule: model.Schedule{Kind: "daily"}}},
		{"unparseable pattern", TaskInput{Title: "x", Schedule: model.Recurring("every other tuesday", nil)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.tasks.Create(alice, h.ID, tt.in)
			assertKind(t, err, apperr.KindValidation)
		})
	}
}

func TestTaskCreateDormantFields(t *testing.T) {
	env := setupServices(t)
	alice := env.register(t, "Alice", "alice@example.com")
	h := env.createHouse(t, alice, "Flat 1")
	end := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	task, err := env.tasks.Create(alice, h.ID, TaskInput{
		Title:    "Water plants",
		Priority: model.PriorityLow,
		Status:   model.StatusCompleted,
		Reminder: model.Reminder{Enabled: true, IntervalMinutes: 30},
		Schedule: model.Recurring(" weekly ", &end),
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.CompletedAt == nil {
		t.Error("expected completed_at for a task created completed")
	}
	if task.Schedule.Pattern != "FREQ=WEEKLY" || task.Schedule.EndDate == nil || !task.Schedule.EndDate.Equal(end) {
		t.Errorf("schedule = %+v", task.Schedule)
	}
	if task.Reminder.IntervalMinutes != 30 {
		t.Errorf("reminder = %+v", task.Reminder)
	}
}

func TestTaskAccessControl(t *testing.T) {
	env := setupServices(t)
	alice := env.register(t, "Alice", "alice@example.com")
	carol := env.register(t, "Carol", "carol@example.com")
	h := env.createHouse(t, alice, "Flat 1")
	task := env.createTask(t, alice, h.ID, TaskInput{Title: "Dishes"})

	_, err := env.tasks.Create(carol, h.ID, TaskInput{Title: "Sneaky"})
	assertKind(t, err, apperr.KindForbidden)
	_, err = env.tasks.Create(carol, h.ID+100, TaskInput{Title: "Nowhere"})
	assertKind(t, err, apperr.KindNotFound)
	_, err = env.tasks.ListHouse(carol, h.ID)
	assertKind(t, err, apperr.KindForbidden)
	_, err = env.tasks.Get(carol, task.ID)
	assertKind(t, err, apperr.KindForbidden)
	_, err = env.tasks.Get(carol, task.ID+100)
	assertKind(t, err, apperr.KindNotFound)
	_, err = env.tasks.Update(carol, task.ID, TaskPatch{Title: ptr("Mine now")})
	assertKind(t, err, apperr.KindForbidden)
	_, err = env.tasks.Complete(carol, task.ID)
	assertKind(t, err, apperr.KindForbidden)
	_, err = env.tasks.Delete(carol, task.ID)
	assertKind(t, err, apperr.KindForbidden)

	got, err := env.tasks.Get(alice, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Dishes" || got.Completed() {
		t.Errorf("task changed by outsider: %+v", got)
	}
}

func TestTaskUpdatePartial(t *testing.T) {
	env := setupServices(t)
	alice := env.register(t, "Alice", "alice@example.com")
	bob := env.register(t, "Bob", "bob@example.com")
	h := env.createHouse(t, alice, "Flat 1")
	env.join(t, bob, h.Code)
	due := time.Date(2026, 11, 2, 18, 0, 0, 0, time.UTC)
	task := env.createTask(t, alice, h.ID, TaskInput{
		Title: "Dishes", Description: "All of them", DueDate: &model.Date{Time: due}, AssigneeID: &alice.UserID,
	})

	high := model.PriorityHigh
	updated, err := env.tasks.Update(bob, task.ID, TaskPatch{
		Priority:   &high,
		AssigneeID: Some(bob.UserID),
		DueDate:    Null[model.Date](),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Dishes" || updated.Description != "All of them" {
		t.Errorf("untouched fields changed: %+v", updated)
	}
	if updated.Priority != model.PriorityHigh {
		t.Errorf("priority = %q", updated.Priority)
	}
	if updated.AssigneeID == nil || *updated.AssigneeID != bob.UserID {
		t.Errorf("assignee = %v, want %d", updated.AssigneeID, bob.UserID)
	}
	if updated.DueDate != nil {
		t.Errorf("due date = %v, want cleared", updated.DueDate)
	}

	reopened, err := env.tasks.Update(alice, task.ID, TaskPatch{Completed: ptr(true)})
	if err != nil {
		t.Fatalf("complete via flag: %v", err)
	}
	if reopened.Status != model.StatusCompleted {
		t.Errorf("status = %q", reopened.Status)
	}
	reopened, err = env.tasks.Update(alice, task.ID, TaskPatch{Completed: ptr(false)})
	if err != nil {
		t.Fatalf("reopen via flag: %v", err)
	}
	if reopened.Status != model.StatusPending || reopened.CompletedAt != nil {
		t.Errorf("status = %q, completed_at = %v", reopened.Status, reopened.CompletedAt)
	}

	carol := env.register(t, "Carol", "carol@example.com")
	_, err = env.tasks.Update(alice, task.ID, TaskPatch{AssigneeID: Some(carol.UserID)})
	assertKind(t, err, apperr.KindValidation)
	_, err = env.tasks.Update(alice, task.ID, TaskPatch{Title: ptr("")})
	assertKind(t, err, apperr.KindValidation)
}

func TestTaskKeepsAssigneeWhoLeft(t *testing.T) {
	env := setupServices(t)
	alice := env.register(t, "Alice", "alice@example.com")
	bob := env.register(t, "Bob", "bob@example.com")
	h := env.createHouse(t, alice, "Flat 1")
	env.join(t, bob, h.Code)
	task := env.createTask(t, alice, h.ID, TaskInput{Title: "Dishes", AssigneeID: &bob.UserID})

	if err := env.houses.Exit(bob, h.ID); err != nil {
		t.Fatalf("exit: %v", err)
	}
	if _, err := env.tasks.Update(alice, task.ID, TaskPatch{Title: ptr("Dishes again")}); err != nil {
		t.Errorf("update unrelated field: %v", err)
	}
}

func TestTaskComplete(t *testing.T) {
	env := setupServices(t)
	alice := env.register(t, "Alice", "alice@example.com")
	h := env.createHouse(t, alice, "Flat 1")
	task := env.createTask(t, alice, h.ID, TaskInput{Title: "Dishes", Status: model.StatusInProgress})

	done, err := env.tasks.Complete(alice, task.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !done.Completed() || done.CompletedAt == nil {
		t.Errorf("task = %+v", done)
	}
}

func TestTaskListMine(t *testing.T) {
	env := setupServices(t)
	alice := env.register(t, "Alice", "alice@example.com")
	bob := env.register(t, "Bob", "bob@example.com")
	flat1 := env.createHouse(t, alice, "Flat 1")
	flat2 := env.createHouse(t, bob, "Flat 2")
	env.join(t, bob, flat1.Code)

	env.createTask(t, alice, flat1.ID, TaskInput{Title: "Dishes", AssigneeID: &bob.UserID})
	env.createTask(t, alice, flat1.ID, TaskInput{Title: "Hoover", Status: model.StatusCompleted})
	env.createTask(t, bob, flat2.ID, TaskInput{Title: "Bins", AssigneeID: &bob.UserID})

	all, err := env.tasks.ListMine(bob, MyTasksFilter{})
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("bob sees %d tasks, want 3", len(all))
	}

	mine, err := env.tasks.ListMine(bob, MyTasksFilter{AssignedToMe: true})
	if err != nil {
		t.Fatalf("list assigned: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("assigned to bob = %d, want 2", len(mine))
	}

	pending := model.StatusPending
	open, err := env.tasks.ListMine(alice, MyTasksFilter{Status: &pending})
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(open) != 1 || open[0].Title != "Dishes" {
		t.Errorf("alice pending = %+v", open)
	}

	bad := model.Status("done")
	_, err = env.tasks.ListMine(alice, MyTasksFilter{Status: &bad})
	assertKind(t, err, apperr.KindValidation)

	inFlat2, err := env.tasks.ListMine(bob, MyTasksFilter{HouseID: &flat2.ID})
	if err != nil {
		t.Fatalf("list flat 2: %v", err)
	}
	if len(inFlat2) != 1 || inFlat2[0].Title != "Bins" {
		t.Errorf("flat 2 tasks = %+v", inFlat2)
	}
}

func TestTaskListMineHouseAccess(t *testing.T) {
	env := setupServices(t)
	alice := env.register(t, "Alice", "alice@example.com")
	carol := env.register(t, "Carol", "carol@example.com")
	h := env.createHouse(t, alice, "Flat 1")
	env.createTask(t, alice, h.ID, TaskInput{Title: "Dishes"})

	missing := h.ID + 100
	_, err := env.tasks.ListMine(alice, MyTasksFilter{HouseID: &missing})
	assertKind(t, err, apperr.KindNotFound)

	_, err = env.tasks.ListMine(carol, MyTasksFilter{HouseID: &h.ID})
	assertKind(t, err, apperr.KindForbidden)

	house, err := env.tasks.ListHouse(alice, h.ID)
	if err != nil {
		t.Fatalf("list house: %v", err)
	}
	if len(house) != 2 {
		t.Errorf("flat 1 tasks = %d, want 2", len(house))
	}
}
