package service

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/flatmate/internal/access"
	"github.com/dukerupert/flatmate/internal/apperr"
	"github.com/dukerupert/flatmate/internal/auth"
	"github.com/dukerupert/flatmate/internal/database"
	"github.com/dukerupert/flatmate/internal/model"
	"github.com/dukerupert/flatmate/internal/store"
)

type testEnv struct {
	users    *store.UserStore
	houseSt  *store.HouseStore
	taskSt   *store.TaskStore
	accounts *AccountService
	houses   *HouseService
	tasks    *TaskService
}

func setupServices(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := store.NewUserStore(db)
	houses := store.NewHouseStore(db)
	tasks := store.NewTaskStore(db)
	sessions := store.NewSessionStore(db)
	gate := access.NewGate(houses)
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)

	return &testEnv{
		users:    users,
		houseSt:  houses,
		taskSt:   tasks,
		accounts: NewAccountService(users, sessions, tokens, time.Hour, logger),
		houses:   NewHouseService(houses, users, gate, logger),
		tasks:    NewTaskService(tasks, houses, gate),
	}
}

func (e *testEnv) register(t *testing.T, name, email string) auth.Identity {
	t.Helper()
	creds, err := e.accounts.Register(RegisterInput{Name: name, Email: email, Password: "secret123"})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return auth.Identity{UserID: creds.User.ID, Name: creds.User.Name, Email: creds.User.Email}
}

func (e *testEnv) createHouse(t *testing.T, actor auth.Identity, name string) *model.HouseSummary {
	t.Helper()
	h, err := e.houses.Create(actor, name, "")
	if err != nil {
		t.Fatalf("create house %s: %v", name, err)
	}
	return h
}

func (e *testEnv) join(t *testing.T, actor auth.Identity, code string) {
	t.Helper()
	if _, err := e.houses.Join(actor, code); err != nil {
		t.Fatalf("join %s: %v", code, err)
	}
}

func (e *testEnv) createTask(t *testing.T, actor auth.Identity, houseID int64, in TaskInput) *model.Task {
	t.Helper()
	task, err := e.tasks.Create(actor, houseID, in)
	if err != nil {
		t.Fatalf("create task %s: %v", in.Title, err)
	}
	return task
}

func assertKind(t *testing.T, err error, want apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	if got := apperr.KindOf(err); got != want {
		t.Fatalf("kind = %v (%v), want %v", got, err, want)
	}
}

func ptr[T any](v T) *T {
	return &v
}

func TestOptionalUnmarshal(t *testing.T) {
	var p TaskPatch
	if err := json.Unmarshal([]byte(`{"title":"x","assignee_id":null}`), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !p.AssigneeID.Set || p.AssigneeID.Value != nil {
		t.Errorf("assignee = %+v, want explicit null", p.AssigneeID)
	}
	if p.DueDate.Set {
		t.Error("absent due_date should not be set")
	}

	if err := json.Unmarshal([]byte(`{"assignee_id":7,"due_date":"2026-11-02T18:00:00Z"}`), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.AssigneeID.Value == nil || *p.AssigneeID.Value != 7 {
		t.Errorf("assignee = %+v, want 7", p.AssigneeID)
	}
	if p.DueDate.Value == nil || p.DueDate.Value.Day() != 2 {
		t.Errorf("due date = %+v", p.DueDate)
	}

	p = TaskPatch{}
	if err := json.Unmarshal([]byte(`{"due_date":"2026-11-03"}`), &p); err != nil {
		t.Fatalf("decode calendar date: %v", err)
	}
	if p.DueDate.Value == nil || p.DueDate.Value.Day() != 3 {
		t.Errorf("due date = %+v", p.DueDate)
	}
}

func TestPatchedStatus(t *testing.T) {
	completed, inProgress := ptr(model.StatusCompleted), ptr(model.StatusInProgress)
	tests := []struct {
		name    string
		current model.Status
		patch   TaskPatch
		want    model.Status
		wantErr bool
	}{
		{"no change", model.StatusPending, TaskPatch{}, model.StatusPending, false},
		{"status only", model.StatusPending, TaskPatch{Status: inProgress}, model.StatusInProgress, false},
		{"completed true", model.StatusInProgress, TaskPatch{Completed: ptr(true)}, model.StatusCompleted, false},
		{"completed false reopens", model.StatusCompleted, TaskPatch{Completed: ptr(false)}, model.StatusPending, false},
		{"completed false keeps progress", model.StatusInProgress, TaskPatch{Completed: ptr(false)}, model.StatusInProgress, false},
		{"agreeing pair", model.StatusPending, TaskPatch{Status: completed, Completed: ptr(true)}, model.StatusCompleted, false},
		{"disagreeing pair", model.StatusPending, TaskPatch{Status: inProgress, Completed: ptr(true)}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := patchedStatus(tt.current, tt.patch)
			if tt.wantErr {
				if !errors.Is(err, apperr.ErrValidation) {
					t.Fatalf("err = %v, want validation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("status = %q, want %q", got, tt.want)
			}
		})
	}
}
