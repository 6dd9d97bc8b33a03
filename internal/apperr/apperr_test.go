package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrUnauthenticated, http.StatusUnauthorized},
		{NotFound("house not found"), http.StatusNotFound},
		{Forbidden("not a member"), http.StatusForbidden},
		{Conflict("already a member"), http.StatusBadRequest},
		{Validation("title is required"), http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := Status(c.err); got != c.want {
			t.Errorf("Status(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("join house: %w", Conflict("you are already a member of this house"))
	if !errors.Is(err, ErrConflict) {
		t.Error("expected wrapped conflict to match ErrConflict")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("conflict should not match ErrNotFound")
	}
}

func TestMessageHidesInternalErrors(t *testing.T) {
	if got := Message(errors.New("sql: connection refused")); got != "internal server error" {
		t.Errorf("Message = %q, want generic message", got)
	}
	if got := Message(NotFound("task not found")); got != "task not found" {
		t.Errorf("Message = %q, want %q", got, "task not found")
	}
}
