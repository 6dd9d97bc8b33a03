// Package access holds the authorization predicates consulted before every
// house- or task-scoped operation.
package access

import (
	"github.com/dukerupert/flatmate/internal/apperr"
	"github.com/dukerupert/flatmate/internal/model"
)

// MembershipChecker answers whether a membership row exists for a pair.
type MembershipChecker interface {
	IsMember(houseID, userID int64) (bool, error)
}

type Gate struct {
	members MembershipChecker
}

func NewGate(members MembershipChecker) *Gate {
	return &Gate{members: members}
}

func (g *Gate) IsMember(userID, houseID int64) (bool, error) {
	return g.members.IsMember(houseID, userID)
}

// RequireMember returns a Forbidden error unless userID belongs to houseID.
// Callers must have established that the house exists.
func (g *Gate) RequireMember(userID, houseID int64) error {
	ok, err := g.IsMember(userID, houseID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("You are not a member of this house")
	}
	return nil
}

func IsCreator(h *model.House, userID int64) bool {
	return h != nil && h.CreatorID == userID
}

// CanDeleteTask reports whether userID may delete t. The task's creator may;
// once the creator account is gone the house creator inherits the right.
func CanDeleteTask(t *model.Task, h *model.House, userID int64) bool {
	if t.CreatorID != nil {
		return *t.CreatorID == userID
	}
	return IsCreator(h, userID)
}
