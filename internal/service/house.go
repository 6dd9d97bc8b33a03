package service

import (
	"errors"
	"log/slog"

	"github.com/dukerupert/flatmate/internal/access"
	"github.com/dukerupert/flatmate/internal/apperr"
	"github.com/dukerupert/flatmate/internal/auth"
	"github.com/dukerupert/flatmate/internal/invite"
	"github.com/dukerupert/flatmate/internal/model"
	"github.com/dukerupert/flatmate/internal/store"
)

var (
	errHouseNotFound = apperr.NotFound("House not found")
	errInvalidCode   = apperr.NotFound("Invalid house code")
)

// HouseDetail is a house with its member list, returned to members only.
type HouseDetail struct {
	model.HouseSummary
	Members []model.Flatmate `json:"members"`
}

// MemberRef names the user to add to a house, by ID or by email.
type MemberRef struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
}

type HouseService struct {
	houses *store.HouseStore
	users  *store.UserStore
	gate   *access.Gate
	logger *slog.Logger
}

func NewHouseService(houses *store.HouseStore, users *store.UserStore, gate *access.Gate, logger *slog.Logger) *HouseService {
	return &HouseService{houses: houses, users: users, gate: gate, logger: logger}
}

func (s *HouseService) List(actor auth.Identity) ([]model.HouseSummary, error) {
	return s.houses.ListForUser(actor.UserID)
}

func (s *HouseService) Create(actor auth.Identity, name, description string) (*model.HouseSummary, error) {
	name, err := requireText(name, "Name", maxNameLength)
	if err != nil {
		return nil, err
	}
	if len(description) > maxDescriptionLength {
		return nil, apperr.Validation("Description is too long")
	}

	h, err := s.houses.Create(name, description, actor.UserID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("house created", "house_id", h.ID, "creator_id", actor.UserID)
	return s.houses.Summary(h.ID, actor.UserID)
}

// load returns the house or a NotFound error. It runs before any
// authorization check so probing a missing ID always reports NotFound.
func (s *HouseService) load(id int64) (*model.House, error) {
	h, err := s.houses.GetByID(id)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, errHouseNotFound
	}
	return h, nil
}

// RequireMember reports NotFound for a missing house and Forbidden when the
// actor is not one of its members.
func (s *HouseService) RequireMember(actor auth.Identity, id int64) error {
	if _, err := s.load(id); err != nil {
		return err
	}
	return s.gate.RequireMember(actor.UserID, id)
}

func (s *HouseService) Get(actor auth.Identity, id int64) (*HouseDetail, error) {
	if err := s.RequireMember(actor, id); err != nil {
		return nil, err
	}

	summary, err := s.houses.Summary(id, actor.UserID)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		// Membership was removed between the check and the read
		return nil, apperr.Forbidden("You are not a member of this house")
	}
	members, err := s.houses.ListMembers(id)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []model.Flatmate{}
	}
	return &HouseDetail{HouseSummary: *summary, Members: members}, nil
}

// Delete removes the house with its tasks and memberships. Only the creator
// may do this.
func (s *HouseService) Delete(actor auth.Identity, id int64) error {
	h, err := s.load(id)
	if err != nil {
		return err
	}
	if !access.IsCreator(h, actor.UserID) {
		return apperr.Forbidden("Only the house creator can delete this house")
	}
	if err := s.houses.Delete(id); err != nil {
		return err
	}
	s.logger.Info("house deleted", "house_id", id, "user_id", actor.UserID)
	return nil
}

// Exit removes the actor's own membership. The creator cannot exit.
func (s *HouseService) Exit(actor auth.Identity, id int64) error {
	h, err := s.load(id)
	if err != nil {
		return err
	}
	if access.IsCreator(h, actor.UserID) {
		return apperr.Validation("House creator cannot exit house. Delete the house instead.")
	}
	removed, err := s.houses.RemoveMember(id, actor.UserID)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.Forbidden("You are not a member of this house")
	}
	return nil
}

// Join adds the actor to the house holding code. The membership unique
// constraint settles concurrent joins.
func (s *HouseService) Join(actor auth.Identity, code string) (*model.HouseSummary, error) {
	code = invite.Normalize(code)
	if code == "" {
		return nil, apperr.Validation("House code is required")
	}
	if !invite.Valid(code) {
		return nil, errInvalidCode
	}

	h, err := s.houses.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, errInvalidCode
	}

	_, err = s.houses.AddMember(h.ID, actor.UserID, model.RoleMember)
	if errors.Is(err, store.ErrAlreadyMember) {
		return nil, apperr.Conflict("You are already a member of this house")
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("house joined", "house_id", h.ID, "user_id", actor.UserID)
	return s.houses.Summary(h.ID, actor.UserID)
}

// AddMember lets an existing member add another user to the house.
func (s *HouseService) AddMember(actor auth.Identity, houseID int64, ref MemberRef) (*model.Flatmate, error) {
	if err := s.RequireMember(actor, houseID); err != nil {
		return nil, err
	}

	var target *model.User
	var err error
	switch {
	case ref.UserID != 0:
		target, err = s.users.GetByID(ref.UserID)
	case ref.Email != "":
		target, err = s.users.GetByEmail(ref.Email)
	default:
		return nil, apperr.Validation("User ID or email is required")
	}
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, apperr.NotFound("User not found")
	}

	m, err := s.houses.AddMember(houseID, target.ID, model.RoleMember)
	if errors.Is(err, store.ErrAlreadyMember) {
		return nil, apperr.Conflict("User is already a member of this house")
	}
	if err != nil {
		return nil, err
	}
	return &model.Flatmate{Membership: *m, User: target.Summary()}, nil
}

func (s *HouseService) ListMembers(actor auth.Identity, houseID int64) ([]model.Flatmate, error) {
	if err := s.RequireMember(actor, houseID); err != nil {
		return nil, err
	}
	return s.houses.ListMembers(houseID)
}
