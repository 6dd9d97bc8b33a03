package service

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/flatmate/internal/apperr"
	"github.com/dukerupert/flatmate/internal/auth"
	"github.com/dukerupert/flatmate/internal/model"
	"github.com/dukerupert/flatmate/internal/store"
)

var errBadCredentials = apperr.Validation("Incorrect email or password")

// Credentials is what a successful register or login hands back: a bearer
// token for API clients and a session for browser clients.
type Credentials struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
	Session   *model.Session
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

type ProfilePatch struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

type AccountService struct {
	users      *store.UserStore
	sessions   *store.SessionStore
	tokens     *auth.TokenIssuer
	sessionTTL time.Duration
	logger     *slog.Logger
}

func NewAccountService(users *store.UserStore, sessions *store.SessionStore, tokens *auth.TokenIssuer, sessionTTL time.Duration, logger *slog.Logger) *AccountService {
	return &AccountService{
		users:      users,
		sessions:   sessions,
		tokens:     tokens,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

func (s *AccountService) Register(in RegisterInput) (*Credentials, error) {
	name, err := requireText(in.Name, "Name", maxNameLength)
	if err != nil {
		return nil, err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := checkPasswordLength(in.Password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Create(name, email, strings.TrimSpace(in.Phone), hash)
	if errors.Is(err, store.ErrEmailTaken) {
		return nil, apperr.Conflict("Email already registered")
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return s.issue(user)
}

func (s *AccountService) Login(email, password string) (*Credentials, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, errBadCredentials
	}
	user, err := s.users.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errBadCredentials
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, errBadCredentials
		}
		return nil, err
	}
	return s.issue(user)
}

func (s *AccountService) issue(user *model.User) (*Credentials, error) {
	sess, err := s.sessions.Create(user.ID, s.sessionTTL)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &Credentials{User: user, Token: token, ExpiresAt: expiresAt, Session: sess}, nil
}

// Logout ends the cookie session the actor authenticated with. Bearer tokens
// simply expire.
func (s *AccountService) Logout(actor auth.Identity) error {
	if actor.SessionID == 0 {
		return nil
	}
	return s.sessions.Delete(actor.SessionID)
}

// IdentityFromSession resolves a session cookie value. It returns nil when the
// session is unknown, expired or belongs to a deleted user.
func (s *AccountService) IdentityFromSession(token string) (*auth.Identity, error) {
	sess, err := s.sessions.GetByToken(token)
	if err != nil || sess == nil {
		return nil, err
	}
	id, err := s.identity(sess.UserID)
	if err != nil || id == nil {
		return nil, err
	}
	id.SessionID = sess.ID
	return id, nil
}

// IdentityFromToken resolves a bearer token. Invalid tokens yield nil.
func (s *AccountService) IdentityFromToken(token string) (*auth.Identity, error) {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		return nil, nil
	}
	return s.identity(userID)
}

func (s *AccountService) identity(userID int64) (*auth.Identity, error) {
	user, err := s.users.GetByID(userID)
	if err != nil || user == nil {
		return nil, err
	}
	return &auth.Identity{UserID: user.ID, Name: user.Name, Email: user.Email}, nil
}

func (s *AccountService) Profile(actor auth.Identity) (*model.User, error) {
	user, err := s.users.GetByID(actor.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.NotFound("User not found")
	}
	return user, nil
}

func (s *AccountService) UpdateProfile(actor auth.Identity, patch ProfilePatch) (*model.User, error) {
	user, err := s.Profile(actor)
	if err != nil {
		return nil, err
	}

	name, email, phone := user.Name, user.Email, user.Phone
	if patch.Name != nil {
		if name, err = requireText(*patch.Name, "Name", maxNameLength); err != nil {
			return nil, err
		}
	}
	if patch.Email != nil {
		if email, err = normalizeEmail(*patch.Email); err != nil {
			return nil, err
		}
	}
	if patch.Phone != nil {
		phone = strings.TrimSpace(*patch.Phone)
	}

	updated, err := s.users.UpdateProfile(user.ID, name, email, phone)
	if errors.Is(err, store.ErrEmailTaken) {
		return nil, apperr.Conflict("Email already registered")
	}
	return updated, err
}

func (s *AccountService) ChangePassword(actor auth.Identity, current, next string) error {
	user, err := s.Profile(actor)
	if err != nil {
		return err
	}
	if err := auth.CheckPassword(user.PasswordHash, current); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return apperr.Validation("Current password is incorrect")
		}
		return err
	}
	if err := checkPasswordLength(next); err != nil {
		return err
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(user.ID, hash)
}

// AccountDeletion lists the houses affected by an account deletion: the ones
// the user created, which are gone, and the ones the user merely left.
type AccountDeletion struct {
	DeletedHouses []int64
	LeftHouses    []int64
}

// DeleteAccount removes the actor's account after re-checking the password.
func (s *AccountService) DeleteAccount(actor auth.Identity, password string) (*AccountDeletion, error) {
	user, err := s.Profile(actor)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperr.Validation("Incorrect password")
		}
		return nil, err
	}

	deleted, err := s.users.Delete(user.ID)
	if err != nil {
		return nil, fmt.Errorf("delete account %d: %w", user.ID, err)
	}
	result := AccountDeletion{DeletedHouses: deleted.OwnedHouses, LeftHouses: deleted.JoinedHouses}
	s.logger.Info("account deleted", "user_id", user.ID, "houses_deleted", len(result.DeletedHouses))
	return &result, nil
}

func checkPasswordLength(password string) error {
	if len(password) < auth.MinPasswordLength {
		return apperr.Validation(fmt.Sprintf("Password must be at least %d characters", auth.MinPasswordLength))
	}
	return nil
}
