package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/flatmate/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, name, email, phone, password_hash, created_at, updated_at`

// Create inserts a user. Emails are stored lower-cased; a duplicate returns
// ErrEmailTaken.
func (s *UserStore) Create(name, email, phone, passwordHash string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (name, email, phone, password_hash) VALUES (?, ?, ?, ?)`,
		name, strings.ToLower(email), phone, passwordHash,
	)
	if uniqueViolation(err, "users.email") {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, strings.ToLower(email))
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) UpdateProfile(id int64, name, email, phone string) (*model.User, error) {
	_, err := s.db.Exec(
		`UPDATE users SET name = ?, email = ?, phone = ? WHERE id = ?`,
		name, strings.ToLower(email), phone, id,
	)
	if uniqueViolation(err, "users.email") {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) UpdatePassword(id int64, passwordHash string) error {
	_, err := s.db.Exec(`UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// Delete removes a user and everything the account owns in one transaction:
// houses the user created (with their tasks and memberships), the user's own
// memberships and sessions. Tasks in other houses survive with the creator
// and assignee references cleared.
// DeletedUser lists the houses a deleted user belonged to, split into the
// ones they created (now gone) and the ones they only left.
type DeletedUser struct {
	OwnedHouses  []int64
	JoinedHouses []int64
}

func (s *UserStore) Delete(id int64) (*DeletedUser, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT h.id, h.creator_id = ? FROM house_members m
		 JOIN houses h ON h.id = m.house_id
		 WHERE m.user_id = ? ORDER BY h.id`, id, id)
	if err != nil {
		return nil, fmt.Errorf("list user houses: %w", err)
	}
	var deleted DeletedUser
	for rows.Next() {
		var houseID int64
		var owned bool
		if err := rows.Scan(&houseID, &owned); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan user house: %w", err)
		}
		if owned {
			deleted.OwnedHouses = append(deleted.OwnedHouses, houseID)
		} else {
			deleted.JoinedHouses = append(deleted.JoinedHouses, houseID)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list user houses: %w", err)
	}

	steps := []struct {
		name  string
		query string
	}{
		{"delete owned house tasks", `DELETE FROM tasks WHERE house_id IN (SELECT id FROM houses WHERE creator_id = ?)`},
		{"delete owned house members", `DELETE FROM house_members WHERE house_id IN (SELECT id FROM houses WHERE creator_id = ?)`},
		{"delete owned houses", `DELETE FROM houses WHERE creator_id = ?`},
		{"delete memberships", `DELETE FROM house_members WHERE user_id = ?`},
		{"clear task assignee", `UPDATE tasks SET assignee_id = NULL WHERE assignee_id = ?`},
		{"clear task creator", `UPDATE tasks SET creator_id = NULL WHERE creator_id = ?`},
		{"delete sessions", `DELETE FROM sessions WHERE user_id = ?`},
		{"delete user", `DELETE FROM users WHERE id = ?`},
	}
	for _, step := range steps {
		if _, err := tx.Exec(step.query, id); err != nil {
			return nil, fmt.Errorf("%s: %w", step.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete user: %w", err)
	}
	return &deleted, nil
}
