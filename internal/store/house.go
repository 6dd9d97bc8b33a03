package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/flatmate/internal/invite"
	"github.com/dukerupert/flatmate/internal/model"
)

// maxCodeAttempts bounds how many invite codes Create draws before giving up.
const maxCodeAttempts = 5

type HouseStore struct {
	db      *sql.DB
	newCode func() (string, error)
}

func NewHouseStore(db *sql.DB) *HouseStore {
	return &HouseStore{db: db, newCode: invite.Generate}
}

// SetCodeGenerator replaces the invite code source used by Create.
func (s *HouseStore) SetCodeGenerator(fn func() (string, error)) {
	s.newCode = fn
}

func scanHouse(scanner interface{ Scan(...any) error }) (*model.House, error) {
	var h model.House
	err := scanner.Scan(&h.ID, &h.Name, &h.Description, &h.Code, &h.CreatorID, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func scanMembership(scanner interface{ Scan(...any) error }) (*model.Membership, error) {
	var m model.Membership
	err := scanner.Scan(&m.ID, &m.HouseID, &m.UserID, &m.Role, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const houseCols = `id, name, description, code, creator_id, created_at, updated_at`
const membershipCols = `id, house_id, user_id, role, created_at`

// Create inserts a house with a fresh invite code and makes the creator its
// admin member, both in one transaction. A code that was ever issued before
// is rejected by the invite_codes primary key and a new one is drawn, up to
// maxCodeAttempts times.
func (s *HouseStore) Create(name, description string, creatorID int64) (*model.House, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, err
		}
		id, err := s.insertWithAdmin(name, description, code, creatorID)
		if errors.Is(err, ErrCodeTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return s.GetByID(id)
	}
	return nil, ErrCodesExhausted
}

func (s *HouseStore) insertWithAdmin(name, description, code string, creatorID int64) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO invite_codes (code) VALUES (?)`, code); err != nil {
		if uniqueViolation(err, "invite_codes.code") {
			return 0, ErrCodeTaken
		}
		return 0, fmt.Errorf("reserve invite code: %w", err)
	}

	result, err := tx.Exec(
		`INSERT INTO houses (name, description, code, creator_id) VALUES (?, ?, ?, ?)`,
		name, description, code, creatorID,
	)
	if err != nil {
		if uniqueViolation(err, "houses.code") {
			return 0, ErrCodeTaken
		}
		return 0, fmt.Errorf("insert house: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO house_members (house_id, user_id, role) VALUES (?, ?, ?)`,
		id, creatorID, string(model.RoleAdmin),
	); err != nil {
		return 0, fmt.Errorf("insert admin member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit house: %w", err)
	}
	return id, nil
}

func (s *HouseStore) GetByID(id int64) (*model.House, error) {
	row := s.db.QueryRow(`SELECT `+houseCols+` FROM houses WHERE id = ?`, id)
	h, err := scanHouse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get house: %w", err)
	}
	return h, nil
}

func (s *HouseStore) GetByCode(code string) (*model.House, error) {
	row := s.db.QueryRow(`SELECT `+houseCols+` FROM houses WHERE code = ?`, code)
	h, err := scanHouse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get house by code: %w", err)
	}
	return h, nil
}

// Delete removes a house with all of its tasks and memberships in one
// transaction. The invite code stays reserved.
func (s *HouseStore) Delete(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM tasks WHERE house_id = ?`, id); err != nil {
		return fmt.Errorf("delete house tasks: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM house_members WHERE house_id = ?`, id); err != nil {
		return fmt.Errorf("delete house members: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM houses WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete house: %w", err)
	}

	return tx.Commit()
}

// AddMember inserts a membership row. The (user_id, house_id) unique
// constraint decides races between concurrent joins: the loser gets
// ErrAlreadyMember.
func (s *HouseStore) AddMember(houseID, userID int64, role model.Role) (*model.Membership, error) {
	result, err := s.db.Exec(
		`INSERT INTO house_members (house_id, user_id, role) VALUES (?, ?, ?)`,
		houseID, userID, string(role),
	)
	if uniqueViolation(err, "house_members") {
		return nil, ErrAlreadyMember
	}
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+membershipCols+` FROM house_members WHERE id = ?`, id)
	return scanMembership(row)
}

// RemoveMember deletes the membership and reports whether one existed.
func (s *HouseStore) RemoveMember(houseID, userID int64) (bool, error) {
	result, err := s.db.Exec(
		`DELETE FROM house_members WHERE house_id = ? AND user_id = ?`,
		houseID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("remove member: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *HouseStore) GetMember(houseID, userID int64) (*model.Membership, error) {
	row := s.db.QueryRow(
		`SELECT `+membershipCols+` FROM house_members WHERE house_id = ? AND user_id = ?`,
		houseID, userID,
	)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// IsMember is an indexed existence check on the membership table.
func (s *HouseStore) IsMember(houseID, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(
		`SELECT EXISTS (SELECT 1 FROM house_members WHERE user_id = ? AND house_id = ?)`,
		userID, houseID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check member: %w", err)
	}
	return exists, nil
}

func (s *HouseStore) ListMembers(houseID int64) ([]model.Flatmate, error) {
	rows, err := s.db.Query(
		`SELECT hm.id, hm.house_id, hm.user_id, hm.role, hm.created_at, u.name, u.email
		 FROM house_members hm
		 JOIN users u ON u.id = hm.user_id
		 WHERE hm.house_id = ?
		 ORDER BY hm.created_at ASC, hm.id ASC`,
		houseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.Flatmate
	for rows.Next() {
		var f model.Flatmate
		if err := rows.Scan(
			&f.ID, &f.HouseID, &f.UserID, &f.Role, &f.CreatedAt,
			&f.User.Name, &f.User.Email,
		); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		f.User.ID = f.UserID
		members = append(members, f)
	}
	return members, rows.Err()
}

// ListForUser returns every house the user holds a membership in, with the
// user's role and member/task counts.
func (s *HouseStore) ListForUser(userID int64) ([]model.HouseSummary, error) {
	rows, err := s.db.Query(
		`SELECT h.id, h.name, h.description, h.code, h.creator_id, h.created_at, h.updated_at,
		        hm.role,
		        (SELECT COUNT(*) FROM house_members m WHERE m.house_id = h.id),
		        (SELECT COUNT(*) FROM tasks t WHERE t.house_id = h.id)
		 FROM houses h
		 JOIN house_members hm ON hm.house_id = h.id
		 WHERE hm.user_id = ?
		 ORDER BY h.name ASC, h.id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list houses for user: %w", err)
	}
	defer rows.Close()

	var houses []model.HouseSummary
	for rows.Next() {
		var hs model.HouseSummary
		if err := rows.Scan(
			&hs.ID, &hs.Name, &hs.Description, &hs.Code, &hs.CreatorID, &hs.CreatedAt, &hs.UpdatedAt,
			&hs.Role, &hs.MembersCount, &hs.TasksCount,
		); err != nil {
			return nil, fmt.Errorf("scan house: %w", err)
		}
		hs.IsCreator = hs.CreatorID == userID
		houses = append(houses, hs)
	}
	return houses, rows.Err()
}

// Summary returns the house as seen by userID, or nil when the house does not
// exist or the user is not a member.
func (s *HouseStore) Summary(houseID, userID int64) (*model.HouseSummary, error) {
	var hs model.HouseSummary
	err := s.db.QueryRow(
		`SELECT h.id, h.name, h.description, h.code, h.creator_id, h.created_at, h.updated_at,
		        hm.role,
		        (SELECT COUNT(*) FROM house_members m WHERE m.house_id = h.id),
		        (SELECT COUNT(*) FROM tasks t WHERE t.house_id = h.id)
		 FROM houses h
		 JOIN house_members hm ON hm.house_id = h.id AND hm.user_id = ?
		 WHERE h.id = ?`,
		userID, houseID,
	).Scan(
		&hs.ID, &hs.Name, &hs.Description, &hs.Code, &hs.CreatorID, &hs.CreatedAt, &hs.UpdatedAt,
		&hs.Role, &hs.MembersCount, &hs.TasksCount,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("house summary: %w", err)
	}
	hs.IsCreator = hs.CreatorID == userID
	return &hs, nil
}
