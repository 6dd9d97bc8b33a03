package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/dukerupert/flatmate/internal/database"
	"github.com/dukerupert/flatmate/internal/model"
)

type testStores struct {
	db       *sql.DB
	users    *UserStore
	houses   *HouseStore
	tasks    *TaskStore
	sessions *SessionStore
}

func setupTestDB(t *testing.T) *testStores {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &testStores{
		db:       db,
		users:    NewUserStore(db),
		houses:   NewHouseStore(db),
		tasks:    NewTaskStore(db),
		sessions: NewSessionStore(db),
	}
}

func (ts *testStores) createUser(t *testing.T, name, email string) *model.User {
	t.Helper()
	u, err := ts.users.Create(name, email, "", "hash")
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func (ts *testStores) createHouse(t *testing.T, name string, creatorID int64) *model.House {
	t.Helper()
	h, err := ts.houses.Create(name, "", creatorID)
	if err != nil {
		t.Fatalf("create house %s: %v", name, err)
	}
	return h
}

func (ts *testStores) addMember(t *testing.T, houseID, userID int64) {
	t.Helper()
	if _, err := ts.houses.AddMember(houseID, userID, model.RoleMember); err != nil {
		t.Fatalf("add member %d to house %d: %v", userID, houseID, err)
	}
}

func (ts *testStores) createSession(t *testing.T, userID int64) *model.Session {
	t.Helper()
	sess, err := ts.sessions.Create(userID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess
}

func (ts *testStores) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	if err := ts.db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

// codeSequence returns a code generator that yields codes in order and
// repeats the last one once exhausted.
func codeSequence(codes ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		c := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return c, nil
	}
}
