// Package dbtest opens throwaway in-memory databases with the schema applied
// and inserts fixture rows for tests in other packages.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"conference/internal/database"
	"conference/internal/logger"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// New returns a migrated, empty in-memory SQLite database closed at test end
func New(t testing.TB) database.Service {
	t.Helper()

	path := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.New(context.Background(), database.Config{Path: path}, logger.Discard())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// InsertUser stores username with a bcrypt hash of password and returns its id
func InsertUser(t testing.TB, db database.Service, username, password string) int64 {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return insert(t, db, `INSERT INTO users (username, password_hash) VALUES (?, ?) RETURNING id`, username, string(hash))
}

// InsertSession adds a conference session and returns its id
func InsertSession(t testing.TB, db database.Service, title, start, end string) int64 {
	t.Helper()
	return insert(t, db, `INSERT INTO sessions (title, start_time, end_time) VALUES (?, ?, ?) RETURNING id`, title, start, end)
}

// InsertSpeaker adds a speaker and returns its id
func InsertSpeaker(t testing.TB, db database.Service, name string) int64 {
	t.Helper()
	return insert(t, db, `INSERT INTO speakers (name) VALUES (?) RETURNING id`, name)
}

// InsertPresentation adds a presentation and returns its id
func InsertPresentation(t testing.TB, db database.Service, sessionID, speakerID int64, title, abstract string) int64 {
	t.Helper()
	return insert(t, db, `
		INSERT INTO presentations (session_id, speaker_id, title, abstract)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`, sessionID, speakerID, title, abstract)
}

func insert(t testing.TB, db database.Service, query string, args ...any) int64 {
	t.Helper()

	var id int64
	if err := db.QueryRow(context.Background(), query, args...).Scan(&id); err != nil {
		t.Fatalf("fixture insert failed: %v", err)
	}
	return id
}
