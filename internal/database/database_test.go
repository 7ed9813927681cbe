package database_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"conference/internal/database"
	"conference/internal/database/dbtest"
	"conference/internal/logger"

	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	q := `SELECT * FROM users WHERE username = ? AND note <> '?' AND id > ?`

	require.Equal(t, q, database.DialectSQLite.Rebind(q))
	require.Equal(t,
		`SELECT * FROM users WHERE username = $1 AND note <> '?' AND id > $2`,
		database.DialectPostgres.Rebind(q),
	)
	require.Equal(t, "SELECT 1", database.DialectPostgres.Rebind("SELECT 1"))
}

func TestNew_CreatesSchema(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()

	for _, table := range []string{"users", "sessions", "speakers", "presentations"} {
		var n int
		err := db.QueryRow(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
		require.NoError(t, err)
		require.Equal(t, 1, n, "table %s missing", table)
	}
	require.Equal(t, database.DialectSQLite, db.Dialect())
}

func TestNew_EnforcesForeignKeys(t *testing.T) {
	db := dbtest.New(t)

	_, err := db.Exec(context.Background(), `
		INSERT INTO presentations (session_id, speaker_id, title, abstract)
		VALUES (999, 999, 'orphan', 'x')
	`)
	require.Error(t, err)
}

func TestNew_UniqueUsername(t *testing.T) {
	db := dbtest.New(t)
	dbtest.InsertUser(t, db, "admin", "password123")

	_, err := db.Exec(context.Background(), `INSERT INTO users (username, password_hash) VALUES (?, ?)`, "admin", "x")
	require.Error(t, err)
}

func TestNew_FileDatabaseIsReopenable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "conference.sqlite")

	db, err := database.New(ctx, database.Config{Path: path}, logger.Discard())
	require.NoError(t, err)
	dbtest.InsertSession(t, db, "Opening Ceremony", "2024-05-01 09:00", "2024-05-01 10:00")
	require.NoError(t, db.Close())

	// schema creation is idempotent and data survives
	db, err = database.New(ctx, database.Config{Path: path}, logger.Discard())
	require.NoError(t, err)
	defer db.Close()

	var title string
	require.NoError(t, db.QueryRow(ctx, `SELECT title FROM sessions`).Scan(&title))
	require.Equal(t, "Opening Ceremony", title)
}

func TestNew_MigrationFailureIsReturned(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "broken.sqlite")

	// a pre-existing sessions table without start_time breaks the index migration
	raw, err := sql.Open("sqlite", "file:"+path)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE sessions (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	db, err := database.New(ctx, database.Config{Path: path}, logger.Discard())
	require.ErrorContains(t, err, "failed to create schema")
	require.Nil(t, db)
}

func TestNew_ConcurrentOpens(t *testing.T) {
	const n = 8

	var wg sync.WaitGroup
	errs := make([]error, n)
	dbs := make([]database.Service, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("file:concurrent%d_%s?mode=memory&cache=shared", i, t.Name())
			dbs[i], errs[i] = database.New(context.Background(), database.Config{Path: path}, logger.Discard())
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		dbtest.InsertSession(t, dbs[i], "Keynote", "2024-05-01 09:00", "2024-05-01 10:00")
		require.NoError(t, dbs[i].Close())
	}
}

func TestNew_RejectsUnknownURL(t *testing.T) {
	_, err := database.New(context.Background(), database.Config{URL: "mysql://x"}, logger.Discard())
	require.Error(t, err)
}

func TestHealth(t *testing.T) {
	db := dbtest.New(t)

	stats := db.Health()
	require.Equal(t, "up", stats["status"])
	require.Equal(t, "sqlite", stats["dialect"])
}
