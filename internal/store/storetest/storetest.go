// Package storetest provides migrated in-memory task databases for tests.
package storetest

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/essoktani-yazid/stm-ai-gateway/internal/store"
)

// Task is a fixture row.
type Task struct {
	ID          string
	Title       string
	Description string
	Priority    string
	Status      string
	UserID      string
}

// New returns an executor over a fresh, migrated in-memory SQLite database
// holding the given tasks. The database is closed when the test ends.
func New(t testing.TB, tasks ...Task) *store.Executor {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.DiscardHandler)
	exec := store.NewWithDB(db, store.DriverSQLite, logger)
	if _, err := exec.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	Seed(t, db, tasks...)
	return exec
}

// Seed inserts tasks, filling in defaults for empty fields.
func Seed(t testing.TB, db *sql.DB, tasks ...Task) {
	t.Helper()
	for _, task := range tasks {
		if task.Priority == "" {
			task.Priority = "MEDIUM"
		}
		if task.Status == "" {
			task.Status = "TODO"
		}
		if task.UserID == "" {
			task.UserID = "1"
		}
		var desc any
		if task.Description != "" {
			desc = task.Description
		}
		_, err := db.Exec(
			`INSERT INTO tasks (id, title, description, priority, status, user_id) VALUES (?, ?, ?, ?, ?, ?)`,
			task.ID, task.Title, desc, task.Priority, task.Status, task.UserID)
		if err != nil {
			t.Fatalf("seed task %q: %v", task.ID, err)
		}
	}
}
