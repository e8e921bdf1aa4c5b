// Package testutil builds in-memory SQLite databases shaped like the
// Postgres schema, for repository, service and handler tests.
package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/chepyr/go-kanban/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

const Schema = `
CREATE TABLE customer (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);
CREATE TABLE boards (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  customer_id INTEGER NOT NULL REFERENCES customer(id),
  title TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);
CREATE TABLE sections (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  board_id INTEGER NOT NULL REFERENCES boards(id),
  title TEXT NOT NULL,
  position INTEGER NOT NULL CHECK (position >= 0),
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);
CREATE TABLE cards (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  section_id INTEGER NOT NULL REFERENCES sections(id),
  title TEXT NOT NULL,
  description TEXT,
  position INTEGER NOT NULL CHECK (position >= 0),
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);
CREATE INDEX idx_sections_board_position ON sections(board_id, position);
CREATE INDEX idx_cards_section_position ON cards(section_id, position);
`

// NewDB opens an empty in-memory database without the kanban schema. It is
// pinned to one connection because every :memory: connection is a separate
// database.
func NewDB(t testing.TB) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// NewSchemaDB opens an in-memory database with the kanban schema.
func NewSchemaDB(t testing.TB) *sql.DB {
	t.Helper()
	db := NewDB(t)
	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func InsertCustomer(t testing.TB, db *sql.DB, username, passwordHash string) *models.Customer {
	t.Helper()
	now := time.Now().UTC()
	c := &models.Customer{Username: username, PasswordHash: passwordHash, CreatedAt: now, UpdatedAt: now}
	err := db.QueryRow(`INSERT INTO customer (username, password_hash, created_at, updated_at)
	                    VALUES ($1, $2, $3, $4) RETURNING id`,
		c.Username, c.PasswordHash, c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
	if err != nil {
		t.Fatalf("insert customer: %v", err)
	}
	return c
}

func Count(t testing.TB, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
