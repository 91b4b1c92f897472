package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"reviewdesk/internal/database/models"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS user_actions (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	action  TEXT NOT NULL,
	details TEXT,
	time    DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_user_actions_time ON user_actions(time);
CREATE TABLE IF NOT EXISTS users (
	user_id       INTEGER PRIMARY KEY,
	username      TEXT,
	first_name    TEXT,
	last_name     TEXT,
	is_admin      BOOLEAN NOT NULL DEFAULT 0,
	first_seen    DATETIME NOT NULL,
	last_seen     DATETIME NOT NULL,
	actions_count INTEGER NOT NULL DEFAULT 0,
	last_action   TEXT
);`

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize SQLite schema: %w", err)
	}
	log.Printf("SQLite action log ready at %s", path)
	return &SQLiteStore{db: db}, nil
}

// LogUserAction writes a user action log entry. details is stored as JSON.
func (s *SQLiteStore) LogUserAction(userID int64, action string, details interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	var encoded []byte
	if details != nil {
		var err error
		if encoded, err = json.Marshal(details); err != nil {
			return fmt.Errorf("failed to encode details of user action %s: %w", action, err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_actions (user_id, action, details, time) VALUES (?, ?, ?, ?)`,
		userID, action, nullableText(encoded), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert user action log for user %d: %w", userID, err)
	}
	return nil
}

// UpdateUser upserts the moderator record and bumps its action counter.
func (s *SQLiteStore) UpdateUser(ctx context.Context, userID int64, username, firstName, lastName string, isAdmin bool, action string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (user_id, username, first_name, last_name, is_admin, first_seen, last_seen, actions_count, last_action)
VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)
ON CONFLICT(user_id) DO UPDATE SET
	username = excluded.username,
	first_name = excluded.first_name,
	last_name = excluded.last_name,
	is_admin = excluded.is_admin,
	last_seen = excluded.last_seen,
	actions_count = users.actions_count + 1,
	last_action = excluded.last_action`,
		userID, username, firstName, lastName, isAdmin, now, now, action)
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", userID, err)
	}
	return nil
}

// GetUser returns the moderator record, or sql.ErrNoRows.
func (s *SQLiteStore) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var u models.User
	var username, firstName, lastName, lastAction sql.NullString
	err := s.db.QueryRowContext(ctx, `
SELECT user_id, username, first_name, last_name, is_admin, first_seen, last_seen, actions_count, last_action
FROM users WHERE user_id = ?`, userID).Scan(
		&u.UserID, &username, &firstName, &lastName, &u.IsAdmin, &u.FirstSeen, &u.LastSeen, &u.ActionsCount, &lastAction)
	if err != nil {
		return nil, err
	}
	u.Username, u.FirstName, u.LastName, u.LastAction = username.String, firstName.String, lastName.String, lastAction.String
	return &u, nil
}

// RecentActions returns up to limit entries, newest first.
func (s *SQLiteStore) RecentActions(ctx context.Context, limit int) ([]models.UserAction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, action, details, time FROM user_actions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query user actions: %w", err)
	}
	defer rows.Close()

	actions := []models.UserAction{}
	for rows.Next() {
		var a models.UserAction
		var details sql.NullString
		if err := rows.Scan(&a.UserID, &a.Action, &details, &a.Time); err != nil {
			return nil, fmt.Errorf("failed to scan user action: %w", err)
		}
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &a.Details); err != nil {
				log.Printf("[SQLiteStore] Skipping undecodable details of action %s: %v", a.Action, err)
			}
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func (s *SQLiteStore) Close(context.Context) error {
	return s.db.Close()
}

func nullableText(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}
