package database

import (
	"context"
	"time"

	"reviewdesk/internal/database/models"
)

// UserActionLogger defines the interface for logging moderator actions.
type UserActionLogger interface {
	// LogUserAction logs an action performed by a user.
	LogUserAction(userID int64, action string, details interface{}) error
}

// UserRepository defines the interface for moderator records.
type UserRepository interface {
	// UpdateUser updates or creates a user record in the database.
	UpdateUser(ctx context.Context, userID int64, username, firstName, lastName string, isAdmin bool, action string) error
}

// ActionReader lists logged actions, newest first.
type ActionReader interface {
	RecentActions(ctx context.Context, limit int) ([]models.UserAction, error)
}

// Store is an action log backend.
type Store interface {
	UserActionLogger
	UserRepository
	ActionReader
	Close(ctx context.Context) error
}

// writeTimeout bounds a single action log write.
const writeTimeout = 5 * time.Second
