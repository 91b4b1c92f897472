package models

import "time"

// User represents a moderator with their activity information.
type User struct {
	UserID       int64     `bson:"user_id" json:"userId"`
	Username     string    `bson:"username,omitempty" json:"username,omitempty"`
	FirstName    string    `bson:"first_name,omitempty" json:"firstName,omitempty"`
	LastName     string    `bson:"last_name,omitempty" json:"lastName,omitempty"`
	IsAdmin      bool      `bson:"is_admin" json:"isAdmin"`
	FirstSeen    time.Time `bson:"first_seen" json:"firstSeen"`
	LastSeen     time.Time `bson:"last_seen" json:"lastSeen"`
	ActionsCount int       `bson:"actions_count" json:"actionsCount"`
	LastAction   string    `bson:"last_action" json:"lastAction"`
}
