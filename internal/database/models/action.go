package models

import "time"

// UserAction is one entry of the moderation action log.
type UserAction struct {
	UserID  int64                  `bson:"user_id" json:"userId"`
	Action  string                 `bson:"action" json:"action"`
	Details map[string]interface{} `bson:"details,omitempty" json:"details,omitempty"`
	Time    time.Time              `bson:"time" json:"time"`
}
