package database

import (
	"context"
	"fmt"
	"time"

	"reviewdesk/internal/database/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	actionsCollection = "user_actions"
	usersCollection   = "users"
)

// MongoStore implements Store using MongoDB.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore wraps a connected database. client may be nil, in which
// case Close does nothing.
func NewMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{client: client, db: db}
}

// LogUserAction writes a user action log entry to the database.
// It records the user ID, action type, additional details, and timestamp.
func (m *MongoStore) LogUserAction(userID int64, action string, details interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err := m.db.Collection(actionsCollection).InsertOne(ctx, map[string]interface{}{
		"user_id": userID,
		"action":  action,
		"details": details,
		"time":    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to insert user action log for user %d: %w", userID, err)
	}
	return nil
}

// UpdateUser upserts the moderator record and bumps its action counter.
func (m *MongoStore) UpdateUser(ctx context.Context, userID int64, username, firstName, lastName string, isAdmin bool, action string) error {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"username":    username,
			"first_name":  firstName,
			"last_name":   lastName,
			"is_admin":    isAdmin,
			"last_seen":   now,
			"last_action": action,
		},
		"$inc": bson.M{"actions_count": 1},
		"$setOnInsert": bson.M{
			"first_seen": now,
			"user_id":    userID,
		},
	}

	_, err := m.db.Collection(usersCollection).UpdateOne(ctx, bson.M{"user_id": userID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", userID, err)
	}
	return nil
}

// RecentActions returns up to limit entries, newest first.
func (m *MongoStore) RecentActions(ctx context.Context, limit int) ([]models.UserAction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "time", Value: -1}}).SetLimit(int64(limit))
	cursor, err := m.db.Collection(actionsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query user actions: %w", err)
	}
	defer cursor.Close(ctx)

	actions := []models.UserAction{}
	if err := cursor.All(ctx, &actions); err != nil {
		return nil, fmt.Errorf("failed to decode user actions: %w", err)
	}
	return actions, nil
}

func (m *MongoStore) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}
