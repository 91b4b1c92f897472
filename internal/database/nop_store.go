package database

import (
	"context"

	"reviewdesk/internal/database/models"
)

// NopStore discards every action. It backs ACTION_LOG_DRIVER=none.
type NopStore struct{}

func (NopStore) LogUserAction(int64, string, interface{}) error { return nil }

func (NopStore) UpdateUser(context.Context, int64, string, string, string, bool, string) error {
	return nil
}

func (NopStore) RecentActions(context.Context, int) ([]models.UserAction, error) {
	return []models.UserAction{}, nil
}

func (NopStore) Close(context.Context) error { return nil }
