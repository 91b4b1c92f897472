package database

import (
	"context"
	"fmt"

	"reviewdesk/internal/config"
)

// Open returns the action log backend selected by cfg.ActionLogDriver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.ActionLogDriver {
	case config.ActionLogMongo:
		client, db, err := ConnectDB(ctx, cfg.MongoDBURI, cfg.MongoDBDatabase)
		if err != nil {
			return nil, err
		}
		return NewMongoStore(client, db), nil
	case config.ActionLogSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)
	case config.ActionLogNone, "":
		return NopStore{}, nil
	}
	return nil, fmt.Errorf("unknown action log driver %q", cfg.ActionLogDriver)
}
