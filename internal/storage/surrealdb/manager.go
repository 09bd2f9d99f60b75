// Package surrealdb stores price histories in a SurrealDB table, one record
// per symbol keyed by the symbol itself.
package surrealdb

import (
	"context"
	"fmt"

	"github.com/bobmcallan/pricehistory/internal/common"
	"github.com/surrealdb/surrealdb.go"
)

const historyTable = "price_history"

// Connect opens, authenticates and selects the namespace/database from config,
// then makes sure the history table exists.
func Connect(ctx context.Context, config common.StorageConfig) (*surrealdb.DB, error) {
	db, err := surrealdb.New(config.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Username,
		"pass": config.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, config.Namespace, config.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	if err := defineTables(ctx, db); err != nil {
		db.Close(ctx)
		return nil, err
	}
	return db, nil
}

// defineTables creates the tables queried by this package; SurrealDB v3
// errors when selecting from a table that was never defined.
func defineTables(ctx context.Context, db *surrealdb.DB) error {
	sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", historyTable)
	if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
		return fmt.Errorf("failed to define table %s: %w", historyTable, err)
	}
	return nil
}
