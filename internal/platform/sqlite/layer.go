package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// schema of a single-layer database. fid is the feature's input index.
const schema = `
CREATE TABLE IF NOT EXISTS features (
	fid           INTEGER PRIMARY KEY,
	feature_id    TEXT,
	geometry_type TEXT NOT NULL,
	geometry      BLOB NOT NULL,
	properties    TEXT NOT NULL DEFAULT '{}'
);
`

// Scratch layers are written once and discarded with the task, so
// durability is traded for speed.
var pragmas = []string{
	"PRAGMA journal_mode=MEMORY",
	"PRAGMA synchronous=OFF",
	"PRAGMA temp_store=MEMORY",
}

// OpenLayer creates (or opens) the layer database at path and ensures the
// schema exists. The caller owns the returned handle and must Close it.
func OpenLayer(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open layer database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize layer schema: %w", err)
	}

	return db, nil
}
