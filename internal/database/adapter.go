package database

import (
	"context"
)

// Counter counts the rows of a table.
type Counter interface {
	Count(ctx context.Context, table string) (int64, error)
}

// Target is the database a migration imports into.
type Target interface {
	Counter

	Connect(ctx context.Context, url string) error
	Close() error
	Version(ctx context.Context) (string, error)
	GetAllTableNames(ctx context.Context) ([]string, error)

	// ResetSchema drops every table so the schema can be rebuilt from the
	// Django migrations.
	ResetSchema(ctx context.Context) error
	// FixSequences realigns auto-increment counters after an import that
	// kept the source primary keys.
	FixSequences(ctx context.Context) ([]string, error)
}
