package storage

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/md-rashed-zaman/fitbook/libs/db"
)

//go:embed schema.sql
var schemaSQL string

// Migrate applies the idempotent schema. Without arguments pgx sends it over the simple
// protocol, so the multi-statement script runs in one round trip.
func Migrate(ctx context.Context, pool *db.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
