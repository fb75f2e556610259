package database

import (
	"context"
	"fmt"
	"strings"
)

// migration defines a single idempotent schema migration.
type migration struct {
	name  string
	sql   string
	check string // query that returns true if the migration is already applied
}

// migrations is the ordered list of schema migrations to apply.
// Each must be idempotent (use IF NOT EXISTS, IF EXISTS, etc.).
var migrations = []migration{
	{
		name:  "add user_answers.recording_key",
		sql:   `ALTER TABLE user_answers ADD COLUMN IF NOT EXISTS recording_key text`,
		check: `SELECT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_name = 'user_answers' AND column_name = 'recording_key')`,
	},
	{
		name:  "add user_answers user index",
		sql:   `CREATE INDEX IF NOT EXISTS idx_user_answers_user_created ON user_answers (user_id, created_at DESC)`,
		check: `SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_user_answers_user_created')`,
	},
}

// Migrate runs all pending schema migrations.
// Each migration is checked first and only applied when missing. A failed
// apply (e.g. insufficient privileges) is returned as a *MigrationError; the
// caller should treat it as fatal since queries depend on these columns.
func (db *DB) Migrate(ctx context.Context) error {
	pending := db.pendingMigrations(ctx, migrations)
	if len(pending) == 0 {
		return nil
	}

	applied := 0
	for _, m := range pending {
		if _, err := db.Pool.Exec(ctx, m.sql); err != nil {
			return &MigrationError{
				failed:  m,
				pending: pending[applied:],
				err:     err,
			}
		}
		db.log.Info().Str("migration", m.name).Msg("schema migration applied")
		applied++
	}
	db.log.Info().Int("applied", applied).Msg("schema migrations complete")
	return nil
}

func (db *DB) pendingMigrations(ctx context.Context, all []migration) []migration {
	var pending []migration
	for _, m := range all {
		if m.check != "" {
			var exists bool
			if err := db.Pool.QueryRow(ctx, m.check).Scan(&exists); err == nil && exists {
				continue
			}
		}
		pending = append(pending, m)
	}
	return pending
}

// MigrationError is returned when a migration fails.
// It includes the SQL needed to apply all remaining migrations manually.
type MigrationError struct {
	failed  migration
	pending []migration
	err     error
}

func (e *MigrationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "migration %q failed: %v\n\n", e.failed.name, e.err)
	b.WriteString("Run the following SQL as a database superuser to fix this:\n\n")
	for _, m := range e.pending {
		fmt.Fprintf(&b, "  %s;\n", m.sql)
	}
	b.WriteString("\nThen restart mockprep.")
	return b.String()
}

func (e *MigrationError) Unwrap() error {
	return e.err
}
