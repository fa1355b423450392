package sqlite

import (
	"context"
	"time"
)

// migration5To6 renames updates.metadata to manifest and adds last_accessed.
// Existing updates count as accessed at migration time.
type migration5To6 struct {
	now func() time.Time
}

func (migration5To6) Version() int { return 6 }
func (migration5To6) Name() string { return "expo-v6" }

func (m migration5To6) Apply(ctx context.Context, tx *TxExecutor) error {
	if err := tx.Exec(ctx, `CREATE TABLE "new_updates" (
	  "id" BLOB UNIQUE,
	  "scope_key" TEXT NOT NULL,
	  "commit_time" INTEGER NOT NULL,
	  "runtime_version" TEXT NOT NULL,
	  "launch_asset_id" INTEGER,
	  "manifest" TEXT,
	  "status" INTEGER NOT NULL,
	  "keep" INTEGER NOT NULL,
	  "last_accessed" INTEGER NOT NULL,
	  PRIMARY KEY("id"),
	  FOREIGN KEY("launch_asset_id") REFERENCES "assets"("id") ON DELETE CASCADE
	)`); err != nil {
		return err
	}

	now := time.Now
	if m.now != nil {
		now = m.now
	}
	if err := tx.Exec(ctx, `INSERT INTO "new_updates" ("id", "scope_key", "commit_time", "runtime_version", "launch_asset_id", "manifest", "status", "keep", "last_accessed")
	  SELECT "id", "scope_key", "commit_time", "runtime_version", "launch_asset_id", "metadata", "status", "keep", ?1 FROM "updates"`,
		Time(now())); err != nil {
		return err
	}

	for _, stmt := range []string{
		`DROP TABLE "updates"`,
		`ALTER TABLE "new_updates" RENAME TO "updates"`,
		`CREATE UNIQUE INDEX "index_updates_scope_key_commit_time" ON "updates" ("scope_key", "commit_time")`,
		`CREATE INDEX "index_updates_launch_asset_id" ON "updates" ("launch_asset_id")`,
	} {
		if err := tx.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
