package sqlite

import "context"

// migration4To5 drops NOT NULL from assets.key so assets can be tracked
// without a key. SQLite cannot alter a column constraint, so the table is
// rebuilt and renamed into place.
type migration4To5 struct{}

func (migration4To5) Version() int { return 5 }
func (migration4To5) Name() string { return "expo-v5" }

func (migration4To5) Apply(ctx context.Context, tx *TxExecutor) error {
	statements := []string{
		`CREATE TABLE "new_assets" (
		  "id" INTEGER PRIMARY KEY AUTOINCREMENT,
		  "url" TEXT,
		  "key" TEXT UNIQUE,
		  "headers" TEXT,
		  "type" TEXT NOT NULL,
		  "metadata" TEXT,
		  "download_time" INTEGER NOT NULL,
		  "relative_path" TEXT NOT NULL,
		  "hash" BLOB NOT NULL,
		  "hash_type" INTEGER NOT NULL,
		  "marked_for_deletion" INTEGER NOT NULL
		)`,
		`INSERT INTO "new_assets" ("id", "url", "key", "headers", "type", "metadata", "download_time", "relative_path", "hash", "hash_type", "marked_for_deletion")
		  SELECT "id", "url", "key", "headers", "type", "metadata", "download_time", "relative_path", "hash", "hash_type", "marked_for_deletion" FROM "assets"`,
		`DROP TABLE "assets"`,
		`ALTER TABLE "new_assets" RENAME TO "assets"`,
	}
	for _, stmt := range statements {
		if err := tx.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
