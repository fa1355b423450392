package sqlite

import "context"

// migration7To8 adds assets.extra_request_headers next to headers. The
// table is rebuilt rather than altered so the column lands in that position.
type migration7To8 struct{}

func (migration7To8) Version() int { return 8 }
func (migration7To8) Name() string { return "expo-v8" }

func (migration7To8) Apply(ctx context.Context, tx *TxExecutor) error {
	statements := []string{
		`CREATE TABLE "new_assets" (
		  "id" INTEGER PRIMARY KEY AUTOINCREMENT,
		  "url" TEXT,
		  "key" TEXT UNIQUE,
		  "headers" TEXT,
		  "extra_request_headers" TEXT,
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
