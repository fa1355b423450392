package sqlite

import "context"

// migration6To7 adds launch counters to updates.
type migration6To7 struct{}

func (migration6To7) Version() int { return 7 }
func (migration6To7) Name() string { return "expo-v7" }

func (migration6To7) Apply(ctx context.Context, tx *TxExecutor) error {
	if err := tx.Exec(ctx, `ALTER TABLE "updates" ADD COLUMN "successful_launch_count" INTEGER NOT NULL DEFAULT 0`); err != nil {
		return err
	}
	return tx.Exec(ctx, `ALTER TABLE "updates" ADD COLUMN "failed_launch_count" INTEGER NOT NULL DEFAULT 0`)
}
