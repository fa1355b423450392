package sqlite

import (
	"context"
	"fmt"
	"sort"

	"github.com/maloquacious/updatestore/internal/logger"
)

// Migration is one versioned schema transformation. Apply moves the schema
// from Version()-1 to Version() and must issue every statement through tx.
type Migration interface {
	Version() int
	Name() string
	Apply(ctx context.Context, tx *TxExecutor) error
}

// ReadSchemaVersion returns the version stored in the database header.
func ReadSchemaVersion(ctx context.Context, conn Conn) (int, error) {
	rows, err := Execute(ctx, conn, "PRAGMA user_version")
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if len(rows) != 1 || rows[0].Len() != 1 {
		return 0, fmt.Errorf("failed to read schema version: unexpected result shape")
	}
	return int(rows[0].Values()[0].Int()), nil
}

// setSchemaVersion writes the header version. Pragmas do not take bound
// parameters, so the integer is formatted into the statement.
func setSchemaVersion(ctx context.Context, tx *TxExecutor, version int) error {
	return tx.Exec(ctx, fmt.Sprintf("PRAGMA user_version = %d", version))
}

// LatestVersion returns the highest version in steps, or 0 for none.
func LatestVersion(steps []Migration) int {
	latest := 0
	for _, s := range steps {
		if s.Version() > latest {
			latest = s.Version()
		}
	}
	return latest
}

// Migrate brings the schema on conn up to the newest version in steps.
//
// Each step newer than the stored version runs in ascending order with
// foreign keys off and inside its own transaction; the version bump commits
// with the step. The first failure stops the run and leaves earlier steps
// committed. With nothing pending Migrate changes nothing.
func Migrate(ctx context.Context, conn Conn, steps []Migration, log logger.Logger) error {
	ordered, err := sortSteps(steps)
	if err != nil {
		return err
	}

	current, err := ReadSchemaVersion(ctx, conn)
	if err != nil {
		return err
	}

	for _, step := range ordered {
		if step.Version() <= current {
			continue
		}
		if err := applyStep(ctx, conn, step, log); err != nil {
			log.Warn("migration failed",
				"version", step.Version(),
				"name", step.Name(),
				"from", current,
				"error", ErrorMessage(err))
			return fmt.Errorf("migration %s (v%d): %w", step.Name(), step.Version(), err)
		}
		log.Info("applied migration", "version", step.Version(), "name", step.Name(), "from", current)
		current = step.Version()
	}
	return nil
}

func applyStep(ctx context.Context, conn Conn, step Migration, log logger.Logger) error {
	_, err := WithForeignKeysOff(ctx, conn, func() (struct{}, error) {
		return WithTransaction(ctx, conn, func(tx *TxExecutor) (struct{}, error) {
			before, err := foreignKeyViolations(ctx, tx)
			if err != nil {
				return struct{}{}, err
			}
			if err := step.Apply(ctx, tx); err != nil {
				return struct{}{}, err
			}
			if err := checkForeignKeys(ctx, tx, step, before, log); err != nil {
				return struct{}{}, err
			}
			return struct{}{}, setSchemaVersion(ctx, tx, step.Version())
		})
	})
	return err
}

// foreignKeyViolations counts dangling references per table.
func foreignKeyViolations(ctx context.Context, tx *TxExecutor) (map[string]int, error) {
	rows, err := tx.Query(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, r := range rows {
		table, _ := r.Get("table")
		counts[table.Text()]++
	}
	return counts, nil
}

// checkForeignKeys fails the step if it left more dangling references in a
// table than there were before it ran. Older violations are only logged.
func checkForeignKeys(ctx context.Context, tx *TxExecutor, step Migration, before map[string]int, log logger.Logger) error {
	after, err := foreignKeyViolations(ctx, tx)
	if err != nil {
		return err
	}
	tables := make([]string, 0, len(after))
	for table := range after {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		if after[table] > before[table] {
			return tx.Fail(ctx, fmt.Errorf("%d new foreign key violations in table %q", after[table]-before[table], table))
		}
	}
	for _, table := range tables {
		log.Warn("existing foreign key violations kept",
			"version", step.Version(),
			"name", step.Name(),
			"table", table,
			"count", after[table])
	}
	return nil
}

// sortSteps returns a copy of steps in ascending version order.
func sortSteps(steps []Migration) ([]Migration, error) {
	ordered := make([]Migration, len(steps))
	copy(ordered, steps)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Version() < ordered[j].Version()
	})
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Version() == ordered[i-1].Version() {
			return nil, fmt.Errorf("duplicate migration version %d (%s, %s)",
				ordered[i].Version(), ordered[i-1].Name(), ordered[i].Name())
		}
	}
	return ordered, nil
}
