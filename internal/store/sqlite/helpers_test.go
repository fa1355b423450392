package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maloquacious/updatestore/internal/logger"
)

// openTestStore opens an empty database in a temp dir with no schema.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	return openStoreAt(t, filepath.Join(t.TempDir(), "test.db"), Migrations())
}

func openStoreAt(t *testing.T, path string, migrations []Migration) *SQLiteStore {
	t.Helper()
	s := New(path, migrations, Options{WALMode: true, Logger: logger.Discard})
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

// loadFixture creates a historical schema and stamps its version.
func loadFixture(t *testing.T, conn Conn, schema string, version int) {
	t.Helper()
	ctx := context.Background()
	_, err := conn.ExecContext(ctx, schema)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version))
	require.NoError(t, err)
}

func schemaVersionOf(t *testing.T, conn Conn) int {
	t.Helper()
	v, err := ReadSchemaVersion(context.Background(), conn)
	require.NoError(t, err)
	return v
}

func foreignKeysOn(t *testing.T, conn Conn) bool {
	t.Helper()
	rows, err := Execute(context.Background(), conn, "PRAGMA foreign_keys")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	return rows[0].Values()[0].Int() == 1
}

func tableExists(t *testing.T, conn Conn, name string) bool {
	t.Helper()
	rows, err := Execute(context.Background(), conn,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", Text(name))
	require.NoError(t, err)
	return len(rows) == 1
}

func countRows(t *testing.T, conn Conn, table string) int64 {
	t.Helper()
	rows, err := Execute(context.Background(), conn, fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, table))
	require.NoError(t, err)
	return rows[0].Values()[0].Int()
}

// describeSchema renders every user table's columns, foreign keys and
// indexes so two databases can be compared structurally. Automatic index
// names are replaced by their origin since they depend on table history.
func describeSchema(t *testing.T, conn Conn) string {
	t.Helper()
	ctx := context.Background()

	tables, err := Execute(ctx, conn,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	require.NoError(t, err)

	var b strings.Builder
	for _, tr := range tables {
		table := tr.Values()[0].Text()
		fmt.Fprintf(&b, "table %s\n", table)

		cols, err := Execute(ctx, conn, "SELECT * FROM pragma_table_info(?)", Text(table))
		require.NoError(t, err)
		for _, c := range cols {
			fmt.Fprintf(&b, "  column %s\n", joinValues(c))
		}

		fks, err := Execute(ctx, conn, "SELECT * FROM pragma_foreign_key_list(?)", Text(table))
		require.NoError(t, err)
		for _, fk := range fks {
			fmt.Fprintf(&b, "  fk %s\n", joinValues(fk))
		}

		idx, err := Execute(ctx, conn, "SELECT name, \"unique\", origin, partial FROM pragma_index_list(?)", Text(table))
		require.NoError(t, err)
		var indexes []string
		for _, ix := range idx {
			name := ix.Values()[0].Text()
			info, err := Execute(ctx, conn, "SELECT name FROM pragma_index_info(?) ORDER BY seqno", Text(name))
			require.NoError(t, err)
			var cols []string
			for _, c := range info {
				cols = append(cols, c.Values()[0].String())
			}
			origin := ix.Values()[2].Text()
			if origin != "c" {
				name = "auto"
			}
			indexes = append(indexes, fmt.Sprintf("  index %s unique=%d origin=%s partial=%d (%s)",
				name, ix.Values()[1].Int(), origin, ix.Values()[3].Int(), strings.Join(cols, ",")))
		}
		sort.Strings(indexes)
		for _, ix := range indexes {
			b.WriteString(ix + "\n")
		}
	}
	return b.String()
}

func joinValues(r Row) string {
	parts := make([]string, r.Len())
	for i, v := range r.Values() {
		parts[i] = r.Columns()[i] + "=" + v.String()
	}
	return strings.Join(parts, " ")
}

// stepFunc is a Migration built from a function.
type stepFunc struct {
	version int
	name    string
	apply   func(ctx context.Context, tx *TxExecutor) error
}

func (s stepFunc) Version() int { return s.version }
func (s stepFunc) Name() string { return s.name }
func (s stepFunc) Apply(ctx context.Context, tx *TxExecutor) error {
	return s.apply(ctx, tx)
}

// execStep returns a step that runs each statement in order.
func execStep(version int, statements ...string) stepFunc {
	return stepFunc{
		version: version,
		name:    fmt.Sprintf("step-%d", version),
		apply: func(ctx context.Context, tx *TxExecutor) error {
			for _, stmt := range statements {
				if err := tx.Exec(ctx, stmt); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// fakeConn records statements and fails those listed in failOn.
type fakeConn struct {
	mu         sync.Mutex
	statements []string
	failOn     map[string]error
}

func newFakeConn(failOn map[string]error) *fakeConn {
	if failOn == nil {
		failOn = map[string]error{}
	}
	return &fakeConn{failOn: failOn}
}

func (c *fakeConn) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statements = append(c.statements, query)
	if err, ok := c.failOn[query]; ok {
		return nil, err
	}
	return nil, nil
}

func (c *fakeConn) QueryContext(_ context.Context, query string, _ ...any) (*sql.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statements = append(c.statements, query)
	return nil, errors.New("fakeConn does not return rows")
}

func (c *fakeConn) executed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.statements...)
}

// recordingLogger keeps messages for assertions.
type recordingLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *recordingLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, level+" "+msg)
}

func (l *recordingLogger) Info(msg string, _ ...any) { l.record("INFO", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any) { l.record("WARN", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.record("ERROR", msg) }
func (l *recordingLogger) Debug(msg string, _ ...any) { l.record("DEBUG", msg) }
