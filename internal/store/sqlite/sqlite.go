package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/maloquacious/updatestore/internal/logger"
	"github.com/maloquacious/updatestore/internal/store"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using modernc.org/sqlite.
// Every statement runs on one pinned connection, so per-connection pragmas
// and raw BEGIN/COMMIT behave as on a single native handle.
type SQLiteStore struct {
	dbPath     string
	db         *sql.DB
	conn       *sql.Conn
	migrations []Migration
	options    Options
}

// Options tune how the database is opened.
type Options struct {
	// WALMode enables write-ahead logging.
	WALMode bool

	// BusyTimeout is how long a statement waits on a locked database.
	BusyTimeout time.Duration

	// Logger receives migration and lifecycle events. Nil means logger.Default.
	Logger logger.Logger
}

var _ store.Store = (*SQLiteStore)(nil)

// New creates a new SQLiteStore. migrations is normally Migrations().
func New(dbPath string, migrations []Migration, opts Options) *SQLiteStore {
	if opts.Logger == nil {
		opts.Logger = logger.Default
	}
	return &SQLiteStore{
		dbPath:     dbPath,
		migrations: migrations,
		options:    opts,
	}
}

// Open opens the SQLite database with safe defaults.
func (s *SQLiteStore) Open(ctx context.Context) error {
	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	journal := "DELETE"
	if s.options.WALMode {
		journal = "WAL"
	}
	pragmas := []string{
		fmt.Sprintf("PRAGMA journal_mode=%s", journal),
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		fmt.Sprintf("PRAGMA busy_timeout=%d", s.options.BusyTimeout.Milliseconds()),
	}

	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			conn.Close()
			db.Close()
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	s.db = db
	s.conn = conn
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	var err error
	if s.conn != nil {
		err = s.conn.Close()
	}
	if cerr := s.db.Close(); cerr != nil && err == nil {
		err = cerr
	}
	s.db, s.conn = nil, nil
	return err
}

// Path returns the filesystem path to the database file.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Conn returns the pinned handle for callers that compose their own
// transactions with WithTransaction.
func (s *SQLiteStore) Conn() Conn {
	return s.conn
}

// Execute runs one statement on the store's handle. See Execute.
func (s *SQLiteStore) Execute(ctx context.Context, query string, args ...Arg) ([]Row, error) {
	if s.conn == nil {
		return nil, fmt.Errorf("database not opened")
	}
	return Execute(ctx, s.conn, query, args...)
}

// InitSchema creates the latest schema on an empty database.
func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	if s.conn == nil {
		return fmt.Errorf("database not opened")
	}
	return createLatestSchema(ctx, s.conn)
}

// Migrate applies every pending migration.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if s.conn == nil {
		return fmt.Errorf("database not opened")
	}
	return Migrate(ctx, s.conn, s.migrations, s.options.Logger)
}

// CheckState returns the current state of the datastore.
func (s *SQLiteStore) CheckState(ctx context.Context) (store.StoreState, error) {
	if s.conn == nil {
		return store.StateMissing, fmt.Errorf("database not opened")
	}

	version, err := s.GetSchemaVersion(ctx)
	if err != nil {
		return store.StateUninitialized, err
	}

	if version == 0 {
		rows, err := Execute(ctx, s.conn, `SELECT COUNT(*) AS "tables" FROM sqlite_master WHERE type = 'table'`)
		if err != nil {
			return store.StateUninitialized, fmt.Errorf("failed to count tables: %w", err)
		}
		if rows[0].Values()[0].Int() == 0 {
			return store.StateUninitialized, nil
		}
		// tables without a version cannot be placed on the migration path
		return store.StateUnsupported, nil
	}

	return classifyVersion(version, LatestVersion(s.migrations)), nil
}

// GetSchemaVersion returns the current schema version from the database.
func (s *SQLiteStore) GetSchemaVersion(ctx context.Context) (int, error) {
	if s.conn == nil {
		return 0, fmt.Errorf("database not opened")
	}
	return ReadSchemaVersion(ctx, s.conn)
}

// setSchemaVersion stamps version outside any migration, used when adopting
// a legacy file whose version lived in its name.
func (s *SQLiteStore) setSchemaVersion(ctx context.Context, version int) error {
	if _, err := s.conn.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return nil
}

func classifyVersion(version, latest int) store.StoreState {
	if latest < schemaVersion {
		latest = schemaVersion
	}
	switch {
	case version < oldestMigratableVersion:
		return store.StateUnsupported
	case version < latest:
		return store.StateOutdated
	case version > latest:
		return store.StateNewer
	}
	return store.StateReady
}
