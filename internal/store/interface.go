package store

import "context"

// StoreState represents the initialization state of the datastore.
type StoreState int

const (
	StateMissing       StoreState = iota // File doesn't exist
	StateUninitialized                   // File exists but no schema
	StateOutdated                        // Schema older than latest, migratable
	StateUnsupported                     // Schema too old to migrate
	StateNewer                           // Schema newer than this build knows
	StateReady                           // Initialized and at the latest version
)

func (s StoreState) String() string {
	switch s {
	case StateMissing:
		return "missing"
	case StateUninitialized:
		return "uninitialized"
	case StateOutdated:
		return "outdated"
	case StateUnsupported:
		return "unsupported"
	case StateNewer:
		return "newer"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

// Store defines the update datastore lifecycle contract.
// A Store owns a single connection and is not safe for concurrent use;
// callers serialize access.
type Store interface {
	// Open opens the datastore connection
	Open(ctx context.Context) error

	// Close closes the datastore connection
	Close() error

	// InitSchema creates the latest schema on an empty database
	InitSchema(ctx context.Context) error

	// Migrate applies every migration newer than the stored schema version
	Migrate(ctx context.Context) error

	// CheckState returns the current state of the datastore
	CheckState(ctx context.Context) (StoreState, error)

	// GetSchemaVersion returns the schema version stored in the database
	GetSchemaVersion(ctx context.Context) (int, error)
}
