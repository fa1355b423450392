package sqlite

import (
	"errors"
	"fmt"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Query errors.
var (
	// ErrPrepare means the statement did not compile (syntax error, unknown table or column).
	ErrPrepare = errors.New("sqlite: prepare failed")

	// ErrArgsBind means the argument list did not match the statement's
	// placeholders or an argument could not be converted.
	ErrArgsBind = errors.New("sqlite: argument binding failed")

	// ErrGetResults means the engine reported an error while stepping through rows.
	ErrGetResults = errors.New("sqlite: reading results failed")

	// ErrBlobNotUUID means a blob column did not hold exactly 16 bytes.
	ErrBlobNotUUID = errors.New("sqlite: blob is not a 16-byte uuid")
)

// Migration errors.
var (
	// ErrForeignKeys means foreign key enforcement could not be switched off.
	ErrForeignKeys = errors.New("sqlite: toggling foreign keys failed")

	// ErrTransaction means BEGIN or COMMIT failed.
	ErrTransaction = errors.New("sqlite: transaction control failed")

	// ErrMigrationSQL means a statement inside a migration transaction failed.
	// The transaction has been rolled back.
	ErrMigrationSQL = errors.New("sqlite: migration statement failed")
)

// ErrorCodes extracts the primary and extended result codes and the engine
// message from err. ok is false if err did not come from the engine.
func ErrorCodes(err error) (code, extended int, msg string, ok bool) {
	var se *moderncsqlite.Error
	if !errors.As(err, &se) {
		return 0, 0, "", false
	}
	extended = se.Code()
	return extended & 0xff, extended, se.Error(), true
}

// ErrorMessage formats the engine's result codes and message for logging.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	code, extended, msg, ok := ErrorCodes(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}
	return fmt.Sprintf("Error code %d: %s (extended error code %d)", code, msg, extended)
}

// isCompileError reports whether err is the generic SQLITE_ERROR. The engine
// returns it for statements that fail to compile but also for errors raised
// by SQL functions while stepping, so callers confirm with compiles.
func isCompileError(err error) bool {
	code, _, _, ok := ErrorCodes(err)
	return ok && code == sqlite3.SQLITE_ERROR
}
