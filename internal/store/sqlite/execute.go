package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// Conn is an open handle statements run on. *sql.Conn, *sql.Tx and *sql.DB
// all satisfy it; transaction control and connection pragmas assume a single
// underlying connection, so callers pass a *sql.Conn.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Execute runs one statement on conn and returns every row it produced.
//
// Arguments bind positionally and their count must equal the statement's
// placeholder count. The call is all or nothing: on any error no rows are
// returned and the statement has been released.
func Execute(ctx context.Context, conn Conn, query string, args ...Arg) ([]Row, error) {
	values, err := bindArgs(query, args)
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, query, values...)
	if err != nil {
		if isCompileError(err) && !compiles(ctx, conn, query, values) {
			return nil, fmt.Errorf("%w: %w", ErrPrepare, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrGetResults, err)
	}

	result, err := readRows(rows)
	// Close finalizes the statement; it must run even when reading failed.
	if cerr := rows.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("%w: %w", ErrGetResults, cerr)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// compiles reports whether query compiles. The driver prepares a statement
// and takes its first step inside QueryContext, and both phases report the
// generic SQLITE_ERROR, so the statement is compiled again under EXPLAIN,
// which lists the program without running it.
func compiles(ctx context.Context, conn Conn, query string, values []any) bool {
	rows, err := conn.QueryContext(ctx, "EXPLAIN "+query, values...)
	if err != nil {
		return false
	}
	return rows.Close() == nil
}

// bindArgs converts args to driver values, one per parameter index. Named
// parameters are passed as sql.Named since the driver looks them up by name;
// "$NNN" is matched by position.
func bindArgs(query string, args []Arg) ([]any, error) {
	slots := paramSlots(query)
	if len(slots) != len(args) {
		return nil, fmt.Errorf("%w: statement has %d placeholders, got %d arguments", ErrArgsBind, len(slots), len(args))
	}
	values := make([]any, len(args))
	for i, a := range args {
		v, err := a.driverValue()
		if err != nil {
			return nil, fmt.Errorf("%w: argument %d: %w", ErrArgsBind, i+1, err)
		}
		switch name := slots[i]; {
		case name == "":
			values[i] = v
		case startsWithLetter(name[1:]):
			values[i] = sql.Named(name[1:], v)
		case name[0] == '$' && name[1:] == strconv.Itoa(i+1):
			values[i] = v
		default:
			return nil, fmt.Errorf("%w: parameter %s cannot be bound by name", ErrArgsBind, name)
		}
	}
	return values, nil
}

func startsWithLetter(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsLetter(r)
}

func readRows(rows *sql.Rows) ([]Row, error) {
	var (
		result  []Row
		columns []string
		dest    []any
		ptrs    []any
	)
	for rows.Next() {
		if columns == nil {
			// column names are read once and shared by every row
			cols, err := rows.Columns()
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrGetResults, err)
			}
			columns = cols
			dest = make([]any, len(cols))
			ptrs = make([]any, len(cols))
			for i := range dest {
				ptrs[i] = &dest[i]
			}
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrGetResults, err)
		}
		values := make([]Value, len(dest))
		for i, src := range dest {
			v, err := valueOf(src)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", columns[i], err)
			}
			values[i] = v
		}
		result = append(result, Row{columns: columns, values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGetResults, err)
	}
	return result, nil
}
