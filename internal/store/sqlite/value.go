package sqlite

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ArgKind tags the variant held by an Arg.
type ArgKind int

const (
	ArgNull ArgKind = iota
	ArgUUID
	ArgInt
	ArgFloat
	ArgTime
	ArgObject
	ArgText
)

// Arg is a single positional statement argument.
// The zero value is SQL NULL.
type Arg struct {
	kind ArgKind
	u    uuid.UUID
	i    int64
	f    float64
	t    time.Time
	obj  any
	s    string
}

func Null() Arg { return Arg{kind: ArgNull} }
func UUID(u uuid.UUID) Arg { return Arg{kind: ArgUUID, u: u} }
func Int(i int64) Arg { return Arg{kind: ArgInt, i: i} }
func Float(f float64) Arg { return Arg{kind: ArgFloat, f: f} }
func Time(t time.Time) Arg { return Arg{kind: ArgTime, t: t} }
func Text(s string) Arg { return Arg{kind: ArgText, s: s} }

// Object binds v as its JSON encoding. A value that cannot be encoded fails
// at bind time with ErrArgsBind.
func Object(v any) Arg { return Arg{kind: ArgObject, obj: v} }

// Bool binds b as the integer 1 or 0.
func Bool(b bool) Arg {
	if b {
		return Int(1)
	}
	return Int(0)
}

func (a Arg) Kind() ArgKind { return a.kind }

// driverValue converts the argument to the value handed to the driver:
// uuid as a 16-byte blob, time as integer milliseconds since the epoch,
// objects as UTF-8 JSON text.
func (a Arg) driverValue() (any, error) {
	switch a.kind {
	case ArgNull:
		return nil, nil
	case ArgUUID:
		b := make([]byte, 16)
		copy(b, a.u[:])
		return b, nil
	case ArgInt:
		return a.i, nil
	case ArgFloat:
		return a.f, nil
	case ArgTime:
		return a.t.UnixMilli(), nil
	case ArgObject:
		data, err := json.Marshal(a.obj)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	case ArgText:
		return a.s, nil
	}
	return nil, fmt.Errorf("unknown argument kind %d", a.kind)
}

// Kind tags the storage class of a result column.
type Kind int

const (
	KindNull Kind = iota
	KindInteger
	KindFloat
	KindUUID
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindUUID:
		return "uuid"
	case KindText:
		return "text"
	}
	return "unknown"
}

// Value is a single typed result column.
type Value struct {
	kind Kind
	i    int64
	f    float64
	u    uuid.UUID
	s    string
}

func NullValue() Value { return Value{kind: KindNull} }
func IntegerValue(i int64) Value { return Value{kind: KindInteger, i: i} }
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }
func UUIDValue(u uuid.UUID) Value { return Value{kind: KindUUID, u: u} }
func TextValue(s string) Value { return Value{kind: KindText, s: s} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) Int() int64 { return v.i }
func (v Value) Float() float64 { return v.f }
func (v Value) UUID() uuid.UUID { return v.u }
func (v Value) Text() string { return v.s }

// Time interprets an integer column as milliseconds since the epoch.
func (v Value) Time() (time.Time, bool) {
	if v.kind != KindInteger {
		return time.Time{}, false
	}
	return DateFromMillis(v.i), true
}

func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindUUID:
		return v.u.String()
	case KindText:
		return v.s
	}
	return "NULL"
}

// MarshalJSON renders integers and floats as numbers, uuids and text as
// strings, and NULL as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInteger:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindUUID:
		return json.Marshal(v.u.String())
	case KindText:
		return json.Marshal(v.s)
	}
	return []byte("null"), nil
}

// valueOf maps a scanned driver value onto the column variants. The driver
// reports storage classes as int64, float64, []byte, string or nil.
func valueOf(src any) (Value, error) {
	switch v := src.(type) {
	case nil:
		return NullValue(), nil
	case int64:
		return IntegerValue(v), nil
	case float64:
		return FloatValue(v), nil
	case []byte:
		if len(v) != 16 {
			return Value{}, fmt.Errorf("%w: got %d bytes", ErrBlobNotUUID, len(v))
		}
		u, err := uuid.FromBytes(v)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %w", ErrBlobNotUUID, err)
		}
		return UUIDValue(u), nil
	case string:
		return TextValue(v), nil
	case time.Time:
		return TextValue(timeText(v)), nil
	}
	return Value{}, fmt.Errorf("%w: unsupported column value %T", ErrGetResults, src)
}

// timeText renders a time the driver parsed out of text stored in a DATE,
// DATETIME or TIMESTAMP column, using the engine's own date() and
// datetime() layouts. Text written by those functions reads back unchanged;
// other spellings of the same instant (a "T" separator, a trailing "Z",
// trailing zero fractions, midnight written with a clock) come back in the
// canonical form.
func timeText(t time.Time) string {
	if t.Location() != time.UTC {
		return t.Format("2006-01-02 15:04:05.999999999-07:00")
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format("2006-01-02 15:04:05.999999999")
}

// DateFromMillis converts a stored integer timestamp to a time.
func DateFromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// Row is one result row. Columns keep the statement's declaration order.
type Row struct {
	columns []string
	values  []Value
}

func (r Row) Columns() []string { return r.columns }
func (r Row) Values() []Value { return r.values }
func (r Row) Len() int { return len(r.values) }

// Get returns the value of the named column.
func (r Row) Get(name string) (Value, bool) {
	for i, c := range r.columns {
		if c == name {
			return r.values[i], true
		}
	}
	return Value{}, false
}

// Map returns the row keyed by column name.
func (r Row) Map() map[string]Value {
	m := make(map[string]Value, len(r.columns))
	for i, c := range r.columns {
		m[c] = r.values[i]
	}
	return m
}

// MarshalJSON writes the row as an object with keys in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, c := range r.columns {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		val, err := r.values[i].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	return append(buf, '}'), nil
}
