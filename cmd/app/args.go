package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maloquacious/updatestore/internal/store/sqlite"
)

// parseArgs converts command line arguments to bound query arguments.
func parseArgs(raw []string) ([]sqlite.Arg, error) {
	args := make([]sqlite.Arg, 0, len(raw))
	for i, s := range raw {
		a, err := parseArg(s)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		args = append(args, a)
	}
	return args, nil
}

// parseArg reads one "kind:value" argument. Unprefixed input is text.
func parseArg(s string) (sqlite.Arg, error) {
	if s == "null" {
		return sqlite.Null(), nil
	}
	kind, value, ok := strings.Cut(s, ":")
	if !ok {
		return sqlite.Text(s), nil
	}

	switch kind {
	case "int":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return sqlite.Arg{}, fmt.Errorf("invalid int %q: %w", value, err)
		}
		return sqlite.Int(n), nil
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return sqlite.Arg{}, fmt.Errorf("invalid bool %q: %w", value, err)
		}
		return sqlite.Bool(b), nil
	case "float":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return sqlite.Arg{}, fmt.Errorf("invalid float %q: %w", value, err)
		}
		return sqlite.Float(f), nil
	case "uuid":
		u, err := uuid.Parse(value)
		if err != nil {
			return sqlite.Arg{}, fmt.Errorf("invalid uuid %q: %w", value, err)
		}
		return sqlite.UUID(u), nil
	case "time":
		t, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return sqlite.Arg{}, fmt.Errorf("invalid time %q: %w", value, err)
		}
		return sqlite.Time(t), nil
	case "json":
		var obj any
		if err := json.Unmarshal([]byte(value), &obj); err != nil {
			return sqlite.Arg{}, fmt.Errorf("invalid json: %w", err)
		}
		return sqlite.Object(obj), nil
	case "text":
		return sqlite.Text(value), nil
	}
	return sqlite.Text(s), nil
}
