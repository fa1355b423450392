package store

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

const (
	DefaultDBFile = "expo.db"
)

// legacyDBFile matches database files from releases that encoded the schema
// version in the filename instead of the user_version pragma.
var legacyDBFile = regexp.MustCompile(`^expo-v([0-9]+)\.db$`)

// CheckExists verifies if the datastore exists at the given path.
// Returns true if the store exists, false otherwise.
func CheckExists(storePath string) (bool, error) {
	dbPath := filepath.Join(storePath, DefaultDBFile)
	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check store existence: %w", err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("datastore path is a directory, expected file: %s", dbPath)
	}
	return true, nil
}

// GetDBPath returns the full path to the database file.
func GetDBPath(storePath string) string {
	return filepath.Join(storePath, DefaultDBFile)
}

// LegacyDBFile returns the versioned filename used before the schema version
// moved into the database, e.g. "expo-v5.db".
func LegacyDBFile(version int) string {
	return fmt.Sprintf("expo-v%d.db", version)
}

// FindLegacyDB returns the path and version of the newest legacy database
// file in storePath. ok is false when there is none.
func FindLegacyDB(storePath string) (path string, version int, ok bool, err error) {
	entries, err := os.ReadDir(storePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", 0, false, nil
		}
		return "", 0, false, fmt.Errorf("failed to scan for legacy databases: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := legacyDBFile.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if !ok || v > version {
			path, version, ok = filepath.Join(storePath, entry.Name()), v, true
		}
	}
	return path, version, ok, nil
}
