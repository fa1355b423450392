package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/maloquacious/updatestore/internal/store"
)

const dirPermissions = 0750

// sidecar suffixes SQLite keeps next to the main database file.
var sidecars = []string{"", "-wal", "-shm", "-journal"}

// Initialize opens the database in dir and brings it to the latest schema.
//
//  1. Creates dir if needed.
//  2. If the current file is missing, adopts the newest legacy expo-vN.db
//     file and stamps N as its schema version.
//  3. Empty databases get the latest schema; databases too old to migrate
//     (or with tables but no version) are archived and recreated; older
//     databases are migrated; newer ones are left alone with a warning.
//
// The returned store is open and ready for queries.
func Initialize(ctx context.Context, dir string, opts Options) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	s := New(store.GetDBPath(dir), Migrations(), opts)
	log := s.options.Logger

	legacyVersion, err := adoptLegacy(dir, s.dbPath)
	if err != nil {
		return nil, err
	}
	if legacyVersion > 0 {
		log.Info("adopted legacy database", "path", s.dbPath, "version", legacyVersion)
	}

	if err := s.Open(ctx); err != nil {
		return nil, err
	}
	if legacyVersion > 0 {
		if err := s.stampLegacyVersion(ctx, legacyVersion); err != nil {
			s.Close()
			return nil, err
		}
	}

	if err := s.bringUpToDate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) bringUpToDate(ctx context.Context) error {
	log := s.options.Logger

	state, err := s.CheckState(ctx)
	if err != nil {
		return err
	}

	switch state {
	case store.StateUnsupported:
		version, _ := s.GetSchemaVersion(ctx)
		if err := s.Close(); err != nil {
			return fmt.Errorf("failed to close database before archiving: %w", err)
		}
		archived, err := archive(s.dbPath, time.Now())
		if err != nil {
			return err
		}
		log.Warn("archived unsupported database", "version", version, "archive", archived)
		if err := s.Open(ctx); err != nil {
			return err
		}
		if err := s.InitSchema(ctx); err != nil {
			return err
		}
		log.Info("created database", "path", s.dbPath, "version", schemaVersion)
	case store.StateUninitialized:
		if err := s.InitSchema(ctx); err != nil {
			return err
		}
		log.Info("created database", "path", s.dbPath, "version", schemaVersion)
	case store.StateOutdated:
		if err := s.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	case store.StateNewer:
		version, _ := s.GetSchemaVersion(ctx)
		log.Warn("database schema is newer than this build", "version", version, "latest", schemaVersion)
	}
	return nil
}

// stampLegacyVersion records the filename version unless the file already
// carries one.
func (s *SQLiteStore) stampLegacyVersion(ctx context.Context, version int) error {
	current, err := s.GetSchemaVersion(ctx)
	if err != nil {
		return err
	}
	if current != 0 {
		return nil
	}
	return s.setSchemaVersion(ctx, version)
}

// adoptLegacy moves the newest legacy database to dbPath when dbPath does
// not exist yet. It returns the legacy version, or 0 if nothing was moved.
func adoptLegacy(dir, dbPath string) (int, error) {
	exists, err := store.CheckExists(dir)
	if err != nil || exists {
		return 0, err
	}
	legacyPath, version, ok, err := store.FindLegacyDB(dir)
	if err != nil || !ok {
		return 0, err
	}
	if err := moveDatabase(legacyPath, dbPath); err != nil {
		return 0, fmt.Errorf("failed to adopt legacy database %s: %w", legacyPath, err)
	}
	return version, nil
}

// archive renames the database and its sidecar files out of the way and
// returns the new main file path.
func archive(dbPath string, now time.Time) (string, error) {
	target := fmt.Sprintf("%s.%d.bak", dbPath, now.UnixMilli())
	if err := moveDatabase(dbPath, target); err != nil {
		return "", fmt.Errorf("failed to archive database: %w", err)
	}
	return target, nil
}

// moveDatabase renames src and any sidecar files to dst.
func moveDatabase(src, dst string) error {
	for _, suffix := range sidecars {
		err := os.Rename(src+suffix, dst+suffix)
		if err != nil && !(suffix != "" && errors.Is(err, os.ErrNotExist)) {
			return err
		}
	}
	return nil
}
