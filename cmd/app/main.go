package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/maloquacious/semver"
	"github.com/spf13/cobra"

	"github.com/maloquacious/updatestore/internal/config"
	"github.com/maloquacious/updatestore/internal/logger"
	"github.com/maloquacious/updatestore/internal/store"
	"github.com/maloquacious/updatestore/internal/store/sqlite"
)

var (
	version = semver.Version{Minor: 1, PreRelease: "alpha", Build: semver.Commit()}
)

var (
	configPath string
	dataDir    string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "app",
		Short:         "Update store database tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "dir", "", "database directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the application version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}

	// db command group
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	dbCreateCmd := &cobra.Command{
		Use:   "create",
		Short: "Create and initialize the datastore",
		Args:  cobra.NoArgs,
		RunE:  runDBCreate,
	}
	dbUpgradeCmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Apply migrations to current schema version",
		Args:  cobra.NoArgs,
		RunE:  runDBUpgrade,
	}
	dbVerifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify schema integrity and version",
		Args:  cobra.NoArgs,
		RunE:  runDBVerify,
	}
	dbQueryCmd := &cobra.Command{
		Use:   "query SQL [ARG...]",
		Short: "Run one statement and print the rows as JSON",
		Long: `Run one statement against the datastore and print each row as a JSON object.

Arguments bind to the statement's placeholders in order:
  null          SQL NULL
  int:N         64-bit integer
  bool:B        boolean, stored as 1 or 0
  float:F       floating point number
  uuid:U        UUID, stored as a 16-byte blob
  time:T        RFC 3339 timestamp, stored as milliseconds since the epoch
  json:{...}    JSON document, stored as text
  text:S        text (anything without a recognized prefix is text too)`,
		Args: cobra.MinimumNArgs(1),
		RunE: runDBQuery,
	}

	dbCmd.AddCommand(dbCreateCmd, dbUpgradeCmd, dbVerifyCmd, dbQueryCmd)
	rootCmd.AddCommand(versionCmd, dbCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// setup loads configuration, applies command line overrides and builds the logger.
func setup() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if dataDir != "" {
		cfg.Database.Dir = dataDir
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, logger.New(cfg.Logging, version.String()).With("dir", cfg.Database.Dir), nil
}

func storeOptions(cfg *config.Config, log logger.Logger) sqlite.Options {
	return sqlite.Options{
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.GetBusyTimeout(),
		Logger:      log,
	}
}

func runDBCreate(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	exists, err := store.CheckExists(cfg.Database.Dir)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("datastore already exists: %s", store.GetDBPath(cfg.Database.Dir))
	}

	s, err := sqlite.Initialize(cmd.Context(), cfg.Database.Dir, storeOptions(cfg, log))
	if err != nil {
		return err
	}
	defer s.Close()

	v, err := s.GetSchemaVersion(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s (schema version %d)\n", s.Path(), v)
	return nil
}

func runDBUpgrade(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	s, err := sqlite.Initialize(cmd.Context(), cfg.Database.Dir, storeOptions(cfg, log))
	if err != nil {
		return err
	}
	defer s.Close()

	v, err := s.GetSchemaVersion(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is at schema version %d\n", s.Path(), v)
	return nil
}

// verifyReport is the JSON summary printed by db verify.
type verifyReport struct {
	Version       string `json:"version"`
	Path          string `json:"path"`
	State         string `json:"state"`
	SchemaVersion int    `json:"schemaVersion"`
	LatestVersion int    `json:"latestVersion"`
	ForeignKeys   bool   `json:"foreignKeys"`
	Integrity     string `json:"integrity,omitempty"`
}

func runDBVerify(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	report := verifyReport{
		Version:       version.String(),
		Path:          store.GetDBPath(cfg.Database.Dir),
		State:         store.StateMissing.String(),
		LatestVersion: sqlite.LatestVersion(sqlite.Migrations()),
	}

	exists, err := store.CheckExists(cfg.Database.Dir)
	if err != nil {
		return err
	}
	if exists {
		s := sqlite.New(report.Path, sqlite.Migrations(), storeOptions(cfg, log))
		if err := s.Open(ctx); err != nil {
			return err
		}
		defer s.Close()

		if err := fillReport(ctx, s, &report); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if report.State != store.StateReady.String() || report.Integrity != "ok" {
		return fmt.Errorf("datastore is not ready")
	}
	return nil
}

func fillReport(ctx context.Context, s *sqlite.SQLiteStore, report *verifyReport) error {
	state, err := s.CheckState(ctx)
	if err != nil {
		return err
	}
	report.State = state.String()

	if report.SchemaVersion, err = s.GetSchemaVersion(ctx); err != nil {
		return err
	}

	rows, err := s.Execute(ctx, "PRAGMA foreign_keys")
	if err != nil {
		return err
	}
	report.ForeignKeys = len(rows) == 1 && rows[0].Values()[0].Int() == 1

	rows, err = s.Execute(ctx, "PRAGMA integrity_check")
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		report.Integrity = rows[0].Values()[0].Text()
	}
	return nil
}

func runDBQuery(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	queryArgs, err := parseArgs(args[1:])
	if err != nil {
		return err
	}

	s, err := sqlite.Initialize(cmd.Context(), cfg.Database.Dir, storeOptions(cfg, log))
	if err != nil {
		return err
	}
	defer s.Close()

	rows, err := s.Execute(cmd.Context(), args[0], queryArgs...)
	if err != nil {
		log.Error("query failed", "error", sqlite.ErrorMessage(err))
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}
