package migrate

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/mpapenbr/nebula-racers-go/log"
)

//go:embed migrations
var migrations embed.FS

//go:embed migrations-sqlite
var migrationsSQLite embed.FS

// MigrateDb brings the postgres database at dbURI to the latest schema.
func MigrateDb(dbURI string) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", source,
		strings.Replace(dbURI, "postgresql://", "pgx://", 1))
	if err != nil {
		return err
	}
	defer m.Close()
	m.Log = newLogger(log.Default().Named("migrate"))

	return up(m)
}

// MigrateSQLite brings an open sqlite database to the latest schema.
// The migrate instance is not closed since that would close db.
func MigrateSQLite(db *sql.DB) error {
	source, err := iofs.New(migrationsSQLite, "migrations-sqlite")
	if err != nil {
		return err
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = newLogger(log.Default().Named("migrate.sqlite"))
	return up(m)
}

func up(m *migrate.Migrate) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// migrateLogger routes migrate output to our logger
type migrateLogger struct {
	l *log.Logger
}

func newLogger(l *log.Logger) *migrateLogger {
	return &migrateLogger{l: l}
}

func (m *migrateLogger) Printf(format string, v ...any) {
	m.l.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (m *migrateLogger) Verbose() bool {
	return m.l.Enabled(log.DebugLevel)
}
