package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/LovationAdmin/expense-api/migrations"
	"github.com/LovationAdmin/expense-api/services"
)

// OpenDatabase connects to the configured database and pings it.
func OpenDatabase(ctx context.Context, cfg DatabaseConfig) (*sql.DB, services.Dialect, error) {
	driver, err := cfg.DriverName()
	if err != nil {
		return nil, "", err
	}

	var db *sql.DB
	switch driver {
	case "postgres":
		if cfg.URL == "" {
			return nil, "", fmt.Errorf("DATABASE_URL environment variable is required")
		}
		db, err = sql.Open("postgres", cfg.URL)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	default:
		db, err = sql.Open("sqlite", SQLiteDSN(cfg.URL))
		if err != nil {
			return nil, "", fmt.Errorf("failed to open database: %w", err)
		}
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("failed to ping database: %w", err)
	}

	return db, services.Dialect(driver), nil
}

// SQLiteDSN turns a path or sqlite:// URL into a modernc DSN with foreign
// keys on and timestamps stored in SQLite's own format.
func SQLiteDSN(url string) string {
	dsn := strings.TrimPrefix(url, "sqlite://")
	if dsn == "" {
		dsn = "expense.db"
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}

	params := []string{
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
		"_time_format=sqlite",
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range params {
		if strings.Contains(dsn, p) {
			continue
		}
		dsn += sep + p
		sep = "&"
	}
	return dsn
}

// NewMigrator builds a golang-migrate instance over the embedded schema for
// dialect. Call release once done with it; release never closes db.
func NewMigrator(ctx context.Context, db *sql.DB, dialect services.Dialect) (m *migrate.Migrate, release func(), err error) {
	source, err := iofs.New(migrations.FS, string(dialect))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create iofs source driver: %w", err)
	}

	var driver database.Driver
	switch dialect {
	case services.DialectPostgres:
		// Migrations hold one conn; release hands it back to the pool.
		conn, cerr := db.Conn(ctx)
		if cerr != nil {
			return nil, nil, fmt.Errorf("failed to reserve migration connection: %w", cerr)
		}
		driver, err = postgres.WithConnection(ctx, conn, &postgres.Config{})
		if err != nil {
			conn.Close()
		}
	case services.DialectSQLite:
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
	default:
		return nil, nil, fmt.Errorf("no migrations for dialect %q", dialect)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up migrate driver: %w", err)
	}

	m, err = migrate.NewWithInstance("iofs", source, string(dialect), driver)
	if err != nil {
		if dialect == services.DialectPostgres {
			driver.Close()
		}
		return nil, nil, fmt.Errorf("failed to set up migrate instance: %w", err)
	}

	release = func() { source.Close() }
	if dialect == services.DialectPostgres {
		// The postgres driver only closes its own conn when built from one.
		release = func() { m.Close() }
	}
	return m, release, nil
}

// RunMigrations applies every pending up migration and releases the
// migrator's connection afterwards.
func RunMigrations(ctx context.Context, db *sql.DB, dialect services.Dialect) error {
	m, release, err := NewMigrator(ctx, db, dialect)
	if err != nil {
		return err
	}
	defer release()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migration(up): %w", err)
	}
	return nil
}
