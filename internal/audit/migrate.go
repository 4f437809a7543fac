package audit

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres:// driver
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/vyrodovalexey/avafx/internal/observability"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded audit schema migrations to databaseURL.
func Migrate(databaseURL string, logger observability.Logger) error {
	if logger == nil {
		logger = observability.NopLogger()
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open audit migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("create audit migrator: %w", err)
	}
	defer func() {
		_, _ = m.Close()
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run audit migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read audit schema version: %w", err)
	}
	logger.Info("audit migrations applied",
		observability.Any("version", version),
		observability.Bool("dirty", dirty),
	)

	return nil
}
