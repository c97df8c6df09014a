package server

import (
	"errors"

	"chatgraph/internal/util"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// runMigrations applies pending schema migrations from MIGRATIONS_DIR
// (default "migrations") before the server accepts traffic.
func runMigrations(databaseURL string) error {
	dir := util.GetEnvString("MIGRATIONS_DIR", "migrations")

	m, err := migrate.New("file://"+dir, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
