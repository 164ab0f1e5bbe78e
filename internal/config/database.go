package config

import (
	"database/sql"
	"fmt"

	"github.com/fluffyriot/rpinsights/internal/database"
	"github.com/fluffyriot/rpinsights/internal/logging"
	"github.com/fluffyriot/rpinsights/sql/schema"
	"github.com/pressly/goose/v3"

	_ "github.com/lib/pq"
)

// LoadDatabase opens Postgres, applies the embedded migrations and returns
// the pool together with the validated store over it.
func LoadDatabase(cfg *AppConfig) (*sql.DB, *database.Store, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to the DB: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, database.NewStore(db), nil
}

// Migrate runs every pending goose migration from sql/schema.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(schema.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get DB version: %w", err)
	}
	logging.Info().Int64("version", version).Msg("Migrations applied successfully")
	return nil
}
