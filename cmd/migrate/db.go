package main

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/Milan-Sharma1/vsp-backend/internal/config"
	"github.com/Milan-Sharma1/vsp-backend/internal/database"
)

type migrator struct {
	db *sql.DB
}

func withDB(ctx context.Context, cmd *cli.Command, cfg *config.AppConfig, fn func(*migrator) error) error {
	pgCfg := cfg.Postgres
	pgCfg.DSN = cmd.String("dsn")

	pool, err := database.NewPostgresPool(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	db := database.OpenDB(pool)
	defer db.Close()

	return fn(&migrator{db: db})
}

func (m *migrator) reportVersion(ctx context.Context, logger zerolog.Logger) error {
	version, err := database.MigrationVersion(ctx, m.db)
	if err != nil {
		return err
	}
	logger.Info().Int64("version", version).Msg("schema version")
	return nil
}
