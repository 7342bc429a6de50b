package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/Milan-Sharma1/vsp-backend/internal/config"
	"github.com/Milan-Sharma1/vsp-backend/internal/database"
	"github.com/Milan-Sharma1/vsp-backend/internal/log"
)

func main() {
	cfg, err := config.LoadUnchecked()
	if err != nil {
		panic(err)
	}
	logger := log.New(cfg.Environment).With().Str("component", "migrate").Logger()

	app := &cli.Command{
		Name:  "migrate",
		Usage: "Manage the vsp database schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "dsn",
				Usage: "Postgres connection string, overrides postgres.dsn",
				Value: cfg.Postgres.DSN,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply every pending migration",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withDB(ctx, cmd, cfg, func(m *migrator) error {
						if err := database.MigrateUp(ctx, m.db); err != nil {
							return err
						}
						return m.reportVersion(ctx, logger)
					})
				},
			},
			{
				Name:  "down",
				Usage: "Roll back the most recent migration",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withDB(ctx, cmd, cfg, func(m *migrator) error {
						if err := database.MigrateDown(ctx, m.db); err != nil {
							return err
						}
						return m.reportVersion(ctx, logger)
					})
				},
			},
			{
				Name:  "status",
				Usage: "List applied and pending migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withDB(ctx, cmd, cfg, func(m *migrator) error {
						return database.MigrateStatus(ctx, m.db, gooseLogger{log: logger})
					})
				},
			},
			{
				Name:  "version",
				Usage: "Print the current schema version",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withDB(ctx, cmd, cfg, func(m *migrator) error {
						return m.reportVersion(ctx, logger)
					})
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatal().Err(err).Msg("migrate failed")
	}
}

// gooseLogger routes goose's status output into zerolog.
type gooseLogger struct {
	log zerolog.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.log.Info().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Fatal().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
