package commands

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/SpaceTrucker2196/fieldhand/internal/logger"
	"github.com/SpaceTrucker2196/fieldhand/internal/store/postgres"
)

type MigrateCmd struct {
	Config string `help:"Path to the YAML config file." default:"fieldhand.yml"`
}

func (c *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	log.Logger = logger.Setup(globals.Debug)

	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, &cfg.Postgres.Pool)
	if err != nil {
		return err
	}
	defer pool.Close()

	return postgres.RunMigrations(ctx, pool)
}
