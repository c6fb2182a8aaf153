package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/SpaceTrucker2196/fieldhand/internal/audit"
	"github.com/SpaceTrucker2196/fieldhand/internal/clock"
	"github.com/SpaceTrucker2196/fieldhand/internal/logger"
	"github.com/SpaceTrucker2196/fieldhand/internal/store/postgres"
)

type VerifyCmd struct {
	Config string `help:"Path to the YAML config file." default:"fieldhand.yml"`
	Order  string `help:"Work order id." required:""`
}

func (c *VerifyCmd) Run(ctx context.Context, globals *Globals) error {
	log.Logger = logger.Setup(globals.Debug)

	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}

	st, err := postgres.NewStore(ctx, &cfg.Postgres)
	if err != nil {
		return err
	}
	defer st.Close()

	recorder := audit.NewRecorder(st, clock.System{})
	if err := recorder.VerifyChain(ctx, c.Order); err != nil {
		return err
	}

	fmt.Printf("audit chain for work order %s verified\n", c.Order)
	return nil
}
