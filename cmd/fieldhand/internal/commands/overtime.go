package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/SpaceTrucker2196/fieldhand/internal/clock"
	"github.com/SpaceTrucker2196/fieldhand/internal/logger"
	"github.com/SpaceTrucker2196/fieldhand/internal/overtime"
	"github.com/SpaceTrucker2196/fieldhand/internal/store/postgres"
)

type OvertimeCmd struct {
	Config string `help:"Path to the YAML config file." default:"fieldhand.yml"`
	Worker string `help:"Worker id." required:""`
	Year   int    `help:"ISO year. Defaults to the current week's year."`
	Week   int    `help:"ISO week number. Defaults to the current week."`
}

func (c *OvertimeCmd) Run(ctx context.Context, globals *Globals) error {
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

	clk := clock.System{}
	year, week := c.Year, c.Week
	if year == 0 || week == 0 {
		year, week = clk.ISOWeek(clk.Now())
	}

	split, err := overtime.NewCalculator(st, clk).WeeklySplit(ctx, c.Worker, year, week)
	if err != nil {
		return err
	}

	fmt.Printf("worker %s, week %d/%d: total %.2fh, regular %.2fh, overtime %.2fh\n",
		split.WorkerID, split.ISOWeek, split.ISOYear,
		split.TotalHours, split.RegularHours, split.OvertimeHours)
	return nil
}
