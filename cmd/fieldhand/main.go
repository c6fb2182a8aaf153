package main

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/SpaceTrucker2196/fieldhand/cmd/fieldhand/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug    bool `help:"Enable debug mode."`
		Version  kong.VersionFlag
		Migrate  commands.MigrateCmd  `cmd:"" help:"Run database migrations."`
		Overtime commands.OvertimeCmd `cmd:"" help:"Print a worker's weekly regular/overtime split."`
		Verify   commands.VerifyCmd   `cmd:"" help:"Verify a work order's audit chain."`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
