package main

import (
	"context"
	"os"

	"github.com/etendosoftware/sso-gateway/cmd/sso-gateway/commands"
	"github.com/etendosoftware/sso-gateway/internal/di"
	"github.com/urfave/cli/v2"
)

func main() {
	logger := di.ProvideLogger()
	ctx := logger.WithContext(context.Background())

	app := &cli.App{
		Name:  "sso-gateway",
		Usage: "ERP single sign-on gateway toolkit",
		Description: `A unified CLI tool for driving and inspecting SSO account linking.

This tool provides commands for:
  - Running a full account-linking flow from the terminal
  - Logging out of the external SSO session
  - Inspecting the middleware's provider directory and stored tokens`,
		Commands: []*cli.Command{
			commands.LinkCommand(&logger),
			commands.LogoutCommand(&logger),
			commands.ProvidersCommand(&logger),
			commands.TokenCommand(&logger),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
