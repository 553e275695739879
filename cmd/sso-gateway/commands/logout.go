package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/etendosoftware/sso-gateway/internal/di"
	"github.com/etendosoftware/sso-gateway/internal/logout"
	"github.com/etendosoftware/sso-gateway/internal/popup"
	"github.com/etendosoftware/sso-gateway/internal/services"
)

// LogoutCommand returns the logout command that ends the external SSO session
// and then the local one.
func LogoutCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Sign out of the SSO session",
		Description: `End the external identity provider session, then the local one.

The external step is best-effort and bounded: an unreachable provider never
blocks local logout.

Examples:
  # Log out with a confirmation prompt
  sso-gateway logout --env dev --origin https://erp.example.com --context-path /etendo/

  # Log out without prompting
  sso-gateway logout --env dev --origin https://erp.example.com --context-path /etendo/ --yes`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "env",
				Aliases:  []string{"e"},
				Usage:    "Environment name (dev, stg, or prd)",
				Required: true,
				EnvVars:  []string{"ENV"},
			},
			&cli.StringFlag{
				Name:     "origin",
				Usage:    "Application origin, e.g. https://erp.example.com",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "context-path",
				Usage: "ERP context path mounted under the origin",
				Value: "/",
			},
			&cli.StringFlag{
				Name:  "redirect-url",
				Usage: "Override the post-logout landing page",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Skip the confirmation prompt",
			},
		},
		Action: logoutAction,
	}
}

func logoutAction(c *cli.Context) error {
	logger := zerolog.Ctx(c.Context)

	container, err := buildContainer(c.String("env"))
	if err != nil {
		return err
	}

	store := di.MustGet[services.ParameterStore](container)
	appConfig := di.MustGet[*services.Config](container)

	redirectURL := c.String("redirect-url")
	if redirectURL == "" {
		redirectURL = appConfig.LogoutRedirectURL
	}

	bar := terminalBar{logger: logger}
	confirmer := logout.ConfirmerFunc(func(ctx context.Context) (bool, error) {
		return confirmPrompt("Sign out of the SSO session?"), nil
	})
	base := logout.BaseLogoutFunc(func(ctx context.Context) error {
		// The terminal holds no ERP session; local logout is the hand-back to
		// the caller.
		logger.Info().Msg("Local logout completed")
		return nil
	})

	orchestrator := logout.New(confirmer, store, popup.NewController(popup.ExecOpener{}), nil, bar, base, logout.Config{
		Origin:      c.String("origin"),
		ContextPath: c.String("context-path"),
		RedirectURL: redirectURL,
	})

	outcome, err := orchestrator.Logout(c.Context, c.Bool("yes"))
	if err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}

	if outcome.Cancelled {
		fmt.Println("Logout cancelled")
		return nil
	}

	if outcome.ExternalErr != nil {
		logger.Warn().Err(outcome.ExternalErr).Msg("External logout did not complete cleanly")
	}

	fmt.Printf("✓ Signed out. Continue at: %s\n", outcome.RedirectURL)
	return nil
}
