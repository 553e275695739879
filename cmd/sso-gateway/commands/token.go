package commands

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/etendosoftware/sso-gateway/internal/di"
	"github.com/etendosoftware/sso-gateway/internal/services"
)

// TokenCommand returns the token command that resolves a user's stored OAuth
// access token, mirroring the gateway's GetOAuthToken endpoint.
func TokenCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Resolve a user's stored OAuth access token",
		Description: `Look up the stored access token for a user, provider and scope.

Examples:
  # Resolve the Drive token for a user
  sso-gateway token --env dev --user U100 --provider google --scope drive.file`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "env",
				Aliases:  []string{"e"},
				Usage:    "Environment name (dev, stg, or prd)",
				Required: true,
				EnvVars:  []string{"ENV"},
			},
			&cli.StringFlag{
				Name:     "user",
				Aliases:  []string{"u"},
				Usage:    "ERP user id",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "provider",
				Aliases:  []string{"p"},
				Usage:    "Provider key (e.g. google)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "scope",
				Aliases: []string{"s"},
				Usage:   "OAuth scope suffix (e.g. drive.file)",
			},
		},
		Action: tokenAction,
	}
}

func tokenAction(c *cli.Context) error {
	container, err := buildContainer(c.String("env"), di.ProvideTokenDAO)
	if err != nil {
		return err
	}

	tokens := di.MustGet[*services.TokenService](container)

	accessToken, err := tokens.AccessToken(c.Context, c.String("user"), c.String("provider"), c.String("scope"))
	if err != nil {
		return fmt.Errorf("failed to retrieve token: %w", err)
	}

	jsonData, err := json.MarshalIndent(map[string]string{"accessToken": accessToken}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	fmt.Println(string(jsonData))
	return nil
}
