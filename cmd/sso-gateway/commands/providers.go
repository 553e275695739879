package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/etendosoftware/sso-gateway/internal/di"
	"github.com/etendosoftware/sso-gateway/internal/providerdir"
	"github.com/etendosoftware/sso-gateway/internal/services"
)

// ProvidersCommand returns the providers command that lists the linkable
// providers the middleware currently offers.
func ProvidersCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:    "providers",
		Aliases: []string{"p"},
		Usage:   "List the linkable providers offered by the middleware",
		Description: `Fetch the middleware's provider directory.

The directory is fetched live on every call; the middleware's operators can
change the offered scopes at any time.

Examples:
  # List providers and scopes
  sso-gateway providers --env dev

  # List providers as JSON
  sso-gateway providers --env dev --json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "env",
				Aliases:  []string{"e"},
				Usage:    "Environment name (dev, stg, or prd)",
				Required: true,
				EnvVars:  []string{"ENV"},
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
		},
		Action: providersAction,
	}
}

func providersAction(c *cli.Context) error {
	logger := zerolog.Ctx(c.Context)

	container, err := buildContainer(c.String("env"))
	if err != nil {
		return err
	}

	appConfig := di.MustGet[*services.Config](container)
	directory := di.MustGet[*providerdir.Client](container)

	providers, err := directory.ListProviders(c.Context, appConfig.MiddlewareURL, appConfig.RedirectURI)
	if err != nil {
		return fmt.Errorf("failed to fetch provider directory: %w", err)
	}

	if c.Bool("json") {
		displayProvidersJSON(providers)
		return nil
	}

	if len(providers) == 0 {
		fmt.Println("No providers offered by the middleware")
		return nil
	}

	fmt.Println()
	fmt.Printf("Providers offered by %s\n", appConfig.MiddlewareURL)
	fmt.Println(strings.Repeat("=", 60))
	for _, provider := range providers {
		fmt.Println()
		fmt.Printf("%s\n", provider.Name)
		for _, scope := range provider.Scopes {
			fmt.Printf("  %-16s %s\n", scope.Label(), scope.Scope)
		}
	}
	fmt.Println()

	logger.Info().Int("count", len(providers)).Msg("Retrieved provider directory")
	return nil
}

func displayProvidersJSON(providers []providerdir.ProviderDescriptor) {
	type scopeOutput struct {
		Scope string `json:"scope"`
		Label string `json:"label"`
	}
	type providerOutput struct {
		Name   string        `json:"name"`
		Scopes []scopeOutput `json:"scopes"`
	}

	output := make([]providerOutput, 0, len(providers))
	for _, provider := range providers {
		scopes := make([]scopeOutput, 0, len(provider.Scopes))
		for _, scope := range provider.Scopes {
			scopes = append(scopes, scopeOutput{Scope: scope.Scope, Label: scope.Label()})
		}
		output = append(output, providerOutput{Name: provider.Name, Scopes: scopes})
	}

	jsonBytes, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(jsonBytes))
}
