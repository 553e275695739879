package di

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/etendosoftware/sso-gateway/internal/dao/tokendao"
	"github.com/etendosoftware/sso-gateway/internal/policy"
	"github.com/etendosoftware/sso-gateway/internal/providerdir"
	"github.com/etendosoftware/sso-gateway/internal/services"
	"github.com/etendosoftware/sso-gateway/internal/statetoken"
)

func ProvideProviderDirectory() *providerdir.Client {
	return providerdir.NewClient(nil)
}

// ProvideStateTokenSigner builds the signer for flow state tokens from the
// master secret held in Secrets Manager. Lambda fails fast without the
// secret; local development falls back to an ephemeral secret, which limits
// token validity to the current process.
func ProvideStateTokenSigner(ctx context.Context, env string, secretsService *services.SecretsManagerService) (*statetoken.Signer, error) {
	logger := zerolog.Ctx(ctx)

	secretPath := fmt.Sprintf("sso-gateway/%s/state-token", env)
	masterSecret, err := secretsService.GetStateTokenSecret(ctx, secretPath)
	if err != nil {
		logger.Error().Err(err).Str("secret", secretPath).Msg("Failed to fetch state token secret")

		if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
			return nil, fmt.Errorf("state token secret required in Lambda environment: %w", err)
		}

		logger.Warn().Msg("Using ephemeral state token secret for local development only")
		masterSecret = make([]byte, 32)
		if _, err := rand.Read(masterSecret); err != nil {
			return nil, fmt.Errorf("failed to generate ephemeral state token secret: %w", err)
		}
	}

	return statetoken.NewSigner(masterSecret)
}

func ProvideLinkValidator(config *services.Config) (*policy.Validator, error) {
	return policy.NewValidator(policy.Rules{
		AllowedProviders: services.SplitList(config.AllowedProviders),
		BlockedScopes:    services.SplitList(config.BlockedScopes),
	})
}

func ProvideTokenService(tokens *tokendao.DAO) *services.TokenService {
	// The middleware refreshes upstream tokens before storing them, so no
	// refresher is wired here. Expired stored tokens surface as token errors.
	return services.NewTokenService(tokens, nil)
}
