package di

import (
	"context"
	"fmt"
	"os"
	"strings"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/rs/zerolog"

	"github.com/etendosoftware/sso-gateway/internal/auth"
	"github.com/etendosoftware/sso-gateway/internal/authz"
	"github.com/etendosoftware/sso-gateway/internal/dao/identitydao"
	"github.com/etendosoftware/sso-gateway/internal/policy"
	"github.com/etendosoftware/sso-gateway/internal/services"
)

func ProvideSessionKeyService(ctx context.Context, config *services.Config) (*services.SessionKeyService, error) {
	// Load AWS config
	cfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := secretsmanager.NewFromConfig(cfg)
	return services.NewSessionKeyService(client, config.SessionTokenSecretName), nil
}

func ProvideSessionKeys(ctx context.Context, keyService *services.SessionKeyService) ([][]byte, error) {
	logger := zerolog.Ctx(ctx)

	keys, err := keyService.GetSessionKeys(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch session keys from Secrets Manager")

		// In production (Lambda), we must fail fast rather than using ephemeral keys
		// Ephemeral keys break sessions across Lambda containers causing auth loops
		if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
			return nil, fmt.Errorf("session keys required in Lambda environment: %w", err)
		}

		// For local development, allow fallback to ephemeral key
		logger.Warn().Msg("Using ephemeral session key for local development only")
		return [][]byte{}, nil
	}
	return keys, nil
}

func ProvideAuthenticator(ctx context.Context, secretsService *services.SecretsManagerService, authorizer *authz.Authorizer, identities *identitydao.DAO, callbackURL CallbackURL, sessionKeys [][]byte, disableAuth DisableAuth) (*auth.Authenticator, error) {
	logger := zerolog.Ctx(ctx)

	// If auth is disabled, return NoOp authenticator
	if bool(disableAuth) {
		logger.Warn().Msg("Authentication is DISABLED - using NoOp authenticator (development only)")
		return auth.NewNoOpAuthenticator(), nil
	}

	oauthConfig, err := secretsService.GetOAuthConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}

	// Create provider based on config
	var provider auth.Provider
	switch oauthConfig.Provider {
	case "auth0":
		provider = &auth.Auth0Provider{
			Domain: oauthConfig.Domain,
		}
	case "middleware":
		// Brokered providers behind the OAuth middleware
		provider = &auth.MiddlewareProvider{
			BaseURL: oauthConfig.MiddlewareURL,
		}
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", oauthConfig.Provider)
	}

	// Detect local development: if callback URL uses http://localhost or http://127.0.0.1
	// In local dev, we need to disable Secure cookie flag since we're on HTTP
	callbackURLStr := string(callbackURL)
	isLocalDev := strings.HasPrefix(callbackURLStr, "http://localhost") ||
		strings.HasPrefix(callbackURLStr, "http://127.0.0.1")

	authenticator, err := auth.NewAuthenticator(ctx, auth.AuthenticatorInput{
		Provider:     provider,
		ClientID:     oauthConfig.ClientID,
		ClientSecret: oauthConfig.ClientSecret,
		CallbackURL:  callbackURLStr,
		Authorizer:   authorizer,
		Identities:   identities,
		SessionKeys:  sessionKeys,
		IsLocalDev:   isLocalDev,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}

	return authenticator, nil
}

func ProvideAuthorizer(logger zerolog.Logger, validator *policy.Validator, config *services.Config) *authz.Authorizer {
	if config.AllowedDomains == "" && config.AllowedProviders == "" && config.BlockedScopes == "" {
		logger.Info().Msg("Link authorization disabled - all authenticated users allowed")
		return nil
	}

	logger.Info().
		Str("allowed_domains", config.AllowedDomains).
		Str("allowed_providers", config.AllowedProviders).
		Str("blocked_scopes", config.BlockedScopes).
		Msg("Link authorization enabled")

	return authz.NewLinkAuthorizer(true, validator, services.SplitList(config.AllowedDomains))
}
