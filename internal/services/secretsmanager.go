package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
)

type SecretsManagerService struct {
	client *secretsmanager.Client
}

// OAuthConfig represents OAuth/OIDC provider configuration.
// Supports multiple providers: Auth0, middleware-brokered.
type OAuthConfig struct {
	Provider     string `json:"provider"`      // "auth0" or "middleware"
	ClientID     string `json:"client_id"`     // OAuth client ID
	ClientSecret string `json:"client_secret"` // OAuth client secret
	Domain       string `json:"domain"`        // For Auth0: tenant domain (e.g., "tenant.us.auth0.com")
	MiddlewareURL string `json:"middleware_url"` // For middleware: broker base URL
}

func NewSecretsManagerService() (*SecretsManagerService, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SecretsManagerService{
		client: secretsmanager.NewFromConfig(cfg),
	}, nil
}

// GetOAuthConfig retrieves OAuth provider configuration from AWS Secrets Manager.
// For backward compatibility, defaults to "auth0" if provider field is missing.
func (s *SecretsManagerService) GetOAuthConfig(ctx context.Context) (*OAuthConfig, error) {
	env := os.Getenv("ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		env = "dev"
	}

	secretName := fmt.Sprintf("sso-gateway/%s/secrets", env)

	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s: %w", secretName, err)
	}

	if result.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", secretName)
	}

	var oauthConfig OAuthConfig
	if err := json.Unmarshal([]byte(*result.SecretString), &oauthConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal OAuth config: %w", err)
	}

	// Backward compatibility: default to auth0 if provider not specified
	if oauthConfig.Provider == "" {
		oauthConfig.Provider = "auth0"
	}

	return &oauthConfig, nil
}

type stateTokenSecret struct {
	MasterSecret string `json:"master_secret"`
}

// GetStateTokenSecret retrieves the master secret used to sign flow state
// tokens from AWS Secrets Manager.
func (s *SecretsManagerService) GetStateTokenSecret(ctx context.Context, secretPath string) ([]byte, error) {
	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretPath),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException" {
			return nil, fmt.Errorf("state token secret %s is not provisioned: %w", secretPath, err)
		}
		return nil, fmt.Errorf("failed to get secret %s: %w", secretPath, err)
	}

	if result.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", secretPath)
	}

	var secret stateTokenSecret
	if err := json.Unmarshal([]byte(*result.SecretString), &secret); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state token secret: %w", err)
	}

	if secret.MasterSecret == "" {
		return nil, fmt.Errorf("master_secret field is empty in secret %s", secretPath)
	}

	return []byte(secret.MasterSecret), nil
}

// GetSecret retrieves a secret value by path from AWS Secrets Manager
func (s *SecretsManagerService) GetSecret(ctx context.Context, secretPath string) (string, error) {
	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretPath),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", secretPath, err)
	}

	if result.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", secretPath)
	}

	return *result.SecretString, nil
}
