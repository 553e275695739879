package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etendosoftware/sso-gateway/internal/policy"
)

func TestEmailDomainPolicy(t *testing.T) {
	tests := []struct {
		name    string
		domains []string
		email   string
		wantErr bool
	}{
		{name: "no restriction", domains: nil, email: "anyone@anywhere.com"},
		{name: "allowed domain", domains: []string{"example.com"}, email: "user@example.com"},
		{name: "case insensitive", domains: []string{"Example.COM"}, email: "user@EXAMPLE.com"},
		{name: "wrong domain", domains: []string{"example.com"}, email: "user@evil.com", wantErr: true},
		{name: "missing email", domains: []string{"example.com"}, email: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &EmailDomainPolicy{AllowedDomains: tt.domains}
			err := p.Authorize(context.Background(), Profile{Email: tt.email})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLinkAuthorizer(t *testing.T) {
	validator, err := policy.NewValidator(policy.Rules{
		AllowedProviders: []string{"google"},
	})
	require.NoError(t, err)

	authorizer := NewLinkAuthorizer(true, validator, []string{"example.com"})

	err = authorizer.Authorize(context.Background(), Profile{
		Sub:      "google-oauth2|123",
		Email:    "user@example.com",
		Provider: "google",
	})
	assert.NoError(t, err)

	err = authorizer.Authorize(context.Background(), Profile{
		Sub:      "dropbox|123",
		Email:    "user@example.com",
		Provider: "dropbox",
	})
	assert.Error(t, err)

	err = authorizer.Authorize(context.Background(), Profile{
		Sub:      "google-oauth2|123",
		Email:    "user@evil.com",
		Provider: "google",
	})
	assert.Error(t, err)
}

func TestAuthorizerDisabled(t *testing.T) {
	authorizer := NewAuthorizer(false, &EmailDomainPolicy{AllowedDomains: []string{"example.com"}})

	err := authorizer.Authorize(context.Background(), Profile{Email: "user@evil.com"})
	assert.NoError(t, err)
}
