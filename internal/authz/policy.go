package authz

import (
	"context"
	"fmt"
	"strings"

	"github.com/etendosoftware/sso-gateway/internal/policy"
)

// Profile represents the identity and link request being authorized.
// This mirrors the auth.Profile struct but keeps packages decoupled.
type Profile struct {
	Sub      string
	Name     string
	Email    string
	Provider string
	Scopes   []string
}

// Policy defines an authorization rule that can allow or deny a link.
type Policy interface {
	// Authorize returns nil if the link is authorized, or an error if denied.
	Authorize(ctx context.Context, profile Profile) error
	// Name returns a human-readable name for this policy.
	Name() string
}

// EmailDomainPolicy restricts linking to accounts under the given email
// domains. An empty domain list allows any email.
type EmailDomainPolicy struct {
	AllowedDomains []string
}

// Name returns the policy name.
func (p *EmailDomainPolicy) Name() string {
	return "EmailDomainRestriction"
}

// Authorize checks the linked account's email domain.
func (p *EmailDomainPolicy) Authorize(_ context.Context, profile Profile) error {
	if len(p.AllowedDomains) == 0 {
		return nil
	}
	if profile.Email == "" {
		return fmt.Errorf("access denied: linked account has no email")
	}
	for _, domain := range p.AllowedDomains {
		if strings.HasSuffix(strings.ToLower(profile.Email), "@"+strings.ToLower(domain)) {
			return nil
		}
	}
	return fmt.Errorf("access denied: email %s is not in an authorized domain", profile.Email)
}

// LinkPolicy evaluates the link against the embedded Rego policy.
type LinkPolicy struct {
	Validator *policy.Validator
}

// Name returns the policy name.
func (p *LinkPolicy) Name() string {
	return "LinkPolicy"
}

// Authorize evaluates the provider and scopes of the link request.
func (p *LinkPolicy) Authorize(ctx context.Context, profile Profile) error {
	result, err := p.Validator.ValidateLink(ctx, policy.LinkRequest{
		UserID:   profile.Sub,
		Provider: profile.Provider,
		Scopes:   profile.Scopes,
	})
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}
	if !result.Allowed {
		return fmt.Errorf("access denied: %s", strings.Join(result.Violations, "; "))
	}
	return nil
}

// Authorizer manages a collection of authorization policies.
type Authorizer struct {
	policies []Policy
	enabled  bool
}

// NewAuthorizer creates a new authorizer with the given policies.
func NewAuthorizer(enabled bool, policies ...Policy) *Authorizer {
	return &Authorizer{
		policies: policies,
		enabled:  enabled,
	}
}

// Authorize runs all policies and returns an error if any policy denies the link.
func (a *Authorizer) Authorize(ctx context.Context, profile Profile) error {
	if !a.enabled {
		return nil
	}

	for _, p := range a.policies {
		if err := p.Authorize(ctx, profile); err != nil {
			return fmt.Errorf("authorization policy %s failed: %w", p.Name(), err)
		}
	}
	return nil
}

// NewLinkAuthorizer creates a preconfigured authorizer for account linking:
// the Rego link policy plus an optional email-domain restriction.
func NewLinkAuthorizer(enabled bool, validator *policy.Validator, allowedDomains []string) *Authorizer {
	return NewAuthorizer(enabled,
		&LinkPolicy{Validator: validator},
		&EmailDomainPolicy{AllowedDomains: allowedDomains},
	)
}
