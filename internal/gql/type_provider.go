package gql

import (
	"github.com/etendosoftware/sso-gateway/internal/providerdir"
)

// ProviderResolver resolves the Provider GraphQL type
type ProviderResolver struct {
	provider providerdir.ProviderDescriptor
}

// newProviderResolver creates a new ProviderResolver
func newProviderResolver(provider providerdir.ProviderDescriptor) *ProviderResolver {
	return &ProviderResolver{
		provider: provider,
	}
}

// Name resolves the name field
func (r *ProviderResolver) Name() string {
	return r.provider.Name
}

// AuthorizationEndpoint resolves the authorizationEndpoint field
func (r *ProviderResolver) AuthorizationEndpoint() string {
	return r.provider.AuthorizationEndpoint
}

// Scopes resolves the scopes field
func (r *ProviderResolver) Scopes() []*ScopeResolver {
	resolvers := make([]*ScopeResolver, len(r.provider.Scopes))
	for i, scope := range r.provider.Scopes {
		resolvers[i] = &ScopeResolver{scope: scope}
	}
	return resolvers
}

// ScopeResolver resolves the Scope GraphQL type
type ScopeResolver struct {
	scope providerdir.ScopeDescriptor
}

// Scope resolves the scope field
func (r *ScopeResolver) Scope() string {
	return r.scope.Scope
}

// Label resolves the label field
func (r *ScopeResolver) Label() string {
	return r.scope.Label()
}

// IconUrl resolves the iconUrl field
func (r *ScopeResolver) IconUrl() *string {
	if r.scope.IconURL == "" {
		return nil
	}
	return &r.scope.IconURL
}

// Description resolves the description field
func (r *ScopeResolver) Description() *string {
	if r.scope.Description == "" {
		return nil
	}
	return &r.scope.Description
}
