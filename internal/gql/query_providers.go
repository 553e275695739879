package gql

import (
	"context"

	"github.com/savaki/gox/slicex"
)

// Providers resolves the providers query - lists the linkable providers the
// middleware currently offers
func (r *Resolver) Providers(ctx context.Context) ([]*ProviderResolver, error) {
	providers, err := r.directory.ListProviders(ctx, r.appConfig.MiddlewareURL, r.appConfig.RedirectURI)
	if err != nil {
		return nil, err
	}

	return slicex.Map(providers, newProviderResolver), nil
}
