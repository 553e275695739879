package gql

import (
	"context"

	"github.com/savaki/gox/slicex"
)

// LinkedIdentities resolves the linkedIdentities query - lists all external
// identities linked to an ERP user
func (r *Resolver) LinkedIdentities(ctx context.Context, args struct {
	UserId string
}) ([]*LinkedIdentityResolver, error) {
	records, err := r.identities.ListByUser(ctx, args.UserId)
	if err != nil {
		return nil, err
	}

	return slicex.Map(records, newLinkedIdentityResolver), nil
}
