package gql

import (
	"context"
	"errors"

	apperrors "github.com/etendosoftware/sso-gateway/internal/errors"
)

// PendingFlow resolves the pendingFlow query - returns the pending link flow
// for a nonce, or null when none is outstanding
func (r *Resolver) PendingFlow(ctx context.Context, args struct {
	Nonce string
}) (*PendingFlowResolver, error) {
	record, err := r.flows.Find(ctx, args.Nonce)
	if err != nil {
		if errors.Is(err, apperrors.ErrFlowNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return newPendingFlowResolver(record), nil
}
