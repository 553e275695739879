package gql

import (
	"context"

	"github.com/rs/zerolog"
)

// UnlinkIdentity resolves the unlinkIdentity mutation - removes a linked
// external identity from an ERP user
func (r *Resolver) UnlinkIdentity(ctx context.Context, args struct {
	UserId   string
	Provider string
}) (bool, error) {
	logger := zerolog.Ctx(ctx)

	// Confirm the record exists so the response distinguishes a real unlink
	// from a no-op.
	if _, err := r.identities.Find(ctx, args.UserId, args.Provider); err != nil {
		logger.Debug().
			Str("user_id", args.UserId).
			Str("provider", args.Provider).
			Msg("Unlink requested for identity that is not linked")
		return false, nil
	}

	if err := r.identities.Unlink(ctx, args.UserId, args.Provider); err != nil {
		return false, err
	}

	logger.Info().
		Str("user_id", args.UserId).
		Str("provider", args.Provider).
		Msg("Identity unlinked")
	return true, nil
}
