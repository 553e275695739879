package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/etendosoftware/sso-gateway/internal/dao/tokendao"
	apperrors "github.com/etendosoftware/sso-gateway/internal/errors"
)

// TokenRefresher exchanges a refresh token for a fresh access token. The
// middleware implements this against the upstream provider.
type TokenRefresher interface {
	Refresh(ctx context.Context, record tokendao.Record) (tokendao.Record, error)
}

// TokenRefresherFunc adapts a function to the TokenRefresher interface.
type TokenRefresherFunc func(ctx context.Context, record tokendao.Record) (tokendao.Record, error)

func (f TokenRefresherFunc) Refresh(ctx context.Context, record tokendao.Record) (tokendao.Record, error) {
	return f(ctx, record)
}

// TokenStore is the subset of tokendao.DAO the service needs.
type TokenStore interface {
	FindMatching(ctx context.Context, userID, provider, scopeSuffix string) ([]tokendao.Record, error)
	Put(ctx context.Context, input tokendao.PutInput) (tokendao.Record, error)
}

// TokenService resolves the stored OAuth access token a popup flow needs
// before it can navigate to the middleware. Any failure collapses into
// ErrTokenError: the UI treats all token failures identically.
type TokenService struct {
	tokens    TokenStore
	refresher TokenRefresher
}

// NewTokenService creates a TokenService. refresher may be nil, in which case
// expired tokens fail instead of being refreshed.
func NewTokenService(tokens TokenStore, refresher TokenRefresher) *TokenService {
	return &TokenService{
		tokens:    tokens,
		refresher: refresher,
	}
}

// AccessToken returns the user's access token for the given provider and
// scope suffix, e.g. ("google", "drive.file"). When several tokens match,
// the most recently updated wins.
func (s *TokenService) AccessToken(ctx context.Context, userID, provider, scopeSuffix string) (string, error) {
	logger := zerolog.Ctx(ctx)

	records, err := s.tokens.FindMatching(ctx, userID, provider, scopeSuffix)
	if err != nil {
		logger.Warn().Err(err).Str("provider", provider).Msg("Token lookup failed")
		return "", fmt.Errorf("%w: %v", apperrors.ErrTokenError, err)
	}
	if len(records) == 0 {
		logger.Info().Str("provider", provider).Str("scope", scopeSuffix).Msg("No stored token for user")
		return "", apperrors.ErrTokenError
	}

	best := records[0]
	for _, r := range records[1:] {
		if r.UpdatedAt > best.UpdatedAt {
			best = r
		}
	}

	if best.Expired(time.Now()) {
		refreshed, err := s.refresh(ctx, best)
		if err != nil {
			logger.Warn().Err(err).Str("key", best.SK.String()).Msg("Token refresh failed")
			return "", fmt.Errorf("%w: %v", apperrors.ErrTokenError, err)
		}
		best = refreshed
	}

	return best.AccessToken, nil
}

func (s *TokenService) refresh(ctx context.Context, record tokendao.Record) (tokendao.Record, error) {
	if s.refresher == nil || record.RefreshToken == "" {
		return tokendao.Record{}, fmt.Errorf("token expired and not refreshable")
	}

	refreshed, err := s.refresher.Refresh(ctx, record)
	if err != nil {
		return tokendao.Record{}, err
	}

	provider, scope := record.SK.Split()
	stored, err := s.tokens.Put(ctx, tokendao.PutInput{
		UserID:       record.PK.String(),
		Provider:     provider,
		Scope:        scope,
		AccessToken:  refreshed.AccessToken,
		RefreshToken: refreshed.RefreshToken,
		TokenType:    refreshed.TokenType,
		ValidUntil:   refreshed.ValidUntil,
	})
	if err != nil {
		return tokendao.Record{}, err
	}
	return stored, nil
}
