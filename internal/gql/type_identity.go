package gql

import (
	graphql "github.com/graph-gophers/graphql-go"

	"github.com/etendosoftware/sso-gateway/internal/dao/identitydao"
)

// LinkedIdentityResolver resolves the LinkedIdentity GraphQL type
type LinkedIdentityResolver struct {
	identity identitydao.Record
}

// newLinkedIdentityResolver creates a new LinkedIdentityResolver
func newLinkedIdentityResolver(identity identitydao.Record) *LinkedIdentityResolver {
	return &LinkedIdentityResolver{
		identity: identity,
	}
}

// ID resolves the id field (format: {userId}:{provider})
func (r *LinkedIdentityResolver) ID() graphql.ID {
	return graphql.ID(r.identity.GetID())
}

// UserId resolves the userId field
func (r *LinkedIdentityResolver) UserId() string {
	return r.identity.PK.String()
}

// Provider resolves the provider field
func (r *LinkedIdentityResolver) Provider() string {
	return r.identity.SK
}

// Subject resolves the subject field
func (r *LinkedIdentityResolver) Subject() string {
	return r.identity.Subject
}

// Email resolves the email field
func (r *LinkedIdentityResolver) Email() *string {
	if r.identity.Email == "" {
		return nil
	}
	return &r.identity.Email
}

// Name resolves the name field
func (r *LinkedIdentityResolver) Name() *string {
	if r.identity.Name == "" {
		return nil
	}
	return &r.identity.Name
}

// LinkedAt resolves the linkedAt field
func (r *LinkedIdentityResolver) LinkedAt() DateTime {
	return NewDateTimeFromUnix(r.identity.LinkedAt)
}
