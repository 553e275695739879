package gql

import (
	graphql "github.com/graph-gophers/graphql-go"

	"github.com/etendosoftware/sso-gateway/internal/dao/flowdao"
)

// PendingFlowResolver resolves the PendingFlow GraphQL type
type PendingFlowResolver struct {
	flow flowdao.Record
}

// newPendingFlowResolver creates a new PendingFlowResolver
func newPendingFlowResolver(flow flowdao.Record) *PendingFlowResolver {
	return &PendingFlowResolver{
		flow: flow,
	}
}

// Nonce resolves the nonce field
func (r *PendingFlowResolver) Nonce() graphql.ID {
	return graphql.ID(r.flow.PK.String())
}

// UserId resolves the userId field
func (r *PendingFlowResolver) UserId() string {
	return r.flow.UserID
}

// Provider resolves the provider field
func (r *PendingFlowResolver) Provider() string {
	return r.flow.Provider
}

// Scope resolves the scope field
func (r *PendingFlowResolver) Scope() *string {
	if r.flow.Scope == "" {
		return nil
	}
	return &r.flow.Scope
}

// CreatedAt resolves the createdAt field
func (r *PendingFlowResolver) CreatedAt() DateTime {
	return NewDateTimeFromUnix(r.flow.CreatedAt)
}
