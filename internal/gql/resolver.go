package gql

import (
	_ "embed"

	"github.com/graph-gophers/graphql-go"
	"go.uber.org/dig"

	"github.com/etendosoftware/sso-gateway/internal/dao/flowdao"
	"github.com/etendosoftware/sso-gateway/internal/dao/identitydao"
	"github.com/etendosoftware/sso-gateway/internal/providerdir"
	"github.com/etendosoftware/sso-gateway/internal/services"
)

//go:embed schema.graphqls
var schemaString string

type Config struct {
	dig.In

	Identities *identitydao.DAO
	Flows      *flowdao.DAO
	Directory  *providerdir.Client
	AppConfig  *services.Config
}

// Resolver is the root GraphQL resolver
type Resolver struct {
	identities *identitydao.DAO
	flows      *flowdao.DAO
	directory  *providerdir.Client
	appConfig  *services.Config
}

// NewResolver creates a new root resolver with the required dependencies
func NewResolver(config Config) *Resolver {
	return &Resolver{
		identities: config.Identities,
		flows:      config.Flows,
		directory:  config.Directory,
		appConfig:  config.AppConfig,
	}
}

// NewSchema creates a new GraphQL schema with the root resolver
func NewSchema(resolver *Resolver) (*graphql.Schema, error) {
	schema := graphql.MustParseSchema(schemaString, resolver)
	return schema, nil
}

// Ok returns "ok" for health checks
func (r *Resolver) Ok() string {
	return "ok"
}
