package gql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Schema parsing validates every resolver method against the SDL, so this
// catches drift between schema.graphqls and the Go resolvers.
func TestSchemaParses(t *testing.T) {
	resolver := NewResolver(Config{})

	schema, err := NewSchema(resolver)
	require.NoError(t, err)
	assert.NotNil(t, schema)
}

func TestOk(t *testing.T) {
	resolver := NewResolver(Config{})
	assert.Equal(t, "ok", resolver.Ok())
}
