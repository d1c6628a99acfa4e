package oai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeIdentifier(t *testing.T) {
	assert.Equal(t, "abc-123._~", EncodeIdentifier("abc-123._~"))
	assert.Equal(t, "oai%3AEXAMPLE%3A1121", EncodeIdentifier("oai:EXAMPLE:1121"))
	assert.Equal(t, "a%2Fb%20c", EncodeIdentifier("a/b c"))
}

func TestIdentifierRoundTrip(t *testing.T) {
	for _, id := range []string{
		"oai:example.org:EX-000-000-000-001",
		"http://example.org/resource?id=12&v=3",
		"plain",
		"100% pure",
	} {
		decoded, err := DecodeIdentifier(EncodeIdentifier(id))
		require.NoError(t, err, id)
		assert.Equal(t, id, decoded)
	}
}
