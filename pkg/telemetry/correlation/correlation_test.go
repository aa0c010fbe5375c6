package correlation

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "apply-1")
	ctx, cid := EnsureCorrelationID(ctx)
	assert.Equal(t, "apply-1", cid)
	assert.Equal(t, "apply-1", ExtractCorrelationID(ctx))
}

func TestEnsureCorrelationIDMintsULID(t *testing.T) {
	ctx, cid := EnsureCorrelationID(context.Background())
	_, err := ulid.Parse(cid)
	require.NoError(t, err)
	assert.Equal(t, cid, ExtractCorrelationID(ctx))
}
