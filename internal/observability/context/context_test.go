package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "  req-1 ")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))

	assert.Equal(t, "", RequestIDFromContext(WithRequestID(context.Background(), " ")))
}

func TestActorDefaultsToEmpty(t *testing.T) {
	role, id := ActorFromContext(context.Background())
	assert.Empty(t, role)
	assert.Empty(t, id)

	role, id = ActorFromContext(WithActor(context.Background(), "floor_manager", "u-7"))
	assert.Equal(t, "floor_manager", role)
	assert.Equal(t, "u-7", id)
}
