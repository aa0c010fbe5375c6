package redis

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/smallbiznis/dormitory/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewReturnsNilWhenUnconfigured(t *testing.T) {
	client, err := New(nil, config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewConnects(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := New(nil, config.Config{RedisURL: "redis://" + mr.Addr() + "/0"}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(nil, config.Config{RedisURL: "mysql://nope"}, zap.NewNop())
	assert.Error(t, err)
}
