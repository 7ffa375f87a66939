package cache

import (
	"testing"

	"github.com/smallbiznis/qatech/internal/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func TestNewRedisClientUnconfigured(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	client, err := NewRedisClient(lc, config.Config{}, zap.NewNop())
	require.NoError(t, err)
	require.Nil(t, client)
}

func TestUnreachableRedisDoesNotBlockStartup(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	cfg := config.Config{}
	cfg.Redis.Addr = "127.0.0.1:1"

	client, err := NewRedisClient(lc, cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, client)

	lc.RequireStart()
	lc.RequireStop()
}
