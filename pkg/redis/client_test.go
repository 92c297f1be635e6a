package redis

import (
	"testing"

	"github.com/cardd-labs/cardd-backend/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsFromConfigRequiresTarget(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)
}

func TestOptionsFromConfigParsesURL(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{
		URL:      "redis://:pw@localhost:6380/2",
		PoolSize: 15,
	})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 15, opts.PoolSize)
}

func TestNotifyChannelIsNamespacedPerUser(t *testing.T) {
	c := &Client{}
	assert.Equal(t, "cardd:notify:user-1", c.NotifyChannel("user-1"))
}
