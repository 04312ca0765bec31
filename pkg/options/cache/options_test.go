package cache

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Validate(t *testing.T) {
	o := NewOptions()
	o.Redis.Port = 0
	assert.Empty(t, o.Validate(), "disabled cache skips redis validation")

	o.Enabled = true
	assert.Len(t, o.Validate(), 1)

	o.Redis.Port = 6379
	o.TTL = 0
	assert.Len(t, o.Validate(), 1)
}

func TestOptions_AddFlags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{"--cache.embedding-enabled", "--cache.redis.host=redis", "--cache.ttl=5m"}))
	assert.True(t, o.Any())
	assert.False(t, o.Enabled)
	assert.Equal(t, "redis", o.Redis.Host)
	assert.Equal(t, "redis:6379", o.Redis.Addr())
	assert.Equal(t, "5m0s", o.TTL.String())
}
