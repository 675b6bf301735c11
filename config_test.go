package tandem

import (
	"testing"
	"time"

	"github.com/cloudbank/tandem/types"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	require.Equal(t, 100*time.Millisecond, config.LagThreshold)
	require.Equal(t, 5*time.Second, config.HealthCheckInterval)
	require.Equal(t, 5*time.Second, config.ProbeTimeout)
	require.Equal(t, 3, config.Retry.MaxAttempts)
	require.Equal(t, 100*time.Millisecond, config.Retry.BaseDelay)
	require.NotNil(t, config.TimestampProvider)
	require.NotNil(t, config.Metrics)
	require.NotNil(t, config.Logger)
}

func TestConfigValidate(t *testing.T) {
	t.Run("zero values normalize to defaults", func(t *testing.T) {
		config := &ClientConfig{}

		require.NoError(t, config.Validate())
		require.Equal(t, DefaultLagThreshold, config.LagThreshold)
		require.Equal(t, DefaultHealthCheckInterval, config.HealthCheckInterval)
		require.Equal(t, DefaultProbeTimeout, config.ProbeTimeout)
		require.Equal(t, DefaultMaxAttempts, config.Retry.MaxAttempts)
		require.Equal(t, DefaultRetryBaseDelay, config.Retry.BaseDelay)
		require.NotNil(t, config.TimestampProvider)
	})

	t.Run("negative values are rejected", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*ClientConfig)
		}{
			{"lag threshold", func(c *ClientConfig) { c.LagThreshold = -1 }},
			{"health check interval", func(c *ClientConfig) { c.HealthCheckInterval = -1 }},
			{"probe timeout", func(c *ClientConfig) { c.ProbeTimeout = -1 }},
			{"max attempts", func(c *ClientConfig) { c.Retry.MaxAttempts = -1 }},
			{"base delay", func(c *ClientConfig) { c.Retry.BaseDelay = -1 }},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.mutate(config)

				require.ErrorIs(t, config.Validate(), types.ErrInvalidConfig)
			})
		}
	})

	t.Run("explicit values survive", func(t *testing.T) {
		config := DefaultConfig()
		config.LagThreshold = 250 * time.Millisecond
		config.Retry.MaxAttempts = 5

		require.NoError(t, config.Validate())
		require.Equal(t, 250*time.Millisecond, config.LagThreshold)
		require.Equal(t, 5, config.Retry.MaxAttempts)
	})
}

func TestRetryPolicyDelay(t *testing.T) {
	policy := DefaultRetryPolicy()

	require.Equal(t, 100*time.Millisecond, policy.Delay(1))
	require.Equal(t, 200*time.Millisecond, policy.Delay(2))
	require.Equal(t, 300*time.Millisecond, policy.Delay(3))

	custom := RetryPolicy{MaxAttempts: 2, BaseDelay: 50 * time.Millisecond}
	require.Equal(t, 50*time.Millisecond, custom.Delay(1))
	require.Equal(t, 100*time.Millisecond, custom.Delay(2))
}

func TestOptionsApply(t *testing.T) {
	clock := func() int64 { return 7 }
	config := DefaultConfig()

	opts := []Option{
		WithLagThreshold(time.Second),
		WithHealthCheckInterval(10 * time.Second),
		WithProbeTimeout(time.Second),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 7, BaseDelay: time.Millisecond}),
		WithBackgroundProbing(),
		WithTimestampProvider(clock),
	}
	for _, opt := range opts {
		opt(config)
	}

	require.Equal(t, time.Second, config.LagThreshold)
	require.Equal(t, 10*time.Second, config.HealthCheckInterval)
	require.Equal(t, time.Second, config.ProbeTimeout)
	require.Equal(t, 7, config.Retry.MaxAttempts)
	require.Equal(t, time.Millisecond, config.Retry.BaseDelay)
	require.True(t, config.BackgroundProbing)
	require.Equal(t, int64(7), config.TimestampProvider())
}
