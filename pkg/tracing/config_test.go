package tracing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("orders")

	assert.Equal(t, "orders", cfg.ServiceName)
	assert.NotEmpty(t, cfg.InstanceName)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.Equal(t, DefaultMaxSpansPerSegment, cfg.MaxSpansPerSegment)
	assert.False(t, cfg.StrictMode)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "missing service", mutate: func(c *Config) { c.ServiceName = "" }, wantErr: "ServiceName"},
		{name: "missing instance", mutate: func(c *Config) { c.InstanceName = "" }, wantErr: "InstanceName"},
		{name: "negative sample rate", mutate: func(c *Config) { c.SampleRate = -0.1 }, wantErr: "SampleRate"},
		{name: "sample rate above one", mutate: func(c *Config) { c.SampleRate = 1.5 }, wantErr: "SampleRate"},
		{name: "zero span limit", mutate: func(c *Config) { c.MaxSpansPerSegment = 0 }, wantErr: "MaxSpansPerSegment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("orders")
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateReportsEveryProblem(t *testing.T) {
	err := Config{}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ServiceName")
	assert.Contains(t, err.Error(), "InstanceName")
	assert.Contains(t, err.Error(), "MaxSpansPerSegment")
}

func TestNewManager_InvalidConfig(t *testing.T) {
	m, err := NewManager(Config{})
	assert.Nil(t, m)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRateSampler(t *testing.T) {
	assert.True(t, NewRateSampler(1).Sample())
	assert.False(t, NewRateSampler(0).Sample())
}

func TestIDGenerator(t *testing.T) {
	ids := NewIDGenerator()

	traceID := ids.NewTraceID()
	assert.Len(t, traceID, 32)
	assert.NotEqual(t, traceID, ids.NewTraceID())

	first, second := ids.NewSegmentID(), ids.NewSegmentID()
	assert.Len(t, first, 26)
	assert.Less(t, first, second)
}
