package tracingfx

import (
	"os"
	"strconv"

	"go.uber.org/fx"

	"github.com/JailtonJunior94/tracekit/pkg/tracing"
)

// ConfigModule provides tracing config from environment variables.
// Environment variables:
//   - TRACING_SERVICE_NAME: Service name (required)
//   - TRACING_INSTANCE_NAME: Instance name (default: host name)
//   - TRACING_SAMPLE_RATE: Sample rate between 0 and 1 (default: 1)
//   - TRACING_MAX_SPANS_PER_SEGMENT: Span limit per segment (default: 300)
//   - TRACING_STRICT_MODE: Panic on async lifecycle violations (default: false)
var ConfigModule = fx.Provide(ConfigFromEnv)

// ConfigFromEnv creates tracing config from environment variables.
func ConfigFromEnv() tracing.Config {
	cfg := tracing.DefaultConfig(os.Getenv("TRACING_SERVICE_NAME"))
	cfg.InstanceName = getEnv("TRACING_INSTANCE_NAME", cfg.InstanceName)
	cfg.SampleRate = getEnvFloat("TRACING_SAMPLE_RATE", cfg.SampleRate)
	cfg.MaxSpansPerSegment = getEnvInt("TRACING_MAX_SPANS_PER_SEGMENT", cfg.MaxSpansPerSegment)
	cfg.StrictMode = getEnvBool("TRACING_STRICT_MODE", cfg.StrictMode)
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
