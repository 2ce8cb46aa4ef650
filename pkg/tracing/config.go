package tracing

import (
	"errors"
	"fmt"
	"os"
)

const (
	// DefaultMaxSpansPerSegment bounds how many recording spans one segment may hold.
	DefaultMaxSpansPerSegment = 300
)

// Config holds the engine configuration.
type Config struct {
	// ServiceName identifies this process in propagated carriers (required).
	ServiceName string

	// InstanceName identifies this replica of the service (required).
	// Default: host name, or "unknown" when it cannot be read.
	InstanceName string

	// SampleRate is the probability that a fresh trace is sampled, between 0 and 1.
	// Continued and extracted traces keep the upstream decision.
	// Default: 1.0
	SampleRate float64

	// MaxSpansPerSegment caps the recording spans of one segment. Spans created past the cap
	// are inert but keep the stack balanced.
	// Default: 300
	MaxSpansPerSegment int

	// StrictMode turns async lifecycle violations (double finish, finish without prepare)
	// into panics. Meant for tests and development builds.
	// Default: false
	StrictMode bool
}

// DefaultConfig returns a Config with sensible defaults for serviceName.
func DefaultConfig(serviceName string) Config {
	instance, err := os.Hostname()
	if err != nil || instance == "" {
		instance = "unknown"
	}

	return Config{
		ServiceName:        serviceName,
		InstanceName:       instance,
		SampleRate:         1.0,
		MaxSpansPerSegment: DefaultMaxSpansPerSegment,
	}
}

// Validate checks the configuration and reports every problem found.
func (c Config) Validate() error {
	var errs []error

	if c.ServiceName == "" {
		errs = append(errs, errors.New("ServiceName is required and cannot be empty"))
	}

	if c.InstanceName == "" {
		errs = append(errs, errors.New("InstanceName is required and cannot be empty"))
	}

	if c.SampleRate < 0 || c.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("SampleRate must be between 0 and 1, got %v", c.SampleRate))
	}

	if c.MaxSpansPerSegment <= 0 {
		errs = append(errs, errors.New("MaxSpansPerSegment must be greater than 0"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	return nil
}
