package tracing

import "errors"

var (
	// ErrContextState is reported when an operation needs an active execution context and the
	// flow has none (an exit span without an entry point, stopping a span that was never created).
	ErrContextState = errors.New("tracing: no active execution context")

	// ErrCarrierFormat is reported when an inbound carrier cannot be decoded. The carrier is then
	// treated as absent.
	ErrCarrierFormat = errors.New("tracing: malformed context carrier")

	// ErrAsyncLifecycle is reported when an async span is finished twice or was never prepared.
	ErrAsyncLifecycle = errors.New("tracing: invalid async span lifecycle")

	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("tracing: invalid config")

	// ErrListenerNil is returned when a nil listener is registered.
	ErrListenerNil = errors.New("tracing: listener cannot be nil")

	// ErrListenerAlreadyRegistered is returned when the same listener is registered twice.
	ErrListenerAlreadyRegistered = errors.New("tracing: listener already registered")
)
