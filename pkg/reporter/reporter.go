// Package reporter delivers finished trace segments to a backend.
//
// A Sink does the I/O. Buffered sits between the tracing engine and a Sink: it is a
// tracing.SegmentListener that never blocks the goroutine finishing a segment, batches
// segments and retries failed sends with exponential backoff.
package reporter

import (
	"context"
	"errors"

	"github.com/JailtonJunior94/tracekit/pkg/tracing"
)

var (
	// ErrClosed is returned by operations on a closed reporter.
	ErrClosed = errors.New("reporter: closed")

	// ErrNilSink is returned when a Buffered reporter is built without a sink.
	ErrNilSink = errors.New("reporter: sink is nil")
)

// Sink ships a batch of segments. Send may be retried with the same batch, so sinks must
// tolerate duplicates. Return a Permanent error to stop retries.
type Sink interface {
	Send(ctx context.Context, segments []tracing.TraceSegment) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, segments []tracing.TraceSegment) error

func (f SinkFunc) Send(ctx context.Context, segments []tracing.TraceSegment) error {
	return f(ctx, segments)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
