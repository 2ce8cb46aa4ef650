package reactive

import (
	"context"
	"fmt"

	"github.com/JailtonJunior94/tracekit/pkg/tracing"
)

type snapshotKey struct{}

// WithSnapshot stores snapshot in the subscriber context.
func WithSnapshot(ctx context.Context, snapshot tracing.ContextSnapshot) context.Context {
	return context.WithValue(ctx, snapshotKey{}, snapshot)
}

// SnapshotFrom returns the snapshot stored by WithSnapshot.
func SnapshotFrom(ctx context.Context) (tracing.ContextSnapshot, bool) {
	snapshot, ok := ctx.Value(snapshotKey{}).(tracing.ContextSnapshot)
	return snapshot, ok && snapshot.IsValid()
}

// PanicError wraps a value recovered from a panicking stage.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("reactive: panic: %v", e.Value)
}
