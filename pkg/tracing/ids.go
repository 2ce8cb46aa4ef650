package tracing

import (
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// IDGenerator mints trace and segment identifiers. Implementations must be safe for
// concurrent use.
type IDGenerator interface {
	NewTraceID() string
	NewSegmentID() string
}

type defaultIDGenerator struct{}

// NewIDGenerator returns the default generator: 32 hex chars (a random UUID) for trace ids,
// so they also fit W3C/OTel trace ids, and ULIDs for segment ids, which sort by creation time.
func NewIDGenerator() IDGenerator {
	return defaultIDGenerator{}
}

func (defaultIDGenerator) NewTraceID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// ulid.Make draws from a process-wide monotonic entropy source guarded by a mutex.
func (defaultIDGenerator) NewSegmentID() string {
	return ulid.Make().String()
}
