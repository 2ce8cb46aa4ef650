package tracing

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// HeaderName is the header (or message property) that carries the encoded ContextCarrier.
const HeaderName = "sw8"

const carrierFieldCount = 8

var carrierEncoding = base64.StdEncoding.Strict()

// ContextCarrier is the cross-process form of a span's context.
type ContextCarrier struct {
	Sampled             bool
	TraceID             string
	ParentSegmentID     string
	ParentSpanID        int32
	ParentService       string
	ParentInstance      string
	ParentEndpoint      string
	AddressUsedAtClient string
}

// IsValid reports whether the carrier holds enough to link a segment to its parent.
func (c ContextCarrier) IsValid() bool {
	return c.TraceID != "" &&
		c.ParentSegmentID != "" &&
		c.ParentSpanID >= 0 &&
		c.ParentService != "" &&
		c.ParentInstance != ""
}

// Encode serializes the carrier as
// sampled-traceId-segmentId-spanId-parentService-parentInstance-parentEndpoint-peer,
// with string fields base64 encoded.
func (c ContextCarrier) Encode() string {
	sampled := "0"
	if c.Sampled {
		sampled = "1"
	}

	return strings.Join([]string{
		sampled,
		carrierEncoding.EncodeToString([]byte(c.TraceID)),
		carrierEncoding.EncodeToString([]byte(c.ParentSegmentID)),
		strconv.FormatInt(int64(c.ParentSpanID), 10),
		carrierEncoding.EncodeToString([]byte(c.ParentService)),
		carrierEncoding.EncodeToString([]byte(c.ParentInstance)),
		carrierEncoding.EncodeToString([]byte(c.ParentEndpoint)),
		carrierEncoding.EncodeToString([]byte(c.AddressUsedAtClient)),
	}, "-")
}

// DecodeCarrier parses an encoded carrier. Every failure wraps ErrCarrierFormat.
func DecodeCarrier(value string) (ContextCarrier, error) {
	parts := strings.Split(value, "-")
	if len(parts) != carrierFieldCount {
		return ContextCarrier{}, fmt.Errorf("%w: expected %d fields, got %d", ErrCarrierFormat, carrierFieldCount, len(parts))
	}

	var c ContextCarrier
	switch parts[0] {
	case "1":
		c.Sampled = true
	case "0":
	default:
		return ContextCarrier{}, fmt.Errorf("%w: invalid sampled flag %q", ErrCarrierFormat, parts[0])
	}

	spanID, err := strconv.ParseInt(parts[3], 10, 32)
	if err != nil {
		return ContextCarrier{}, fmt.Errorf("%w: invalid span id %q", ErrCarrierFormat, parts[3])
	}
	c.ParentSpanID = int32(spanID)

	fields := []struct {
		name string
		raw  string
		dst  *string
	}{
		{"trace id", parts[1], &c.TraceID},
		{"segment id", parts[2], &c.ParentSegmentID},
		{"service", parts[4], &c.ParentService},
		{"instance", parts[5], &c.ParentInstance},
		{"endpoint", parts[6], &c.ParentEndpoint},
		{"peer", parts[7], &c.AddressUsedAtClient},
	}
	for _, f := range fields {
		decoded, err := carrierEncoding.DecodeString(f.raw)
		if err != nil {
			return ContextCarrier{}, fmt.Errorf("%w: invalid %s: %w", ErrCarrierFormat, f.name, err)
		}
		*f.dst = string(decoded)
	}

	if !c.IsValid() {
		return ContextCarrier{}, fmt.Errorf("%w: missing required fields", ErrCarrierFormat)
	}
	return c, nil
}

func (c ContextCarrier) ref() SegmentRef {
	return SegmentRef{
		Type:                RefCrossProcess,
		TraceID:             c.TraceID,
		ParentSegmentID:     c.ParentSegmentID,
		ParentSpanID:        c.ParentSpanID,
		ParentService:       c.ParentService,
		ParentInstance:      c.ParentInstance,
		ParentEndpoint:      c.ParentEndpoint,
		AddressUsedAtClient: c.AddressUsedAtClient,
	}
}
