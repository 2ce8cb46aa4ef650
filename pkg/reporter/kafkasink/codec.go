package kafkasink

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/JailtonJunior94/tracekit/pkg/tracing"
)

// ContentType is the content-type header of every message written by the sink.
const ContentType = "application/vnd.tracekit.segment+json"

type segmentMessage struct {
	TraceID   string        `json:"traceId"`
	SegmentID string        `json:"segmentId"`
	Service   string        `json:"service"`
	Instance  string        `json:"instance"`
	Refs      []refMessage  `json:"refs,omitempty"`
	Spans     []spanMessage `json:"spans"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
}

type refMessage struct {
	Type                string `json:"type"`
	TraceID             string `json:"traceId"`
	ParentSegmentID     string `json:"parentSegmentId"`
	ParentSpanID        int32  `json:"parentSpanId"`
	ParentService       string `json:"parentService"`
	ParentInstance      string `json:"parentInstance"`
	ParentEndpoint      string `json:"parentEndpoint,omitempty"`
	AddressUsedAtClient string `json:"addressUsedAtClient,omitempty"`
}

type spanMessage struct {
	SpanID        int32             `json:"spanId"`
	ParentSpanID  int32             `json:"parentSpanId"`
	Kind          string            `json:"kind"`
	OperationName string            `json:"operationName"`
	Component     string            `json:"component,omitempty"`
	Layer         string            `json:"layer"`
	Peer          string            `json:"peer,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
	Logs          []logMessage      `json:"logs,omitempty"`
	IsError       bool              `json:"isError"`
	Async         bool              `json:"async,omitempty"`
	Refs          []refMessage      `json:"refs,omitempty"`
	StartTime     time.Time         `json:"startTime"`
	EndTime       time.Time         `json:"endTime"`
}

type logMessage struct {
	Time    time.Time `json:"time"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
}

// Encode renders a segment as the JSON document written to Kafka.
func Encode(segment tracing.TraceSegment) ([]byte, error) {
	msg := segmentMessage{
		TraceID:   segment.TraceID,
		SegmentID: segment.SegmentID,
		Service:   segment.Service,
		Instance:  segment.Instance,
		Refs:      encodeRefs(segment.Refs),
		Spans:     make([]spanMessage, 0, len(segment.Spans)),
		StartTime: segment.StartTime,
		EndTime:   segment.EndTime,
	}

	for _, span := range segment.Spans {
		sm := spanMessage{
			SpanID:        span.SpanID,
			ParentSpanID:  span.ParentSpanID,
			Kind:          span.Kind.String(),
			OperationName: span.OperationName,
			Component:     string(span.Component),
			Layer:         span.Layer.String(),
			Peer:          span.Peer,
			IsError:       span.IsError,
			Async:         span.Async,
			Refs:          encodeRefs(span.Refs),
			StartTime:     span.StartTime,
			EndTime:       span.EndTime,
		}
		if len(span.Tags) > 0 {
			sm.Tags = make(map[string]string, len(span.Tags))
			for _, tag := range span.Tags {
				sm.Tags[string(tag.Key)] = tag.Value
			}
		}
		for _, entry := range span.Logs {
			sm.Logs = append(sm.Logs, logMessage{Time: entry.Time, Kind: entry.Kind, Message: entry.Message})
		}
		msg.Spans = append(msg.Spans, sm)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode segment %s: %w", segment.SegmentID, err)
	}
	return data, nil
}

func encodeRefs(refs []tracing.SegmentRef) []refMessage {
	if len(refs) == 0 {
		return nil
	}
	out := make([]refMessage, 0, len(refs))
	for _, ref := range refs {
		out = append(out, refMessage{
			Type:                ref.Type.String(),
			TraceID:             ref.TraceID,
			ParentSegmentID:     ref.ParentSegmentID,
			ParentSpanID:        ref.ParentSpanID,
			ParentService:       ref.ParentService,
			ParentInstance:      ref.ParentInstance,
			ParentEndpoint:      ref.ParentEndpoint,
			AddressUsedAtClient: ref.AddressUsedAtClient,
		})
	}
	return out
}
