// Package nacostrace traces calls of a Nacos 2.x service-registry and config-center client.
//
// Every request the client can send or receive is one of a closed set of RequestKinds. Each
// kind maps to a row of a table saying whether the call is outbound (exit span) or a server
// push (entry span), how the operation is named and which tags it carries.
package nacostrace

import (
	"context"
	"fmt"

	"github.com/JailtonJunior94/tracekit/pkg/tracing"
)

// OperationPrefix starts every span name.
const OperationPrefix = "Nacos/"

// RequestKind identifies a Nacos request type.
type RequestKind int

const (
	RequestUnknown RequestKind = iota
	RequestInstance
	RequestServiceQuery
	RequestSubscribeService
	RequestServiceList
	RequestConfigQuery
	RequestConfigPublish
	RequestConfigRemove
	RequestNotifySubscriber
	RequestConfigChangeNotify
)

func (k RequestKind) String() string {
	if row, ok := requestTable[k]; ok {
		return row.name
	}
	return "Unknown"
}

// Request carries the fields of a Nacos request that end up on the span. Fields that do not
// apply to a kind are ignored.
type Request struct {
	Kind RequestKind

	Namespace   string
	Group       string
	ServiceName string

	// InstanceType is the instance operation, e.g. "registerInstance" or "deregisterInstance".
	InstanceType string

	// Subscribe distinguishes subscribe from unsubscribe for RequestSubscribeService.
	Subscribe bool

	DataID string
	Tenant string
}

type spanRole int

const (
	roleExit spanRole = iota
	roleEntry
)

type requestRow struct {
	name   string
	role   spanRole
	suffix func(req Request) string
	tags   func(span tracing.Span, req Request)
}

func constant(s string) func(Request) string {
	return func(Request) string { return s }
}

func serviceTags(span tracing.Span, req Request) {
	span.Tag(tracing.TagNamespace, req.Namespace).
		Tag(tracing.TagGroup, req.Group).
		Tag(tracing.TagServiceName, req.ServiceName)
}

func configTags(span tracing.Span, req Request) {
	span.Tag(tracing.TagDataID, req.DataID).
		Tag(tracing.TagGroup, req.Group).
		Tag(tracing.TagTenant, req.Tenant)
}

var requestTable = map[RequestKind]requestRow{
	RequestInstance: {
		name:   "InstanceRequest",
		role:   roleExit,
		suffix: func(req Request) string { return req.InstanceType },
		tags:   serviceTags,
	},
	RequestServiceQuery: {
		name:   "ServiceQueryRequest",
		role:   roleExit,
		suffix: constant("queryService"),
		tags:   serviceTags,
	},
	RequestSubscribeService: {
		name: "SubscribeServiceRequest",
		role: roleExit,
		suffix: func(req Request) string {
			if req.Subscribe {
				return "subscribeService"
			}
			return "unsubscribeService"
		},
		tags: serviceTags,
	},
	RequestServiceList: {
		name:   "ServiceListRequest",
		role:   roleExit,
		suffix: constant("getServiceList"),
		tags:   serviceTags,
	},
	RequestConfigQuery: {
		name:   "ConfigQueryRequest",
		role:   roleExit,
		suffix: constant("queryConfig"),
		tags:   configTags,
	},
	RequestConfigPublish: {
		name:   "ConfigPublishRequest",
		role:   roleExit,
		suffix: constant("publishConfig"),
		tags:   configTags,
	},
	RequestConfigRemove: {
		name:   "ConfigRemoveRequest",
		role:   roleExit,
		suffix: constant("removeConfig"),
		tags:   configTags,
	},
	RequestNotifySubscriber: {
		name:   "NotifySubscriberRequest",
		role:   roleEntry,
		suffix: constant("notifySubscribeChange"),
		tags: func(span tracing.Span, req Request) {
			span.Tag(tracing.TagGroup, req.Group).Tag(tracing.TagServiceName, req.ServiceName)
		},
	},
	RequestConfigChangeNotify: {
		name:   "ConfigChangeNotifyRequest",
		role:   roleEntry,
		suffix: constant("notifyConfigChange"),
		tags:   configTags,
	},
}

// Supported reports whether kind is traced.
func Supported(kind RequestKind) bool {
	_, ok := requestTable[kind]
	return ok
}

// OperationName returns the span name used for req.
func OperationName(req Request) (string, error) {
	row, ok := requestTable[req.Kind]
	if !ok {
		return "", fmt.Errorf("nacostrace: unsupported request kind %d", req.Kind)
	}
	return OperationPrefix + row.suffix(req), nil
}

// Client traces requests of one Nacos client connection.
type Client struct {
	manager *tracing.Manager
	peer    string
}

// NewClient returns a Client whose spans record server as peer, e.g. "nacos:8848".
func NewClient(manager *tracing.Manager, server string) *Client {
	return &Client{manager: manager, peer: server}
}

// Do runs call inside the span matching req. Outbound requests get an exit span, server
// pushes an entry span. Unsupported kinds run untraced.
func (c *Client) Do(ctx context.Context, req Request, call func(ctx context.Context) error) error {
	row, ok := requestTable[req.Kind]
	if !ok {
		return call(ctx)
	}

	name := OperationPrefix + row.suffix(req)
	var span tracing.Span
	if row.role == roleEntry {
		ctx, span = c.manager.CreateEntrySpan(ctx, name, nil)
		span.Tag(tracing.TagURL, c.peer)
	} else {
		ctx, span = c.manager.CreateExitSpan(ctx, name, c.peer)
	}
	span.SetComponent(tracing.ComponentNacos).SetLayer(tracing.LayerRPCFramework)
	row.tags(span, req)
	defer c.manager.StopSpanOnPanic(ctx)

	if err := call(ctx); err != nil {
		c.manager.StopSpanWithError(ctx, err)
		return err
	}
	c.manager.StopSpan(ctx)
	return nil
}
