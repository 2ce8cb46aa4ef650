// Package grpctrace provides gRPC interceptors that open entry spans on servers and exit
// spans on clients, carrying the sw8 context in request metadata.
package grpctrace

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/JailtonJunior94/tracekit/pkg/tracing"
)

// UnaryServerInterceptor opens an entry span named after the full method.
func UnaryServerInterceptor(manager *tracing.Manager) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, span := startServerSpan(ctx, manager, info.FullMethod)
		defer manager.StopSpan(ctx)

		resp, err := handler(ctx, req)
		finishSpan(span, err)
		return resp, err
	}
}

// StreamServerInterceptor opens an entry span covering the whole stream.
func StreamServerInterceptor(manager *tracing.Manager) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, span := startServerSpan(ss.Context(), manager, info.FullMethod)
		defer manager.StopSpan(ctx)

		err := handler(srv, &serverStream{ServerStream: ss, ctx: ctx})
		finishSpan(span, err)
		return err
	}
}

func startServerSpan(ctx context.Context, manager *tracing.Manager, method string) (context.Context, tracing.Span) {
	var carrier *tracing.ContextCarrier
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		carrier = manager.Extract(MetadataCarrier(md))
	}

	ctx, span := manager.CreateEntrySpan(ctx, method, carrier)
	span.SetComponent(tracing.ComponentGRPC).
		SetLayer(tracing.LayerRPCFramework).
		Tag(tracing.TagRPCMethod, method)
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		span.Tag(tracing.TagURL, p.Addr.String())
	}
	return ctx, span
}

// UnaryClientInterceptor opens an exit span per call and writes the carrier to the outgoing
// metadata. Calls made outside a flow are not traced.
func UnaryClientInterceptor(manager *tracing.Manager) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx, span := manager.CreateExitSpan(ctx, method, cc.Target())
		defer manager.StopSpan(ctx)

		span.SetComponent(tracing.ComponentGRPC).
			SetLayer(tracing.LayerRPCFramework).
			Tag(tracing.TagRPCMethod, method)

		err := invoker(injectOutgoing(ctx, manager), method, req, reply, cc, opts...)
		finishSpan(span, err)
		return err
	}
}

func injectOutgoing(ctx context.Context, manager *tracing.Manager) context.Context {
	md, ok := metadata.FromOutgoingContext(ctx)
	if ok {
		md = md.Copy()
	} else {
		md = metadata.MD{}
	}
	manager.InjectHeaders(ctx, MetadataCarrier(md))
	return metadata.NewOutgoingContext(ctx, md)
}

func finishSpan(span tracing.Span, err error) {
	code := status.Code(err)
	span.Tag(tracing.TagRPCStatusCode, code.String())
	if err != nil {
		span.ErrorOccurred().LogError(err)
	}
}

type serverStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *serverStream) Context() context.Context {
	return s.ctx
}
