package nacostrace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JailtonJunior94/tracekit/pkg/reporter"
	"github.com/JailtonJunior94/tracekit/pkg/tracing"
)

func TestOperationName(t *testing.T) {
	cases := []struct {
		req  Request
		want string
	}{
		{Request{Kind: RequestInstance, InstanceType: "registerInstance"}, "Nacos/registerInstance"},
		{Request{Kind: RequestServiceQuery}, "Nacos/queryService"},
		{Request{Kind: RequestSubscribeService, Subscribe: true}, "Nacos/subscribeService"},
		{Request{Kind: RequestSubscribeService}, "Nacos/unsubscribeService"},
		{Request{Kind: RequestServiceList}, "Nacos/getServiceList"},
		{Request{Kind: RequestConfigQuery}, "Nacos/queryConfig"},
		{Request{Kind: RequestConfigPublish}, "Nacos/publishConfig"},
		{Request{Kind: RequestConfigRemove}, "Nacos/removeConfig"},
		{Request{Kind: RequestNotifySubscriber}, "Nacos/notifySubscribeChange"},
		{Request{Kind: RequestConfigChangeNotify}, "Nacos/notifyConfigChange"},
	}
	for _, tc := range cases {
		t.Run(tc.req.Kind.String(), func(t *testing.T) {
			got, err := OperationName(tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := OperationName(Request{Kind: RequestUnknown})
	assert.Error(t, err)
	assert.False(t, Supported(RequestUnknown))
	assert.Equal(t, "Unknown", RequestUnknown.String())
}

func newClient(t *testing.T) (*Client, *tracing.Manager, *reporter.Memory) {
	t.Helper()
	memory := reporter.NewMemory()
	manager, err := tracing.NewManager(tracing.DefaultConfig("registry-client"), tracing.WithListener(memory))
	require.NoError(t, err)
	return NewClient(manager, "nacos:8848"), manager, memory
}

func TestClient_ExitRequest(t *testing.T) {
	client, manager, memory := newClient(t)

	ctx, _ := manager.CreateLocalSpan(context.Background(), "bootstrap")
	err := client.Do(ctx, Request{
		Kind:        RequestServiceQuery,
		Namespace:   "public",
		Group:       "DEFAULT_GROUP",
		ServiceName: "orders",
	}, func(context.Context) error { return nil })
	require.NoError(t, err)
	manager.StopSpan(ctx)

	exit, ok := memory.Segments()[0].Span(1)
	require.True(t, ok)
	assert.Equal(t, tracing.SpanKindExit, exit.Kind)
	assert.Equal(t, "Nacos/queryService", exit.OperationName)
	assert.Equal(t, "nacos:8848", exit.Peer)
	assert.Equal(t, tracing.ComponentNacos, exit.Component)
	assert.Equal(t, tracing.LayerRPCFramework, exit.Layer)

	for key, want := range map[tracing.TagKey]string{
		tracing.TagNamespace:   "public",
		tracing.TagGroup:       "DEFAULT_GROUP",
		tracing.TagServiceName: "orders",
	} {
		got, ok := exit.TagValue(key)
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}
}

func TestClient_ServerPushIsEntry(t *testing.T) {
	client, _, memory := newClient(t)

	err := client.Do(context.Background(), Request{
		Kind:   RequestConfigChangeNotify,
		DataID: "orders.yaml",
		Group:  "DEFAULT_GROUP",
		Tenant: "prod",
	}, func(context.Context) error { return errors.New("listener failed") })
	require.Error(t, err)

	segments := memory.Segments()
	require.Len(t, segments, 1)
	entry, ok := segments[0].EntrySpan()
	require.True(t, ok)
	assert.Equal(t, "Nacos/notifyConfigChange", entry.OperationName)
	assert.True(t, entry.IsError)
	dataID, _ := entry.TagValue(tracing.TagDataID)
	assert.Equal(t, "orders.yaml", dataID)
	tenant, _ := entry.TagValue(tracing.TagTenant)
	assert.Equal(t, "prod", tenant)
}

func TestClient_UnsupportedKindRunsUntraced(t *testing.T) {
	client, manager, memory := newClient(t)

	called := false
	require.NoError(t, client.Do(context.Background(), Request{}, func(context.Context) error {
		called = true
		return nil
	}))

	assert.True(t, called)
	assert.Zero(t, memory.Len())
	assert.Zero(t, manager.ActiveContexts())
}

func TestClient_PanicStopsSpan(t *testing.T) {
	client, manager, memory := newClient(t)

	assert.PanicsWithValue(t, "listener bug", func() {
		_ = client.Do(context.Background(), Request{Kind: RequestConfigChangeNotify}, func(context.Context) error {
			panic("listener bug")
		})
	})

	assert.Zero(t, manager.ActiveContexts())
	segments := memory.Segments()
	require.Len(t, segments, 1)
	entry, ok := segments[0].EntrySpan()
	require.True(t, ok)
	assert.True(t, entry.IsError)
	require.NotEmpty(t, entry.Logs)
	assert.Equal(t, "panic: listener bug", entry.Logs[0].Message)
}
