package tracing

// TagKey is a key of the fixed tag vocabulary shared by every adapter.
type TagKey string

const (
	TagURL            TagKey = "url"
	TagHTTPMethod     TagKey = "http.method"
	TagHTTPStatusCode TagKey = "http.status_code"
	TagHTTPRoute      TagKey = "http.route"

	TagRPCMethod     TagKey = "rpc.method"
	TagRPCStatusCode TagKey = "rpc.status_code"

	TagMQBroker   TagKey = "mq.broker"
	TagMQTopic    TagKey = "mq.topic"
	TagMQQueue    TagKey = "mq.queue"
	TagMQExchange TagKey = "mq.exchange"

	// Service registry / config center tags.
	TagNamespace   TagKey = "namespace"
	TagGroup       TagKey = "group"
	TagServiceName TagKey = "serviceName"
	TagDataID      TagKey = "dataId"
	TagTenant      TagKey = "tenant"
)

// SpanLayer classifies the kind of technology a span instruments.
type SpanLayer int

const (
	LayerUnknown SpanLayer = iota
	LayerDatabase
	LayerRPCFramework
	LayerHTTP
	LayerMQ
	LayerCache
)

func (l SpanLayer) String() string {
	switch l {
	case LayerDatabase:
		return "Database"
	case LayerRPCFramework:
		return "RPCFramework"
	case LayerHTTP:
		return "Http"
	case LayerMQ:
		return "MQ"
	case LayerCache:
		return "Cache"
	default:
		return "Unknown"
	}
}

// Component names the instrumented library.
type Component string

const (
	ComponentHTTPServer     Component = "http-server"
	ComponentHTTPClient     Component = "http-client"
	ComponentChi            Component = "chi"
	ComponentFiber          Component = "fiber"
	ComponentGRPC           Component = "grpc"
	ComponentKafkaProducer  Component = "kafka-producer"
	ComponentKafkaConsumer  Component = "kafka-consumer"
	ComponentAMQPProducer   Component = "rabbitmq-producer"
	ComponentAMQPConsumer   Component = "rabbitmq-consumer"
	ComponentNacos          Component = "nacos"
	ComponentReactiveServer Component = "reactive-server"
	ComponentReactiveClient Component = "reactive-client"
	ComponentRunner         Component = "runner"
)
