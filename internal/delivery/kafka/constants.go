package kafka

const (
	DefaultOutboundTopic = "checkout.to-host"
	DefaultInboundTopic  = "checkout.from-host"
	DefaultPartitionKey  = "checkout"

	headerTimestamp   = "timestamp"
	headerContentType = "content-type"
	contentTypeJSON   = "application/json"
)
