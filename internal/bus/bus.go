// Package bus adapts the in-process components to the external MQTT-style
// message fabric. Payloads are self-describing JSON validated against
// per-topic schemas at this boundary.
package bus

// Handler receives messages for a subscription. Payload is the raw JSON
// after schema validation; handlers must tolerate unknown fields.
type Handler func(topic string, payload []byte)

// Bus is the pub/sub surface every component depends on. Implementations:
// Client (MQTT broker) and MemoryBus (in-process, tests and single-binary
// runs).
type Bus interface {
	// Publish sends a JSON-marshalable payload. Delivery is best-effort
	// ordered per (publisher, topic); there is no cross-topic ordering.
	Publish(topic string, payload any) error

	// Subscribe registers a handler for a topic filter. Filters use MQTT
	// semantics: '+' matches one level, '#' the remaining levels.
	Subscribe(filter string, handler Handler) error

	// Close releases the connection. Buffered messages not yet flushed are
	// dropped.
	Close()
}
