// Package module defines the contract exchanged between the gateway's
// broker and a pluggable module, and the capability set a Host drives on
// behalf of the real, embedded module. Everything in this package is a
// boundary type: the broker, the in-memory message representation, and
// the user module implementation are all external collaborators the rest
// of this binding only ever sees through these interfaces.
package module

// Message is the broker's in-memory message type. The binding never
// constructs a Message from scratch; it only clones instances handed to
// it, decodes them from the wire through a MessageCodec, and destroys
// them exactly once apiece.
type Message interface {
	// Clone returns an independent copy; ownership of the copy transfers
	// to the caller.
	Clone() (Message, error)

	// Size reports how many bytes Serialize will write. Callers use the
	// two-pass Size/Serialize protocol to size a transport buffer before
	// filling it, mirroring the broker's own serialize(msg, nil,
	// 0)/serialize(msg, buf, n) convention.
	Size() int

	// Serialize writes the message into buf, which must be at least
	// Size() bytes long, and returns the number of bytes written.
	Serialize(buf []byte) (int, error)

	// Destroy releases the message. Every message that is pushed onto the
	// outgoing queue, popped off it, published to the broker, or decoded
	// off the wire is destroyed exactly once, whether it was delivered
	// successfully or dropped.
	Destroy()
}

// MessageCodec decodes the opaque bytes read off the data channel into a
// Message. The binding forwards these bytes unexamined; only the codec
// (owned by the broker's message format, not this package) knows their
// shape.
type MessageCodec interface {
	FromBytes(b []byte) (Message, error)
}

// Broker is the gateway's in-process message bus. The Proxy's receiver
// goroutine calls Publish once per message the Host forwards from the
// embedded module.
type Broker interface {
	Publish(handle any, msg Message) error
}

// Config is an opaque, module-specific configuration value, as produced
// by VTable.ParseConfiguration.
type Config any

// VTable is the capability set a Host drives on control directives. A
// Host requires Create, Receive, and Destroy at minimum; Start,
// ParseConfiguration, and FreeConfiguration are optional.
type VTable struct {
	ParseConfiguration func(text []byte) (Config, error)
	FreeConfiguration  func(cfg Config)
	Create             func(broker Broker, cfg Config) (any, error)
	Start              func(handle any) error
	Receive            func(handle any, msg Message) error
	Destroy            func(handle any) error
}
