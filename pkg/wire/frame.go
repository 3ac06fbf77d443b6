// Package wire implements the control-frame codec: the fixed {version,
// type} header plus the type-specific, length-prefixed fields described
// by the binding's wire protocol. It is deliberately the only package
// that knows the byte layout; everything above it deals in Frame values.
package wire

// Version is the only control-protocol version this codec understands.
// A decode of a frame carrying any other version fails with
// ErrUnknownVersion.
const Version uint8 = 1

// FrameType tags the header's second byte.
type FrameType uint8

const (
	TypeCreate  FrameType = 1
	TypeStart   FrameType = 2
	TypeDestroy FrameType = 3
	TypeReply   FrameType = 4
)

// Frame is any control frame this codec can size, encode, and decode.
type Frame interface {
	Type() FrameType
}

// CreateFrame is ModuleCreate: it carries the gateway message version,
// the URI the Host should use for the data channel (the payload URI
// overrides whatever default the Host was configured with), and the
// opaque module_args bytes.
type CreateFrame struct {
	ControlVersion        uint8
	GatewayMessageVersion uint8
	URIType               uint8
	URI                   string
	Args                  []byte
}

func (*CreateFrame) Type() FrameType { return TypeCreate }

// StartFrame is ModuleStart.
type StartFrame struct {
	ControlVersion uint8
}

func (*StartFrame) Type() FrameType { return TypeStart }

// DestroyFrame is ModuleDestroy.
type DestroyFrame struct {
	ControlVersion uint8
}

func (*DestroyFrame) Type() FrameType { return TypeDestroy }

// ReplyFrame is ModuleReply. Status 0 means success; any other value
// means failure or that the module has terminated.
type ReplyFrame struct {
	ControlVersion uint8
	Status         int32
}

func (*ReplyFrame) Type() FrameType { return TypeReply }
