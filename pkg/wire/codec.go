package wire

import (
	"encoding/binary"
	"errors"
)

var (
	// ErrInvalidFrame covers any structurally malformed frame: a
	// non-NUL-terminated URI, a negative-looking length, or similar.
	ErrInvalidFrame = errors.New("wire: invalid frame")
	// ErrUnknownVersion is returned for any header version other than
	// Version.
	ErrUnknownVersion = errors.New("wire: unknown control version")
	// ErrUnknownType is returned for any header type byte this codec
	// does not recognize.
	ErrUnknownType = errors.New("wire: unknown frame type")
	// ErrTruncated is returned when fewer bytes are present than the
	// frame's declared or minimum length requires.
	ErrTruncated = errors.New("wire: truncated frame")
)

const headerSize = 2 // {version, type}

// Size reports the exact number of bytes Encode will produce for f.
func Size(f Frame) int {
	switch v := f.(type) {
	case *CreateFrame:
		// version, type, gateway_message_version, uri_length(u16),
		// uri_type_tag, uri bytes + NUL, args_length(u32), args bytes.
		return headerSize + 1 + 2 + 1 + len(v.URI) + 1 + 4 + len(v.Args)
	case *StartFrame:
		return headerSize
	case *DestroyFrame:
		return headerSize
	case *ReplyFrame:
		return headerSize + 4
	default:
		return 0
	}
}

// Encode serializes f into a freshly allocated buffer of exactly Size(f)
// bytes.
func Encode(f Frame) []byte {
	buf := make([]byte, Size(f))
	EncodeInto(f, buf)
	return buf
}

// EncodeInto serializes f into buf, which must be at least Size(f) bytes.
func EncodeInto(f Frame, buf []byte) {
	buf[0] = Version
	buf[1] = byte(f.Type())
	i := headerSize
	switch v := f.(type) {
	case *CreateFrame:
		buf[i] = v.GatewayMessageVersion
		i++
		uriLen := len(v.URI) + 1 // the NUL terminator is part of the prefix
		binary.LittleEndian.PutUint16(buf[i:], uint16(uriLen))
		i += 2
		buf[i] = v.URIType
		i++
		i += copy(buf[i:], v.URI)
		buf[i] = 0
		i++
		binary.LittleEndian.PutUint32(buf[i:], uint32(len(v.Args)))
		i += 4
		copy(buf[i:], v.Args)
	case *StartFrame, *DestroyFrame:
		// header only
	case *ReplyFrame:
		binary.LittleEndian.PutUint32(buf[i:], uint32(v.Status))
	}
}

// Decode parses a frame out of b. It rejects unknown versions, unknown
// types, truncated input, and a length prefix that would read past the
// end of b -- and it allocates no owned memory until every such check
// has passed.
func Decode(b []byte) (Frame, error) {
	if len(b) < headerSize {
		return nil, ErrTruncated
	}
	version := b[0]
	if version != Version {
		return nil, ErrUnknownVersion
	}
	typ := FrameType(b[1])
	rest := b[headerSize:]

	switch typ {
	case TypeCreate:
		return decodeCreate(version, rest)
	case TypeStart:
		return &StartFrame{ControlVersion: version}, nil
	case TypeDestroy:
		return &DestroyFrame{ControlVersion: version}, nil
	case TypeReply:
		if len(rest) < 4 {
			return nil, ErrTruncated
		}
		status := int32(binary.LittleEndian.Uint32(rest))
		return &ReplyFrame{ControlVersion: version, Status: status}, nil
	default:
		return nil, ErrUnknownType
	}
}

func decodeCreate(version uint8, rest []byte) (Frame, error) {
	const fixedPrefix = 1 + 2 + 1 // gateway_message_version, uri_length, uri_type_tag
	if len(rest) < fixedPrefix {
		return nil, ErrTruncated
	}
	i := 0
	gmv := rest[i]
	i++
	uriLen := int(binary.LittleEndian.Uint16(rest[i:]))
	i += 2
	if uriLen < 1 {
		return nil, ErrInvalidFrame
	}
	uriType := rest[i]
	i++
	if len(rest)-i < uriLen {
		return nil, ErrTruncated
	}
	uriBytes := rest[i : i+uriLen]
	i += uriLen
	if uriBytes[uriLen-1] != 0 {
		return nil, ErrInvalidFrame
	}

	if len(rest)-i < 4 {
		return nil, ErrTruncated
	}
	argsLen := int(binary.LittleEndian.Uint32(rest[i:]))
	i += 4
	if argsLen < 0 || len(rest)-i < argsLen {
		return nil, ErrTruncated
	}

	// All validation is done; only now do we allocate. Zero-length args
	// decode as nil so a frame encoded with nil Args round-trips exactly.
	var args []byte
	if argsLen > 0 {
		args = make([]byte, argsLen)
		copy(args, rest[i:i+argsLen])
	}

	return &CreateFrame{
		ControlVersion:        version,
		GatewayMessageVersion: gmv,
		URIType:               uriType,
		URI:                   string(uriBytes[:uriLen-1]),
		Args:                  args,
	}, nil
}
