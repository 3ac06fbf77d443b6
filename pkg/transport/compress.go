package transport

import (
	"bytes"
	"errors"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
)

// CompressionCodec selects an optional wrapper applied to data-channel
// payloads, below the wire codec and below the broker's own message
// format -- the binding still never interprets a DataFrame's contents,
// it only wraps and unwraps the byte envelope. The teacher (a Kafka
// client) picks among exactly these three codec families for
// record-batch compression; here they do the same job for the data
// channel.
type CompressionCodec uint8

const (
	CompressionNone CompressionCodec = iota
	CompressionSnappy
	CompressionLZ4
	CompressionZstd
)

// ErrUnknownCodec is returned by Decompress when the envelope's tag byte
// doesn't match any known codec.
var ErrUnknownCodec = errors.New("transport: unknown compression codec")

// ErrTruncatedEnvelope is returned by Decompress when the input is too
// short to even contain a tag byte.
var ErrTruncatedEnvelope = errors.New("transport: truncated compression envelope")

// Compress wraps b in a one-byte codec tag followed by the (possibly
// compressed) payload. A Host decodes the tag regardless of its own
// configured codec, so a rolling upgrade can mix Proxies running
// different codecs against one Host.
func Compress(codec CompressionCodec, b []byte) ([]byte, error) {
	switch codec {
	case CompressionNone:
		out := make([]byte, 1+len(b))
		out[0] = byte(CompressionNone)
		copy(out[1:], b)
		return out, nil

	case CompressionSnappy:
		enc := snappy.Encode(nil, b)
		out := make([]byte, 1+len(enc))
		out[0] = byte(CompressionSnappy)
		copy(out[1:], enc)
		return out, nil

	case CompressionLZ4:
		var buf bytes.Buffer
		buf.WriteByte(byte(CompressionLZ4))
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(b); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(b, []byte{byte(CompressionZstd)}), nil

	default:
		return nil, ErrUnknownCodec
	}
}

// Decompress reads the codec tag off the front of b and reverses
// whichever Compress call produced it.
func Decompress(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrTruncatedEnvelope
	}
	tag, payload := CompressionCodec(b[0]), b[1:]

	switch tag {
	case CompressionNone:
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil

	case CompressionSnappy:
		return snappy.Decode(nil, payload)

	case CompressionLZ4:
		r := lz4.NewReader(bytes.NewReader(payload))
		return io.ReadAll(r)

	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(payload, nil)

	default:
		return nil, ErrUnknownCodec
	}
}
