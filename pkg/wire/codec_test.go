package wire

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
)

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		f    Frame
	}{
		{"create", &CreateFrame{
			ControlVersion:        Version,
			GatewayMessageVersion: 1,
			URIType:               0,
			URI:                   "ipc:///tmp/msg.sock",
			Args:                  []byte(`{"k":"v"}`),
		}},
		{"create-empty-args", &CreateFrame{
			ControlVersion: Version,
			URI:            "ipc:///tmp/msg.sock",
		}},
		{"create-empty-uri", &CreateFrame{
			ControlVersion: Version,
			URI:            "",
			Args:           []byte("x"),
		}},
		{"start", &StartFrame{ControlVersion: Version}},
		{"destroy", &DestroyFrame{ControlVersion: Version}},
		{"reply-ok", &ReplyFrame{ControlVersion: Version, Status: 0}},
		{"reply-fail", &ReplyFrame{ControlVersion: Version, Status: -7}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := Encode(tc.f)
			if len(buf) != Size(tc.f) {
				t.Fatalf("Size() = %d, Encode produced %d bytes", Size(tc.f), len(buf))
			}
			got, err := Decode(buf)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if diff := cmp.Diff(tc.f, got); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s\nwant: %s\ngot:  %s",
					diff, spew.Sdump(tc.f), spew.Sdump(got))
			}
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	cases := []struct {
		name string
		b    []byte
	}{
		{"empty", nil},
		{"short-header", []byte{1}},
		{"bad-version", []byte{99, byte(TypeStart)}},
		{"bad-type", []byte{Version, 0xEE}},
		{"truncated-reply", []byte{Version, byte(TypeReply), 0, 0}},
		{"truncated-create-prefix", []byte{Version, byte(TypeCreate), 0}},
		{"create-uri-len-overflow", append([]byte{Version, byte(TypeCreate), 1, 0xFF, 0xFF, 0}, make([]byte, 4)...)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.b); err == nil {
				t.Fatalf("Decode(%v) succeeded, want error", tc.b)
			}
		})
	}
}

func TestDecodeCreateRejectsMissingNUL(t *testing.T) {
	// uri_length = 3 but the 3rd byte isn't a NUL terminator.
	b := []byte{Version, byte(TypeCreate), 1, 3, 0, 0, 'a', 'b', 'c', 0, 0, 0, 0}
	if _, err := Decode(b); err != ErrInvalidFrame {
		t.Fatalf("Decode = %v, want ErrInvalidFrame", err)
	}
}
