// Package transport wraps a symmetric, connection-style paired datagram
// socket -- the spec's "pair socket" -- on top of go.nanomsg.org/mangos/v3.
// A Proxy always dials; a Host always listens (the "reply role"). Both
// ipc:// and inproc:// endpoints are registered, the former for real
// cross-process deployments and the latter so tests can exercise the
// full Proxy/Host handshake without touching the filesystem.
package transport

import (
	"errors"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pair"
	_ "go.nanomsg.org/mangos/v3/transport/inproc"
	_ "go.nanomsg.org/mangos/v3/transport/ipc"
)

var (
	// ErrClosed is returned by Send/Recv once the socket has been closed.
	ErrClosed = errors.New("transport: closed")
	// ErrWouldBlock is the non-blocking-send analogue of EAGAIN.
	ErrWouldBlock = errors.New("transport: would block")
	// ErrTimeout is the receive-side analogue of ETIMEDOUT.
	ErrTimeout = errors.New("transport: timed out")
)

// tryWindow is the send deadline TrySend installs to approximate a
// non-blocking send: long enough to hand the payload to the transport's
// own buffer, short enough that a full peer looks like EAGAIN rather
// than a multi-second stall.
const tryWindow = 5 * time.Millisecond

// Socket is one end of a paired datagram connection.
type Socket struct {
	sock mangos.Socket
}

// OpenPair allocates a new, unconnected pair-protocol socket.
func OpenPair() (*Socket, error) {
	sock, err := pair.NewSocket()
	if err != nil {
		return nil, err
	}
	return &Socket{sock: sock}, nil
}

// Connect dials the remote endpoint. Used by the Proxy side, which never
// listens.
func (s *Socket) Connect(endpoint string) error {
	return s.sock.Dial(endpoint)
}

// Listen binds the local endpoint for the Host's reply role.
func (s *Socket) Listen(endpoint string) error {
	return s.sock.Listen(endpoint)
}

// SetRecvTimeout bounds the next and all subsequent Recv calls. A
// duration of 0 makes Recv return immediately (ErrTimeout) when nothing
// is pending, approximating a non-blocking poll.
func (s *Socket) SetRecvTimeout(d time.Duration) error {
	return s.sock.SetOption(mangos.OptionRecvDeadline, d)
}

// SetSendTimeout bounds the next and all subsequent Send/TrySend calls.
func (s *Socket) SetSendTimeout(d time.Duration) error {
	return s.sock.SetOption(mangos.OptionSendDeadline, d)
}

// Send blocks until b is handed off or the socket dies.
func (s *Socket) Send(b []byte) error {
	if err := s.sock.SetOption(mangos.OptionSendDeadline, time.Duration(0)); err != nil {
		return err
	}
	return mapSendErr(s.sock.Send(b))
}

// TrySend attempts to hand b off without blocking for long; a full peer
// or slow handshake partner surfaces as ErrWouldBlock rather than
// stalling the caller.
func (s *Socket) TrySend(b []byte) error {
	if err := s.sock.SetOption(mangos.OptionSendDeadline, tryWindow); err != nil {
		return err
	}
	return mapSendErr(s.sock.Send(b))
}

// Recv blocks (bounded by whatever SetRecvTimeout last installed) for
// the next message.
func (s *Socket) Recv() ([]byte, error) {
	b, err := s.sock.Recv()
	if err != nil {
		return nil, mapRecvErr(err)
	}
	return b, nil
}

// Close shuts the socket down. Closing a socket that is already closed
// returns nil; any other error is returned as is, and no close is
// retried.
func (s *Socket) Close() error {
	for {
		err := s.sock.Close()
		if err == nil || !errors.Is(err, mangos.ErrClosed) {
			return err
		}
		return nil
	}
}

func mapSendErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mangos.ErrSendTimeout):
		return ErrWouldBlock
	case errors.Is(err, mangos.ErrClosed):
		return ErrClosed
	default:
		return err
	}
}

func mapRecvErr(err error) error {
	switch {
	case errors.Is(err, mangos.ErrRecvTimeout):
		return ErrTimeout
	case errors.Is(err, mangos.ErrClosed):
		return ErrClosed
	default:
		return err
	}
}
