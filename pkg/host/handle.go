package host

import (
	"fmt"
	"sync"
	"time"

	"github.com/gwbridge/gwbridge/pkg/logging"
	"github.com/gwbridge/gwbridge/pkg/module"
	"github.com/gwbridge/gwbridge/pkg/transport"
	"github.com/gwbridge/gwbridge/pkg/wire"
)

// Handle is one attached session: a Proxy peer's control connection plus,
// once Create succeeds, the data-channel connection and the real
// module's own handle value.
type Handle struct {
	mu sync.Mutex

	ctlSock *transport.Socket
	msgSock *transport.Socket

	controlURL string
	messageURL string

	vtable       module.VTable
	broker       module.Broker
	userHandle   any
	connectionID int64
	registry     *Registry

	cfg Config

	lastActivity int64 // unix nanos, read/written only under mu

	worker workerThread
}

// Attach opens and listens on the control endpoint for one session and
// returns a Handle ready for DoWork. broker is the in-process bus the
// module's own Create call will be given; it is distinct from the Proxy
// side's broker.Publish path, which a Handle never calls directly.
//
// When cfg.Registry is set, Attach registers the new Handle under
// connectionID before returning, failing with ErrRegistryFull or
// ErrDuplicateConnectionID (and closing the sockets it opened) rather
// than handing back a session the registry never tracked -- capacity and
// uniqueness are enforced as part of Attach itself, not left to a
// separate Registry.Put call a caller might forget.
func Attach(vtable module.VTable, broker module.Broker, connectionID int64, cfg *Config, opts ...Option) (*Handle, error) {
	if vtable.Create == nil || vtable.Receive == nil || vtable.Destroy == nil {
		return nil, ErrIncompleteVTable
	}
	if connectionID == 0 {
		return nil, ErrInvalidConnectionID
	}
	if cfg == nil {
		return nil, fmt.Errorf("host: nil config")
	}

	merged := *cfg
	for _, opt := range opts {
		opt(&merged)
	}

	ctlSock, err := transport.OpenPair()
	if err != nil {
		return nil, fmt.Errorf("host: open control socket: %w", err)
	}
	if err := ctlSock.Listen(merged.ControlURL); err != nil {
		ctlSock.Close()
		return nil, fmt.Errorf("host: listen control socket: %w", err)
	}

	h := &Handle{
		ctlSock:      ctlSock,
		controlURL:   merged.ControlURL,
		messageURL:   merged.MessageURL,
		vtable:       vtable,
		broker:       broker,
		connectionID: connectionID,
		registry:     merged.Registry,
		cfg:          merged,
		lastActivity: time.Now().UnixNano(),
	}

	if merged.Registry != nil {
		if err := merged.Registry.Put(h); err != nil {
			ctlSock.Close()
			return nil, err
		}
	}

	return h, nil
}

// ConnectionID returns the session's connection identifier, the
// registry's sort key.
func (h *Handle) ConnectionID() int64 { return h.connectionID }

func (h *Handle) touch() {
	h.mu.Lock()
	h.lastActivity = time.Now().UnixNano()
	h.mu.Unlock()
}

// LastActivity reports the last time control or data traffic was seen.
func (h *Handle) LastActivity() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return time.Unix(0, h.lastActivity)
}

// DoWork polls both channels once, non-blockingly, dispatching whatever
// is pending. A long-running process calls this on a timer (see
// worker.go) or from its own event loop.
func (h *Handle) DoWork() error {
	if err := h.pollControl(); err != nil {
		return err
	}
	return h.pollData()
}

func (h *Handle) pollControl() error {
	h.mu.Lock()
	ctlSock := h.ctlSock
	h.mu.Unlock()
	if ctlSock == nil {
		return nil
	}
	if err := ctlSock.SetRecvTimeout(0); err != nil {
		return err
	}
	raw, err := ctlSock.Recv()
	if err != nil {
		if err == transport.ErrTimeout || err == transport.ErrWouldBlock {
			return nil
		}
		return err
	}
	h.touch()

	f, err := wire.Decode(raw)
	if err != nil {
		h.cfg.Logger.Log(logging.Warn, "host: malformed control frame", "err", err)
		return nil
	}
	switch frame := f.(type) {
	case *wire.CreateFrame:
		return h.handleCreate(frame)
	case *wire.StartFrame:
		return h.handleStart()
	case *wire.DestroyFrame:
		return h.handleDestroy()
	default:
		h.cfg.Logger.Log(logging.Warn, "host: unexpected control frame", "type", frame.Type())
		return nil
	}
}

func (h *Handle) handleCreate(f *wire.CreateFrame) error {
	var cfg module.Config
	var err error
	if h.vtable.ParseConfiguration != nil {
		cfg, err = h.vtable.ParseConfiguration(f.Args)
		if err != nil {
			return h.reply(1)
		}
	}

	userHandle, createErr := h.vtable.Create(h.broker, cfg)
	if h.vtable.FreeConfiguration != nil {
		h.vtable.FreeConfiguration(cfg)
	}
	if createErr != nil {
		h.cfg.Logger.Log(logging.Warn, "host: module create failed", "err", createErr)
		return h.reply(1)
	}

	dataURL := f.URI
	if dataURL == "" {
		dataURL = h.messageURL
	}
	msgSock, err := transport.OpenPair()
	if err != nil {
		h.cfg.Logger.Log(logging.Warn, "host: open message socket failed", "err", err)
		return h.reply(1)
	}
	if err := msgSock.Listen(dataURL); err != nil {
		msgSock.Close()
		h.cfg.Logger.Log(logging.Warn, "host: listen message socket failed", "err", err)
		return h.reply(1)
	}

	h.mu.Lock()
	h.userHandle = userHandle
	h.msgSock = msgSock
	h.mu.Unlock()

	return h.reply(0)
}

func (h *Handle) handleStart() error {
	h.mu.Lock()
	userHandle := h.userHandle
	h.mu.Unlock()
	if h.vtable.Start == nil {
		return nil
	}
	if err := h.vtable.Start(userHandle); err != nil {
		h.cfg.Logger.Log(logging.Warn, "host: module start failed", "err", err)
	}
	return nil
}

func (h *Handle) handleDestroy() error {
	h.mu.Lock()
	userHandle := h.userHandle
	msgSock := h.msgSock
	h.msgSock = nil
	h.mu.Unlock()

	if err := h.vtable.Destroy(userHandle); err != nil {
		h.cfg.Logger.Log(logging.Warn, "host: module destroy failed", "err", err)
	}
	if msgSock != nil {
		msgSock.Close()
	}
	return nil
}

func (h *Handle) reply(status int32) error {
	h.mu.Lock()
	ctlSock := h.ctlSock
	h.mu.Unlock()
	if ctlSock == nil {
		return nil
	}
	return ctlSock.Send(wire.Encode(&wire.ReplyFrame{Status: status}))
}

func (h *Handle) pollData() error {
	h.mu.Lock()
	msgSock := h.msgSock
	h.mu.Unlock()
	if msgSock == nil {
		return nil
	}
	if err := msgSock.SetRecvTimeout(0); err != nil {
		return err
	}
	raw, err := msgSock.Recv()
	if err != nil {
		if err == transport.ErrTimeout || err == transport.ErrWouldBlock {
			return nil
		}
		return err
	}
	h.touch()

	payload, err := transport.Decompress(raw)
	if err != nil {
		h.cfg.Logger.Log(logging.Warn, "host: decompress data frame", "err", err)
		return nil
	}
	msg, err := h.cfg.MessageCodec.FromBytes(payload)
	if err != nil {
		h.cfg.Logger.Log(logging.Warn, "host: decode data frame", "err", err)
		return nil
	}

	h.mu.Lock()
	userHandle := h.userHandle
	h.mu.Unlock()
	if err := h.vtable.Receive(userHandle, msg); err != nil {
		h.cfg.Logger.Log(logging.Warn, "host: module receive failed", "err", err)
	}
	msg.Destroy()
	return nil
}

// Send forwards a message from the module to the attached Proxy over the
// data channel.
func (h *Handle) Send(msg module.Message) error {
	h.mu.Lock()
	msgSock := h.msgSock
	h.mu.Unlock()
	if msgSock == nil {
		return ErrNoMessageSocket
	}
	defer msg.Destroy()

	buf := make([]byte, msg.Size())
	n, err := msg.Serialize(buf)
	if err != nil {
		return err
	}
	payload, err := transport.Compress(h.cfg.Compression, buf[:n])
	if err != nil {
		return err
	}
	return msgSock.Send(payload)
}

// Detach halts any running worker thread, closes both sockets, and (if
// attached under a Registry) removes the session so a later Attach with
// the same connection ID does not see it as a duplicate. It does not
// call the module's Destroy -- callers that want a clean module shutdown
// should let handleDestroy run first, or call vtable.Destroy themselves.
func (h *Handle) Detach() {
	_ = h.HaltWorkerThread()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.msgSock != nil {
		h.msgSock.Close()
		h.msgSock = nil
	}
	if h.ctlSock != nil {
		h.ctlSock.Close()
		h.ctlSock = nil
	}
	if h.registry != nil {
		h.registry.Remove(h.connectionID)
	}
}
