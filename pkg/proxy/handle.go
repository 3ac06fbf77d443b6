// Package proxy implements the in-process half of the binding: it
// presents the standard module contract to the broker (ParseConfiguration
// /FreeConfiguration/Create/Start/Receive/Destroy) while the real module
// runs inside a Host process reached over two paired IPC sockets.
//
// The design is grounded directly on the teacher's broker/brokerCxn
// split (github.com/twmb/kafka-go, pkg/kgo/broker.go): a broker there owns
// a request-intake goroutine and lazily (re)dials a connection exactly
// like a Handle here owns its async-creator/supervisor pair; a
// brokerCxn's dieMu+dead-int32 pattern is the direct ancestor of the
// per-slot stop flag guarded by its own mutex.
package proxy

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gwbridge/gwbridge/pkg/logging"
	"github.com/gwbridge/gwbridge/pkg/module"
	"github.com/gwbridge/gwbridge/pkg/queue"
	"github.com/gwbridge/gwbridge/pkg/transport"
)

// threadSlot is spec.md §3's ThreadSlot: a lock guarding a stop flag (and,
// via the embedded WaitGroup, the goroutine's lifetime). Per invariant 1,
// handle_lock is never held while a threadSlot's lock is held -- every
// method here takes at most one lock at a time.
type threadSlot struct {
	mu   sync.Mutex
	stop bool
	wg   sync.WaitGroup
}

func (s *threadSlot) shouldStop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop
}

func (s *threadSlot) signalStop() {
	s.mu.Lock()
	s.stop = true
	s.mu.Unlock()
}

// Handle is the Proxy handle: spec.md §3's ProxyHandle.
type Handle struct {
	mu sync.Mutex // handle_lock: guards the block below it

	msgSock *transport.Socket
	ctlSock *transport.Socket
	queue   *queue.Queue[module.Message]

	controlURL string
	messageURL string
	moduleArgs []byte

	broker module.Broker
	cfg    Config

	creator    threadSlot
	receiver   threadSlot
	sender     threadSlot
	supervisor threadSlot

	creatorErr error // set by runCreator before its wg.Done(), read after wg.Wait()

	needsReattach atomic.Bool
	closed        atomic.Bool
}

// Create opens both sockets, clones the configuration, and spawns the
// async-creator goroutine that runs the Create handshake. In Sync mode it
// joins that goroutine and fails the call if the handshake failed,
// unwinding every resource allocated so far (invariant 5). In Async mode
// it returns immediately; a handshake failure only ever surfaces later as
// dropped sends (an explicit, if debatable, spec policy -- see
// DESIGN.md).
func Create(broker module.Broker, cfg *Config) (*Handle, error) {
	if broker == nil || cfg == nil {
		return nil, ErrInvalidArgument
	}

	h := &Handle{
		broker:     broker,
		cfg:        *cfg,
		queue:      queue.New[module.Message](),
		controlURL: cfg.ControlURL,
		messageURL: cfg.MessageURL,
		moduleArgs: append([]byte(nil), cfg.ModuleArgs...),
	}

	msgSock, err := transport.OpenPair()
	if err != nil {
		return nil, fmt.Errorf("proxy: open message socket: %w", err)
	}
	if err := msgSock.Connect(h.messageURL); err != nil {
		msgSock.Close()
		return nil, fmt.Errorf("proxy: connect message socket: %w", err)
	}

	ctlSock, err := transport.OpenPair()
	if err != nil {
		msgSock.Close()
		return nil, fmt.Errorf("proxy: open control socket: %w", err)
	}
	if err := ctlSock.Connect(h.controlURL); err != nil {
		msgSock.Close()
		ctlSock.Close()
		return nil, fmt.Errorf("proxy: connect control socket: %w", err)
	}

	h.msgSock = msgSock
	h.ctlSock = ctlSock

	h.creator.wg.Add(1)
	go h.runCreator()

	if cfg.LifecycleMode == Sync {
		h.creator.wg.Wait()
		if h.creatorErr != nil {
			h.mu.Lock()
			h.ctlSock.Close()
			h.msgSock.Close()
			h.ctlSock, h.msgSock = nil, nil
			h.mu.Unlock()
			return nil, fmt.Errorf("proxy: create failed: %w", h.creatorErr)
		}
	}

	return h, nil
}

// Start spawns the receiver, sender, and supervisor goroutines, in that
// order, then sends a ModuleStart frame. A failed Start send is logged;
// the goroutines keep running regardless.
func (h *Handle) Start() {
	if h == nil {
		return
	}

	h.receiver.wg.Add(1)
	go h.runReceiver()
	h.sender.wg.Add(1)
	go h.runSender()
	h.supervisor.wg.Add(1)
	go h.runSupervisor()

	h.mu.Lock()
	ctlSock := h.ctlSock
	h.mu.Unlock()
	if ctlSock == nil {
		return
	}
	if err := ctlSock.Send(encodeStart()); err != nil {
		h.cfg.Logger.Log(logging.Warn, "start frame send failed", "err", err)
	}
}

// Receive clones msg (preserving the caller's ownership of the original)
// and enqueues the clone for the sender goroutine to drain. A nil handle
// or nil message is a no-op; a clone failure is logged and the clone (if
// any) is destroyed rather than leaked.
func (h *Handle) Receive(msg module.Message) {
	if h == nil || msg == nil {
		return
	}
	clone, err := msg.Clone()
	if err != nil {
		h.cfg.Logger.Log(logging.Warn, "clone of incoming message failed", "err", err)
		if clone != nil {
			clone.Destroy()
		}
		return
	}
	h.mu.Lock()
	h.queue.Push(clone)
	h.mu.Unlock()
}

// Destroy is infallible from the caller's perspective: it best-effort
// sends a ModuleDestroy frame, closes both sockets, signals and joins
// every goroutine, and destroys any message still sitting in the queue.
// A second call is a no-op.
func (h *Handle) Destroy() {
	if h == nil {
		return
	}
	if !h.closed.CompareAndSwap(false, true) {
		return
	}

	h.mu.Lock()
	ctlSock := h.ctlSock
	h.mu.Unlock()

	if ctlSock != nil {
		h.sendDestroyBestEffort(ctlSock)
	}

	h.mu.Lock()
	if h.msgSock != nil {
		if err := h.msgSock.Close(); err != nil {
			h.cfg.Logger.Log(logging.Warn, "close message socket", "err", err)
		}
		h.msgSock = nil
	}
	if h.ctlSock != nil {
		if err := h.ctlSock.Close(); err != nil {
			h.cfg.Logger.Log(logging.Warn, "close control socket", "err", err)
		}
		h.ctlSock = nil
	}
	h.mu.Unlock()

	for _, slot := range [...]*threadSlot{&h.receiver, &h.sender, &h.supervisor, &h.creator} {
		slot.signalStop()
	}
	h.receiver.wg.Wait()
	h.sender.wg.Wait()
	h.supervisor.wg.Wait()
	h.creator.wg.Wait()

	h.mu.Lock()
	for {
		msg, ok := h.queue.Pop()
		if !ok {
			break
		}
		msg.Destroy()
	}
	h.mu.Unlock()
}

func (h *Handle) sendDestroyBestEffort(ctlSock *transport.Socket) {
	buf := encodeDestroy()
	attempts := h.cfg.DestroySendAttempts
	if attempts <= 0 {
		attempts = defaultDestroySendAttempts
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		err := ctlSock.TrySend(buf)
		if err == nil {
			return
		}
		lastErr = err
		if !errors.Is(err, transport.ErrWouldBlock) {
			break
		}
	}
	if lastErr != nil {
		h.cfg.Logger.Log(logging.Warn, "destroy frame best-effort send did not complete", "err", lastErr)
	}
}
