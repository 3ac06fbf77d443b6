package proxy

import (
	"errors"
	"time"

	"github.com/gwbridge/gwbridge/pkg/logging"
	"github.com/gwbridge/gwbridge/pkg/module"
	"github.com/gwbridge/gwbridge/pkg/transport"
	"github.com/gwbridge/gwbridge/pkg/wire"
)

// runReceiver is the data-path thread that moves messages from the Host
// to the broker: blocking recv on the message socket, decode, publish,
// destroy, repeat.
func (h *Handle) runReceiver() {
	defer h.receiver.wg.Done()
	for {
		if h.receiver.shouldStop() {
			return
		}

		h.mu.Lock()
		sock := h.msgSock
		h.mu.Unlock()
		if sock == nil {
			return
		}

		raw, err := sock.Recv()
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) || errors.Is(err, transport.ErrWouldBlock) {
				continue
			}
			return
		}

		payload, err := transport.Decompress(raw)
		if err != nil {
			h.cfg.Logger.Log(logging.Warn, "decompress data frame", "err", err)
			continue
		}
		msg, err := h.cfg.MessageCodec.FromBytes(payload)
		if err != nil {
			h.cfg.Logger.Log(logging.Warn, "decode data frame", "err", err)
			continue
		}
		if err := h.broker.Publish(h, msg); err != nil {
			h.cfg.Logger.Log(logging.Warn, "publish to broker failed", "err", err)
		}
		msg.Destroy()

		time.Sleep(receiverYield)
	}
}

// runSender is the data-path thread that drains the outgoing queue to
// the Host: pop under handle_lock, serialize, compress, send, destroy
// unconditionally (a send failure drops the message after logging, per
// the spec's non-goals).
func (h *Handle) runSender() {
	defer h.sender.wg.Done()
	for {
		if h.sender.shouldStop() {
			return
		}

		h.mu.Lock()
		msg, ok := h.queue.Pop()
		sock := h.msgSock
		h.mu.Unlock()

		if ok {
			h.sendOne(msg, sock)
		}

		time.Sleep(senderYield)
	}
}

func (h *Handle) sendOne(msg module.Message, sock *transport.Socket) {
	defer msg.Destroy()
	if sock == nil {
		return
	}
	buf := make([]byte, msg.Size())
	n, err := msg.Serialize(buf)
	if err != nil {
		h.cfg.Logger.Log(logging.Warn, "serialize data frame", "err", err)
		return
	}
	payload, err := transport.Compress(h.cfg.Compression, buf[:n])
	if err != nil {
		h.cfg.Logger.Log(logging.Warn, "compress data frame", "err", err)
		return
	}
	if err := sock.Send(payload); err != nil {
		h.cfg.Logger.Log(logging.Warn, "data frame dropped", "err", err)
	}
}

// runSupervisor watches the control channel for an unsolicited
// ModuleReply signaling remote failure, and transparently re-runs the
// Create/Start handshake when one arrives. Per spec.md §4.D step 4, a
// bare transport-level recv error (anything other than EAGAIN/timeout)
// ends the supervisor loop outright -- it does NOT trigger reattach; only
// an explicit ModuleReply{status != 0} does (see DESIGN.md's Open
// Question decision).
func (h *Handle) runSupervisor() {
	defer h.supervisor.wg.Done()
	for {
		if h.supervisor.shouldStop() {
			return
		}

		if h.needsReattach.Load() {
			h.attemptReattach()
		}

		h.mu.Lock()
		ctlSock := h.ctlSock
		h.mu.Unlock()
		if ctlSock == nil {
			return
		}

		if err := ctlSock.SetRecvTimeout(0); err != nil {
			return
		}
		raw, err := ctlSock.Recv()
		switch {
		case err == nil:
			if f, decErr := wire.Decode(raw); decErr == nil {
				if reply, ok := f.(*wire.ReplyFrame); ok && reply.Status != 0 {
					h.needsReattach.Store(true)
				}
			}
		case errors.Is(err, transport.ErrWouldBlock), errors.Is(err, transport.ErrTimeout):
			// nothing pending this tick
		default:
			return
		}

		time.Sleep(supervisorInterval)
	}
}

func (h *Handle) attemptReattach() {
	if err := h.runCreateHandshake(&h.supervisor); err != nil {
		h.cfg.Logger.Log(logging.Warn, "reattach failed, will retry", "err", err)
		return
	}

	h.mu.Lock()
	ctlSock := h.ctlSock
	h.mu.Unlock()
	if ctlSock != nil {
		if err := ctlSock.Send(encodeStart()); err != nil {
			h.cfg.Logger.Log(logging.Warn, "reattach start send failed", "err", err)
		}
	}
	h.needsReattach.Store(false)
}
