package proxy

import (
	"errors"
	"time"

	"github.com/gwbridge/gwbridge/pkg/logging"
	"github.com/gwbridge/gwbridge/pkg/transport"
	"github.com/gwbridge/gwbridge/pkg/wire"
)

// runCreateHandshake is the single routine the design notes ask for:
// "Handshake retry loop inlined twice (creator and supervisor): factor
// into one routine run_create_handshake(handle) reused by both." Both the
// async-creator goroutine and the supervisor's reattach path call this.
//
// It keeps retrying the Create frame until: the calling slot is signaled
// to stop, a ModuleReply with status 0 arrives (success), a ModuleReply
// with non-zero status arrives (rejected), a hard send/recv error occurs,
// or CreateTimeout elapses (the spec leaves the total retry bound
// implementation-defined; this is that bound).
func (h *Handle) runCreateHandshake(slot *threadSlot) error {
	h.mu.Lock()
	ctlSock := h.ctlSock
	waitMS := h.cfg.DefaultWaitMS
	h.mu.Unlock()
	if ctlSock == nil {
		return ErrStopped
	}

	buf := h.encodeCreate()
	wait := time.Duration(waitMS) * time.Millisecond
	deadline := time.Now().Add(h.cfg.CreateTimeout)

	if err := ctlSock.SetRecvTimeout(wait); err != nil {
		return err
	}

	for {
		if slot.shouldStop() {
			return ErrStopped
		}
		if time.Now().After(deadline) {
			return ErrCreateTimeout
		}

		sendErr := ctlSock.TrySend(buf)
		if errors.Is(sendErr, transport.ErrWouldBlock) {
			time.Sleep(wait)
			continue
		}
		if sendErr != nil {
			return sendErr
		}

		raw, recvErr := ctlSock.Recv()
		if errors.Is(recvErr, transport.ErrTimeout) || errors.Is(recvErr, transport.ErrWouldBlock) {
			continue // loop back to step 4: send again
		}
		if recvErr != nil {
			return recvErr
		}

		f, decErr := wire.Decode(raw)
		if decErr != nil {
			return decErr
		}
		reply, ok := f.(*wire.ReplyFrame)
		if !ok || reply.Status != 0 {
			return ErrCreateRejected
		}
		return nil
	}
}

// runCreator is the async-creator goroutine Create spawns.
func (h *Handle) runCreator() {
	defer h.creator.wg.Done()
	err := h.runCreateHandshake(&h.creator)
	h.creatorErr = err
	if err != nil {
		h.cfg.Logger.Log(logging.Warn, "create handshake failed", "err", err)
	}
}
