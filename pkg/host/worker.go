package host

import (
	"sync"
	"time"

	"github.com/gwbridge/gwbridge/pkg/logging"
)

// workerThread runs a Handle's DoWork on a fixed tick until halted. It is
// the convenience wrapper spec.md §4.F asks for: an embedder that has no
// event loop of its own can just call StartWorkerThread instead of
// polling DoWork by hand.
type workerThread struct {
	mu     sync.Mutex
	stop   chan struct{}
	done   chan struct{}
	active bool
}

// StartWorkerThread spawns a goroutine that calls h.DoWork on the given
// tick until HaltWorkerThread is called.
func (h *Handle) StartWorkerThread(tick time.Duration) error {
	h.worker.mu.Lock()
	defer h.worker.mu.Unlock()
	if h.worker.active {
		return ErrWorkerAlreadyRunning
	}
	h.worker.active = true
	h.worker.stop = make(chan struct{})
	h.worker.done = make(chan struct{})

	go h.runWorker(tick, h.worker.stop, h.worker.done)
	return nil
}

func (h *Handle) runWorker(tick time.Duration, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := h.DoWork(); err != nil {
				h.cfg.Logger.Log(logging.Warn, "host: worker thread DoWork failed", "err", err)
			}
		}
	}
}

// HaltWorkerThread stops the worker goroutine and waits for it to exit.
func (h *Handle) HaltWorkerThread() error {
	h.worker.mu.Lock()
	if !h.worker.active {
		h.worker.mu.Unlock()
		return ErrWorkerNotRunning
	}
	stop, done := h.worker.stop, h.worker.done
	h.worker.active = false
	h.worker.mu.Unlock()

	close(stop)
	<-done
	return nil
}
