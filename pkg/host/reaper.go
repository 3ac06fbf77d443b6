package host

import (
	"sync"
	"time"

	"github.com/gwbridge/gwbridge/pkg/logging"
)

// Reaper periodically detaches sessions that have gone idle longer than
// a configured timeout, so a Proxy peer that vanished without sending
// ModuleDestroy doesn't pin its session (and message socket) forever.
type Reaper struct {
	registry *Registry
	interval time.Duration
	idle     time.Duration
	logger   logging.Logger

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

func NewReaper(registry *Registry, interval, idle time.Duration, logger logging.Logger) *Reaper {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Reaper{registry: registry, interval: interval, idle: idle, logger: logger}
}

// Start begins the sweep loop. A zero idle timeout disables reaping
// entirely (Start is then a no-op), matching spec.md §4.F's "disabled by
// default" stance on a feature the original distillation never had.
func (r *Reaper) Start() {
	if r.idle <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.stop = make(chan struct{})
	r.done = make(chan struct{})

	go r.loop(r.stop, r.done)
}

func (r *Reaper) loop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			stale := r.registry.ReapIdle(func() int64 { return time.Now().UnixNano() }, r.idle.Nanoseconds())
			for _, id := range stale {
				r.logger.Log(logging.Info, "host: reaped idle session", "connection_id", id)
			}
		}
	}
}

// Stop halts the sweep loop and waits for it to exit.
func (r *Reaper) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	stop, done := r.stop, r.done
	r.running = false
	r.mu.Unlock()

	close(stop)
	<-done
}
