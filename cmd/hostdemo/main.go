// Command hostdemo wires a tiny in-memory echo module into a Host
// session and drives it with a worker thread, demonstrating the
// Attach/StartWorkerThread path an embedder uses when it has no event
// loop of its own to call DoWork from.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gwbridge/gwbridge/pkg/host"
	"github.com/gwbridge/gwbridge/pkg/logging"
	"github.com/gwbridge/gwbridge/pkg/module"
)

// echoMessage is the demo's module.Message: it just carries bytes.
type echoMessage struct {
	payload []byte
}

func (m *echoMessage) Clone() (module.Message, error) {
	return &echoMessage{payload: append([]byte(nil), m.payload...)}, nil
}
func (m *echoMessage) Size() int { return len(m.payload) }
func (m *echoMessage) Serialize(buf []byte) (int, error) {
	return copy(buf, m.payload), nil
}
func (m *echoMessage) Destroy() {}

type echoCodec struct{}

func (echoCodec) FromBytes(b []byte) (module.Message, error) {
	return &echoMessage{payload: b}, nil
}

// echoBroker is the demo's in-process bus: it just logs what the module
// published.
type echoBroker struct{}

func (echoBroker) Publish(handle any, msg module.Message) error {
	buf := make([]byte, msg.Size())
	n, err := msg.Serialize(buf)
	if err != nil {
		return err
	}
	fmt.Printf("published: %s\n", buf[:n])
	return nil
}

// stdoutLogger adapts log.Logger to pkg/logging.Logger.
type stdoutLogger struct{ *log.Logger }

func (l stdoutLogger) Log(level logging.Level, msg string, keyvals ...any) {
	l.Printf("%s: %s %v", level, msg, keyvals)
}

func main() {
	logger := stdoutLogger{log.New(os.Stderr, "hostdemo ", log.LstdFlags)}

	vtable := module.VTable{
		Create: func(broker module.Broker, cfg module.Config) (any, error) {
			logger.Log(logging.Info, "module created")
			return struct{}{}, nil
		},
		Start: func(h any) error {
			logger.Log(logging.Info, "module started")
			return nil
		},
		Receive: func(h any, msg module.Message) error {
			buf := make([]byte, msg.Size())
			n, _ := msg.Serialize(buf)
			logger.Log(logging.Info, "module received", "payload", string(buf[:n]))
			return nil
		},
		Destroy: func(h any) error {
			logger.Log(logging.Info, "module destroyed")
			return nil
		},
	}

	// A Registry bounds how many sessions this process will hold attached
	// at once; Attach itself enforces the cap and rejects a duplicate
	// connection id instead of leaving capacity up to a caller convention.
	registry := host.NewRegistry(8)

	cfg := host.NewConfig("ipc:///tmp/gwbridge-hostdemo-ctl.sock",
		host.WithMessageURL("ipc:///tmp/gwbridge-hostdemo-msg.sock"),
		host.WithMessageCodec(echoCodec{}),
		host.WithLogger(logger),
		host.WithSessionIdleTimeout(2*time.Minute),
		host.WithRegistry(registry),
	)

	h, err := host.Attach(vtable, echoBroker{}, 1, cfg)
	if err != nil {
		logger.Log(logging.Error, "attach failed", "err", err)
		os.Exit(1)
	}
	defer h.Detach()

	if err := h.StartWorkerThread(50 * time.Millisecond); err != nil {
		logger.Log(logging.Error, "start worker failed", "err", err)
		os.Exit(1)
	}
	defer h.HaltWorkerThread()

	logger.Log(logging.Info, "host listening, waiting for a proxy to attach")
	select {}
}
