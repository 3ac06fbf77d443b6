// Package testmsg provides a minimal module.Message/MessageCodec/Broker
// trio shared by the proxy and host package tests, so neither has to
// restate the same fake.
package testmsg

import (
	"errors"
	"sync"

	"github.com/gwbridge/gwbridge/pkg/module"
)

// Message is a fake module.Message wrapping a byte payload. Destroy
// panics on a second call so tests catch a double-destroy the way the
// real binding's invariant forbids it.
type Message struct {
	Payload   []byte
	destroyed bool
}

func New(payload []byte) *Message {
	return &Message{Payload: append([]byte(nil), payload...)}
}

func (m *Message) Clone() (module.Message, error) {
	return New(m.Payload), nil
}

func (m *Message) Size() int { return len(m.Payload) }

func (m *Message) Serialize(buf []byte) (int, error) {
	if len(buf) < len(m.Payload) {
		return 0, errors.New("testmsg: buffer too small")
	}
	return copy(buf, m.Payload), nil
}

func (m *Message) Destroy() {
	if m.destroyed {
		panic("testmsg: double destroy")
	}
	m.destroyed = true
}

// Codec decodes raw bytes straight into a Message; the tests never need
// anything richer than an identity transform.
type Codec struct{}

func (Codec) FromBytes(b []byte) (module.Message, error) {
	return New(b), nil
}

// Broker records every message published to it.
type Broker struct {
	mu        sync.Mutex
	Published [][]byte
}

func (b *Broker) Publish(handle any, msg module.Message) error {
	buf := make([]byte, msg.Size())
	n, err := msg.Serialize(buf)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.Published = append(b.Published, buf[:n])
	b.mu.Unlock()
	return nil
}

// Snapshot returns a copy of everything published so far.
func (b *Broker) Snapshot() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]byte, len(b.Published))
	copy(out, b.Published)
	return out
}
