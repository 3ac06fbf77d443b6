package host_test

import (
	"testing"
	"time"

	"github.com/gwbridge/gwbridge/internal/testmsg"
	"github.com/gwbridge/gwbridge/pkg/host"
	"github.com/gwbridge/gwbridge/pkg/module"
	"github.com/gwbridge/gwbridge/pkg/transport"
	"github.com/gwbridge/gwbridge/pkg/wire"
)

type fakeModule struct {
	created   bool
	started   bool
	destroyed bool
	received  [][]byte
}

func (m *fakeModule) vtable() module.VTable {
	return module.VTable{
		Create: func(broker module.Broker, cfg module.Config) (any, error) {
			m.created = true
			return m, nil
		},
		Start: func(h any) error {
			m.started = true
			return nil
		},
		Receive: func(h any, msg module.Message) error {
			buf := make([]byte, msg.Size())
			n, _ := msg.Serialize(buf)
			m.received = append(m.received, append([]byte(nil), buf[:n]...))
			return nil
		},
		Destroy: func(h any) error {
			m.destroyed = true
			return nil
		},
	}
}

func TestAttachCreateStartDestroy(t *testing.T) {
	const ctlURL = "inproc://host-test-ctl"
	const msgURL = "inproc://host-test-msg"

	mod := &fakeModule{}
	broker := &testmsg.Broker{}
	cfg := host.NewConfig(ctlURL,
		host.WithMessageURL(msgURL),
		host.WithMessageCodec(testmsg.Codec{}),
	)

	h, err := host.Attach(mod.vtable(), broker, 1, cfg)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer h.Detach()

	proxyCtl, err := transport.OpenPair()
	if err != nil {
		t.Fatalf("open proxy ctl socket: %v", err)
	}
	defer proxyCtl.Close()
	if err := proxyCtl.Connect(ctlURL); err != nil {
		t.Fatalf("dial ctl: %v", err)
	}
	if err := proxyCtl.SetRecvTimeout(5 * time.Second); err != nil {
		t.Fatalf("set recv timeout: %v", err)
	}

	createFrame := wire.Encode(&wire.CreateFrame{URI: msgURL, Args: []byte("cfg")})
	if err := proxyCtl.Send(createFrame); err != nil {
		t.Fatalf("send create: %v", err)
	}

	if err := h.DoWork(); err != nil {
		t.Fatalf("DoWork (create): %v", err)
	}
	raw, err := proxyCtl.Recv()
	if err != nil {
		t.Fatalf("recv create reply: %v", err)
	}
	f, err := wire.Decode(raw)
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	reply, ok := f.(*wire.ReplyFrame)
	if !ok || reply.Status != 0 {
		t.Fatalf("expected successful ReplyFrame, got %#v", f)
	}
	if !mod.created {
		t.Fatal("module Create was not called")
	}

	if err := proxyCtl.Send(wire.Encode(&wire.StartFrame{})); err != nil {
		t.Fatalf("send start: %v", err)
	}
	if err := h.DoWork(); err != nil {
		t.Fatalf("DoWork (start): %v", err)
	}
	if !mod.started {
		t.Fatal("module Start was not called")
	}

	proxyMsg, err := transport.OpenPair()
	if err != nil {
		t.Fatalf("open proxy msg socket: %v", err)
	}
	defer proxyMsg.Close()
	if err := proxyMsg.Connect(msgURL); err != nil {
		t.Fatalf("dial msg: %v", err)
	}
	envelope, err := transport.Compress(transport.CompressionNone, []byte("hello host"))
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := proxyMsg.Send(envelope); err != nil {
		t.Fatalf("send data: %v", err)
	}
	if err := h.DoWork(); err != nil {
		t.Fatalf("DoWork (data): %v", err)
	}
	if len(mod.received) != 1 || string(mod.received[0]) != "hello host" {
		t.Fatalf("module did not receive expected payload: %#v", mod.received)
	}

	if err := proxyCtl.Send(wire.Encode(&wire.DestroyFrame{})); err != nil {
		t.Fatalf("send destroy: %v", err)
	}
	if err := h.DoWork(); err != nil {
		t.Fatalf("DoWork (destroy): %v", err)
	}
	if !mod.destroyed {
		t.Fatal("module Destroy was not called")
	}
}

func TestRegistryRejectsDuplicateWithinCapacity(t *testing.T) {
	const ctlURL1 = "inproc://host-test-registry-ctl-1"
	const ctlURL2 = "inproc://host-test-registry-ctl-2"

	mod := &fakeModule{}
	broker := &testmsg.Broker{}
	cfg1 := host.NewConfig(ctlURL1, host.WithMessageCodec(testmsg.Codec{}))
	cfg2 := host.NewConfig(ctlURL2, host.WithMessageCodec(testmsg.Codec{}))

	h1, err := host.Attach(mod.vtable(), broker, 42, cfg1)
	if err != nil {
		t.Fatalf("attach h1: %v", err)
	}
	h2, err := host.Attach(mod.vtable(), broker, 42, cfg2)
	if err != nil {
		t.Fatalf("attach h2: %v", err)
	}

	reg := host.NewRegistry(2)
	if err := reg.Put(h1); err != nil {
		t.Fatalf("put h1: %v", err)
	}
	if err := reg.Put(h2); err != host.ErrDuplicateConnectionID {
		t.Fatalf("put h2 (same id): got %v, want ErrDuplicateConnectionID", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", reg.Len())
	}
	got, ok := reg.Get(42)
	if !ok || got != h1 {
		t.Fatal("registry should still hold the original session, not the rejected duplicate")
	}
}

func TestAttachEnforcesRegistryCapacity(t *testing.T) {
	const ctlURL1 = "inproc://host-test-attach-cap-1"
	const ctlURL2 = "inproc://host-test-attach-cap-2"

	mod := &fakeModule{}
	broker := &testmsg.Broker{}
	reg := host.NewRegistry(1)

	h1, err := host.Attach(mod.vtable(), broker, 1, host.NewConfig(ctlURL1,
		host.WithMessageCodec(testmsg.Codec{}),
		host.WithRegistry(reg),
	))
	if err != nil {
		t.Fatalf("attach h1: %v", err)
	}
	defer h1.Detach()

	if _, err := host.Attach(mod.vtable(), broker, 2, host.NewConfig(ctlURL2,
		host.WithMessageCodec(testmsg.Codec{}),
		host.WithRegistry(reg),
	)); err != host.ErrRegistryFull {
		t.Fatalf("attach h2: got %v, want ErrRegistryFull", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("rejected attach should not have registered a session, got Len()=%d", reg.Len())
	}
}

func TestAttachRejectsDuplicateConnectionID(t *testing.T) {
	const ctlURL1 = "inproc://host-test-attach-dup-1"
	const ctlURL2 = "inproc://host-test-attach-dup-2"

	mod := &fakeModule{}
	broker := &testmsg.Broker{}
	reg := host.NewRegistry(0)

	h1, err := host.Attach(mod.vtable(), broker, 7, host.NewConfig(ctlURL1,
		host.WithMessageCodec(testmsg.Codec{}),
		host.WithRegistry(reg),
	))
	if err != nil {
		t.Fatalf("attach h1: %v", err)
	}
	defer h1.Detach()

	if _, err := host.Attach(mod.vtable(), broker, 7, host.NewConfig(ctlURL2,
		host.WithMessageCodec(testmsg.Codec{}),
		host.WithRegistry(reg),
	)); err != host.ErrDuplicateConnectionID {
		t.Fatalf("attach with duplicate id: got %v, want ErrDuplicateConnectionID", err)
	}

	h1.Detach()
	h3, err := host.Attach(mod.vtable(), broker, 7, host.NewConfig(ctlURL2,
		host.WithMessageCodec(testmsg.Codec{}),
		host.WithRegistry(reg),
	))
	if err != nil {
		t.Fatalf("attach after Detach freed the id: %v", err)
	}
	defer h3.Detach()
}

func TestRegistryFullRejectsNewID(t *testing.T) {
	const ctlURL1 = "inproc://host-test-registry-full-1"
	const ctlURL2 = "inproc://host-test-registry-full-2"

	mod := &fakeModule{}
	broker := &testmsg.Broker{}
	h1, err := host.Attach(mod.vtable(), broker, 1, host.NewConfig(ctlURL1, host.WithMessageCodec(testmsg.Codec{})))
	if err != nil {
		t.Fatalf("attach h1: %v", err)
	}
	h2, err := host.Attach(mod.vtable(), broker, 2, host.NewConfig(ctlURL2, host.WithMessageCodec(testmsg.Codec{})))
	if err != nil {
		t.Fatalf("attach h2: %v", err)
	}

	reg := host.NewRegistry(1)
	if err := reg.Put(h1); err != nil {
		t.Fatalf("put h1: %v", err)
	}
	if err := reg.Put(h2); err == nil {
		t.Fatal("expected ErrRegistryFull for a second distinct connection id")
	}
}

func TestReaperDetachesOnlyIdleSessions(t *testing.T) {
	const freshCtlURL = "inproc://host-test-reaper-fresh"
	const staleCtlURL = "inproc://host-test-reaper-stale"

	mod := &fakeModule{}
	broker := &testmsg.Broker{}
	fresh, err := host.Attach(mod.vtable(), broker, 1, host.NewConfig(freshCtlURL, host.WithMessageCodec(testmsg.Codec{})))
	if err != nil {
		t.Fatalf("attach fresh: %v", err)
	}
	stale, err := host.Attach(mod.vtable(), broker, 2, host.NewConfig(staleCtlURL, host.WithMessageCodec(testmsg.Codec{})))
	if err != nil {
		t.Fatalf("attach stale: %v", err)
	}

	reg := host.NewRegistry(0)
	if err := reg.Put(fresh); err != nil {
		t.Fatalf("put fresh: %v", err)
	}
	if err := reg.Put(stale); err != nil {
		t.Fatalf("put stale: %v", err)
	}

	// Let both sessions age, then touch only "fresh" by driving one
	// control frame through it.
	time.Sleep(50 * time.Millisecond)

	proxyCtl, err := transport.OpenPair()
	if err != nil {
		t.Fatalf("open proxy ctl socket: %v", err)
	}
	defer proxyCtl.Close()
	if err := proxyCtl.Connect(freshCtlURL); err != nil {
		t.Fatalf("dial fresh ctl: %v", err)
	}
	if err := proxyCtl.SetRecvTimeout(5 * time.Second); err != nil {
		t.Fatalf("set recv timeout: %v", err)
	}
	if err := proxyCtl.Send(wire.Encode(&wire.StartFrame{})); err != nil {
		t.Fatalf("send start: %v", err)
	}
	if err := fresh.DoWork(); err != nil {
		t.Fatalf("DoWork on fresh: %v", err)
	}

	reaped := reg.ReapIdle(func() int64 { return time.Now().UnixNano() }, int64(40*time.Millisecond))
	if len(reaped) != 1 || reaped[0] != stale.ConnectionID() {
		t.Fatalf("expected only the stale session reaped, got %v", reaped)
	}
	if _, ok := reg.Get(fresh.ConnectionID()); !ok {
		t.Fatal("the freshly-touched session should not have been reaped")
	}
	if _, ok := reg.Get(stale.ConnectionID()); ok {
		t.Fatal("the stale session should have been reaped")
	}
}
