package transport

import (
	"context"
	"sync"

	daqcan "github.com/go-daq/canbus"

	"ecudump/canbus"
)

// daqTransport wraps go-daq/canbus's raw AF_CAN socket. It is the second
// native backend tried, for hosts where brutella/can's netlink path can't
// bind but a plain raw socket still can. Grounded on the Bind/Send/Recv
// shape used by anodyne74-iload-obd2's CAN bus test simulator.
type daqTransport struct {
	sock *daqcan.Socket

	broadcaster *canbus.FrameBroadcaster
	done        chan struct{}
	wg          sync.WaitGroup
}

func openDAQCAN(ifaceName string) (Transport, error) {
	sock, err := daqcan.New()
	if err != nil {
		return nil, err
	}
	if err := sock.Bind(ifaceName); err != nil {
		sock.Close()
		return nil, err
	}

	t := &daqTransport{
		sock:        sock,
		broadcaster: canbus.NewFrameBroadcaster(),
		done:        make(chan struct{}),
	}
	t.wg.Add(1)
	go t.readLoop()
	return t, nil
}

func (t *daqTransport) readLoop() {
	defer t.wg.Done()
	for {
		select {
		case <-t.done:
			return
		default:
		}
		frame, err := t.sock.Recv()
		if err != nil {
			continue
		}
		f := canbus.Frame{ID: uint16(frame.ID), DLC: uint8(len(frame.Data))}
		copy(f.Data[:], frame.Data)
		t.broadcaster.Broadcast(f, nil)
	}
}

func (t *daqTransport) Send(_ context.Context, id uint16, data []byte, _ bool) error {
	_, err := t.sock.Send(daqcan.Frame{ID: uint32(id), Data: data, Kind: daqcan.SFF})
	return err
}

func (t *daqTransport) Subscribe() chan canbus.Frame {
	return t.broadcaster.Subscribe()
}

func (t *daqTransport) Unsubscribe(ch chan canbus.Frame) {
	t.broadcaster.Unsubscribe(ch)
}

func (t *daqTransport) Close() error {
	close(t.done)
	t.wg.Wait()
	t.broadcaster.Cleanup()
	return t.sock.Close()
}

func (t *daqTransport) Name() string { return "go-daq" }
