package transport

import (
	"context"

	sockcan "github.com/brutella/can"

	"ecudump/canbus"
)

// socketCANTransport wraps brutella/can's SocketCAN bus so it satisfies
// Transport. Adapted from the wrapper shape used to bind gocanopen's Bus
// interface to the same library.
type socketCANTransport struct {
	bus *sockcan.Bus

	broadcaster *canbus.FrameBroadcaster
}

func openSocketCAN(ifaceName string) (Transport, error) {
	bus, err := sockcan.NewBusForInterfaceWithName(ifaceName)
	if err != nil {
		return nil, err
	}

	t := &socketCANTransport{
		bus:         bus,
		broadcaster: canbus.NewFrameBroadcaster(),
	}
	bus.Subscribe(t)
	go bus.ConnectAndPublish()
	return t, nil
}

// Handle implements brutella/can's frame-received callback interface.
func (t *socketCANTransport) Handle(frame sockcan.Frame) {
	t.broadcaster.Broadcast(canbus.Frame{
		ID:   uint16(frame.ID),
		DLC:  frame.Length,
		Data: frame.Data,
	}, nil)
}

func (t *socketCANTransport) Send(_ context.Context, id uint16, data []byte, extended bool) error {
	frame := sockcan.Frame{ID: uint32(id), Length: uint8(len(data))}
	copy(frame.Data[:], data)
	return t.bus.Publish(frame)
}

func (t *socketCANTransport) Subscribe() chan canbus.Frame {
	return t.broadcaster.Subscribe()
}

func (t *socketCANTransport) Unsubscribe(ch chan canbus.Frame) {
	t.broadcaster.Unsubscribe(ch)
}

func (t *socketCANTransport) Close() error {
	t.broadcaster.Cleanup()
	return t.bus.Disconnect()
}

func (t *socketCANTransport) Name() string { return "socketcan" }
