package transport

import (
	"context"
	"sync"

	"ecudump/canbus"
)

// fakeTransport is an in-process Transport used by tests in place of real
// CAN hardware: Send loops frames straight back out to subscribers so a
// single goroutine can play both ends of a request/response exchange.
type fakeTransport struct {
	mu   sync.Mutex
	subs map[chan canbus.Frame]struct{}
	sent []canbus.Frame

	// respond, if set, is invoked for every sent frame and may push zero
	// or more reply frames back through deliver.
	respond func(id uint16, data []byte, deliver func(canbus.Frame))
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{subs: make(map[chan canbus.Frame]struct{})}
}

func (f *fakeTransport) Send(_ context.Context, id uint16, data []byte, _ bool) error {
	f.mu.Lock()
	f.sent = append(f.sent, canbus.NewFrame(id, data))
	f.mu.Unlock()
	if f.respond != nil {
		f.respond(id, data, f.deliver)
	}
	return nil
}

func (f *fakeTransport) sentFrames() []canbus.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]canbus.Frame, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeTransport) deliver(frame canbus.Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- frame:
		default:
		}
	}
}

func (f *fakeTransport) Subscribe() chan canbus.Frame {
	ch := make(chan canbus.Frame, 16)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

func (f *fakeTransport) Unsubscribe(ch chan canbus.Frame) {
	f.mu.Lock()
	delete(f.subs, ch)
	f.mu.Unlock()
}

func (f *fakeTransport) Close() error { return nil }
func (f *fakeTransport) Name() string { return "fake" }
