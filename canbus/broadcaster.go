package canbus

import "sync"

// FrameBroadcaster fans a stream of received frames out to any number of
// subscribers. A slow subscriber drops frames rather than stalling the
// reader goroutine feeding Broadcast.
type FrameBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Frame]struct{}
}

func NewFrameBroadcaster() *FrameBroadcaster {
	return &FrameBroadcaster{
		subscribers: make(map[chan Frame]struct{}),
	}
}

// Subscribe returns a channel that receives every frame broadcast after
// this call, until Unsubscribe is called.
func (b *FrameBroadcaster) Subscribe() chan Frame {
	ch := make(chan Frame, 128)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *FrameBroadcaster) Unsubscribe(ch chan Frame) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Broadcast delivers frame to every current subscriber. Subscribers whose
// buffer is full are skipped for this frame; dropCallback, if non-nil, is
// invoked once per skipped subscriber so the caller can log it.
func (b *FrameBroadcaster) Broadcast(frame Frame, dropCallback func()) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- frame:
		default:
			if dropCallback != nil {
				dropCallback()
			}
		}
	}
}

// Cleanup closes and removes every subscriber channel.
func (b *FrameBroadcaster) Cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		delete(b.subscribers, ch)
		close(ch)
	}
}
