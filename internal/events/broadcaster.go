package events

import (
	"sync"

	"github.com/Mavwarf/metronome/internal/metronome"
)

// Listener receives ticks from the broadcaster.
type Listener struct {
	C    chan metronome.Tick
	done chan struct{}
}

// Done is closed when the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} { return l.done }

// Broadcaster fans ticks out from the engine to any number of listeners.
// Slow listeners lose ticks rather than holding up the others.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
	buffer    int
}

// NewBroadcaster creates a broadcaster whose listeners buffer up to buffer
// ticks each.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = 1
	}
	return &Broadcaster{
		listeners: make(map[*Listener]struct{}),
		buffer:    buffer,
	}
}

// Subscribe registers a new listener.
func (b *Broadcaster) Subscribe() *Listener {
	l := &Listener{
		C:    make(chan metronome.Tick, b.buffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop. Unsubscribing
// twice is harmless.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	_, ok := b.listeners[l]
	delete(b.listeners, l)
	b.mu.Unlock()
	if ok {
		close(l.done)
	}
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Publish delivers t to every listener without blocking. It has the
// metronome.TickSink signature.
func (b *Broadcaster) Publish(t metronome.Tick) {
	b.mu.RLock()
	for l := range b.listeners {
		select {
		case l.C <- t:
		default:
			// listener too slow, drop the tick
		}
	}
	b.mu.RUnlock()
}
