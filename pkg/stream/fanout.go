package stream

import (
	"sync"
	"sync/atomic"
)

// Fanout distributes each published frame to every attached
// subscriber. Each subscriber decides its own drop behaviour,
// publishing never blocks on a slow consumer.
type Fanout struct {
	mu          sync.RWMutex
	subscribers map[string]Sender
	published   uint64
}

func NewFanout() *Fanout {
	return &Fanout{subscribers: map[string]Sender{}}
}

func (f *Fanout) Attach(id string, sender Sender) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribers[id] = sender
}

func (f *Fanout) Detach(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subscribers, id)
}

func (f *Fanout) Publish(frame *Frame) {
	atomic.AddUint64(&f.published, 1)
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, sub := range f.subscribers {
		sub.Send(frame)
	}
}

func (f *Fanout) SubscriberCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers)
}

func (f *Fanout) Published() uint64 {
	return atomic.LoadUint64(&f.published)
}
