package stream

import (
	"context"
	"sync/atomic"
)

// Slot is a single item latest-wins handoff between a producer
// and one consumer. Send never blocks: a frame which arrives
// while the previous one is still pending replaces it and the
// stale frame counts as dropped. Frames are handed over in
// publish order so consumers observe non-decreasing sequence
// numbers.
type Slot struct {
	ch    chan *Frame
	drops uint64
}

func NewSlot() *Slot {
	return &Slot{ch: make(chan *Frame, 1)}
}

func (s *Slot) Send(frame *Frame) {
	for {
		select {
		case s.ch <- frame:
			return
		default:
			select {
			case <-s.ch:
				atomic.AddUint64(&s.drops, 1)
			default:
			}
		}
	}
}

// Next blocks until a frame is pending or the context ends.
func (s *Slot) Next(ctx context.Context) (*Frame, error) {
	select {
	case frame := <-s.ch:
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pending reports how many frames are waiting, never above 1.
func (s *Slot) Pending() int {
	return len(s.ch)
}

// Drops reports how many stale frames were replaced before a
// consumer got to them.
func (s *Slot) Drops() uint64 {
	return atomic.LoadUint64(&s.drops)
}
