package stream

import (
	"image"
	"time"
)

// Frame is an annotated frame published towards transports. The
// pixel data is immutable once published, subscribers share it by
// reference and must never modify it.
type Frame struct {
	Image     image.Image
	Width     int
	Height    int
	Seq       uint64
	Timestamp time.Time
}

// Sender accepts published frames without ever blocking the
// publisher. Implemented by Slot and by transport sessions.
type Sender interface {
	Send(*Frame)
}
