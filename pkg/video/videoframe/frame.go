package videoframe

import "time"

type Dimensions struct {
	W, H int
}

// Meta tags a frame with its capture order and time. Sequence
// numbers are monotonically increasing per camera connection.
type Meta struct {
	Seq       uint64
	Timestamp time.Time
}

type NoCloser interface {
	DataRef() interface{}
	Dimensions() Dimensions
	Meta() Meta
}

type Frame interface {
	NoCloser
	Stamp(Meta)
	Close()
}
