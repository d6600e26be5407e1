package webrtc

import "errors"

type State int32

const (
	StateNew State = iota
	StateNegotiating
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var (
	// ErrOfferRejected means the remote offer could not be applied,
	// the session moves straight to closed.
	ErrOfferRejected = errors.New("session offer rejected")

	// ErrNegotiationTimeout means no usable connectivity path was
	// found within the negotiation window.
	ErrNegotiationTimeout = errors.New("session negotiation timed out")

	// ErrPeerDisconnected means an established peer went away,
	// terminating this session only.
	ErrPeerDisconnected = errors.New("peer disconnected")
)
