package webrtc

import (
	"context"

	"github.com/pion/webrtc/v3"
)

func (s *Session) SetEncoderBuilderForTest(b EncoderBuilder) {
	s.encoderBuilder = b
}

func (s *Session) HandleICEState(state webrtc.ICEConnectionState) {
	s.handleICEState(state)
}

func (s *Session) RunPump(ctx context.Context) {
	s.pump(ctx)
}
