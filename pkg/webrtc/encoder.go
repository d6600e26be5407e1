package webrtc

import (
	"github.com/pion/mediadevices/pkg/codec/vpx"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/tauraamui/xerror"
)

const (
	defaultBitRate          = 1_000_000
	defaultKeyFrameInterval = 60
)

// Encoder pulls raw frames from its attached reader and yields
// encoded chunks ready to be packetized onto the outbound track.
type Encoder interface {
	Read() (b []byte, release func(), err error)
	Close() error
}

// EncoderBuilder constructs an encoder bound to a frame reader
// once the negotiated stream dimensions are known.
type EncoderBuilder interface {
	Build(r video.Reader, width, height, fps int) (Encoder, error)
}

func VP8EncoderBuilder() EncoderBuilder {
	return vp8EncoderBuilder{}
}

type vp8EncoderBuilder struct{}

func (vp8EncoderBuilder) Build(r video.Reader, width, height, fps int) (Encoder, error) {
	params, err := vpx.NewVP8Params()
	if err != nil {
		return nil, xerror.Errorf("unable to init VP8 encoder params: %w", err)
	}
	params.BitRate = defaultBitRate
	params.KeyFrameInterval = defaultKeyFrameInterval

	encoder, err := params.BuildVideoEncoder(r, prop.Media{
		Video: prop.Video{
			Width:       width,
			Height:      height,
			FrameRate:   float32(fps),
			FrameFormat: frame.FormatI420,
		},
	})
	if err != nil {
		return nil, xerror.Errorf("unable to build VP8 encoder: %w", err)
	}
	return encoder, nil
}
