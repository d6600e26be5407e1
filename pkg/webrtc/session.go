package webrtc

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/tauraamui/facecast/pkg/log"
	"github.com/tauraamui/facecast/pkg/stream"
)

const defaultNegotiationTimeout = 15 * time.Second

type Settings struct {
	NegotiationTimeout time.Duration
	STUNServers        []string
	FPS                int
}

func (s Settings) negotiationTimeout() time.Duration {
	if s.NegotiationTimeout <= 0 {
		return defaultNegotiationTimeout
	}
	return s.NegotiationTimeout
}

func (s Settings) fps() int {
	if s.FPS <= 0 {
		return 30
	}
	return s.FPS
}

// Session is one negotiated peer media connection. It owns its
// peer connection, outbound video track and single slot frame
// buffer exclusively, no state is shared across sessions.
type Session struct {
	uuid           string
	sett           Settings
	pc             *webrtc.PeerConnection
	track          *webrtc.TrackLocalStaticSample
	slot           *stream.Slot
	encoderBuilder EncoderBuilder

	state            int32
	mu               sync.Mutex
	err              error
	negotiationTimer *time.Timer
	closeOnce        sync.Once
	pumpOnce         sync.Once
	pumpCtx          context.Context
	pumpCancel       context.CancelFunc
	onClosed         func(*Session)
}

var newPeerConnection = func(config webrtc.Configuration) (*webrtc.PeerConnection, error) {
	return webrtc.NewPeerConnection(config)
}

func NewSession(sett Settings, onClosed func(*Session)) (*Session, error) {
	config := webrtc.Configuration{}
	if len(sett.STUNServers) > 0 {
		config.ICEServers = []webrtc.ICEServer{{URLs: sett.STUNServers}}
	}

	pc, err := newPeerConnection(config)
	if err != nil {
		return nil, fmt.Errorf("unable to create peer connection: %w", err)
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "facecast",
	)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("unable to create outbound video track: %w", err)
	}

	sender, err := pc.AddTrack(track)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("unable to attach video track: %w", err)
	}
	go drainRTCP(sender)

	pumpCtx, pumpCancel := context.WithCancel(context.Background())
	session := Session{
		uuid:           uuid.NewString(),
		sett:           sett,
		pc:             pc,
		track:          track,
		slot:           stream.NewSlot(),
		encoderBuilder: VP8EncoderBuilder(),
		state:          int32(StateNew),
		pumpCtx:        pumpCtx,
		pumpCancel:     pumpCancel,
		onClosed:       onClosed,
	}

	pc.OnICEConnectionStateChange(session.handleICEState)

	return &session, nil
}

// rtcp must be drained for interceptors to keep functioning
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func (s *Session) UUID() string {
	return s.uuid
}

func (s *Session) State() State {
	return State(atomic.LoadInt32(&s.state))
}

// Negotiate applies the remote offer and produces the local
// answer once candidate gathering has finished. A malformed offer
// or an expired negotiation window closes the session.
func (s *Session) Negotiate(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if !atomic.CompareAndSwapInt32(&s.state, int32(StateNew), int32(StateNegotiating)) {
		return webrtc.SessionDescription{}, fmt.Errorf("session [%s] cannot negotiate from state %s", s.uuid, s.State())
	}

	if err := s.pc.SetRemoteDescription(offer); err != nil {
		rejection := fmt.Errorf("%w: %v", ErrOfferRejected, err)
		s.closeWithErr(rejection)
		return webrtc.SessionDescription{}, rejection
	}

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		rejection := fmt.Errorf("%w: %v", ErrOfferRejected, err)
		s.closeWithErr(rejection)
		return webrtc.SessionDescription{}, rejection
	}

	gatherComplete := webrtc.GatheringCompletePromise(s.pc)
	if err := s.pc.SetLocalDescription(answer); err != nil {
		s.closeWithErr(err)
		return webrtc.SessionDescription{}, err
	}

	select {
	case <-gatherComplete:
	case <-time.After(s.sett.negotiationTimeout()):
		s.closeWithErr(ErrNegotiationTimeout)
		return webrtc.SessionDescription{}, ErrNegotiationTimeout
	case <-ctx.Done():
		s.closeWithErr(ctx.Err())
		return webrtc.SessionDescription{}, ctx.Err()
	}

	s.armNegotiationDeadline()
	return *s.pc.LocalDescription(), nil
}

// armNegotiationDeadline bounds the post-answer half of the
// handshake. A viewer which takes the answer but never turns up
// with connectivity produces no ICE state callback at all, so the
// session would otherwise sit in negotiating forever.
func (s *Session) armNegotiationDeadline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.negotiationTimer = time.AfterFunc(s.sett.negotiationTimeout(), func() {
		if s.State() == StateConnected {
			return
		}
		s.closeWithErr(ErrNegotiationTimeout)
	})
}

func (s *Session) stopNegotiationTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.negotiationTimer != nil {
		s.negotiationTimer.Stop()
	}
}

// AddCandidate applies a trickled remote connectivity candidate.
func (s *Session) AddCandidate(candidate webrtc.ICECandidateInit) error {
	if s.State() == StateClosed {
		return fmt.Errorf("session [%s] is closed", s.uuid)
	}
	return s.pc.AddICECandidate(candidate)
}

// Send hands a frame towards the encoder without ever blocking
// the caller. A frame which arrives while a previous one is still
// pending replaces it. Closed sessions accept nothing.
func (s *Session) Send(frame *stream.Frame) {
	if s.State() == StateClosed {
		return
	}
	s.slot.Send(frame)
}

func (s *Session) handleICEState(state webrtc.ICEConnectionState) {
	log.Debug("session [%s] ICE connection state: %s", s.uuid, state.String())

	switch state {
	case webrtc.ICEConnectionStateConnected:
		if atomic.CompareAndSwapInt32(&s.state, int32(StateNegotiating), int32(StateConnected)) {
			s.stopNegotiationTimer()
			s.pumpOnce.Do(func() {
				go s.pump(s.pumpCtx)
			})
		}
	case webrtc.ICEConnectionStateFailed, webrtc.ICEConnectionStateDisconnected, webrtc.ICEConnectionStateClosed:
		s.closeWithErr(ErrPeerDisconnected)
	}
}

// pump pulls frames from the slot through the encoder and onto
// the outbound track, one encoded chunk per frame. Runs until the
// session closes.
func (s *Session) pump(ctx context.Context) {
	first, err := s.slot.Next(ctx)
	if err != nil {
		return
	}

	encoder, err := s.encoderBuilder.Build(s.frameReader(ctx, first), first.Width, first.Height, s.sett.fps())
	if err != nil {
		log.Error("session [%s] unable to build encoder: %s", s.uuid, err.Error())
		s.closeWithErr(err)
		return
	}
	defer encoder.Close()

	frameDuration := time.Second / time.Duration(s.sett.fps())
	for {
		chunk, release, err := encoder.Read()
		if err != nil {
			if ctx.Err() == nil {
				log.Error("session [%s] encoder failure: %s", s.uuid, err.Error())
				s.closeWithErr(err)
			}
			return
		}

		if err := s.track.WriteSample(media.Sample{Data: chunk, Duration: frameDuration}); err != nil {
			release()
			log.Error("session [%s] unable to write sample: %s", s.uuid, err.Error())
			s.closeWithErr(err)
			return
		}
		release()
	}
}

// frameReader adapts the session slot into the encoder's pull
// based reader. Slot ordering guarantees the encoder sees frames
// in non-decreasing sequence order.
func (s *Session) frameReader(ctx context.Context, first *stream.Frame) video.Reader {
	pending := first
	return video.ReaderFunc(func() (image.Image, func(), error) {
		if pending != nil {
			img := pending.Image
			pending = nil
			return img, func() {}, nil
		}

		frame, err := s.slot.Next(ctx)
		if err != nil {
			return nil, func() {}, io.EOF
		}
		return frame.Image, func() {}, nil
	})
}

func (s *Session) closeWithErr(err error) {
	s.closeOnce.Do(func() {
		atomic.StoreInt32(&s.state, int32(StateClosed))
		s.mu.Lock()
		s.err = err
		if s.negotiationTimer != nil {
			s.negotiationTimer.Stop()
		}
		s.mu.Unlock()

		s.pumpCancel()
		if closeErr := s.pc.Close(); closeErr != nil {
			log.Warn("session [%s] peer connection close failure: %s", s.uuid, closeErr.Error())
		}

		if s.onClosed != nil {
			go s.onClosed(s)
		}
	})
}

// Close tears the session down, releasing the peer connection and
// refusing any further frames. Idempotent.
func (s *Session) Close() error {
	s.closeWithErr(nil)
	return nil
}

// Err reports the terminal failure, nil after an explicit Close.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

type Stats struct {
	UUID    string `json:"uuid"`
	State   string `json:"state"`
	Pending int    `json:"pending"`
	Drops   uint64 `json:"drops"`
}

func (s *Session) Stats() Stats {
	return Stats{
		UUID:    s.uuid,
		State:   s.State().String(),
		Pending: s.slot.Pending(),
		Drops:   s.slot.Drops(),
	}
}
