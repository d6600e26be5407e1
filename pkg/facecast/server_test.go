package facecast_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matryer/is"
	pion "github.com/pion/webrtc/v3"
	"github.com/tauraamui/facecast/pkg/configdef"
	"github.com/tauraamui/facecast/pkg/facecast"
	"github.com/tauraamui/facecast/pkg/log"
	"github.com/tauraamui/facecast/pkg/signal"
	"github.com/tauraamui/facecast/pkg/video/videobackend"
	"github.com/tauraamui/facecast/pkg/video/videoframe"
)

type testConfigResolver struct {
	resolveErr          error
	disableMockCapturer bool
}

func (tcc testConfigResolver) Resolve() (configdef.Values, error) {
	if tcc.resolveErr != nil {
		return configdef.Values{}, tcc.resolveErr
	}
	return configdef.Values{
		Debug:       true,
		BindAddress: "127.0.0.1",
		Port:        3125,
		Camera: configdef.Camera{
			Title:        "TestCam",
			Address:      "test-addr",
			FPS:          10,
			MockCapturer: !tcc.disableMockCapturer,
		},
		Detection: configdef.Detection{
			MinConfidence: 1,
			MockDetector:  true,
		},
		WebRTC: configdef.WebRTC{
			NegotiationTimeoutSecs: 10,
		},
	}, nil
}

func TestNewServer(t *testing.T) {
	s := facecast.NewServer(testConfigResolver{}, videobackend.Mock())
	if s == nil {
		t.Error("New server's response cannot be nil pointer")
	}
}

func TestServerLoadConfiguration(t *testing.T) {
	is := is.New(t)

	s := facecast.NewServer(testConfigResolver{}, videobackend.Mock())
	is.NoErr(s.LoadConfiguration())
	is.Equal(s.Config().Camera.Title, "TestCam")
}

func TestServerLoadConfigurationEnablesDebugLogging(t *testing.T) {
	is := is.New(t)

	setDebugRef := log.SetDebug
	defer func() { log.SetDebug = setDebugRef }()

	enabled := false
	log.SetDebug = func() { enabled = true }

	s := facecast.NewServer(testConfigResolver{}, videobackend.Mock())
	is.NoErr(s.LoadConfiguration())
	is.True(enabled)
}

func TestServerLoadConfigurationPropagatesResolveError(t *testing.T) {
	is := is.New(t)

	resolveErr := errors.New("unable to resolve config")
	s := facecast.NewServer(testConfigResolver{resolveErr: resolveErr}, videobackend.Mock())
	is.True(errors.Is(s.LoadConfiguration(), resolveErr))
}

func viewerOffer(t *testing.T) (*pion.PeerConnection, pion.SessionDescription) {
	t.Helper()

	viewer, err := pion.NewPeerConnection(pion.Configuration{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := viewer.AddTransceiverFromKind(
		pion.RTPCodecTypeVideo,
		pion.RTPTransceiverInit{Direction: pion.RTPTransceiverDirectionRecvonly},
	); err != nil {
		t.Fatal(err)
	}

	offer, err := viewer.CreateOffer(nil)
	if err != nil {
		t.Fatal(err)
	}

	gatherComplete := pion.GatheringCompletePromise(viewer)
	if err := viewer.SetLocalDescription(offer); err != nil {
		t.Fatal(err)
	}
	<-gatherComplete

	return viewer, *viewer.LocalDescription()
}

func TestServerCreateSessionAcquiresCamera(t *testing.T) {
	is := is.New(t)

	s := facecast.NewServer(testConfigResolver{}, videobackend.Mock())
	is.NoErr(s.LoadConfiguration())
	defer func() { <-s.Shutdown() }()

	viewer, offer := viewerOffer(t)
	defer viewer.Close()

	id, answer, err := s.CreateSession(offer)
	is.NoErr(err)
	is.True(len(id) > 0)
	is.Equal(answer.Type, pion.SDPTypeAnswer)

	stats := s.Stats()
	is.Equal(stats.CameraTitle, "TestCam")
	is.True(stats.CameraConnected)
	is.Equal(len(stats.Sessions), 1)
	is.Equal(stats.Sessions[0].UUID, id)
}

func TestServerReleasesCameraOnceLastSessionCloses(t *testing.T) {
	is := is.New(t)

	s := facecast.NewServer(testConfigResolver{}, videobackend.Mock())
	is.NoErr(s.LoadConfiguration())
	defer func() { <-s.Shutdown() }()

	viewer, offer := viewerOffer(t)
	defer viewer.Close()

	id, _, err := s.CreateSession(offer)
	is.NoErr(err)
	is.True(s.Stats().CameraConnected)

	is.NoErr(s.CloseSession(id))

	deadline := time.After(5 * time.Second)
	for s.Stats().CameraConnected {
		select {
		case <-deadline:
			t.Fatal("camera never released after last session closed")
		case <-time.After(10 * time.Millisecond):
		}
	}
	is.Equal(len(s.Stats().Sessions), 0)
}

func TestServerUnknownSessionLookups(t *testing.T) {
	is := is.New(t)

	s := facecast.NewServer(testConfigResolver{}, videobackend.Mock())
	is.NoErr(s.LoadConfiguration())

	err := s.AddCandidate("nope", pion.ICECandidateInit{Candidate: "candidate:0"})
	is.True(errors.Is(err, signal.ErrUnknownSession))

	err = s.CloseSession("nope")
	is.True(errors.Is(err, signal.ErrUnknownSession))
}

// flakyBackend produces connections which report closed as soon as
// the shared open flag drops, standing in for a device yanked out
// mid stream.
type flakyBackend struct {
	inner videobackend.Backend
	open  *int32
}

func (fb *flakyBackend) Connect(ctx context.Context, addr string) (videobackend.Connection, error) {
	conn, err := fb.inner.Connect(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &flakyConnection{inner: conn, open: fb.open}, nil
}

func (fb *flakyBackend) NewFrame() videoframe.Frame { return fb.inner.NewFrame() }

type flakyConnection struct {
	inner videobackend.Connection
	open  *int32
}

func (fc *flakyConnection) UUID() string                  { return fc.inner.UUID() }
func (fc *flakyConnection) Read(f videoframe.Frame) error { return fc.inner.Read(f) }
func (fc *flakyConnection) Close() error                  { return fc.inner.Close() }

func (fc *flakyConnection) IsOpen() bool {
	return atomic.LoadInt32(fc.open) == 1 && fc.inner.IsOpen()
}

func TestServerDeviceFailureHaltsAllSessions(t *testing.T) {
	is := is.New(t)

	open := int32(1)
	s := facecast.NewServer(
		testConfigResolver{disableMockCapturer: true},
		&flakyBackend{inner: videobackend.Mock(), open: &open},
	)
	is.NoErr(s.LoadConfiguration())
	defer func() { <-s.Shutdown() }()

	firstViewer, firstOffer := viewerOffer(t)
	defer firstViewer.Close()
	_, _, err := s.CreateSession(firstOffer)
	is.NoErr(err)

	secondViewer, secondOffer := viewerOffer(t)
	defer secondViewer.Close()
	_, _, err = s.CreateSession(secondOffer)
	is.NoErr(err)

	is.Equal(len(s.Stats().Sessions), 2)
	is.True(s.Stats().CameraConnected)

	atomic.StoreInt32(&open, 0)

	deadline := time.After(5 * time.Second)
	for {
		stats := s.Stats()
		if len(stats.Sessions) == 0 && !stats.CameraConnected {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("device failure left %d sessions alive", len(stats.Sessions))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestServerCapturesFramesWhileSessionActive(t *testing.T) {
	is := is.New(t)

	s := facecast.NewServer(testConfigResolver{}, videobackend.Mock())
	is.NoErr(s.LoadConfiguration())
	defer func() { <-s.Shutdown() }()

	viewer, offer := viewerOffer(t)
	defer viewer.Close()

	_, _, err := s.CreateSession(offer)
	is.NoErr(err)

	deadline := time.After(5 * time.Second)
	for s.Stats().FramesCaptured == 0 {
		select {
		case <-deadline:
			t.Fatal("pipeline never captured a frame")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
