package facecast

import (
	"fmt"
	"sync"
	"time"

	"github.com/tauraamui/facecast/internal/config"
	"github.com/tauraamui/facecast/pkg/annotate"
	"github.com/tauraamui/facecast/pkg/camera"
	"github.com/tauraamui/facecast/pkg/configdef"
	"github.com/tauraamui/facecast/pkg/detect"
	"github.com/tauraamui/facecast/pkg/facecast/process"
	"github.com/tauraamui/facecast/pkg/log"
	"github.com/tauraamui/facecast/pkg/stream"
	"github.com/tauraamui/facecast/pkg/video/videobackend"
	"github.com/tauraamui/facecast/pkg/video/videoframe"
	webrtcx "github.com/tauraamui/facecast/pkg/webrtc"
)

const frameBufferSize = 3

// Server owns the whole capture and annotation pipeline. The
// camera is a process wide resource, acquired when the first
// session negotiates and released once the last one closes.
type Server struct {
	configResolver configdef.Resolver
	config         configdef.Values
	backend        videobackend.Backend
	detector       detect.Detector
	annotator      *annotate.Annotator
	fanout         *stream.Fanout

	mu           sync.Mutex
	cam          camera.Connection
	capture      *process.CaptureProcess
	annotate     process.Process
	frames       chan videoframe.Frame
	sessions     map[string]*webrtcx.Session
	shutdownDone chan interface{}
}

func NewServer(cr configdef.Resolver, backend videobackend.Backend) *Server {
	if cr == nil {
		cr = config.DefaultResolver()
	}
	return &Server{
		configResolver: cr,
		backend:        backend,
		fanout:         stream.NewFanout(),
		sessions:       map[string]*webrtcx.Session{},
	}
}

func (s *Server) LoadConfiguration() error {
	values, err := s.configResolver.Resolve()
	if err != nil {
		return err
	}

	s.config = values
	if values.Debug {
		log.SetDebug()
	}
	if values.Camera.MockCapturer {
		s.backend = videobackend.Mock()
	}

	return s.setupAnnotator()
}

func (s *Server) setupAnnotator() error {
	if s.config.Detection.MockDetector {
		s.detector = detect.Mock()
	} else {
		detector, err := detect.NewPigoDetector(detect.Settings{
			CascadePath: s.config.Detection.CascadePath,
			PuplocPath:  s.config.Detection.PuplocPath,
			LandmarkDir: s.config.Detection.LandmarkDir,
		})
		if err != nil {
			return fmt.Errorf("unable to init face detector: %w", err)
		}
		s.detector = detector
	}

	s.annotator = annotate.New(s.detector, s.config.Detection.MinConfidence)
	return nil
}

func (s *Server) Config() configdef.Values {
	return s.config
}

// acquireCamera connects the device and spins up the capture and
// annotate processes. Caller must hold s.mu.
func (s *Server) acquireCamera() error {
	if s.cam != nil && s.cam.IsOpen() {
		return nil
	}

	log.Info("Connecting to camera: [%s]...", s.config.Camera.Title)
	conn, err := camera.Connect(
		s.config.Camera.Title,
		s.config.Camera.Address,
		camera.Settings{FPS: s.config.Camera.FPS},
		s.backend,
	)
	if err != nil {
		return err
	}
	log.Info("Connected successfully to camera: [%s]", conn.Title())

	s.cam = conn
	s.frames = make(chan videoframe.Frame, frameBufferSize)

	s.capture = process.NewCaptureProcess(conn, s.frames, s.handleDeviceFailure)
	s.capture.Setup()

	s.annotate = process.New(process.Settings{
		WaitForShutdownMsg: fmt.Sprintf("Stopping annotating [%s] video stream...", conn.Title()),
		Run:                process.AnnotateFramesProcess(s.annotator, s.fanout, s.frames),
	}).Setup()

	s.annotate.Start()
	s.capture.Start()

	return nil
}

// releaseCamera winds down the pipeline. Caller must hold s.mu.
func (s *Server) releaseCamera() {
	if s.cam == nil {
		return
	}

	log.Warn("Closing camera connection: [%s]...", s.cam.Title())
	s.capture.Stop()
	s.annotate.Stop()
	s.capture.Wait()
	s.annotate.Wait()

	s.cam.Close()
	s.cam = nil

	s.drainFrames()
}

func (s *Server) drainFrames() {
	for {
		select {
		case frame := <-s.frames:
			frame.Close()
		default:
			return
		}
	}
}

func (s *Server) handleDeviceFailure(err error) {
	log.Error("camera device failure, halting all sessions: %s", err.Error())

	s.mu.Lock()
	sessions := make([]*webrtcx.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
}

func (s *Server) Shutdown() chan interface{} {
	s.shutdownDone = make(chan interface{})

	s.mu.Lock()
	sessions := make([]*webrtcx.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessions = map[string]*webrtcx.Session{}
	s.mu.Unlock()

	for _, sess := range sessions {
		s.fanout.Detach(sess.UUID())
		sess.Close()
	}

	s.mu.Lock()
	s.releaseCamera()
	s.mu.Unlock()

	close(s.shutdownDone)
	return s.shutdownDone
}

func (s *Server) sessionSettings() webrtcx.Settings {
	return webrtcx.Settings{
		NegotiationTimeout: time.Duration(s.config.WebRTC.NegotiationTimeoutSecs) * time.Second,
		STUNServers:        s.config.WebRTC.STUNServers,
		FPS:                s.config.Camera.FPS,
	}
}
