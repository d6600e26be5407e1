package facecast

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v3"
	"github.com/tauraamui/facecast/pkg/log"
	"github.com/tauraamui/facecast/pkg/signal"
	webrtcx "github.com/tauraamui/facecast/pkg/webrtc"
)

// CreateSession negotiates a new viewer session against the given
// offer. The first successful session acquires the camera.
func (s *Server) CreateSession(offer webrtc.SessionDescription) (string, webrtc.SessionDescription, error) {
	sess, err := webrtcx.NewSession(s.sessionSettings(), s.handleSessionClosed)
	if err != nil {
		return "", webrtc.SessionDescription{}, err
	}

	s.mu.Lock()
	if err := s.acquireCamera(); err != nil {
		s.mu.Unlock()
		sess.Close()
		return "", webrtc.SessionDescription{}, err
	}
	s.sessions[sess.UUID()] = sess
	s.mu.Unlock()

	answer, err := sess.Negotiate(context.Background(), offer)
	if err != nil {
		return "", webrtc.SessionDescription{}, err
	}

	s.fanout.Attach(sess.UUID(), sess)
	return sess.UUID(), answer, nil
}

func (s *Server) AddCandidate(id string, candidate webrtc.ICECandidateInit) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: [%s]", signal.ErrUnknownSession, id)
	}
	return sess.AddCandidate(candidate)
}

func (s *Server) CloseSession(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: [%s]", signal.ErrUnknownSession, id)
	}
	return sess.Close()
}

// handleSessionClosed detaches the session from the pipeline and
// releases the camera once no sessions remain. Runs off the
// session's own goroutine so it may take s.mu freely.
func (s *Server) handleSessionClosed(sess *webrtcx.Session) {
	s.fanout.Detach(sess.UUID())

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.UUID()]; !ok {
		return
	}
	delete(s.sessions, sess.UUID())

	if err := sess.Err(); err != nil {
		log.Warn("session [%s] closed: %s", sess.UUID(), err.Error())
	} else {
		log.Info("session [%s] closed", sess.UUID())
	}

	if len(s.sessions) == 0 {
		s.releaseCamera()
	}
}

func (s *Server) Stats() signal.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := signal.Stats{
		CameraTitle:     s.config.Camera.Title,
		CameraConnected: s.cam != nil && s.cam.IsOpen(),
		Sessions:        []webrtcx.Stats{},
	}

	if s.capture != nil {
		stats.FramesCaptured = s.capture.Captured()
		stats.FramesDropped = s.capture.Dropped()
	}

	if s.annotator != nil {
		annotatorStats := s.annotator.Stats()
		stats.FramesAnnotated = annotatorStats.FramesAnnotated
		stats.FramesPassed = annotatorStats.FramesPassed
		stats.DetectionFailures = annotatorStats.DetectionFailures
	}

	for _, sess := range s.sessions {
		stats.Sessions = append(stats.Sessions, sess.Stats())
	}

	return stats
}
