package signal

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/gofiber/fiber/v2"
	"github.com/pion/webrtc/v3"
	"github.com/tauraamui/facecast/pkg/log"
	webrtcx "github.com/tauraamui/facecast/pkg/webrtc"
)

// ErrUnknownSession is resolved against broker failures to decide
// whether a session lookup rather than the operation itself failed.
var ErrUnknownSession = errors.New("unknown session")

// Broker negotiates and manages media sessions on behalf of the
// signaling endpoint. The endpoint itself never touches frame data.
type Broker interface {
	CreateSession(offer webrtc.SessionDescription) (string, webrtc.SessionDescription, error)
	AddCandidate(id string, candidate webrtc.ICECandidateInit) error
	CloseSession(id string) error
	Stats() Stats
}

type Stats struct {
	CameraTitle       string          `json:"camera_title"`
	CameraConnected   bool            `json:"camera_connected"`
	FramesCaptured    uint64          `json:"frames_captured"`
	FramesDropped     uint64          `json:"frames_dropped"`
	FramesAnnotated   uint64          `json:"frames_annotated"`
	FramesPassed      uint64          `json:"frames_passed"`
	DetectionFailures uint64          `json:"detection_failures"`
	Sessions          []webrtcx.Stats `json:"sessions"`
}

type offerRequest struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

type answerResponse struct {
	ID   string `json:"id"`
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

type candidateRequest struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
}

type Server struct {
	app    *fiber.App
	broker Broker
	cache  *ristretto.Cache
}

const statsCacheKey = "stats-snapshot"

func NewServer(broker Broker) (*Server, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 64,
		MaxCost:     8,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to init stats cache: %w", err)
	}

	server := Server{
		app: fiber.New(fiber.Config{
			AppName:               "facecast",
			DisableStartupMessage: true,
		}),
		broker: broker,
		cache:  cache,
	}

	server.app.Get("/", server.handleIndex)
	server.app.Post("/offer", server.handleOffer)
	server.app.Post("/sessions/:id/candidate", server.handleCandidate)
	server.app.Delete("/sessions/:id", server.handleCloseSession)
	server.app.Get("/stats", server.handleStats)

	return &server, nil
}

func (s *Server) Listen(addr string) error {
	log.Info("signaling endpoint listening on %s", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	defer s.cache.Close()
	return s.app.Shutdown()
}

func (s *Server) handleOffer(c *fiber.Ctx) error {
	var req offerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed offer payload")
	}

	if req.Type != "offer" || len(req.SDP) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "payload is not an offer")
	}

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: req.SDP}
	id, answer, err := s.broker.CreateSession(offer)
	if err != nil {
		log.Warn("rejecting session offer: %s", err.Error())
		switch {
		case errors.Is(err, webrtcx.ErrOfferRejected):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, webrtcx.ErrNegotiationTimeout):
			return fiber.NewError(fiber.StatusGatewayTimeout, err.Error())
		default:
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
	}

	log.Info("negotiated session [%s]", id)
	return c.JSON(answerResponse{ID: id, SDP: answer.SDP, Type: answer.Type.String()})
}

func (s *Server) handleCandidate(c *fiber.Ctx) error {
	var req candidateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed candidate payload")
	}

	candidate := webrtc.ICECandidateInit{
		Candidate:     req.Candidate,
		SDPMid:        req.SDPMid,
		SDPMLineIndex: req.SDPMLineIndex,
	}

	if err := s.broker.AddCandidate(c.Params("id"), candidate); err != nil {
		if errors.Is(err, ErrUnknownSession) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleCloseSession(c *fiber.Ctx) error {
	if err := s.broker.CloseSession(c.Params("id")); err != nil {
		if errors.Is(err, ErrUnknownSession) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	if snapshot, ok := s.cache.Get(statsCacheKey); ok {
		return c.JSON(snapshot)
	}

	snapshot := s.broker.Stats()
	s.cache.SetWithTTL(statsCacheKey, snapshot, 1, time.Second)
	return c.JSON(snapshot)
}
