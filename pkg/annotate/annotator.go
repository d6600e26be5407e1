package annotate

import (
	"sync/atomic"

	"github.com/tauraamui/facecast/pkg/detect"
	"github.com/tauraamui/facecast/pkg/log"
	"github.com/tauraamui/facecast/pkg/video/videoframe"
)

// Annotator draws facial landmark overlays into frames. A frame
// without an acceptable detection passes through untouched, and a
// misbehaving detector only ever costs the current frame.
type Annotator struct {
	detector      detect.Detector
	minConfidence float32

	detectionFailures uint64
	framesAnnotated   uint64
	framesPassed      uint64
}

type Stats struct {
	DetectionFailures uint64
	FramesAnnotated   uint64
	FramesPassed      uint64
}

func New(detector detect.Detector, minConfidence float32) *Annotator {
	return &Annotator{detector: detector, minConfidence: minConfidence}
}

// Annotate runs detection over the frame and rasterizes the
// landmark overlay directly into its pixel data. The frame keeps
// its dimensions and sequence number either way. Detector errors
// are recovered as "no detection": counted, logged and the frame
// passes through unmodified.
func (a *Annotator) Annotate(frame videoframe.Frame) videoframe.Frame {
	candidates, err := a.detector.Detect(frame)
	if err != nil {
		a.recordFailure("detect", frame, err)
		return frame
	}

	region, ok := detect.Best(candidates)
	if !ok || region.Confidence < a.minConfidence {
		atomic.AddUint64(&a.framesPassed, 1)
		return frame
	}

	landmarks, err := a.detector.Landmarks(frame, region)
	if err != nil {
		a.recordFailure("landmarks", frame, err)
		return frame
	}

	if landmarks.Empty() {
		atomic.AddUint64(&a.framesPassed, 1)
		return frame
	}

	if err := drawLandmarks(frame, landmarks); err != nil {
		a.recordFailure("draw", frame, err)
		return frame
	}

	atomic.AddUint64(&a.framesAnnotated, 1)
	return frame
}

func (a *Annotator) recordFailure(stage string, frame videoframe.NoCloser, err error) {
	atomic.AddUint64(&a.detectionFailures, 1)
	atomic.AddUint64(&a.framesPassed, 1)
	log.Debug("annotation %s failure on frame %d: %s", stage, frame.Meta().Seq, err.Error())
}

func (a *Annotator) Stats() Stats {
	return Stats{
		DetectionFailures: atomic.LoadUint64(&a.detectionFailures),
		FramesAnnotated:   atomic.LoadUint64(&a.framesAnnotated),
		FramesPassed:      atomic.LoadUint64(&a.framesPassed),
	}
}
