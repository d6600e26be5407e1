package detect

import (
	"image"

	"github.com/tauraamui/facecast/pkg/video/videoframe"
)

// FaceRegion is a candidate face bounding box within a frame's
// coordinate space, scored by the detector.
type FaceRegion struct {
	Rect       image.Rectangle
	Confidence float32
}

func (f FaceRegion) Area() int {
	return f.Rect.Dx() * f.Rect.Dy()
}

// LandmarkSet holds anatomical point groups, valid only relative
// to the frame they were computed from.
type LandmarkSet struct {
	Contour  []image.Point
	LeftEye  []image.Point
	RightEye []image.Point
	Nose     []image.Point
	Mouth    []image.Point
}

func (l LandmarkSet) Empty() bool {
	return len(l.Contour) == 0 &&
		len(l.LeftEye) == 0 &&
		len(l.RightEye) == 0 &&
		len(l.Nose) == 0 &&
		len(l.Mouth) == 0
}

// Detector is the swappable detection capability. Detect returns
// zero or more scored candidates, Landmarks resolves points within
// an already accepted region.
type Detector interface {
	Detect(videoframe.NoCloser) ([]FaceRegion, error)
	Landmarks(videoframe.NoCloser, FaceRegion) (LandmarkSet, error)
}

// Best selects the candidate with the highest confidence, ties
// broken by largest bounding box area.
func Best(candidates []FaceRegion) (FaceRegion, bool) {
	if len(candidates) == 0 {
		return FaceRegion{}, false
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Confidence > best.Confidence {
			best = c
			continue
		}
		if c.Confidence == best.Confidence && c.Area() > best.Area() {
			best = c
		}
	}
	return best, true
}
