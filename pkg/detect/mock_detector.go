package detect

import (
	"image"

	"github.com/tauraamui/facecast/pkg/video/videoframe"
)

// Mock returns a detector which always finds a single centered
// face at a fixed confidence. Useful against the mock video
// backend and in tests.
func Mock() Detector {
	return &mockDetector{confidence: 10}
}

type mockDetector struct {
	confidence float32
}

func (d *mockDetector) Detect(frame videoframe.NoCloser) ([]FaceRegion, error) {
	dims := frame.Dimensions()
	w, h := dims.W/3, dims.H/3
	region := image.Rect(
		dims.W/2-w/2, dims.H/2-h/2,
		dims.W/2+w/2, dims.H/2+h/2,
	)
	return []FaceRegion{{Rect: region, Confidence: d.confidence}}, nil
}

func (d *mockDetector) Landmarks(frame videoframe.NoCloser, region FaceRegion) (LandmarkSet, error) {
	cx := (region.Rect.Min.X + region.Rect.Max.X) / 2
	cy := (region.Rect.Min.Y + region.Rect.Max.Y) / 2
	eyeOffsetX := region.Rect.Dx() / 5
	eyeOffsetY := region.Rect.Dy() / 6
	eyeRadius := region.Rect.Dx() / 16

	return LandmarkSet{
		Contour:  contourPoints(region),
		LeftEye:  eyePoints(cx-eyeOffsetX, cy-eyeOffsetY, eyeRadius),
		RightEye: eyePoints(cx+eyeOffsetX, cy-eyeOffsetY, eyeRadius),
		Nose: []image.Point{
			{X: cx - eyeRadius, Y: cy + eyeOffsetY},
			{X: cx, Y: cy - eyeOffsetY/2},
			{X: cx, Y: cy + eyeOffsetY},
			{X: cx + eyeRadius, Y: cy + eyeOffsetY},
		},
		Mouth: []image.Point{
			{X: cx - eyeOffsetX, Y: cy + 2*eyeOffsetY},
			{X: cx, Y: cy + 2*eyeOffsetY + eyeRadius},
			{X: cx + eyeOffsetX, Y: cy + 2*eyeOffsetY},
		},
	}, nil
}
