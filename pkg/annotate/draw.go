package annotate

import (
	"image"
	"image/color"

	"github.com/tauraamui/facecast/pkg/detect"
	"github.com/tauraamui/facecast/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
)

// fixed overlay styling, never per-frame state
var (
	strokeColor = color.RGBA{R: 0, G: 255, B: 136, A: 0}
)

const StrokeWidth = 2

func drawLandmarks(frame videoframe.Frame, landmarks detect.LandmarkSet) error {
	mat, ok := frame.DataRef().(*gocv.Mat)
	if !ok {
		return xerror.New("must pass OpenCV frame to landmark rasterizer")
	}

	drawPolyline(mat, landmarks.Contour, false)
	drawPolyline(mat, landmarks.LeftEye, true)
	drawPolyline(mat, landmarks.RightEye, true)
	drawPolyline(mat, landmarks.Nose, false)
	drawPolyline(mat, landmarks.Mouth, true)

	return nil
}

func drawPolyline(mat *gocv.Mat, points []image.Point, closed bool) {
	if len(points) < 2 {
		return
	}

	for i := 1; i < len(points); i++ {
		gocv.Line(mat, points[i-1], points[i], strokeColor, StrokeWidth)
	}
	if closed {
		gocv.Line(mat, points[len(points)-1], points[0], strokeColor, StrokeWidth)
	}
}
