package detect

import (
	"image"
	"math"

	pigo "github.com/esimov/pigo/core"
	"github.com/spf13/afero"
	"github.com/tauraamui/facecast/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
)

var fs = afero.NewOsFs()

const (
	clusterIOUThreshold = 0.2
	minFaceSize         = 60
	eyePerturbs         = 50
	landmarkPerturbs    = 63
)

var mouthCascades = []string{"lp93", "lp84", "lp82", "lp81"}

type Settings struct {
	CascadePath string
	PuplocPath  string
	LandmarkDir string
}

// PigoDetector runs the pigo face finder over the whole frame and
// the puploc/flp cascades within an accepted face region.
type PigoDetector struct {
	classifier *pigo.Pigo
	puploc     *pigo.PuplocCascade
	flpcs      map[string][]*pigo.FlpCascade
}

func NewPigoDetector(sett Settings) (*PigoDetector, error) {
	cascade, err := afero.ReadFile(fs, sett.CascadePath)
	if err != nil {
		return nil, xerror.Errorf("unable to read face cascade file: %w", err)
	}

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, xerror.Errorf("unable to unpack face cascade: %w", err)
	}

	d := PigoDetector{classifier: classifier}

	if len(sett.PuplocPath) > 0 {
		puplocCascade, err := afero.ReadFile(fs, sett.PuplocPath)
		if err != nil {
			return nil, xerror.Errorf("unable to read puploc cascade file: %w", err)
		}

		plc, err := pigo.NewPuplocCascade().UnpackCascade(puplocCascade)
		if err != nil {
			return nil, xerror.Errorf("unable to unpack puploc cascade: %w", err)
		}
		d.puploc = plc

		if len(sett.LandmarkDir) > 0 {
			// pigo reads the landmark point cascades from disk itself
			flpcs, err := plc.ReadCascadeDir(sett.LandmarkDir)
			if err != nil {
				return nil, xerror.Errorf("unable to read landmark cascade dir: %w", err)
			}
			d.flpcs = flpcs
		}
	}

	return &d, nil
}

func (d *PigoDetector) Detect(frame videoframe.NoCloser) ([]FaceRegion, error) {
	imgParams, cleanup, err := grayImageParams(frame)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	dims := frame.Dimensions()
	maxSize := dims.W
	if dims.H > maxSize {
		maxSize = dims.H
	}

	dets := d.classifier.RunCascade(pigo.CascadeParams{
		MinSize:     minFaceSize,
		MaxSize:     maxSize,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: *imgParams,
	}, 0.0)
	dets = d.classifier.ClusterDetections(dets, clusterIOUThreshold)

	candidates := make([]FaceRegion, 0, len(dets))
	for _, det := range dets {
		half := det.Scale / 2
		candidates = append(candidates, FaceRegion{
			Rect:       image.Rect(det.Col-half, det.Row-half, det.Col+half, det.Row+half),
			Confidence: det.Q,
		})
	}
	return candidates, nil
}

func (d *PigoDetector) Landmarks(frame videoframe.NoCloser, region FaceRegion) (LandmarkSet, error) {
	imgParams, cleanup, err := grayImageParams(frame)
	if err != nil {
		return LandmarkSet{}, err
	}
	defer cleanup()

	set := LandmarkSet{Contour: contourPoints(region)}
	if d.puploc == nil {
		return set, nil
	}

	scale := float32(region.Rect.Dx())
	row := region.Rect.Min.Y + region.Rect.Dy()/2
	col := region.Rect.Min.X + region.Rect.Dx()/2

	leftEye := d.puploc.RunDetector(pigo.Puploc{
		Row:      row - int(0.075*scale),
		Col:      col - int(0.175*scale),
		Scale:    scale * 0.25,
		Perturbs: eyePerturbs,
	}, *imgParams, 0.0, false)

	rightEye := d.puploc.RunDetector(pigo.Puploc{
		Row:      row - int(0.075*scale),
		Col:      col + int(0.185*scale),
		Scale:    scale * 0.25,
		Perturbs: eyePerturbs,
	}, *imgParams, 0.0, false)

	if leftEye.Row <= 0 || leftEye.Col <= 0 || rightEye.Row <= 0 || rightEye.Col <= 0 {
		return set, nil
	}

	eyeRadius := int(scale * 0.06)
	set.LeftEye = eyePoints(leftEye.Col, leftEye.Row, eyeRadius)
	set.RightEye = eyePoints(rightEye.Col, rightEye.Row, eyeRadius)
	set.Nose = nosePoints(leftEye, rightEye, region)

	for _, name := range mouthCascades {
		for _, flpc := range d.flpcs[name] {
			flp := flpc.GetLandmarkPoint(leftEye, rightEye, *imgParams, landmarkPerturbs, false)
			if flp.Row > 0 && flp.Col > 0 {
				set.Mouth = append(set.Mouth, image.Pt(flp.Col, flp.Row))
			}
			flp = flpc.GetLandmarkPoint(leftEye, rightEye, *imgParams, landmarkPerturbs, true)
			if flp.Row > 0 && flp.Col > 0 {
				set.Mouth = append(set.Mouth, image.Pt(flp.Col, flp.Row))
			}
		}
	}

	return set, nil
}

// grayImageParams converts the frame's mat to a single channel
// pixel buffer in the layout pigo expects. The returned cleanup
// must be called once the params are no longer needed.
func grayImageParams(frame videoframe.NoCloser) (*pigo.ImageParams, func(), error) {
	mat, ok := frame.DataRef().(*gocv.Mat)
	if !ok {
		return nil, nil, xerror.New("must pass OpenCV frame to pigo detector")
	}

	gray := gocv.NewMat()
	gocv.CvtColor(*mat, &gray, gocv.ColorBGRToGray)

	pixels, err := gray.DataPtrUint8()
	if err != nil {
		gray.Close()
		return nil, nil, xerror.Errorf("unable to access grayscale pixel data: %w", err)
	}

	return &pigo.ImageParams{
		Pixels: pixels,
		Rows:   gray.Rows(),
		Cols:   gray.Cols(),
		Dim:    gray.Cols(),
	}, func() { gray.Close() }, nil
}

// contourPoints samples the jawline as an ellipse arc fitted to
// the face region. pigo has no dense contour model so the drawn
// contour derives from the detection box.
func contourPoints(region FaceRegion) []image.Point {
	cx := float64(region.Rect.Min.X+region.Rect.Max.X) / 2
	cy := float64(region.Rect.Min.Y+region.Rect.Max.Y) / 2
	rx := float64(region.Rect.Dx()) * 0.45
	ry := float64(region.Rect.Dy()) * 0.48

	points := make([]image.Point, 0, 13)
	for deg := -15; deg <= 195; deg += 18 {
		rad := float64(deg) * math.Pi / 180
		points = append(points, image.Pt(
			int(cx-rx*math.Cos(rad)),
			int(cy+ry*math.Sin(rad)),
		))
	}
	return points
}

func eyePoints(cx, cy, r int) []image.Point {
	if r < 2 {
		r = 2
	}
	return []image.Point{
		{X: cx - r*2, Y: cy},
		{X: cx, Y: cy - r},
		{X: cx + r*2, Y: cy},
		{X: cx, Y: cy + r},
	}
}

func nosePoints(leftEye, rightEye *pigo.Puploc, region FaceRegion) []image.Point {
	bridgeX := (leftEye.Col + rightEye.Col) / 2
	bridgeY := (leftEye.Row + rightEye.Row) / 2
	tipY := bridgeY + int(float64(region.Rect.Dy())*0.28)
	nostrilSpread := region.Rect.Dx() / 10

	return []image.Point{
		{X: bridgeX - nostrilSpread, Y: tipY},
		{X: bridgeX, Y: bridgeY},
		{X: bridgeX, Y: tipY},
		{X: bridgeX + nostrilSpread, Y: tipY},
	}
}
