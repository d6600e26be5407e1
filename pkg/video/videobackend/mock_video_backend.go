package videobackend

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/google/uuid"
	"github.com/tauraamui/facecast/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

type mockVideoBackend struct{}

func (b *mockVideoBackend) Connect(cancel context.Context, addr string) (Connection, error) {
	return &mockVideoConnection{deviceAddr: addr}, nil
}

func (b *mockVideoBackend) NewFrame() videoframe.Frame {
	return &openCVFrame{mat: gocv.NewMat()}
}

type mockVideoConnection struct {
	uuid            string
	deviceAddr      string
	isClosed        bool
	renderedCanvas  bool
	baseFrameCanvas image.Image
}

func (mvc *mockVideoConnection) UUID() string {
	if len(mvc.uuid) == 0 {
		mvc.uuid = uuid.NewString()
	}
	return mvc.uuid
}

func (mvc *mockVideoConnection) Read(frame videoframe.Frame) error {
	frameMatRef, ok := frame.DataRef().(*gocv.Mat)
	if !ok {
		return xerror.New("must pass OpenCV frame to MockVideo connection read")
	}

	if !mvc.renderedCanvas {
		mvc.baseFrameCanvas = renderBaseFrameCanvas()
		mvc.renderedCanvas = true
	}

	img, err := drawTextLayerOntoBaseFrameClone(mvc.baseFrameCanvas, mvc.deviceAddr)
	if err != nil {
		return err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return xerror.Errorf("unable to convert Go image into OpenCV mat: %w", err)
	}
	defer mat.Close()

	mat.CopyTo(frameMatRef)

	return nil
}

func (mvc *mockVideoConnection) IsOpen() bool {
	return !mvc.isClosed
}

func (mvc *mockVideoConnection) Close() error {
	mvc.isClosed = true
	mvc.renderedCanvas = false
	mvc.baseFrameCanvas = nil
	return nil
}

func drawTextLayerOntoBaseFrameClone(base image.Image, deviceAddr string) (image.Image, error) {
	baseClone := cloneImage(base)
	err := drawText(baseClone, 5, 50, "FACECAST_MOCK_STREAM")
	if err != nil {
		return nil, xerror.Errorf("unable to draw text onto in-mem image for mock stream: %w", err)
	}

	err = drawText(baseClone, 5, 180, deviceAddr)
	if err != nil {
		return nil, xerror.Errorf("unable to draw text onto in-mem image for mock stream: %w", err) //nolint
	}
	err = drawText(baseClone, 5, 310, time.Now().Format("2006-01-02 15:04:05.999999999"))
	if err != nil {
		return nil, xerror.Errorf("unable to draw text onto in-mem image for mock stream: %w", err) //nolint
	}
	return baseClone, nil
}

// renderBaseFrameCanvas draws a crude face shaped figure so that
// a real detector pointed at the mock stream has something to find.
func renderBaseFrameCanvas() image.Image {
	var w, h int = 640, 480
	var hw, hh float64 = float64(w / 2), float64(h / 2)
	head := &circle{hw, hh, 140}
	leftEye := &circle{hw - 50, hh - 40, 18}
	rightEye := &circle{hw + 50, hh - 40, 18}
	mouth := &circle{hw, hh + 60, 35}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			fx, fy := float64(x), float64(y)
			c := color.RGBA{30, 30, 46, 255}
			if head.Brightness(fx, fy) > 0 {
				c = color.RGBA{224, 190, 160, 255}
			}
			if leftEye.Brightness(fx, fy) > 0 || rightEye.Brightness(fx, fy) > 0 || mouth.Brightness(fx, fy) > 0 {
				c = color.RGBA{40, 30, 25, 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func cloneImage(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}

func drawText(canvas *image.RGBA, x, y int, text string) error {
	var (
		fgColor  image.Image
		fontFace *truetype.Font
		err      error
		fontSize = 32.0
	)
	fgColor = image.White
	fontFace, err = freetype.ParseFont(goregular.TTF)
	fontDrawer := &font.Drawer{
		Dst: canvas,
		Src: fgColor,
		Face: truetype.NewFace(fontFace, &truetype.Options{
			Size:    fontSize,
			Hinting: font.HintingFull,
		}),
	}
	textBounds, _ := fontDrawer.BoundString(text)
	textHeight := textBounds.Max.Y - textBounds.Min.Y
	yPosition := fixed.I((y)-textHeight.Ceil())/2 + fixed.I(textHeight.Ceil())
	fontDrawer.Dot = fixed.Point26_6{
		X: fixed.I(x),
		Y: yPosition,
	}
	fontDrawer.DrawString(text)
	return err
}

type circle struct {
	X, Y, R float64
}

func (c *circle) Brightness(x, y float64) uint8 {
	var dx, dy float64 = c.X - x, c.Y - y
	d := math.Sqrt(dx*dx+dy*dy) / c.R
	if d > 1 {
		return 0
	}
	return 255
}
