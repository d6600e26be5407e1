package process

import (
	"context"

	"github.com/tauraamui/facecast/pkg/annotate"
	"github.com/tauraamui/facecast/pkg/log"
	"github.com/tauraamui/facecast/pkg/stream"
	"github.com/tauraamui/facecast/pkg/video/videoframe"
	"gocv.io/x/gocv"
)

// AnnotateFramesProcess draws face landmark overlays onto each
// captured frame and publishes the result to every attached
// session. The source frame is always closed here, annotated or
// not.
func AnnotateFramesProcess(
	annotator *annotate.Annotator, fanout *stream.Fanout, frames chan videoframe.Frame,
) func(context.Context) chan interface{} {
	return func(ctx context.Context) chan interface{} {
		stopping := make(chan interface{})
		go func() {
			defer close(stopping)
			for {
				select {
				case <-ctx.Done():
					return
				case frame := <-frames:
					annotateAndPublish(annotator, fanout, frame)
				}
			}
		}()
		return stopping
	}
}

func annotateAndPublish(annotator *annotate.Annotator, fanout *stream.Fanout, frame videoframe.Frame) {
	defer frame.Close()

	annotator.Annotate(frame)

	mat, ok := frame.DataRef().(*gocv.Mat)
	if !ok {
		log.Error("annotated frame does not hold an OpenCV mat reference")
		return
	}

	img, err := mat.ToImage()
	if err != nil {
		log.Error("unable to convert annotated frame for publishing: %s", err.Error())
		return
	}

	dimensions := frame.Dimensions()
	meta := frame.Meta()
	fanout.Publish(&stream.Frame{
		Image:     img,
		Width:     dimensions.W,
		Height:    dimensions.H,
		Seq:       meta.Seq,
		Timestamp: meta.Timestamp,
	})
}
