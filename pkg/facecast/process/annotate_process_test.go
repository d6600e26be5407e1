package process_test

import (
	"context"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/tauraamui/facecast/pkg/annotate"
	"github.com/tauraamui/facecast/pkg/detect"
	"github.com/tauraamui/facecast/pkg/facecast/process"
	"github.com/tauraamui/facecast/pkg/stream"
	"github.com/tauraamui/facecast/pkg/video/videoframe"
	"gocv.io/x/gocv"
)

type matFrame struct {
	mat    gocv.Mat
	meta   videoframe.Meta
	closed bool
}

func newMatFrame(seq uint64) *matFrame {
	return &matFrame{
		mat:  gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3),
		meta: videoframe.Meta{Seq: seq, Timestamp: time.Now()},
	}
}

func (f *matFrame) DataRef() interface{} { return &f.mat }
func (f *matFrame) Dimensions() videoframe.Dimensions {
	return videoframe.Dimensions{W: f.mat.Cols(), H: f.mat.Rows()}
}
func (f *matFrame) Meta() videoframe.Meta   { return f.meta }
func (f *matFrame) Stamp(m videoframe.Meta) { f.meta = m }
func (f *matFrame) Close() {
	f.closed = true
	f.mat.Close()
}

func TestAnnotateFramesProcessPublishesAnnotatedFrames(t *testing.T) {
	is := is.New(t)

	annotator := annotate.New(detect.Mock(), 0)
	fanout := stream.NewFanout()

	slot := stream.NewSlot()
	fanout.Attach("viewer", slot)

	frames := make(chan videoframe.Frame, 4)
	runner := process.New(process.Settings{
		Run: process.AnnotateFramesProcess(annotator, fanout, frames),
	})
	runner.Setup()
	runner.Start()
	defer func() {
		runner.Stop()
		runner.Wait()
	}()

	frame := newMatFrame(7)
	frames <- frame

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	published, err := slot.Next(ctx)
	is.NoErr(err)
	is.Equal(published.Seq, uint64(7))
	is.Equal(published.Width, 160)
	is.Equal(published.Height, 120)
	is.True(published.Image != nil)
	is.Equal(annotator.Stats().FramesAnnotated, uint64(1))

	deadline := time.After(3 * time.Second)
	for !frame.closed {
		select {
		case <-deadline:
			t.Fatal("source frame never closed after publishing")
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func TestAnnotateFramesProcessStopsOnCancel(t *testing.T) {
	annotator := annotate.New(detect.Mock(), 0)
	fanout := stream.NewFanout()
	frames := make(chan videoframe.Frame)

	runner := process.New(process.Settings{
		WaitForShutdownMsg: "Stopping annotating frames...",
		Run:                process.AnnotateFramesProcess(annotator, fanout, frames),
	})
	runner.Setup()
	runner.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		runner.Stop()
		runner.Wait()
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("annotate process never wound down")
	}
}
