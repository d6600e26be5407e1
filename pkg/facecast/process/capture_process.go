package process

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/tauraamui/facecast/pkg/camera"
	"github.com/tauraamui/facecast/pkg/log"
	"github.com/tauraamui/facecast/pkg/video/videoframe"
)

type CaptureProcess struct {
	ctx       context.Context
	cancel    context.CancelFunc
	stopping  chan interface{}
	cam       camera.Connection
	dest      chan videoframe.Frame
	onFailure func(error)
	captured  uint64
	dropped   uint64
}

// NewCaptureProcess pulls frames from the camera into dest for as
// long as the device stays open. A full dest discards the frame
// rather than stalling the read loop. onFailure fires at most once,
// when the device becomes unreadable.
func NewCaptureProcess(cam camera.Connection, dest chan videoframe.Frame, onFailure func(error)) *CaptureProcess {
	ctx, cancel := context.WithCancel(context.Background())
	return &CaptureProcess{
		ctx: ctx, cancel: cancel,
		cam: cam, dest: dest,
		onFailure: onFailure,
		stopping:  make(chan interface{}),
	}
}

func (proc *CaptureProcess) Setup() Process { return proc }

func (proc *CaptureProcess) Start() {
	go proc.run()
}

func (proc *CaptureProcess) run() {
	for {
		time.Sleep(1 * time.Microsecond)
		select {
		case <-proc.ctx.Done():
			close(proc.stopping)
			return
		default:
			if !proc.capture() {
				close(proc.stopping)
				return
			}
		}
	}
}

func (proc *CaptureProcess) capture() bool {
	if !proc.cam.IsOpen() {
		if proc.cam.IsClosing() {
			return true
		}
		proc.fail(camera.ErrDeviceUnavailable)
		return false
	}

	frame, err := proc.cam.Read()
	if err != nil {
		log.Error("unable to read frame from camera [%s]: %s", proc.cam.Title(), err.Error())
		// a stalled device is as fatal as an absent one, anything
		// else is a transient decode failure worth retrying
		if errors.Is(err, camera.ErrDeviceUnavailable) || errors.Is(err, camera.ErrCaptureTimeout) {
			proc.fail(err)
			return false
		}
		return true
	}
	atomic.AddUint64(&proc.captured, 1)

	select {
	case proc.dest <- frame:
	default:
		frame.Close()
		atomic.AddUint64(&proc.dropped, 1)
	}
	return true
}

func (proc *CaptureProcess) fail(err error) {
	log.Error("camera [%s] capture halted: %s", proc.cam.Title(), err.Error())
	if proc.onFailure != nil {
		go proc.onFailure(err)
	}
}

func (proc *CaptureProcess) Captured() uint64 {
	return atomic.LoadUint64(&proc.captured)
}

func (proc *CaptureProcess) Dropped() uint64 {
	return atomic.LoadUint64(&proc.dropped)
}

func (proc *CaptureProcess) Stop() {
	proc.cancel()
}

func (proc *CaptureProcess) Wait() {
	<-proc.stopping
}
