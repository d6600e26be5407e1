package camera

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tauraamui/facecast/pkg/video/videobackend"
	"github.com/tauraamui/facecast/pkg/video/videoframe"
)

type Connection interface {
	UUID() string
	Read() (videoframe.Frame, error)
	Title() string
	FPS() int
	IsOpen() bool
	IsClosing() bool
	Close() error
}

type connection struct {
	uuid      string
	backend   videobackend.Backend
	title     string
	sett      Settings
	mu        sync.Mutex
	isClosing bool
	seq       uint64
	vc        videobackend.Connection
}

func (c *connection) UUID() string {
	return c.uuid
}

// Read produces the next frame from the device, stamped with a
// monotonically increasing sequence number and capture time. The
// hardware read is bounded; an absent frame surfaces as
// ErrCaptureTimeout rather than blocking the caller forever.
func (c *connection) Read() (videoframe.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	frame := c.backend.NewFrame()
	read := make(chan error, 1)
	go func() { read <- c.vc.Read(frame) }()

	select {
	case err := <-read:
		if err != nil {
			frame.Close()
			return nil, fmt.Errorf("unable to read frame from camera [%s]: %w", c.title, err)
		}
	case <-time.After(c.sett.readTimeout()):
		// leave the blocked read to clean the frame up whenever
		// the device finally responds
		go func() {
			if err := <-read; err == nil {
				frame.Close()
			}
		}()
		return nil, fmt.Errorf("no frame from camera [%s] within %s: %w", c.title, c.sett.readTimeout(), ErrCaptureTimeout)
	}

	c.seq++
	frame.Stamp(videoframe.Meta{Seq: c.seq, Timestamp: time.Now()})
	return frame, nil
}

func (c *connection) Title() string {
	return c.title
}

func (c *connection) FPS() int {
	return c.sett.FPS
}

func (c *connection) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vc.IsOpen()
}

func (c *connection) IsClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isClosing
}

func (c *connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isClosing = true
	return c.vc.Close()
}

func connect(ctx context.Context, title, addr string, settings Settings, backend videobackend.Backend) (Connection, error) {
	vc, err := backend.Connect(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to camera [%s]: %w: %v", title, ErrDeviceUnavailable, err)
	}
	return &connection{
		uuid:    uuid.NewString(),
		backend: backend,
		title:   title,
		vc:      vc,
		sett:    settings,
	}, nil
}

func Connect(title, addr string, settings Settings, backend videobackend.Backend) (Connection, error) {
	return connect(context.Background(), title, addr, settings, backend)
}

func ConnectWithCancel(cancel context.Context, title, addr string, settings Settings, backend videobackend.Backend) (Connection, error) {
	return connect(cancel, title, addr, settings, backend)
}
