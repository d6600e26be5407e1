package process

import (
	"context"

	"github.com/tauraamui/facecast/pkg/log"
)

type Process interface {
	Setup() Process
	Start()
	Stop()
	Wait()
}

// Settings describes a run function which owns one or more
// goroutines. Each returned channel is closed by the run function
// once its goroutine has fully wound down.
type Settings struct {
	WaitForShutdownMsg string
	Run                func(context.Context) chan interface{}
}

func New(settings Settings) Process {
	return &process{
		waitForShutdownMsg: settings.WaitForShutdownMsg,
		run:                settings.Run,
	}
}

type process struct {
	run                func(context.Context) chan interface{}
	waitForShutdownMsg string
	canceller          context.CancelFunc
	stopping           chan interface{}
}

func (p *process) Setup() Process { return p }

func (p *process) Start() {
	ctx, canceller := context.WithCancel(context.Background())
	p.canceller = canceller
	p.stopping = p.run(ctx)
}

func (p *process) Stop() {
	if len(p.waitForShutdownMsg) > 0 {
		log.Info(p.waitForShutdownMsg)
	}
	if p.canceller != nil {
		p.canceller()
	}
}

func (p *process) Wait() {
	if p.stopping != nil {
		<-p.stopping
	}
}
