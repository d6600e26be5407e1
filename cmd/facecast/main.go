package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/tacusci/logging/v2"
	"github.com/takama/daemon"
	"github.com/tauraamui/facecast/internal/config"
	"github.com/tauraamui/facecast/pkg/configdef"
	"github.com/tauraamui/facecast/pkg/facecast"
	"github.com/tauraamui/facecast/pkg/log"
	signalling "github.com/tauraamui/facecast/pkg/signal"
	"github.com/tauraamui/facecast/pkg/video/videobackend"
	"gocv.io/x/gocv"
)

const (
	name        = "facecast_daemon"
	description = "Facecast service daemon which streams annotated webcam video over WebRTC"
)

type Service struct {
	daemon.Daemon
}

// Setup writes the default config file to disk
func (service *Service) Setup() (string, error) {
	log.Info("Setting up facecast service...")

	err := config.DefaultCreator().Create()
	if err != nil {
		if !errors.Is(err, configdef.ErrConfigAlreadyExists) {
			return "", err
		}
		log.Error(err.Error())
	}

	return "Setup successful...", nil
}

func (service *Service) RemoveSetup() (string, error) {
	log.Info("Removing setup for facecast service...")
	if err := config.DefaultDestroyer().Destroy(); err != nil {
		log.Error("unable to delete config file: %s", err.Error())
	}

	return "Removing setup successful...", nil
}

func (service *Service) Manage() (string, error) {
	usage := "Usage: facecast setup | remove-setup | install | remove | start | stop | status"

	if len(os.Args) > 1 {
		command := os.Args[1]
		switch command {
		case "setup":
			return service.Setup()
		case "remove-setup":
			return service.RemoveSetup()
		case "install":
			return service.Install()
		case "remove":
			return service.Remove()
		case "start":
			return service.Start()
		case "stop":
			return service.Stop()
		case "status":
			return service.Status()
		default:
			return usage, nil
		}
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	log.Info("Starting facecast daemon...")

	server := facecast.NewServer(
		config.DefaultResolver(),
		videobackend.Resolve(os.Getenv("FACECAST_VIDEO_BACKEND")),
	)
	if err := server.LoadConfiguration(); err != nil {
		log.Fatal(err.Error())
	}

	signalServer, err := signalling.NewServer(server)
	if err != nil {
		log.Fatal(err.Error())
	}

	go listenAndServe(signalServer, server.Config())

	killSignal := <-interrupt
	fmt.Print("\r")
	log.Error("Received signal: %s", killSignal)

	log.Info("Shutting down server...")
	if err := signalServer.Shutdown(); err != nil {
		log.Error("unable to shut down signaling endpoint: %s", err.Error())
	}
	<-server.Shutdown()

	var b bytes.Buffer
	gocv.MatProfile.Count()
	gocv.MatProfile.WriteTo(&b, 1)
	fmt.Print(b.String())

	return "Shutdown successful... BYE! 👋", nil
}

func listenAndServe(server *signalling.Server, cfg configdef.Values) {
	addr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port)
	if err := server.Listen(addr); err != nil {
		log.Fatal(err.Error())
	}
}

func init() {
	logging.CallbackLabelLevel = 5
	logging.ColorLogLevelLabelOnly = true
	loggingLevel := os.Getenv("FACECAST_LOGGING_LEVEL")

	switch strings.ToLower(loggingLevel) {
	case "info":
		logging.CurrentLoggingLevel = logging.InfoLevel
	case "warn":
		logging.CurrentLoggingLevel = logging.WarnLevel
	case "debug":
		logging.CurrentLoggingLevel = logging.DebugLevel
		logging.CallbackLabel = true
	default:
		logging.CurrentLoggingLevel = logging.WarnLevel
	}
}

func main() {
	daemonType := daemon.SystemDaemon
	if runtime.GOOS == "darwin" {
		daemonType = daemon.UserAgent
	}

	srv, err := daemon.New(name, description, daemonType)
	if err != nil {
		logging.Error(err.Error()) //nolint
		os.Exit(1)
	}

	service := &Service{srv}
	status, err := service.Manage()
	if err != nil {
		logging.Error(err.Error()) //nolint
		os.Exit(1)
	}

	logging.Info(status) //nolint
}
