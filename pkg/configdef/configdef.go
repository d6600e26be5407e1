package configdef

import (
	"errors"
	"fmt"

	validate "gopkg.in/dealancer/validate.v2"
)

type Camera struct {
	Title        string `json:"title" validate:"empty=false"`
	Address      string `json:"address"`
	FPS          int    `json:"fps" validate:"gte=1 & lte=60"`
	MockCapturer bool   `json:"mock_capturer"`
}

type Detection struct {
	CascadePath   string  `json:"cascade_path"`
	PuplocPath    string  `json:"puploc_path"`
	LandmarkDir   string  `json:"landmark_dir"`
	MinConfidence float32 `json:"min_confidence"`
	MockDetector  bool    `json:"mock_detector"`
}

type WebRTC struct {
	NegotiationTimeoutSecs int      `json:"negotiation_timeout_secs" validate:"gte=1 & lte=120"`
	STUNServers            []string `json:"stun_servers"`
}

type Values struct {
	Debug       bool      `json:"debug"`
	BindAddress string    `json:"bind_address"`
	Port        int       `json:"port" validate:"gte=1 & lte=65535"`
	Camera      Camera    `json:"camera"`
	Detection   Detection `json:"detection"`
	WebRTC      WebRTC    `json:"webrtc"`
}

func (v Values) RunValidate() error {
	if err := validate.Validate(&v); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return v.Validate()
}

func (v Values) Validate() error {
	const validationErrorHeader = "validation failed: %w"
	if v.Detection.MinConfidence < 0 {
		return fmt.Errorf(validationErrorHeader, errors.New("detection min confidence cannot be negative"))
	}
	return nil
}
