package config

import "github.com/tauraamui/facecast/pkg/configdef"

type defaultSettingKey uint

const (
	BINDADDRESS   defaultSettingKey = 0x0
	PORT          defaultSettingKey = 0x1
	CAMERAADDRESS defaultSettingKey = 0x2
	FPS           defaultSettingKey = 0x3
	MINCONFIDENCE defaultSettingKey = 0x4
	NEGTIMEOUT    defaultSettingKey = 0x5
)

var defaultSettings = map[defaultSettingKey]interface{}{
	BINDADDRESS:   "127.0.0.1",
	PORT:          8080,
	CAMERAADDRESS: "0",
	FPS:           30,
	MINCONFIDENCE: float32(5.0),
	NEGTIMEOUT:    15,
}

func defaultValues() configdef.Values {
	return configdef.Values{
		BindAddress: defaultSettings[BINDADDRESS].(string),
		Port:        defaultSettings[PORT].(int),
		Camera: configdef.Camera{
			Title:   "Webcam",
			Address: defaultSettings[CAMERAADDRESS].(string),
			FPS:     defaultSettings[FPS].(int),
		},
		Detection: configdef.Detection{
			MinConfidence: defaultSettings[MINCONFIDENCE].(float32),
		},
		WebRTC: configdef.WebRTC{
			NegotiationTimeoutSecs: defaultSettings[NEGTIMEOUT].(int),
		},
	}
}
