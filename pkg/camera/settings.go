package camera

import "time"

const defaultReadTimeout = 3 * time.Second

type Settings struct {
	FPS         int
	ReadTimeout time.Duration
}

func (s Settings) readTimeout() time.Duration {
	if s.ReadTimeout <= 0 {
		return defaultReadTimeout
	}
	return s.ReadTimeout
}
