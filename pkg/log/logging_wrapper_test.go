package log_test

import (
	"testing"

	"github.com/matryer/is"
	"github.com/tacusci/logging/v2"
	"github.com/tauraamui/facecast/pkg/log"
)

func TestSetDebugDropsLevelGate(t *testing.T) {
	is := is.New(t)

	existingLoggingLevel := logging.CurrentLoggingLevel
	existingCallbackLabel := logging.CallbackLabel
	defer func() {
		logging.CurrentLoggingLevel = existingLoggingLevel
		logging.CallbackLabel = existingCallbackLabel
	}()

	logging.CurrentLoggingLevel = logging.InfoLevel
	logging.CallbackLabel = false

	log.SetDebug()

	is.Equal(logging.CurrentLoggingLevel, logging.DebugLevel)
	is.True(logging.CallbackLabel)
}
