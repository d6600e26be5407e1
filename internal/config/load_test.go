package config

import (
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/tauraamui/facecast/pkg/configdef"
)

type LoadConfigTestSuite struct {
	suite.Suite
	configResolver configdef.Resolver
	fs             afero.Fs
	path           string
	configFile     afero.File
}

func (suite *LoadConfigTestSuite) SetupSuite() {
	suite.fs = afero.NewMemMapFs()
	suite.configResolver = DefaultResolver()

	// use in memory FS in implementation for tests
	fs = suite.fs
}

func (suite *LoadConfigTestSuite) TearDownSuite() {
	suite.fs = afero.NewOsFs()
}

func (suite *LoadConfigTestSuite) SetupTest() {
	path, err := resolveConfigPath()
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), suite.fs.MkdirAll(path, os.ModeDir|os.ModePerm))
	suite.path = path

	configFile, err := suite.fs.Create(path)
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), configFile)

	suite.configFile = configFile

	// can be overridden so reset it back before each
	// test to ensure that it's an opt in thing per
	// individual test
	suite.overwriteTestConfig(
		`{
			"debug": true,
			"port": 8080,
			"camera": {"title": "FrontWebcam", "address": "0", "fps": 25},
			"webrtc": {"negotiation_timeout_secs": 9}
		}`,
	)
}

func (suite *LoadConfigTestSuite) overwriteTestConfig(config string) {
	require.NoError(suite.T(), suite.configFile.Truncate(0))
	_, err := suite.configFile.Seek(0, 0)
	require.NoError(suite.T(), err)
	_, err = suite.configFile.WriteString(config)
	assert.NoError(suite.T(), err)
}

func (suite *LoadConfigTestSuite) TearDownTest() {
	require.NoError(suite.T(), suite.configFile.Close())
	suite.fs.Remove(suite.path)
}

func (suite *LoadConfigTestSuite) TestLoadConfig() {
	config, err := suite.configResolver.Resolve()
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), config)

	assert.Equal(suite.T(), true, config.Debug)
	assert.Equal(suite.T(), 8080, config.Port)
	assert.Equal(suite.T(), "FrontWebcam", config.Camera.Title)
	assert.Equal(suite.T(), 25, config.Camera.FPS)
	assert.Equal(suite.T(), 9, config.WebRTC.NegotiationTimeoutSecs)
}

func (suite *LoadConfigTestSuite) TestLoadConfigAppliesDefaults() {
	config, err := suite.configResolver.Resolve()
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), "127.0.0.1", config.BindAddress)
	assert.Equal(suite.T(), float32(5.0), config.Detection.MinConfidence)
}

func (suite *LoadConfigTestSuite) TestConfigLoadFailsValidationOnMissingCameraTitle() {
	suite.overwriteTestConfig(
		`{
			"port": 8080,
			"camera": {"address": "0", "fps": 25},
			"webrtc": {"negotiation_timeout_secs": 9}
		}`,
	)

	config, err := suite.configResolver.Resolve()
	require.Error(suite.T(), err)
	require.Empty(suite.T(), config)
}

func TestLoadConfigTestSuite(t *testing.T) {
	suite.Run(t, &LoadConfigTestSuite{})
}
