package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
	return dir
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: "9000"
  timeout: 5s
model:
  backend: onnx
  onnx_path: /models/g.onnx
kafka:
  topic: jobs
`)

	v, err := LoadConfig(dir)
	require.NoError(t, err)
	c, err := ParseConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "9000", c.Server.Port)
	assert.Equal(t, 5*time.Second, c.Server.Timeout)
	assert.Equal(t, "onnx", c.Model.Backend)
	assert.Equal(t, "/models/g.onnx", c.Model.OnnxPath)
	assert.Equal(t, "jobs", c.Kafka.Topic)
	// untouched keys keep their defaults
	assert.Equal(t, "localhost:9094", c.Kafka.Brokers)
	assert.Equal(t, "./storage", c.Storage.Path)
	assert.Equal(t, int64(20<<20), c.Server.MaxUploadBytes)
}

func TestLoadConfigWithoutFileUsesDefaults(t *testing.T) {
	v, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	c, err := ParseConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "8080", c.Server.Port)
	assert.Equal(t, "native", c.Model.Backend)
	assert.Equal(t, "info", c.Log.Level)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := writeConfig(t, "server:\n  port: \"9000\"\n")
	t.Setenv("COLORIZER_SERVER_PORT", "7000")
	t.Setenv("COLORIZER_MODEL_WEIGHTS_PATH", "/tmp/w.safetensors")

	v, err := LoadConfig(dir)
	require.NoError(t, err)
	c, err := ParseConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "7000", c.Server.Port)
	assert.Equal(t, "/tmp/w.safetensors", c.Model.WeightsPath)
}

func TestParseConfigRejectsUnknownBackend(t *testing.T) {
	v, err := LoadConfig(writeConfig(t, "model:\n  backend: tensorflow\n"))
	require.NoError(t, err)
	_, err = ParseConfig(v)
	assert.Error(t, err)
}

func TestLoadConfigRejectsBrokenYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "server: [unclosed\n"))
	assert.Error(t, err)
}

func TestGetEnv(t *testing.T) {
	t.Setenv("COLORIZER_TEST_KEY", "set")
	assert.Equal(t, "set", GetEnv("COLORIZER_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnv("COLORIZER_TEST_MISSING", "fallback"))
}

func TestConfigureLogger(t *testing.T) {
	defer logrus.SetLevel(logrus.GetLevel())
	defer logrus.SetFormatter(logrus.StandardLogger().Formatter)

	require.NoError(t, LogConfig{Level: "debug", Format: "json"}.ConfigureLogger())
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logrus.StandardLogger().Formatter)

	require.NoError(t, LogConfig{Level: "warn", Format: "text"}.ConfigureLogger())
	assert.IsType(t, &logrus.TextFormatter{}, logrus.StandardLogger().Formatter)

	assert.Error(t, LogConfig{Level: "loud"}.ConfigureLogger())
}

func TestModelLoadOptions(t *testing.T) {
	opts := ModelConfig{Backend: "onnx", OnnxPath: "g.onnx", Workers: 3, BaseWidth: 32}.LoadOptions()
	assert.Equal(t, "onnx", opts.Backend)
	assert.Equal(t, "g.onnx", opts.OnnxPath)
	assert.Equal(t, 3, opts.Workers)
	assert.Equal(t, 32, opts.BaseWidth)
}
