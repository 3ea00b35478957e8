package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "goweatherboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyUSB2"}, cfg.Serial.Devices)
	assert.Equal(t, 500000, cfg.Serial.Baud)
	assert.Equal(t, 9, cfg.Poll.FramesPerCycle)
	assert.Equal(t, 200*time.Millisecond, cfg.Poll.Interval)
	assert.Equal(t, 30, cfg.Decoder.MaxPayload)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
serial:
  devices: [/dev/ttyACM0]
decoder:
  field_map: ssh-drivers
  overrides: "8=board_status:int"
  backoff:
    max_silence: 2s
poll:
  interval: 1s
log:
  level: debug
  format: json
redis:
  enabled: true
  addr: redis:6379
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"/dev/ttyACM0"}, cfg.Serial.Devices)
	assert.Equal(t, 500000, cfg.Serial.Baud, "untouched keys keep defaults")
	assert.Equal(t, "ssh-drivers", cfg.Decoder.FieldMap)
	assert.Equal(t, "8=board_status:int", cfg.Decoder.Overrides)
	assert.Equal(t, 2*time.Second, cfg.Decoder.Backoff.MaxSilence)
	assert.Equal(t, time.Millisecond, cfg.Decoder.Backoff.Initial)
	assert.Equal(t, time.Second, cfg.Poll.Interval)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "weatherboard", cfg.Redis.Channel)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")

	_, err = Load(writeConfig(t, "serial: [broken"))
	require.ErrorContains(t, err, "parse config")

	_, err = Load(writeConfig(t, "poll:\n  interval: 0s\n  frames_per_cycle: -1\n"))
	require.ErrorContains(t, err, "poll.interval")
	require.ErrorContains(t, err, "poll.frames_per_cycle")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Serial.Devices = nil
	cfg.Decoder.Backoff.Initial = time.Second
	cfg.Serial.ReadTimeout = 0
	cfg.Log.Format = "xml"
	cfg.MQTT.Enabled = true
	cfg.MQTT.QoS = 3
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"serial.devices", "serial.read_timeout", "exceeds max", "log.format", "mqtt.qos"} {
		assert.ErrorContains(t, err, want)
	}
}

func TestBackoffPolicy(t *testing.T) {
	b := Default().Decoder.Backoff.BackOff()
	b.Reset()
	assert.LessOrEqual(t, b.NextBackOff(), 2*time.Millisecond)
	for i := 0; i < 20; i++ {
		assert.LessOrEqual(t, b.NextBackOff(), 75*time.Millisecond)
	}

	silent := BackoffConfig{MaxSilence: time.Nanosecond}.BackOff()
	silent.Reset()
	time.Sleep(time.Millisecond)
	assert.Equal(t, backoff.Stop, silent.NextBackOff())
}
