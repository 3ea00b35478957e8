package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	Decoder DecoderConfig `yaml:"decoder"`
	Poll    PollConfig    `yaml:"poll"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Redis   RedisConfig   `yaml:"redis"`
}

type SerialConfig struct {
	// Devices are tried in order until one opens.
	Devices     []string      `yaml:"devices"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

type DecoderConfig struct {
	FieldMap   string        `yaml:"field_map"`
	FieldsFile string        `yaml:"fields_file"`
	Overrides  string        `yaml:"overrides"`
	MaxPayload int           `yaml:"max_payload"`
	Backoff    BackoffConfig `yaml:"backoff"`
}

type BackoffConfig struct {
	Initial time.Duration `yaml:"initial"`
	Max     time.Duration `yaml:"max"`
	// MaxSilence fails a cycle once the board has been quiet this long.
	// Zero waits forever.
	MaxSilence time.Duration `yaml:"max_silence"`
}

type PollConfig struct {
	Interval       time.Duration `yaml:"interval"`
	FramesPerCycle int           `yaml:"frames_per_cycle"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type MQTTConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	Topic          string        `yaml:"topic"`
	QoS            byte          `yaml:"qos"`
	Retain         bool          `yaml:"retain"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Channel  string `yaml:"channel"`
	History  int64  `yaml:"history"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Devices:     []string{"/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyUSB2"},
			Baud:        500000,
			ReadTimeout: 100 * time.Millisecond,
		},
		Decoder: DecoderConfig{
			FieldMap:   "odroid-weather",
			MaxPayload: 30,
			Backoff: BackoffConfig{
				Initial: time.Millisecond,
				Max:     50 * time.Millisecond,
			},
		},
		Poll: PollConfig{
			Interval:       200 * time.Millisecond,
			FramesPerCycle: 9,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9108",
		},
		MQTT: MQTTConfig{
			Broker:         "tcp://localhost:1883",
			ClientID:       "goweatherboard",
			Topic:          "weatherboard/climate",
			QoS:            1,
			ConnectTimeout: 5 * time.Second,
			KeepAlive:      30 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 4,
			Channel:  "weatherboard",
			History:  1000,
		},
	}
}

// Load reads path on top of Default, so a file only needs the keys it
// changes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Serial.Devices) == 0 {
		errs = append(errs, errors.New("serial.devices is empty"))
	}
	if c.Serial.Baud <= 0 {
		errs = append(errs, fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud))
	}
	// zero makes tarm/serial block in read, so the decoder never sees a
	// would-block and cannot be cancelled
	if c.Serial.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("serial.read_timeout must be positive, got %s", c.Serial.ReadTimeout))
	}
	if c.Decoder.MaxPayload < 0 {
		errs = append(errs, fmt.Errorf("decoder.max_payload must not be negative, got %d", c.Decoder.MaxPayload))
	}
	if b := c.Decoder.Backoff; b.Initial < 0 || b.Max < 0 || b.MaxSilence < 0 {
		errs = append(errs, errors.New("decoder.backoff durations must not be negative"))
	} else if b.Max > 0 && b.Initial > b.Max {
		errs = append(errs, fmt.Errorf("decoder.backoff.initial %s exceeds max %s", b.Initial, b.Max))
	}
	if c.Poll.Interval <= 0 {
		errs = append(errs, fmt.Errorf("poll.interval must be positive, got %s", c.Poll.Interval))
	}
	if c.Poll.FramesPerCycle <= 0 {
		errs = append(errs, fmt.Errorf("poll.frames_per_cycle must be positive, got %d", c.Poll.FramesPerCycle))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not text or json", c.Log.Format))
	}
	if c.Log.Output == "file" && c.Log.FilePath == "" {
		errs = append(errs, errors.New("log.output is file but log.file_path is empty"))
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" || c.MQTT.Topic == "" {
			errs = append(errs, errors.New("mqtt.broker and mqtt.topic are required"))
		}
		if c.MQTT.QoS > 2 {
			errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required"))
	}
	return errors.Join(errs...)
}

// BackOff builds the decoder's wait policy. A non-zero MaxSilence stops the
// policy once one streak of would-blocks has lasted that long.
func (b BackoffConfig) BackOff() backoff.BackOff {
	initial, ceiling := b.Initial, b.Max
	if initial <= 0 {
		initial = time.Millisecond
	}
	if ceiling <= 0 {
		ceiling = 50 * time.Millisecond
	}
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(initial),
		backoff.WithMaxInterval(ceiling),
		backoff.WithMaxElapsedTime(b.MaxSilence),
	)
}
