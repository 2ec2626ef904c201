package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Mavwarf/metronome/internal/click"
	"github.com/Mavwarf/metronome/internal/logging"
	"github.com/Mavwarf/metronome/internal/metronome"
	"github.com/Mavwarf/metronome/internal/paths"
)

// Defaults.
const (
	DefaultBPM           = 120
	DefaultSignature     = "4/4"
	DefaultVolume        = 0.8
	DefaultClickMS       = 50
	DefaultSampleRate    = 48000
	DefaultBufferMS      = 20
	DefaultLogLevel      = "info"
	DefaultDashboardPort = 8812
	DefaultStorage       = "sqlite"
	DefaultTopicPrefix   = "metronome"
	DefaultClientID      = "metronome"
)

// Environment overrides, applied after the file is read.
const (
	EnvLogLevel   = "METRONOME_LOG_LEVEL"
	EnvPort       = "METRONOME_PORT"
	EnvMQTTBroker = "METRONOME_MQTT_BROKER"
)

// MQTT holds broker settings. An empty Broker disables the bridge.
type MQTT struct {
	Broker      string `json:"broker,omitempty"`
	ClientID    string `json:"client_id,omitempty"`
	TopicPrefix string `json:"topic_prefix,omitempty"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
}

// Config holds everything read from metronome-config.json.
type Config struct {
	BPM           float64 `json:"bpm"`
	Signature     string  `json:"signature"`
	Volume        float64 `json:"volume"`
	Voice         string  `json:"voice"`
	ClickMS       int     `json:"click_ms"`
	SampleRate    int     `json:"sample_rate"`
	BufferMS      int     `json:"buffer_ms"`
	LogLevel      string  `json:"log_level"`
	Realtime      bool    `json:"realtime"`
	DashboardPort int     `json:"dashboard_port"`
	Storage       string  `json:"storage"`
	MQTT          MQTT    `json:"mqtt"`

	// Path is the file the config came from, empty when defaults were used.
	Path string `json:"-"`
}

// Defaults returns the configuration used when no file exists.
func Defaults() Config {
	var c Config
	c.setDefaults()
	return c
}

func (c *Config) setDefaults() {
	c.BPM = DefaultBPM
	c.Signature = DefaultSignature
	c.Volume = DefaultVolume
	c.Voice = click.DefaultVoice
	c.ClickMS = DefaultClickMS
	c.SampleRate = DefaultSampleRate
	c.BufferMS = DefaultBufferMS
	c.LogLevel = DefaultLogLevel
	c.DashboardPort = DefaultDashboardPort
	c.Storage = DefaultStorage
	c.MQTT.ClientID = DefaultClientID
	c.MQTT.TopicPrefix = DefaultTopicPrefix
}

// UnmarshalJSON sets defaults then decodes the JSON structure.
// Go's json.Unmarshal merges into existing struct fields, so only
// values present in JSON override the defaults.
func (c *Config) UnmarshalJSON(data []byte) error {
	c.setDefaults()
	type Alias Config
	return json.Unmarshal(data, (*Alias)(c))
}

// Load reads and parses a config file. It tries, in order:
//  1. explicitPath (if non-empty; must exist)
//  2. metronome-config.json next to the running binary
//  3. DataDir()/metronome-config.json
//
// When no file is found the defaults are returned. Environment overrides
// are applied in every case.
func Load(explicitPath string) (Config, error) {
	cfg, err := find(explicitPath)
	if err != nil {
		return Config{}, err
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func find(explicitPath string) (Config, error) {
	if explicitPath != "" {
		return readConfig(explicitPath)
	}

	// Next to binary
	exe, err := os.Executable()
	if err == nil {
		p := filepath.Join(filepath.Dir(exe), paths.ConfigFileName)
		if _, err := os.Stat(p); err == nil {
			return readConfig(p)
		}
	}

	// User config directory
	p := filepath.Join(paths.DataDir(), paths.ConfigFileName)
	if _, err := os.Stat(p); err == nil {
		return readConfig(p)
	}

	return Defaults(), nil
}

func readConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// ApplyEnv overrides fields from METRONOME_* environment variables.
func ApplyEnv(c *Config) error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		c.DashboardPort = port
	}
	if v := os.Getenv(EnvMQTTBroker); v != "" {
		c.MQTT.Broker = v
	}
	return nil
}

// Validate checks every field and returns all problems joined.
func Validate(c Config) error {
	var errs []error
	if _, err := c.Settings(); err != nil {
		errs = append(errs, err)
	}
	if _, err := click.Lookup(c.Voice); err != nil {
		errs = append(errs, err)
	}
	if c.ClickMS < 1 || c.ClickMS > 1000 {
		errs = append(errs, fmt.Errorf("click_ms must be 1-1000, got %d", c.ClickMS))
	}
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("sample_rate must be 8000-192000, got %d", c.SampleRate))
	}
	if c.BufferMS < 1 || c.BufferMS > 500 {
		errs = append(errs, fmt.Errorf("buffer_ms must be 1-500, got %d", c.BufferMS))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.DashboardPort < 1 || c.DashboardPort > 65535 {
		errs = append(errs, fmt.Errorf("dashboard_port must be 1-65535, got %d", c.DashboardPort))
	}
	if c.Storage != "sqlite" && c.Storage != "none" {
		errs = append(errs, fmt.Errorf("storage must be sqlite or none, got %q", c.Storage))
	}
	if c.MQTT.Broker != "" && c.MQTT.TopicPrefix == "" {
		errs = append(errs, errors.New("mqtt.topic_prefix must not be empty"))
	}
	return errors.Join(errs...)
}

// Settings returns the metronome settings described by the config.
func (c Config) Settings() (metronome.Settings, error) {
	sig, err := metronome.ParseSignature(c.Signature)
	if err != nil {
		return metronome.Settings{}, err
	}
	s := metronome.Settings{BPM: c.BPM, Signature: sig, Volume: c.Volume}
	if err := s.Validate(); err != nil {
		return metronome.Settings{}, err
	}
	return s, nil
}

// ClickDuration returns click_ms as a duration.
func (c Config) ClickDuration() time.Duration {
	return time.Duration(c.ClickMS) * time.Millisecond
}

// Buffer returns buffer_ms as a duration.
func (c Config) Buffer() time.Duration {
	return time.Duration(c.BufferMS) * time.Millisecond
}
